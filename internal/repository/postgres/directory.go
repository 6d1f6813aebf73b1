package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Papaai2/baladymall-sub000/pkg/database"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
)

// DirectoryRepository implements repository.ContactDirectory using PostgreSQL.
type DirectoryRepository struct {
	pool database.DBTX
}

// NewDirectoryRepository creates a new PostgreSQL-backed contact directory.
func NewDirectoryRepository(pool database.DBTX) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// CustomerEmail returns the email address of userID.
func (r *DirectoryRepository) CustomerEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("user", userID)
		}
		return "", fmt.Errorf("query customer email: %w", err)
	}
	return email, nil
}

// BrandContacts returns contact emails for the brands that have one.
func (r *DirectoryRepository) BrandContacts(ctx context.Context, brandIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(brandIDs))
	if len(brandIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, contact_email
		FROM brands
		WHERE id = ANY($1::text[]::uuid[]) AND COALESCE(contact_email, '') <> ''`, brandIDs)
	if err != nil {
		return nil, fmt.Errorf("query brand contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan brand contact: %w", err)
		}
		out[id] = email
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brand contacts: %w", err)
	}
	return out, nil
}
