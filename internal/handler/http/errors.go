package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/pkg/httputil"
	"github.com/Papaai2/baladymall-sub000/pkg/logger"
)

// conflictDetails is the error detail for commit-time conflicts.
type conflictDetails struct {
	ProductID string          `json:"product_id"`
	Requested int             `json:"requested,omitempty"`
	Available int             `json:"available,omitempty"`
	Notices   []domain.Notice `json:"notices"`
}

// writeError maps checkout and cart errors to the API error contract.
// Anything not listed falls through to httputil.WriteError.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	var (
		changed      *domain.CartChangedError
		conflict     *domain.StockConflictError
		inconsistent *domain.CatalogInconsistencyError
		persistence  *domain.PersistenceError
	)

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		httputil.WriteErrorResponse(w, r, http.StatusUnprocessableEntity, &httputil.ErrorResponse{
			Code:    "EMPTY_CART",
			Message: "your cart is empty",
		})

	case errors.As(err, &changed):
		httputil.WriteErrorResponse(w, r, http.StatusConflict, &httputil.ErrorResponse{
			Code:    "CART_CHANGED",
			Message: "your cart was updated; please review it before placing the order",
			Details: map[string]any{"notices": nonNil(changed.Notices)},
		})

	case errors.As(err, &conflict):
		httputil.WriteErrorResponse(w, r, http.StatusConflict, &httputil.ErrorResponse{
			Code:    "STOCK_CONFLICT",
			Message: "an item sold out while you were checking out; your cart was updated",
			Details: conflictDetails{
				ProductID: conflict.ProductID,
				Requested: conflict.Requested,
				Available: conflict.Available,
				Notices:   nonNil(conflict.Notices),
			},
		})

	case errors.As(err, &inconsistent):
		httputil.WriteErrorResponse(w, r, http.StatusConflict, &httputil.ErrorResponse{
			Code:    "CATALOG_INCONSISTENCY",
			Message: "an item is no longer available; your cart was updated",
			Details: conflictDetails{
				ProductID: inconsistent.ProductID,
				Notices:   nonNil(inconsistent.Notices),
			},
		})

	case errors.As(err, &persistence):
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "order could not be saved",
			slog.String("op", persistence.Op),
			slog.Bool("retryable", persistence.Retryable),
			slog.String("error", err.Error()),
		)
		msg := "your order could not be saved; nothing was charged"
		if persistence.Retryable {
			msg += ", please try again"
		}
		httputil.WriteErrorResponse(w, r, http.StatusServiceUnavailable, &httputil.ErrorResponse{
			Code:      "PERSISTENCE_FAILURE",
			Message:   msg,
			Retryable: persistence.Retryable,
		})

	default:
		httputil.WriteError(w, r, err, fallback)
	}
}

func nonNil(n []domain.Notice) []domain.Notice {
	if n == nil {
		return []domain.Notice{}
	}
	return n
}
