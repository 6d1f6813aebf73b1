package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Default and maximum page sizes.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a page request resolved to a LIMIT/OFFSET pair.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Limit is the SQL LIMIT for p.
func (p Params) Limit() int {
	return p.PerPage
}

// Offset is the SQL OFFSET for p.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads page and per_page from the query string. Absent values
// take defaults; malformed or out-of-range values are an error so callers can
// answer 400 instead of silently serving another page.
func FromRequest(r *http.Request) (Params, error) {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer, got %q", raw)
		}
		p.Page = v
	}
	if raw := q.Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxPerPage {
			return Params{}, fmt.Errorf("per_page must be between 1 and %d, got %q", MaxPerPage, raw)
		}
		p.PerPage = v
	}
	return p, nil
}

// Result is one page of items plus navigation totals.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewResult builds a page. A nil items slice is reported as empty.
func NewResult[T any](items []T, totalCount int, p Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if p.PerPage > 0 {
		totalPages = (totalCount + p.PerPage - 1) / p.PerPage
	}
	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
	}
}
