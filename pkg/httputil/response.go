package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
	"github.com/Papaai2/baladymall-sub000/pkg/logger"
	"github.com/Papaai2/baladymall-sub000/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope. Details carries
// endpoint-specific payloads such as cart notices.
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Fields    []validator.FieldError `json:"fields,omitempty"`
	Details   any                    `json:"details,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes a prepared error body, stamping the request ID.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, body *ErrorResponse) {
	body.RequestID = logger.CorrelationIDFromContext(r.Context())
	WriteJSON(w, status, Response{Error: body})
}

// WriteError maps err to a status and error body. AppErrors keep their code and
// message; anything else is logged and reported as an internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteValidationError(w, r, valErr)
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(r, err, fallback)
		}
		WriteErrorResponse(w, r, appErr.Status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message})
		return
	}

	status := apperrors.HTTPStatus(err)
	code, message := "INTERNAL_ERROR", "an internal error occurred"
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code, message = "INVALID_INPUT", err.Error()
	}

	if status == http.StatusInternalServerError {
		logInternal(r, err, fallback)
	}
	WriteErrorResponse(w, r, status, &ErrorResponse{Code: code, Message: message})
}

// WriteValidationError writes a 422 with one entry per rejected field.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err *validator.ValidationError) {
	WriteErrorResponse(w, r, http.StatusUnprocessableEntity, &ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "request validation failed",
		Fields:  err.Errors,
	})
}

// ParseUUID validates a path parameter. On failure it writes a 400 and returns false.
func ParseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		})
		return uuid.Nil, false
	}
	return id, true
}

func logInternal(r *http.Request, err error, fallback *slog.Logger) {
	// Prefer the request-scoped logger set by middleware.RequestLogger.
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}
