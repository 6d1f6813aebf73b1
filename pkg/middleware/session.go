package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Papaai2/baladymall-sub000/pkg/httputil"
	"github.com/Papaai2/baladymall-sub000/pkg/logger"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// UserIDHeader is set by the session layer in front of this service.
const UserIDHeader = "X-User-ID"

// SessionConfig describes where unauthenticated shoppers are sent.
type SessionConfig struct {
	// LoginURL is the login page; return_to is appended as a query parameter.
	LoginURL string
	// ResumePath is where non-GET requests resume after login, e.g. "/checkout".
	ResumePath string
}

// LoginRedirect is the body detail sent with a 401 so clients can bounce the
// shopper to login and back.
type LoginRedirect struct {
	LoginURL string `json:"login_url"`
	ReturnTo string `json:"return_to"`
}

// Session requires an authenticated user. The user ID comes from the
// X-User-ID header and must be a UUID. Missing or malformed IDs get a 401 with a Location pointing at the
// login page and a return_to that resumes the flow.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if raw == "" {
				cfg.unauthorized(w, r, "authentication required")
				return
			}
			// Orders reference users by UUID; anything else can never check out.
			parsed, err := uuid.Parse(raw)
			if err != nil {
				cfg.unauthorized(w, r, "session is not valid")
				return
			}
			uid := parsed.String()

			ctx := WithUserID(r.Context(), uid)
			ctx = logger.WithUserID(ctx, uid)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", uid)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (c SessionConfig) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	redirect := c.redirectFor(r)
	w.Header().Set("Location", redirect.LoginURL)
	httputil.WriteErrorResponse(w, r, http.StatusUnauthorized, &httputil.ErrorResponse{
		Code:    "UNAUTHORIZED",
		Message: msg,
		Details: redirect,
	})
}

func (c SessionConfig) redirectFor(r *http.Request) LoginRedirect {
	returnTo := r.URL.RequestURI()
	if r.Method != http.MethodGet && c.ResumePath != "" {
		returnTo = c.ResumePath
	}

	login := c.LoginURL
	if login == "" {
		login = "/login"
	}
	sep := "?"
	if strings.Contains(login, "?") {
		sep = "&"
	}
	return LoginRedirect{
		LoginURL: login + sep + "return_to=" + url.QueryEscape(returnTo),
		ReturnTo: returnTo,
	}
}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
