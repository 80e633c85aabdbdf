package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "campusevents/internal/delivery/http/helpers"
	"campusevents/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// SetPrincipal returns a context carrying the authenticated caller. Used by the auth middleware.
func SetPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller from the context, if present.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	if !ok || p.UserID == "" {
		return domain.Principal{}, false
	}
	return p, true
}

// Auth validates bearer tokens and stores the caller in the request context.
type Auth struct {
	verifier domain.TokenVerifier
	logger   *slog.Logger
}

// NewAuth returns the auth middleware backed by verifier.
func NewAuth(verifier domain.TokenVerifier, logger *slog.Logger) *Auth {
	return &Auth{verifier: verifier, logger: logger}
}

// Require validates the Bearer token and sets the principal in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func (a *Auth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, msg := bearerToken(r)
		if msg != "" {
			h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, msg)
			return
		}
		principal, err := a.verifier.Verify(token)
		if err != nil {
			a.logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
			h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(SetPrincipal(r.Context(), principal)))
	}
}

// Optional sets the principal when a valid Bearer token is present and otherwise
// calls next anonymously. An invalid token is still rejected with 401.
func (a *Auth) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next(w, r)
			return
		}
		a.Require(next)(w, r)
	}
}

func bearerToken(r *http.Request) (token, problem string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing authorization header"
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", "invalid authorization format"
	}
	token = strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return "", "missing token"
	}
	return token, ""
}
