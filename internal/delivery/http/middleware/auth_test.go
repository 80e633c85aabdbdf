package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusevents/internal/delivery/http/helpers"
	"campusevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeTokenVerifier implements domain.TokenVerifier for tests.
type fakeTokenVerifier struct {
	principal domain.Principal
	err       error
}

func (f *fakeTokenVerifier) Verify(_ string) (domain.Principal, error) {
	if f.err != nil {
		return domain.Principal{}, f.err
	}
	return f.principal, nil
}

func organizer() domain.Principal {
	return domain.Principal{UserID: "user-123", Roles: []string{domain.RoleOrganizer}}
}

func TestAuth_Require(t *testing.T) {
	tests := []struct {
		name          string
		authHeader    string
		verifier      domain.TokenVerifier
		wantStatus    int
		wantBodyCode  string
		nextCalled    bool
		wantPrincipal domain.Principal
	}{
		{
			name:          "valid token sets context and calls next",
			authHeader:    "Bearer valid-token",
			verifier:      &fakeTokenVerifier{principal: organizer()},
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantPrincipal: organizer(),
		},
		{
			name:         "missing authorization header",
			verifier:     &fakeTokenVerifier{principal: organizer()},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "invalid authorization format no Bearer prefix",
			authHeader:   "Basic abc",
			verifier:     &fakeTokenVerifier{principal: organizer()},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "empty token after Bearer",
			authHeader:   "Bearer ",
			verifier:     &fakeTokenVerifier{principal: organizer()},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "verifier returns error",
			authHeader:   "Bearer bad-token",
			verifier:     &fakeTokenVerifier{err: errors.New("token is expired")},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var captured domain.Principal
			next := func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				captured, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}
			handler := NewAuth(tt.verifier, testLogger).Require(next)

			req := httptest.NewRequest(http.MethodGet, "http://test/me/registrations", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			assert.Equal(t, tt.nextCalled, nextCalled, "next handler called")
			if tt.nextCalled {
				assert.Equal(t, tt.wantPrincipal, captured, "principal in context")
			}
			if tt.wantBodyCode != "" {
				var envelope helpers.APIResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
				assert.False(t, envelope.Success)
				assert.Equal(t, tt.wantBodyCode, envelope.Code)
			}
		})
	}
}

func TestAuth_Optional(t *testing.T) {
	auth := NewAuth(&fakeTokenVerifier{principal: organizer()}, testLogger)

	var authenticated bool
	handler := auth.Optional(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/events/x", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, authenticated)

	req := httptest.NewRequest(http.MethodGet, "/events/x", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr = httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, authenticated)

	rejecting := NewAuth(&fakeTokenVerifier{err: errors.New("bad")}, testLogger).Optional(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not be called with an invalid token")
	})
	rr = httptest.NewRecorder()
	rejecting(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := PrincipalFromContext(req.Context())
	assert.False(t, ok)

	_, ok = PrincipalFromContext(SetPrincipal(req.Context(), domain.Principal{}))
	assert.False(t, ok)
}
