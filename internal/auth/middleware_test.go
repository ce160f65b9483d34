package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferretek/ferretek/internal/shared"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewMiddleware("test-secret", time.Hour)

	token, err := m.SignToken(shared.Actor{ID: 42, Name: "Vendedora", Role: shared.RoleEmployee})
	require.NoError(t, err)

	actor, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor.ID)
	assert.Equal(t, "Vendedora", actor.Name)
	assert.Equal(t, shared.RoleEmployee, actor.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewMiddleware("secret-a", time.Hour)
	verifier := NewMiddleware("secret-b", time.Hour)

	token, err := issuer.SignToken(shared.Actor{ID: 1, Role: shared.RoleAdmin})
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	m := NewMiddleware("test-secret", -time.Minute)

	token, err := m.SignToken(shared.Actor{ID: 1, Role: shared.RoleAdmin})
	require.NoError(t, err)

	_, err = m.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthenticateSetsActor(t *testing.T) {
	m := NewMiddleware("test-secret", time.Hour)
	token, err := m.SignToken(shared.Actor{ID: 7, Role: shared.RoleAdmin})
	require.NoError(t, err)

	var got shared.Actor
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), got.ID)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := NewMiddleware("test-secret", time.Hour)
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m := NewMiddleware("test-secret", time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := m.RequireRole(shared.RoleAdmin)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{ID: 1, Role: shared.RoleAdmin}))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{ID: 2, Role: shared.RoleEmployee}))
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
