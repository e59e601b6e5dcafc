package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	tok, err := IssueToken(secret, models.Actor{ID: "u1", Role: models.RoleStaff}, time.Minute)
	require.NoError(t, err)

	a, err := ParseToken(secret, tok)
	require.NoError(t, err)
	require.Equal(t, &models.Actor{ID: "u1", Role: models.RoleStaff}, a)

	_, err = ParseToken("other", tok)
	require.Error(t, err)
}

func TestParseToken_DefaultsToClient(t *testing.T) {
	tok, err := IssueToken(secret, models.Actor{ID: "u1"}, time.Minute)
	require.NoError(t, err)

	a, err := ParseToken(secret, tok)
	require.NoError(t, err)
	require.Equal(t, models.RoleClient, a.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := IssueToken(secret, models.Actor{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	require.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(secret, noSubject)
	require.Error(t, err)

	_, err = ParseToken(secret, "garbage")
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	var got *models.Actor
	h := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// anonymous
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, got)

	// valid
	tok, err := IssueToken(secret, models.Actor{ID: "u2", Role: models.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "u2", got.ID)

	// bad format
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad token
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireActorAndStaff(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	serve := func(h http.Handler, a *models.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if a != nil {
			req = req.WithContext(WithActor(req.Context(), a))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(RequireActor(ok), nil))
	require.Equal(t, http.StatusOK, serve(RequireActor(ok), &models.Actor{ID: "c", Role: models.RoleClient}))

	require.Equal(t, http.StatusForbidden, serve(RequireStaff(ok), nil))
	require.Equal(t, http.StatusForbidden, serve(RequireStaff(ok), &models.Actor{ID: "c", Role: models.RoleClient}))
	require.Equal(t, http.StatusOK, serve(RequireStaff(ok), &models.Actor{ID: "s", Role: models.RoleStaff}))
}
