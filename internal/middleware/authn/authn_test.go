package authn

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bugtrail/internal/session"
	"bugtrail/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "gate-test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newGate returns the middleware plus a handler recording the identity
// it ran with.
func newGate(t *testing.T) (func(http.Handler) http.Handler, *int64) {
	t.Helper()

	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)
	cookies := session.NewCookieManager(15*time.Minute, 7*24*time.Hour, false)

	return New(discardLogger(), svc, cookies), new(int64)
}

func protected(seen *int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := UserID(r.Context()); ok {
			*seen = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func expiredAccess(t *testing.T, userID int64) string {
	t.Helper()

	token, err := tokens.New(secret, -time.Minute, time.Hour).IssueAccess(userID)
	require.NoError(t, err)

	return token
}

func validToken(t *testing.T, issue func() (string, error)) string {
	t.Helper()

	token, err := issue()
	require.NoError(t, err)

	return token
}

func TestGate_ValidAccess(t *testing.T) {
	gate, seen := newGate(t)
	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: validToken(t, func() (string, error) { return svc.IssueAccess(42) })})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), *seen)
}

func TestGate_ExpiredAccessValidRefresh(t *testing.T) {
	gate, seen := newGate(t)
	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: expiredAccess(t, 42)})
	r.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: validToken(t, func() (string, error) { return svc.IssueRefresh(42) })})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), *seen)

	// A fresh access cookie must be written before the handler runs.
	var accessCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.AccessCookie {
			accessCookie = c
		}
	}
	require.NotNil(t, accessCookie)
	assert.NotEmpty(t, accessCookie.Value)

	userID, err := svc.VerifyAccess(accessCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestGate_AbsentAccessValidRefresh(t *testing.T) {
	gate, seen := newGate(t)
	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: validToken(t, func() (string, error) { return svc.IssueRefresh(7) })})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), *seen)
}

func TestGate_NoCredentials(t *testing.T) {
	gate, seen := newGate(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, *seen)
}

func TestGate_ExpiredAccessNoRefresh(t *testing.T) {
	gate, seen := newGate(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: expiredAccess(t, 42)})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, *seen)
}

func TestGate_ExpiredAccessInvalidRefresh(t *testing.T) {
	gate, seen := newGate(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: expiredAccess(t, 42)})
	r.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: "garbage"})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, *seen)
}

func TestGate_MalformedAccessNoFallback(t *testing.T) {
	gate, seen := newGate(t)
	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)

	// Refresh is perfectly valid, but a malformed access token must be
	// rejected outright without attempting renewal.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: "tampered"})
	r.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: validToken(t, func() (string, error) { return svc.IssueRefresh(42) })})

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, *seen)
}

func TestGate_BearerHeader(t *testing.T) {
	gate, seen := newGate(t)
	svc := tokens.New(secret, 15*time.Minute, 7*24*time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+validToken(t, func() (string, error) { return svc.IssueAccess(9) }))

	rec := httptest.NewRecorder()
	gate(protected(seen)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), *seen)
}
