package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CookieManager writes and clears the http-only transport cookies that
// carry the two session credentials.
type CookieManager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

func NewCookieManager(accessTTL, refreshTTL time.Duration, secure bool) *CookieManager {
	return &CookieManager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		secure:     secure,
	}
}

func (m *CookieManager) SetAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.cookie(AccessCookie, token, m.accessTTL))
}

func (m *CookieManager) SetSession(w http.ResponseWriter, accessToken, refreshToken string) {
	m.SetAccess(w, accessToken)
	http.SetCookie(w, m.cookie(RefreshCookie, refreshToken, m.refreshTTL))
}

func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(AccessCookie, "", -time.Second))
	http.SetCookie(w, m.cookie(RefreshCookie, "", -time.Second))
}

func (m *CookieManager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ReadAccess extracts the access credential from the request, cookie
// first, then the Authorization bearer header.
func ReadAccess(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value, true
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token, true
	}

	return "", false
}

// ReadRefresh extracts the refresh credential, cookie first, then the
// X-Refresh-Token header for non-browser clients.
func ReadRefresh(r *http.Request) (string, bool) {
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		return c.Value, true
	}

	if token := r.Header.Get("X-Refresh-Token"); token != "" {
		return token, true
	}

	return "", false
}
