package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProviderServer(t *testing.T, tokenStatus, userInfoStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))

		w.WriteHeader(tokenStatus)
		if tokenStatus == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "provider-token"})
		}
	})

	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer provider-token", r.Header.Get("Authorization"))

		w.WriteHeader(userInfoStatus)
		if userInfoStatus == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{
				"email":   "alice@example.com",
				"name":    "Alice",
				"picture": "https://pics/alice.png",
			})
		}
	})

	return httptest.NewServer(mux)
}

func newTestProvider(srv *httptest.Server) *HTTPProvider {
	return New(srv.URL+"/token", srv.URL+"/userinfo", "client-id", "client-secret", "https://app/callback")
}

func TestExchange(t *testing.T) {
	srv := newProviderServer(t, http.StatusOK, http.StatusOK)
	defer srv.Close()

	profile, err := newTestProvider(srv).Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "https://pics/alice.png", profile.PictureURL)
}

func TestExchange_TokenEndpointRejects(t *testing.T) {
	srv := newProviderServer(t, http.StatusBadRequest, http.StatusOK)
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestExchange_UserInfoFails(t *testing.T) {
	srv := newProviderServer(t, http.StatusOK, http.StatusInternalServerError)
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "auth-code")
	assert.Error(t, err)
}

func TestExchange_NoEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "provider-token"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "No Email"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "auth-code")
	assert.Error(t, err)
}
