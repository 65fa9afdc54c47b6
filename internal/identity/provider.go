package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bugtrail/internal/models"
)

// HTTPProvider performs the authorization-code exchange against a
// federated identity provider over plain HTTP: code -> provider access
// token -> profile. Any failure along the way aborts the exchange with
// no partial state.
type HTTPProvider struct {
	client       *http.Client
	tokenURL     string
	userInfoURL  string
	clientID     string
	clientSecret string
	redirectURL  string
}

func New(tokenURL, userInfoURL, clientID, clientSecret, redirectURL string) *HTTPProvider {
	return &HTTPProvider{
		client:       &http.Client{Timeout: 10 * time.Second},
		tokenURL:     tokenURL,
		userInfoURL:  userInfoURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
	}
}

func (p *HTTPProvider) Exchange(ctx context.Context, code string) (models.Profile, error) {
	const op = "identity.Exchange"

	form := url.Values{
		"code":          {code},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"redirect_uri":  {p.redirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.Profile{}, fmt.Errorf("%s: token endpoint returned %d", op, res.StatusCode)
	}

	var tokenRes struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tokenRes); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	if tokenRes.AccessToken == "" {
		return models.Profile{}, fmt.Errorf("%s: empty access token", op)
	}

	return p.fetchProfile(ctx, tokenRes.AccessToken)
}

func (p *HTTPProvider) fetchProfile(ctx context.Context, accessToken string) (models.Profile, error) {
	const op = "identity.fetchProfile"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := p.client.Do(req)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.Profile{}, fmt.Errorf("%s: userinfo endpoint returned %d", op, res.StatusCode)
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	if info.Email == "" {
		return models.Profile{}, fmt.Errorf("%s: provider returned no email", op)
	}

	return models.Profile{
		Email:      info.Email,
		Name:       info.Name,
		PictureURL: info.Picture,
	}, nil
}
