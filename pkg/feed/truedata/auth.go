package truedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAuthTimeout = 10 * time.Second

// Authenticator exchanges feed credentials for a bearer token via the REST
// auth endpoint. The token is required before the push socket accepts a dial.
type Authenticator struct {
	authURL    string
	username   string
	password   string
	httpClient *http.Client
}

// AuthOption customises the authenticator.
type AuthOption func(*Authenticator)

// WithHTTPClient injects a custom HTTP client, mainly for recorded tests.
func WithHTTPClient(client *http.Client) AuthOption {
	return func(a *Authenticator) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// NewAuthenticator constructs an authenticator for the given endpoint.
func NewAuthenticator(authURL, username, password string, opts ...AuthOption) *Authenticator {
	auth := &Authenticator{
		authURL:    authURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: defaultAuthTimeout},
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

// Token requests a fresh access token. Callers are expected to retry through
// their own backoff policy; this call itself never retries.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", a.username)
	form.Set("password", a.password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("truedata auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("truedata auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("truedata auth: unexpected status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("truedata auth: decode response: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", fmt.Errorf("truedata auth: empty access token")
	}
	return token.AccessToken, nil
}
