// Package oauth implements the OAuth2 client-credentials token lifecycle
// shared by the ICD-11 terminology client and the ABDM push client: a cached
// access token with expiry skew, a guarded single-flight refresh, and a
// distinct configuration error for missing credentials.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned when client credentials or the token URL are
// absent. It is never retried.
var ErrNotConfigured = errors.New("oauth: client credentials not configured")

// expirySkew is how long before the recorded expiry a token is already
// treated as invalid.
const expirySkew = 30 * time.Second

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
}

// Configured reports whether the mandatory fields are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenSource caches a client-credentials access token for the lifetime of
// the process. A burst of concurrent refreshes collapses into a single token
// request; the other callers wait for and reuse its result.
type TokenSource struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

func NewTokenSource(cfg Config, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{cfg: cfg, client: client}
}

// Token returns the cached token, fetching a fresh one when the cache is
// empty or within the expiry skew.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.validLocked() {
		tok := ts.token
		ts.mu.Unlock()
		return tok, nil
	}
	ts.mu.Unlock()
	return ts.refresh(ctx, "")
}

// Invalidate forces a new token, used after the resource server answered 401.
// stale is the token that was rejected; if another caller already replaced
// it, the replacement is returned without a second token request.
func (ts *TokenSource) Invalidate(ctx context.Context, stale string) (string, error) {
	ts.mu.Lock()
	if ts.token != stale && ts.validLocked() {
		tok := ts.token
		ts.mu.Unlock()
		return tok, nil
	}
	ts.mu.Unlock()
	return ts.refresh(ctx, stale)
}

func (ts *TokenSource) validLocked() bool {
	return ts.token != "" && time.Now().Before(ts.expires.Add(-expirySkew))
}

func (ts *TokenSource) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := ts.group.Do("token", func() (interface{}, error) {
		// Re-check under the lock: a concurrent caller may have refreshed
		// between our check and the singleflight admission.
		ts.mu.Lock()
		if ts.token != stale && ts.validLocked() {
			tok := ts.token
			ts.mu.Unlock()
			return tok, nil
		}
		ts.mu.Unlock()
		return ts.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ts *TokenSource) fetch(ctx context.Context) (string, error) {
	if !ts.cfg.Configured() {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.cfg.ClientID)
	form.Set("client_secret", ts.cfg.ClientSecret)
	if ts.cfg.Scope != "" {
		form.Set("scope", ts.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = 3600
	}

	ts.mu.Lock()
	ts.token = tr.AccessToken
	ts.expires = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	ts.mu.Unlock()

	return tr.AccessToken, nil
}
