// Package abdm is a client for the ABDM health-record exchange.
package abdm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushmap/ayushmap/internal/platform/fhir"
	"github.com/ayushmap/ayushmap/internal/platform/oauth"
)

type Config struct {
	FHIRBase string
}

type Client struct {
	cfg    Config
	tokens *oauth.TokenSource
	client *http.Client
	log    zerolog.Logger
}

func NewClient(cfg Config, tokens *oauth.TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
}

// PushCondition POSTs the Condition resource to the exchange and returns the
// stored resource. A 401 triggers exactly one token refresh and one retry.
func (c *Client) PushCondition(ctx context.Context, cond *fhir.Condition) (map[string]interface{}, error) {
	if c.cfg.FHIRBase == "" {
		return nil, oauth.ErrNotConfigured
	}

	body, err := json.Marshal(cond)
	if err != nil {
		return nil, fmt.Errorf("marshal condition: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, token, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		token, err = c.tokens.Invalidate(ctx, token)
		if err != nil {
			return nil, err
		}
		c.log.Debug().Msg("abdm token refreshed after 401")
		resp, err = c.post(ctx, token, body)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("abdm push returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var stored map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode abdm push response: %w", err)
	}
	return stored, nil
}

func (c *Client) post(ctx context.Context, token string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(c.cfg.FHIRBase, "/") + "/Condition"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build abdm push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/fhir+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("abdm push request: %w", err)
	}
	return resp, nil
}
