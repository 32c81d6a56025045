// Package icd is a client for the WHO ICD-11 search API.
package icd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushmap/ayushmap/internal/platform/oauth"
)

// maxResults caps how many entities one search returns; enough for the
// prioritization tiers to be meaningful.
const maxResults = 10

// Entity is one search result: a code, a plain-text title and an optional
// description sourced from the entity's matching property values.
type Entity struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Config struct {
	SearchURL  string
	APIVersion string
}

type Client struct {
	cfg    Config
	tokens *oauth.TokenSource
	client *http.Client
	log    zerolog.Logger
}

func NewClient(cfg Config, tokens *oauth.TokenSource, logger zerolog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v2"
	}
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
}

var htmlTag = regexp.MustCompile(`<.*?>`)

// stripHTML removes the WHO search-highlight markup from titles and labels.
func stripHTML(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}

type searchResponse struct {
	DestinationEntities []searchEntity `json:"destinationEntities"`
}

type searchEntity struct {
	TheCode     string `json:"theCode"`
	Title       string `json:"title"`
	Definition  string `json:"definition"`
	Description string `json:"description"`
	MatchingPVs []struct {
		Label string `json:"label"`
	} `json:"matchingPVs"`
}

func (e searchEntity) description() string {
	if len(e.MatchingPVs) > 0 && e.MatchingPVs[0].Label != "" {
		return stripHTML(e.MatchingPVs[0].Label)
	}
	if e.Definition != "" {
		return stripHTML(e.Definition)
	}
	if e.Description != "" {
		return stripHTML(e.Description)
	}
	return ""
}

// Search queries the flexisearch endpoint with a fixed MMS chapter filter.
// A 401 triggers exactly one token refresh and one retry; a second 401 is
// surfaced as a failure.
func (c *Client) Search(ctx context.Context, query string) ([]Entity, error) {
	if c.cfg.SearchURL == "" {
		return nil, oauth.ErrNotConfigured
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, token, query)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		token, err = c.tokens.Invalidate(ctx, token)
		if err != nil {
			return nil, err
		}
		c.log.Debug().Str("query", query).Msg("icd token refreshed after 401")
		resp, err = c.post(ctx, token, query)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("icd search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode icd search response: %w", err)
	}

	var out []Entity
	for _, e := range sr.DestinationEntities {
		if len(out) >= maxResults {
			break
		}
		title := stripHTML(e.Title)
		if e.TheCode == "" || title == "" {
			continue
		}
		out = append(out, Entity{
			Code:        e.TheCode,
			Title:       title,
			Description: e.description(),
		})
	}
	c.log.Debug().Str("query", query).Int("results", len(out)).Msg("icd search")
	return out, nil
}

func (c *Client) post(ctx context.Context, token, query string) (*http.Response, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("chapterFilter", "mms")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build icd search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("API-Version", c.cfg.APIVersion)
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("icd search request: %w", err)
	}
	return resp, nil
}
