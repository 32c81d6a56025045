package icd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayushmap/ayushmap/internal/platform/oauth"
)

func newTokenServer(hits *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt64(hits, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   3600,
		})
	}))
}

func newTokens(t *testing.T, hits *int64) (*oauth.TokenSource, func()) {
	t.Helper()
	srv := newTokenServer(hits)
	ts := oauth.NewTokenSource(oauth.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
	}, nil)
	return ts, srv.Close
}

func TestSearchParsesResults(t *testing.T) {
	var tokenHits int64
	tokens, closeTokens := newTokens(t, &tokenHits)
	defer closeTokens()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostFormValue("q"); got != "fever" {
			t.Errorf("q = %q", got)
		}
		if got := r.PostFormValue("chapterFilter"); got != "mms" {
			t.Errorf("chapterFilter = %q", got)
		}
		if got := r.Header.Get("API-Version"); got != "v2" {
			t.Errorf("API-Version = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"destinationEntities": []map[string]interface{}{
				{
					"theCode": "1C62",
					"title":   "<em class='found'>Fever</em> of other origin",
					"matchingPVs": []map[string]string{
						{"label": "<em class='found'>fever</em> with chills"},
					},
				},
				{
					"theCode":    "1C62.Z",
					"title":      "Fever, unspecified",
					"definition": "Elevated body temperature without identified cause.",
				},
				{
					// No code: skipped.
					"title": "Orphan entity",
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{SearchURL: srv.URL}, tokens, zerolog.Nop())
	got, err := c.Search(context.Background(), "fever")
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d entities, want 2", len(got))
	}
	if got[0].Title != "Fever of other origin" {
		t.Errorf("title = %q, markup not stripped", got[0].Title)
	}
	if got[0].Description != "fever with chills" {
		t.Errorf("description = %q, want the matching PV label", got[0].Description)
	}
	if got[1].Description != "Elevated body temperature without identified cause." {
		t.Errorf("description = %q, want the definition fallback", got[1].Description)
	}
}

// An expired token answered with 401 is refreshed exactly once and the
// request retried with the replacement.
func TestSearchRefreshesTokenOn401(t *testing.T) {
	var tokenHits int64
	tokens, closeTokens := newTokens(t, &tokenHits)
	defer closeTokens()

	var searchHits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&searchHits, 1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"destinationEntities": []map[string]interface{}{
				{"theCode": "1C62", "title": "Fever"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{SearchURL: srv.URL}, tokens, zerolog.Nop())
	got, err := c.Search(context.Background(), "fever")
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0].Code != "1C62" {
		t.Fatalf("got %+v", got)
	}
	if searchHits != 2 {
		t.Errorf("search endpoint hit %d times, want 2", searchHits)
	}
	if tokenHits != 2 {
		t.Errorf("token endpoint hit %d times, want exactly one refresh after the initial fetch", tokenHits)
	}
}

// A second 401 after the refresh is surfaced, not retried again.
func TestSearchSecond401Fails(t *testing.T) {
	var tokenHits int64
	tokens, closeTokens := newTokens(t, &tokenHits)
	defer closeTokens()

	var searchHits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&searchHits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{SearchURL: srv.URL}, tokens, zerolog.Nop())
	if _, err := c.Search(context.Background(), "fever"); err == nil {
		t.Fatal("want error after second 401")
	}
	if searchHits != 2 {
		t.Errorf("search endpoint hit %d times, want 2", searchHits)
	}
}

func TestSearchNotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil, zerolog.Nop())
	_, err := c.Search(context.Background(), "fever")
	if !errors.Is(err, oauth.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSearchCapsResults(t *testing.T) {
	var tokenHits int64
	tokens, closeTokens := newTokens(t, &tokenHits)
	defer closeTokens()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var entities []map[string]interface{}
		for i := 0; i < 25; i++ {
			entities = append(entities, map[string]interface{}{
				"theCode": fmt.Sprintf("XX%02d", i),
				"title":   fmt.Sprintf("Entity %d", i),
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"destinationEntities": entities})
	}))
	defer srv.Close()

	c := NewClient(Config{SearchURL: srv.URL}, tokens, zerolog.Nop())
	got, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != maxResults {
		t.Errorf("got %d entities, want cap of %d", len(got), maxResults)
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<em class='found'>Fever</em>", "Fever"},
		{"plain", "plain"},
		{"<b>a</b> <i>b</i>", "a b"},
	}
	for _, c := range cases {
		if got := stripHTML(c.in); got != c.want {
			t.Errorf("stripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
