package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SearxNG implements Provider against a SearxNG instance's /search endpoint.
// The batch contract is satisfied by issuing the queries sequentially inside
// one call; per-query failures are logged and skipped so one bad query does
// not sink the batch.
type SearxNG struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
	// PricePerQuery is the dollar cost attributed to each executed query.
	PricePerQuery float64
}

func (s *SearxNG) Search(ctx context.Context, queries []string, loc Locale, perQuery int) ([]Result, float64, error) {
	if s.BaseURL == "" {
		return nil, 0, fmt.Errorf("missing searxng base url")
	}
	var (
		out     []Result
		cost    float64
		lastErr error
	)
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		results, err := s.searchOne(ctx, q, loc, perQuery)
		if err != nil {
			if ctx.Err() != nil {
				return out, cost, ctx.Err()
			}
			log.Warn().Err(err).Str("query", q).Msg("search query failed")
			lastErr = err
			continue
		}
		cost += s.PricePerQuery
		out = append(out, results...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, cost, lastErr
	}
	return out, cost, nil
}

func (s *SearxNG) searchOne(ctx context.Context, query string, loc Locale, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("language", languageParam(loc))
	q.Set("safesearch", "1")
	q.Set("categories", "general")
	q.Set("count", fmt.Sprintf("%d", limit))
	if s.APIKey != "" {
		q.Set("apikey", s.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("searxng status: %d", resp.StatusCode)
	}
	var sr searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{
			Title: strings.TrimSpace(r.Title),
			URL:   strings.TrimSpace(r.URL),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// languageParam renders the locale for SearxNG: "en-US" when a country is
// known, the bare language otherwise, "auto" when nothing is configured.
func languageParam(loc Locale) string {
	switch {
	case loc.Language == "":
		return "auto"
	case loc.Country == "":
		return loc.Language
	default:
		return loc.Language + "-" + loc.Country
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}
