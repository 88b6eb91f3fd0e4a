package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreport/internal/docstore"
)

// Provider fetches content documents for a batch of URLs in one call and
// reports the dollar cost of the call. Documents for failed URLs are simply
// absent from the result; one bad page must never fail the batch.
// Implementations may parallelize internally, the core only sees the batch.
type Provider interface {
	Scrape(ctx context.Context, urls []string) ([]docstore.Document, float64, error)
}

// Client is an HTTP crawl collaborator using readability extraction with a
// plain-HTML fallback.
type Client struct {
	HTTPClient        *http.Client
	UserAgent         string
	PerRequestTimeout time.Duration
	// MaxBodyBytes caps how much of a response is read. Zero means 4 MiB.
	MaxBodyBytes int64
	// PricePerPage is the dollar cost attributed to each fetched page.
	PricePerPage float64
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Scrape fetches each URL independently. Per-URL failures are logged and
// skipped; only context cancellation aborts the batch.
func (c *Client) Scrape(ctx context.Context, urls []string) ([]docstore.Document, float64, error) {
	docs := make([]docstore.Document, 0, len(urls))
	var cost float64
	for _, u := range urls {
		doc, err := c.fetchOne(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return docs, cost, ctx.Err()
			}
			log.Warn().Err(err).Str("url", u).Msg("crawl failed; skipping page")
			continue
		}
		cost += c.PricePerPage
		docs = append(docs, doc)
	}
	return docs, cost, nil
}

func (c *Client) fetchOne(ctx context.Context, rawURL string) (docstore.Document, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return docstore.Document{}, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return docstore.Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return docstore.Document{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return docstore.Document{}, fmt.Errorf("read body: %w", err)
	}

	parsed, _ := url.Parse(rawURL)
	if article, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return docstore.Document{URL: rawURL, Title: strings.TrimSpace(article.Title), Text: text}, nil
		}
	}
	title, text := extractFallback(body)
	if strings.TrimSpace(text) == "" {
		return docstore.Document{}, fmt.Errorf("no extractable content")
	}
	return docstore.Document{URL: rawURL, Title: title, Text: text}, nil
}
