package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Panel Recycling Methods</title></head>
<body>
<nav>menu menu menu</nav>
<article>
<h1>Panel Recycling Methods</h1>
<p>Thermal delamination separates the glass layer from the silicon cells so both streams can be recovered. The process runs at roughly five hundred degrees and keeps the glass intact for reuse in new modules.</p>
<p>Mechanical shredding is cheaper but produces mixed-material output that is harder to refine into saleable fractions, which is why most industrial plants combine both approaches.</p>
</article>
<footer>copyright</footer>
</body></html>`

func TestClient_ScrapeExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := &Client{PricePerPage: 0.01}
	docs, cost, err := c.Scrape(context.Background(), []string{srv.URL + "/page"})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	if docs[0].URL != srv.URL+"/page" {
		t.Fatalf("document must keep the requested url, got %q", docs[0].URL)
	}
	if !strings.Contains(docs[0].Text, "Thermal delamination") {
		t.Fatalf("body text missing: %q", docs[0].Text)
	}
	if strings.Contains(docs[0].Text, "menu menu menu") {
		t.Fatalf("navigation chrome leaked into text: %q", docs[0].Text)
	}
	if cost != 0.01 {
		t.Fatalf("unexpected cost %f", cost)
	}
}

func TestClient_ScrapeSkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := &Client{PricePerPage: 1}
	docs, cost, err := c.Scrape(context.Background(), []string{srv.URL + "/missing", srv.URL + "/ok"})
	if err != nil {
		t.Fatalf("one bad page must not fail the batch: %v", err)
	}
	if len(docs) != 1 || docs[0].URL != srv.URL+"/ok" {
		t.Fatalf("expected only the good page: %+v", docs)
	}
	if cost != 1 {
		t.Fatalf("failed fetch must not be billed, cost=%f", cost)
	}
}

func TestClient_ScrapeSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "goreport-test/1.0"}
	if _, _, err := c.Scrape(context.Background(), []string{srv.URL}); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if gotUA != "goreport-test/1.0" {
		t.Fatalf("user agent not sent: %q", gotUA)
	}
}

func TestClient_ScrapeEmptyContentIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Empty</title></head><body><script>x()</script></body></html>`))
	}))
	defer srv.Close()

	c := &Client{}
	docs, _, err := c.Scrape(context.Background(), []string{srv.URL})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("page with no extractable content must be dropped: %+v", docs)
	}
}

func TestExtractFallback(t *testing.T) {
	title, text := extractFallback([]byte(`<html><head><title>Doc Title</title><style>p{}</style></head>
<body><header>site chrome</header><main><p>First paragraph.</p><p>Second paragraph.</p></main></body></html>`))
	if title != "Doc Title" {
		t.Fatalf("unexpected title %q", title)
	}
	if !strings.Contains(text, "First paragraph.") || !strings.Contains(text, "Second paragraph.") {
		t.Fatalf("paragraphs missing: %q", text)
	}
	if strings.Contains(text, "site chrome") {
		t.Fatalf("header chrome leaked: %q", text)
	}
}
