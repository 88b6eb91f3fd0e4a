package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearxNG_Search(t *testing.T) {
	var gotQueries []string
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format=json missing")
		}
		gotQueries = append(gotQueries, r.URL.Query().Get("q"))
		gotLanguage = r.URL.Query().Get("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"First","url":"https://one.example/a"},
			{"title":"Second","url":"https://two.example/b"}
		]}`))
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL, PricePerQuery: 0.002}
	results, cost, err := s.Search(context.Background(), []string{"alpha", "beta"}, Locale{Language: "en", Country: "US"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 2 results per query, got %d", len(results))
	}
	if results[0].Title != "First" || results[0].URL != "https://one.example/a" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if cost != 0.004 {
		t.Fatalf("cost should be per executed query: got %f", cost)
	}
	if len(gotQueries) != 2 || gotQueries[0] != "alpha" || gotQueries[1] != "beta" {
		t.Fatalf("unexpected queries sent: %v", gotQueries)
	}
	if gotLanguage != "en-US" {
		t.Fatalf("unexpected language param %q", gotLanguage)
	}
}

func TestSearxNG_PerQueryLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"1","url":"https://a.example/1"},
			{"title":"2","url":"https://a.example/2"},
			{"title":"3","url":"https://a.example/3"}
		]}`))
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL}
	results, _, err := s.Search(context.Background(), []string{"q"}, Locale{Language: "en"}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not applied, got %d results", len(results))
	}
}

func TestSearxNG_PartialFailureSkipsQuery(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("q") == "bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"ok","url":"https://ok.example"}]}`))
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL, PricePerQuery: 1}
	results, cost, err := s.Search(context.Background(), []string{"bad", "good"}, Locale{Language: "en"}, 5)
	if err != nil {
		t.Fatalf("one bad query must not fail the batch: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://ok.example" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if cost != 1 {
		t.Fatalf("failed query must not be billed, cost=%f", cost)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestSearxNG_AllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL}
	if _, _, err := s.Search(context.Background(), []string{"a", "b"}, Locale{Language: "en"}, 5); err == nil {
		t.Fatal("expected an error when every query fails")
	}
}

func TestLanguageParam(t *testing.T) {
	if got := languageParam(Locale{}); got != "auto" {
		t.Fatalf("empty locale should be auto, got %q", got)
	}
	if got := languageParam(Locale{Language: "fi"}); got != "fi" {
		t.Fatalf("got %q", got)
	}
	if got := languageParam(Locale{Language: "en", Country: "GB"}); got != "en-GB" {
		t.Fatalf("got %q", got)
	}
}
