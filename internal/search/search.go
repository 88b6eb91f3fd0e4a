package search

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Locale is the language/country pair passed to the search collaborator,
// e.g. {"en", "US"}.
type Locale struct {
	Language string
	Country  string
}

// ParseLocale derives a Locale from a BCP 47 tag such as "en-US" or "fi".
// Unparseable input falls back to English.
func ParseLocale(tag string) Locale {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return Locale{Language: "en"}
	}
	base, _ := t.Base()
	loc := Locale{Language: base.String()}
	if region, conf := t.Region(); conf != language.No && region.IsCountry() {
		loc.Country = region.String()
	}
	return loc
}

// Result is a single search hit.
type Result struct {
	Title string
	URL   string
}

// Provider executes a batch of queries in one call and reports the dollar cost
// of that call. The returned list may contain duplicate URLs; the caller
// dedupes. Implementations may fan out internally, the core only sees the
// batched call.
type Provider interface {
	Search(ctx context.Context, queries []string, loc Locale, perQuery int) ([]Result, float64, error)
}

// Dedupe canonicalizes result URLs, drops duplicates, and sorts the remainder
// by URL so every run sees the same corpus order for the same hits.
func Dedupe(in []Result) []Result {
	seen := map[string]struct{}{}
	out := make([]Result, 0, len(in))
	for _, r := range in {
		key := CanonicalURL(r.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		r.URL = key
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// CanonicalURL normalizes a URL for deduplication: fragment removed, host
// lower-cased, common tracking parameters stripped. Unparseable URLs yield "".
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
