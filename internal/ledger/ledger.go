package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one bibliography row: the run-global citation index, the cited URL
// and its display title, in first-use order.
type Entry struct {
	Index int
	URL   string
	Title string
}

// Ledger assigns stable, run-global 1-based citation indices to URLs in strict
// first-use order. It never shrinks, never reorders, and never reassigns an
// index; one instance is shared by every chapter-body call of a run.
type Ledger struct {
	order   []string
	indexOf map[string]int
	titles  map[string]string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		indexOf: make(map[string]int),
		titles:  make(map[string]string),
	}
}

// CiteOrGetIndex returns the citation index for url, appending it and
// assigning the next free index on first use.
func (l *Ledger) CiteOrGetIndex(url string) int {
	if idx, ok := l.indexOf[url]; ok {
		return idx
	}
	l.order = append(l.order, url)
	idx := len(l.order)
	l.indexOf[url] = idx
	return idx
}

// SetTitle records the display title for url. The first non-empty title wins
// so re-crawled pages cannot rewrite the bibliography mid-run.
func (l *Ledger) SetTitle(url, title string) {
	if title == "" {
		return
	}
	if _, ok := l.titles[url]; !ok {
		l.titles[url] = title
	}
}

// markerURLEscaper encodes the characters that would break the [n](url)
// link boundary: parentheses (Wikipedia URLs carry them) and spaces.
var markerURLEscaper = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")

// RenderMarker returns the inline citation marker for url, assigning an index
// on first use. The format [n](url) survives markdown rendering as a link and
// round-trips through ParseMarker; the URL is escaped so parentheses in it
// cannot close the link early.
func (l *Ledger) RenderMarker(url string) string {
	return fmt.Sprintf("[%d](%s)", l.CiteOrGetIndex(url), markerURLEscaper.Replace(url))
}

var markerRe = regexp.MustCompile(`^\[(\d+)\]\(([^)\s]+)\)$`)

// ParseMarker parses a rendered citation marker back into the ledger entry for
// its index. ok is false when the marker is malformed or the index was never
// assigned.
func (l *Ledger) ParseMarker(marker string) (Entry, bool) {
	m := markerRe.FindStringSubmatch(marker)
	if m == nil {
		return Entry{}, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 || idx > len(l.order) {
		return Entry{}, false
	}
	url := l.order[idx-1]
	return Entry{Index: idx, URL: url, Title: l.titles[url]}, true
}

// FinalOrdering returns every cited source in first-use order, ready for the
// bibliography.
func (l *Ledger) FinalOrdering() []Entry {
	out := make([]Entry, 0, len(l.order))
	for i, url := range l.order {
		out = append(out, Entry{Index: i + 1, URL: url, Title: l.titles[url]})
	}
	return out
}

// Len returns the number of cited sources so far.
func (l *Ledger) Len() int { return len(l.order) }
