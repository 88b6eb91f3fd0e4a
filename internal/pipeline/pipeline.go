package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreport/internal/cache"
	"github.com/hyperifyio/goreport/internal/docstore"
	"github.com/hyperifyio/goreport/internal/ledger"
	"github.com/hyperifyio/goreport/internal/llm"
	"github.com/hyperifyio/goreport/internal/search"
	"github.com/hyperifyio/goreport/internal/usage"
)

// Followup is a clarifying question and the user's answer, read-only input to
// every stage after clarification.
type Followup struct {
	Question string
	Answer   string
}

// Chapter is one outline entry. Numbers are unique within a run but not
// guaranteed contiguous or sorted by the model.
type Chapter struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// Paragraph is one generated paragraph with its citation references. The
// reference values are 1-based indices into the budgeted document selection
// passed to that specific call, not run-global citation indices.
type Paragraph struct {
	Text       string `json:"text"`
	References []int  `json:"references"`
}

// ChapterContent is the finished, citation-annotated prose of one chapter.
// Immutable once produced.
type ChapterContent struct {
	Number  int
	Title   string
	Text    string
	Summary string
}

// Result is the aggregate of a completed run, ready for assembly.
type Result struct {
	Subject     string
	Queries     []string
	Corpus      []docstore.Document
	Chapters    []ChapterContent
	Abstract    string
	Conclusions string
	References  []ledger.Entry
	Usage       usage.Totals
}

// Stage names, used in StageError and logs.
const (
	StageClarify  = "clarify"
	StageQueries  = "queries"
	StageSearch   = "search"
	StageCrawl    = "crawl"
	StageOutline  = "outline"
	StageChapters = "chapters"
	StageSummary  = "summary"
)

// StageError marks a run as failed at a specific stage. Partial progress from
// earlier stages, including cache entries and already-produced chapters, is
// preserved; the underlying message is surfaced verbatim.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

var (
	// ErrNoSources means search and crawl produced an empty corpus.
	ErrNoSources = errors.New("no usable sources")
	// ErrInputTooLarge means a stage that takes the full corpus without
	// truncation cannot fit the model's context window.
	ErrInputTooLarge = errors.New("input exceeds model context window")
	// ErrEmptyOutline means the outline stage returned no chapters.
	ErrEmptyOutline = errors.New("empty outline")
)

// ExternalJob is an optional collaborator capability: implementations that
// start remote jobs report the identifier of the job belonging to the call in
// flight, or "" when none is active. A supervising layer uses it for
// best-effort remote cancellation before process exit.
type ExternalJob interface {
	JobID() string
}

// Pipeline runs the ordered generation stages against injected collaborators.
// Execution is strictly sequential; the ledger's first-use ordering and the
// previous-chapter carry-forward both depend on it.
type Pipeline struct {
	Backend       llm.Backend
	Model         string
	ContextWindow int

	Search search.Provider
	Crawl  CrawlProvider
	Store  *docstore.Store

	StageCache *cache.Stage
	Ledger     *ledger.Ledger
	Tracker    *usage.Tracker

	Breadth int
	Depth   int
	Locale  search.Locale

	// activeStage names the stage with an in-flight external call. Written by
	// the pipeline goroutine, read by a supervising goroutine.
	activeStage atomic.Value
}

// CrawlProvider mirrors crawl.Provider without importing it, keeping the
// dependency direction pipeline -> collaborators one-way for tests.
type CrawlProvider interface {
	Scrape(ctx context.Context, urls []string) ([]docstore.Document, float64, error)
}

// ActiveExternalID returns the identifier of the in-flight external call, if
// the currently active collaborator exposes one. Empty when no external call
// is running or the collaborator has no remote job notion. The pipeline takes
// no action on interrupts itself.
func (p *Pipeline) ActiveExternalID() string {
	stage, _ := p.activeStage.Load().(string)
	var c any
	switch stage {
	case StageSearch:
		c = p.Search
	case StageCrawl:
		c = p.Crawl
	default:
		return ""
	}
	if j, ok := c.(ExternalJob); ok {
		return j.JobID()
	}
	return ""
}

func (p *Pipeline) setActive(stage string) { p.activeStage.Store(stage) }
func (p *Pipeline) clearActive()           { p.activeStage.Store("") }

// Run executes the stages after clarification in strict order: queries,
// search, crawl, outline, chapter bodies, summary. The first stage failure
// terminates the run; accumulated usage is still available via the tracker.
func (p *Pipeline) Run(ctx context.Context, subject string, followups []Followup) (*Result, error) {
	queries, err := p.generateQueries(ctx, subject, followups)
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(queries)).Msg("search queries generated")

	results, err := p.searchStage(ctx, queries)
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(results)).Msg("search results after dedup")

	corpus, err := p.crawlStage(ctx, results)
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(corpus)).Msg("corpus assembled")

	outline, err := p.outlineStage(ctx, subject, followups, corpus)
	if err != nil {
		return nil, err
	}
	log.Info().Int("chapters", len(outline)).Msg("outline ready")

	chapters, err := p.chapterStage(ctx, subject, outline, corpus)
	if err != nil {
		return nil, err
	}

	summary, err := p.summaryStage(ctx, subject, chapters)
	if err != nil {
		return nil, err
	}

	return &Result{
		Subject:     subject,
		Queries:     queries,
		Corpus:      corpus,
		Chapters:    chapters,
		Abstract:    summary.Abstract,
		Conclusions: summary.Conclusions,
		References:  p.Ledger.FinalOrdering(),
		Usage:       p.Tracker.Totals(),
	}, nil
}

// generate issues one structured-output call, serving completed stages from
// the stage cache so reruns are cheap. Cached replays add no usage.
func (p *Pipeline) generate(ctx context.Context, stage, system, user string, v any) error {
	key := cache.KeyFrom(p.Model, system+"\n\n"+user)
	if raw, ok := p.StageCache.Get(key); ok {
		if err := llm.DecodeJSON(string(raw), v); err == nil {
			log.Debug().Str("stage", stage).Msg("stage served from cache")
			return nil
		}
		// Unreadable cache entry: fall through to a live call.
	}
	resp, err := p.Backend.Generate(ctx, llm.Request{System: system, User: user})
	if err != nil {
		return fmt.Errorf("%s call: %w", stage, err)
	}
	p.Tracker.AddGeneration(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if err := llm.DecodeJSON(resp.Content, v); err != nil {
		return err
	}
	p.StageCache.Put(key, []byte(llm.StripFences(resp.Content)))
	return nil
}
