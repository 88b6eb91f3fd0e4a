package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreport/internal/budget"
	"github.com/hyperifyio/goreport/internal/docstore"
	"github.com/hyperifyio/goreport/internal/search"
)

// openEndedQuestion is appended after the model's yes/no questions so the user
// can always add unprompted context.
const openEndedQuestion = "Is there anything else the report should take into account?"

// Clarify runs the first stage: up to Breadth yes/no questions from the model,
// plus the fixed open-ended question. Blank questions from the model are
// skipped. Answering is the supervising layer's concern; pass the answered
// followups to Run.
func (p *Pipeline) Clarify(ctx context.Context, subject string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := p.generate(ctx, StageClarify, clarifySystem, clarifyUser(subject, p.Breadth), &out); err != nil {
		return nil, &StageError{Stage: StageClarify, Err: err}
	}
	questions := make([]string, 0, p.Breadth+1)
	for _, q := range out.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == p.Breadth {
			break
		}
	}
	return append(questions, openEndedQuestion), nil
}

func (p *Pipeline) generateQueries(ctx context.Context, subject string, followups []Followup) ([]string, error) {
	var out struct {
		Queries []string `json:"queries"`
	}
	if err := p.generate(ctx, StageQueries, querySystem, queryUser(subject, followups, p.Breadth), &out); err != nil {
		return nil, &StageError{Stage: StageQueries, Err: err}
	}
	queries := make([]string, 0, p.Breadth)
	for _, q := range out.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == p.Breadth {
			break
		}
	}
	if len(queries) == 0 {
		// Deterministic fallback keeps the run moving on a thin model answer.
		queries = append(queries, subject)
	}
	return queries, nil
}

func (p *Pipeline) searchStage(ctx context.Context, queries []string) ([]search.Result, error) {
	p.setActive(StageSearch)
	defer p.clearActive()
	results, cost, err := p.Search.Search(ctx, queries, p.Locale, p.Depth)
	p.Tracker.AddServiceCost(cost)
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	return search.Dedupe(results), nil
}

// crawlStage partitions result URLs into cache hits and misses, crawls only
// the misses, writes them back, and returns hits first then fresh documents.
// Downstream consumers rely on corpus order only for truncation preference.
func (p *Pipeline) crawlStage(ctx context.Context, results []search.Result) ([]docstore.Document, error) {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	hits, misses := p.Store.Partition(ctx, urls)
	log.Debug().Int("hits", len(hits)).Int("misses", len(misses)).Msg("cache partition")

	corpus := hits
	if len(misses) > 0 {
		p.setActive(StageCrawl)
		fetched, cost, err := p.Crawl.Scrape(ctx, misses)
		p.clearActive()
		p.Tracker.AddServiceCost(cost)
		if err != nil {
			return nil, &StageError{Stage: StageCrawl, Err: err}
		}
		for _, d := range fetched {
			if err := p.Store.Put(ctx, d); err != nil {
				log.Warn().Err(err).Str("url", d.URL).Msg("document cache write failed; continuing")
			}
			corpus = append(corpus, d)
		}
	}
	if len(corpus) == 0 {
		return nil, &StageError{Stage: StageCrawl, Err: ErrNoSources}
	}
	return corpus, nil
}

// outlineStage feeds the full corpus without truncation; overflowing the
// context window here is fatal for the call.
func (p *Pipeline) outlineStage(ctx context.Context, subject string, followups []Followup, corpus []docstore.Document) ([]Chapter, error) {
	user := outlineUser(subject, followups, p.Breadth) + budget.RenderContents(corpus)
	if budget.EstimateTokens(outlineSystem)+budget.EstimateTokens(user) > p.ContextWindow {
		return nil, &StageError{Stage: StageOutline, Err: ErrInputTooLarge}
	}
	var out struct {
		Chapters []Chapter `json:"chapters"`
	}
	if err := p.generate(ctx, StageOutline, outlineSystem, user, &out); err != nil {
		return nil, &StageError{Stage: StageOutline, Err: err}
	}
	outline := normalizeOutline(out.Chapters, p.Breadth)
	if len(outline) == 0 {
		return nil, &StageError{Stage: StageOutline, Err: ErrEmptyOutline}
	}
	return outline, nil
}

// normalizeOutline drops blank titles, sorts by chapter number, renumbers
// duplicates in encounter order, and caps the count at breadth. Numbers from
// the model are not assumed contiguous or sorted.
func normalizeOutline(in []Chapter, breadth int) []Chapter {
	out := make([]Chapter, 0, len(in))
	for _, ch := range in {
		ch.Title = strings.TrimSpace(ch.Title)
		if ch.Title == "" {
			continue
		}
		out = append(out, ch)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	seen := map[int]bool{}
	next := 1
	for i := range out {
		if out[i].Number < 1 || seen[out[i].Number] {
			for seen[next] {
				next++
			}
			out[i].Number = next
		}
		seen[out[i].Number] = true
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if breadth > 0 && len(out) > breadth {
		out = out[:breadth]
	}
	return out
}

// chapterStage generates chapter bodies strictly in ascending number order:
// later chapters see earlier chapters' full text and the ledger assigns
// citation indices in first-use order across the whole run.
func (p *Pipeline) chapterStage(ctx context.Context, subject string, outline []Chapter, corpus []docstore.Document) ([]ChapterContent, error) {
	chapters := make([]ChapterContent, 0, len(outline))
	var previous strings.Builder
	for _, ch := range outline {
		template := chapterTemplate(subject, outline, ch, previous.String(), p.Locale)
		selected := budget.SelectDocuments(chapterSystem+template, corpus, p.ContextWindow)
		if len(selected) < len(corpus) {
			log.Debug().Int("selected", len(selected)).Int("corpus", len(corpus)).
				Int("chapter", ch.Number).Msg("corpus truncated to fit context window")
		}
		var out struct {
			Summary    string      `json:"summary"`
			Paragraphs []Paragraph `json:"paragraphs"`
		}
		if err := p.generate(ctx, StageChapters, chapterSystem, template+budget.RenderContents(selected), &out); err != nil {
			return chapters, &StageError{Stage: StageChapters, Err: err}
		}
		text := p.annotate(out.Paragraphs, selected)
		chapters = append(chapters, ChapterContent{
			Number:  ch.Number,
			Title:   ch.Title,
			Text:    text,
			Summary: strings.TrimSpace(out.Summary),
		})
		if previous.Len() > 0 {
			previous.WriteString("\n\n")
		}
		previous.WriteString(text)
		log.Info().Int("chapter", ch.Number).Str("title", ch.Title).Msg("chapter written")
	}
	return chapters, nil
}

// annotate resolves each paragraph's call-local reference indices through the
// ledger and appends the resulting citation markers. Out-of-range local
// indices are dropped rather than failing the stage.
func (p *Pipeline) annotate(paragraphs []Paragraph, selected []docstore.Document) string {
	parts := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		text := strings.TrimSpace(para.Text)
		if text == "" {
			continue
		}
		for _, ref := range para.References {
			if ref < 1 || ref > len(selected) {
				log.Debug().Int("ref", ref).Int("selected", len(selected)).Msg("dropping out-of-range reference")
				continue
			}
			doc := selected[ref-1]
			p.Ledger.SetTitle(doc.URL, doc.Title)
			text += " " + p.Ledger.RenderMarker(doc.URL)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

type summaryResult struct {
	Abstract    string `json:"abstract"`
	Conclusions string `json:"conclusions"`
}

func (p *Pipeline) summaryStage(ctx context.Context, subject string, chapters []ChapterContent) (summaryResult, error) {
	var out summaryResult
	if err := p.generate(ctx, StageSummary, summarySystem, summaryUser(subject, chapters), &out); err != nil {
		return summaryResult{}, &StageError{Stage: StageSummary, Err: err}
	}
	return out, nil
}
