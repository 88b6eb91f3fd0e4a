package pipeline

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/goreport/internal/search"
)

// Stage prompts follow a strict-JSON contract: the system message fixes the
// exact output schema, the user message carries only the stage inputs.

const clarifySystem = `You are a research assistant preparing a written report. Respond with strict JSON only, no narration. The JSON schema is {"questions": string[]}. Ask short yes/no questions that narrow the scope of the research subject. Never ask more questions than requested.`

func clarifyUser(subject string, breadth int) string {
	return fmt.Sprintf("Research subject: %s\n\nAsk up to %d clarifying yes/no questions.", subject, breadth)
}

const querySystem = `You are a research assistant planning web searches. Respond with strict JSON only, no narration. The JSON schema is {"queries": string[]}. Queries must be concise, diverse web search queries. Never return more queries than requested.`

func queryUser(subject string, followups []Followup, breadth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research subject: %s\n", subject)
	b.WriteString(renderFollowups(followups))
	fmt.Fprintf(&b, "\nGenerate up to %d search queries covering the subject and the clarified scope.", breadth)
	return b.String()
}

const outlineSystem = `You are a research writer planning a multi-chapter report. Respond with strict JSON only, no narration. The JSON schema is {"chapters": [{"number": number, "title": string}]}. Chapter numbers are unique positive integers. Base the outline only on the provided content blocks. Never return more chapters than requested.`

// outlineUser builds the outline prompt template without documents; the caller
// appends the full corpus because this stage takes it untruncated.
func outlineUser(subject string, followups []Followup, breadth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research subject: %s\n", subject)
	b.WriteString(renderFollowups(followups))
	fmt.Fprintf(&b, "\nPlan up to %d chapters for a report on the subject.\n\nSource content follows:\n", breadth)
	return b.String()
}

const chapterSystem = `You are a careful research writer producing one chapter of a report. Respond with strict JSON only, no narration. The JSON schema is {"summary": string, "paragraphs": [{"text": string, "references": number[]}]}. Each reference is the 1-based number of a <content i> block that supports the paragraph; use only the provided content blocks for facts and cite every factual claim. The summary is a short plain-text abstract of the chapter.`

// chapterTemplate builds the chapter-body prompt without documents so the
// budgeter can measure it before selecting the content blocks to append.
func chapterTemplate(subject string, outline []Chapter, ch Chapter, previous string, loc search.Locale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research subject: %s\n\nFull report outline:\n", subject)
	for _, o := range outline {
		fmt.Fprintf(&b, "%d. %s\n", o.Number, o.Title)
	}
	fmt.Fprintf(&b, "\nChapter to write now: %d. %s\n", ch.Number, ch.Title)
	if loc.Language != "" {
		fmt.Fprintf(&b, "Write in language: %s\n", loc.Language)
	}
	if strings.TrimSpace(previous) != "" {
		b.WriteString("\nChapters already written, for continuity (do not repeat them):\n<previous>\n")
		b.WriteString(previous)
		b.WriteString("\n</previous>\n")
	}
	b.WriteString("\nSource content follows:\n")
	return b.String()
}

const summarySystem = `You are a research writer finishing a report. Respond with strict JSON only, no narration. The JSON schema is {"abstract": string, "conclusions": string}. The abstract introduces the whole report; the conclusions draw together its findings.`

func summaryUser(subject string, chapters []ChapterContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research subject: %s\n\nChapter summaries:\n", subject)
	for _, ch := range chapters {
		fmt.Fprintf(&b, "%d. %s: %s\n", ch.Number, ch.Title, ch.Summary)
	}
	return b.String()
}

func renderFollowups(followups []Followup) string {
	var b strings.Builder
	for _, f := range followups {
		fmt.Fprintf(&b, "<followup>\nQ: %s\nA: %s\n</followup>\n", f.Question, f.Answer)
	}
	return b.String()
}
