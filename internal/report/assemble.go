package report

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/goreport/internal/ledger"
	"github.com/hyperifyio/goreport/internal/pipeline"
)

// Assemble renders the finalized run into the canonical markdown document:
// title, abstract, table of contents, chapters with their summaries, the
// conclusions, and the bibliography in citation-first-use order. The output is
// a pure function of its inputs; assembling the same run twice yields
// byte-identical text.
func Assemble(subject, abstract string, chapters []pipeline.ChapterContent, conclusions string, refs []ledger.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(subject))

	if s := strings.TrimSpace(abstract); s != "" {
		b.WriteString("## Abstract\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	if len(chapters) > 0 {
		b.WriteString("## Table of contents\n\n")
		for _, ch := range chapters {
			fmt.Fprintf(&b, "%d. %s\n", ch.Number, ch.Title)
		}
		b.WriteString("\n")
	}

	for _, ch := range chapters {
		fmt.Fprintf(&b, "## %d. %s\n\n", ch.Number, ch.Title)
		if s := strings.TrimSpace(ch.Summary); s != "" {
			fmt.Fprintf(&b, "*%s*\n\n", s)
		}
		if s := strings.TrimSpace(ch.Text); s != "" {
			b.WriteString(s)
			b.WriteString("\n\n")
		}
	}

	if s := strings.TrimSpace(conclusions); s != "" {
		b.WriteString("## Conclusions\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	if len(refs) > 0 {
		b.WriteString("## References\n\n")
		for _, r := range refs {
			title := r.Title
			if strings.TrimSpace(title) == "" {
				title = r.URL
			}
			fmt.Fprintf(&b, "%d. [%s](%s)\n", r.Index, title, r.URL)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
