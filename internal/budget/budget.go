package budget

import (
	"fmt"
	"math"
	"strings"

	"github.com/hyperifyio/goreport/internal/docstore"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	// Ceiling keeps the estimate conservative to avoid overruns.
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string. It is a pure
// function of the text: the same text always yields the same count, so
// selection stays deterministic without calling any model.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// WrapContent wraps a document's text in its positional delimiter. The index
// is 1-based and reflects the document's position in the accepted selection,
// not its position in the full corpus.
func WrapContent(position int, text string) string {
	return fmt.Sprintf("<content %d>\n%s\n</content %d>", position, text, position)
}

// SelectDocuments returns the longest prefix of docs that fits the context
// window alongside the prompt template. Documents are walked in their given
// order and accepted only while the running token total, including each
// candidate's positional delimiter, stays within contextWindow; the walk stops
// at the first document that would overflow instead of skipping ahead to
// smaller ones, preserving order-correlated relevance. When the template alone
// meets or exceeds the window the selection is empty rather than an error.
func SelectDocuments(template string, docs []docstore.Document, contextWindow int) []docstore.Document {
	total := EstimateTokens(template)
	if total >= contextWindow {
		return nil
	}
	selected := make([]docstore.Document, 0, len(docs))
	for _, d := range docs {
		cost := EstimateTokens(WrapContent(len(selected)+1, d.Text))
		if total+cost > contextWindow {
			break
		}
		total += cost
		selected = append(selected, d)
	}
	return selected
}

// RenderContents renders the selected documents as delimited blocks in
// selection order, ready to append to a prompt template.
func RenderContents(docs []docstore.Document) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(WrapContent(i+1, d.Text))
	}
	return b.String()
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a conservative default; explicit
// configuration always wins over this heuristic.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for suffix, v := range suffixMax {
		if strings.HasSuffix(name, suffix) {
			return v
		}
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// knownModelMax contains rough context sizes for common model identifiers.
// Best effort only; it does not need to be exhaustive.
var knownModelMax = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4-turbo":       128_000,
	"gpt-3.5-turbo":     16_384,
	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,
	"llama-3":           8_192,
	"llama-3.1":         128_000,
}

var suffixMax = map[string]int{
	"1m":   1_000_000,
	"512k": 512_000,
	"200k": 200_000,
	"128k": 128_000,
}
