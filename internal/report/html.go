package report

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/language"
)

// rtlLanguages is the fixed set of language codes rendered right-to-left.
var rtlLanguages = map[string]bool{
	"ar": true, "he": true, "fa": true, "ur": true,
	"ps": true, "sd": true, "yi": true, "dv": true,
}

// IsRTL reports whether the locale's language renders right-to-left. The tag
// is parsed leniently; unparseable input defaults to left-to-right.
func IsRTL(locale string) bool {
	t, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return false
	}
	base, _ := t.Base()
	return rtlLanguages[base.String()]
}

// citationLinkRe matches anchors whose text is purely numeric, which is what a
// [n](url) citation marker renders to. Bibliography links carry titles and are
// left untouched.
var citationLinkRe = regexp.MustCompile(`<a href="([^"]*)">(\d+)</a>`)

// StyledHTML converts the canonical markdown into the styled secondary
// rendering: a standalone HTML page with every citation marker turned into a
// superscript hyperlink, and the document direction chosen from the locale.
// The transform is deterministic; same input, same bytes.
func StyledHTML(markdown, title, locale string) (string, error) {
	var body bytes.Buffer
	if err := goldmark.New().Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	rendered := citationLinkRe.ReplaceAllString(body.String(), `<sup><a href="$1">$2</a></sup>`)

	dir := "ltr"
	if IsRTL(locale) {
		dir = "rtl"
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html dir=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n", dir)
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>\n" + styleSheet + "</style>\n</head>\n<body>\n")
	b.Write([]byte(rendered))
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

const styleSheet = `body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: Georgia, serif; line-height: 1.6; }
h1, h2 { font-family: Helvetica, Arial, sans-serif; }
sup a { text-decoration: none; }
`
