package crawl

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// extractFallback pulls readable text out of raw HTML when readability cannot
// parse the page. It prefers <main> or <article> over <body> and skips obvious
// boilerplate containers.
func extractFallback(body []byte) (title, text string) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil || root == nil {
		return "", ""
	}
	if t := findFirst(root, "title"); t != nil {
		title = strings.TrimSpace(textOf(t))
	}
	content := findFirst(root, "main")
	if content == nil {
		content = findFirst(root, "article")
	}
	if content == nil {
		content = findFirst(root, "body")
	}
	if content == nil {
		return title, ""
	}
	var b strings.Builder
	collect(&b, content)
	return title, collapseBlankLines(b.String())
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "header": true, "aside": true,
}

var blockElements = map[string]bool{
	"p": true, "li": true, "pre": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func collect(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if skipElements[n.Data] {
			return
		}
		if blockElements[n.Data] {
			if s := strings.TrimSpace(collapseSpace(textOf(n))); s != "" {
				b.WriteString(s)
				b.WriteString("\n\n")
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(b, c)
	}
}

func findFirst(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, name); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(m *html.Node) {
		if m.Type == html.TextNode {
			b.WriteString(m.Data)
		}
		if m.Type == html.ElementNode && skipElements[m.Data] {
			return
		}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
