package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the artifact base name from the subject: lower-cased, runs of
// non-alphanumerics collapsed to a single separator, no leading or trailing
// separator. Pure and deterministic so the same subject always maps to the
// same files.
func Slug(subject string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(subject)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "report"
	}
	return s
}

// Write renders and writes the final artifacts under dir: the canonical
// markdown, the styled HTML, and optionally a simple PDF. It returns the paths
// written. A PDF failure is logged rather than failing the run, since the two
// primary renderings are already durable by then.
func Write(dir, subject, canonical, locale string, withPDF bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}
	base := filepath.Join(dir, Slug(subject))

	mdPath := base + ".md"
	if err := os.WriteFile(mdPath, []byte(canonical), 0o644); err != nil {
		return nil, fmt.Errorf("write markdown: %w", err)
	}
	paths := []string{mdPath}

	styled, err := StyledHTML(canonical, subject, locale)
	if err != nil {
		return paths, err
	}
	htmlPath := base + ".html"
	if err := os.WriteFile(htmlPath, []byte(styled), 0o644); err != nil {
		return paths, fmt.Errorf("write html: %w", err)
	}
	paths = append(paths, htmlPath)

	if withPDF {
		pdfPath := base + ".pdf"
		if err := writePDF(canonical, pdfPath); err != nil {
			log.Warn().Err(err).Msg("pdf rendering failed; markdown and html written")
		} else {
			paths = append(paths, pdfPath)
		}
	}
	return paths, nil
}
