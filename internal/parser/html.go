package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BodyNormalizer flattens HTML-looking message bodies to clean plain text.
// Both providers submit text content on the wire, so a body pasted from an
// HTML template has to be stripped of markup before dispatch. Plain-text
// bodies pass through untouched.
type BodyNormalizer struct {
	tagRegex        *regexp.Regexp
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
}

// NewBodyNormalizer creates a new body normalizer
func NewBodyNormalizer() *BodyNormalizer {
	return &BodyNormalizer{
		tagRegex:        regexp.MustCompile(`(?s)<[a-zA-Z!/][^>]*>`),
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		// Remove invisible Unicode characters (zero-width spaces, etc.)
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}]+`),
	}
}

// Normalize returns the plain-text form of a body. Bodies without markup are
// returned as-is.
func (n *BodyNormalizer) Normalize(body string) (string, error) {
	if !n.looksLikeHTML(body) {
		return body, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	// Drop non-content elements
	doc.Find("script, style, head, meta, link").Remove()

	// Add newlines before block elements so text does not run together
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()

	text = n.invisibleRegex.ReplaceAllString(text, "")

	// Collapse whitespace but preserve newlines
	text = n.whitespaceRegex.ReplaceAllString(text, " ")

	// Trim each line and drop empty ones
	lines := strings.Split(text, "\n")
	var cleanLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")

	text = n.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

// looksLikeHTML reports whether a body contains enough markup to be worth
// parsing. A stray "<" in prose is not markup.
func (n *BodyNormalizer) looksLikeHTML(body string) bool {
	return n.tagRegex.MatchString(body)
}
