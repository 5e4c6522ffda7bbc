package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DescriptionCleaner strips residual scraped HTML out of job descriptions
// before they are embedded in a scoring prompt.
type DescriptionCleaner struct {
	removeTags []string
}

// NewDescriptionCleaner creates a new description cleaner instance
func NewDescriptionCleaner() *DescriptionCleaner {
	return &DescriptionCleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"form", "input", "button", "select", "textarea",
			"nav", "header", "footer", "aside",
			"svg", "path", "meta", "link",
		},
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText returns the plain text of a possibly-HTML description with
// collapsed whitespace. Non-HTML input passes through unchanged apart from
// whitespace normalization.
func (dc *DescriptionCleaner) CleanText(description string) string {
	if !strings.Contains(description, "<") {
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(description, " "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(description, " "))
	}

	for _, tag := range dc.removeTags {
		doc.Find(tag).Remove()
	}

	text := doc.Text()
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Truncate caps the cleaned text at maxLen runes to fit token limits.
func (dc *DescriptionCleaner) Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
