// Package sanitize cleans visitor and owner supplied text before it is stored or echoed to
// third parties.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	inlineSpace     = regexp.MustCompile(`[^\S\n]+`)
	repeatedNewline = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes HTML tags, decoding entities once so encoded tags are removed too.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Line is for single-line fields such as names, titles and UTM values.
// All whitespace runs, newlines included, become a single space.
func Line(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}

// Text is for multi-line copy such as thank-you sublines. Paragraph breaks survive
// but are capped at one blank line.
func Text(s string) string {
	result := strings.ReplaceAll(StripHTML(s), "\r\n", "\n")
	result = inlineSpace.ReplaceAllString(result, " ")

	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	result = strings.Join(lines, "\n")
	return strings.TrimSpace(repeatedNewline.ReplaceAllString(result, "\n\n"))
}
