// Package text holds the plain-text cleanup applied before chunking.
package text

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	bom = []byte{0xEF, 0xBB, 0xBF}

	// Three or more consecutive newlines collapse to a paragraph break.
	blankRunRe = regexp.MustCompile(`\n{3,}`)

	linkLineRe = regexp.MustCompile(`^\s*[-*]?\s*\[.*?\]\(.*?\)\s*$`)
)

// Normalize makes extracted text stable across upload sources: strips a
// UTF-8 BOM, converts CRLF line endings, trims trailing whitespace per
// line, and collapses runs of blank lines. Chunking the same logical
// content must yield the same bytes, or content-addressed chunk ids stop
// deduplicating.
func Normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, bom)
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))

	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	data = bytes.Join(lines, []byte("\n"))

	return blankRunRe.ReplaceAll(data, []byte("\n\n"))
}

// IsNoise identifies chunks too low-value to embed. The heuristics are
// conservative: better to let a borderline chunk through than filter
// useful content.
func IsNoise(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return true
	}

	// Ultra-short labels like "Overview" or "Getting Started".
	words := strings.Fields(trimmed)
	if len(trimmed) < 30 && len(words) <= 3 && !strings.Contains(trimmed, "\n") {
		return true
	}

	// Pure navigation link lists.
	var nonEmpty, links int
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if linkLineRe.MatchString(line) {
			links++
		}
	}
	if nonEmpty > 2 && float64(links)/float64(nonEmpty) > 0.7 {
		return true
	}

	// Short copyright or legal boilerplate. A full legal document the
	// user intentionally uploaded stays in.
	if len(trimmed) < 200 {
		lower := strings.ToLower(trimmed)
		if strings.Contains(trimmed, "©") || strings.Contains(lower, "all rights reserved") ||
			strings.Contains(lower, "terms of service") || strings.Contains(lower, "privacy policy") {
			return true
		}
	}

	return false
}
