package exam

import (
	"regexp"
	"strings"
)

// PaperDelimiter separates a question paper body from trailing commentary.
const PaperDelimiter = "────────────────────────────────────────"

// PaperMarker is the prefix that tags a message as a downloadable paper.
const PaperMarker = "[[PAPER]]"

var (
	maxMarksRegex = regexp.MustCompile(`(?i)max(imum)?\.?\s*marks?\s*[:\-]?\s*\d+`)
	sectionRegex  = regexp.MustCompile(`(?im)^\s*[#*]*\s*section\s+[a-e]\b`)
)

// SplitPaper cuts text at the first delimiter. Without a delimiter the whole
// text is the body and commentary is empty.
func SplitPaper(text string) (body, commentary string) {
	before, after, found := strings.Cut(text, PaperDelimiter)
	if !found {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// IsPaper reports whether text looks like a question paper rather than dialogue.
func IsPaper(text string) bool {
	if strings.HasPrefix(strings.TrimSpace(text), PaperMarker) {
		return true
	}
	return maxMarksRegex.MatchString(text) && sectionRegex.MatchString(text)
}

// StripPaperMarker removes the paper prefix marker, if present.
func StripPaperMarker(text string) string {
	trimmed := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(trimmed, PaperMarker); ok {
		return strings.TrimSpace(rest)
	}
	return text
}
