package chunker

import (
	"regexp"
	"strings"
)

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	excessNL     = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted PDF text before chunking: runs of spaces and
// tabs collapse to one space, three or more newlines collapse to exactly two,
// and control characters other than tab and newline are removed.
func CleanText(text string) string {
	text = horizontalWS.ReplaceAllString(text, " ")
	text = strings.Map(dropControl, text)
	text = excessNL.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func dropControl(r rune) rune {
	if r == '\n' || r == '\t' {
		return r
	}
	if r < 0x20 || r == 0x7F {
		return -1
	}
	return r
}
