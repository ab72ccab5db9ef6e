package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// Length is the requested size class of a summary.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

const defaultInputLimit = 12000

var inputLimits = map[Length]int{
	LengthShort:  8000,
	LengthMedium: 15000,
	LengthLong:   25000,
}

var paragraphTargets = map[Length]string{
	LengthShort:  "3-4 paragraphs",
	LengthMedium: "5-6 paragraphs",
	LengthLong:   "7-9 paragraphs",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParseLength validates a user supplied length. Empty means medium.
func ParseLength(s string) (Length, error) {
	switch l := Length(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LengthMedium, nil
	case LengthShort, LengthMedium, LengthLong:
		return l, nil
	default:
		return "", fmt.Errorf("invalid summary length %q: use short, medium, or long", s)
	}
}

// InputLimit is the number of characters of document text sent for a length.
func InputLimit(l Length) int {
	if n, ok := inputLimits[l]; ok {
		return n
	}
	return defaultInputLimit
}

// PrepareInput collapses whitespace and keeps the prefix allowed for l. Long
// documents are summarized from their beginning only.
func PrepareInput(text string, l Length) string {
	s := whitespaceRe.ReplaceAllString(text, " ")
	if r := []rune(s); len(r) > InputLimit(l) {
		s = string(r[:InputLimit(l)])
	}
	return strings.TrimSpace(s)
}

// BuildPrompt renders the summarization instruction around text.
func BuildPrompt(text string, l Length) string {
	target, ok := paragraphTargets[l]
	if !ok {
		target = paragraphTargets[LengthMedium]
	}
	return fmt.Sprintf(`Please provide a comprehensive and well-structured summary of the following document text.

SUMMARY REQUIREMENTS:
- Length: %s
- Format: Multiple well-structured paragraphs
- Content: Cover all main ideas, key points, and important details
- Style: Clear, concise, and organized
- Focus: Essential information that captures the document's core content

DOCUMENT TEXT:
"%s"

Please create a thorough summary that would help someone understand the document's main content without reading the entire text. Organize the summary into logical paragraphs that flow naturally.`, target, text)
}
