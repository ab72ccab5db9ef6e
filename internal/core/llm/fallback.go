package llm

import (
	"regexp"
	"strings"
)

const (
	fallbackHeader = "Summary (AI Service Temporarily Unavailable - Basic Extraction):\n\n"
	fallbackFooter = "\n\nNote: This is a basic text extraction. For an AI-generated summary with better " +
		"understanding, please try again in a few minutes when the AI service is available."

	// FallbackNotice accompanies responses built by ExtractiveSummary.
	FallbackNotice = "AI service was temporarily unavailable. This is a basic extraction - " +
		"for better results, try again in a few minutes."
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

type fallbackShape struct {
	sentences    int
	perParagraph int
}

var fallbackShapes = map[Length]fallbackShape{
	LengthShort:  {sentences: 8, perParagraph: 2},
	LengthMedium: {sentences: 12, perParagraph: 3},
	LengthLong:   {sentences: 18, perParagraph: 4},
}

// ExtractiveSummary builds a summary without any AI backend by grouping the
// leading sentences of text into paragraphs. It returns "" for empty text.
func ExtractiveSummary(text string, l Length) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	body := strings.Join(extractiveParagraphs(text, l), "\n\n")
	return fallbackHeader + body + fallbackFooter
}

func extractiveParagraphs(text string, l Length) []string {
	shape, ok := fallbackShapes[l]
	if !ok {
		shape = fallbackShapes[LengthLong]
	}

	var sentences []string
	for _, s := range sentenceSplitRe.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) > 20 && len(strings.Fields(s)) > 4 {
			sentences = append(sentences, s)
			if len(sentences) == shape.sentences {
				break
			}
		}
	}

	var paragraphs []string
	for i := 0; i < len(sentences); i += shape.perParagraph {
		end := min(i+shape.perParagraph, len(sentences))
		paragraphs = append(paragraphs, strings.Join(sentences[i:end], ". ")+".")
	}
	return paragraphs
}
