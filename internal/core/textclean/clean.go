// Package textclean normalizes extracted document text and scores how much of it
// is usable prose.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Quality gate thresholds.
const (
	MinTextLength      = 50
	MinMeaningfulWords = 10
	specialCharRatio   = 0.30
)

var (
	bulletRe    = regexp.MustCompile(`[•\-\*]\s*`)
	junkRe      = regexp.MustCompile(`[^\w\s.,!?;:()@#$%^&*+=/\\"'-]`)
	spaceRe     = regexp.MustCompile(`\s+`)
	letterRe    = regexp.MustCompile(`[a-zA-Z]`)
	symbolsRe   = regexp.MustCompile(`^[0-9\W]+$`)
	nonWordSpRe = regexp.MustCompile(`[^\w\s]`)
)

// Reason explains why a text failed the quality gate.
type Reason string

const (
	ReasonInsufficientText      Reason = "insufficient_text"
	ReasonTooFewMeaningfulWords Reason = "too_few_meaningful_words"
)

// Verdict is the outcome of Validate.
type Verdict struct {
	IsValid bool
	Reason  Reason
}

// Clean strips bullets and characters outside the word/punctuation whitelist,
// collapses whitespace to single spaces and trims the ends. Collapsing all
// whitespace also leaves no runs of blank lines behind.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := bulletRe.ReplaceAllString(raw, "")
	return StripJunk(s)
}

// StripJunk is Clean without bullet removal. The raw-stream scanner uses it so
// hyphenated literals survive.
func StripJunk(raw string) string {
	if raw == "" {
		return ""
	}
	s := junkRe.ReplaceAllString(raw, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsMeaningfulWord reports whether a token is longer than two characters,
// contains a Latin letter and is not made only of digits and punctuation.
func IsMeaningfulWord(w string) bool {
	return utf8.RuneCountInString(w) > 2 && letterRe.MatchString(w) && !symbolsRe.MatchString(w)
}

// MeaningfulWords returns the whitespace separated tokens of text that pass IsMeaningfulWord.
func MeaningfulWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if IsMeaningfulWord(w) {
			out = append(out, w)
		}
	}
	return out
}

// CountMeaningfulWords counts the tokens of text that pass IsMeaningfulWord.
func CountMeaningfulWords(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if IsMeaningfulWord(w) {
			n++
		}
	}
	return n
}

// IsMostlySpecialChars reports whether fewer than 30% of the non-space
// characters are word characters or spaces. Empty text counts as special.
func IsMostlySpecialChars(text string) bool {
	total := utf8.RuneCountInString(spaceRe.ReplaceAllString(text, ""))
	if total == 0 {
		return true
	}
	kept := utf8.RuneCountInString(nonWordSpRe.ReplaceAllString(text, ""))
	return float64(kept)/float64(total) < specialCharRatio
}

// Validate runs the quality gate applied after every extraction attempt.
func Validate(text string) Verdict {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return Verdict{Reason: ReasonInsufficientText}
	}
	if CountMeaningfulWords(text) < MinMeaningfulWords {
		return Verdict{Reason: ReasonTooFewMeaningfulWords}
	}
	return Verdict{IsValid: true}
}

// MeaningfulSample joins the meaningful words of text and cuts the result to
// at most max runes. Used for log lines.
func MeaningfulSample(text string, max int) string {
	s := strings.Join(MeaningfulWords(text), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
