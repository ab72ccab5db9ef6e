package textclean

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: " \n\t ", want: ""},
		{name: "bullets removed", in: "• first\n- second\n* third", want: "first second third"},
		{name: "junk replaced", in: "price€ 10 ©2024 done", want: "price 10 2024 done"},
		{name: "whitespace collapsed", in: "a  b\n\n\n\nc", want: "a b c"},
		{name: "punctuation kept", in: `Hello, world! (ok) "quote" a/b 50% #tag`, want: `Hello, world! (ok) "quote" a/b 50% #tag`},
		{name: "hyphen stripped like a bullet", in: "well-known", want: "wellknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"• bullet - list * item",
		"mixed ünïcödé and \x00\x01 control bytes",
		"  lots\n\n\n\nof\t\tspace  ",
		"a - - - b ** c",
		"\xff\xfe invalid utf8 \xc3\x28",
		`escapes \( \) \\ "quoted" 'single'`,
		"line one.\r\nline two!\r\n\r\n\r\nline three?",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCountMeaningfulWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "ab abc 123 a1!", want: 2},
		{in: "", want: 0},
		{in: "!!! ### 2024 ...", want: 0},
		{in: "the quick brown fox", want: 4},
		{in: "it is an ox", want: 0},
		{in: "x1y z__ 12a", want: 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountMeaningfulWords(tt.in), "input %q", tt.in)
	}
}

func TestIsMostlySpecialChars(t *testing.T) {
	assert.True(t, IsMostlySpecialChars(""))
	assert.True(t, IsMostlySpecialChars("   "))
	assert.True(t, IsMostlySpecialChars("%%%%%%%%%%%%%%%% ab"))
	assert.False(t, IsMostlySpecialChars("regular sentence with words"))
	assert.False(t, IsMostlySpecialChars("some (parenthetical) text, ok?"))
}

func TestValidate(t *testing.T) {
	t.Run("short text is insufficient", func(t *testing.T) {
		for _, in := range []string{"", "short", strings.Repeat("word ", 9)} {
			v := Validate(in)
			assert.False(t, v.IsValid)
			assert.Equal(t, ReasonInsufficientText, v.Reason, "input %q", in)
		}
	})

	t.Run("long text with few words", func(t *testing.T) {
		v := Validate(strings.Repeat("12345 ", 20))
		assert.False(t, v.IsValid)
		assert.Equal(t, ReasonTooFewMeaningfulWords, v.Reason)
	})

	t.Run("valid text", func(t *testing.T) {
		v := Validate("This document explains how the extraction pipeline handles scanned files and broken tables.")
		assert.True(t, v.IsValid)
		assert.Empty(t, v.Reason)
	})
}

func TestMeaningfulSample(t *testing.T) {
	s := MeaningfulSample("ab !! alpha 42 beta gamma", 100)
	assert.Equal(t, "alpha beta gamma", s)

	long := MeaningfulSample(strings.Repeat("word ", 100), 10)
	require.True(t, strings.HasSuffix(long, "..."))
	assert.Equal(t, "word word ...", long)
}
