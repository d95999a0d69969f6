package checker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Misspelling(t *testing.T) {
	matches, err := NewBuiltin().Check(context.Background(), "Teh cat sat.", Options{Language: "en-US"})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, SpellingRuleID, m.RuleID)
	assert.Equal(t, 0, m.FromPos)
	assert.Equal(t, 3, m.ToPos)
	assert.Equal(t, []string{"The"}, m.Replacements)
	assert.Equal(t, "Teh cat sat.", m.Sentence)
}

func TestMatchCase(t *testing.T) {
	tests := []struct {
		original, replacement, want string
	}{
		{"teh", "the", "the"},
		{"Teh", "the", "The"},
		{"TEH", "the", "THE"},
		{"Alot", "a lot", "A lot"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchCase(tt.original, tt.replacement), tt.original)
	}
}

func TestBuiltin_Rules(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		rule     string
		from, to int
		repl     string
	}{
		{"word repeat", "This is the the end.", WordRepeatRuleID, 8, 15, "the"},
		{"repeated whitespace", "One  two.", WhitespaceRuleID, 3, 5, " "},
		{"space before comma", "One , two.", PunctuationSpaceRuleID, 3, 5, ","},
		{"space before period", "The end .", PunctuationSpaceRuleID, 7, 9, "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := NewBuiltin().Check(context.Background(), tt.text, Options{Language: "en-US"})
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, tt.rule, matches[0].RuleID)
			assert.Equal(t, tt.from, matches[0].FromPos)
			assert.Equal(t, tt.to, matches[0].ToPos)
			assert.Equal(t, []string{tt.repl}, matches[0].Replacements)
		})
	}
}

func TestBuiltin_NoFalsePositives(t *testing.T) {
	texts := []string{
		"I think that that is fine.",
		"    indented code block",
		"trailing spaces  \nnext line",
		"Version 1 1 is not a repeat.",
		"Use .NET for this.",
		"",
	}
	for _, text := range texts {
		matches, err := NewBuiltin().Check(context.Background(), text, Options{Language: "en-US"})
		require.NoError(t, err)
		assert.Empty(t, matches, text)
	}
}

func TestBuiltin_DisabledRules(t *testing.T) {
	matches, err := NewBuiltin().Check(context.Background(), "Teh cat sat.", Options{
		Language:      "en-US",
		DisabledRules: []string{SpellingRuleID},
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBuiltin_SentenceStartIsOptIn(t *testing.T) {
	text := "The cat sat. then it left."

	matches, err := NewBuiltin().Check(context.Background(), text, Options{Language: "en-US"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = NewBuiltin().Check(context.Background(), text, Options{
		Language:     "en-US",
		EnabledRules: []string{SentenceStartCaseRuleID},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 13, matches[0].FromPos)
	assert.Equal(t, []string{"Then"}, matches[0].Replacements)
	assert.Equal(t, "then it left.", matches[0].Sentence)

	matches, err = NewBuiltin().Check(context.Background(), "first para.\n\nsecond para.", Options{Language: "en-US", Picky: true})
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestBuiltin_NonEnglishSkipsEnglishRules(t *testing.T) {
	matches, err := NewBuiltin().Check(context.Background(), "Teh  Katze.", Options{Language: "de-DE"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, WhitespaceRuleID, matches[0].RuleID)
}

func TestBuiltin_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuiltin().Check(ctx, "Teh cat sat.", Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("Don't stop, café!")
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		words = append(words, tok.word)
	}
	assert.Equal(t, []string{"Don't", "stop", "café"}, words)
	assert.Equal(t, 12, tokens[2].start)
	assert.Equal(t, 17, tokens[2].end)
}
