package checker

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/hpungsan/proofd/internal/settings"
)

// RuleMatch is one issue reported by a rule engine. Offsets are byte offsets
// into the text that was handed to the engine.
type RuleMatch struct {
	RuleID       string   `json:"rule_id"`
	Category     string   `json:"category,omitempty"`
	Message      string   `json:"message"`
	ShortMessage string   `json:"short_message,omitempty"`
	Sentence     string   `json:"sentence,omitempty"`
	FromPos      int      `json:"from_pos"`
	ToPos        int      `json:"to_pos"`
	Replacements []string `json:"replacements,omitempty"`
}

// Fragment describes how a sub-range of the document was interpreted before
// it was handed to the engine.
type Fragment struct {
	CodeLanguageID string `json:"code_language_id"`
	Language       string `json:"language"`
	FromPos        int    `json:"from_pos"`
	ToPos          int    `json:"to_pos"`
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Request is one document check.
type Request struct {
	URI        string
	LanguageID string
	Text       string
	Span       *Span // nil checks the whole text
}

// Result pairs matches with the fragments they were found in.
type Result struct {
	Matches   []RuleMatch `json:"matches"`
	Fragments []Fragment  `json:"fragments"`
}

// Options are the engine-facing subset of the settings.
type Options struct {
	Language      string
	MotherTongue  string
	EnabledRules  []string
	DisabledRules []string
	Picky         bool
}

// Engine is a rule-checking backend.
type Engine interface {
	Check(ctx context.Context, text string, opts Options) ([]RuleMatch, error)
}

// EngineFactory builds an engine for the given settings.
type EngineFactory func(s settings.Settings) (Engine, error)

// DocumentChecker runs documents through an engine and applies the
// settings-driven filters (dictionary, hidden false positives).
type DocumentChecker struct {
	settings *settings.Manager
	factory  EngineFactory

	mu          sync.Mutex
	engine      Engine
	engineBuilt bool
	builtFrom   settings.Settings
}

// NewDocumentChecker creates a DocumentChecker.
func NewDocumentChecker(mgr *settings.Manager, factory EngineFactory) *DocumentChecker {
	return &DocumentChecker{
		settings: mgr,
		factory:  factory,
	}
}

// Check implements the session-facing checker.
func (c *DocumentChecker) Check(ctx context.Context, req Request) (Result, error) {
	current := c.settings.Current()
	result := Result{Matches: []RuleMatch{}, Fragments: []Fragment{}}

	if !current.IsEnabled(req.LanguageID) {
		return result, nil
	}

	start, end := 0, len(req.Text)
	if req.Span != nil {
		start = clamp(req.Span.Start, 0, len(req.Text))
		end = clamp(req.Span.End, start, len(req.Text))
	}
	text := req.Text[start:end]

	result.Fragments = append(result.Fragments, Fragment{
		CodeLanguageID: req.LanguageID,
		Language:       current.Language,
		FromPos:        start,
		ToPos:          end,
	})

	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	engine, err := c.engineFor(current)
	if err != nil {
		return result, err
	}

	matches, err := engine.Check(ctx, text, Options{
		Language:      current.Language,
		MotherTongue:  current.MotherTongue,
		EnabledRules:  current.EnabledRulesFor(current.Language),
		DisabledRules: current.DisabledRulesFor(current.Language),
		Picky:         current.EnablePickyRules,
	})
	if err != nil {
		return result, err
	}

	dictionary := current.DictionaryFor(current.Language)
	hidden := compileHidden(current.HiddenFalsePositivesFor(current.Language))

	for _, m := range matches {
		m.FromPos = clamp(m.FromPos, 0, len(text))
		m.ToPos = clamp(m.ToPos, m.FromPos, len(text))
		if IsSpellingRule(m.RuleID) && dictionary[text[m.FromPos:m.ToPos]] {
			continue
		}
		if isHidden(m, hidden) {
			continue
		}
		m.FromPos += start
		m.ToPos += start
		result.Matches = append(result.Matches, m)
	}

	slices.SortStableFunc(result.Matches, func(a, b RuleMatch) int {
		if a.FromPos != b.FromPos {
			return a.FromPos - b.FromPos
		}
		return a.ToPos - b.ToPos
	})

	return result, nil
}

// engineFor returns the cached engine, rebuilding it when an engine-relevant
// setting changed since it was built.
func (c *DocumentChecker) engineFor(s settings.Settings) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engineBuilt && len(settings.EngineDifferences(c.builtFrom, s)) == 0 {
		return c.engine, nil
	}

	engine, err := c.factory(s)
	if err != nil {
		return nil, err
	}
	c.engine = engine
	c.builtFrom = s
	c.engineBuilt = true
	return engine, nil
}

// IsSpellingRule reports whether matches of ruleID refer to a single
// misspelled word that a dictionary entry can silence.
func IsSpellingRule(ruleID string) bool {
	return ruleID == SpellingRuleID ||
		strings.HasPrefix(ruleID, "MORFOLOGIK_") ||
		strings.HasPrefix(ruleID, "HUNSPELL_") ||
		strings.HasPrefix(ruleID, "GERMAN_SPELLER_")
}

type hiddenPattern struct {
	rule     string
	sentence *regexp.Regexp
}

func compileHidden(entries []settings.HiddenFalsePositive) []hiddenPattern {
	patterns := make([]hiddenPattern, 0, len(entries))
	for _, e := range entries {
		re, err := regexp.Compile(e.Sentence)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(e.Sentence))
		}
		patterns = append(patterns, hiddenPattern{rule: e.Rule, sentence: re})
	}
	return patterns
}

func isHidden(m RuleMatch, patterns []hiddenPattern) bool {
	for _, p := range patterns {
		if p.rule == m.RuleID && p.sentence.MatchString(m.Sentence) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
