package checker

import (
	"context"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule IDs of the built-in engine. Names follow LanguageTool where a
// LanguageTool rule with the same meaning exists.
const (
	SpellingRuleID          = "PROOFD_SPELLING"
	WordRepeatRuleID        = "ENGLISH_WORD_REPEAT_RULE"
	WhitespaceRuleID        = "WHITESPACE_RULE"
	PunctuationSpaceRuleID  = "COMMA_PARENTHESIS_WHITESPACE"
	SentenceStartCaseRuleID = "UPPERCASE_SENTENCE_START"
)

// misspellings maps common lowercase misspellings to their correction.
var misspellings = map[string]string{
	"teh":            "the",
	"adn":            "and",
	"recieve":        "receive",
	"recieved":       "received",
	"seperate":       "separate",
	"definately":     "definitely",
	"occured":        "occurred",
	"occurence":      "occurrence",
	"untill":         "until",
	"wich":           "which",
	"becuase":        "because",
	"beleive":        "believe",
	"accomodate":     "accommodate",
	"acheive":        "achieve",
	"enviroment":     "environment",
	"goverment":      "government",
	"neccessary":     "necessary",
	"tommorow":       "tomorrow",
	"wierd":          "weird",
	"thier":          "their",
	"alot":           "a lot",
	"existance":      "existence",
	"independant":    "independent",
	"publically":     "publicly",
	"succesful":      "successful",
	"calender":       "calendar",
	"concious":       "conscious",
	"embarass":       "embarrass",
	"occassion":      "occasion",
	"persistant":     "persistent",
	"refered":        "referred",
	"relevent":       "relevant",
	"truely":         "truly",
	"arguement":      "argument",
	"begining":       "beginning",
	"commited":       "committed",
	"dependancy":     "dependency",
	"managment":      "management",
	"paramter":       "parameter",
	"retreive":       "retrieve",
	"similiar":       "similar",
	"sucess":         "success",
	"transfered":     "transferred",
	"wether":         "whether",
	"writting":       "writing",
	"lenght":         "length",
	"heigth":         "height",
	"reciept":        "receipt",
	"grammer":        "grammar",
	"responsability": "responsibility",
}

// legitimateRepeats are English word pairs that are commonly correct.
var legitimateRepeats = map[string]bool{
	"that": true,
	"had":  true,
}

type builtinRule struct {
	id        string
	category  string
	english   bool
	defaultOn bool
	check     func(text string, tokens []token) []RuleMatch
}

// Builtin is an offline engine with a handful of high-precision rules. It
// is used when no LanguageTool server is configured.
type Builtin struct {
	rules []builtinRule
}

// NewBuiltin creates the built-in engine.
func NewBuiltin() *Builtin {
	return &Builtin{rules: []builtinRule{
		{id: SpellingRuleID, category: "TYPOS", english: true, defaultOn: true, check: checkSpelling},
		{id: WordRepeatRuleID, category: "MISC", english: true, defaultOn: true, check: checkWordRepeat},
		{id: WhitespaceRuleID, category: "TYPOGRAPHY", defaultOn: true, check: checkWhitespace},
		{id: PunctuationSpaceRuleID, category: "TYPOGRAPHY", defaultOn: true, check: checkPunctuationSpace},
		{id: SentenceStartCaseRuleID, category: "CASING", check: checkSentenceStart},
	}}
}

// Rules lists the IDs of all built-in rules.
func (b *Builtin) Rules() []string {
	ids := make([]string, 0, len(b.rules))
	for _, r := range b.rules {
		ids = append(ids, r.id)
	}
	return ids
}

// Check implements Engine.
func (b *Builtin) Check(ctx context.Context, text string, opts Options) ([]RuleMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	english := opts.Language == "" || strings.HasPrefix(strings.ToLower(opts.Language), "en")
	tokens := tokenize(text)

	matches := []RuleMatch{}
	for _, r := range b.rules {
		if r.english && !english {
			continue
		}
		if slices.Contains(opts.DisabledRules, r.id) {
			continue
		}
		if !r.defaultOn && !opts.Picky && !slices.Contains(opts.EnabledRules, r.id) {
			continue
		}
		for _, m := range r.check(text, tokens) {
			m.RuleID = r.id
			m.Category = r.category
			m.Sentence = sentenceAt(text, m.FromPos)
			matches = append(matches, m)
		}
	}
	return matches, nil
}

type token struct {
	start, end int
	word       string
}

// tokenize splits text into words made of letters, digits and inner
// apostrophes.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		inWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if r == '\'' && start >= 0 {
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			inWord = unicode.IsLetter(next)
		}
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			tokens = append(tokens, token{start: start, end: i, word: text[start:i]})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text), word: text[start:]})
	}
	return tokens
}

func checkSpelling(_ string, tokens []token) []RuleMatch {
	var matches []RuleMatch
	for _, t := range tokens {
		correction, ok := misspellings[strings.ToLower(t.word)]
		if !ok {
			continue
		}
		matches = append(matches, RuleMatch{
			Message:      "Possible spelling mistake found.",
			ShortMessage: "Spelling mistake",
			FromPos:      t.start,
			ToPos:        t.end,
			Replacements: []string{matchCase(t.word, correction)},
		})
	}
	return matches
}

// matchCase applies the capitalization pattern of original to replacement.
func matchCase(original, replacement string) string {
	if original == strings.ToUpper(original) && utf8.RuneCountInString(original) > 1 {
		return strings.ToUpper(replacement)
	}
	first, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(first) {
		return capitalize(replacement)
	}
	return replacement
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func checkWordRepeat(text string, tokens []token) []RuleMatch {
	var matches []RuleMatch
	for i := 1; i < len(tokens); i++ {
		prev, cur := tokens[i-1], tokens[i]
		if !strings.EqualFold(prev.word, cur.word) || legitimateRepeats[strings.ToLower(cur.word)] {
			continue
		}
		if isDigits(cur.word) {
			continue
		}
		if gap := text[prev.end:cur.start]; gap == "" || strings.TrimSpace(gap) != "" {
			continue
		}
		matches = append(matches, RuleMatch{
			Message:      "Possible typo: you repeated a word.",
			ShortMessage: "Word repetition",
			FromPos:      prev.start,
			ToPos:        cur.end,
			Replacements: []string{prev.word},
		})
	}
	return matches
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// checkWhitespace flags runs of two or more spaces inside a line.
func checkWhitespace(text string, _ []token) []RuleMatch {
	var matches []RuleMatch
	lineStart := true
	for i := 0; i < len(text); {
		c := text[i]
		if c == '\n' || c == '\r' {
			lineStart = true
			i++
			continue
		}
		if c != ' ' {
			lineStart = false
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == ' ' {
			j++
		}
		atLineEnd := j == len(text) || text[j] == '\n' || text[j] == '\r'
		if j-i >= 2 && !lineStart && !atLineEnd {
			matches = append(matches, RuleMatch{
				Message:      "Possible typo: you repeated a whitespace.",
				ShortMessage: "Repeated whitespace",
				FromPos:      i,
				ToPos:        j,
				Replacements: []string{" "},
			})
		}
		i = j
	}
	return matches
}

// checkPunctuationSpace flags whitespace before a comma, semicolon, closing
// parenthesis or sentence-ending period.
func checkPunctuationSpace(text string, _ []token) []RuleMatch {
	var matches []RuleMatch
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' || (i > 0 && (text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\r')) || i == 0 {
			continue
		}
		j := i
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j == len(text) {
			break
		}
		p := text[j]
		switch {
		case p == ',' || p == ';' || p == ')':
		case p == '.' && (j+1 == len(text) || text[j+1] == ' ' || text[j+1] == '\n' || text[j+1] == '\r'):
		default:
			continue
		}
		matches = append(matches, RuleMatch{
			Message:      "Don't put a space before the punctuation mark.",
			ShortMessage: "Space before punctuation",
			FromPos:      i,
			ToPos:        j + 1,
			Replacements: []string{string(p)},
		})
		i = j
	}
	return matches
}

// checkSentenceStart flags sentences that begin with a lowercase letter.
func checkSentenceStart(text string, tokens []token) []RuleMatch {
	var matches []RuleMatch
	for _, t := range tokens {
		if !isSentenceStart(text, t.start) {
			continue
		}
		first, _ := utf8.DecodeRuneInString(t.word)
		if !unicode.IsLower(first) {
			continue
		}
		matches = append(matches, RuleMatch{
			Message:      "This sentence does not start with an uppercase letter.",
			ShortMessage: "Lowercase sentence start",
			FromPos:      t.start,
			ToPos:        t.end,
			Replacements: []string{capitalize(t.word)},
		})
	}
	return matches
}

func isSentenceStart(text string, offset int) bool {
	before := text[:offset]
	trimmed := strings.TrimRight(before, " \t\r\n")
	if trimmed == "" {
		return true
	}
	if len(trimmed) == len(before) {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == '!' || last == '?' || strings.Count(before[len(trimmed):], "\n") >= 2
}

// sentenceAt returns the sentence that contains offset.
func sentenceAt(text string, offset int) string {
	start := 0
	for i := offset - 1; i >= 0; i-- {
		if isSentenceBoundary(text, i) {
			start = i + 1
			break
		}
	}
	end := len(text)
	for i := offset; i < len(text); i++ {
		if isSentenceBoundary(text, i) {
			end = i + 1
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}

func isSentenceBoundary(text string, i int) bool {
	switch text[i] {
	case '.', '!', '?':
		return i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\r'
	case '\n':
		return i+1 < len(text) && text[i+1] == '\n'
	}
	return false
}
