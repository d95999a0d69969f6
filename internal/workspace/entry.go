package workspace

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultWorkspace is used when no workspace is given.
const DefaultWorkspace = "default"

// Kind is the kind of a workspace-specific setting.
type Kind string

const (
	KindWord                Kind = "word"
	KindDisabledRule        Kind = "disabled_rule"
	KindEnabledRule         Kind = "enabled_rule"
	KindHiddenFalsePositive Kind = "hidden_false_positive"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindWord, KindDisabledRule, KindEnabledRule, KindHiddenFalsePositive}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == strings.TrimSpace(s) {
			return k, true
		}
	}
	return "", false
}

// Entry is one stored workspace-specific setting. Words and rules are
// stored as-is; hidden false positives store their JSON encoding so the
// rule and sentence together form the value.
type Entry struct {
	// ID is a ULID
	ID string `json:"id"`

	// WorkspaceRaw is the workspace as given by the user
	WorkspaceRaw string `json:"workspace"`

	// WorkspaceNorm is lowercased, trimmed, with whitespace collapsed
	WorkspaceNorm string `json:"-"`

	Kind     Kind   `json:"kind"`
	Language string `json:"language"`
	Value    string `json:"value"`

	// CreatedAt is a Unix timestamp
	CreatedAt int64 `json:"created_at"`
}

// HiddenFalsePositive is the decoded value of a KindHiddenFalsePositive entry.
type HiddenFalsePositive struct {
	Rule     string `json:"rule"`
	Sentence string `json:"sentence"`
}

// EncodeHiddenFalsePositive validates the sentence pattern and returns the
// stored value.
func EncodeHiddenFalsePositive(rule, sentence string) (string, error) {
	if _, err := regexp.Compile(sentence); err != nil {
		return "", err
	}
	data, err := json.Marshal(HiddenFalsePositive{Rule: rule, Sentence: sentence})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SentencePattern anchors a literal sentence as a regular expression.
func SentencePattern(sentence string) string {
	return "^" + regexp.QuoteMeta(strings.TrimSpace(sentence)) + "$"
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases, and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, " ")
}
