package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/workspace"
)

// Pagination limits
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Key identifies one workspace entry by value.
type Key struct {
	Workspace string // normalized, defaulted to "default"
	Kind      workspace.Kind
	Language  string
	Value     string // stored value; hidden false positives are JSON-encoded
}

// KeyInput holds the raw addressing parameters shared by add and remove.
type KeyInput struct {
	Workspace string
	Kind      string
	Language  string
	Value     string // word or rule ID; "-word" removes a configured word
	Sentence  string // hidden false positives only, matched literally
}

// ValidateKey validates addressing parameters and returns a normalized Key.
// Rules:
// - kind must be one of word, disabled_rule, enabled_rule, hidden_false_positive
// - language and value are required
// - hidden false positives also require a sentence
func ValidateKey(input KeyInput) (*Key, error) {
	kind, ok := workspace.ParseKind(input.Kind)
	if !ok {
		return nil, errors.NewInvalidRequest("kind must be one of: word, disabled_rule, enabled_rule, hidden_false_positive")
	}

	language := strings.TrimSpace(input.Language)
	if language == "" {
		return nil, errors.NewInvalidRequest("language is required")
	}

	value := strings.TrimSpace(input.Value)
	if value == "" {
		return nil, errors.NewInvalidRequest("value is required")
	}

	if kind == workspace.KindHiddenFalsePositive {
		sentence := strings.TrimSpace(input.Sentence)
		if sentence == "" {
			return nil, errors.NewInvalidRequest("sentence is required for hidden false positives")
		}
		encoded, err := workspace.EncodeHiddenFalsePositive(value, workspace.SentencePattern(sentence))
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		value = encoded
	}

	ws := workspace.Normalize(input.Workspace)
	if ws == "" {
		ws = workspace.DefaultWorkspace
	}

	return &Key{
		Workspace: ws,
		Kind:      kind,
		Language:  language,
		Value:     value,
	}, nil
}

func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
