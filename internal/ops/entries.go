package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/proofd/internal/db"
	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/workspace"
)

// AddEntry stores a workspace entry. Adding an existing entry fails with
// ENTRY_EXISTS.
func AddEntry(ctx context.Context, database *sql.DB, input KeyInput) (*workspace.Entry, error) {
	key, err := ValidateKey(input)
	if err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	raw := strings.TrimSpace(input.Workspace)
	if raw == "" {
		raw = workspace.DefaultWorkspace
	}

	e := &workspace.Entry{
		ID:            id,
		WorkspaceRaw:  raw,
		WorkspaceNorm: key.Workspace,
		Kind:          key.Kind,
		Language:      key.Language,
		Value:         key.Value,
		CreatedAt:     time.Now().Unix(),
	}

	if err := db.InsertEntry(ctx, database, e); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewEntryExists(key.Workspace, string(key.Kind), strings.TrimSpace(input.Value))
		}
		return nil, err
	}
	return e, nil
}

// RemoveEntry deletes a workspace entry. Removing a missing entry fails
// with NOT_FOUND.
func RemoveEntry(ctx context.Context, database *sql.DB, input KeyInput) error {
	key, err := ValidateKey(input)
	if err != nil {
		return err
	}
	return db.DeleteEntry(ctx, database, key.Workspace, key.Kind, key.Language, key.Value)
}

// ListEntriesInput contains parameters for the ListEntries operation.
type ListEntriesInput struct {
	Workspace string // defaults to "default"
	Kind      string // optional
	Language  string // optional
	Limit     int    // default: 100, max: 500
	Offset    int
}

// ListEntriesOutput contains the result of the ListEntries operation.
type ListEntriesOutput struct {
	Workspace  string            `json:"workspace"`
	Items      []workspace.Entry `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// ListEntries retrieves workspace entries oldest first.
func ListEntries(ctx context.Context, database *sql.DB, input ListEntriesInput) (*ListEntriesOutput, error) {
	ws := workspace.Normalize(input.Workspace)
	if ws == "" {
		ws = workspace.DefaultWorkspace
	}

	filter := db.EntryFilter{WorkspaceNorm: ws, Language: strings.TrimSpace(input.Language)}
	if strings.TrimSpace(input.Kind) != "" {
		kind, ok := workspace.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be one of: word, disabled_rule, enabled_rule, hidden_false_positive")
		}
		filter.Kind = kind
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.ListEntries(ctx, database, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []workspace.Entry{}
	}

	return &ListEntriesOutput{
		Workspace: ws,
		Items:     items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// workspaceConfiguration mirrors the workspace-specific settings JSON.
type workspaceConfiguration struct {
	Dictionary           map[string][]string          `json:"dictionary"`
	DisabledRules        map[string][]string          `json:"disabledRules"`
	EnabledRules         map[string][]string          `json:"enabledRules"`
	HiddenFalsePositives map[string][]json.RawMessage `json:"hiddenFalsePositives"`
}

// WorkspaceConfiguration renders every entry of a workspace as the
// workspace-specific settings object: per-language dictionary,
// disabledRules, enabledRules, and hiddenFalsePositives.
func WorkspaceConfiguration(ctx context.Context, database *sql.DB, ws string) (json.RawMessage, error) {
	norm := workspace.Normalize(ws)
	if norm == "" {
		norm = workspace.DefaultWorkspace
	}

	entries, _, err := db.ListEntries(ctx, database, db.EntryFilter{WorkspaceNorm: norm}, 0, 0)
	if err != nil {
		return nil, err
	}

	cfg := workspaceConfiguration{
		Dictionary:           map[string][]string{},
		DisabledRules:        map[string][]string{},
		EnabledRules:         map[string][]string{},
		HiddenFalsePositives: map[string][]json.RawMessage{},
	}
	for _, e := range entries {
		switch e.Kind {
		case workspace.KindWord:
			cfg.Dictionary[e.Language] = append(cfg.Dictionary[e.Language], e.Value)
		case workspace.KindDisabledRule:
			cfg.DisabledRules[e.Language] = append(cfg.DisabledRules[e.Language], e.Value)
		case workspace.KindEnabledRule:
			cfg.EnabledRules[e.Language] = append(cfg.EnabledRules[e.Language], e.Value)
		case workspace.KindHiddenFalsePositive:
			cfg.HiddenFalsePositives[e.Language] = append(cfg.HiddenFalsePositives[e.Language], json.RawMessage(e.Value))
		}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return data, nil
}
