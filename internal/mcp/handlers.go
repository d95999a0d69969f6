package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/ops"
	"github.com/hpungsan/proofd/internal/server"
	"github.com/hpungsan/proofd/internal/workspace"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	registry  *server.Registry
	db        *sql.DB
	workspace string
}

// NewHandlers creates a new Handlers instance. db may be nil, in which case
// the workspace tools fail with INTERNAL.
func NewHandlers(registry *server.Registry, db *sql.DB, workspace string) *Handlers {
	return &Handlers{registry: registry, db: db, workspace: workspace}
}

// Request types for each tool

// OpenRequest represents the arguments for document_open.
type OpenRequest struct {
	URI        string `json:"uri"`
	LanguageID string `json:"language_id,omitempty"`
	Version    *int   `json:"version,omitempty"`
	Text       string `json:"text"`
}

// ChangeRequest represents the arguments for document_change.
type ChangeRequest struct {
	URI     string                     `json:"uri"`
	Version *int                       `json:"version,omitempty"`
	Changes []document.TextChangeEvent `json:"changes"`
}

// URIRequest represents the arguments for tools addressing one document.
type URIRequest struct {
	URI string `json:"uri"`
}

// CheckRequest represents the arguments for document_check.
type CheckRequest struct {
	URI      string          `json:"uri"`
	Range    *document.Range `json:"range,omitempty"`
	UseCache *bool           `json:"use_cache,omitempty"`
}

// CaretRequest represents the arguments for document_caret.
type CaretRequest struct {
	URI   string          `json:"uri"`
	Caret json.RawMessage `json:"caret,omitempty"`
}

// PositionRequest represents the arguments for document_position.
type PositionRequest struct {
	URI      string             `json:"uri"`
	Offset   *int               `json:"offset,omitempty"`
	Position *document.Position `json:"position,omitempty"`
}

// WordRequest represents the arguments for workspace_add_word and workspace_remove_word.
type WordRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Language  string `json:"language"`
	Word      string `json:"word"`
}

// RuleRequest represents the arguments for workspace_disable_rule and
// workspace_hide_false_positive.
type RuleRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Language  string `json:"language"`
	Rule      string `json:"rule"`
	Sentence  string `json:"sentence,omitempty"`
}

// EntriesRequest represents the arguments for workspace_entries.
type EntriesRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Language  string `json:"language,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Output types

// DocumentView is the state of one open document. Diagnostics is null when
// the current version has not been checked.
type DocumentView struct {
	URI         string                `json:"uri"`
	LanguageID  string                `json:"language_id"`
	Version     int                   `json:"version"`
	Caret       *document.Position    `json:"caret"`
	Diagnostics []document.Diagnostic `json:"diagnostics"`
}

// DocumentSummary is one row of document_list.
type DocumentSummary struct {
	URI         string `json:"uri"`
	LanguageID  string `json:"language_id"`
	Version     int    `json:"version"`
	Checked     bool   `json:"checked"`
	Diagnostics int    `json:"diagnostics"`
}

// CheckOutput is the result of document_check.
type CheckOutput struct {
	DocumentView
	Published bool `json:"published"`
}

// PositionOutput pairs an offset with its position.
type PositionOutput struct {
	Offset   int               `json:"offset"`
	Position document.Position `json:"position"`
}

// EntryOutput is the result of the workspace edit tools.
// Rechecked counts the open documents checked again with the new entries;
// it stays 0 for entries of another workspace, which do not affect checks
// in this server.
type EntryOutput struct {
	Entry        *workspace.Entry `json:"entry,omitempty"`
	Removed      bool             `json:"removed,omitempty"`
	Rechecked    int              `json:"rechecked"`
	RecheckError string           `json:"recheck_error,omitempty"`
}

func viewOf(s *document.Session) DocumentView {
	return DocumentView{
		URI:         s.URI(),
		LanguageID:  s.LanguageID(),
		Version:     s.Version(),
		Caret:       s.Caret(),
		Diagnostics: s.DiagnosticsCache(),
	}
}

// Handler implementations

// HandleOpen handles the document_open tool call.
func (h *Handlers) HandleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx = withProgressToken(ctx, req)

	languageID := strings.TrimSpace(input.LanguageID)
	if languageID == "" {
		languageID = "plaintext"
	}
	version := 1
	if input.Version != nil {
		version = *input.Version
	}

	s, err := h.registry.Open(ctx, input.URI, languageID, version, input.Text)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(viewOf(s))
}

// HandleChange handles the document_change tool call.
func (h *Handlers) HandleChange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChangeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx = withProgressToken(ctx, req)

	// A missing version always advances.
	version := 0
	if input.Version != nil {
		version = *input.Version
	}

	s, err := h.registry.Change(ctx, input.URI, version, input.Changes)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(viewOf(s))
}

// HandleSave handles the document_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URIRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx = withProgressToken(ctx, req)

	s, err := h.registry.Save(ctx, input.URI)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(viewOf(s))
}

// HandleClose handles the document_close tool call.
func (h *Handlers) HandleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URIRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.registry.Close(ctx, input.URI); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"uri": input.URI, "closed": true})
}

// HandleList handles the document_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := h.registry.List()
	items := make([]DocumentSummary, 0, len(sessions))
	for _, s := range sessions {
		diagnostics := s.DiagnosticsCache()
		items = append(items, DocumentSummary{
			URI:         s.URI(),
			LanguageID:  s.LanguageID(),
			Version:     s.Version(),
			Checked:     diagnostics != nil,
			Diagnostics: len(diagnostics),
		})
	}
	return successResult(map[string]any{"items": items})
}

// HandleCheck handles the document_check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx = withProgressToken(ctx, req)

	s, ok := h.registry.Get(input.URI)
	if !ok {
		return errorResult(errors.NewDocumentNotOpen(input.URI)), nil
	}

	useCache := input.UseCache == nil || *input.UseCache
	published, err := s.CheckAndPublish(ctx, input.Range, useCache)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CheckOutput{DocumentView: viewOf(s), Published: published})
}

// HandleDiagnostics handles the document_diagnostics tool call.
func (h *Handlers) HandleDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URIRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, ok := h.registry.Get(input.URI)
	if !ok {
		return errorResult(errors.NewDocumentNotOpen(input.URI)), nil
	}
	return successResult(viewOf(s))
}

// HandleCaret handles the document_caret tool call.
func (h *Handlers) HandleCaret(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaretRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, ok := h.registry.Get(input.URI)
	if !ok {
		return errorResult(errors.NewDocumentNotOpen(input.URI)), nil
	}

	if len(input.Caret) > 0 {
		var caret *document.Position
		if err := json.Unmarshal(input.Caret, &caret); err != nil {
			return errorResult(errors.NewInvalidRequest("caret must be a position or null")), nil
		}
		s.SetCaret(caret)
		if caret != nil {
			s.SetLastCaretChange(time.Now())
		}
	}
	return successResult(map[string]any{"uri": s.URI(), "caret": s.Caret()})
}

// HandlePosition handles the document_position tool call.
func (h *Handlers) HandlePosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PositionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if (input.Offset == nil) == (input.Position == nil) {
		return errorResult(errors.NewInvalidRequest("specify exactly one of offset or position")), nil
	}

	s, ok := h.registry.Get(input.URI)
	if !ok {
		return errorResult(errors.NewDocumentNotOpen(input.URI)), nil
	}

	// Round trip through one snapshot so both halves agree.
	snap := s.Snapshot()
	var offset int
	if input.Offset != nil {
		offset = max(0, min(*input.Offset, len(snap.Text)))
	} else {
		offset = snap.OffsetOf(*input.Position)
	}
	return successResult(PositionOutput{Offset: offset, Position: snap.PositionOf(offset)})
}

// HandleAddWord handles the workspace_add_word tool call.
func (h *Handlers) HandleAddWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.addEntry(ctx, ops.KeyInput{
		Workspace: h.workspaceOr(input.Workspace),
		Kind:      string(workspace.KindWord),
		Language:  input.Language,
		Value:     input.Word,
	})
}

// HandleRemoveWord handles the workspace_remove_word tool call.
func (h *Handlers) HandleRemoveWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errNoWorkspaceStore), nil
	}

	key := ops.KeyInput{
		Workspace: h.workspaceOr(input.Workspace),
		Kind:      string(workspace.KindWord),
		Language:  input.Language,
		Value:     input.Word,
	}
	if err := ops.RemoveEntry(ctx, h.db, key); err != nil {
		return errorResult(err), nil
	}
	out := EntryOutput{Removed: true}
	h.recheck(ctx, key.Workspace, &out)
	return successResult(out)
}

// HandleDisableRule handles the workspace_disable_rule tool call.
func (h *Handlers) HandleDisableRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.addEntry(ctx, ops.KeyInput{
		Workspace: h.workspaceOr(input.Workspace),
		Kind:      string(workspace.KindDisabledRule),
		Language:  input.Language,
		Value:     input.Rule,
	})
}

// HandleHideFalsePositive handles the workspace_hide_false_positive tool call.
func (h *Handlers) HandleHideFalsePositive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.addEntry(ctx, ops.KeyInput{
		Workspace: h.workspaceOr(input.Workspace),
		Kind:      string(workspace.KindHiddenFalsePositive),
		Language:  input.Language,
		Value:     input.Rule,
		Sentence:  input.Sentence,
	})
}

// HandleEntries handles the workspace_entries tool call.
func (h *Handlers) HandleEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntriesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errNoWorkspaceStore), nil
	}

	result, err := ops.ListEntries(ctx, h.db, ops.ListEntriesInput{
		Workspace: h.workspaceOr(input.Workspace),
		Kind:      input.Kind,
		Language:  input.Language,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

var errNoWorkspaceStore = errors.NewInternal(stderrors.New("workspace store not configured"))

func (h *Handlers) addEntry(ctx context.Context, input ops.KeyInput) (*mcp.CallToolResult, error) {
	if h.db == nil {
		return errorResult(errNoWorkspaceStore), nil
	}
	entry, err := ops.AddEntry(ctx, h.db, input)
	if err != nil {
		return errorResult(err), nil
	}
	out := EntryOutput{Entry: entry}
	h.recheck(ctx, input.Workspace, &out)
	return successResult(out)
}

// recheck applies the new entries of ws to every open document. Checks only
// read the server's own workspace, so edits to any other are just stored.
func (h *Handlers) recheck(ctx context.Context, ws string, out *EntryOutput) {
	if workspace.Normalize(ws) != workspace.Normalize(h.workspace) {
		return
	}
	n, err := h.registry.RecheckAll(ctx)
	out.Rechecked = n
	if err != nil {
		out.RecheckError = err.Error()
	}
}

func (h *Handlers) workspaceOr(ws string) string {
	if strings.TrimSpace(ws) != "" {
		return ws
	}
	return h.workspace
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var proofErr *errors.ProofError
	if stderrors.As(err, &proofErr) {
		// Keep wrapper context when the ProofError is not outermost.
		msg := proofErr.Message
		if err != error(proofErr) {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    proofErr.Code,
			"message": msg,
			"status":  proofErr.Status,
		}
		if proofErr.Code != errors.ErrInternal && proofErr.Details != nil {
			errorObj["details"] = proofErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
