package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/proofd/internal/config"
	"github.com/hpungsan/proofd/internal/db"
	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/server"
	"github.com/hpungsan/proofd/internal/settings"
)

type testEnv struct {
	registry *server.Registry
	handlers *Handlers
	cfg      *config.Config
	deps     Deps
}

// testSetup creates a registry backed by a temporary workspace store and
// wires it to an MCP server.
func testSetup(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	source, err := server.NewConfigSource(t.TempDir(), "", database, "default")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	registry := server.NewRegistry(settings.NewManager(settings.Default()), server.EngineFactory(), nil,
		document.WithPublishDelay(time.Millisecond))
	t.Cleanup(registry.CloseAll)

	deps := Deps{Registry: registry, DB: database, Config: source, Workspace: "default"}
	cfg := config.DefaultConfig()
	NewServer(deps, cfg, "test")

	return &testEnv{
		registry: registry,
		handlers: NewHandlers(registry, database, "default"),
		cfg:      cfg,
		deps:     deps,
	}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func openDoc(t *testing.T, env *testEnv, uri, text string) map[string]any {
	t.Helper()
	result, err := env.handlers.HandleOpen(context.Background(), makeRequest(map[string]any{
		"uri":         uri,
		"language_id": "markdown",
		"text":        text,
	}))
	if err != nil {
		t.Fatalf("HandleOpen error: %v", err)
	}
	return parseOutput(t, result)
}

func diagnosticsOf(t *testing.T, output map[string]any) []any {
	t.Helper()
	diags, ok := output["diagnostics"].([]any)
	if !ok {
		t.Fatalf("diagnostics = %#v, want a list", output["diagnostics"])
	}
	return diags
}

func TestHandleOpen(t *testing.T) {
	env := testSetup(t)

	output := openDoc(t, env, "file:///a.md", "Teh cat sat.")
	if output["uri"] != "file:///a.md" {
		t.Errorf("uri = %v", output["uri"])
	}
	if output["version"].(float64) != 1 {
		t.Errorf("version = %v, want 1", output["version"])
	}
	diags := diagnosticsOf(t, output)
	if len(diags) != 1 {
		t.Fatalf("len(diagnostics) = %d, want 1", len(diags))
	}
	if code := diags[0].(map[string]any)["code"]; code != "PROOFD_SPELLING" {
		t.Errorf("code = %v", code)
	}

	t.Run("duplicate", func(t *testing.T) {
		result, _ := env.handlers.HandleOpen(context.Background(), makeRequest(map[string]any{
			"uri":  "file:///a.md",
			"text": "again",
		}))
		assertErrorCode(t, result, "DOCUMENT_OPEN")
	})

	t.Run("missing uri", func(t *testing.T) {
		result, _ := env.handlers.HandleOpen(context.Background(), makeRequest(map[string]any{"text": "x"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("bad argument type", func(t *testing.T) {
		result, _ := env.handlers.HandleOpen(context.Background(), makeRequest(map[string]any{"uri": 5}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleChange(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Nothing here.")

	result, err := env.handlers.HandleChange(context.Background(), makeRequest(map[string]any{
		"uri": "file:///a.md",
		"changes": []any{
			map[string]any{"text": "Teh cat sat."},
		},
	}))
	if err != nil {
		t.Fatalf("HandleChange error: %v", err)
	}
	output := parseOutput(t, result)
	if output["version"].(float64) != 2 {
		t.Errorf("version = %v, want 2", output["version"])
	}
	if len(diagnosticsOf(t, output)) != 1 {
		t.Errorf("diagnostics = %v, want one", output["diagnostics"])
	}

	// Ranged edit: replace "Teh" with "The".
	result, _ = env.handlers.HandleChange(context.Background(), makeRequest(map[string]any{
		"uri":     "file:///a.md",
		"version": 7,
		"changes": []any{
			map[string]any{
				"range": map[string]any{
					"start": map[string]any{"line": 0, "character": 0},
					"end":   map[string]any{"line": 0, "character": 3},
				},
				"text": "The",
			},
		},
	}))
	output = parseOutput(t, result)
	if output["version"].(float64) != 7 {
		t.Errorf("version = %v, want 7", output["version"])
	}
	s, _ := env.registry.Get("file:///a.md")
	if s.Text() != "The cat sat." {
		t.Errorf("text = %q", s.Text())
	}

	result, _ = env.handlers.HandleChange(context.Background(), makeRequest(map[string]any{
		"uri":     "file:///missing.md",
		"changes": []any{},
	}))
	assertErrorCode(t, result, "DOCUMENT_NOT_OPEN")
}

func TestHandleSaveAndClose(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Teh cat.")

	result, _ := env.handlers.HandleSave(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	parseOutput(t, result)

	result, _ = env.handlers.HandleClose(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	output := parseOutput(t, result)
	if output["closed"] != true {
		t.Errorf("closed = %v", output["closed"])
	}
	if _, ok := env.registry.Get("file:///a.md"); ok {
		t.Error("session should be gone after close")
	}

	result, _ = env.handlers.HandleClose(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	assertErrorCode(t, result, "DOCUMENT_NOT_OPEN")
	result, _ = env.handlers.HandleSave(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	assertErrorCode(t, result, "DOCUMENT_NOT_OPEN")
}

func TestHandleList(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///b.md", "Fine text.")
	openDoc(t, env, "file:///a.md", "Teh cat.")

	result, _ := env.handlers.HandleList(context.Background(), makeRequest(nil))
	output := parseOutput(t, result)
	items := output["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	first := items[0].(map[string]any)
	if first["uri"] != "file:///a.md" || first["diagnostics"].(float64) != 1 || first["checked"] != true {
		t.Errorf("items[0] = %v", first)
	}
	second := items[1].(map[string]any)
	if second["diagnostics"].(float64) != 0 {
		t.Errorf("items[1] = %v", second)
	}
}

func TestHandleCheck(t *testing.T) {
	env := testSetup(t)

	// Manual checking: opening publishes nothing.
	source := &staticConfig{settings: json.RawMessage(`{"checkFrequency": "manual"}`)}
	env.registry.SetClient(newNotifier(source, func(context.Context, string, map[string]any) error { return nil }))
	if err := env.registry.SettingsManager().Apply(source.settings, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	output := openDoc(t, env, "file:///a.md", "Teh cat sat.\nAdn then.")
	if output["diagnostics"] != nil {
		t.Fatalf("diagnostics = %v, want null before any check", output["diagnostics"])
	}

	result, _ := env.handlers.HandleCheck(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	output = parseOutput(t, result)
	if output["published"] != true {
		t.Errorf("published = %v", output["published"])
	}
	if len(diagnosticsOf(t, output)) != 2 {
		t.Errorf("diagnostics = %v, want two", output["diagnostics"])
	}

	result, _ = env.handlers.HandleCheck(context.Background(), makeRequest(map[string]any{
		"uri":       "file:///a.md",
		"use_cache": false,
		"range": map[string]any{
			"start": map[string]any{"line": 1, "character": 0},
			"end":   map[string]any{"line": 1, "character": 9},
		},
	}))
	output = parseOutput(t, result)
	diags := diagnosticsOf(t, output)
	if len(diags) != 1 {
		t.Fatalf("ranged diagnostics = %v, want one", diags)
	}
	start := diags[0].(map[string]any)["range"].(map[string]any)["start"].(map[string]any)
	if start["line"].(float64) != 1 {
		t.Errorf("start = %v, want line 1", start)
	}

	result, _ = env.handlers.HandleCheck(context.Background(), makeRequest(map[string]any{"uri": "file:///nope.md"}))
	assertErrorCode(t, result, "DOCUMENT_NOT_OPEN")
}

func TestHandleDiagnostics(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Teh cat.")

	result, _ := env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	output := parseOutput(t, result)
	if len(diagnosticsOf(t, output)) != 1 {
		t.Errorf("diagnostics = %v", output["diagnostics"])
	}

	result, _ = env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///b.md"}))
	assertErrorCode(t, result, "DOCUMENT_NOT_OPEN")
}

func TestHandleCaret(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Teh cat.")

	result, _ := env.handlers.HandleCaret(context.Background(), makeRequest(map[string]any{
		"uri":   "file:///a.md",
		"caret": map[string]any{"line": 0, "character": 2},
	}))
	output := parseOutput(t, result)
	caret := output["caret"].(map[string]any)
	if caret["character"].(float64) != 2 {
		t.Errorf("caret = %v", caret)
	}

	// Omitting caret reads it back.
	result, _ = env.handlers.HandleCaret(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	output = parseOutput(t, result)
	if output["caret"] == nil {
		t.Error("caret should still be set")
	}

	result, _ = env.handlers.HandleCaret(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md", "caret": nil}))
	output = parseOutput(t, result)
	if output["caret"] != nil {
		t.Errorf("caret = %v, want null", output["caret"])
	}

	result, _ = env.handlers.HandleCaret(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md", "caret": "here"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandlePosition(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "ab\ncdé\n")

	tests := []struct {
		name     string
		args     map[string]any
		wantOff  float64
		wantLine float64
		wantChar float64
	}{
		{"offset", map[string]any{"offset": 4}, 4, 1, 1},
		{"offset past end", map[string]any{"offset": 100}, 8, 2, 0},
		{"position", map[string]any{"position": map[string]any{"line": 1, "character": 2}}, 5, 1, 2},
		{"position past line end", map[string]any{"position": map[string]any{"line": 0, "character": 9}}, 2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["uri"] = "file:///a.md"
			result, _ := env.handlers.HandlePosition(context.Background(), makeRequest(tt.args))
			output := parseOutput(t, result)
			if output["offset"].(float64) != tt.wantOff {
				t.Errorf("offset = %v, want %v", output["offset"], tt.wantOff)
			}
			pos := output["position"].(map[string]any)
			if pos["line"].(float64) != tt.wantLine || pos["character"].(float64) != tt.wantChar {
				t.Errorf("position = %v, want %v:%v", pos, tt.wantLine, tt.wantChar)
			}
		})
	}

	result, _ := env.handlers.HandlePosition(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
	result, _ = env.handlers.HandlePosition(context.Background(), makeRequest(map[string]any{
		"uri": "file:///a.md", "offset": 1, "position": map[string]any{"line": 0, "character": 0},
	}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestWorkspaceTools_RecheckOpenDocuments(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Teh cat  sat.")

	result, _ := env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	if n := len(diagnosticsOf(t, parseOutput(t, result))); n != 2 {
		t.Fatalf("initial diagnostics = %d, want 2", n)
	}

	result, _ = env.handlers.HandleAddWord(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"word":     "Teh",
	}))
	output := parseOutput(t, result)
	if output["rechecked"].(float64) != 1 {
		t.Errorf("rechecked = %v, want 1", output["rechecked"])
	}
	entry := output["entry"].(map[string]any)
	if entry["kind"] != "word" || entry["value"] != "Teh" {
		t.Errorf("entry = %v", entry)
	}

	result, _ = env.handlers.HandleDisableRule(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"rule":     "WHITESPACE_RULE",
	}))
	parseOutput(t, result)

	result, _ = env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	if diags := diagnosticsOf(t, parseOutput(t, result)); len(diags) != 0 {
		t.Errorf("diagnostics after workspace edits = %v, want none", diags)
	}

	result, _ = env.handlers.HandleAddWord(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"word":     "Teh",
	}))
	assertErrorCode(t, result, "ENTRY_EXISTS")

	result, _ = env.handlers.HandleRemoveWord(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"word":     "Teh",
	}))
	if parseOutput(t, result)["removed"] != true {
		t.Error("removed should be true")
	}

	result, _ = env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	if n := len(diagnosticsOf(t, parseOutput(t, result))); n != 1 {
		t.Errorf("diagnostics after removal = %d, want 1", n)
	}

	result, _ = env.handlers.HandleRemoveWord(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"word":     "Teh",
	}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestWorkspaceTools_OtherWorkspaceIsOnlyStored(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "Teh cat.")

	result, _ := env.handlers.HandleAddWord(context.Background(), makeRequest(map[string]any{
		"workspace": "other",
		"language":  "en-US",
		"word":      "Teh",
	}))
	output := parseOutput(t, result)
	if output["rechecked"].(float64) != 0 {
		t.Errorf("rechecked = %v, want 0", output["rechecked"])
	}
	if entry := output["entry"].(map[string]any); entry["workspace"] != "other" {
		t.Errorf("entry = %v", entry)
	}

	result, _ = env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	if n := len(diagnosticsOf(t, parseOutput(t, result))); n != 1 {
		t.Errorf("diagnostics = %d, want 1", n)
	}

	result, _ = env.handlers.HandleRemoveWord(context.Background(), makeRequest(map[string]any{
		"workspace": "other",
		"language":  "en-US",
		"word":      "Teh",
	}))
	if output := parseOutput(t, result); output["rechecked"].(float64) != 0 {
		t.Errorf("rechecked after remove = %v, want 0", output["rechecked"])
	}
}

func TestHandleHideFalsePositive(t *testing.T) {
	env := testSetup(t)
	openDoc(t, env, "file:///a.md", "It is is fine.")

	result, _ := env.handlers.HandleHideFalsePositive(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"rule":     "ENGLISH_WORD_REPEAT_RULE",
		"sentence": "It is is fine.",
	}))
	parseOutput(t, result)

	result, _ = env.handlers.HandleDiagnostics(context.Background(), makeRequest(map[string]any{"uri": "file:///a.md"}))
	if diags := diagnosticsOf(t, parseOutput(t, result)); len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}

	result, _ = env.handlers.HandleHideFalsePositive(context.Background(), makeRequest(map[string]any{
		"language": "en-US",
		"rule":     "ENGLISH_WORD_REPEAT_RULE",
	}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleEntries(t *testing.T) {
	env := testSetup(t)

	for _, word := range []string{"proofd", "sqlite", "ulid"} {
		result, _ := env.handlers.HandleAddWord(context.Background(), makeRequest(map[string]any{
			"workspace": "Repo",
			"language":  "en-US",
			"word":      word,
		}))
		parseOutput(t, result)
	}

	result, _ := env.handlers.HandleEntries(context.Background(), makeRequest(map[string]any{
		"workspace": "repo",
		"kind":      "word",
		"limit":     2,
	}))
	output := parseOutput(t, result)
	if output["workspace"] != "repo" {
		t.Errorf("workspace = %v", output["workspace"])
	}
	if items := output["items"].([]any); len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
	pagination := output["pagination"].(map[string]any)
	if pagination["has_more"] != true || pagination["total"].(float64) != 3 {
		t.Errorf("pagination = %v", pagination)
	}

	// The server workspace is separate.
	result, _ = env.handlers.HandleEntries(context.Background(), makeRequest(nil))
	if items := parseOutput(t, result)["items"].([]any); len(items) != 0 {
		t.Errorf("default workspace items = %v, want none", items)
	}

	result, _ = env.handlers.HandleEntries(context.Background(), makeRequest(map[string]any{"kind": "bogus"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestWorkspaceTools_NoDatabase(t *testing.T) {
	env := testSetup(t)
	h := NewHandlers(env.registry, nil, "default")

	result, _ := h.HandleAddWord(context.Background(), makeRequest(map[string]any{"language": "en-US", "word": "x"}))
	assertErrorCode(t, result, "INTERNAL")
	result, _ = h.HandleEntries(context.Background(), makeRequest(nil))
	assertErrorCode(t, result, "INTERNAL")
}

// Notifier

type staticConfig struct {
	settings  json.RawMessage
	workspace json.RawMessage
}

func (c *staticConfig) Configuration(context.Context, string, string) (json.RawMessage, error) {
	return c.settings, nil
}

func (c *staticConfig) WorkspaceConfiguration(context.Context, string) (json.RawMessage, error) {
	return c.workspace, nil
}

func (c *staticConfig) HasWorkspaceConfiguration() bool { return c.workspace != nil }

type sentNotification struct {
	method string
	params map[string]any
}

type recorder struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recorder) send(_ context.Context, method string, params map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{method: method, params: params})
	return nil
}

func TestNotifier_PublishDiagnostics(t *testing.T) {
	rec := &recorder{}
	n := newNotifier(&staticConfig{}, rec.send)

	if err := n.PublishDiagnostics(context.Background(), "file:///a.md", nil); err != nil {
		t.Fatalf("PublishDiagnostics: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].method != DiagnosticsMethod {
		t.Fatalf("sent = %+v", rec.sent)
	}
	diags, ok := rec.sent[0].params["diagnostics"].([]document.Diagnostic)
	if !ok || diags == nil {
		t.Errorf("diagnostics = %#v, want empty non-nil slice", rec.sent[0].params["diagnostics"])
	}
}

func TestNotifier_Progress(t *testing.T) {
	rec := &recorder{}
	n := newNotifier(&staticConfig{}, rec.send)
	token := json.RawMessage(`"proofd-1"`)

	if err := n.CreateProgress(context.Background(), token); err == nil {
		t.Fatal("CreateProgress without a request token should fail")
	}

	req := mcp.CallToolRequest{}
	req.Params.Meta = &mcp.Meta{ProgressToken: "client-7"}
	ctx := withProgressToken(context.Background(), req)

	if err := n.CreateProgress(ctx, token); err != nil {
		t.Fatalf("CreateProgress: %v", err)
	}
	steps := []document.Progress{
		{Kind: document.ProgressBegin, Title: "Checking a.md"},
		{Kind: document.ProgressReport, Message: "halfway"},
		{Kind: document.ProgressEnd},
	}
	for _, p := range steps {
		if err := n.NotifyProgress(ctx, token, p); err != nil {
			t.Fatalf("NotifyProgress(%s): %v", p.Kind, err)
		}
	}

	if len(rec.sent) != 3 {
		t.Fatalf("sent %d notifications, want 3", len(rec.sent))
	}
	for i, s := range rec.sent {
		if s.method != ProgressMethod {
			t.Errorf("sent[%d].method = %s", i, s.method)
		}
		if s.params["progressToken"] != "client-7" {
			t.Errorf("sent[%d].progressToken = %v", i, s.params["progressToken"])
		}
		if s.params["progress"] != i+1 {
			t.Errorf("sent[%d].progress = %v, want %d", i, s.params["progress"], i+1)
		}
	}
	if rec.sent[0].params["message"] != "Checking a.md" || rec.sent[1].params["message"] != "halfway" {
		t.Errorf("messages = %v, %v", rec.sent[0].params["message"], rec.sent[1].params["message"])
	}
	if rec.sent[2].params["total"] != 3 {
		t.Errorf("total = %v, want 3", rec.sent[2].params["total"])
	}

	// The token is forgotten after end.
	if err := n.NotifyProgress(ctx, token, document.Progress{Kind: document.ProgressReport}); err == nil {
		t.Error("NotifyProgress after end should fail")
	}
}

func TestNotifier_Capabilities(t *testing.T) {
	n := newNotifier(&staticConfig{}, (&recorder{}).send)
	if caps := n.Capabilities(); !caps.WorkDoneProgress || caps.WorkspaceConfiguration {
		t.Errorf("caps = %+v", caps)
	}

	n = newNotifier(&staticConfig{workspace: json.RawMessage(`{}`)}, (&recorder{}).send)
	if !n.Capabilities().WorkspaceConfiguration {
		t.Error("WorkspaceConfiguration should follow the config provider")
	}
}

// Registration

func TestServerRegistration(t *testing.T) {
	env := testSetup(t)

	s := NewServer(env.deps, env.cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"document_open",
		"document_change",
		"document_save",
		"document_close",
		"document_list",
		"document_check",
		"document_diagnostics",
		"document_caret",
		"document_position",
		"workspace_add_word",
		"workspace_remove_word",
		"workspace_disable_rule",
		"workspace_hide_false_positive",
		"workspace_entries",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = []string{"document_position", "document_caret", "document_caret"}
	tools := NewServer(env.deps, env.cfg, "test").ListTools()

	if len(tools) != 12 {
		t.Errorf("registered tool count = %d, want 12", len(tools))
	}
	for _, name := range []string{"document_position", "document_caret"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTypes = []string{"workspace"}
	tools := NewServer(env.deps, env.cfg, "test").ListTools()

	if len(tools) != 9 {
		t.Errorf("registered tool count = %d, want 9", len(tools))
	}
	for name := range tools {
		if GetTypeForTool(name) != "document" {
			t.Errorf("unexpected tool %q", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = AllToolNames()
	if tools := NewServer(env.deps, env.cfg, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"document_open", "workspace_entries"}, 0},
		{"one unknown", []string{"document_open", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"document", "workspace"}); len(unknown) != 0 {
		t.Errorf("unknown = %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"editor"}); len(unknown) != 1 {
		t.Errorf("unknown = %v, want [editor]", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 14 {
		t.Errorf("AllToolNames() returned %d names, want 14", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

// Error results

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("changes[1]: %w", errors.NewInvalidRequest("range out of order"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrInvalidRequest) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidRequest)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "changes[1]") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewDocumentNotOpen("file:///a.md")))
	if errObj["code"] != string(errors.ErrDocumentNotOpen) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrDocumentNotOpen)
	}
	if errObj["message"] != "document not open: file:///a.md" {
		t.Errorf("message = %v", errObj["message"])
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" || errObj["message"] != "an internal error occurred" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %s", extractErrorMessage(result))
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if result == nil || !result.IsError {
		t.Fatalf("expected error %s, got success", expectedCode)
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
