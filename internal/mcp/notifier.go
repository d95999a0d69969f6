package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/server"
)

// DiagnosticsMethod is the notification carrying published diagnostics.
const DiagnosticsMethod = "notifications/proofd/diagnostics"

// ProgressMethod is the MCP progress notification.
const ProgressMethod = "notifications/progress"

// errNoProgressToken is returned by CreateProgress when the tool call did
// not ask for progress.
var errNoProgressToken = stderrors.New("request has no progress token")

type progressTokenKey struct{}

// withProgressToken attaches the caller's progress token, if any, to ctx.
func withProgressToken(ctx context.Context, req mcp.CallToolRequest) context.Context {
	if req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return ctx
	}
	return context.WithValue(ctx, progressTokenKey{}, req.Params.Meta.ProgressToken)
}

func progressTokenFrom(ctx context.Context) mcp.ProgressToken {
	return ctx.Value(progressTokenKey{})
}

type sendFunc func(ctx context.Context, method string, params map[string]any) error

type progressState struct {
	token mcp.ProgressToken
	step  int
}

// Notifier implements document.Client on top of an MCP server. Diagnostics
// become notifications/proofd/diagnostics; progress is reported against the
// progress token of the tool call that triggered the check.
type Notifier struct {
	config server.ConfigProvider
	send   sendFunc

	mu       sync.Mutex
	progress map[string]*progressState
}

// NewNotifier creates a notifier that sends through s.
func NewNotifier(s *mcpserver.MCPServer, config server.ConfigProvider) *Notifier {
	return newNotifier(config, func(ctx context.Context, method string, params map[string]any) error {
		// Prefer the session of the originating call; delayed publishes
		// outlive it and fall back to every connected client.
		if err := s.SendNotificationToClient(ctx, method, params); err == nil {
			return nil
		}
		s.SendNotificationToAllClients(method, params)
		return nil
	})
}

func newNotifier(config server.ConfigProvider, send sendFunc) *Notifier {
	return &Notifier{config: config, send: send, progress: map[string]*progressState{}}
}

// Capabilities implements document.Client.
func (n *Notifier) Capabilities() document.Capabilities {
	return document.Capabilities{
		WorkDoneProgress:       true,
		WorkspaceConfiguration: n.config.HasWorkspaceConfiguration(),
	}
}

// PublishDiagnostics implements document.Client.
func (n *Notifier) PublishDiagnostics(ctx context.Context, uri string, diagnostics []document.Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []document.Diagnostic{}
	}
	return n.send(ctx, DiagnosticsMethod, map[string]any{
		"uri":         uri,
		"diagnostics": diagnostics,
	})
}

// CreateProgress implements document.Client. It fails when the current
// tool call carries no progress token.
func (n *Notifier) CreateProgress(ctx context.Context, token json.RawMessage) error {
	requestToken := progressTokenFrom(ctx)
	if requestToken == nil {
		return errNoProgressToken
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress[string(token)] = &progressState{token: requestToken}
	return nil
}

// NotifyProgress implements document.Client.
func (n *Notifier) NotifyProgress(ctx context.Context, token json.RawMessage, p document.Progress) error {
	n.mu.Lock()
	state, ok := n.progress[string(token)]
	if ok {
		state.step++
		if p.Kind == document.ProgressEnd {
			delete(n.progress, string(token))
		}
	}
	n.mu.Unlock()
	if !ok {
		return errNoProgressToken
	}

	params := map[string]any{
		"progressToken": state.token,
		"progress":      state.step,
	}
	if msg := p.Message; msg != "" {
		params["message"] = msg
	} else if p.Title != "" {
		params["message"] = p.Title
	}
	if p.Kind == document.ProgressEnd {
		params["total"] = state.step
	}
	return n.send(ctx, ProgressMethod, params)
}

// FetchConfiguration implements document.Client.
func (n *Notifier) FetchConfiguration(ctx context.Context, scopeURI, section string) (json.RawMessage, error) {
	return n.config.Configuration(ctx, scopeURI, section)
}

// FetchWorkspaceConfiguration implements document.Client.
func (n *Notifier) FetchWorkspaceConfiguration(ctx context.Context, scopeURI string) (json.RawMessage, error) {
	return n.config.WorkspaceConfiguration(ctx, scopeURI)
}
