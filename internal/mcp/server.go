package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/proofd/internal/config"
	"github.com/hpungsan/proofd/internal/server"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"document", "workspace"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) mcpserver.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"document_open": {
		def:     openToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleOpen },
	},
	"document_change": {
		def:     changeToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleChange },
	},
	"document_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleSave },
	},
	"document_close": {
		def:     closeToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleClose },
	},
	"document_list": {
		def:     listToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleList },
	},
	"document_check": {
		def:     checkToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleCheck },
	},
	"document_diagnostics": {
		def:     diagnosticsToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleDiagnostics },
	},
	"document_caret": {
		def:     caretToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleCaret },
	},
	"document_position": {
		def:     positionToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandlePosition },
	},
	"workspace_add_word": {
		def:     addWordToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleAddWord },
	},
	"workspace_remove_word": {
		def:     removeWordToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleRemoveWord },
	},
	"workspace_disable_rule": {
		def:     disableRuleToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleDisableRule },
	},
	"workspace_hide_false_positive": {
		def:     hideFalsePositiveToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleHideFalsePositive },
	},
	"workspace_entries": {
		def:     entriesToolDef,
		handler: func(h *Handlers) mcpserver.ToolHandlerFunc { return h.HandleEntries },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "document_open" → "document").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// Deps are the collaborators of the MCP server.
type Deps struct {
	Registry  *server.Registry
	DB        *sql.DB // nil disables the workspace store
	Config    server.ConfigProvider
	Workspace string
}

// NewServer creates a new MCP server with proofd tools registered and makes
// it the registry's client. Tools listed in cfg.DisabledTools or belonging to
// cfg.DisabledTypes are excluded from registration.
func NewServer(deps Deps, cfg *config.Config, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"proofd",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	deps.Registry.SetClient(NewNotifier(s, deps.Config))
	h := NewHandlers(deps.Registry, deps.DB, deps.Workspace)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, cfg *config.Config, version string) error {
	s := NewServer(deps, cfg, version)
	return mcpserver.ServeStdio(s)
}
