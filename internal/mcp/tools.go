package mcp

import "github.com/mark3labs/mcp-go/mcp"

var positionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"line":      map[string]any{"type": "integer", "minimum": 0},
		"character": map[string]any{"type": "integer", "minimum": 0},
	},
	"required": []string{"line", "character"},
}

var rangeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"start": positionSchema,
		"end":   positionSchema,
	},
	"required": []string{"start", "end"},
}

var openToolDef = mcp.NewTool("document_open",
	mcp.WithDescription("Open a document for proofreading. Checks it immediately when checkFrequency is edit and returns its diagnostics."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI, unique among open documents")),
	mcp.WithString("language_id", mcp.Description("Content type such as markdown or plaintext (default: plaintext)")),
	mcp.WithNumber("version", mcp.Description("Initial version (default: 1)")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Full document text")),
)

var changeToolDef = mcp.NewTool("document_change",
	mcp.WithDescription("Apply edits to an open document. A change without a range replaces the whole text. Offsets are UTF-8 bytes."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
	mcp.WithNumber("version", mcp.Description("New version; non-increasing versions become current+1")),
	mcp.WithArray("changes", mcp.Required(), mcp.Description("Edits applied in order"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"range": rangeSchema,
				"text":  map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		})),
)

var saveToolDef = mcp.NewTool("document_save",
	mcp.WithDescription("Record a save. Checks the document when checkFrequency is save."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
)

var closeToolDef = mcp.NewTool("document_close",
	mcp.WithDescription("Close a document and stop its pending publishes."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
)

var listToolDef = mcp.NewTool("document_list",
	mcp.WithDescription("List open documents with their versions and diagnostic counts."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var checkToolDef = mcp.NewTool("document_check",
	mcp.WithDescription("Check a document and publish diagnostics, hiding those at the caret until it rests."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
	mcp.WithObject("range", mcp.Description("Restrict the check to this range"), mcp.Properties(rangeSchema["properties"].(map[string]any))),
	mcp.WithBoolean("use_cache", mcp.Description("Reuse a cached result for the same version (default: true)")),
)

var diagnosticsToolDef = mcp.NewTool("document_diagnostics",
	mcp.WithDescription("Return cached diagnostics without checking. null means the current version has not been checked."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var caretToolDef = mcp.NewTool("document_caret",
	mcp.WithDescription("Get or set the caret. Omit caret to read it; pass null to clear it."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
	mcp.WithObject("caret", mcp.Description("Caret position"), mcp.Properties(positionSchema["properties"].(map[string]any))),
)

var positionToolDef = mcp.NewTool("document_position",
	mcp.WithDescription("Convert between a byte offset and a line/character position."),
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI")),
	mcp.WithNumber("offset", mcp.Description("Byte offset to convert")),
	mcp.WithObject("position", mcp.Description("Position to convert"), mcp.Properties(positionSchema["properties"].(map[string]any))),
	mcp.WithReadOnlyHintAnnotation(true),
)

var addWordToolDef = mcp.NewTool("workspace_add_word",
	mcp.WithDescription("Add a word to the workspace dictionary and recheck open documents. A word starting with '-' removes it from the configured dictionary."),
	mcp.WithString("workspace", mcp.Description("Workspace (default: the server's workspace)")),
	mcp.WithString("language", mcp.Required(), mcp.Description("Language code such as en-US")),
	mcp.WithString("word", mcp.Required(), mcp.Description("Word to accept")),
)

var removeWordToolDef = mcp.NewTool("workspace_remove_word",
	mcp.WithDescription("Remove a word from the workspace dictionary and recheck open documents."),
	mcp.WithString("workspace", mcp.Description("Workspace (default: the server's workspace)")),
	mcp.WithString("language", mcp.Required(), mcp.Description("Language code")),
	mcp.WithString("word", mcp.Required(), mcp.Description("Word to remove")),
)

var disableRuleToolDef = mcp.NewTool("workspace_disable_rule",
	mcp.WithDescription("Disable a rule for a language in the workspace and recheck open documents."),
	mcp.WithString("workspace", mcp.Description("Workspace (default: the server's workspace)")),
	mcp.WithString("language", mcp.Required(), mcp.Description("Language code")),
	mcp.WithString("rule", mcp.Required(), mcp.Description("Rule ID, the diagnostic code")),
)

var hideFalsePositiveToolDef = mcp.NewTool("workspace_hide_false_positive",
	mcp.WithDescription("Hide a rule's matches in one sentence and recheck open documents."),
	mcp.WithString("workspace", mcp.Description("Workspace (default: the server's workspace)")),
	mcp.WithString("language", mcp.Required(), mcp.Description("Language code")),
	mcp.WithString("rule", mcp.Required(), mcp.Description("Rule ID, the diagnostic code")),
	mcp.WithString("sentence", mcp.Required(), mcp.Description("Sentence containing the match, matched literally")),
)

var entriesToolDef = mcp.NewTool("workspace_entries",
	mcp.WithDescription("List stored workspace entries oldest first."),
	mcp.WithString("workspace", mcp.Description("Workspace (default: the server's workspace)")),
	mcp.WithString("kind", mcp.Description("Filter by kind"), mcp.Enum("word", "disabled_rule", "enabled_rule", "hidden_false_positive")),
	mcp.WithString("language", mcp.Description("Filter by language")),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 100, max: 500)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)
