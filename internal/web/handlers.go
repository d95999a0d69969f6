package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/ops"
	"github.com/hpungsan/proofd/internal/server"
	"github.com/hpungsan/proofd/internal/workspace"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	registry  *server.Registry
	db        *sql.DB
	workspace string
	renderer  *Renderer
}

// HandleDocuments handles GET /documents: list open documents.
func (h *Handlers) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	rows := make([]DocumentRow, 0, len(sessions))
	for _, s := range sessions {
		diagnostics := s.DiagnosticsCache()
		rows = append(rows, DocumentRow{
			URI:         s.URI(),
			LanguageID:  s.LanguageID(),
			Version:     s.Version(),
			Checked:     diagnostics != nil,
			Diagnostics: len(diagnostics),
		})
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"items": rows})
		return
	}

	h.renderer.renderPage(w, r, "documents", DocumentsPageData{
		PageData: PageData{
			Title:   "Documents",
			Version: h.renderer.version,
			Nav:     "documents",
		},
		Items: rows,
	})
}

// HandleDocument handles GET /documents/view?uri=: one document and its
// diagnostics.
func (h *Handlers) HandleDocument(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("uri is required"))
		return
	}

	s, ok := h.registry.Get(uri)
	if !ok {
		h.renderer.renderError(w, r, errors.NewDocumentNotOpen(uri))
		return
	}

	snap := s.Snapshot()
	diagnostics := s.DiagnosticsCache()
	data := DocumentPageData{
		PageData: PageData{
			Title:   uri,
			Version: h.renderer.version,
			Nav:     "documents",
		},
		URI:         uri,
		LanguageID:  snap.LanguageID,
		Version:     snap.Version,
		Caret:       s.Caret(),
		Checked:     diagnostics != nil,
		Diagnostics: diagnostics,
		Text:        snap.Text,
	}
	if snap.LanguageID == "markdown" {
		data.Rendered = renderMarkdown(snap.Text)
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"uri":         data.URI,
			"language_id": data.LanguageID,
			"version":     data.Version,
			"caret":       data.Caret,
			"diagnostics": data.Diagnostics,
		})
		return
	}

	h.renderer.renderPage(w, r, "document", data)
}

// HandleRecheck handles POST /documents/recheck: recheck every open
// document without caches.
func (h *Handlers) HandleRecheck(w http.ResponseWriter, r *http.Request) {
	rechecked, err := h.registry.RecheckAll(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"rechecked": rechecked})
		return
	}
	http.Redirect(w, r, "/documents", http.StatusSeeOther)
}

// HandleWorkspace handles GET /workspace: list workspace entries.
func (h *Handlers) HandleWorkspace(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("workspace store not configured"))
		return
	}

	ws := r.URL.Query().Get("workspace")
	if ws == "" {
		ws = h.workspace
	}
	kind := r.URL.Query().Get("kind")
	language := r.URL.Query().Get("language")

	result, err := ops.ListEntries(r.Context(), h.db, ops.ListEntriesInput{
		Workspace: ws,
		Kind:      kind,
		Language:  language,
		Limit:     parseIntParam(r, "limit", 50),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	kinds := make([]string, 0, len(workspace.Kinds))
	for _, k := range workspace.Kinds {
		kinds = append(kinds, string(k))
	}

	h.renderer.renderPage(w, r, "workspace", WorkspacePageData{
		PageData: PageData{
			Title:   "Workspace",
			Version: h.renderer.version,
			Nav:     "workspace",
		},
		Workspace:  result.Workspace,
		Kind:       kind,
		Language:   language,
		Kinds:      kinds,
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
