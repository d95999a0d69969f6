package server

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/proofd/internal/checker"
	"github.com/hpungsan/proofd/internal/diagnostics"
	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/settings"
)

// recheckConcurrency bounds RecheckAll.
const recheckConcurrency = 4

// Registry holds the open documents and implements document.Host for them.
type Registry struct {
	settings  *settings.Manager
	checker   *checker.DocumentChecker
	converter *diagnostics.Converter
	opts      []document.Option
	logger    *slog.Logger

	mu       sync.RWMutex
	client   document.Client
	sessions map[string]*document.Session
}

// NewRegistry creates an empty registry. opts are passed to every session.
func NewRegistry(mgr *settings.Manager, factory checker.EngineFactory, logger *slog.Logger, opts ...document.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		settings:  mgr,
		checker:   checker.NewDocumentChecker(mgr, factory),
		converter: diagnostics.NewConverter(mgr),
		opts:      append([]document.Option{document.WithLogger(logger)}, opts...),
		logger:    logger,
		sessions:  map[string]*document.Session{},
	}
}

// Client implements document.Host. It returns a nil interface while no
// client is connected.
func (r *Registry) Client() document.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil
	}
	return r.client
}

// Settings implements document.Host.
func (r *Registry) Settings() document.SettingsStore { return r.settings }

// Checker implements document.Host.
func (r *Registry) Checker() document.Checker { return r.checker }

// Converter implements document.Host.
func (r *Registry) Converter() document.DiagnosticConverter { return r.converter }

// SettingsManager returns the shared settings manager.
func (r *Registry) SettingsManager() *settings.Manager { return r.settings }

// SetClient connects or, with nil, disconnects the client.
func (r *Registry) SetClient(c document.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = c
}

// Open starts a session. Opening a URI twice fails with DOCUMENT_OPEN.
func (r *Registry) Open(ctx context.Context, uri, languageID string, version int, text string) (*document.Session, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.NewInvalidRequest("uri is required")
	}

	r.mu.Lock()
	if _, ok := r.sessions[uri]; ok {
		r.mu.Unlock()
		return nil, errors.NewDocumentOpen(uri)
	}
	s := document.NewSession(r, uri, languageID, version, text, r.opts...)
	r.sessions[uri] = s
	r.mu.Unlock()

	r.logger.Debug("document opened", "uri", uri, "language_id", languageID, "version", version)
	r.autoCheck(ctx, s, settings.CheckOnEdit)
	return s, nil
}

// Change applies edits to an open document.
func (r *Registry) Change(ctx context.Context, uri string, version int, events []document.TextChangeEvent) (*document.Session, error) {
	s, err := r.mustGet(uri)
	if err != nil {
		return nil, err
	}
	s.ApplyTextChangeEvents(version, events)
	r.autoCheck(ctx, s, settings.CheckOnEdit)
	return s, nil
}

// Save records a save of an open document.
func (r *Registry) Save(ctx context.Context, uri string) (*document.Session, error) {
	s, err := r.mustGet(uri)
	if err != nil {
		return nil, err
	}
	r.autoCheck(ctx, s, settings.CheckOnSave)
	return s, nil
}

// Close discards a session. Its diagnostics are cleared on the client when
// clearDiagnosticsWhenClosingFile is set.
func (r *Registry) Close(ctx context.Context, uri string) error {
	r.mu.Lock()
	s, ok := r.sessions[uri]
	if ok {
		delete(r.sessions, uri)
	}
	client := r.client
	r.mu.Unlock()
	if !ok {
		return errors.NewDocumentNotOpen(uri)
	}

	s.Close()
	r.logger.Debug("document closed", "uri", uri)

	if client != nil && r.settings.Current().ClearDiagnosticsWhenClosingFile {
		if err := client.PublishDiagnostics(ctx, uri, []document.Diagnostic{}); err != nil {
			r.logger.Warn("clearing diagnostics failed", "uri", uri, "error", err)
		}
	}
	return nil
}

// CloseAll discards every session without notifying the client.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[string]*document.Session{}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Get returns the session for uri.
func (r *Registry) Get(uri string) (*document.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[uri]
	return s, ok
}

// List returns the open sessions ordered by URI.
func (r *Registry) List() []*document.Session {
	r.mu.RLock()
	out := make([]*document.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *document.Session) int { return strings.Compare(a.URI(), b.URI()) })
	return out
}

// RecheckAll rechecks and publishes every open document, ignoring caches.
// A failing document does not stop the others. It returns how many
// documents were rechecked; failures are logged and the first is returned.
func (r *Registry) RecheckAll(ctx context.Context) (int, error) {
	var (
		g         errgroup.Group
		rechecked atomic.Int64
	)
	g.SetLimit(recheckConcurrency)
	for _, s := range r.List() {
		g.Go(func() error {
			if _, err := s.CheckAndPublishWithoutCache(ctx, nil); err != nil {
				r.logger.Warn("recheck failed", "uri", s.URI(), "error", err)
				return err
			}
			rechecked.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(rechecked.Load()), err
}

func (r *Registry) mustGet(uri string) (*document.Session, error) {
	s, ok := r.Get(uri)
	if !ok {
		return nil, errors.NewDocumentNotOpen(uri)
	}
	return s, nil
}

// autoCheck checks and publishes when the configured frequency matches
// trigger. Errors are logged, not returned: the edit itself succeeded.
func (r *Registry) autoCheck(ctx context.Context, s *document.Session, trigger settings.CheckFrequency) {
	if r.settings.Current().CheckFrequency != trigger {
		return
	}
	if _, err := s.CheckAndPublishWithCache(ctx, nil); err != nil {
		r.logger.Warn("automatic check failed", "uri", s.URI(), "error", err)
	}
}
