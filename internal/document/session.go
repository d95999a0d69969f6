package document

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hpungsan/proofd/internal/checker"
)

// DefaultPublishDelay is how long the caret must rest before diagnostics
// hidden under it are published.
const DefaultPublishDelay = 500 * time.Millisecond

// Capabilities are the optional client features a session may use.
type Capabilities struct {
	WorkDoneProgress       bool
	WorkspaceConfiguration bool
}

// ProgressKind is the phase of a progress notification.
type ProgressKind string

const (
	ProgressBegin  ProgressKind = "begin"
	ProgressReport ProgressKind = "report"
	ProgressEnd    ProgressKind = "end"
)

// Progress is one progress notification.
type Progress struct {
	Kind    ProgressKind `json:"kind"`
	Title   string       `json:"title,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Client is the connected editor or agent.
type Client interface {
	Capabilities() Capabilities
	PublishDiagnostics(ctx context.Context, uri string, diagnostics []Diagnostic) error
	CreateProgress(ctx context.Context, token json.RawMessage) error
	NotifyProgress(ctx context.Context, token json.RawMessage, p Progress) error
	FetchConfiguration(ctx context.Context, scopeURI, section string) (json.RawMessage, error)
	FetchWorkspaceConfiguration(ctx context.Context, scopeURI string) (json.RawMessage, error)
}

// SettingsStore receives the configuration fetched before every check.
type SettingsStore interface {
	Apply(config, workspaceConfig json.RawMessage) error
}

// Checker runs the rule engine.
type Checker interface {
	Check(ctx context.Context, req checker.Request) (checker.Result, error)
}

// DiagnosticConverter renders a rule match. It must not call back into the
// session.
type DiagnosticConverter interface {
	ToDiagnostic(match checker.RuleMatch, snap *Snapshot) Diagnostic
}

// Host provides a session's collaborators. Client returns nil while no
// transport is connected.
type Host interface {
	Client() Client
	Settings() SettingsStore
	Checker() Checker
	Converter() DiagnosticConverter
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPublishDelay sets how long the caret must rest before the delayed
// publish fires.
func WithPublishDelay(d time.Duration) Option {
	return func(s *Session) { s.publishDelay = d }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is the live state of one open document.
type Session struct {
	host         Host
	now          func() time.Time
	publishDelay time.Duration
	logger       *slog.Logger

	mu              sync.Mutex
	snap            *Snapshot
	result          *CheckResult
	diagnostics     []Diagnostic
	caret           *Position
	lastCaretChange time.Time

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSession creates a session for a freshly opened document.
func NewSession(host Host, uri, languageID string, version int, text string, opts ...Option) *Session {
	s := &Session{
		host:         host,
		now:          time.Now,
		publishDelay: DefaultPublishDelay,
		logger:       slog.Default(),
		snap:         NewSnapshot(uri, languageID, version, text),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("uri", uri)
	s.lastCaretChange = s.now()
	return s
}

// URI returns the document URI.
func (s *Session) URI() string {
	return s.Snapshot().URI
}

// LanguageID returns the content-type tag.
func (s *Session) LanguageID() string {
	return s.Snapshot().LanguageID
}

// Version returns the current version.
func (s *Session) Version() int {
	return s.Snapshot().Version
}

// Text returns the current buffer.
func (s *Session) Text() string {
	return s.Snapshot().Text
}

// Snapshot returns the current immutable snapshot.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// OffsetOf converts a position against the current buffer.
func (s *Session) OffsetOf(p Position) int {
	return s.Snapshot().OffsetOf(p)
}

// PositionOf converts an offset against the current buffer.
func (s *Session) PositionOf(offset int) Position {
	return s.Snapshot().PositionOf(offset)
}

// Caret returns a copy of the inferred caret, or nil when unknown.
func (s *Session) Caret() *Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPosition(s.caret)
}

// SetCaret sets the caret. A nil caret means unknown; the last caret change
// timestamp is not touched.
func (s *Session) SetCaret(p *Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caret = copyPosition(p)
}

// LastCaretChange returns when the caret was last moved.
func (s *Session) LastCaretChange() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCaretChange
}

// SetLastCaretChange overrides the last caret change timestamp.
func (s *Session) SetLastCaretChange(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCaretChange = t
}

// CheckResultCache returns the cached check result, or nil.
func (s *Session) CheckResultCache() *CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// DiagnosticsCache returns a copy of the cached diagnostics, or nil when
// the cache is absent. An empty non-nil slice means "checked, no issues".
func (s *Session) DiagnosticsCache() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.diagnostics == nil {
		return nil
	}
	return slices.Clone(s.diagnostics)
}

// Close stops pending delayed publishes. The session must not be used for
// checks afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// invalidate drops cached results. Caller holds s.mu.
func (s *Session) invalidate() {
	s.result = nil
	s.diagnostics = nil
}

func copyPosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
