package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hpungsan/proofd/internal/checker"
)

type publishCall struct {
	uri         string
	diagnostics []Diagnostic
}

type fakeClient struct {
	mu sync.Mutex

	caps           Capabilities
	createErr      error
	configErr      error
	config         json.RawMessage
	workspace      json.RawMessage
	publishes      []publishCall
	progress       []Progress
	tokens         []json.RawMessage
	configFetches  int
	sectionFetched string
	workspaceFetch int
}

func (c *fakeClient) Capabilities() Capabilities { return c.caps }

func (c *fakeClient) PublishDiagnostics(_ context.Context, uri string, diagnostics []Diagnostic) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishes = append(c.publishes, publishCall{uri: uri, diagnostics: diagnostics})
	return nil
}

func (c *fakeClient) CreateProgress(_ context.Context, token json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return c.createErr
	}
	c.tokens = append(c.tokens, token)
	return nil
}

func (c *fakeClient) NotifyProgress(_ context.Context, _ json.RawMessage, p Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = append(c.progress, p)
	return nil
}

func (c *fakeClient) FetchConfiguration(_ context.Context, _ string, section string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configFetches++
	c.sectionFetched = section
	return c.config, c.configErr
}

func (c *fakeClient) FetchWorkspaceConfiguration(context.Context, string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workspaceFetch++
	return c.workspace, nil
}

func (c *fakeClient) published() []publishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishCall(nil), c.publishes...)
}

type fakeSettings struct {
	mu        sync.Mutex
	applied   int
	config    json.RawMessage
	workspace json.RawMessage
}

func (s *fakeSettings) Apply(config, workspace json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied++
	s.config, s.workspace = config, workspace
	return nil
}

type fakeChecker struct {
	mu       sync.Mutex
	calls    int
	requests []checker.Request
	err      error
	// onCheck runs inside Check before returning.
	onCheck func()
	match   func(text string) []checker.RuleMatch
}

func (c *fakeChecker) Check(_ context.Context, req checker.Request) (checker.Result, error) {
	c.mu.Lock()
	c.calls++
	c.requests = append(c.requests, req)
	onCheck := c.onCheck
	c.mu.Unlock()

	if onCheck != nil {
		onCheck()
	}
	if c.err != nil {
		return checker.Result{}, c.err
	}
	var matches []checker.RuleMatch
	if c.match != nil {
		matches = c.match(req.Text)
	}
	return checker.Result{
		Matches:   matches,
		Fragments: []checker.Fragment{{CodeLanguageID: req.LanguageID, Language: "en-US", ToPos: len(req.Text)}},
	}, nil
}

func (c *fakeChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeConverter struct{}

func (fakeConverter) ToDiagnostic(m checker.RuleMatch, snap *Snapshot) Diagnostic {
	return Diagnostic{
		Range:    snap.RangeOf(m.FromPos, m.ToPos),
		Severity: SeverityInformation,
		Code:     m.RuleID,
		Source:   "test",
		Message:  fmt.Sprintf("%s at %d", m.RuleID, m.FromPos),
	}
}

type fakeHost struct {
	client   *fakeClient
	settings *fakeSettings
	checker  *fakeChecker
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		client:   &fakeClient{},
		settings: &fakeSettings{},
		checker:  &fakeChecker{},
	}
}

func (h *fakeHost) Client() Client {
	if h.client == nil {
		return nil
	}
	return h.client
}

func (h *fakeHost) Settings() SettingsStore        { return h.settings }
func (h *fakeHost) Checker() Checker               { return h.checker }
func (h *fakeHost) Converter() DiagnosticConverter { return fakeConverter{} }

// wordMatches reports one match per occurrence of word.
func wordMatches(word string) func(string) []checker.RuleMatch {
	return func(text string) []checker.RuleMatch {
		var matches []checker.RuleMatch
		for i := 0; i+len(word) <= len(text); i++ {
			if text[i:i+len(word)] == word {
				matches = append(matches, checker.RuleMatch{RuleID: "WORD", FromPos: i, ToPos: i + len(word)})
			}
		}
		return matches
	}
}
