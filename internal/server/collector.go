package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"slices"
	"sync"

	"github.com/hpungsan/proofd/internal/document"
)

// ErrNoProgress is returned by clients that cannot show progress.
var ErrNoProgress = stderrors.New("progress not supported")

// ConfigProvider answers the configuration requests a document.Client
// forwards. ConfigSource is the production implementation.
type ConfigProvider interface {
	Configuration(ctx context.Context, scopeURI, section string) (json.RawMessage, error)
	WorkspaceConfiguration(ctx context.Context, scopeURI string) (json.RawMessage, error)
	HasWorkspaceConfiguration() bool
}

// Collector is a document.Client without a transport. It keeps the last
// diagnostics published for each URI; the CLI uses it for one-shot checks.
type Collector struct {
	config ConfigProvider

	mu        sync.Mutex
	published map[string][]document.Diagnostic
}

// NewCollector creates a collector backed by config.
func NewCollector(config ConfigProvider) *Collector {
	return &Collector{config: config, published: map[string][]document.Diagnostic{}}
}

// Capabilities implements document.Client.
func (c *Collector) Capabilities() document.Capabilities {
	return document.Capabilities{WorkspaceConfiguration: c.config.HasWorkspaceConfiguration()}
}

// PublishDiagnostics implements document.Client.
func (c *Collector) PublishDiagnostics(_ context.Context, uri string, diagnostics []document.Diagnostic) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[uri] = slices.Clone(diagnostics)
	return nil
}

// CreateProgress implements document.Client; it always fails.
func (c *Collector) CreateProgress(context.Context, json.RawMessage) error {
	return ErrNoProgress
}

// NotifyProgress implements document.Client.
func (c *Collector) NotifyProgress(context.Context, json.RawMessage, document.Progress) error {
	return ErrNoProgress
}

// FetchConfiguration implements document.Client.
func (c *Collector) FetchConfiguration(ctx context.Context, scopeURI, section string) (json.RawMessage, error) {
	return c.config.Configuration(ctx, scopeURI, section)
}

// FetchWorkspaceConfiguration implements document.Client.
func (c *Collector) FetchWorkspaceConfiguration(ctx context.Context, scopeURI string) (json.RawMessage, error) {
	return c.config.WorkspaceConfiguration(ctx, scopeURI)
}

// Diagnostics returns the last diagnostics published for uri.
func (c *Collector) Diagnostics(uri string) ([]document.Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.published[uri]
	return slices.Clone(d), ok
}
