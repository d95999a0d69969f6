package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hpungsan/proofd/internal/config"
	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/ops"
	"github.com/hpungsan/proofd/internal/settings"
)

// ConfigSource answers configuration requests from the JSON config
// hierarchy and the workspace store.
type ConfigSource struct {
	globalDir string
	startDir  string
	database  *sql.DB
	workspace string

	mu  sync.RWMutex
	cfg *config.Config
}

// NewConfigSource loads the config hierarchy once. database may be nil, in
// which case there is no workspace-specific configuration.
func NewConfigSource(globalDir, startDir string, database *sql.DB, workspace string) (*ConfigSource, error) {
	cs := &ConfigSource{
		globalDir: globalDir,
		startDir:  startDir,
		database:  database,
		workspace: workspace,
	}
	if err := cs.Reload(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Reload re-reads the config files. On error the previous config is kept.
func (cs *ConfigSource) Reload() error {
	cfg, err := config.LoadWithRepo(cs.globalDir, cs.startDir)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
	return nil
}

// Config returns the current merged config.
func (cs *ConfigSource) Config() *config.Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cfg
}

// Paths returns the config files backing this source.
func (cs *ConfigSource) Paths() []string {
	return config.Paths(cs.globalDir, cs.startDir)
}

// Workspace returns the workspace used for workspace-specific settings.
func (cs *ConfigSource) Workspace() string {
	return cs.workspace
}

// HasWorkspaceConfiguration reports whether a workspace store is attached.
func (cs *ConfigSource) HasWorkspaceConfiguration() bool {
	return cs.database != nil
}

// Configuration returns the settings section. Unknown sections are null.
func (cs *ConfigSource) Configuration(_ context.Context, _ string, section string) (json.RawMessage, error) {
	if section != document.ConfigurationSection {
		return nil, nil
	}
	return cs.Config().Settings, nil
}

// WorkspaceConfiguration returns the workspace-specific settings.
func (cs *ConfigSource) WorkspaceConfiguration(ctx context.Context, _ string) (json.RawMessage, error) {
	if cs.database == nil {
		return nil, nil
	}
	return ops.WorkspaceConfiguration(ctx, cs.database, cs.workspace)
}

// Watch reloads the config and calls onChange whenever a config file
// changes, until ctx is done.
func (cs *ConfigSource) Watch(ctx context.Context, onChange func()) error {
	w, err := config.NewWatcher(cs.Paths(), func() {
		if err := cs.Reload(); err != nil {
			slog.Warn("config reload failed", "error", err)
			return
		}
		onChange()
	})
	if err != nil {
		return err
	}
	go func() {
		defer w.Stop()
		w.Start(ctx)
	}()
	return nil
}

// ApplyTo loads the current configuration into mgr so decisions made
// before the first check, such as the check frequency, see it.
func (cs *ConfigSource) ApplyTo(ctx context.Context, mgr *settings.Manager) error {
	ws, err := cs.WorkspaceConfiguration(ctx, "")
	if err != nil {
		return err
	}
	return mgr.Apply(cs.Config().Settings, ws)
}
