package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/proofd/internal/config"
	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/mcp"
	"github.com/hpungsan/proofd/internal/ops"
	"github.com/hpungsan/proofd/internal/server"
	"github.com/hpungsan/proofd/internal/settings"
	"github.com/hpungsan/proofd/internal/web"
	"github.com/hpungsan/proofd/internal/workspace"
)

// env holds what every command needs once the store and config are open.
type env struct {
	db        *sql.DB
	source    *server.ConfigSource
	logger    *slog.Logger
	workspace string
}

// newRegistry creates a document registry primed with the current settings.
func (e *env) newRegistry(ctx context.Context) (*server.Registry, error) {
	cfg := e.source.Config()
	registry := server.NewRegistry(settings.NewManager(settings.Default()), server.EngineFactory(), e.logger,
		document.WithPublishDelay(cfg.PublishDelay()),
		document.WithLogger(e.logger),
	)
	if err := e.source.ApplyTo(ctx, registry.SettingsManager()); err != nil {
		return nil, fmt.Errorf("apply settings: %w", err)
	}
	return registry, nil
}

// defaultLanguage is the configured checking language.
func (e *env) defaultLanguage() string {
	s, err := settings.Parse(e.source.Config().Settings, nil)
	if err != nil {
		return settings.Default().Language
	}
	return s.Language
}

// newCLIApp creates the CLI application with all commands. e is nil when
// only help or version output is needed.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "proofd",
		Usage:   "Grammar and spell checking for editors and agents",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(e),
			checkCmd(e),
			dictCmd(e),
			rulesCmd(e),
			hideCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio, optionally with the status UI",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ui-port", Usage: "Serve the status UI on this port (default: config ui_port, 0 disables)"},
			&cli.StringFlag{Name: "ui-bind", Value: "127.0.0.1", Usage: "Address the status UI binds to"},
		},
		Action: func(c *cli.Context) error {
			return serve(e, c.Int("ui-port"), c.String("ui-bind"))
		},
	}
}

// serve runs the MCP server until stdin closes. With a UI port, the status
// UI runs alongside it.
func serve(e *env, uiPort int, bind string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := e.source.Config()
	warnUnknownDisabled(e.logger, cfg)

	registry, err := e.newRegistry(ctx)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	err = e.source.Watch(ctx, func() {
		e.logger.Info("config changed, rechecking open documents")
		if _, err := registry.RecheckAll(ctx); err != nil {
			e.logger.Warn("recheck after config change failed", "error", err)
		}
	})
	if err != nil {
		e.logger.Warn("config watch unavailable", "error", err)
	}

	if uiPort == 0 {
		uiPort = cfg.UIPort
	}
	if bind == "" {
		bind = "127.0.0.1"
	}

	g, gctx := errgroup.WithContext(ctx)
	if uiPort > 0 {
		srv := web.NewServer(web.Deps{Registry: registry, DB: e.db, Workspace: e.workspace}, Version, bind, uiPort)
		g.Go(func() error {
			// A failed UI must not take the MCP session down.
			if err := web.Run(gctx, srv); err != nil {
				e.logger.Error("status UI stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stop()
		return mcp.Run(mcp.Deps{
			Registry:  registry,
			DB:        e.db,
			Config:    e.source,
			Workspace: e.workspace,
		}, cfg, Version)
	})
	return g.Wait()
}

func warnUnknownDisabled(logger *slog.Logger, cfg *config.Config) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", "types", unknown)
	}
}

// checkCmd creates the check command.
func checkCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check a file once and print its diagnostics",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "language-id", Usage: "Document language ID (default: from the file extension)"},
			&cli.BoolFlag{Name: "fail", Usage: "Exit with status 2 when there are diagnostics"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one FILE is required"))
			}
			path, err := filepath.Abs(c.Args().First())
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", path, err)))
			}

			languageID := c.String("language-id")
			if languageID == "" {
				languageID = languageIDFor(path)
			}

			diagnostics, err := checkText(c.Context, e, fileURI(path), languageID, string(data))
			if err != nil {
				return outputError(err)
			}

			if err := outputJSON(c.App.Writer, map[string]any{
				"uri":         fileURI(path),
				"language_id": languageID,
				"diagnostics": diagnostics,
			}); err != nil {
				return err
			}
			if c.Bool("fail") && len(diagnostics) > 0 {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

// checkText opens text in a fresh registry, checks it and returns what was
// published.
func checkText(ctx context.Context, e *env, uri, languageID, text string) ([]document.Diagnostic, error) {
	registry, err := e.newRegistry(ctx)
	if err != nil {
		return nil, err
	}
	defer registry.CloseAll()

	collector := server.NewCollector(e.source)
	registry.SetClient(collector)

	s, err := registry.Open(ctx, uri, languageID, 1, text)
	if err != nil {
		return nil, err
	}
	if _, err := s.CheckAndPublishWithCache(ctx, nil); err != nil {
		return nil, err
	}

	diagnostics, _ := collector.Diagnostics(uri)
	if diagnostics == nil {
		diagnostics = []document.Diagnostic{}
	}
	return diagnostics, nil
}

// entryFlags are shared by the workspace entry commands.
func entryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace name (default: the repo holding .proofd, else \"default\")"},
		&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language code (default: the configured language)"},
	}
}

func (e *env) keyInput(c *cli.Context, kind workspace.Kind, value string) ops.KeyInput {
	ws := c.String("workspace")
	if ws == "" {
		ws = e.workspace
	}
	language := c.String("language")
	if language == "" {
		language = e.defaultLanguage()
	}
	return ops.KeyInput{Workspace: ws, Kind: string(kind), Language: language, Value: value}
}

// addEntryCmd creates a command that stores one workspace entry.
func addEntryCmd(e *env, name, usage, argsUsage string, kind workspace.Kind) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argsUsage,
		Flags:     entryFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest(argsUsage + " is required"))
			}
			entry, err := ops.AddEntry(c.Context, e.db, e.keyInput(c, kind, c.Args().First()))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, entry)
		},
	}
}

// listEntriesCmd creates a command that lists workspace entries of the given kinds.
func listEntriesCmd(e *env, usage string, kinds ...workspace.Kind) *cli.Command {
	flags := append(entryFlags(),
		&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum items to return per kind"},
		&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
	)
	return &cli.Command{
		Name:  "list",
		Usage: usage,
		Flags: flags,
		Action: func(c *cli.Context) error {
			ws := c.String("workspace")
			if ws == "" {
				ws = e.workspace
			}
			out := make(map[string]*ops.ListEntriesOutput, len(kinds))
			for _, kind := range kinds {
				result, err := ops.ListEntries(c.Context, e.db, ops.ListEntriesInput{
					Workspace: ws,
					Kind:      string(kind),
					Language:  c.String("language"),
					Limit:     c.Int("limit"),
					Offset:    c.Int("offset"),
				})
				if err != nil {
					return outputError(err)
				}
				out[string(kind)] = result
			}
			if len(kinds) == 1 {
				return outputJSON(c.App.Writer, out[string(kinds[0])])
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// dictCmd creates the dict command.
func dictCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "dict",
		Usage: "Manage workspace dictionary words",
		Subcommands: []*cli.Command{
			addEntryCmd(e, "add", "Add a word; \"-word\" removes a word from configured dictionaries", "WORD", workspace.KindWord),
			{
				Name:      "remove",
				Usage:     "Remove a word added with dict add",
				ArgsUsage: "WORD",
				Flags:     entryFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewInvalidRequest("WORD is required"))
					}
					input := e.keyInput(c, workspace.KindWord, c.Args().First())
					if err := ops.RemoveEntry(c.Context, e.db, input); err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"removed": true, "word": input.Value})
				},
			},
			listEntriesCmd(e, "List workspace dictionary words", workspace.KindWord),
		},
	}
}

// rulesCmd creates the rules command.
func rulesCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Enable or disable rules for a workspace",
		Subcommands: []*cli.Command{
			addEntryCmd(e, "disable", "Disable a rule", "RULE", workspace.KindDisabledRule),
			addEntryCmd(e, "enable", "Enable a rule that is off by default", "RULE", workspace.KindEnabledRule),
			{
				Name:      "reset",
				Usage:     "Drop a rule's workspace enable/disable entries",
				ArgsUsage: "RULE",
				Flags:     entryFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewInvalidRequest("RULE is required"))
					}
					rule := c.Args().First()
					removed := 0
					for _, kind := range []workspace.Kind{workspace.KindDisabledRule, workspace.KindEnabledRule} {
						err := ops.RemoveEntry(c.Context, e.db, e.keyInput(c, kind, rule))
						switch {
						case err == nil:
							removed++
						case errors.Is(err, errors.ErrNotFound):
						default:
							return outputError(err)
						}
					}
					if removed == 0 {
						return outputError(errors.NewNotFound(rule))
					}
					return outputJSON(c.App.Writer, map[string]any{"rule": rule, "removed": removed})
				},
			},
			listEntriesCmd(e, "List workspace rule entries", workspace.KindDisabledRule, workspace.KindEnabledRule),
		},
	}
}

// hideCmd creates the hide command.
func hideCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "hide",
		Usage:     "Hide a false positive of RULE in one sentence",
		ArgsUsage: "RULE",
		Flags: append(entryFlags(),
			&cli.StringFlag{Name: "sentence", Aliases: []string{"s"}, Required: true, Usage: "The sentence, matched literally"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("RULE is required"))
			}
			input := e.keyInput(c, workspace.KindHiddenFalsePositive, c.Args().First())
			input.Sentence = c.String("sentence")
			entry, err := ops.AddEntry(c.Context, e.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, entry)
		},
	}
}

// Helper functions

// languageIDs maps file extensions to document language IDs.
var languageIDs = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".tex":      "latex",
	".rst":      "restructuredtext",
	".org":      "org",
	".html":     "html",
	".htm":      "html",
	".txt":      "plaintext",
}

// languageIDFor guesses a language ID from the file name.
func languageIDFor(path string) string {
	if filepath.Base(path) == "COMMIT_EDITMSG" {
		return "gitcommit"
	}
	if id, ok := languageIDs[strings.ToLower(filepath.Ext(path))]; ok {
		return id
	}
	return "plaintext"
}

// fileURI converts an absolute path to a file:// URI.
func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var proofErr *errors.ProofError
	if stderrors.As(err, &proofErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", proofErr.Code, proofErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
