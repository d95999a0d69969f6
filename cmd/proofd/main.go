package main

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/proofd/internal/config"
	"github.com/hpungsan/proofd/internal/db"
	"github.com/hpungsan/proofd/internal/server"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "check": true,
	"dict": true, "rules": true, "hide": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
                          __ ___     __
     ____  _________  ___/ // _/____/ /
    / __ \/ ___/ __ \/ __ \/ /_/ __  /
   / /_/ / /  / /_/ / /_/ / __/ /_/ /
  / .___/_/   \____/\____/_/  \__,_/
 /_/
  Grammar and spell checking for editors and agents

  Usage: proofd <command> [options]
         proofd --help

  MCP server mode requires piped input.`)
}

// workspaceFor names the workspace of startDir: the directory holding the
// nearest .proofd/config.json, or "default".
func workspaceFor(startDir string) string {
	repo := config.FindRepoConfig(startDir)
	if repo == "" {
		return "default"
	}
	return filepath.Base(filepath.Dir(filepath.Dir(repo)))
}

func newLogger(cfg *config.Config) *slog.Logger {
	// stdout carries MCP traffic.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// exitWith reports a command error, keeping the exit code of cli.Exit.
func exitWith(err error) {
	var coder cli.ExitCoder
	if stderrors.As(err, &coder) {
		if msg := coder.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		os.Exit(coder.ExitCode())
	}
	fatal("%v", err)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		fatal("could not determine working directory: %v", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()

	workspace := workspaceFor(cwd)
	source, err := server.NewConfigSource(baseDir, cwd, database, workspace)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	cfg := source.Config()
	db.ConfigurePool(database, cfg)

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	e := &env{
		db:        database,
		source:    source,
		logger:    logger,
		workspace: workspace,
	}

	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			exitWith(err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'proofd --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := serve(e, 0, ""); err != nil {
		fatal("%v", err)
	}
}
