package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/logger"
	"github.com/hpungsan/wishpair/internal/mcp"
	"github.com/hpungsan/wishpair/internal/nudge"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"user": true, "pair": true, "wish": true, "nudge": true,
	"serve": true, "workspace": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
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
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
  wishpair

  Shared wish lists for two, with nudges

  Usage: wishpair <command> [options]
         wishpair --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if isHelpOrVersion() {
		app := newCLIApp(&appDeps{})
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".wishpair")

	cfg, err := config.LoadWithEnv(baseDir)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	database, err := db.InitFile(baseDir, cfg.DBFile)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	engine := nudge.NewFromConfig(database, cfg, log, nil)

	if isCLIMode() {
		app := newCLIApp(&appDeps{
			db:      database,
			cfg:     cfg,
			engine:  engine,
			log:     log,
			baseDir: baseDir,
		})
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'wishpair --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(database, cfg, engine, Version); err != nil {
		fail("%v", err)
	}
}
