// Package cli wires the cobra command tree. Presentation only: all
// behavior lives in the internal packages it calls into.
package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/adapter/ampcode"
	"github.com/jayshah5696/sagg/internal/adapter/claudecode"
	"github.com/jayshah5696/sagg/internal/adapter/codex"
	"github.com/jayshah5696/sagg/internal/adapter/cursor"
	"github.com/jayshah5696/sagg/internal/adapter/gemini"
	"github.com/jayshah5696/sagg/internal/adapter/opencode"
	"github.com/jayshah5696/sagg/internal/adapter/pi"
	"github.com/jayshah5696/sagg/internal/config"
	"github.com/jayshah5696/sagg/internal/store"
)

var version = "dev"

type rootOptions struct {
	dbPath     string
	configPath string
	debug      bool
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "sagg",
		Short:         "Aggregate AI coding assistant sessions from every tool into one place",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Database path (default: ~/.sagg/db.sqlite)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default: ~/.sagg/config.toml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCmd(opts),
		newWatchCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newSearchCmd(opts),
		newDeleteCmd(opts),
		newStatsCmd(opts),
		newBudgetCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newVerifyCmd(opts),
		newSourcesCmd(opts),
	)
	return cmd
}

// openStore opens the database. A relocated --db keeps its content logs
// alongside it rather than in the default home.
func (o *rootOptions) openStore() (*store.Store, error) {
	sessionsDir := ""
	if o.dbPath != "" {
		sessionsDir = filepath.Join(filepath.Dir(o.dbPath), "sessions")
	}
	return store.Open(o.dbPath, sessionsDir)
}

// buildRegistry constructs the adapter set from configuration, in the
// canonical source order. Disabled sources are left out entirely.
func (o *rootOptions) buildRegistry() *adapter.Registry {
	cfg := config.Load(o.configPath)

	var adapters []adapter.Adapter
	for _, name := range config.SourceNames {
		sc := cfg.Source(name)
		if !sc.Enabled {
			continue
		}
		switch name {
		case "opencode":
			adapters = append(adapters, opencode.New(sc.Path))
		case "claude":
			adapters = append(adapters, claudecode.New(sc.Path))
		case "codex":
			adapters = append(adapters, codex.New(sc.Path))
		case "cursor":
			adapters = append(adapters, cursor.New(sc.Path))
		case "gemini":
			adapters = append(adapters, gemini.New(sc.Path))
		case "ampcode":
			adapters = append(adapters, ampcode.New(sc.Path))
		case "pi":
			adapters = append(adapters, pi.New(sc.Path))
		}
	}
	return adapter.NewRegistry(adapters...)
}
