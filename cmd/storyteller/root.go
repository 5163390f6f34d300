package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/llm"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what every command shares once flags are parsed.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger

	// clients overrides the configured model backends
	clients llm.Source
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storyteller",
		Short: "Personalize children's stories with a team of model agents",
		Long: `storyteller rewrites a children's story to match a reader's preferences
and adds shared-reading questions to every page.

Several writers produce candidate stories, critics compare them in a
tournament, and the winner is reviewed and edited before the questions
are written.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)

			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/storyteller/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		a.runCmd(),
		a.promptsCmd(),
		a.runsCmd(),
		a.versionCmd(),
	)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("storyteller %s\n", version)
			return nil
		},
	}
}
