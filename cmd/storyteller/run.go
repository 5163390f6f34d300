package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/pipeline"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/storage"
	"github.com/dotcommander/storyteller/internal/storage/sqlite"
)

// stdoutPath as --output prints the story instead of saving it.
const stdoutPath = "-"

type runFlags struct {
	story       string
	preferences string
	output      string
	pipelines   string
	journal     string
	workdir     string
	seed        uint64
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Personalize a story and add questions to it",
		Example: `  storyteller run --story caperucita.md --preferences ana.md --output out/caperucita.md
  storyteller run --story caperucita.md --pipelines questions`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f, cmd.Flags().Changed("seed"))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.story, "story", "s", "", "markdown story to personalize")
	flags.StringVarP(&f.preferences, "preferences", "p", "", "markdown list of reader preferences")
	flags.StringVarP(&f.output, "output", "o", "", "where to write the result, - for stdout (default runs/<date>_<title>_<id>/story.md)")
	flags.StringVar(&f.pipelines, "pipelines", string(pipeline.All), "ALL, PERSONALIZATION or QUESTIONS")
	flags.StringVar(&f.journal, "journal", "", "sqlite run journal (overrides journal.path)")
	flags.StringVar(&f.workdir, "workdir", ".", "directory story, preference and output paths live in")
	flags.Uint64Var(&f.seed, "seed", 0, "seed for the tournament pairing")
	_ = cmd.MarkFlagRequired("story")

	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags, seeded bool) error {
	ctx := cmd.Context()

	kind, err := pipeline.ParseKind(f.pipelines)
	if err != nil {
		return err
	}

	fsys := storage.NewFileSystem(f.workdir)
	storyPath, err := relative(fsys.BaseDir(), f.story)
	if err != nil {
		return err
	}
	story, err := storage.LoadBook(ctx, fsys, storyPath)
	if err != nil {
		return err
	}

	var prefs []domain.Preference
	if f.preferences != "" {
		prefsPath, err := relative(fsys.BaseDir(), f.preferences)
		if err != nil {
			return err
		}
		if prefs, err = storage.LoadPreferences(ctx, fsys, prefsPath); err != nil {
			return err
		}
	}

	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if a.clients != nil {
		opts = append(opts, pipeline.WithClients(a.clients))
	}
	if seeded {
		opts = append(opts, pipeline.WithSeed(f.seed))
	}

	journalPath := a.cfg.Journal.Path
	if f.journal != "" {
		journalPath = f.journal
	}
	if journalPath != "" {
		if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
			return fmt.Errorf("creating journal dir: %w", err)
		}
		journal, err := sqlite.Open(ctx, journalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, pipeline.WithJournal(journal))
	}

	res, err := pipeline.FromConfig(a.cfg, opts...).Run(ctx, kind, story, prefs)
	if err != nil {
		return err
	}

	if f.output == stdoutPath {
		_, err := fmt.Fprint(cmd.OutOrStdout(), render.Book(res.Book))
		return err
	}

	outPath := f.output
	if outPath == "" {
		runID := res.RunID
		if runID == "" {
			runID = uuid.NewString()
		}
		outPath = filepath.Join(storage.RunPath(res.Book.Title, runID, time.Now()), "story.md")
	}
	if outPath, err = relative(fsys.BaseDir(), outPath); err != nil {
		return err
	}
	if err := storage.SaveBook(ctx, fsys, outPath, res.Book); err != nil {
		return err
	}
	if len(res.Evaluations) > 0 {
		if err := storage.SaveReport(ctx, fsys, storage.ReportPath(outPath), res.Evaluations); err != nil {
			return err
		}
	}

	a.logger.Info("story written", "path", outPath, "run_id", res.RunID, "no_winner", res.NoWinner)
	_, err = fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(fsys.BaseDir(), outPath))
	return err
}

// relative makes path relative to base so the sandboxed storage accepts it.
func relative(base, path string) (string, error) {
	if !filepath.IsAbs(path) {
		return path, nil
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", fmt.Errorf("%s is outside %s: %w", path, base, err)
	}
	return rel, nil
}
