package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/storyteller/internal/storage/sqlite"
)

func (a *app) runsCmd() *cobra.Command {
	var (
		path  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = a.cfg.Journal.Path
			}
			if path == "" {
				return errors.New("no journal configured, set journal.path or pass --journal")
			}

			ctx := cmd.Context()
			journal, err := sqlite.Open(ctx, path)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.Runs(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPIPELINE\tSTATUS\tSTARTED\tDURATION\tTITLE")
			for _, r := range runs {
				duration := "-"
				if r.FinishedAt != nil {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Pipeline, r.Status, r.StartedAt.Local().Format(time.DateTime), duration, r.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "journal", "", "sqlite run journal (overrides journal.path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
