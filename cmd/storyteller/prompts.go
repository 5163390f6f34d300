package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotcommander/storyteller/internal/prompt"
)

func (a *app) promptsCmd() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List the agent prompts, or print one with --show",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prompt.New(a.cfg.Prompts.Dir, prompt.WithLogger(a.logger))

			if show != "" {
				text, err := reg.Get(show)
				if err != nil {
					return fmt.Errorf("prompt %q: %w", show, err)
				}
				cmd.Println(text)
				return nil
			}

			names, err := reg.Names()
			if err != nil {
				return err
			}
			for _, n := range names {
				cmd.Println(n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "print the named prompt")
	return cmd
}
