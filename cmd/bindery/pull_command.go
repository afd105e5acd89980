package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <stage>",
		Short: "Pull the next available book into a work queue",
		Long: "Walks the acting user's accessible projects in order and assigns the " +
			"first unassigned book waiting to enter the given queue stage. Indexing " +
			"and QC pulls only hand out books stored on a volume local to this " +
			"workstation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, user, err := ctx.requireUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				key, err := parseStageKey(args[0])
				if err != nil {
					return err
				}
				book, err := eng.Assignment.PullNextTask(cmdCtx, key, user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s (book %d), now %s\n", book.Name, book.ID, book.Status)
				return nil
			})
		},
	}
}
