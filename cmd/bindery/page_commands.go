package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/store"
)

func newPageCommand(ctx *commandContext) *cobra.Command {
	pageCmd := &cobra.Command{
		Use:   "page",
		Short: "Flag and tag individual scanned pages",
	}

	pageCmd.AddCommand(newPageFlagCommand(ctx))
	pageCmd.AddCommand(newPageTagCommand(ctx))

	return pageCmd
}

func newPageFlagCommand(ctx *commandContext) *cobra.Command {
	var flag string
	var comment string

	cmd := &cobra.Command{
		Use:   "flag <document-id>",
		Short: "Flag a page (error flags block task completion)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := st.SetDocumentFlag(cmd.Context(), id, flag, comment); err != nil {
					return err
				}
				if flag == store.FlagNone {
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d flag cleared\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d flagged %s\n", id, flag)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flag, "flag", store.FlagError, "error, warning, info, or empty to clear")
	cmd.Flags().StringVar(&comment, "comment", "", "What is wrong with the page")
	return cmd
}

func newPageTagCommand(ctx *commandContext) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "tag <document-id>",
		Short: "Replace a page's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := st.SetDocumentTags(cmd.Context(), id, tags); err != nil {
					return err
				}
				if len(tags) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d tags cleared\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d tagged: %s\n", id, strings.Join(tags, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tag labels (omit to clear)")
	return cmd
}
