package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bindery/internal/store"
)

func newProcessingCommand(ctx *commandContext) *cobra.Command {
	processingCmd := &cobra.Command{
		Use:   "processing",
		Short: "Manage automated processing batches",
	}

	processingCmd.AddCommand(newProcessingStartCommand(ctx))
	processingCmd.AddCommand(newProcessingListCommand(ctx))
	processingCmd.AddCommand(newProcessingCompleteCommand(ctx))
	processingCmd.AddCommand(newProcessingFailCommand(ctx))
	processingCmd.AddCommand(newProcessingSendNextCommand(ctx))

	return processingCmd
}

func newProcessingStartCommand(ctx *commandContext) *cobra.Command {
	var storageID int64

	cmd := &cobra.Command{
		Use:   "start <book-id>...",
		Short: "Batch ready books into a processing run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				ids, err := parseIDList(args)
				if err != nil {
					return err
				}
				batch, err := eng.Processing.StartBatch(cmdCtx, ids, storageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started processing batch %d with %d books\n", batch.ID, len(ids))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&storageID, "storage", 0, "Storage volume the batch runs against")
	_ = cmd.MarkFlagRequired("storage")
	return cmd
}

func newProcessingListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				batches, err := st.ListProcessingBatches(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No processing batches.")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					rows = append(rows, []string{
						strconv.FormatInt(batch.ID, 10),
						strconv.FormatInt(batch.StorageID, 10),
						batch.Status,
						fmt.Sprintf("%.0f%%", batch.Progress*100),
						batch.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Storage", "Status", "Progress", "Created"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Limit to one or more statuses")
	return cmd
}

func newProcessingCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <batch-id>",
		Short: "Mark a processing run complete and advance its books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := eng.Processing.CompleteBatch(cmdCtx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d complete\n", id)
				return nil
			})
		},
	}
}

func newProcessingFailCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail <batch-id>",
		Short: "Mark a processing run failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := eng.Processing.FailBatch(cmdCtx, id, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d marked failed\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Failure description")
	return cmd
}

func newProcessingSendNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send-next <batch-id>...",
		Short: "Send processed books from finished batches to their next stage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				ids, err := parseIDList(args)
				if err != nil {
					return err
				}
				if err := eng.Processing.SendToNextStage(cmdCtx, ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d batch(es) onward\n", len(ids))
				return nil
			})
		},
	}
}
