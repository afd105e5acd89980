package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bindery/internal/delivery"
	"bindery/internal/store"
)

func newDeliveryCommand(ctx *commandContext) *cobra.Command {
	deliveryCmd := &cobra.Command{
		Use:   "delivery",
		Short: "Manage client delivery batches",
	}

	deliveryCmd.AddCommand(newDeliveryCreateCommand(ctx))
	deliveryCmd.AddCommand(newDeliveryListCommand(ctx))
	deliveryCmd.AddCommand(newDeliveryShowCommand(ctx))
	deliveryCmd.AddCommand(newDeliveryDecideCommand(ctx))
	deliveryCmd.AddCommand(newDeliveryFinalizeCommand(ctx))
	deliveryCmd.AddCommand(newDeliveryApproveCommand(ctx))

	return deliveryCmd
}

func newDeliveryCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <book-id>...",
		Short: "Batch processed books for client validation",
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
				batch, err := eng.Delivery.CreateBatch(cmdCtx, ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created delivery batch %s with %d books\n", batch.PublicID, len(ids))
				return nil
			})
		},
	}
}

func newDeliveryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List delivery batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				batches, err := st.ListDeliveryBatches(cmd.Context())
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No delivery batches.")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					rows = append(rows, []string{
						strconv.FormatInt(batch.ID, 10),
						batch.PublicID,
						batch.Status,
						batch.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Public ID", "Status", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newDeliveryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a delivery batch and its decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				cmdCtx := cmd.Context()
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				batch, err := st.GetDeliveryBatch(cmdCtx, id)
				if err != nil {
					return err
				}
				if batch == nil {
					return fmt.Errorf("delivery batch %d does not exist", id)
				}
				items, err := st.DeliveryBatchItems(cmdCtx, batch.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s (%s)\n", batch.PublicID, batch.Status)
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					name := strconv.FormatInt(item.BookID, 10)
					if book, err := st.GetBook(cmdCtx, item.BookID); err == nil && book != nil {
						name = book.Name
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						name,
						item.Decision,
						formatOptional(item.Reason),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Item", "Book", "Decision", "Reason"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newDeliveryDecideCommand(ctx *commandContext) *cobra.Command {
	var reject bool
	var reason string

	cmd := &cobra.Command{
		Use:   "decide <item-id>",
		Short: "Record a provisional decision on one delivered book",
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
				decision := store.DecisionApproved
				if reject {
					decision = store.DecisionRejected
				}
				if err := eng.Delivery.SetProvisionalStatus(cmdCtx, id, decision, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d marked %s\n", id, decision)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "Reject instead of approve")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason (required with --reject)")
	return cmd
}

func newDeliveryFinalizeCommand(ctx *commandContext) *cobra.Command {
	var rejectAll bool

	cmd := &cobra.Command{
		Use:   "finalize <batch-id>",
		Short: "Commit every decision in a delivery batch",
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
				decision := delivery.DecisionApproveRemaining
				if rejectAll {
					decision = delivery.DecisionRejectAll
				}
				if err := eng.Delivery.FinalizeBatch(cmdCtx, id, decision); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d finalized (%s)\n", id, decision)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&rejectAll, "reject-all", false, "Reject every book in the batch")
	return cmd
}

func newDeliveryApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <batch-id>",
		Short: "Approve every pending book and finalize the batch",
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
				if err := eng.Delivery.ApproveBatch(cmdCtx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d approved and finalized\n", id)
				return nil
			})
		},
	}
}
