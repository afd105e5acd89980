package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/store"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Track books through the production workflow",
	}

	bookCmd.AddCommand(newBookAddCommand(ctx))
	bookCmd.AddCommand(newBookListCommand(ctx))
	bookCmd.AddCommand(newBookShowCommand(ctx))
	bookCmd.AddCommand(newBookShipCommand(ctx))
	bookCmd.AddCommand(newBookReceiveCommand(ctx))
	bookCmd.AddCommand(newBookAssignCommand(ctx))
	bookCmd.AddCommand(newBookStartCommand(ctx))
	bookCmd.AddCommand(newBookCompleteCommand(ctx))
	bookCmd.AddCommand(newBookCancelCommand(ctx))
	bookCmd.AddCommand(newBookToStorageCommand(ctx))
	bookCmd.AddCommand(newBookAdvanceCommand(ctx))
	bookCmd.AddCommand(newBookOverrideCommand(ctx))
	bookCmd.AddCommand(newBookArchiveCommand(ctx))
	bookCmd.AddCommand(newBookCorrectedCommand(ctx))
	bookCmd.AddCommand(newBookResubmitCommand(ctx))
	bookCmd.AddCommand(newBookAuditCommand(ctx))

	return bookCmd
}

func newBookAddCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var priority int
	var expectedPages int
	var author string
	var isbn string
	var year int
	var notes string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new book in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx := cmd.Context()
				book, err := eng.Store.CreateBook(cmdCtx, &store.Book{
					Name:              strings.TrimSpace(args[0]),
					ProjectID:         projectID,
					Priority:          priority,
					ExpectedPageCount: expectedPages,
					Author:            author,
					ISBN:              isbn,
					PublicationYear:   year,
					Notes:             notes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added book %d (%s) in %s\n", book.ID, book.Name, book.Status)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project identifier")
	cmd.Flags().IntVar(&priority, "priority", 0, "Scheduling priority")
	cmd.Flags().IntVar(&expectedPages, "pages", 0, "Expected page count")
	cmd.Flags().StringVar(&author, "author", "", "Author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&year, "year", 0, "Publication year")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				cmdCtx := cmd.Context()
				var (
					books []*store.Book
					err   error
				)
				if projectID > 0 {
					books, err = st.BooksByProject(cmdCtx, projectID)
				} else {
					books, err = st.ListBooks(cmdCtx, statuses...)
				}
				if err != nil {
					return err
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found.")
					return nil
				}

				rows := make([][]string, 0, len(books))
				for _, book := range books {
					rows = append(rows, []string{
						strconv.FormatInt(book.ID, 10),
						book.Name,
						strconv.FormatInt(book.ProjectID, 10),
						book.Status,
						strconv.Itoa(book.ActualPageCount),
						strconv.Itoa(book.Priority),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Project", "Status", "Pages", "Priority"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Limit to one project")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Limit to one or more statuses")
	return cmd
}

func newBookShowCommand(ctx *commandContext) *cobra.Command {
	var withPages bool

	cmd := &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show one book in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				cmdCtx := cmd.Context()
				book, err := loadBook(cmdCtx, st, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Book %d: %s\n", book.ID, book.Name)
				fmt.Fprintf(out, "  Project:     %d\n", book.ProjectID)
				fmt.Fprintf(out, "  Status:      %s\n", book.Status)
				fmt.Fprintf(out, "  Pages:       %d expected, %d scanned\n", book.ExpectedPageCount, book.ActualPageCount)
				fmt.Fprintf(out, "  Author:      %s\n", formatOptional(book.Author))
				fmt.Fprintf(out, "  ISBN:        %s\n", formatOptional(book.ISBN))
				fmt.Fprintf(out, "  Shipped:     %s\n", formatTime(book.ShippedAt))
				fmt.Fprintf(out, "  Received:    %s\n", formatTime(book.ReceivedAt))
				fmt.Fprintf(out, "  Scan:        %s - %s\n", formatTime(book.ScanStartTime), formatTime(book.ScanEndTime))
				fmt.Fprintf(out, "  Index:       %s - %s\n", formatTime(book.IndexStartTime), formatTime(book.IndexEndTime))
				fmt.Fprintf(out, "  QC:          %s - %s\n", formatTime(book.QCStartTime), formatTime(book.QCEndTime))
				if book.RejectionReason != "" {
					fmt.Fprintf(out, "  Rejected:    %s\n", book.RejectionReason)
				}

				if !withPages {
					return nil
				}
				docs, err := st.DocumentsForBook(cmdCtx, book.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(docs))
				for _, doc := range docs {
					rows = append(rows, []string{
						doc.Name,
						doc.Status,
						formatOptional(doc.Flag),
						formatOptional(strings.Join(doc.Tags, ", ")),
						formatOptional(doc.Comment),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Page", "Status", "Flag", "Tags", "Comment"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withPages, "pages", false, "Include per-page detail")
	return cmd
}

func newBookShipCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "ship <book-id>", "Record a book leaving the client",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.Ship(cmdCtx, book)
		})
}

func newBookReceiveCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "receive <book-id>", "Confirm a book arrived at the facility",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.ConfirmReception(cmdCtx, book)
		})
}

func newBookAssignCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "assign <book-id>",
		Short: "Assign a book into a work queue for the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, user, err := ctx.requireUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				key, err := parseStageKey(stage)
				if err != nil {
					return err
				}
				if err := eng.Assignment.AssignUser(cmdCtx, book, user, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s, now %s\n", book.Name, user.Name, book.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Queue stage to assign into (to-scan, to-indexing, to-checking)")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newBookStartCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "start <book-id>",
		Short: "Start a queued task on a book for the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, user, err := ctx.requireUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				key, err := parseStageKey(stage)
				if err != nil {
					return err
				}
				if err := eng.Assignment.StartTask(cmdCtx, book, user, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s started on %s (%s)\n", stageLabel(key), book.Name, book.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Queue stage to start (to-scan, to-indexing, to-checking)")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newBookCompleteCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "complete <book-id>", "Complete the task in progress on a book",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.CompleteTask(cmdCtx, book)
		})
}

func newBookCancelCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "cancel <book-id>", "Cancel the task in progress and requeue the book",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.CancelTask(cmdCtx, book)
		})
}

func newBookToStorageCommand(ctx *commandContext) *cobra.Command {
	var pages int
	var storageID int64

	cmd := &cobra.Command{
		Use:   "to-storage <book-id>",
		Short: "Finish scanning and record the scanned pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				if err := eng.Workflow.SendToStorage(cmdCtx, book, pages, storageID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stored with %d pages\n", book.Name, book.ActualPageCount)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "Actual scanned page count (0 asks the file service to count)")
	cmd.Flags().Int64Var(&storageID, "storage", 0, "Storage volume the scanned pages landed on")
	return cmd
}

func newBookAdvanceCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "advance <book-id>", "Advance a book to its next enabled stage",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.MoveToNextStage(cmdCtx, book)
		})
}

func newBookOverrideCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "override <book-id>",
		Short: "Force a book to an arbitrary status (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.requireUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				if err := eng.Workflow.AdminOverride(cmdCtx, book, strings.TrimSpace(target)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s forced to %s\n", book.Name, book.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target status name")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newBookArchiveCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "archive <book-id>", "Archive a finalized book",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.Archive(cmdCtx, book)
		})
}

func newBookCorrectedCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "corrected <book-id>", "Mark a rejected book as corrected",
		func(cmdCtx context.Context, eng *engines, book *store.Book) error {
			return eng.Workflow.MarkCorrected(cmdCtx, book)
		})
}

func newBookResubmitCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "resubmit <book-id>",
		Short: "Send a corrected book back into the workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				key, err := parseStageKey(stage)
				if err != nil {
					return err
				}
				if err := eng.Workflow.Resubmit(cmdCtx, book, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s resubmitted to %s\n", book.Name, stageLabel(key))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Stage key to resubmit into")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newBookAuditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <book-id>",
		Short: "Show a book's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				cmdCtx := cmd.Context()
				book, err := loadBook(cmdCtx, st, args[0])
				if err != nil {
					return err
				}
				entries, err := st.AuditForBook(cmdCtx, book.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						entry.Event,
						formatOptional(entry.Actor),
						formatOptional(entry.Detail),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Event", "Actor", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

// newTransitionCommand builds the common shape of a one-book transition
// command: resolve the book, run the handler, print the landing status.
func newTransitionCommand(ctx *commandContext, use, short string, run func(context.Context, *engines, *store.Book) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngines(func(eng *engines) error {
				cmdCtx, _, err := ctx.actingUser(cmd.Context(), eng.Store)
				if err != nil {
					return err
				}
				book, err := loadBook(cmdCtx, eng.Store, args[0])
				if err != nil {
					return err
				}
				if err := run(cmdCtx, eng, book); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", book.Name, book.Status)
				return nil
			})
		},
	}
}

func loadBook(ctx context.Context, st *store.Store, arg string) (*store.Book, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	book, err := st.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("book %d does not exist", id)
	}
	return book, nil
}
