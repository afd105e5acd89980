package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bindery/internal/filemover"
	"bindery/internal/launcher"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
)

// Engine executes stage transitions for books.
type Engine struct {
	store    *store.Store
	mover    filemover.Service
	launcher launcher.Service
	logger   *slog.Logger
}

// NewEngine wires a transition engine from its collaborators. A nil mover
// or launcher falls back to the no-op implementation; a nil logger
// discards output.
func NewEngine(st *store.Store, mover filemover.Service, launch launcher.Service, logger *slog.Logger) *Engine {
	if mover == nil {
		mover = filemover.NewNopService()
	}
	if launch == nil {
		launch = launcher.NewNopService()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:    st,
		mover:    mover,
		launcher: launch,
		logger:   logging.NewComponentLogger(logger, "workflow"),
	}
}

// Store exposes the underlying store for engines layered on top.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Transition moves a book from one status to another: folder move first,
// then the compare-and-swap status write, then the audit entry. The apply
// callback mutates book fields after the move succeeded and before the
// write, so a failed move never leaves partial field updates behind.
func (e *Engine) Transition(ctx context.Context, book *store.Book, from, to string, apply func(*store.Book)) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "transition", "book is nil", nil)
	}
	if book.Status != from {
		return services.Wrap(services.ErrConflict, "workflow", "transition",
			fmt.Sprintf("book %q is %q, expected %q", book.Name, book.Status, from), nil)
	}

	ctx = e.ensureRequestID(ctx)
	if err := e.mover.Move(ctx, book.Name, from, to); err != nil {
		e.auditAlert(ctx, book, fmt.Sprintf("folder move %q -> %q failed: %v", from, to, err))
		return err
	}

	if apply != nil {
		apply(book)
	}
	book.Status = to
	if err := e.store.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrStale) {
			return services.Wrap(services.ErrConflict, "workflow", "transition",
				fmt.Sprintf("book %q changed underneath this update", book.Name), err)
		}
		return services.Wrap(services.ErrTransient, "workflow", "transition", "persist status", err)
	}
	if err := e.store.SyncDocumentStatuses(ctx, book.ID, to); err != nil {
		e.logger.WarnContext(ctx, "document status sync failed",
			logging.Int64(logging.FieldBookID, book.ID), logging.Error(err))
	}

	e.audit(ctx, book, store.EventStatusUpdate, fmt.Sprintf("%s -> %s", from, to))
	e.logger.InfoContext(ctx, "transition committed",
		logging.Int64(logging.FieldBookID, book.ID),
		logging.String(logging.FieldBook, book.Name),
		logging.String("from", from),
		logging.String("to", to))
	return nil
}

// MoveToNextStage advances a book to the next stage enabled by its
// project's workflow, falling back to the terminal Finalized status when
// nothing follows.
func (e *Engine) MoveToNextStage(ctx context.Context, book *store.Book) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "next stage", "book is nil", nil)
	}
	current, ok := stagecfg.KeyForStatus(book.Status)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "workflow", "next stage",
			fmt.Sprintf("book %q has unmapped status %q", book.Name, book.Status), nil)
	}

	workflow, err := e.projectWorkflow(ctx, book.ProjectID)
	if err != nil {
		return err
	}

	target := stagecfg.StatusFinalized
	if next, ok := stagecfg.NextEnabledStage(current, workflow); ok {
		target = stagecfg.StatusFor(next)
	}
	return e.Transition(ctx, book, book.Status, target, nil)
}

func (e *Engine) projectWorkflow(ctx context.Context, projectID int64) ([]stagecfg.Key, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "load project", "", err)
	}
	if project == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "load project",
			fmt.Sprintf("project %d does not exist", projectID), nil)
	}
	return project.Workflow, nil
}

func (e *Engine) ensureRequestID(ctx context.Context) context.Context {
	if _, ok := services.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

// audit records a workflow event. Audit failures are logged, never
// propagated: the transition already committed.
func (e *Engine) audit(ctx context.Context, book *store.Book, event, detail string) {
	actor, _ := services.ActorFromContext(ctx)
	requestID, _ := services.RequestIDFromContext(ctx)
	entry := &store.AuditEntry{
		Actor:     actor,
		Event:     event,
		Detail:    detail,
		RequestID: requestID,
	}
	if book != nil {
		entry.BookID = &book.ID
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "audit append failed", logging.Error(err))
	}
}

// auditAlert records a System Alert for a side-effect failure before the
// error is surfaced to the caller.
func (e *Engine) auditAlert(ctx context.Context, book *store.Book, detail string) {
	e.audit(ctx, book, store.EventSystemAlert, detail)
	e.logger.ErrorContext(ctx, "side effect failed",
		logging.Int64(logging.FieldBookID, book.ID),
		logging.Alert(detail))
}
