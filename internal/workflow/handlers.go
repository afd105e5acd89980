package workflow

import (
	"context"
	"fmt"
	"time"

	"bindery/internal/launcher"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
)

// startedStageFor maps a queue stage to the work stage a started task
// lands in.
func startedStageFor(queue stagecfg.Key) (stagecfg.Key, bool) {
	switch queue {
	case stagecfg.KeyToScan:
		return stagecfg.KeyScanningStarted, true
	case stagecfg.KeyToIndexing:
		return stagecfg.KeyIndexingStarted, true
	case stagecfg.KeyToChecking:
		return stagecfg.KeyCheckingStarted, true
	default:
		return "", false
	}
}

// queueStageFor maps a work stage back to the queue it was pulled from.
func queueStageFor(started stagecfg.Key) (stagecfg.Key, bool) {
	switch started {
	case stagecfg.KeyScanningStarted:
		return stagecfg.KeyToScan, true
	case stagecfg.KeyIndexingStarted:
		return stagecfg.KeyToIndexing, true
	case stagecfg.KeyCheckingStarted:
		return stagecfg.KeyToChecking, true
	default:
		return "", false
	}
}

// Ship records a book leaving the client, Pending Shipment to In Transit.
func (e *Engine) Ship(ctx context.Context, book *store.Book) error {
	return e.Transition(ctx, book,
		stagecfg.StatusFor(stagecfg.KeyPendingShipment),
		stagecfg.StatusFor(stagecfg.KeyInTransit),
		func(b *store.Book) {
			now := time.Now().UTC()
			b.ShippedAt = &now
		})
}

// ConfirmReception records a book arriving at the facility, In Transit to
// Received.
func (e *Engine) ConfirmReception(ctx context.Context, book *store.Book) error {
	return e.Transition(ctx, book,
		stagecfg.StatusFor(stagecfg.KeyInTransit),
		stagecfg.StatusFor(stagecfg.KeyReceived),
		func(b *store.Book) {
			now := time.Now().UTC()
			b.ReceivedAt = &now
		})
}

// StartTask moves a book from a work queue into its started stage for one
// user: assignee and start timestamp are set together with the status. On
// commit the matching desktop application is launched, fire-and-forget.
func (e *Engine) StartTask(ctx context.Context, book *store.Book, queue stagecfg.Key, userID int64) error {
	started, ok := startedStageFor(queue)
	if !ok {
		return services.Wrap(services.ErrValidation, "workflow", "start task",
			fmt.Sprintf("%q is not a work queue stage", queue), nil)
	}
	role := stagecfg.RoleFor(queue)

	err := e.Transition(ctx, book,
		stagecfg.StatusFor(queue), stagecfg.StatusFor(started),
		func(b *store.Book) {
			now := time.Now().UTC()
			b.SetAssignee(role, &userID)
			if start := b.StartTimeFor(role); start != nil {
				*start = &now
			}
		})
	if err != nil {
		return err
	}

	e.launchFor(ctx, book, started, userID)
	return nil
}

// CompleteTask finishes a started task: the role's end timestamp is set
// and the book advances to the next enabled stage. Books with an
// error-flagged page are refused before any side effect.
func (e *Engine) CompleteTask(ctx context.Context, book *store.Book) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "complete task", "book is nil", nil)
	}
	current, ok := stagecfg.KeyForStatus(book.Status)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "workflow", "complete task",
			fmt.Sprintf("book %q has unmapped status %q", book.Name, book.Status), nil)
	}
	if _, ok := queueStageFor(current); !ok {
		return services.Wrap(services.ErrConflict, "workflow", "complete task",
			fmt.Sprintf("book %q has no task in progress (status %q)", book.Name, book.Status), nil)
	}

	flagged, err := e.store.FlaggedDocumentCount(ctx, book.ID, store.FlagError)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "complete task", "check flagged pages", err)
	}
	if flagged > 0 {
		return services.Wrap(services.ErrValidation, "workflow", "complete task",
			fmt.Sprintf("book %q has %d error-flagged pages", book.Name, flagged), nil)
	}

	workflow, err := e.projectWorkflow(ctx, book.ProjectID)
	if err != nil {
		return err
	}
	target := stagecfg.StatusFinalized
	if next, ok := stagecfg.NextEnabledStage(current, workflow); ok {
		target = stagecfg.StatusFor(next)
	}

	role := stagecfg.RoleFor(current)
	return e.Transition(ctx, book, book.Status, target, func(b *store.Book) {
		now := time.Now().UTC()
		if end := b.EndTimeFor(role); end != nil {
			*end = &now
		}
	})
}

// CancelTask aborts a started task: the book reverts to its queue stage
// with the role's assignee and start timestamp cleared.
func (e *Engine) CancelTask(ctx context.Context, book *store.Book) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "cancel task", "book is nil", nil)
	}
	current, ok := stagecfg.KeyForStatus(book.Status)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "workflow", "cancel task",
			fmt.Sprintf("book %q has unmapped status %q", book.Name, book.Status), nil)
	}
	queue, ok := queueStageFor(current)
	if !ok {
		return services.Wrap(services.ErrConflict, "workflow", "cancel task",
			fmt.Sprintf("book %q has no task in progress (status %q)", book.Name, book.Status), nil)
	}

	role := stagecfg.RoleFor(current)
	return e.Transition(ctx, book, book.Status, stagecfg.StatusFor(queue), func(b *store.Book) {
		b.SetAssignee(role, nil)
		if start := b.StartTimeFor(role); start != nil {
			*start = nil
		}
	})
}

// SendToStorage finishes scanning: Scanning Started to Storage, recording
// the actual page count, the storage volume the pages landed on, and one
// document row per scanned page. A non-positive count asks the file
// service to count the scanned page files instead; a zero storageID leaves
// the volume unrecorded. Documents are created only after the move and
// status write committed, so a failed folder move creates none.
func (e *Engine) SendToStorage(ctx context.Context, book *store.Book, actualPageCount int, storageID int64) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "send to storage", "book is nil", nil)
	}
	if storageID > 0 {
		storage, err := e.store.GetStorage(ctx, storageID)
		if err != nil {
			return services.Wrap(services.ErrTransient, "workflow", "send to storage", "load storage", err)
		}
		if storage == nil {
			return services.Wrap(services.ErrNotFound, "workflow", "send to storage",
				fmt.Sprintf("storage %d does not exist", storageID), nil)
		}
	}
	if actualPageCount <= 0 {
		counted, err := e.mover.CountPages(ctx, book.Name, stagecfg.StatusFor(stagecfg.KeyScanningStarted))
		if err != nil {
			return services.Wrap(services.ErrExternalService, "workflow", "send to storage",
				fmt.Sprintf("count scanned pages for book %q", book.Name), err)
		}
		actualPageCount = counted
	}
	if actualPageCount <= 0 {
		return services.Wrap(services.ErrValidation, "workflow", "send to storage",
			fmt.Sprintf("actual page count must be positive, got %d", actualPageCount), nil)
	}

	err := e.Transition(ctx, book,
		stagecfg.StatusFor(stagecfg.KeyScanningStarted),
		stagecfg.StatusFor(stagecfg.KeyStorage),
		func(b *store.Book) {
			now := time.Now().UTC()
			b.ActualPageCount = actualPageCount
			b.ScanEndTime = &now
			if storageID > 0 {
				b.StorageID = &storageID
			}
		})
	if err != nil {
		return err
	}

	if err := e.store.CreateDocuments(ctx, book, actualPageCount); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "send to storage", "create page documents", err)
	}
	return nil
}

// AdminOverride forces a book to an arbitrary status, clearing assignees
// and timestamps for roles whose work the override rewinds past.
func (e *Engine) AdminOverride(ctx context.Context, book *store.Book, targetStatus string) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "admin override", "book is nil", nil)
	}
	targetKey, mapped := stagecfg.KeyForStatus(targetStatus)
	if !mapped && !stagecfg.IsTerminalStatus(targetStatus) {
		return services.Wrap(services.ErrValidation, "workflow", "admin override",
			fmt.Sprintf("unknown target status %q", targetStatus), nil)
	}

	from := book.Status
	err := e.Transition(ctx, book, from, targetStatus, func(b *store.Book) {
		if mapped {
			clearRewoundRoles(b, targetKey)
		}
	})
	if err != nil {
		return err
	}
	e.audit(ctx, book, store.EventAdminOverride, fmt.Sprintf("forced %s -> %s", from, targetStatus))
	return nil
}

// clearRewoundRoles drops assignee and timing data for every role whose
// work stage sits at or past the override target, so a rewound book pulls
// cleanly again.
func clearRewoundRoles(book *store.Book, target stagecfg.Key) {
	workStages := []stagecfg.Key{
		stagecfg.KeyScanningStarted,
		stagecfg.KeyIndexingStarted,
		stagecfg.KeyCheckingStarted,
	}
	for _, stage := range workStages {
		if stagecfg.Precedes(target, stage) || target == stage {
			role := stagecfg.RoleFor(stage)
			book.SetAssignee(role, nil)
			if start := book.StartTimeFor(role); start != nil {
				*start = nil
			}
			if end := book.EndTimeFor(role); end != nil {
				*end = nil
			}
		}
	}
}

// Archive moves a finalized book to the terminal Archived status.
func (e *Engine) Archive(ctx context.Context, book *store.Book) error {
	return e.Transition(ctx, book, stagecfg.StatusFinalized, stagecfg.StatusArchived, nil)
}

// MarkCorrected records that a rejected book was fixed, Client Rejected to
// Corrected, clearing the rejection reason.
func (e *Engine) MarkCorrected(ctx context.Context, book *store.Book) error {
	return e.Transition(ctx, book,
		stagecfg.StatusFor(stagecfg.KeyClientRejected),
		stagecfg.StatusFor(stagecfg.KeyCorrected),
		func(b *store.Book) {
			b.RejectionReason = ""
		})
}

// Resubmit sends a corrected book back into the workflow at an arbitrary
// enabled stage.
func (e *Engine) Resubmit(ctx context.Context, book *store.Book, target stagecfg.Key) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "workflow", "resubmit", "book is nil", nil)
	}
	workflow, err := e.projectWorkflow(ctx, book.ProjectID)
	if err != nil {
		return err
	}
	enabled := false
	for _, key := range workflow {
		if key == target {
			enabled = true
			break
		}
	}
	if !enabled {
		return services.Wrap(services.ErrValidation, "workflow", "resubmit",
			fmt.Sprintf("stage %q is not enabled for this project", target), nil)
	}
	return e.Transition(ctx, book,
		stagecfg.StatusFor(stagecfg.KeyCorrected),
		stagecfg.StatusFor(target), nil)
}

// launchFor fires the desktop application matching a freshly started work
// stage. Launch problems never surface: the transition already committed.
func (e *Engine) launchFor(ctx context.Context, book *store.Book, started stagecfg.Key, userID int64) {
	switch started {
	case stagecfg.KeyScanningStarted, stagecfg.KeyCheckingStarted:
		e.launcher.LaunchScanCheck(ctx, launcher.ScanCheckContext{
			BookID:   book.ID,
			BookName: book.Name,
			UserID:   userID,
		})
	case stagecfg.KeyIndexingStarted:
		e.launcher.LaunchIndexing(ctx, launcher.IndexingContext{
			BookID:    book.ID,
			BookName:  book.Name,
			UserID:    userID,
			StorageIP: e.storageIP(ctx, book),
		})
	}
}

func (e *Engine) storageIP(ctx context.Context, book *store.Book) string {
	if book.StorageID == nil {
		return ""
	}
	storage, err := e.store.GetStorage(ctx, *book.StorageID)
	if err != nil || storage == nil {
		e.logger.WarnContext(ctx, "storage lookup failed",
			logging.Int64(logging.FieldBookID, book.ID), logging.Error(err))
		return ""
	}
	return storage.IP
}
