package assignment

import (
	"context"
	"fmt"
	"log/slog"

	"bindery/internal/localip"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/workflow"
)

// Permissions gating each work role.
const (
	PermScanBooks  = "scan_books"
	PermIndexBooks = "index_books"
	PermQCBooks    = "qc_books"
)

// permissionFor maps a role to the permission an operator needs to be
// assigned work in it.
func permissionFor(role stagecfg.Role) (string, bool) {
	switch role {
	case stagecfg.RoleScanner:
		return PermScanBooks, true
	case stagecfg.RoleIndexer:
		return PermIndexBooks, true
	case stagecfg.RoleQC:
		return PermQCBooks, true
	default:
		return "", false
	}
}

// localityStages are the queues whose books live on a specific storage
// volume; pulling from them requires the workstation to sit on the same
// storage network segment.
func needsLocality(queue stagecfg.Key) bool {
	return queue == stagecfg.KeyToIndexing || queue == stagecfg.KeyToChecking
}

// requireRole checks that the queue carries an assignable role and that the
// user holds its permission.
func requireRole(op string, user *store.User, queue stagecfg.Key) error {
	if user == nil {
		return services.Wrap(services.ErrValidation, "assignment", op, "user is nil", nil)
	}
	role := stagecfg.RoleFor(queue)
	perm, ok := permissionFor(role)
	if !ok {
		return services.Wrap(services.ErrValidation, "assignment", op,
			fmt.Sprintf("stage %q carries no assignable role", queue), nil)
	}
	if !user.HasPermission(perm) {
		return services.Wrap(services.ErrValidation, "assignment", op,
			fmt.Sprintf("user %q lacks the %s permission", user.Name, perm), nil)
	}
	return nil
}

// Engine assigns tasks and serves pull-next requests.
type Engine struct {
	workflow *workflow.Engine
	store    *store.Store
	resolver localip.Resolver
	logger   *slog.Logger
}

// NewEngine wires an assignment engine on top of the transition engine.
func NewEngine(wf *workflow.Engine, resolver localip.Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		workflow: wf,
		store:    wf.Store(),
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "assignment"),
	}
}

// AssignUser moves a book into a queue stage for one user. The book must
// sit at the stage that feeds the queue in its project's workflow; the
// two-phase transition sets the role's assignee together with the status.
// Nothing is written when the user lacks the permission or the move fails.
func (e *Engine) AssignUser(ctx context.Context, book *store.Book, user *store.User, queue stagecfg.Key) error {
	if book == nil {
		return services.Wrap(services.ErrValidation, "assignment", "assign", "book is nil", nil)
	}
	if err := requireRole("assign", user, queue); err != nil {
		return err
	}

	current, ok := stagecfg.KeyForStatus(book.Status)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "assignment", "assign",
			fmt.Sprintf("book %q has unmapped status %q", book.Name, book.Status), nil)
	}
	project, err := e.store.GetProject(ctx, book.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assignment", "assign", "load project", err)
	}
	if project == nil {
		return services.Wrap(services.ErrNotFound, "assignment", "assign",
			fmt.Sprintf("project %d does not exist", book.ProjectID), nil)
	}
	if next, ok := stagecfg.NextEnabledStage(current, project.Workflow); !ok || next != queue {
		return services.Wrap(services.ErrConflict, "assignment", "assign",
			fmt.Sprintf("book %q is %q, which does not feed %s",
				book.Name, book.Status, stagecfg.StatusFor(queue)), nil)
	}
	return e.assign(ctx, book, user, queue)
}

// StartTask begins work on a queued book for a user: the same permission
// check as assignment, then the queue-to-started transition with its
// launcher handoff.
func (e *Engine) StartTask(ctx context.Context, book *store.Book, user *store.User, queue stagecfg.Key) error {
	if err := requireRole("start task", user, queue); err != nil {
		return err
	}
	ctx = services.WithActor(ctx, user.Name)
	return e.workflow.StartTask(ctx, book, queue, user.ID)
}

// PullNextTask finds and assigns the next book for a user in the given
// queue stage. Projects are scanned in the user's accessible order; within
// each, the candidates are the unassigned books waiting at the stage that
// feeds the queue in that project's workflow. For indexing and QC the book
// must also be stored on a volume local to the calling workstation. The
// first eligible book is moved into the queue with the role's assignee set.
func (e *Engine) PullNextTask(ctx context.Context, queue stagecfg.Key, user *store.User) (*store.Book, error) {
	if err := requireRole("pull", user, queue); err != nil {
		return nil, err
	}
	role := stagecfg.RoleFor(queue)

	var localIP string
	if needsLocality(queue) {
		ip, err := e.resolver.LocalIP(ctx)
		if err != nil {
			return nil, err
		}
		localIP = ip
	}

	projects, err := e.store.AccessibleProjects(ctx, user)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "assignment", "pull", "load projects", err)
	}

	status := stagecfg.StatusFor(queue)
	sawCandidate := false
	for _, project := range projects {
		feeder, ok := stagecfg.PreviousEnabledStage(queue, project.Workflow)
		if !ok {
			continue
		}
		books, err := e.store.BooksByProjectAndStatus(ctx, project.ID, stagecfg.StatusFor(feeder))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "assignment", "pull", "load queue", err)
		}
		for _, book := range books {
			if book.AssigneeFor(role) != nil {
				continue
			}
			sawCandidate = true
			if localIP != "" {
				reachable, err := e.storageMatches(ctx, book, localIP)
				if err != nil {
					return nil, err
				}
				if !reachable {
					continue
				}
			}
			if err := e.assign(ctx, book, user, queue); err != nil {
				return nil, err
			}
			return book, nil
		}
	}

	if sawCandidate && localIP != "" {
		return nil, services.Wrap(services.ErrNotFound, "assignment", "pull",
			fmt.Sprintf("no book feeding %s is stored on a volume reachable from %s", status, localIP), nil)
	}
	return nil, services.Wrap(services.ErrNotFound, "assignment", "pull",
		fmt.Sprintf("nothing to pull in %s", status), nil)
}

// assign runs the feeder-to-queue transition with the role's assignee set
// and records the Task Assignment audit entry.
func (e *Engine) assign(ctx context.Context, book *store.Book, user *store.User, queue stagecfg.Key) error {
	role := stagecfg.RoleFor(queue)
	userID := user.ID
	ctx = services.WithActor(ctx, user.Name)
	err := e.workflow.Transition(ctx, book, book.Status, stagecfg.StatusFor(queue), func(b *store.Book) {
		b.SetAssignee(role, &userID)
	})
	if err != nil {
		return err
	}
	e.auditAssignment(ctx, book, user, queue)
	return nil
}

func (e *Engine) storageMatches(ctx context.Context, book *store.Book, localIP string) (bool, error) {
	if book.StorageID == nil {
		return false, nil
	}
	storage, err := e.store.GetStorage(ctx, *book.StorageID)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "assignment", "pull", "load storage", err)
	}
	if storage == nil {
		return false, nil
	}
	return storage.IP == localIP, nil
}

func (e *Engine) auditAssignment(ctx context.Context, book *store.Book, user *store.User, queue stagecfg.Key) {
	entry := &store.AuditEntry{
		BookID: &book.ID,
		Actor:  user.Name,
		Event:  store.EventTaskAssignment,
		Detail: fmt.Sprintf("assigned to %s for %s", user.Name, queue),
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		entry.RequestID = rid
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "audit append failed", logging.Error(err))
	}
}
