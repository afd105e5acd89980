package store

import (
	"time"

	"bindery/internal/stagecfg"
)

// Client owns projects and the rejection-tag vocabulary used when its
// deliveries come back.
type Client struct {
	ID        int64
	Name      string
	Contact   string
	CreatedAt time.Time
}

// User is an operator or client account. Permissions gate which roles the
// user may be assigned to; ClientID scopes client accounts to their own
// projects, ProjectIDs scopes operator accounts to an explicit list.
type User struct {
	ID          int64
	Name        string
	Role        string
	Permissions []string
	ClientID    *int64
	ProjectIDs  []int64
	CreatedAt   time.Time
}

// HasPermission reports whether the user carries the named permission.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Project groups books for one client and carries the ordered list of
// stage keys enabled for its books.
type Project struct {
	ID        int64
	Name      string
	ClientID  int64
	Workflow  []stagecfg.Key
	CreatedAt time.Time
}

// Storage is a physical storage location on the scanning network.
type Storage struct {
	ID   int64
	Name string
	IP   string
	Path string
}

// ProjectStorage associates a project with a storage location and carries
// the distribution-weighting attributes the scheduler consumes.
type ProjectStorage struct {
	ID              int64
	ProjectID       int64
	StorageID       int64
	Weight          int
	FixedDailyMin   int
	PercentDailyMin float64
}

// Book is the unit of work moving through the workflow.
type Book struct {
	ID                int64
	Name              string
	ProjectID         int64
	Status            string
	Priority          int
	ExpectedPageCount int
	ActualPageCount   int
	StorageID         *int64
	ScannerUserID     *int64
	IndexerUserID     *int64
	QCUserID          *int64
	ScanStartTime     *time.Time
	ScanEndTime       *time.Time
	IndexStartTime    *time.Time
	IndexEndTime      *time.Time
	QCStartTime       *time.Time
	QCEndTime         *time.Time
	ShippedAt         *time.Time
	ReceivedAt        *time.Time
	RejectionReason   string
	Author            string
	ISBN              string
	PublicationYear   int
	Notes             string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AssigneeFor returns the assignee field for a role, or nil when the role
// carries no assignee.
func (b *Book) AssigneeFor(role stagecfg.Role) *int64 {
	switch role {
	case stagecfg.RoleScanner:
		return b.ScannerUserID
	case stagecfg.RoleIndexer:
		return b.IndexerUserID
	case stagecfg.RoleQC:
		return b.QCUserID
	default:
		return nil
	}
}

// SetAssignee sets the assignee field for a role. Passing nil clears it.
func (b *Book) SetAssignee(role stagecfg.Role, userID *int64) {
	switch role {
	case stagecfg.RoleScanner:
		b.ScannerUserID = userID
	case stagecfg.RoleIndexer:
		b.IndexerUserID = userID
	case stagecfg.RoleQC:
		b.QCUserID = userID
	}
}

// StartTimeFor returns a pointer to the role's start timestamp field so
// handlers can set or clear it.
func (b *Book) StartTimeFor(role stagecfg.Role) **time.Time {
	switch role {
	case stagecfg.RoleScanner:
		return &b.ScanStartTime
	case stagecfg.RoleIndexer:
		return &b.IndexStartTime
	case stagecfg.RoleQC:
		return &b.QCStartTime
	default:
		return nil
	}
}

// EndTimeFor returns a pointer to the role's end timestamp field.
func (b *Book) EndTimeFor(role stagecfg.Role) **time.Time {
	switch role {
	case stagecfg.RoleScanner:
		return &b.ScanEndTime
	case stagecfg.RoleIndexer:
		return &b.IndexEndTime
	case stagecfg.RoleQC:
		return &b.QCEndTime
	default:
		return nil
	}
}

// Document flags.
const (
	FlagNone    = ""
	FlagError   = "error"
	FlagWarning = "warning"
	FlagInfo    = "info"
)

// Document is one scanned page belonging to a book.
type Document struct {
	ID        int64
	BookID    int64
	Name      string
	Status    string
	Flag      string
	Comment   string
	Tags      []string
	ImagePath string
	CreatedAt time.Time
}

// Processing batch statuses.
const (
	BatchInProgress = "In Progress"
	BatchComplete   = "Complete"
	BatchFailed     = "Failed"
	BatchFinalized  = "Finalized"
)

// Processing batch item statuses.
const (
	ItemProcessing = "Processing"
	ItemFinalized  = "Finalized"
	ItemCQFailed   = "CQ Failed"
)

// ProcessingBatch groups books submitted together to an automated
// processing run.
type ProcessingBatch struct {
	ID        int64
	StorageID int64
	Status    string
	Progress  float64
	CreatedAt time.Time
}

// ProcessingBatchItem tracks one book's outcome inside a processing batch.
type ProcessingBatchItem struct {
	ID      int64
	BatchID int64
	BookID  int64
	Status  string
}

// Delivery item decisions.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// DeliveryBatch groups books sent to a client for validation.
type DeliveryBatch struct {
	ID        int64
	PublicID  string
	Status    string
	CreatedAt time.Time
}

// DeliveryBatchItem carries one book's provisional decision inside a
// delivery batch.
type DeliveryBatchItem struct {
	ID       int64
	BatchID  int64
	BookID   int64
	Decision string
	Reason   string
}

// RejectionTag is a client-scoped reusable rejection label. Documents
// reference tags by label string, so renaming a tag does not touch
// already-tagged documents.
type RejectionTag struct {
	ID          int64
	ClientID    int64
	Label       string
	Description string
}

// Audit event names.
const (
	EventStatusUpdate    = "Status Update"
	EventSystemAlert     = "System Alert"
	EventTaskAssignment  = "Task Assignment"
	EventClientApproval  = "Client Approval"
	EventClientRejection = "Client Rejection"
	EventAdminOverride   = "Admin Override"
)

// AuditEntry records one workflow event against a book.
type AuditEntry struct {
	ID        int64
	BookID    *int64
	Actor     string
	Event     string
	Detail    string
	RequestID string
	CreatedAt time.Time
}
