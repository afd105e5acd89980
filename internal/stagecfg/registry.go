package stagecfg

import "strings"

// Key identifies one step of the canonical workflow.
type Key string

const (
	KeyPendingShipment    Key = "pending-shipment"
	KeyInTransit          Key = "in-transit"
	KeyReceived           Key = "received"
	KeyToScan             Key = "to-scan"
	KeyScanningStarted    Key = "scanning-started"
	KeyStorage            Key = "storage"
	KeyToIndexing         Key = "to-indexing"
	KeyIndexingStarted    Key = "indexing-started"
	KeyToChecking         Key = "to-checking"
	KeyCheckingStarted    Key = "checking-started"
	KeyReadyForProcessing Key = "ready-for-processing"
	KeyInProcessing       Key = "in-processing"
	KeyProcessed          Key = "processed"
	KeyDelivery           Key = "delivery"
	KeyClientRejected     Key = "client-rejected"
	KeyCorrected          Key = "corrected"
)

// Terminal statuses sit outside the canonical sequence. A book whose
// workflow has no further enabled stage lands on StatusFinalized; archival
// is an explicit admin action afterwards.
const (
	StatusFinalized = "Finalized"
	StatusArchived  = "Archived"
)

// Role names the assignee field a stage binds to.
type Role string

const (
	RoleNone    Role = ""
	RoleScanner Role = "scanner"
	RoleIndexer Role = "indexer"
	RoleQC      Role = "qc"
)

// ViewType hints how a stage is presented: a queue of waiting books, a
// work-in-progress view, or a plain overview listing.
type ViewType string

const (
	ViewOverview ViewType = "overview"
	ViewQueue    ViewType = "queue"
	ViewWork     ViewType = "work"
)

// Stage carries the metadata for one canonical stage.
type Stage struct {
	Key        Key
	Status     string
	Role       Role
	FolderName string
	View       ViewType
}

// sequence is the canonical stage order. Project workflows must be ordered
// subsequences of this list.
var sequence = []Stage{
	{Key: KeyPendingShipment, Status: "Pending Shipment", View: ViewOverview},
	{Key: KeyInTransit, Status: "In Transit", View: ViewOverview},
	{Key: KeyReceived, Status: "Received", View: ViewOverview},
	{Key: KeyToScan, Status: "To Scan", Role: RoleScanner, FolderName: "01_ToScan", View: ViewQueue},
	{Key: KeyScanningStarted, Status: "Scanning Started", Role: RoleScanner, FolderName: "02_Scanning", View: ViewWork},
	{Key: KeyStorage, Status: "Storage", FolderName: "03_Storage", View: ViewOverview},
	{Key: KeyToIndexing, Status: "To Indexing", Role: RoleIndexer, FolderName: "04_ToIndexing", View: ViewQueue},
	{Key: KeyIndexingStarted, Status: "Indexing Started", Role: RoleIndexer, FolderName: "05_Indexing", View: ViewWork},
	{Key: KeyToChecking, Status: "To Checking", Role: RoleQC, FolderName: "06_ToChecking", View: ViewQueue},
	{Key: KeyCheckingStarted, Status: "Checking Started", Role: RoleQC, FolderName: "07_Checking", View: ViewWork},
	{Key: KeyReadyForProcessing, Status: "Ready for Processing", FolderName: "08_ReadyForProcessing", View: ViewQueue},
	{Key: KeyInProcessing, Status: "In Processing", FolderName: "09_Processing", View: ViewWork},
	{Key: KeyProcessed, Status: "Processed", FolderName: "10_Processed", View: ViewOverview},
	{Key: KeyDelivery, Status: "Delivery", FolderName: "11_Delivery", View: ViewQueue},
	{Key: KeyClientRejected, Status: "Client Rejected", FolderName: "12_Rejected", View: ViewQueue},
	{Key: KeyCorrected, Status: "Corrected", FolderName: "13_Corrected", View: ViewQueue},
}

var (
	stageByKey    = make(map[Key]Stage, len(sequence))
	stageByStatus = make(map[string]Stage, len(sequence))
	orderByKey    = make(map[Key]int, len(sequence))
)

func init() {
	for i, st := range sequence {
		stageByKey[st.Key] = st
		stageByStatus[st.Status] = st
		orderByKey[st.Key] = i
	}
}

// Sequence returns the canonical stage order.
func Sequence() []Stage {
	cp := make([]Stage, len(sequence))
	copy(cp, sequence)
	return cp
}

// Lookup returns the stage metadata for a key.
func Lookup(key Key) (Stage, bool) {
	st, ok := stageByKey[key]
	return st, ok
}

// KeyForStatus maps a persisted status name back to its stage key. Unknown
// statuses (including the terminal ones) return false; callers treat that
// as a configuration error, not a stage to skip.
func KeyForStatus(status string) (Key, bool) {
	st, ok := stageByStatus[strings.TrimSpace(status)]
	if !ok {
		return "", false
	}
	return st.Key, true
}

// StatusFor returns the persisted status name for a stage key, or "" when
// the key is unknown.
func StatusFor(key Key) string {
	return stageByKey[key].Status
}

// RoleFor returns the assignee role a stage binds to.
func RoleFor(key Key) Role {
	return stageByKey[key].Role
}

// FolderFor returns the file-service folder for a stage. Empty means the
// stage is folder-less and moves into or out of it are no-ops.
func FolderFor(key Key) string {
	return stageByKey[key].FolderName
}

// ParseKey normalizes a user-supplied stage key.
func ParseKey(value string) (Key, bool) {
	key := Key(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stageByKey[key]
	return key, ok
}

// IsTerminalStatus reports whether a status sits outside the canonical
// sequence.
func IsTerminalStatus(status string) bool {
	trimmed := strings.TrimSpace(status)
	return trimmed == StatusFinalized || trimmed == StatusArchived
}

// Precedes reports whether a comes strictly before b in canonical order.
// Unknown keys never precede anything.
func Precedes(a, b Key) bool {
	aIdx, aOK := orderByKey[a]
	bIdx, bOK := orderByKey[b]
	return aOK && bOK && aIdx < bIdx
}

// NextEnabledStage returns the first stage of workflow that follows current
// in canonical order. It returns false when current is not part of the
// workflow or nothing enabled follows it; the caller maps that to the
// terminal status. Stages absent from the workflow are skipped
// transparently.
func NextEnabledStage(current Key, workflow []Key) (Key, bool) {
	currentIdx, ok := orderByKey[current]
	if !ok {
		return "", false
	}
	enabled := false
	bestIdx := -1
	var best Key
	for _, key := range workflow {
		idx, known := orderByKey[key]
		if !known {
			continue
		}
		if key == current {
			enabled = true
			continue
		}
		if idx > currentIdx && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			best = key
		}
	}
	if !enabled || bestIdx == -1 {
		return "", false
	}
	return best, true
}

// PreviousEnabledStage returns the last stage of workflow that precedes
// current in canonical order. Used by the pull engine to find the queue a
// stage draws from.
func PreviousEnabledStage(current Key, workflow []Key) (Key, bool) {
	currentIdx, ok := orderByKey[current]
	if !ok {
		return "", false
	}
	enabled := false
	bestIdx := -1
	var best Key
	for _, key := range workflow {
		idx, known := orderByKey[key]
		if !known {
			continue
		}
		if key == current {
			enabled = true
			continue
		}
		if idx < currentIdx && idx > bestIdx {
			bestIdx = idx
			best = key
		}
	}
	if !enabled || bestIdx == -1 {
		return "", false
	}
	return best, true
}

// ValidateWorkflow checks that a project workflow is a strictly ordered
// subsequence of the canonical sequence with no duplicates or unknown keys.
func ValidateWorkflow(workflow []Key) error {
	lastIdx := -1
	seen := make(map[Key]struct{}, len(workflow))
	for _, key := range workflow {
		idx, ok := orderByKey[key]
		if !ok {
			return &WorkflowError{Key: key, Reason: "unknown stage key"}
		}
		if _, dup := seen[key]; dup {
			return &WorkflowError{Key: key, Reason: "duplicate stage key"}
		}
		if idx <= lastIdx {
			return &WorkflowError{Key: key, Reason: "stage out of canonical order"}
		}
		seen[key] = struct{}{}
		lastIdx = idx
	}
	return nil
}

// WorkflowError describes an invalid project workflow definition.
type WorkflowError struct {
	Key    Key
	Reason string
}

func (e *WorkflowError) Error() string {
	return "workflow: " + string(e.Key) + ": " + e.Reason
}
