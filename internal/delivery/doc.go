// Package delivery manages client validation rounds. Processed books are
// grouped into a delivery batch the client reviews; each book collects a
// provisional approve/reject decision, and finalizing the batch commits
// every decision as a workflow transition.
package delivery
