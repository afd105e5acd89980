// Package processing manages automated processing runs. Books waiting in
// Ready for Processing are batched per storage volume, handed to the
// processing application, and fanned back into the workflow when the run
// reports its outcome.
package processing
