// Command bindery is the production tracker CLI: it records books moving
// through the digitization workflow, assigns work to operators, and runs
// delivery and processing batches.
package main
