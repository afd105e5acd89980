// Package assignment decides which book an operator works on next. Tasks
// are pulled, never pushed: an operator asks for work in a stage and the
// engine walks their accessible projects in order, handing out the first
// unassigned book whose scans their workstation can reach.
package assignment
