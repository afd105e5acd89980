// Package workflow drives books through the production stages. Every
// transition is two-phase: the book's folder is moved on the scanning
// network first, and only a successful move is followed by the status
// write. A failed move therefore leaves the database untouched and the
// book exactly where it was.
package workflow
