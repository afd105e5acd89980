// Package filemover talks to the workflow file-operations service that
// physically moves book folders between stage directories on the scanning
// network. Stage transitions call Move before any status write so the
// database never claims a location the filesystem does not have.
package filemover
