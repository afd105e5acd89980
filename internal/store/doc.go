// Package store manages tracker persistence backed by SQLite.
//
// It owns the schema for every entity the engines operate on: clients,
// users, projects, storages, books, documents, processing and delivery
// batches, rejection tags, and the audit log. Book status writes go
// through a compare-and-swap on a version column so two users racing to
// transition the same book surface a conflict instead of clobbering each
// other.
package store
