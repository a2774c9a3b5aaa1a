// Package stores provides the persistence layer for vnflcm.
// It includes a SQLite-based store with WAL mode and embedded migrations
// for model versions, action plans, execution runs, the event log and
// the audit trail.
package stores
