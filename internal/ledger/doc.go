// Package ledger persists a record of assembly runs in SQLite: one row
// per run with its status, failing stage if any, and the finished
// artifact's duration, size and chapter manifest.
package ledger
