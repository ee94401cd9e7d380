// Package ledger records fuse runs and per-bundle outcomes in SQLite.
//
// The ledger is history only: nothing reads it to decide what to process, so
// a missing or deleted database never changes what a run does. Migrations
// are embedded and applied on Open.
package ledger
