// Package history persists a ledger of capture jobs in SQLite.
//
// The ledger is an audit artifact: live orchestration state stays in memory
// for the lifetime of a run, and nothing is ever read back to resume a job.
package history
