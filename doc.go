// Package main provides the entry point for the Claudia identity
// reconciliation engine. It runs a daemon that keeps a ledger of mappings
// between internal entities and their accounts in the connected backends,
// reconciling the two continuously through a chain of backend plugins. The
// application uses gorm for data persistence and exposes one-shot commands
// for consistency sweeps, single-mapping verification, scheduled event
// execution and retention cleanup.
package main
