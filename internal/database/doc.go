// Package database provides SQLite-based storage for conversion runs.
//
// This package implements the RunDB, which stores:
//   - Conversion run reports for historical analysis
//   - Per-layer records for layer-level queries
//   - Severity summaries for quick history listings
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
