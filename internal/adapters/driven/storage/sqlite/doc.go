// Package sqlite provides a unified SQLite-based implementation of the index,
// document and result stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. All stores share one connection:
//
//   - IndexStore: chunks with little-endian float32 embedding blobs, scored
//     exactly by cosine similarity after the metadata filter runs in SQL
//   - DocumentStore: one summary row per indexed filing
//   - ResultStore: evaluation results keyed by run, model and case
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files
// and is recorded in schema_migrations once applied.
//
// # Data Location
//
// By default, the database is stored at ~/.finsight/data/finsight.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
