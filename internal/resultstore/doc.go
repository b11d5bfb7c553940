// Package resultstore persists screening batches so the results API can
// serve them after the run has finished.
//
// Two database/sql drivers are supported: "sqlite" (modernc.org/sqlite, pure
// Go) for single-host use and "pgx" (jackc/pgx/v5/stdlib) for a shared
// Postgres database. Both use the same schema of three tables:
//
//	runs                one row per batch
//	unit_results        one row per (run, chemical, endpoint)
//	dose_response_rows  the canonical dose-response table of each unit
//
// A batch is written in a single transaction, so a run is either fully
// visible or absent.
package resultstore
