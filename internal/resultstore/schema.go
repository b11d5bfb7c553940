package resultstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id              TEXT PRIMARY KEY,
		started_at          TEXT NOT NULL,
		finished_at         TEXT NOT NULL,
		variant             TEXT NOT NULL,
		trend_strategy      TEXT NOT NULL,
		bucket_table        TEXT NOT NULL,
		zero_control_policy TEXT NOT NULL,
		selection           TEXT NOT NULL,
		units               INTEGER NOT NULL,
		failed              INTEGER NOT NULL,
		fitted              INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS unit_results (
		run_id                TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		chemical_id           TEXT NOT NULL,
		endpoint              TEXT NOT NULL,
		flag                  INTEGER,
		flag_label            TEXT NOT NULL,
		p_value               DOUBLE PRECISION,
		correlation           DOUBLE PRECISION,
		n_groups              INTEGER NOT NULL,
		reason                TEXT NOT NULL,
		error                 TEXT NOT NULL,
		duration_ms           BIGINT NOT NULL,
		no_unique_model_found INTEGER,
		model_select_flag     INTEGER,
		selected_model        TEXT,
		bmd                   DOUBLE PRECISION,
		bmdl                  DOUBLE PRECISION,
		bmdu                  DOUBLE PRECISION,
		PRIMARY KEY (run_id, chemical_id, endpoint)
	)`,
	`CREATE TABLE IF NOT EXISTS dose_response_rows (
		run_id       TEXT NOT NULL,
		chemical_id  TEXT NOT NULL,
		endpoint     TEXT NOT NULL,
		idx          INTEGER NOT NULL,
		dose         DOUBLE PRECISION NOT NULL,
		num_affected INTEGER NOT NULL,
		total_num    INTEGER NOT NULL,
		PRIMARY KEY (run_id, chemical_id, endpoint, idx),
		FOREIGN KEY (run_id, chemical_id, endpoint)
			REFERENCES unit_results(run_id, chemical_id, endpoint) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS unit_results_flag ON unit_results (run_id, flag)`,
}

func applySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the $n form Postgres expects
func rebind(driver, query string) string {
	if driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
