package pgstore

import (
	"fmt"
	"strings"
)

const historyDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
	id               TEXT PRIMARY KEY,
	sensor_id        TEXT NOT NULL,
	sensor_type      TEXT NOT NULL,
	role             TEXT NOT NULL,
	wsection         TEXT NOT NULL,
	asset            TEXT,
	measurement_kind TEXT,
	value            DOUBLE PRECISION NOT NULL,
	unit             TEXT NOT NULL,
	ts               TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_sensor_ts_idx ON %[1]s (sensor_id, ts DESC);`

const snapshotDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
	sensor_id        TEXT PRIMARY KEY,
	value            DOUBLE PRECISION NOT NULL,
	unit             TEXT NOT NULL,
	sensor_type      TEXT NOT NULL,
	role             TEXT NOT NULL,
	wsection         TEXT NOT NULL,
	asset            TEXT,
	measurement_kind TEXT,
	threshold_min    DOUBLE PRECISION,
	threshold_max    DOUBLE PRECISION,
	last_updated     TIMESTAMPTZ NOT NULL
);`

// quoteIdent quotes a PostgreSQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualified(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}

	return quoteIdent(schema) + "." + quoteIdent(table)
}

// schemaStatements returns the DDL that creates both tables if they are missing.
func schemaStatements(cfg Config) []string {
	stmts := make([]string, 0, 3)
	if cfg.Schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(cfg.Schema))
	}

	return append(stmts,
		fmt.Sprintf(historyDDL, qualified(cfg.Schema, cfg.History), cfg.History),
		fmt.Sprintf(snapshotDDL, qualified(cfg.Schema, cfg.Snapshots)),
	)
}
