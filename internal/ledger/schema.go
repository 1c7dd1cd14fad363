// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

// SchemaVersion tracks the database schema version for migrations.
const SchemaVersion = 1

// Schema creates the run history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per clean run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    plan_id TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,   -- Unix milliseconds
    finished_at INTEGER NOT NULL,  -- Unix milliseconds
    input_hash TEXT NOT NULL,      -- blake2b-256 of the input CSV
    output_hash TEXT NOT NULL,     -- blake2b-256 of the cleaned CSV
    input_rows INTEGER NOT NULL,
    output_rows INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Terminal outcome of each plan step
CREATE TABLE IF NOT EXISTS steps (
    run_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL,          -- Applied, Failed
    error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, idx),
    FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Every synthesize and execute attempt
CREATE TABLE IF NOT EXISTS attempts (
    run_id TEXT NOT NULL,
    step_idx INTEGER NOT NULL,
    number INTEGER NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, step_idx, number),
    FOREIGN KEY(run_id, step_idx) REFERENCES steps(run_id, idx) ON DELETE CASCADE
);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
