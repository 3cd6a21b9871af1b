package ledger

// Schema v1 - ingestion runs
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per file presented to the pipeline
CREATE TABLE IF NOT EXISTS ingest_runs (
  id TEXT PRIMARY KEY,
  src_path TEXT NOT NULL,
  size_bytes INTEGER,
  sha1 TEXT,
  state TEXT NOT NULL,
  remote_key TEXT,
  song_id TEXT,
  error TEXT,
  started_unix_ms INTEGER NOT NULL,
  completed_unix_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_state ON ingest_runs(state);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_unix_ms);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_sha1 ON ingest_runs(sha1);
`

// Schema v2 - shortcode audit
const schemaV2 = `
CREATE TABLE IF NOT EXISTS commands (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  command TEXT NOT NULL,
  verb TEXT,
  result TEXT,
  executed_unix_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commands_executed ON commands(executed_unix_ms);
`
