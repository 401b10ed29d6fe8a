package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// schemaVersion is the version the code expects. Migrations below bring
// any older database up to it.
const schemaVersion = 3

const baseSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	source_id       TEXT NOT NULL,
	source_path     TEXT NOT NULL,
	title           TEXT,
	project_path    TEXT,
	project_name    TEXT,
	git_branch      TEXT,
	git_commit      TEXT,
	git_remote      TEXT,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	duration_ms     INTEGER,
	turn_count      INTEGER DEFAULT 0,
	message_count   INTEGER DEFAULT 0,
	input_tokens    INTEGER DEFAULT 0,
	output_tokens   INTEGER DEFAULT 0,
	tool_call_count INTEGER DEFAULT 0,
	files_modified_json TEXT,
	content_hash    TEXT,
	imported_at     INTEGER NOT NULL,
	origin_machine  TEXT,
	import_source   TEXT,
	UNIQUE(source, source_id)
);

CREATE TABLE IF NOT EXISTS session_models (
	session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	model_id      TEXT NOT NULL,
	provider      TEXT NOT NULL,
	message_count INTEGER DEFAULT 0,
	input_tokens  INTEGER DEFAULT 0,
	output_tokens INTEGER DEFAULT 0,
	PRIMARY KEY (session_id, model_id)
);

CREATE TABLE IF NOT EXISTS session_tools (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	tool_name  TEXT NOT NULL,
	call_count INTEGER DEFAULT 0,
	PRIMARY KEY (session_id, tool_name)
);

CREATE INDEX IF NOT EXISTS idx_sessions_source ON sessions(source);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_name);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	source        TEXT PRIMARY KEY,
	last_sync_at  INTEGER NOT NULL,
	session_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`

// The FTS index is maintained manually on save and delete, keyed by the
// sessions table rowid.
const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
	title,
	project_name,
	content
);
`

const budgetsSchema = `
CREATE TABLE IF NOT EXISTS budgets (
	id          INTEGER PRIMARY KEY,
	period      TEXT NOT NULL,
	token_limit INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE(period)
);
`

// migrate brings the schema up to schemaVersion. Every step is idempotent
// and runs in its own transaction, so a partially migrated database
// resumes cleanly.
func migrate(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	for v := current + 1; v <= schemaVersion; v++ {
		if err := applyMigration(db, v); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v, err)
		}
	}
	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Fresh database, table does not exist yet.
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func applyMigration(db *sql.DB, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	switch version {
	case 1:
		if _, err := tx.Exec(baseSchema); err != nil {
			return err
		}
		if _, err := tx.Exec(ftsSchema); err != nil {
			return err
		}
	case 2:
		// Provenance columns for bundle import. Already present on fresh
		// databases; tolerate the duplicate column error on old ones.
		for _, col := range []string{"origin_machine TEXT", "import_source TEXT"} {
			if _, err := tx.Exec("ALTER TABLE sessions ADD COLUMN " + col); err != nil &&
				!strings.Contains(err.Error(), "duplicate column") {
				return err
			}
		}
	case 3:
		if _, err := tx.Exec(budgetsSchema); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown schema version %d", version)
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)",
		version, time.Now().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
