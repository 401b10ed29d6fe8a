// Package store persists unified sessions: metadata and search index in
// SQLite, full message content in per-session JSONL logs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	"github.com/jayshah5696/sagg/internal/model"
)

// ErrNotFound is returned when a session id or natural key has no row.
var ErrNotFound = errors.New("session not found")

// Store is the storage engine. Safe for use from a single process; WAL
// mode keeps concurrent readers (a watch process plus CLI queries) happy.
type Store struct {
	db          *sql.DB
	dbPath      string
	sessionsDir string
}

// DefaultDBPath returns ~/.sagg/db.sqlite.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sagg", "db.sqlite")
}

// DefaultSessionsDir returns ~/.sagg/sessions.
func DefaultSessionsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sagg", "sessions")
}

// Open opens or creates the database and applies pending migrations.
// Empty paths use the defaults under ~/.sagg.
func Open(dbPath, sessionsDir string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath()
	}
	if sessionsDir == "" {
		sessionsDir = DefaultSessionsDir()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dbPath: dbPath, sessionsDir: sessionsDir}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SessionsDir returns the content log root.
func (s *Store) SessionsDir() string {
	return s.sessionsDir
}

// Save inserts or replaces a session: the metadata row, its per-model and
// per-tool breakdowns, the JSONL content log and the FTS entry. The
// content log rewrite is skipped when the content fingerprint is
// unchanged.
func (s *Store) Save(sess *model.UnifiedSession) error {
	return s.save(sess, "", "")
}

// SaveImported saves a session carrying bundle provenance.
func (s *Store) SaveImported(sess *model.UnifiedSession, originMachine, importSource string) error {
	return s.save(sess, originMachine, importSource)
}

func (s *Store) save(sess *model.UnifiedSession, originMachine, importSource string) error {
	content, err := model.TurnsToJSONL(sess.Turns)
	if err != nil {
		return fmt.Errorf("encode content log: %w", err)
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(content))

	var prevID string
	var prevRowid int64
	var prevHash sql.NullString
	err = s.db.QueryRow(
		"SELECT id, rowid, content_hash FROM sessions WHERE source = ? AND source_id = ?",
		string(sess.Source), sess.SourceID,
	).Scan(&prevID, &prevRowid, &prevHash)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read existing session: %w", err)
	}
	contentChanged := !prevHash.Valid || prevHash.String != hash

	// INSERT OR REPLACE rewrites the row under a fresh rowid, so the old
	// FTS entry always goes stale; drop it up front. A replace under a new
	// id additionally orphans the old content log.
	if prevID != "" {
		if _, err := s.db.Exec("DELETE FROM sessions_fts WHERE rowid = ?", prevRowid); err != nil {
			return fmt.Errorf("clear stale fts entry: %w", err)
		}
		if prevID != sess.ID {
			if err := os.Remove(s.contentPath(string(sess.Source), prevID)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale content log: %w", err)
			}
			contentChanged = true
		}
	}

	filesJSON, err := json.Marshal(sess.Stats.FilesModified)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}

	var branch, commit, remote any
	if sess.Git != nil {
		branch, commit, remote = sess.Git.Branch, sess.Git.Commit, sess.Git.Remote
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO sessions (
			id, source, source_id, source_path,
			title, project_path, project_name,
			git_branch, git_commit, git_remote,
			created_at, updated_at, duration_ms,
			turn_count, message_count,
			input_tokens, output_tokens, tool_call_count,
			files_modified_json, content_hash, imported_at,
			origin_machine, import_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Source), sess.SourceID, sess.SourcePath,
		sess.Title, sess.ProjectPath, sess.ProjectName,
		branch, commit, remote,
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(), sess.DurationMS,
		sess.Stats.TurnCount, sess.Stats.MessageCount,
		sess.Stats.InputTokens, sess.Stats.OutputTokens, sess.Stats.ToolCallCount,
		string(filesJSON), hash, time.Now().Unix(),
		nullable(originMachine), nullable(importSource),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM session_models WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clear session models: %w", err)
	}
	for _, m := range sess.Models {
		if _, err := tx.Exec(`
			INSERT INTO session_models (session_id, model_id, provider, message_count, input_tokens, output_tokens)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, m.ModelID, m.Provider, m.MessageCount, m.InputTokens, m.OutputTokens,
		); err != nil {
			return fmt.Errorf("insert session model %s: %w", m.ModelID, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM session_tools WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clear session tools: %w", err)
	}
	for name, count := range sess.ToolCounts() {
		if _, err := tx.Exec(
			"INSERT INTO session_tools (session_id, tool_name, call_count) VALUES (?, ?, ?)",
			sess.ID, name, count,
		); err != nil {
			return fmt.Errorf("insert session tool %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	if contentChanged {
		if err := s.writeContent(sess, content); err != nil {
			return err
		}
	}
	return s.updateFTS(sess.ID, sess.Title, sess.ProjectName, sess.ExtractText())
}

func (s *Store) contentPath(source, id string) string {
	return filepath.Join(s.sessionsDir, source, id+".jsonl")
}

func (s *Store) writeContent(sess *model.UnifiedSession, content []byte) error {
	path := s.contentPath(string(sess.Source), sess.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create content directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write content log: %w", err)
	}
	return nil
}

// updateFTS replaces the FTS entry for a session. The index row shares the
// sessions table rowid.
func (s *Store) updateFTS(sessionID, title, projectName, content string) error {
	var rowid int64
	if err := s.db.QueryRow("SELECT rowid FROM sessions WHERE id = ?", sessionID).Scan(&rowid); err != nil {
		return fmt.Errorf("resolve rowid: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions_fts WHERE rowid = ?", rowid); err != nil {
		return fmt.Errorf("clear fts entry: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT INTO sessions_fts (rowid, title, project_name, content) VALUES (?, ?, ?, ?)",
		rowid, title, projectName, content,
	); err != nil {
		return fmt.Errorf("insert fts entry: %w", err)
	}
	return nil
}

// Get loads a session by id, including its full content.
func (s *Store) Get(id string) (*model.UnifiedSession, error) {
	row := s.db.QueryRow(selectSessions+" WHERE id = ?", id)
	return s.scanSession(row, true)
}

// GetBySourceID loads a session by its natural key, including content.
func (s *Store) GetBySourceID(source model.SourceTool, sourceID string) (*model.UnifiedSession, error) {
	row := s.db.QueryRow(selectSessions+" WHERE source = ? AND source_id = ?", string(source), sourceID)
	return s.scanSession(row, true)
}

// Exists reports whether a session with the natural key is stored.
func (s *Store) Exists(source model.SourceTool, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM sessions WHERE source = ? AND source_id = ?",
		string(source), sourceID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return true, nil
}

// ListFilter narrows List. Zero values mean no constraint; Limit defaults
// to 50.
type ListFilter struct {
	Source  model.SourceTool
	Project string
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

// List returns session metadata (no turns), newest first by creation time.
func (s *Store) List(filter ListFilter) ([]*model.UnifiedSession, error) {
	var conds []string
	var args []any
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Project != "" {
		conds = append(conds, "(project_path LIKE ? OR project_name LIKE ?)")
		pattern := "%" + filter.Project + "%"
		args = append(args, pattern, pattern)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.Unix())
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.Until.Unix())
	}

	query := selectSessions
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return s.scanSessions(rows)
}

// Search runs a full-text query over titles, project names and message
// content, best matches first.
func (s *Store) Search(query string, limit int) ([]*model.UnifiedSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+` FROM sessions s
		JOIN sessions_fts fts ON s.rowid = fts.rowid
		WHERE sessions_fts MATCH ?
		ORDER BY fts.rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	defer rows.Close()
	return s.scanSessions(rows)
}

// Delete removes a session's rows, FTS entry and content log.
func (s *Store) Delete(id string) error {
	var source string
	var rowid int64
	err := s.db.QueryRow("SELECT source, rowid FROM sessions WHERE id = ?", id).Scan(&source, &rowid)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load session for delete: %w", err)
	}

	if _, err := s.db.Exec("DELETE FROM sessions_fts WHERE rowid = ?", rowid); err != nil {
		return fmt.Errorf("delete fts entry: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := os.Remove(s.contentPath(source, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete content log: %w", err)
	}
	return nil
}

// SyncState holds a source's incremental-sync watermark.
type SyncState struct {
	LastSyncAt   time.Time
	SessionCount int
}

// SyncState returns the watermark for a source, or nil if never synced.
func (s *Store) SyncState(source model.SourceTool) (*SyncState, error) {
	var lastSync int64
	var count int
	err := s.db.QueryRow(
		"SELECT last_sync_at, session_count FROM sync_state WHERE source = ?",
		string(source),
	).Scan(&lastSync, &count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	return &SyncState{LastSyncAt: time.Unix(lastSync, 0).UTC(), SessionCount: count}, nil
}

// SetSyncState records a source's watermark after a successful sync.
func (s *Store) SetSyncState(source model.SourceTool, syncTime time.Time, count int) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sync_state (source, last_sync_at, session_count) VALUES (?, ?, ?)",
		string(source), syncTime.Unix(), count,
	)
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return nil
}

const sessionColumns = `s.id, s.source, s.source_id, s.source_path,
	s.title, s.project_path, s.project_name,
	s.git_branch, s.git_commit, s.git_remote,
	s.created_at, s.updated_at, s.duration_ms,
	s.turn_count, s.message_count,
	s.input_tokens, s.output_tokens, s.tool_call_count,
	s.files_modified_json, s.origin_machine, s.import_source`

const selectSessions = "SELECT " + sessionColumns + " FROM sessions s"

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSession(row rowScanner, includeContent bool) (*model.UnifiedSession, error) {
	var sess model.UnifiedSession
	var source string
	var title, projectPath, projectName sql.NullString
	var branch, commit, remote sql.NullString
	var createdAt, updatedAt int64
	var durationMS sql.NullInt64
	var filesJSON, originMachine, importSource sql.NullString

	err := row.Scan(
		&sess.ID, &source, &sess.SourceID, &sess.SourcePath,
		&title, &projectPath, &projectName,
		&branch, &commit, &remote,
		&createdAt, &updatedAt, &durationMS,
		&sess.Stats.TurnCount, &sess.Stats.MessageCount,
		&sess.Stats.InputTokens, &sess.Stats.OutputTokens, &sess.Stats.ToolCallCount,
		&filesJSON, &originMachine, &importSource,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Source = model.SourceTool(source)
	sess.Title = title.String
	sess.ProjectPath = projectPath.String
	sess.ProjectName = projectName.String
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	sess.DurationMS = durationMS.Int64
	if branch.String != "" || commit.String != "" || remote.String != "" {
		sess.Git = &model.GitContext{Branch: branch.String, Commit: commit.String, Remote: remote.String}
	}
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &sess.Stats.FilesModified); err != nil {
			return nil, fmt.Errorf("decode files for %s: %w", sess.ID, err)
		}
	}

	models, err := s.loadModels(sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Models = models

	if includeContent {
		turns, err := s.loadContent(string(sess.Source), sess.ID)
		if err != nil {
			return nil, err
		}
		sess.Turns = turns
	}
	return &sess, nil
}

func (s *Store) scanSessions(rows *sql.Rows) ([]*model.UnifiedSession, error) {
	var sessions []*model.UnifiedSession
	for rows.Next() {
		sess, err := s.scanSession(rows, false)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) loadModels(sessionID string) ([]model.ModelUsage, error) {
	rows, err := s.db.Query(`
		SELECT model_id, provider, message_count, input_tokens, output_tokens
		FROM session_models WHERE session_id = ? ORDER BY model_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session models: %w", err)
	}
	defer rows.Close()

	var models []model.ModelUsage
	for rows.Next() {
		var m model.ModelUsage
		if err := rows.Scan(&m.ModelID, &m.Provider, &m.MessageCount, &m.InputTokens, &m.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan session model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *Store) loadContent(source, id string) ([]model.Turn, error) {
	data, err := os.ReadFile(s.contentPath(source, id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content log: %w", err)
	}
	turns, err := model.TurnsFromJSONL(data)
	if err != nil {
		return nil, fmt.Errorf("decode content log for %s: %w", id, err)
	}
	return turns, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
