package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// schemaSQL creates the persistent tables from §6: memories, memory_history,
// their indexes, and PRAGMA foreign_keys=ON.
const schemaSQL = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	user_id TEXT,
	agent_id TEXT,
	run_id TEXT,
	hash TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id TEXT,
	old_content TEXT,
	new_content TEXT,
	action TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_agent_id ON memories(agent_id);
CREATE INDEX IF NOT EXISTS idx_memories_run_id ON memories(run_id);
CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories(hash);
CREATE INDEX IF NOT EXISTS idx_memory_history_memory_id ON memory_history(memory_id);
`

// HistoryAction tags one memory_history row (§6).
type HistoryAction string

const (
	ActionAdd    HistoryAction = "ADD"
	ActionUpdate HistoryAction = "UPDATE"
	ActionDelete HistoryAction = "DELETE"
	ActionNoop   HistoryAction = "NOOP"
)

// PersistedMemory is one row of the memories table, deserialized (§6).
type PersistedMemory struct {
	Id        ids.MemoryId
	Content   string
	Scope     Scope
	Hash      string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MetadataStore is the SQLite-backed persistent store behind MemoryService
// (§4.7/§6). The connection is held under a mutex and every statement runs
// through a context-bound call so SQLite's synchronous calls never block
// the scheduler's other goroutines for long (§4.7/§5).
type MetadataStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenMetadataStore opens (or creates) a SQLite database at path and
// applies the schema.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // SQLite's writer is single-connection; §4.7's own mutex makes this explicit rather than implicit.

	s := &MetadataStore{db: db}
	if err := s.exec(context.Background(), schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MetadataStore) Close() error {
	return s.db.Close()
}

func (s *MetadataStore) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return ids.Wrap(ids.KindIo, "sqlite exec", err)
	}
	return nil
}

const rfc3339 = time.RFC3339

// Insert writes a new memory row and an ADD history row (§6).
func (s *MetadataStore) Insert(ctx context.Context, m PersistedMemory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return ids.Wrap(ids.KindSerde, "encode memory metadata", err)
	}
	now := time.Now().UTC().Format(rfc3339)

	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	s.mu.Unlock()
	if err != nil {
		return ids.Wrap(ids.KindIo, "begin tx", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, content, user_id, agent_id, run_id, hash, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.Id), m.Content, scopeField(m.Scope.UserId), scopeField(m.Scope.AgentId), scopeField(m.Scope.RunId),
		m.Hash, string(metaJSON), now, now)
	if err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "insert memory row", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memory_history (memory_id, old_content, new_content, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(m.Id), "", m.Content, string(ActionAdd), now)
	if err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "insert history row", err)
	}

	if err := tx.Commit(); err != nil {
		return ids.Wrap(ids.KindIo, "commit insert tx", err)
	}
	return nil
}

// Update overwrites an existing memory's content and records an UPDATE
// history row with the old and new content (§6/§8 scenario 6).
func (s *MetadataStore) Update(ctx context.Context, id ids.MemoryId, newContent string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(rfc3339)

	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	s.mu.Unlock()
	if err != nil {
		return ids.Wrap(ids.KindIo, "begin tx", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE memories SET content = ?, updated_at = ? WHERE id = ?`, newContent, now, string(id))
	if err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "update memory row", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memory_history (memory_id, old_content, new_content, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(id), existing.Content, newContent, string(ActionUpdate), now)
	if err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "insert history row", err)
	}
	if err := tx.Commit(); err != nil {
		return ids.Wrap(ids.KindIo, "commit update tx", err)
	}
	return nil
}

// Delete removes a memory row (cascading its history via FK) after
// recording a DELETE history row with the prior content.
func (s *MetadataStore) Delete(ctx context.Context, id ids.MemoryId) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(rfc3339)

	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	s.mu.Unlock()
	if err != nil {
		return ids.Wrap(ids.KindIo, "begin tx", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memory_history (memory_id, old_content, new_content, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(id), existing.Content, "", string(ActionDelete), now)
	if err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "insert history row", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, string(id)); err != nil {
		tx.Rollback()
		return ids.Wrap(ids.KindIo, "delete memory row", err)
	}
	if err := tx.Commit(); err != nil {
		return ids.Wrap(ids.KindIo, "commit delete tx", err)
	}
	return nil
}

// Get fetches one memory row by id.
func (s *MetadataStore) Get(ctx context.Context, id ids.MemoryId) (PersistedMemory, error) {
	s.mu.Lock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, user_id, agent_id, run_id, hash, metadata, created_at, updated_at FROM memories WHERE id = ?`,
		string(id))
	pm, err := scanMemoryRow(row)
	s.mu.Unlock()
	if err != nil {
		return PersistedMemory{}, ids.Wrap(ids.KindMemory, "memory not found: "+string(id), err)
	}
	return pm, nil
}

// ListByScope returns every memory matching the scope predicate (None-fields
// are wildcards, §4.7/§6).
func (s *MetadataStore) ListByScope(ctx context.Context, scope Scope) ([]PersistedMemory, error) {
	query := `SELECT id, content, user_id, agent_id, run_id, hash, metadata, created_at, updated_at FROM memories WHERE 1=1`
	var args []any
	if scope.UserId != nil {
		query += " AND user_id = ?"
		args = append(args, *scope.UserId)
	}
	if scope.AgentId != nil {
		query += " AND agent_id = ?"
		args = append(args, *scope.AgentId)
	}
	if scope.RunId != nil {
		query += " AND run_id = ?"
		args = append(args, *scope.RunId)
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, ids.Wrap(ids.KindIo, "list memories by scope", err)
	}
	var out []PersistedMemory
	for rows.Next() {
		pm, err := scanMemoryRow(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, ids.Wrap(ids.KindIo, "scan memory row", err)
		}
		out = append(out, pm)
	}
	rows.Close()
	s.mu.Unlock()
	return out, nil
}

// History returns every memory_history row for id, oldest first.
func (s *MetadataStore) History(ctx context.Context, id ids.MemoryId) ([]HistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_id, old_content, new_content, action, timestamp FROM memory_history WHERE memory_id = ? ORDER BY id ASC`,
		string(id))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "query memory history", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		var memID, ts string
		if err := rows.Scan(&memID, &h.OldContent, &h.NewContent, &h.Action, &ts); err != nil {
			return nil, ids.Wrap(ids.KindIo, "scan history row", err)
		}
		h.MemoryId = ids.MemoryId(memID)
		h.Timestamp, _ = time.Parse(rfc3339, ts)
		out = append(out, h)
	}
	return out, nil
}

// HistoryRow is one audit-log entry (§6).
type HistoryRow struct {
	MemoryId   ids.MemoryId
	OldContent string
	NewContent string
	Action     HistoryAction
	Timestamp  time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemoryRow decodes a memories row. Metadata/scope parse failures yield
// empty maps rather than hard errors (§6: "parse failures yield empty maps
// rather than hard errors").
func scanMemoryRow(row rowScanner) (PersistedMemory, error) {
	var pm PersistedMemory
	var id, metaJSON, createdAt, updatedAt string
	var userID, agentID, runID sql.NullString

	if err := row.Scan(&id, &pm.Content, &userID, &agentID, &runID, &pm.Hash, &metaJSON, &createdAt, &updatedAt); err != nil {
		return pm, err
	}

	pm.Id = ids.MemoryId(id)
	pm.Scope = Scope{UserId: nullableString(userID), AgentId: nullableString(agentID), RunId: nullableString(runID)}
	pm.CreatedAt, _ = time.Parse(rfc3339, createdAt)
	pm.UpdatedAt, _ = time.Parse(rfc3339, updatedAt)

	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		meta = map[string]any{}
	}
	pm.Metadata = meta
	return pm, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func scopeField(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
