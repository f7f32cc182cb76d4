package contextstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/slyt3/ash"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists contexts to disk, surviving process restarts — the
// backend a real deployment would use instead of MemoryStore. Adapted from
// the teacher's internal/ledger/store (sqlite.go), including its WAL-mode
// and embedded-schema conventions.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the SQLite database at
// dbPath and applies the embedded schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating context store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening context store database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("executing context store schema: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Issue(binding string, mode ash.Mode, nonce string, nowMs, ttlMs int64) (*StoredContext, error) {
	contextID, err := ash.GenerateContextID()
	if err != nil {
		return nil, err
	}

	sc := &StoredContext{
		ContextID: contextID,
		Binding:   binding,
		Mode:      mode,
		Nonce:     nonce,
		IssuedAt:  nowMs,
		ExpiresAt: nowMs + ttlMs,
	}

	rowID := uuid.New().String()
	_, err = s.conn.Exec(
		`INSERT INTO contexts (row_id, context_id, binding, mode, nonce, issued_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rowID, sc.ContextID, sc.Binding, sc.Mode.String(), sc.Nonce, sc.IssuedAt, sc.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting context: %w", err)
	}
	return sc, nil
}

func (s *SQLiteStore) Get(contextID string) (*StoredContext, error) {
	row := s.conn.QueryRow(
		`SELECT context_id, binding, mode, nonce, issued_at, expires_at, consumed_at FROM contexts WHERE context_id = ?`,
		contextID,
	)
	return scanContext(row)
}

func (s *SQLiteStore) Consume(contextID string, nowMs int64) error {
	sc, err := s.Get(contextID)
	if err != nil {
		return err
	}
	if sc.IsExpired(nowMs) {
		return ErrExpired
	}
	if sc.IsConsumed() {
		return ErrAlreadyConsumed
	}

	res, err := s.conn.Exec(
		`UPDATE contexts SET consumed_at = ? WHERE context_id = ? AND consumed_at IS NULL`,
		nowMs, contextID,
	)
	if err != nil {
		return fmt.Errorf("marking context consumed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking consume result: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyConsumed
	}
	return nil
}

func (s *SQLiteStore) SweepExpired(nowMs int64) (int, error) {
	res, err := s.conn.Exec(
		`DELETE FROM contexts WHERE expires_at <= ? AND consumed_at IS NULL`,
		nowMs,
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired contexts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking sweep result: %w", err)
	}
	return int(affected), nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContext(row scannable) (*StoredContext, error) {
	var (
		sc         StoredContext
		modeStr    string
		consumedAt sql.NullInt64
	)
	err := row.Scan(&sc.ContextID, &sc.Binding, &modeStr, &sc.Nonce, &sc.IssuedAt, &sc.ExpiresAt, &consumedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning context row: %w", err)
	}

	mode, err := ash.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("stored context has invalid mode %q: %w", modeStr, err)
	}
	sc.Mode = mode

	if consumedAt.Valid {
		v := consumedAt.Int64
		sc.ConsumedAt = &v
	}
	return &sc, nil
}
