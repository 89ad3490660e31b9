package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable checkpoint store. Connection setup, pragma
// tuning, and prepared-statement use follow the teacher's
// internal/storage/sqlite.go construction idiom: pure-Go driver (no cgo), a
// small bounded connection pool, and WAL journaling for concurrent reads
// during a long-running session.
type SQLiteStore struct {
	db *sql.DB

	stmtUpsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtLatest *sql.Stmt
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) a checkpoint database at
// dbPath.
func NewSQLiteStore(dbPath string, busyTimeoutMs int) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("checkpoint database path cannot be empty")
	}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}

	dsn := dbPath + fmt.Sprintf("?_busy_timeout=%d", busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping checkpoint database: %w", err)
	}

	if err := configurePragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure checkpoint database: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare checkpoint statements: %w", err)
	}

	log.Printf("[DEBUG] checkpoint store initialized at %s", dbPath)
	return s, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func initializeSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			session_id TEXT NOT NULL,
			step_id    TEXT NOT NULL,
			sequence   INTEGER NOT NULL,
			state      BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_id, step_id)
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, sequence DESC);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_expires ON checkpoints(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.stmtUpsert, err = s.db.Prepare(`
		INSERT INTO checkpoints (session_id, step_id, sequence, state, created_at, expires_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM checkpoints WHERE session_id = ?), ?, ?, ?)
		ON CONFLICT(session_id, step_id) DO UPDATE SET
			sequence = excluded.sequence,
			state = excluded.state,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}

	s.stmtGet, err = s.db.Prepare(`
		SELECT sequence, state, created_at, expires_at
		FROM checkpoints WHERE session_id = ? AND step_id = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}

	s.stmtLatest, err = s.db.Prepare(`
		SELECT step_id, sequence, state, created_at, expires_at
		FROM checkpoints WHERE session_id = ? AND expires_at > ?
		ORDER BY sequence DESC LIMIT 1
	`)
	if err != nil {
		return fmt.Errorf("prepare latest: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID, stepID string, state []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.stmtUpsert.ExecContext(ctx, sessionID, stepID, sessionID, state, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("put checkpoint %s/%s: %w", sessionID, stepID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID, stepID string) (*Record, bool, error) {
	var seq int64
	var state []byte
	var createdAt, expiresAt time.Time

	err := s.stmtGet.QueryRowContext(ctx, sessionID, stepID).Scan(&seq, &state, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get checkpoint %s/%s: %w", sessionID, stepID, err)
	}
	if time.Now().After(expiresAt) {
		return nil, false, nil
	}
	return &Record{
		Key:       Key{SessionID: sessionID, StepID: stepID},
		State:     state,
		Sequence:  seq,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, true, nil
}

func (s *SQLiteStore) Latest(ctx context.Context, sessionID string) (*Record, bool, error) {
	var stepID string
	var seq int64
	var state []byte
	var createdAt, expiresAt time.Time

	err := s.stmtLatest.QueryRowContext(ctx, sessionID, time.Now()).Scan(&stepID, &seq, &state, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("latest checkpoint for %s: %w", sessionID, err)
	}
	return &Record{
		Key:       Key{SessionID: sessionID, StepID: stepID},
		State:     state,
		Sequence:  seq,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete checkpoints for %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged checkpoints: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
