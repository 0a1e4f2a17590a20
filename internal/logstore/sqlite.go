package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/evidence-triage-server/internal/domain"
)

// SQLiteStore persists screening logs in a local SQLite database. The full
// log is stored as a JSON document alongside the columns needed for lookup
// and ordering, so schema changes track the domain type without migrations.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS screening_logs (
	query_id   TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screening_logs_started_at ON screening_logs (started_at DESC);
`

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Single writer; WAL keeps readers unblocked during pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating screening_logs schema: %w", err)
	}

	logger.WithField("path", path).Info("SQLite screening log store opened")
	return &SQLiteStore{db: db, log: logger}, nil
}

// newSQLiteStoreWithDB wraps an existing handle; used by tests.
func newSQLiteStoreWithDB(db *sql.DB, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, log: logger}
}

// Create inserts a new screening log.
func (s *SQLiteStore) Create(ctx context.Context, log *domain.ScreeningLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling screening log: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO screening_logs (query_id, query, started_at, payload) VALUES (?, ?, ?, ?)`,
		log.QueryID, log.Query, log.StartedAt, string(payload),
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"query_id": log.QueryID,
			"error":    err,
		}).Error("Failed to create screening log")
		return fmt.Errorf("creating screening log: %w", err)
	}
	return nil
}

// Update overwrites an existing screening log.
func (s *SQLiteStore) Update(ctx context.Context, log *domain.ScreeningLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling screening log: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE screening_logs SET query = ?, started_at = ?, payload = ? WHERE query_id = ?`,
		log.Query, log.StartedAt, string(payload), log.QueryID,
	)
	if err != nil {
		return fmt.Errorf("updating screening log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

// Get retrieves a screening log by query id.
func (s *SQLiteStore) Get(ctx context.Context, queryID string) (*domain.ScreeningLog, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM screening_logs WHERE query_id = ?`, queryID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting screening log: %w", err)
	}
	return unmarshalLog(payload)
}

// List returns screening logs ordered by start time descending.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.ScreeningLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM screening_logs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing screening logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ScreeningLog
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning screening log row: %w", err)
		}
		log, err := unmarshalLog(payload)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating screening log rows: %w", err)
	}
	return logs, nil
}

// Delete removes a screening log by query id.
func (s *SQLiteStore) Delete(ctx context.Context, queryID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM screening_logs WHERE query_id = ?`, queryID,
	)
	if err != nil {
		return fmt.Errorf("deleting screening log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

// PruneBefore deletes logs started before the cutoff and returns how many
// were removed. Intended for operator-driven retention, not the hot path.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM screening_logs WHERE started_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning screening logs: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unmarshalLog(payload string) (*domain.ScreeningLog, error) {
	var log domain.ScreeningLog
	if err := json.Unmarshal([]byte(payload), &log); err != nil {
		return nil, fmt.Errorf("unmarshaling screening log: %w", err)
	}
	return &log, nil
}
