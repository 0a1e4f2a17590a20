package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/domain"
)

// PostgresStore persists screening logs in PostgreSQL for shared
// deployments. The schema is managed by the migration runner; the full log
// lands in a JSONB column next to the lookup columns.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a store over an established connection pool.
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger}
}

// Create inserts a new screening log.
func (s *PostgresStore) Create(ctx context.Context, log *domain.ScreeningLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling screening log: %w", err)
	}

	query := `
		INSERT INTO screening_logs (query_id, query, started_at, payload)
		VALUES ($1, $2, $3, $4)`

	_, err = s.db.Exec(ctx, query, log.QueryID, log.Query, log.StartedAt, payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"query_id": log.QueryID,
			"error":    err,
		}).Error("Failed to create screening log")
		return fmt.Errorf("creating screening log: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"query_id": log.QueryID,
		"included": len(log.Included),
		"excluded": len(log.Excluded),
	}).Info("Screening log created")
	return nil
}

// Update overwrites an existing screening log.
func (s *PostgresStore) Update(ctx context.Context, log *domain.ScreeningLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling screening log: %w", err)
	}

	query := `
		UPDATE screening_logs
		SET query = $2, started_at = $3, payload = $4
		WHERE query_id = $1`

	tag, err := s.db.Exec(ctx, query, log.QueryID, log.Query, log.StartedAt, payload)
	if err != nil {
		return fmt.Errorf("updating screening log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

// Get retrieves a screening log by query id.
func (s *PostgresStore) Get(ctx context.Context, queryID string) (*domain.ScreeningLog, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM screening_logs WHERE query_id = $1`, queryID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLogNotFound
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"query_id": queryID,
			"error":    err,
		}).Error("Failed to get screening log")
		return nil, fmt.Errorf("getting screening log: %w", err)
	}
	return unmarshalLog(string(payload))
}

// List returns screening logs ordered by start time descending.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.ScreeningLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT payload FROM screening_logs ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing screening logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ScreeningLog
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning screening log row: %w", err)
		}
		log, err := unmarshalLog(string(payload))
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
func (s *PostgresStore) Delete(ctx context.Context, queryID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM screening_logs WHERE query_id = $1`, queryID,
	)
	if err != nil {
		return fmt.Errorf("deleting screening log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

// PruneBefore deletes logs started before the cutoff and returns how many
// were removed.
func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM screening_logs WHERE started_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning screening logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
