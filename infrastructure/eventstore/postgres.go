// Package eventstore persists domain events in PostgreSQL.
//
// The event_store table is the source of truth for every aggregate. Writers
// use optimistic concurrency: an append carries the version the writer
// expects to produce, and the primary key on (aggregate_id, version) rejects
// the insert when another writer got there first.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrConcurrencyConflict is returned when an append collides with a
// concurrent writer on the same aggregate version.
var ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version already written")

// Event is a stored event record.
type Event struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Store is a PostgreSQL-backed event store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event at expected_version+1 inside the caller's
// transaction, so the event and the caller's read model update commit as a
// unit. Returns the new version, or ErrConcurrencyConflict when the
// (aggregate_id, version) slot is already taken.
func (s *Store) Append(
	ctx context.Context,
	tx *sql.Tx,
	aggregateID, aggregateType, eventType string,
	payload any,
	expectedVersion int,
) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	newVersion := expectedVersion + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_store
			(aggregate_id, aggregate_type, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		aggregateID, aggregateType, eventType, data, newVersion, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("append %s at version %d: %w", eventType, newVersion, ErrConcurrencyConflict)
		}
		return 0, fmt.Errorf("append %s: %w", eventType, err)
	}

	return newVersion, nil
}

// Load returns all events of one aggregate in version order. An aggregate
// with no events yields an empty slice, not an error.
func (s *Store) Load(ctx context.Context, aggregateID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aggregate_id, aggregate_type, event_type, event_data, version, created_at
		FROM event_store
		WHERE aggregate_id = $1
		ORDER BY version ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LoadAll returns every event ordered by (created_at, version). Used by the
// event inspection endpoints only; aggregates are never rebuilt from it.
func (s *Store) LoadAll(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aggregate_id, aggregate_type, event_type, event_data, version, created_at
		FROM event_store
		ORDER BY created_at ASC, version ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CurrentVersion returns the latest version of an aggregate, 0 when the
// aggregate has no events yet.
func (s *Store) CurrentVersion(ctx context.Context, aggregateID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM event_store
		WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("current version of %s: %w", aggregateID, err)
	}
	return version, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.AggregateID, &e.AggregateType, &e.EventType,
			&e.EventData, &e.Version, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505), the signal for a lost optimistic-lock race.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
