// Package postgres implements audit.Store using the transactional outbox
// pattern. Events are written to the outbox table and published to Kafka by
// the relay; Kafka is the long-term source of truth for the audit trail.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
	txcontext "vestry/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the outbox table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_outbox (
			id           UUID PRIMARY KEY,
			account_id   UUID NOT NULL,
			category     TEXT NOT NULL,
			payload      JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit_outbox schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx
		ON audit_outbox (created_at) WHERE published_at IS NULL`)
	if err != nil {
		return fmt.Errorf("ensure audit_outbox index: %w", err)
	}
	return nil
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for deserialization by downstream consumers.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	Account    string `json:"Account"`
	LockID     uint64 `json:"LockID,omitempty"`
	Action     string `json:"Action"`
	Amount     uint64 `json:"Amount,omitempty"`
	Remaining  uint64 `json:"Remaining,omitempty"`
	UnlockTime string `json:"UnlockTime,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
	Device     string `json:"Device,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
// It participates in a caller transaction when one is present in ctx, so
// the event commits together with the state change that produced it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Category is always derived from the action; the map in audit is the
	// source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Account:   event.Account.String(),
		LockID:    uint64(event.LockID),
		Action:    event.Action,
		Amount:    event.Amount,
		Remaining: event.Remaining,
		RequestID: event.RequestID,
		Device:    event.Device,
	}
	if !event.UnlockTime.IsZero() {
		payload.UnlockTime = event.UnlockTime.Format(time.RFC3339Nano)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_outbox (id, account_id, category, payload)
		VALUES ($1, $2, $3, $4)`,
		eventID, uuid.UUID(event.Account), string(category), raw)
	if err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}

// ListByAccount reads the account's events back from the outbox. Intended
// for admin inspection; downstream systems consume from Kafka instead.
func (s *Store) ListByAccount(ctx context.Context, account domain.AccountID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE account_id = $1 ORDER BY created_at`,
		uuid.UUID(account))
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit outbox row: %w", err)
		}
		event, err := decodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func decodePayload(raw []byte) (audit.Event, error) {
	var p outboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("decode audit payload: %w", err)
	}

	event := audit.Event{
		Category:  audit.EventCategory(p.Category),
		Account:   domain.NilAccountID,
		LockID:    domain.LockID(p.LockID),
		Action:    p.Action,
		Amount:    p.Amount,
		Remaining: p.Remaining,
		RequestID: p.RequestID,
		Device:    p.Device,
	}
	if u, err := uuid.Parse(p.Account); err == nil {
		event.Account = domain.AccountID(u)
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		event.Timestamp = ts
	}
	if p.UnlockTime != "" {
		if ut, err := time.Parse(time.RFC3339Nano, p.UnlockTime); err == nil {
			event.UnlockTime = ut
		}
	}
	return event, nil
}
