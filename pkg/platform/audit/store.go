package audit

import (
	"context"

	"vestry/pkg/domain"
)

// Store persists audit events. Implementations: in-memory (tests, dev) and
// the postgres transactional outbox (production; the relay drains it to
// Kafka).
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account domain.AccountID) ([]Event, error)
}
