//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
	"vestry/pkg/platform/audit/relay"
	"vestry/pkg/platform/audit/store/postgres"
	"vestry/pkg/testutil/containers"
)

func TestRelayPublishesOutboxToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg := containers.NewPostgresContainer(t)
	rp := containers.NewRedpandaContainer(t)

	store := postgres.New(pg.DB)
	require.NoError(t, store.EnsureSchema(ctx))

	account := domain.AccountID(uuid.New())
	actions := []audit.AuditEvent{
		audit.EventLockCreated,
		audit.EventLockPartiallyReleased,
		audit.EventLockReleased,
	}
	for i, action := range actions {
		require.NoError(t, store.Append(ctx, audit.Event{
			Timestamp: time.Now().UTC(),
			Account:   account,
			LockID:    domain.LockID(1),
			Action:    action.String(),
			Amount:    uint64(100 * (i + 1)),
		}))
	}

	const topic = "vestry.audit.test"
	producer := rp.NewClient(t, kgo.DefaultProduceTopic(topic))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := relay.New(pg.DB, producer, topic,
		relay.WithInterval(100*time.Millisecond),
		relay.WithBatchSize(10),
		relay.WithLogger(logger),
	)
	require.NoError(t, r.EnsureTopic(ctx))

	relayCtx, stopRelay := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(relayCtx)
	}()

	consumer := rp.NewClient(t,
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < len(actions) && time.Now().Before(deadline) {
		pollCtx, pollCancel := context.WithTimeout(ctx, 2*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		pollCancel()
		fetches.EachRecord(func(rec *kgo.Record) {
			records = append(records, rec)
		})
	}
	require.Len(t, records, len(actions))

	// Ordered per account: records are keyed by the account id.
	for i, rec := range records {
		require.Equal(t, account.String(), string(rec.Key))

		var payload map[string]any
		require.NoError(t, json.Unmarshal(rec.Value, &payload))
		require.Equal(t, actions[i].String(), payload["Action"])
		require.Equal(t, account.String(), payload["Account"])
	}

	// Every row ends up marked published, exactly once.
	require.Eventually(t, func() bool {
		var unpublished int
		err := pg.DB.QueryRowContext(ctx,
			`SELECT count(*) FROM audit_outbox WHERE published_at IS NULL`).Scan(&unpublished)
		return err == nil && unpublished == 0
	}, 10*time.Second, 200*time.Millisecond)

	stopRelay()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}
