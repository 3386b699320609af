// Package publisher fans audit events out to a store, either inline or
// through a bounded async buffer.
package publisher

import (
	"context"
	"sync"
	"time"

	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
)

// Publisher emits audit events to a store. In sync mode (the default) Emit
// appends inline. With an async buffer Emit only enqueues; a background
// goroutine appends, and Close drains whatever is queued. When the buffer
// is full the event is dropped rather than blocking the caller: custody
// operations must not stall on telemetry.
type Publisher struct {
	store audit.Store

	inbox chan audit.Event
	wg    sync.WaitGroup

	// mu guards closed so an Emit racing Close never sends on the closed
	// inbox. Emits after Close are dropped like a full buffer.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Detached from the emitting request on purpose: the request may
		// be long gone by the time the event is persisted.
		_ = p.store.Append(context.Background(), event)
	}
}

// Emit records an event. Events carry the emission time if the caller left
// Timestamp zero.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}

	select {
	case p.inbox <- event:
	default:
		// Buffer full: drop. The store is best-effort in async mode.
	}
	return nil
}

// List returns the stored events for an account.
func (p *Publisher) List(ctx context.Context, account domain.AccountID) ([]audit.Event, error) {
	return p.store.ListByAccount(ctx, account)
}

// Close stops the async worker after draining queued events. Safe to call
// multiple times and in sync mode.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			p.mu.Lock()
			p.closed = true
			close(p.inbox)
			p.mu.Unlock()
			p.wg.Wait()
		}
	})
}
