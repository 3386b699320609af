// Package service implements the custody operations over the lock registry
// and the treasury collaborator.
//
// Two disciplines hold for every operation:
//
//   - Each state-changing operation runs as one indivisible unit under the
//     service mutex; no interleaving of two operations' effects is ever
//     observable.
//   - Effects before interaction: the ledger is mutated to its
//     post-operation shape before the treasury is invoked. A failed
//     treasury call is compensated by restoring the exact prior ledger
//     state, so ledger mutation and value movement commit or roll back as
//     one unit.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vestry/internal/vault/metrics"
	"vestry/internal/vault/models"
	"vestry/internal/vault/ports"
	"vestry/internal/vault/store/ledger"
	"vestry/pkg/domain"
	dErrors "vestry/pkg/domain-errors"
	"vestry/pkg/platform/audit"
)

// Operation errors. TransferFailed wraps the treasury's sentinel error so
// logs keep the underlying cause.
var (
	ErrInvalidAmount       = dErrors.New(dErrors.CodeInvalidInput, "invalid amount")
	ErrInvalidLockPeriod   = dErrors.New(dErrors.CodeInvalidInput, "invalid lock period")
	ErrLockNotFound        = dErrors.New(dErrors.CodeNotFound, "lock not found")
	ErrInsufficientBalance = dErrors.New(dErrors.CodeConflict, "insufficient unencumbered balance")
)

// Service is the lock service. It owns the registry, the lock id counter,
// and the custody account the treasury debits and credits.
type Service struct {
	mu sync.Mutex

	registry *ledger.Registry
	treasury ports.Treasury
	custody  domain.AccountID

	// nextID is the global lock id counter. Ids start at 1 and are never
	// reused, even after a lock is removed.
	nextID domain.LockID

	logger    *slog.Logger
	now       func() time.Time
	publisher ports.AuditPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source. Tests use this to sit exactly on
// either side of a maturity boundary.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// New builds the lock service. The registry, the treasury and a non-nil
// custody account are required; everything else is optional.
func New(registry *ledger.Registry, treasury ports.Treasury, custody domain.AccountID, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "lock registry is required")
	}
	if treasury == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid collateral source: treasury is required")
	}
	if custody.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid collateral source: custody account is required")
	}

	svc := &Service{
		registry: registry,
		treasury: treasury,
		custody:  custody,
		nextID:   1,
		now:      time.Now,
		tracer:   otel.Tracer("vestry/vault"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateLock commits amount from owner behind a maturation time of
// now+duration and returns the new lock. The lock id is consumed even when
// the pull fails; ids are never reissued.
func (s *Service) CreateLock(ctx context.Context, owner domain.AccountID, amount uint64, duration time.Duration) (models.Lock, error) {
	ctx, span := s.tracer.Start(ctx, "vault.CreateLock")
	defer span.End()

	if amount == 0 {
		return models.Lock{}, ErrInvalidAmount
	}
	if duration <= 0 {
		return models.Lock{}, ErrInvalidLockPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock := models.Lock{
		ID:         s.nextID,
		Amount:     amount,
		UnlockTime: s.now().Add(duration),
	}
	s.nextID++

	s.registry.Insert(owner, lock)

	if err := s.treasury.PullIn(ctx, owner, s.custody, amount); err != nil {
		// Roll back the insert; the operation must leave no trace.
		if pos, ferr := s.registry.Find(owner, lock.ID); ferr == nil {
			_, _ = s.registry.Remove(owner, pos)
		}
		return models.Lock{}, s.transferFailed(ctx, err, "pull into custody failed",
			"owner", owner, "lock_id", lock.ID, "amount", amount)
	}

	if s.metrics != nil {
		s.metrics.IncrementLocksCreated()
		s.metrics.IncrementOpenLocks()
		s.metrics.AddValueLocked(amount)
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Account:    owner,
		LockID:     lock.ID,
		Action:     audit.EventLockCreated.String(),
		Amount:     amount,
		Remaining:  amount,
		UnlockTime: lock.UnlockTime,
	}, "owner", owner, "lock_id", lock.ID, "amount", amount, "unlock_time", lock.UnlockTime)

	return lock, nil
}

// ReleaseLock removes a matured lock and pushes its full amount back to the
// owner. Returns the released amount.
func (s *Service) ReleaseLock(ctx context.Context, owner domain.AccountID, id domain.LockID) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.ReleaseLock")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.release(ctx, owner, id, true)
}

// EmergencyRelease is ReleaseLock without the maturity gate: it succeeds on
// any existing lock regardless of its unlock time.
func (s *Service) EmergencyRelease(ctx context.Context, owner domain.AccountID, id domain.LockID) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.EmergencyRelease")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.release(ctx, owner, id, false)
}

func (s *Service) release(ctx context.Context, owner domain.AccountID, id domain.LockID, gated bool) (uint64, error) {
	pos, err := s.registry.Find(owner, id)
	if err != nil {
		return 0, ErrLockNotFound
	}
	lock, err := s.registry.Get(owner, pos)
	if err != nil {
		return 0, ErrLockNotFound
	}
	if gated && !lock.Matured(s.now()) {
		return 0, dErrors.Wrap(&models.StillLockedError{UnlockTime: lock.UnlockTime},
			dErrors.CodeLocked, "tokens still locked")
	}

	removed, err := s.registry.Remove(owner, pos)
	if err != nil {
		return 0, ErrLockNotFound
	}

	if err := s.treasury.PushOut(ctx, owner, removed.Amount); err != nil {
		// Put the lock back exactly as it was; removal and payout are one
		// commit, not two.
		s.registry.Insert(owner, removed)
		return 0, s.transferFailed(ctx, err, "release payout failed",
			"owner", owner, "lock_id", id, "amount", removed.Amount)
	}

	action := audit.EventLockReleased
	if s.metrics != nil {
		if gated {
			s.metrics.IncrementLocksReleased()
		} else {
			s.metrics.IncrementEmergencyReleases()
		}
		s.metrics.DecrementOpenLocks()
		s.metrics.SubValueLocked(removed.Amount)
	}
	if !gated {
		action = audit.EventEmergencyReleased
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Account: owner,
		LockID:  id,
		Action:  action.String(),
		Amount:  removed.Amount,
	}, "owner", owner, "lock_id", id, "amount", removed.Amount)

	return removed.Amount, nil
}

// PartialRelease pushes amount of a matured lock back to the owner,
// shrinking the lock in place. When the remainder hits exactly zero the
// lock is removed like a full release. Maturity is never changed. Returns
// the remaining amount.
func (s *Service) PartialRelease(ctx context.Context, owner domain.AccountID, id domain.LockID, amount uint64) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.PartialRelease")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.registry.Find(owner, id)
	if err != nil {
		return 0, ErrLockNotFound
	}
	lock, err := s.registry.Get(owner, pos)
	if err != nil {
		return 0, ErrLockNotFound
	}
	if !lock.Matured(s.now()) {
		return 0, dErrors.Wrap(&models.StillLockedError{UnlockTime: lock.UnlockTime},
			dErrors.CodeLocked, "tokens still locked")
	}
	if amount == 0 || amount > lock.Amount {
		return 0, ErrInvalidAmount
	}

	remaining := lock.Amount - amount

	if remaining == 0 {
		removed, err := s.registry.Remove(owner, pos)
		if err != nil {
			return 0, ErrLockNotFound
		}
		if err := s.treasury.PushOut(ctx, owner, amount); err != nil {
			s.registry.Insert(owner, removed)
			return 0, s.transferFailed(ctx, err, "partial release payout failed",
				"owner", owner, "lock_id", id, "amount", amount)
		}
		if s.metrics != nil {
			s.metrics.IncrementPartialReleases()
			s.metrics.DecrementOpenLocks()
			s.metrics.SubValueLocked(amount)
		}
	} else {
		updated := lock
		updated.Amount = remaining
		if err := s.registry.Update(owner, pos, updated); err != nil {
			return 0, ErrLockNotFound
		}
		if err := s.treasury.PushOut(ctx, owner, amount); err != nil {
			// Restore the original amount; decrement and payout are one
			// commit.
			_ = s.registry.Update(owner, pos, lock)
			return 0, s.transferFailed(ctx, err, "partial release payout failed",
				"owner", owner, "lock_id", id, "amount", amount)
		}
		if s.metrics != nil {
			s.metrics.IncrementPartialReleases()
			s.metrics.SubValueLocked(amount)
		}
	}

	event := audit.Event{
		Account:   owner,
		LockID:    id,
		Action:    audit.EventLockPartiallyReleased.String(),
		Amount:    amount,
		Remaining: remaining,
	}
	if remaining > 0 {
		event.UnlockTime = lock.UnlockTime
	}
	ports.LogAudit(ctx, s.logger, s.publisher, event,
		"owner", owner, "lock_id", id, "amount", amount, "remaining", remaining)

	return remaining, nil
}

// ExtendLock pushes a lock's maturity further out by additional. Allowed
// both before and after the original maturity; the unlock time strictly
// increases and never shortens.
func (s *Service) ExtendLock(ctx context.Context, owner domain.AccountID, id domain.LockID, additional time.Duration) (time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "vault.ExtendLock")
	defer span.End()

	if additional <= 0 {
		return time.Time{}, ErrInvalidLockPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.registry.Find(owner, id)
	if err != nil {
		return time.Time{}, ErrLockNotFound
	}
	lock, err := s.registry.Get(owner, pos)
	if err != nil {
		return time.Time{}, ErrLockNotFound
	}

	lock.UnlockTime = lock.UnlockTime.Add(additional)
	if err := s.registry.Update(owner, pos, lock); err != nil {
		return time.Time{}, ErrLockNotFound
	}

	if s.metrics != nil {
		s.metrics.IncrementLocksExtended()
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Account:    owner,
		LockID:     id,
		Action:     audit.EventLockExtended.String(),
		Remaining:  lock.Amount,
		UnlockTime: lock.UnlockTime,
	}, "owner", owner, "lock_id", id, "unlock_time", lock.UnlockTime)

	return lock.UnlockTime, nil
}

// ListLocks returns a copy of owner's open locks.
func (s *Service) ListLocks(ctx context.Context, owner domain.AccountID) []models.Lock {
	_, span := s.tracer.Start(ctx, "vault.ListLocks")
	defer span.End()

	return s.registry.List(owner)
}

// TotalLocked returns the sum committed across owner's open locks.
func (s *Service) TotalLocked(owner domain.AccountID) uint64 {
	return s.registry.TotalAmount(owner)
}

// RecoverExcess pushes amount of unencumbered custody balance to the
// caller. The encumbered figure is scoped to the caller's own ledger, not
// summed across owners; see DESIGN.md for why this is preserved as
// specified and why the operation sits behind the admin gate.
func (s *Service) RecoverExcess(ctx context.Context, caller domain.AccountID, amount uint64) error {
	ctx, span := s.tracer.Start(ctx, "vault.RecoverExcess")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.treasury.BalanceOf(ctx, s.custody)
	if err != nil {
		return s.transferFailed(ctx, err, "custody balance query failed", "caller", caller)
	}
	locked := s.registry.TotalAmount(caller)
	if balance < locked || balance-locked < amount {
		return ErrInsufficientBalance
	}

	if err := s.treasury.PushOut(ctx, caller, amount); err != nil {
		return s.transferFailed(ctx, err, "excess recovery payout failed",
			"caller", caller, "amount", amount)
	}

	if s.metrics != nil {
		s.metrics.IncrementExcessRecoveries()
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Account: caller,
		Action:  audit.EventExcessRecovered.String(),
		Amount:  amount,
	}, "caller", caller, "amount", amount)

	return nil
}

func (s *Service) transferFailed(ctx context.Context, err error, msg string, attrs ...any) error {
	if s.metrics != nil {
		s.metrics.IncrementTransferFailures()
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, append(attrs, "error", err)...)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "transfer failed")
}
