// Package ports defines the vault module's seams to external collaborators.
package ports

import (
	"context"
	"log/slog"

	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
	"vestry/pkg/platform/middleware/device"
	request "vestry/pkg/platform/middleware/request"
)

//go:generate mockgen -destination=../../../mocks/treasury/mock_treasury.go -package=treasurymocks vestry/internal/vault/ports Treasury

// Treasury is the external value-transfer collaborator. vestry never holds
// value itself; it instructs the treasury to move value in and out of the
// vault account and trusts the ledger for what is committed.
//
// Implementations report factual failures as sentinel errors
// (sentinel.ErrInsufficientFunds, sentinel.ErrUnavailable); the service
// translates those into domain errors.
type Treasury interface {
	// PullIn moves amount from an owner's account into custody.
	PullIn(ctx context.Context, from, to domain.AccountID, amount uint64) error

	// PushOut moves amount from custody to an account.
	PushOut(ctx context.Context, to domain.AccountID, amount uint64) error

	// BalanceOf reports the current balance of an account.
	BalanceOf(ctx context.Context, account domain.AccountID) (uint64, error)
}

// AuditPublisher emits audit events for state-changing operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs an audit event to the structured logger and forwards it to
// the audit publisher if one is configured.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if requestID := request.GetRequestID(ctx); requestID != "" {
		event.RequestID = requestID
		attrs = append(attrs, "request_id", requestID)
	}
	if d := device.Get(ctx); d != "" {
		event.Device = d
	}

	args := append(attrs, "event", event.Action, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
