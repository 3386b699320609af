package audit

import (
	"time"

	"vestry/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events where custodied value actually moved.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility
	// that move no value (extensions, listings).
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Account   domain.AccountID
	LockID    domain.LockID
	Action    string

	// Amount is the value moved by the operation; Remaining is the lock's
	// amount after it. UnlockTime is the lock's maturity after the
	// operation (zero when the lock no longer exists).
	Amount     uint64
	Remaining  uint64
	UnlockTime time.Time

	// RequestID correlates the event with the HTTP request; Device is the
	// caller's user-agent summary when available.
	RequestID string
	Device    string
}

type AuditEvent string

const (
	EventLockCreated           AuditEvent = "lock_created"
	EventLockReleased          AuditEvent = "lock_released"
	EventLockPartiallyReleased AuditEvent = "lock_partially_released"
	EventLockExtended          AuditEvent = "lock_extended"
	EventEmergencyReleased     AuditEvent = "lock_emergency_released"
	EventExcessRecovered       AuditEvent = "excess_recovered"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLockCreated:           CategoryCompliance,
	EventLockReleased:          CategoryCompliance,
	EventLockPartiallyReleased: CategoryCompliance,
	EventEmergencyReleased:     CategoryCompliance,
	EventExcessRecovered:       CategoryCompliance,
	EventLockExtended:          CategoryOperations,
}

// Category returns the category for the event, defaulting to operations
// for actions the map does not know.
func (a AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

func (a AuditEvent) String() string { return string(a) }
