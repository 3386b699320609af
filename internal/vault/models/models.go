package models

import (
	"time"

	"vestry/pkg/domain"
)

// Lock is one record of value committed by an owner, maturing at an
// absolute time. Amount is strictly positive for as long as the lock
// exists; UnlockTime only ever moves forward.
type Lock struct {
	ID         domain.LockID
	Amount     uint64
	UnlockTime time.Time
}

// Matured reports whether the lock may be released at the given time.
func (l Lock) Matured(now time.Time) bool {
	return !now.Before(l.UnlockTime)
}
