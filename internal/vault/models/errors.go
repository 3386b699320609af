package models

import (
	"fmt"
	"time"
)

// StillLockedError rejects a release attempted before maturity. It carries
// the unlock time so transport can tell the caller when to retry.
type StillLockedError struct {
	UnlockTime time.Time
}

func (e *StillLockedError) Error() string {
	return fmt.Sprintf("tokens still locked until %s", e.UnlockTime.Format(time.RFC3339))
}
