package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "vestry/pkg/domain-errors"
)

// AccountID identifies an owner of locked value. Typed to prevent
// cross-assignment with other identifier kinds at compile time.
type AccountID uuid.UUID

// NilAccountID is the zero account, never valid as an owner.
var NilAccountID = AccountID(uuid.Nil)

// ParseAccountID validates an account identifier at a trust boundary.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseAccountID(s string) (AccountID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilAccountID, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account id")
	}
	if u == uuid.Nil {
		return NilAccountID, dErrors.New(dErrors.CodeInvalidInput, "account id must not be nil")
	}
	return AccountID(u), nil
}

func (a AccountID) String() string { return uuid.UUID(a).String() }

func (a AccountID) IsNil() bool { return uuid.UUID(a) == uuid.Nil }

// LockID identifies a single lock. Assigned from one monotonically
// increasing counter starting at 1 and never reused, so ids are globally
// unique across accounts for the lifetime of the service.
type LockID uint64

// ParseLockID parses a lock identifier from its decimal form.
func ParseLockID(s string) (LockID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid lock id")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "lock id must be positive")
	}
	return LockID(n), nil
}

func (l LockID) String() string { return strconv.FormatUint(uint64(l), 10) }
