package models

import "time"

// LockResponse is the wire form of a single lock.
type LockResponse struct {
	LockID     uint64 `json:"lock_id"`
	Amount     uint64 `json:"amount"`
	UnlockTime string `json:"unlock_time"`
}

// NewLockResponse converts a Lock for transport.
func NewLockResponse(l Lock) LockResponse {
	return LockResponse{
		LockID:     uint64(l.ID),
		Amount:     l.Amount,
		UnlockTime: l.UnlockTime.UTC().Format(time.RFC3339),
	}
}

// ListLocksResponse is the body of GET /vault/locks.
type ListLocksResponse struct {
	Locks       []LockResponse `json:"locks"`
	TotalLocked uint64         `json:"total_locked"`
}

// ReleaseResponse is the body of a full or emergency release.
type ReleaseResponse struct {
	LockID   uint64 `json:"lock_id"`
	Released uint64 `json:"released"`
}

// PartialReleaseResponse is the body of a partial release.
type PartialReleaseResponse struct {
	LockID    uint64 `json:"lock_id"`
	Released  uint64 `json:"released"`
	Remaining uint64 `json:"remaining"`
}

// ExtendLockResponse is the body of an extension.
type ExtendLockResponse struct {
	LockID     uint64 `json:"lock_id"`
	UnlockTime string `json:"unlock_time"`
}
