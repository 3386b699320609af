package models

// CreateLockRequest is the body of POST /vault/locks.
type CreateLockRequest struct {
	Amount          uint64 `json:"amount"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// PartialReleaseRequest is the body of POST /vault/locks/{id}/release-partial.
type PartialReleaseRequest struct {
	Amount uint64 `json:"amount"`
}

// ExtendLockRequest is the body of POST /vault/locks/{id}/extend.
type ExtendLockRequest struct {
	AdditionalSeconds int64 `json:"additional_seconds"`
}

// RecoverExcessRequest is the body of POST /admin/vault/recover-excess.
type RecoverExcessRequest struct {
	Amount uint64 `json:"amount"`
}
