// Package ledger keeps the per-account lock registry: a dense sequence of
// lock records plus a sparse id index, supporting O(1) insert, lookup and
// removal. The registry is the source of truth for what is locked; value
// itself lives with the treasury collaborator.
package ledger

import (
	"sync"

	"vestry/internal/vault/models"
	"vestry/pkg/domain"
	"vestry/pkg/platform/sentinel"
)

// accountLedger holds one owner's locks. locks is positional storage for a
// set, not a queue: insertion order carries no meaning. posOf maps a lock id
// to its current position in locks.
type accountLedger struct {
	locks []models.Lock
	posOf map[domain.LockID]int
}

// Registry is the keyed store of account ledgers, owned by the service
// instance. It guards itself so read-only callers (list, totals) can run
// against a consistent snapshot.
type Registry struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]*accountLedger
}

func NewRegistry() *Registry {
	return &Registry{accounts: make(map[domain.AccountID]*accountLedger)}
}

func (r *Registry) ledgerFor(owner domain.AccountID) *accountLedger {
	al := r.accounts[owner]
	if al == nil {
		al = &accountLedger{posOf: make(map[domain.LockID]int)}
		r.accounts[owner] = al
	}
	return al
}

// Insert appends lock to owner's sequence and indexes it. The caller
// guarantees the id is not already present (ids come from a global
// monotonic counter and are never reused).
func (r *Registry) Insert(owner domain.AccountID, lock models.Lock) {
	r.mu.Lock()
	defer r.mu.Unlock()

	al := r.ledgerFor(owner)
	al.locks = append(al.locks, lock)
	al.posOf[lock.ID] = len(al.locks) - 1
}

// Find resolves a lock id to its current position. A missing index entry,
// an out-of-bounds position, or an id mismatch at that position all mean
// the lock does not exist; the identity re-check is the guard against a
// stale index entry being misread as valid.
func (r *Registry) Find(owner domain.AccountID, id domain.LockID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	al := r.accounts[owner]
	if al == nil {
		return 0, sentinel.ErrNotFound
	}
	pos, ok := al.posOf[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if pos < 0 || pos >= len(al.locks) {
		return 0, sentinel.ErrNotFound
	}
	if al.locks[pos].ID != id {
		return 0, sentinel.ErrNotFound
	}
	return pos, nil
}

// Get returns a copy of the lock at pos.
func (r *Registry) Get(owner domain.AccountID, pos int) (models.Lock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	al := r.accounts[owner]
	if al == nil || pos < 0 || pos >= len(al.locks) {
		return models.Lock{}, sentinel.ErrNotFound
	}
	return al.locks[pos], nil
}

// Update overwrites the lock at pos in place. The id must not change; a
// lock's identity is fixed for its lifetime.
func (r *Registry) Update(owner domain.AccountID, pos int, lock models.Lock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	al := r.accounts[owner]
	if al == nil || pos < 0 || pos >= len(al.locks) {
		return sentinel.ErrNotFound
	}
	if al.locks[pos].ID != lock.ID {
		return sentinel.ErrInvalidState
	}
	al.locks[pos] = lock
	return nil
}

// Remove deletes the lock at pos by swap-remove and returns it. Ordering is
// load-bearing: move the last element into pos and repoint its index entry,
// shrink the sequence, then delete the index entry for the removed id — the
// removed id's entry, never the moved element's. When pos is already last
// the swap is skipped but the removed id's index entry must still go.
func (r *Registry) Remove(owner domain.AccountID, pos int) (models.Lock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	al := r.accounts[owner]
	if al == nil || pos < 0 || pos >= len(al.locks) {
		return models.Lock{}, sentinel.ErrNotFound
	}

	removed := al.locks[pos]
	last := len(al.locks) - 1
	if pos != last {
		moved := al.locks[last]
		al.locks[pos] = moved
		al.posOf[moved.ID] = pos
	}
	al.locks = al.locks[:last]
	delete(al.posOf, removed.ID)
	return removed, nil
}

// List returns a copy of owner's locks.
func (r *Registry) List(owner domain.AccountID) []models.Lock {
	r.mu.RLock()
	defer r.mu.RUnlock()

	al := r.accounts[owner]
	if al == nil {
		return nil
	}
	out := make([]models.Lock, len(al.locks))
	copy(out, al.locks)
	return out
}

// TotalAmount sums owner's currently locked value. Linear in the number of
// the account's open locks.
func (r *Registry) TotalAmount(owner domain.AccountID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	al := r.accounts[owner]
	if al == nil {
		return 0
	}
	var total uint64
	for _, l := range al.locks {
		total += l.Amount
	}
	return total
}

// Count returns the number of owner's open locks.
func (r *Registry) Count(owner domain.AccountID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	al := r.accounts[owner]
	if al == nil {
		return 0
	}
	return len(al.locks)
}
