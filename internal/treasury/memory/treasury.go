// Package memory provides an in-process treasury backend. It is the default
// for development and the real-component backend for handler tests.
package memory

import (
	"context"
	"sync"

	"vestry/pkg/domain"
	"vestry/pkg/platform/sentinel"
)

type Treasury struct {
	mu       sync.Mutex
	custody  domain.AccountID
	balances map[domain.AccountID]uint64
}

// New builds a treasury whose PushOut debits the given custody account.
func New(custody domain.AccountID) *Treasury {
	return &Treasury{
		custody:  custody,
		balances: make(map[domain.AccountID]uint64),
	}
}

// Credit mints amount into an account. Seeding only; the custody service
// never mints.
func (t *Treasury) Credit(account domain.AccountID, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] += amount
}

func (t *Treasury) PullIn(_ context.Context, from, to domain.AccountID, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *Treasury) PushOut(_ context.Context, to domain.AccountID, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(t.custody, to, amount)
}

func (t *Treasury) BalanceOf(_ context.Context, account domain.AccountID) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account], nil
}

func (t *Treasury) move(from, to domain.AccountID, amount uint64) error {
	if t.balances[from] < amount {
		return sentinel.ErrInsufficientFunds
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}
