// Package redis provides a Redis-backed treasury. Balances live under one
// key per account and every transfer runs as a single Lua script, so a move
// is atomic even with multiple vestry instances pointed at the same Redis.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vestry/pkg/domain"
	"vestry/pkg/platform/sentinel"
)

const keyPrefix = "treasury:balance:"

// transferScript debits from and credits to only when the source balance
// covers the amount. Returns 1 on success, 0 on insufficient funds.
var transferScript = redis.NewScript(`
local balance = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if balance < amount then
	return 0
end
redis.call("DECRBY", KEYS[1], amount)
redis.call("INCRBY", KEYS[2], amount)
return 1
`)

type Treasury struct {
	client  redis.UniversalClient
	custody domain.AccountID
}

// New builds a treasury over an existing Redis client. PushOut debits the
// given custody account.
func New(client redis.UniversalClient, custody domain.AccountID) *Treasury {
	return &Treasury{client: client, custody: custody}
}

func balanceKey(account domain.AccountID) string {
	return keyPrefix + account.String()
}

// Credit mints amount into an account. Seeding only.
func (t *Treasury) Credit(ctx context.Context, account domain.AccountID, amount uint64) error {
	if err := t.client.IncrBy(ctx, balanceKey(account), int64(amount)).Err(); err != nil {
		return fmt.Errorf("credit %s: %w: %w", account, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (t *Treasury) PullIn(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	return t.transfer(ctx, from, to, amount)
}

func (t *Treasury) PushOut(ctx context.Context, to domain.AccountID, amount uint64) error {
	return t.transfer(ctx, t.custody, to, amount)
}

func (t *Treasury) BalanceOf(ctx context.Context, account domain.AccountID) (uint64, error) {
	n, err := t.client.Get(ctx, balanceKey(account)).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w: %w", account, sentinel.ErrUnavailable, err)
	}
	return n, nil
}

func (t *Treasury) transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	ok, err := transferScript.Run(ctx, t.client,
		[]string{balanceKey(from), balanceKey(to)}, amount).Int()
	if err != nil {
		return fmt.Errorf("transfer %s -> %s: %w: %w", from, to, sentinel.ErrUnavailable, err)
	}
	if ok != 1 {
		return sentinel.ErrInsufficientFunds
	}
	return nil
}
