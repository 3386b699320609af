package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestry/pkg/domain"
	"vestry/pkg/platform/sentinel"
)

func TestTreasury_Transfers(t *testing.T) {
	ctx := context.Background()
	custody := domain.AccountID(uuid.New())
	owner := domain.AccountID(uuid.New())

	tr := New(custody)
	tr.Credit(owner, 100)

	t.Run("pull in moves value into custody", func(t *testing.T) {
		require.NoError(t, tr.PullIn(ctx, owner, custody, 60))

		got, err := tr.BalanceOf(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), got)

		got, err = tr.BalanceOf(ctx, custody)
		require.NoError(t, err)
		assert.Equal(t, uint64(60), got)
	})

	t.Run("push out returns value to the owner", func(t *testing.T) {
		require.NoError(t, tr.PushOut(ctx, owner, 60))

		got, err := tr.BalanceOf(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), got)
	})

	t.Run("insufficient funds fails without movement", func(t *testing.T) {
		err := tr.PullIn(ctx, owner, custody, 101)
		assert.ErrorIs(t, err, sentinel.ErrInsufficientFunds)

		got, err := tr.BalanceOf(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), got)
	})

	t.Run("push out over custody balance fails", func(t *testing.T) {
		err := tr.PushOut(ctx, owner, 1)
		assert.ErrorIs(t, err, sentinel.ErrInsufficientFunds)
	})

	t.Run("unknown account has zero balance", func(t *testing.T) {
		got, err := tr.BalanceOf(ctx, domain.AccountID(uuid.New()))
		require.NoError(t, err)
		assert.Zero(t, got)
	})
}
