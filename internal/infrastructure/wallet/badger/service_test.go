package badgerwallet_test

import (
	"context"
	"sync"
	"testing"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	badgerwallet "github.com/hongbao-labs/packetd/internal/infrastructure/wallet/badger"
	"github.com/hongbao-labs/packetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWalletService(t *testing.T) {
	ctx := context.Background()

	wallet, err := badgerwallet.NewService("", nil)
	require.NoError(t, err)
	defer wallet.Close()

	t.Run("unknown account has zero balance", func(t *testing.T) {
		balance, err := wallet.Balance(ctx, "nobody", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(0), balance)
	})

	t.Run("deposit credits the account", func(t *testing.T) {
		require.NoError(t, wallet.Deposit(ctx, "alice", domain.NativeAsset, 100))
		require.NoError(t, wallet.Deposit(ctx, "alice", domain.NativeAsset, 50))

		balance, err := wallet.Balance(ctx, "alice", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(150), balance)
	})

	t.Run("zero deposit is rejected", func(t *testing.T) {
		require.Error(t, wallet.Deposit(ctx, "alice", domain.NativeAsset, 0))
	})

	t.Run("transfer moves the exact amount", func(t *testing.T) {
		require.NoError(t, wallet.Transfer(ctx, "alice", "bob", domain.NativeAsset, 40))

		aliceBalance, err := wallet.Balance(ctx, "alice", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(110), aliceBalance)

		bobBalance, err := wallet.Balance(ctx, "bob", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(40), bobBalance)
	})

	t.Run("overdraft is rejected", func(t *testing.T) {
		err := wallet.Transfer(ctx, "bob", "alice", domain.NativeAsset, 1000)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.INSUFFICIENT_FUNDS))

		bobBalance, err := wallet.Balance(ctx, "bob", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(40), bobBalance)
	})

	t.Run("self transfer is rejected", func(t *testing.T) {
		require.Error(t, wallet.Transfer(ctx, "alice", "alice", domain.NativeAsset, 1))
	})

	t.Run("balances are scoped by asset", func(t *testing.T) {
		require.NoError(t, wallet.Deposit(ctx, "alice", "gold", 5))

		goldBalance, err := wallet.Balance(ctx, "alice", "gold")
		require.NoError(t, err)
		require.Equal(t, uint64(5), goldBalance)

		nativeBalance, err := wallet.Balance(ctx, "alice", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(110), nativeBalance)
	})

	t.Run("concurrent transfers conserve the total", func(t *testing.T) {
		require.NoError(t, wallet.Deposit(ctx, "pool", domain.NativeAsset, 20))

		wg := sync.WaitGroup{}
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(
					t, wallet.Transfer(ctx, "pool", "sink", domain.NativeAsset, 1),
				)
			}()
		}
		wg.Wait()

		poolBalance, err := wallet.Balance(ctx, "pool", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(0), poolBalance)

		sinkBalance, err := wallet.Balance(ctx, "sink", domain.NativeAsset)
		require.NoError(t, err)
		require.Equal(t, uint64(20), sinkBalance)
	})
}
