package domain

import (
	"math"
	"testing"
	"time"

	"github.com/hongbao-labs/packetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testCreator  = "creator-account"
	testAuthKey  = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	testDuration = 24 * time.Hour
)

func TestNewPacket(t *testing.T) {
	now := time.Now()

	t.Run("valid open packet", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 100, 4, true, testAuthKey, "", testDuration, "gong xi", now,
		)
		require.NoError(t, err)
		require.NotNil(t, packet)
		require.Len(t, packet.Id, 64)
		require.Equal(t, uint64(100), packet.Balance)
		require.Equal(t, uint64(100), packet.InitialBalance)
		require.Equal(t, uint64(4), packet.RemainingShares)
		require.Equal(t, uint64(4), packet.InitialShares)
		require.True(t, packet.RandomSplit)
		require.Equal(t, now.Add(testDuration).Unix(), packet.ExpiresAt)
		require.Equal(t, "gong xi", packet.Message)
		require.Empty(t, packet.ClaimedBy)
		require.False(t, packet.IsRestricted())
	})

	t.Run("restricted packet forces a single share", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 5, false, "", "recipient", testDuration, "", now,
		)
		require.NoError(t, err)
		require.True(t, packet.IsRestricted())
		require.Equal(t, uint64(1), packet.InitialShares)
		require.Equal(t, uint64(1), packet.RemainingShares)
	})

	t.Run("unique ids", func(t *testing.T) {
		ids := make(map[string]struct{})
		for range 10 {
			packet, err := NewPacket(
				testCreator, NativeAsset, 10, 2, false, testAuthKey, "", testDuration, "", now,
			)
			require.NoError(t, err)
			require.NotContains(t, ids, packet.Id)
			ids[packet.Id] = struct{}{}
		}
	})

	t.Run("invalid requests", func(t *testing.T) {
		fixtures := []struct {
			name         string
			creator      string
			amount       uint64
			shares       uint64
			authorityKey string
			restrictedTo string
			duration     time.Duration
		}{
			{"missing creator", "", 100, 4, testAuthKey, "", testDuration},
			{"zero amount", testCreator, 0, 4, testAuthKey, "", testDuration},
			{"amount above the supported maximum", testCreator, math.MaxUint64, 4, testAuthKey, "", testDuration},
			{"zero shares", testCreator, 100, 0, testAuthKey, "", testDuration},
			{"zero duration", testCreator, 100, 4, testAuthKey, "", 0},
			{"missing authority key", testCreator, 100, 4, "", "", testDuration},
			{"malformed authority key", testCreator, 100, 4, "nothex", "", testDuration},
			{"short authority key", testCreator, 100, 4, "0202", "", testDuration},
			{"amount below share count", testCreator, 3, 4, testAuthKey, "", testDuration},
		}

		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				packet, err := NewPacket(
					f.creator, NativeAsset, f.amount, f.shares, false,
					f.authorityKey, f.restrictedTo, f.duration, "", now,
				)
				require.Error(t, err)
				require.Nil(t, packet)
				require.True(t, errors.Is(err, errors.INVALID_REQUEST))
			})
		}
	})
}

func TestPacketClaim(t *testing.T) {
	now := time.Now()

	t.Run("equal split conserves the escrowed amount", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 2, false, testAuthKey, "", testDuration, "", now,
		)
		require.NoError(t, err)

		first, err := packet.Claim("alice", nil, now.Unix())
		require.NoError(t, err)
		require.Equal(t, uint64(5), first)

		second, err := packet.Claim("bob", nil, now.Unix())
		require.NoError(t, err)
		require.Equal(t, uint64(5), second)

		require.Equal(t, uint64(0), packet.Balance)
		require.Equal(t, uint64(0), packet.RemainingShares)
		require.True(t, packet.IsEmpty())

		_, err = packet.Claim("carol", nil, now.Unix())
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.PACKET_EMPTY))
	})

	t.Run("random split exhausts balance and shares together", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 100, 4, true, testAuthKey, "", testDuration, "", now,
		)
		require.NoError(t, err)

		claimants := []string{"a", "b", "c", "d"}
		var total uint64
		for i, claimant := range claimants {
			payout, err := packet.Claim(claimant, nil, now.Unix())
			require.NoError(t, err)
			require.GreaterOrEqual(t, payout, uint64(1))
			if i == 0 {
				// uniform in [1, 2*100/4] on the first draw
				require.LessOrEqual(t, payout, uint64(50))
			}
			total += payout
		}
		require.Equal(t, uint64(100), total)
		require.Equal(t, uint64(0), packet.Balance)
		require.True(t, packet.IsEmpty())
	})

	t.Run("at most one claim per account", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 3, false, testAuthKey, "", testDuration, "", now,
		)
		require.NoError(t, err)

		_, err = packet.Claim("alice", nil, now.Unix())
		require.NoError(t, err)

		_, err = packet.Claim("alice", nil, now.Unix())
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ALREADY_CLAIMED))
		require.Equal(t, uint64(2), packet.RemainingShares)
	})

	t.Run("expired packet refuses claims", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 2, false, testAuthKey, "", time.Second, "", now,
		)
		require.NoError(t, err)

		_, err = packet.Claim("alice", nil, packet.ExpiresAt+1)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.PACKET_EXPIRED))
		require.Equal(t, uint64(10), packet.Balance)
	})

	t.Run("restricted packet pays out everything at once", func(t *testing.T) {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 1, false, "", "recipient", testDuration, "", now,
		)
		require.NoError(t, err)

		payout, err := packet.Claim("recipient", nil, now.Unix())
		require.NoError(t, err)
		require.Equal(t, uint64(10), payout)
		require.True(t, packet.IsEmpty())
	})
}

func TestPacketReclaim(t *testing.T) {
	now := time.Now()

	newExpiredPacket := func(t *testing.T) *Packet {
		packet, err := NewPacket(
			testCreator, NativeAsset, 10, 2, false, testAuthKey, "", time.Second, "", now,
		)
		require.NoError(t, err)
		return packet
	}

	t.Run("creator reclaims remaining balance after expiry", func(t *testing.T) {
		packet := newExpiredPacket(t)
		refund, err := packet.Reclaim(testCreator, packet.ExpiresAt+1)
		require.NoError(t, err)
		require.Equal(t, uint64(10), refund)
		require.Equal(t, uint64(0), packet.Balance)
		require.Equal(t, uint64(0), packet.RemainingShares)
	})

	t.Run("only the creator can reclaim", func(t *testing.T) {
		packet := newExpiredPacket(t)
		_, err := packet.Reclaim("mallory", packet.ExpiresAt+1)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
	})

	t.Run("reclaim before expiry is rejected", func(t *testing.T) {
		packet := newExpiredPacket(t)
		_, err := packet.Reclaim(testCreator, packet.ExpiresAt-1)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.PACKET_NOT_EXPIRED))
	})

	t.Run("nothing to reclaim from a drained packet", func(t *testing.T) {
		packet := newExpiredPacket(t)
		_, err := packet.Reclaim(testCreator, packet.ExpiresAt+1)
		require.NoError(t, err)

		_, err = packet.Reclaim(testCreator, packet.ExpiresAt+1)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.PACKET_EMPTY))
	})
}
