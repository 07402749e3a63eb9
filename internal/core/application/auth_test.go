package application

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func signClaim(t *testing.T, key *btcec.PrivateKey, packetId, claimant string) string {
	t.Helper()
	token, err := SignClaim(key, packetId, claimant)
	require.NoError(t, err)
	return token
}

func TestVerifyClaimAuthorization(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	packet := domain.Packet{
		Id:           "3d2f8a77c36bd6570b3a1f1bf4c2f1b67882d6d1a5fb1b33fbcf25fbfbd6f1aa",
		Creator:      "creator",
		AuthorityKey: hex.EncodeToString(key.PubKey().SerializeCompressed()),
	}

	t.Run("valid token grants the bound claimant", func(t *testing.T) {
		token := signClaim(t, key, packet.Id, "alice")
		require.Nil(t, verifyClaimAuthorization(packet, "alice", token))
	})

	t.Run("0x-prefixed token is accepted", func(t *testing.T) {
		token := "0x" + signClaim(t, key, packet.Id, "alice")
		require.Nil(t, verifyClaimAuthorization(packet, "alice", token))
	})

	t.Run("token is worthless for any other account", func(t *testing.T) {
		token := signClaim(t, key, packet.Id, "alice")
		err := verifyClaimAuthorization(packet, "eve", token)
		require.NotNil(t, err)
		require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
	})

	t.Run("token is bound to the packet", func(t *testing.T) {
		token := signClaim(t, key, "another-packet", "alice")
		err := verifyClaimAuthorization(packet, "alice", token)
		require.NotNil(t, err)
		require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
	})

	t.Run("foreign authority key is rejected", func(t *testing.T) {
		otherKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		token := signClaim(t, otherKey, packet.Id, "alice")
		verr := verifyClaimAuthorization(packet, "alice", token)
		require.NotNil(t, verr)
		require.True(t, errors.Is(verr, errors.NOT_ELIGIBLE))
	})

	t.Run("malformed tokens are rejected", func(t *testing.T) {
		for _, token := range []string{"", "nothex", "abcd", signClaim(t, key, packet.Id, "alice")[:100]} {
			err := verifyClaimAuthorization(packet, "alice", token)
			require.NotNil(t, err)
			require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
		}
	})

	t.Run("missing claimant is rejected", func(t *testing.T) {
		token := signClaim(t, key, packet.Id, "")
		err := verifyClaimAuthorization(packet, "", token)
		require.NotNil(t, err)
		require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
	})

	t.Run("restricted packet ignores the token", func(t *testing.T) {
		restricted := domain.Packet{
			Id:           packet.Id,
			Creator:      "creator",
			RestrictedTo: "recipient",
		}

		require.Nil(t, verifyClaimAuthorization(restricted, "recipient", ""))
		require.Nil(t, verifyClaimAuthorization(restricted, "recipient", "garbage"))

		err := verifyClaimAuthorization(restricted, "eve", "")
		require.NotNil(t, err)
		require.True(t, errors.Is(err, errors.NOT_ELIGIBLE))
	})
}

func TestClaimDigest(t *testing.T) {
	digest := ClaimDigest(
		"3d2f8a77c36bd6570b3a1f1bf4c2f1b67882d6d1a5fb1b33fbcf25fbfbd6f1aa", "alice",
	)
	require.Len(t, digest, 32)

	// digest changes with either input
	other := ClaimDigest(
		"3d2f8a77c36bd6570b3a1f1bf4c2f1b67882d6d1a5fb1b33fbcf25fbfbd6f1aa", "bob",
	)
	require.NotEqual(t, digest, other)
}
