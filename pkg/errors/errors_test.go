package errors_test

import (
	"fmt"
	"testing"

	"github.com/hongbao-labs/packetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCodedErrors(t *testing.T) {
	t.Run("new", func(t *testing.T) {
		err := errors.PACKET_NOT_FOUND.New("packet %s not found", "abc")
		require.EqualValues(t, 3, err.Code())
		require.Equal(t, "PACKET_NOT_FOUND", err.CodeName())
		require.Contains(t, err.Error(), "packet abc not found")
		require.Contains(t, err.Error(), "PACKET_NOT_FOUND")
	})

	t.Run("wrap", func(t *testing.T) {
		cause := fmt.Errorf("boom")
		err := errors.INTERNAL_ERROR.Wrap(cause)
		require.EqualValues(t, 0, err.Code())
		require.Contains(t, err.Error(), "boom")
	})

	t.Run("is matches by code", func(t *testing.T) {
		err := errors.ALREADY_CLAIMED.New("account already claimed")
		require.True(t, errors.Is(err, errors.ALREADY_CLAIMED))
		require.False(t, errors.Is(err, errors.NOT_ELIGIBLE))
		require.False(t, errors.Is(fmt.Errorf("plain"), errors.ALREADY_CLAIMED))
	})

	t.Run("metadata", func(t *testing.T) {
		err := errors.NOT_ELIGIBLE.New("claim rejected").
			WithMetadata(errors.ClaimMetadata{PacketId: "abc", Claimant: "alice"})

		metadata := err.Metadata()
		require.Equal(t, "abc", metadata["packet_id"])
		require.Equal(t, "alice", metadata["claimant"])
	})
}
