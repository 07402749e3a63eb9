package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/pkg/errors"
)

// claimTokenLen is the size of a compact ECDSA signature: one recovery
// header byte followed by the 32-byte R and S values.
const claimTokenLen = 65

// verifyClaimAuthorization checks a claim request against the packet's
// authorization mode. Restricted packets are identity-gated: the token is
// irrelevant and only the designated account is eligible. Open packets
// require a compact signature over the claim digest, recoverable to the
// packet's authority key; binding the digest to both the packet id and the
// claimant makes a leaked token worthless for any other account.
//
// Every failure collapses to NOT_ELIGIBLE so callers cannot probe which
// check rejected them.
func verifyClaimAuthorization(
	packet domain.Packet, claimant, token string,
) errors.Error {
	notEligible := func(reason string) errors.Error {
		return errors.NOT_ELIGIBLE.New("%s", reason).
			WithMetadata(errors.ClaimMetadata{
				PacketId: packet.Id, Claimant: claimant,
			})
	}

	if claimant == "" {
		return notEligible("missing claimant account")
	}

	if packet.IsRestricted() {
		if claimant != packet.RestrictedTo {
			return notEligible("claimant is not the designated recipient")
		}
		return nil
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(token, "0x"))
	if err != nil || len(sig) != claimTokenLen {
		return notEligible("malformed claim token")
	}

	digest := ClaimDigest(packet.Id, claimant)
	pubkey, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return notEligible("signature recovery failed")
	}

	recovered := hex.EncodeToString(pubkey.SerializeCompressed())
	if !strings.EqualFold(recovered, packet.AuthorityKey) {
		return notEligible("signature not bound to the authority key")
	}
	return nil
}

// ClaimDigest is the canonical message signed by the link secret: the packet
// id bytes followed by the claimant account bytes, hashed with sha256.
func ClaimDigest(packetId, claimant string) []byte {
	idBytes, err := hex.DecodeString(packetId)
	if err != nil {
		idBytes = []byte(packetId)
	}
	buf := make([]byte, 0, len(idBytes)+len(claimant))
	buf = append(buf, idBytes...)
	buf = append(buf, []byte(claimant)...)
	digest := sha256.Sum256(buf)
	return digest[:]
}

// SignClaim produces the claim token authorizing claimant on packetId with
// the packet's authority private key. Used by link tooling and tests.
func SignClaim(key *btcec.PrivateKey, packetId, claimant string) (string, error) {
	sig, err := ecdsa.SignCompact(key, ClaimDigest(packetId, claimant), true)
	if err != nil {
		return "", fmt.Errorf("failed to sign claim digest: %w", err)
	}
	return hex.EncodeToString(sig), nil
}
