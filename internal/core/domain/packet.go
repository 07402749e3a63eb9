package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/hongbao-labs/packetd/pkg/errors"
)

// NativeAsset is the sentinel asset reference for the ledger's native unit.
const NativeAsset = ""

// Packet is an escrowed gift, split into shares claimable under either
// signature-based or address-restricted authorization. It is created once,
// mutated only by claims and the post-expiry reclaim, and closed once the
// balance or the share count reaches zero.
type Packet struct {
	Id              string
	Creator         string
	Asset           string
	Balance         uint64
	InitialBalance  uint64
	RemainingShares uint64
	InitialShares   uint64
	RandomSplit     bool
	ExpiresAt       int64
	AuthorityKey    string // hex-encoded compressed secp256k1 public key
	RestrictedTo    string
	Message         string
	ClaimedBy       map[string]uint64 // claimant -> payout
	CreatedAt       int64
}

func NewPacket(
	creator, asset string, totalAmount, shareCount uint64, randomSplit bool,
	authorityKey, restrictedTo string, duration time.Duration, message string,
	now time.Time,
) (*Packet, error) {
	if creator == "" {
		return nil, errors.INVALID_REQUEST.New("missing creator account")
	}
	if totalAmount == 0 {
		return nil, errors.INVALID_REQUEST.New("amount must be greater than 0")
	}
	// stores persist amounts as signed 64-bit integers
	if totalAmount > math.MaxInt64 {
		return nil, errors.INVALID_REQUEST.New("amount %d exceeds the supported maximum", totalAmount)
	}
	if shareCount == 0 {
		return nil, errors.INVALID_REQUEST.New("share count must be at least 1")
	}
	if duration <= 0 {
		return nil, errors.INVALID_REQUEST.New("duration must be greater than 0")
	}
	if restrictedTo != "" {
		// a restricted packet has exactly one eligible claimant
		shareCount = 1
	} else {
		if authorityKey == "" {
			return nil, errors.INVALID_REQUEST.New("missing authority key")
		}
		buf, err := hex.DecodeString(authorityKey)
		if err != nil {
			return nil, errors.INVALID_REQUEST.New("invalid authority key: %s", err)
		}
		if _, err := btcec.ParsePubKey(buf); err != nil {
			return nil, errors.INVALID_REQUEST.New("invalid authority key: %s", err)
		}
	}
	if totalAmount < shareCount {
		return nil, errors.INVALID_REQUEST.New(
			"amount %d too low for %d shares", totalAmount, shareCount,
		)
	}

	return &Packet{
		Id:              derivePacketId(creator, now),
		Creator:         creator,
		Asset:           asset,
		Balance:         totalAmount,
		InitialBalance:  totalAmount,
		RemainingShares: shareCount,
		InitialShares:   shareCount,
		RandomSplit:     randomSplit,
		ExpiresAt:       now.Add(duration).Unix(),
		AuthorityKey:    authorityKey,
		RestrictedTo:    restrictedTo,
		Message:         message,
		ClaimedBy:       make(map[string]uint64),
		CreatedAt:       now.Unix(),
	}, nil
}

func (p Packet) String() string {
	// nolint
	b, _ := json.MarshalIndent(p, "", "  ")
	return string(b)
}

func (p Packet) IsRestricted() bool {
	return p.RestrictedTo != ""
}

func (p Packet) IsExpired(now int64) bool {
	return now > p.ExpiresAt
}

func (p Packet) IsEmpty() bool {
	return p.Balance == 0 || p.RemainingShares == 0
}

func (p Packet) HasClaimed(account string) bool {
	_, ok := p.ClaimedBy[account]
	return ok
}

// Claim verifies the lifecycle preconditions, computes the claimant's payout
// and applies the debit in a single step so that no partially claimed state
// can ever be observed. Eligibility of the claimant must have been verified
// by the caller beforehand.
func (p *Packet) Claim(claimant string, entropy io.Reader, now int64) (uint64, error) {
	if p.IsExpired(now) {
		return 0, errors.PACKET_EXPIRED.New("packet expired").
			WithMetadata(errors.ExpiryMetadata{
				PacketId: p.Id, ExpiresAt: p.ExpiresAt, Now: now,
			})
	}
	if p.IsEmpty() {
		return 0, errors.PACKET_EMPTY.New("no balance or shares remaining").
			WithMetadata(errors.PacketMetadata{PacketId: p.Id})
	}
	if p.HasClaimed(claimant) {
		return 0, errors.ALREADY_CLAIMED.New("account already claimed").
			WithMetadata(errors.ClaimMetadata{PacketId: p.Id, Claimant: claimant})
	}

	var payout uint64
	var err error
	if p.RandomSplit {
		payout, err = RandomSplit(p.Balance, p.RemainingShares, entropy)
		if err != nil {
			return 0, errors.INTERNAL_ERROR.Wrap(
				fmt.Errorf("failed to draw random share: %w", err),
			)
		}
	} else {
		payout = EqualSplit(p.Balance, p.RemainingShares)
	}

	p.Balance -= payout
	p.RemainingShares--
	p.ClaimedBy[claimant] = payout
	return payout, nil
}

// Reclaim returns the remaining balance to the creator after expiry and
// closes the packet to further claims.
func (p *Packet) Reclaim(caller string, now int64) (uint64, error) {
	if caller != p.Creator {
		return 0, errors.NOT_ELIGIBLE.New("only the creator can reclaim").
			WithMetadata(errors.ClaimMetadata{PacketId: p.Id, Claimant: caller})
	}
	if !p.IsExpired(now) {
		return 0, errors.PACKET_NOT_EXPIRED.New("packet not expired yet").
			WithMetadata(errors.ExpiryMetadata{
				PacketId: p.Id, ExpiresAt: p.ExpiresAt, Now: now,
			})
	}
	if p.Balance == 0 {
		return 0, errors.PACKET_EMPTY.New("nothing left to reclaim").
			WithMetadata(errors.PacketMetadata{PacketId: p.Id})
	}

	refund := p.Balance
	p.Balance = 0
	p.RemainingShares = 0
	return refund, nil
}

// derivePacketId binds the identifier to the creator, a fresh nonce and the
// creation time so ids cannot collide across callers.
func derivePacketId(creator string, now time.Time) string {
	nonce := uuid.New()
	buf := make([]byte, 0, len(creator)+len(nonce)+8)
	buf = append(buf, []byte(creator)...)
	buf = append(buf, nonce[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(now.UnixNano()))
	id := sha256.Sum256(buf)
	return hex.EncodeToString(id[:])
}
