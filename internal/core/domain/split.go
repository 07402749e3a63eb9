package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// EqualSplit returns the payout for the next claim of an equal-split packet.
// The division remainder (dust) is absorbed by the last share so the final
// claim always drives the balance to exactly zero.
func EqualSplit(balance, remainingShares uint64) uint64 {
	if remainingShares <= 1 {
		return balance
	}
	return balance / remainingShares
}

// RandomSplit draws the payout for the next claim of a random-split packet
// using the fair-envelope rule: uniform in [1, 2*balance/remainingShares],
// capped so every later share can still receive at least one unit. The
// expected payout per remaining share is invariant to draw order. The last
// share takes the whole balance, as in the equal split.
//
// entropy defaults to crypto/rand when nil. The draw must not be derivable
// by the claimant before the claim commits; with a local CSPRNG that holds
// by construction.
func RandomSplit(balance, remainingShares uint64, entropy io.Reader) (uint64, error) {
	if remainingShares <= 1 {
		return balance, nil
	}
	if balance < remainingShares {
		return 0, fmt.Errorf(
			"balance %d cannot serve %d shares", balance, remainingShares,
		)
	}
	if entropy == nil {
		entropy = rand.Reader
	}

	max := 2 * (balance / remainingShares)
	if cap := balance - (remainingShares - 1); max > cap {
		max = cap
	}
	if max <= 1 {
		return 1, nil
	}

	n, err := rand.Int(entropy, new(big.Int).SetUint64(max))
	if err != nil {
		return 0, err
	}
	return n.Uint64() + 1, nil
}
