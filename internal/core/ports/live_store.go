package ports

import "context"

type LiveStore interface {
	ClaimGuards() ClaimGuardStore
}

// ClaimGuardStore provides the per-packet exclusion scope required by the
// claim path: claims on the same packet serialize, claims on different
// packets proceed in parallel.
type ClaimGuardStore interface {
	// Acquire blocks until the packet's guard is held or ctx is done.
	Acquire(ctx context.Context, packetId string) error
	Release(ctx context.Context, packetId string) error
}
