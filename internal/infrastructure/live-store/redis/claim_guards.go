package redislivestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	guardKeyPrefix = "packetd:claim-guard:"
	guardTTL       = 30 * time.Second
	acquireBackoff = 50 * time.Millisecond
)

// releaseScript deletes the guard key only when the caller still owns it,
// so a lease that expired and was re-acquired elsewhere is never revoked.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type claimGuardStore struct {
	rdb    *redis.Client
	lock   *sync.Mutex
	owners map[string]string
}

func NewClaimGuardStore(rdb *redis.Client) ports.ClaimGuardStore {
	return &claimGuardStore{
		rdb:    rdb,
		lock:   &sync.Mutex{},
		owners: make(map[string]string),
	}
}

func (s *claimGuardStore) Acquire(ctx context.Context, packetId string) error {
	owner := uuid.NewString()
	key := guardKey(packetId)

	for {
		ok, err := s.rdb.SetNX(ctx, key, owner, guardTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire claim guard: %s", err)
		}
		if ok {
			s.lock.Lock()
			s.owners[packetId] = owner
			s.lock.Unlock()
			return nil
		}

		select {
		case <-time.After(acquireBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *claimGuardStore) Release(ctx context.Context, packetId string) error {
	s.lock.Lock()
	owner, ok := s.owners[packetId]
	if !ok {
		s.lock.Unlock()
		return nil
	}
	delete(s.owners, packetId)
	s.lock.Unlock()

	if err := releaseScript.Run(
		ctx, s.rdb, []string{guardKey(packetId)}, owner,
	).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release claim guard: %s", err)
	}
	return nil
}

func guardKey(packetId string) string {
	return guardKeyPrefix + packetId
}

type liveStore struct {
	claimGuardStore ports.ClaimGuardStore
}

func NewLiveStore(rdb *redis.Client) ports.LiveStore {
	return &liveStore{
		claimGuardStore: NewClaimGuardStore(rdb),
	}
}

func (s *liveStore) ClaimGuards() ports.ClaimGuardStore {
	return s.claimGuardStore
}
