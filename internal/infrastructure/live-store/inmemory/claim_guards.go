package inmemorylivestore

import (
	"context"
	"sync"

	"github.com/hongbao-labs/packetd/internal/core/ports"
)

type claimGuardStore struct {
	lock   *sync.Mutex
	guards map[string]chan struct{}
}

func NewClaimGuardStore() ports.ClaimGuardStore {
	return &claimGuardStore{
		lock:   &sync.Mutex{},
		guards: make(map[string]chan struct{}),
	}
}

func (s *claimGuardStore) Acquire(ctx context.Context, packetId string) error {
	for {
		s.lock.Lock()
		guard, held := s.guards[packetId]
		if !held {
			s.guards[packetId] = make(chan struct{})
			s.lock.Unlock()
			return nil
		}
		s.lock.Unlock()

		select {
		case <-guard:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *claimGuardStore) Release(ctx context.Context, packetId string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	guard, held := s.guards[packetId]
	if !held {
		return nil
	}
	delete(s.guards, packetId)
	close(guard)
	return nil
}

type liveStore struct {
	claimGuardStore ports.ClaimGuardStore
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{
		claimGuardStore: NewClaimGuardStore(),
	}
}

func (s *liveStore) ClaimGuards() ports.ClaimGuardStore {
	return s.claimGuardStore
}
