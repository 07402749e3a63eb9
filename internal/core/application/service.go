package application

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	"github.com/hongbao-labs/packetd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type service struct {
	// services
	wallet      ports.WalletService
	repoManager ports.RepoManager
	cache       ports.LiveStore
	alerts      ports.Alerts
	sweeper     *sweeper

	// entropy source for random splits, crypto/rand unless overridden
	entropy io.Reader

	// channels
	eventsCh chan []domain.Event

	// stop handlers
	stop func()
	ctx  context.Context
	wg   *sync.WaitGroup
}

func NewService(
	wallet ports.WalletService,
	repoManager ports.RepoManager,
	scheduler ports.SchedulerService,
	cache ports.LiveStore,
	alerts ports.Alerts,
	entropy io.Reader,
) (Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &service{
		wallet:      wallet,
		repoManager: repoManager,
		cache:       cache,
		alerts:      alerts,
		entropy:     entropy,
		eventsCh:    make(chan []domain.Event, 64),
		stop:        cancel,
		ctx:         ctx,
		wg:          &sync.WaitGroup{},
	}
	svc.sweeper = newSweeper(repoManager, scheduler, alerts, svc.publishEvents)
	return svc, nil
}

func (s *service) Start() errors.Error {
	log.Debug("starting packet ledger service")
	if err := s.sweeper.start(); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.Debug("packet ledger service started")
	return nil
}

func (s *service) Stop() {
	s.sweeper.stop()
	s.stop()
	s.wg.Wait()
	close(s.eventsCh)
	log.Debug("packet ledger service stopped")
}

func (s *service) GetEventsChannel(_ context.Context) <-chan []domain.Event {
	return s.eventsCh
}

func (s *service) CreatePacket(
	ctx context.Context, req CreatePacketRequest,
) (string, errors.Error) {
	packet, err := domain.NewPacket(
		req.Creator, req.Asset, req.TotalAmount, req.ShareCount, req.RandomSplit,
		req.AuthorityKey, req.RestrictedTo, req.Duration, req.Message, time.Now(),
	)
	if err != nil {
		return "", asCodedError(err)
	}

	// the escrow debit and the packet insertion must be indivisible: a
	// wallet failure creates no packet, a store failure returns the escrow.
	if err := s.wallet.Transfer(
		ctx, packet.Creator, EscrowAccount, packet.Asset, packet.InitialBalance,
	); err != nil {
		return "", asCodedError(err)
	}

	if err := s.repoManager.Packets().AddPacket(ctx, *packet); err != nil {
		if refundErr := s.wallet.Transfer(
			ctx, EscrowAccount, packet.Creator, packet.Asset, packet.InitialBalance,
		); refundErr != nil {
			log.WithError(refundErr).Errorf(
				"failed to return escrow after aborted creation of packet %s", packet.Id,
			)
		}
		return "", errors.INTERNAL_ERROR.Wrap(err)
	}

	if err := s.sweeper.schedule(*packet); err != nil {
		log.WithError(err).Warnf("failed to schedule expiry for packet %s", packet.Id)
	}

	s.publishEvents(ctx, packet.Id, domain.PacketCreated{
		PacketEvent: domain.PacketEvent{
			Id: packet.Id, Type: domain.EventTypePacketCreated,
		},
		Creator:        packet.Creator,
		Asset:          packet.Asset,
		InitialBalance: packet.InitialBalance,
		InitialShares:  packet.InitialShares,
		RandomSplit:    packet.RandomSplit,
		ExpiresAt:      packet.ExpiresAt,
		AuthorityKey:   packet.AuthorityKey,
		RestrictedTo:   packet.RestrictedTo,
		Message:        packet.Message,
		CreatedAt:      packet.CreatedAt,
	})
	s.publishAlert(ctx, ports.PacketCreatedAlertTopic, ports.PacketCreatedAlert{
		Id:      packet.Id,
		Creator: packet.Creator,
		Asset:   packet.Asset,
		Amount:  packet.InitialBalance,
		Shares:  packet.InitialShares,
	})

	log.WithFields(log.Fields{
		"packet": packet.Id, "creator": packet.Creator,
		"amount": packet.InitialBalance, "shares": packet.InitialShares,
	}).Info("packet created")
	return packet.Id, nil
}

func (s *service) ClaimPacket(
	ctx context.Context, packetId, claimant, token string,
) (uint64, errors.Error) {
	guards := s.cache.ClaimGuards()
	if err := guards.Acquire(ctx, packetId); err != nil {
		return 0, errors.INTERNAL_ERROR.Wrap(err)
	}
	defer func() {
		if err := guards.Release(ctx, packetId); err != nil {
			log.WithError(err).Warnf("failed to release claim guard for packet %s", packetId)
		}
	}()

	packet, err := s.repoManager.Packets().GetPacket(ctx, packetId)
	if err != nil {
		return 0, errors.INTERNAL_ERROR.Wrap(err)
	}
	if packet == nil {
		return 0, errors.PACKET_NOT_FOUND.New("packet not found").
			WithMetadata(errors.PacketMetadata{PacketId: packetId})
	}

	now := time.Now().Unix()
	// lifecycle checks come before authorization so a dead packet never
	// costs a signature recovery
	if packet.IsExpired(now) {
		return 0, errors.PACKET_EXPIRED.New("packet expired").
			WithMetadata(errors.ExpiryMetadata{
				PacketId: packetId, ExpiresAt: packet.ExpiresAt, Now: now,
			})
	}
	if packet.IsEmpty() {
		return 0, errors.PACKET_EMPTY.New("no balance or shares remaining").
			WithMetadata(errors.PacketMetadata{PacketId: packetId})
	}
	if packet.HasClaimed(claimant) {
		return 0, errors.ALREADY_CLAIMED.New("account already claimed").
			WithMetadata(errors.ClaimMetadata{PacketId: packetId, Claimant: claimant})
	}
	if err := verifyClaimAuthorization(*packet, claimant, token); err != nil {
		return 0, err
	}

	var payout uint64
	if err := s.repoManager.Packets().UpdatePacket(
		ctx, packetId, func(p *domain.Packet) (*domain.Packet, error) {
			amount, err := p.Claim(claimant, s.entropy, now)
			if err != nil {
				return nil, err
			}
			payout = amount
			return p, nil
		},
	); err != nil {
		return 0, asCodedError(err)
	}

	// the debit is committed before the transfer; a failed transfer rolls
	// the packet back under the same guard, so a retried claim can never
	// pay twice and a paid claim is never left unrecorded
	if err := s.wallet.Transfer(ctx, EscrowAccount, claimant, packet.Asset, payout); err != nil {
		if revertErr := s.repoManager.Packets().UpdatePacket(
			ctx, packetId, func(p *domain.Packet) (*domain.Packet, error) {
				p.Balance += payout
				p.RemainingShares++
				delete(p.ClaimedBy, claimant)
				return p, nil
			},
		); revertErr != nil {
			log.WithError(revertErr).Errorf(
				"failed to revert debit of packet %s after transfer failure", packetId,
			)
		}
		return 0, asCodedError(err)
	}

	s.publishEvents(ctx, packetId, domain.PacketClaimed{
		PacketEvent: domain.PacketEvent{
			Id: packetId, Type: domain.EventTypePacketClaimed,
		},
		Claimant:  claimant,
		Amount:    payout,
		ClaimedAt: now,
	})
	s.publishAlert(ctx, ports.PacketClaimedAlertTopic, ports.PacketClaimedAlert{
		Id:       packetId,
		Claimant: claimant,
		Amount:   payout,
	})

	log.WithFields(log.Fields{
		"packet": packetId, "claimant": claimant, "amount": payout,
	}).Info("packet claimed")
	return payout, nil
}

func (s *service) ReclaimPacket(
	ctx context.Context, packetId, caller string,
) (uint64, errors.Error) {
	guards := s.cache.ClaimGuards()
	if err := guards.Acquire(ctx, packetId); err != nil {
		return 0, errors.INTERNAL_ERROR.Wrap(err)
	}
	defer func() {
		if err := guards.Release(ctx, packetId); err != nil {
			log.WithError(err).Warnf("failed to release claim guard for packet %s", packetId)
		}
	}()

	packet, err := s.repoManager.Packets().GetPacket(ctx, packetId)
	if err != nil {
		return 0, errors.INTERNAL_ERROR.Wrap(err)
	}
	if packet == nil {
		return 0, errors.PACKET_NOT_FOUND.New("packet not found").
			WithMetadata(errors.PacketMetadata{PacketId: packetId})
	}

	now := time.Now().Unix()
	var refund uint64
	if err := s.repoManager.Packets().UpdatePacket(
		ctx, packetId, func(p *domain.Packet) (*domain.Packet, error) {
			amount, err := p.Reclaim(caller, now)
			if err != nil {
				return nil, err
			}
			refund = amount
			return p, nil
		},
	); err != nil {
		return 0, asCodedError(err)
	}

	if err := s.wallet.Transfer(ctx, EscrowAccount, caller, packet.Asset, refund); err != nil {
		if revertErr := s.repoManager.Packets().UpdatePacket(
			ctx, packetId, func(p *domain.Packet) (*domain.Packet, error) {
				p.Balance = refund
				p.RemainingShares = packet.RemainingShares
				return p, nil
			},
		); revertErr != nil {
			log.WithError(revertErr).Errorf(
				"failed to revert reclaim of packet %s after transfer failure", packetId,
			)
		}
		return 0, asCodedError(err)
	}

	s.publishEvents(ctx, packetId, domain.PacketReclaimed{
		PacketEvent: domain.PacketEvent{
			Id: packetId, Type: domain.EventTypePacketReclaimed,
		},
		Creator:     caller,
		Amount:      refund,
		ReclaimedAt: now,
	})

	log.WithFields(log.Fields{
		"packet": packetId, "creator": caller, "amount": refund,
	}).Info("packet reclaimed")
	return refund, nil
}

// publishEvents appends the events to the persistent log and forwards them
// to the in-process stream consumed by external indexers.
func (s *service) publishEvents(ctx context.Context, id string, events ...domain.Event) {
	if err := s.repoManager.Events().Save(ctx, domain.PacketTopic, id, events); err != nil {
		log.WithError(err).Errorf("failed to store events for packet %s", id)
	}

	select {
	case s.eventsCh <- events:
	case <-s.ctx.Done():
	default:
		log.Warnf("events channel full, dropping %d events for packet %s", len(events), id)
	}
}

func (s *service) publishAlert(ctx context.Context, topic ports.Topic, message any) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.Publish(ctx, topic, message); err != nil {
		log.WithError(err).Warnf("failed to publish %s alert", topic)
	}
}

func asCodedError(err error) errors.Error {
	if coded, ok := err.(errors.Error); ok {
		return coded
	}
	return errors.INTERNAL_ERROR.Wrap(err)
}
