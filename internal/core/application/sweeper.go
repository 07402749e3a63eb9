package application

import (
	"context"
	"sync"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// sweeper is an unexported service running while the main application
// service is started. It schedules one task per live packet that fires when
// the packet's expiry passes, flagging the remaining balance as reclaimable
// by the creator. Reclaiming itself stays creator-triggered.
type sweeper struct {
	repoManager ports.RepoManager
	scheduler   ports.SchedulerService
	alerts      ports.Alerts
	publish     func(ctx context.Context, id string, events ...domain.Event)

	// cache of scheduled tasks, avoids scheduling the same expiry twice
	locker         *sync.Mutex
	scheduledTasks map[string]struct{}
}

func newSweeper(
	repoManager ports.RepoManager, scheduler ports.SchedulerService,
	alerts ports.Alerts,
	publish func(ctx context.Context, id string, events ...domain.Event),
) *sweeper {
	return &sweeper{
		repoManager, scheduler, alerts, publish,
		&sync.Mutex{}, make(map[string]struct{}),
	}
}

func (s *sweeper) start() error {
	s.scheduler.Start()

	ctx := context.Background()

	livePackets, err := s.repoManager.Packets().GetLivePackets(ctx)
	if err != nil {
		return err
	}

	restored, expired := 0, 0
	for _, packet := range livePackets {
		// packets that expired while the service was down never got their
		// expiry event, flag them right away
		if !s.scheduler.AfterNow(packet.ExpiresAt) {
			go s.createExpiryTask(packet.Id)()
			expired++
			continue
		}
		if err := s.schedule(packet); err != nil {
			log.WithError(err).Errorf(
				"sweeper: failed to restore expiry task for packet %s", packet.Id,
			)
			continue
		}
		restored++
	}
	if restored > 0 {
		log.Infof("sweeper: restored expiry tasks for %d packets", restored)
	}
	if expired > 0 {
		log.Infof("sweeper: flagged %d packets that expired while offline", expired)
	}
	return nil
}

func (s *sweeper) stop() {
	s.scheduler.Stop()
}

func (s *sweeper) schedule(packet domain.Packet) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	if _, ok := s.scheduledTasks[packet.Id]; ok {
		return nil
	}
	if err := s.scheduler.ScheduleTaskOnce(
		packet.ExpiresAt+1, s.createExpiryTask(packet.Id),
	); err != nil {
		return err
	}
	s.scheduledTasks[packet.Id] = struct{}{}
	return nil
}

func (s *sweeper) createExpiryTask(packetId string) func() {
	return func() {
		s.locker.Lock()
		delete(s.scheduledTasks, packetId)
		s.locker.Unlock()

		ctx := context.Background()
		packet, err := s.repoManager.Packets().GetPacket(ctx, packetId)
		if err != nil {
			log.WithError(err).Errorf("sweeper: failed to load packet %s", packetId)
			return
		}
		if packet == nil || packet.Balance == 0 {
			// fully claimed or reclaimed before expiry, nothing to flag
			return
		}

		now := time.Now().Unix()
		s.publish(ctx, packetId, domain.PacketExpired{
			PacketEvent: domain.PacketEvent{
				Id: packetId, Type: domain.EventTypePacketExpired,
			},
			ExpiredAt: now,
			Balance:   packet.Balance,
		})

		if s.alerts != nil {
			if err := s.alerts.Publish(ctx, ports.PacketExpiredAlertTopic, ports.PacketExpiredAlert{
				Id:      packetId,
				Creator: packet.Creator,
				Balance: packet.Balance,
			}); err != nil {
				log.WithError(err).Warnf(
					"sweeper: failed to publish expiry alert for packet %s", packetId,
				)
			}
		}

		log.WithFields(log.Fields{
			"packet": packetId, "balance": packet.Balance,
		}).Info("packet expired, balance reclaimable by creator")
	}
}
