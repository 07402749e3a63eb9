package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	"github.com/hongbao-labs/packetd/internal/infrastructure/db"
	"github.com/stretchr/testify/require"
)

const (
	creator      = "creator-account"
	authorityKey = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_watermill_and_sqlite_stores",
			config: db.ServiceConfig{
				EventStoreType:   "watermill",
				DataStoreType:    "sqlite",
				EventStoreConfig: []interface{}{},
				DataStoreConfig:  []interface{}{t.TempDir()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			require.NotNil(t, svc)

			testEventRepository(t, svc)
			testPacketRepository(t, svc)

			svc.Close()
		})
	}
}

func testEventRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_repository", func(t *testing.T) {
		packet := newTestPacket(t, 100, 4)

		events := []domain.Event{
			domain.PacketCreated{
				PacketEvent: domain.PacketEvent{
					Id:   packet.Id,
					Type: domain.EventTypePacketCreated,
				},
				Creator:        packet.Creator,
				InitialBalance: packet.InitialBalance,
				InitialShares:  packet.InitialShares,
				ExpiresAt:      packet.ExpiresAt,
				AuthorityKey:   packet.AuthorityKey,
				CreatedAt:      packet.CreatedAt,
			},
			domain.PacketClaimed{
				PacketEvent: domain.PacketEvent{
					Id:   packet.Id,
					Type: domain.EventTypePacketClaimed,
				},
				Claimant:  "alice",
				Amount:    25,
				ClaimedAt: time.Now().Unix(),
			},
		}

		received := make(chan []domain.Event, 1)
		svc.Events().RegisterEventsHandler(domain.PacketTopic, func(events []domain.Event) {
			select {
			case received <- events:
			default:
			}
		})
		defer svc.Events().ClearRegisteredHandlers(domain.PacketTopic)

		err := svc.Events().Save(
			context.Background(), domain.PacketTopic, packet.Id, events,
		)
		require.NoError(t, err)

		select {
		case got := <-received:
			require.Len(t, got, 2)
			require.Equal(t, domain.EventTypePacketCreated, got[0].GetType())
			require.Equal(t, domain.EventTypePacketClaimed, got[1].GetType())
			require.Equal(t, packet.Id, got[0].GetPacketId())

			created, ok := got[0].(domain.PacketCreated)
			require.True(t, ok)
			require.Equal(t, packet.Creator, created.Creator)
			require.Equal(t, packet.InitialBalance, created.InitialBalance)

			claimed, ok := got[1].(domain.PacketClaimed)
			require.True(t, ok)
			require.Equal(t, "alice", claimed.Claimant)
			require.Equal(t, uint64(25), claimed.Amount)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatched events")
		}
	})
}

func testPacketRepository(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()

	t.Run("test_packet_repository", func(t *testing.T) {
		packet := newTestPacket(t, 100, 4)
		require.NoError(t, svc.Packets().AddPacket(ctx, *packet))

		t.Run("get_packet_round_trip", func(t *testing.T) {
			got, err := svc.Packets().GetPacket(ctx, packet.Id)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, packet.Id, got.Id)
			require.Equal(t, packet.Creator, got.Creator)
			require.Equal(t, packet.Balance, got.Balance)
			require.Equal(t, packet.RemainingShares, got.RemainingShares)
			require.Equal(t, packet.AuthorityKey, got.AuthorityKey)
			require.Equal(t, packet.ExpiresAt, got.ExpiresAt)
			require.Empty(t, got.ClaimedBy)
		})

		t.Run("get_unknown_packet", func(t *testing.T) {
			got, err := svc.Packets().GetPacket(ctx, "unknown")
			require.NoError(t, err)
			require.Nil(t, got)
		})

		t.Run("update_packet_applies_claim", func(t *testing.T) {
			err := svc.Packets().UpdatePacket(
				ctx, packet.Id, func(p *domain.Packet) (*domain.Packet, error) {
					if _, err := p.Claim("alice", nil, time.Now().Unix()); err != nil {
						return nil, err
					}
					return p, nil
				},
			)
			require.NoError(t, err)

			got, err := svc.Packets().GetPacket(ctx, packet.Id)
			require.NoError(t, err)
			require.Equal(t, uint64(3), got.RemainingShares)
			require.Less(t, got.Balance, packet.Balance)
			require.Contains(t, got.ClaimedBy, "alice")
		})

		t.Run("update_packet_aborts_on_closure_error", func(t *testing.T) {
			before, err := svc.Packets().GetPacket(ctx, packet.Id)
			require.NoError(t, err)

			err = svc.Packets().UpdatePacket(
				ctx, packet.Id, func(p *domain.Packet) (*domain.Packet, error) {
					p.Balance = 0
					return nil, fmt.Errorf("abort")
				},
			)
			require.Error(t, err)

			after, err := svc.Packets().GetPacket(ctx, packet.Id)
			require.NoError(t, err)
			require.Equal(t, before.Balance, after.Balance)
		})

		t.Run("update_unknown_packet", func(t *testing.T) {
			err := svc.Packets().UpdatePacket(
				ctx, "unknown", func(p *domain.Packet) (*domain.Packet, error) {
					return p, nil
				},
			)
			require.Error(t, err)
			require.Contains(t, err.Error(), "not found")
		})

		t.Run("get_packets_by_creator", func(t *testing.T) {
			packets, err := svc.Packets().GetPacketsByCreator(ctx, packet.Creator)
			require.NoError(t, err)
			require.NotEmpty(t, packets)
			for _, p := range packets {
				require.Equal(t, packet.Creator, p.Creator)
			}

			packets, err = svc.Packets().GetPacketsByCreator(ctx, "nobody")
			require.NoError(t, err)
			require.Empty(t, packets)
		})

		t.Run("get_packets_by_recipient", func(t *testing.T) {
			restricted, err := domain.NewPacket(
				creator, domain.NativeAsset, 10, 1, false, "", "recipient",
				time.Hour, "", time.Now(),
			)
			require.NoError(t, err)
			require.NoError(t, svc.Packets().AddPacket(ctx, *restricted))

			packets, err := svc.Packets().GetPacketsByRecipient(ctx, "recipient")
			require.NoError(t, err)
			require.Len(t, packets, 1)
			require.Equal(t, restricted.Id, packets[0].Id)
		})

		t.Run("get_live_packets", func(t *testing.T) {
			drained := newTestPacket(t, 10, 1)
			require.NoError(t, svc.Packets().AddPacket(ctx, *drained))
			require.NoError(t, svc.Packets().UpdatePacket(
				ctx, drained.Id, func(p *domain.Packet) (*domain.Packet, error) {
					if _, err := p.Claim("bob", nil, time.Now().Unix()); err != nil {
						return nil, err
					}
					return p, nil
				},
			))

			packets, err := svc.Packets().GetLivePackets(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, packets)
			for _, p := range packets {
				require.Greater(t, p.Balance, uint64(0))
				require.NotEqual(t, drained.Id, p.Id)
			}
		})
	})
}

func newTestPacket(t *testing.T, amount, shares uint64) *domain.Packet {
	packet, err := domain.NewPacket(
		creator, domain.NativeAsset, amount, shares, false, authorityKey, "",
		time.Hour, "gong xi fa cai", time.Now(),
	)
	require.NoError(t, err)
	return packet
}
