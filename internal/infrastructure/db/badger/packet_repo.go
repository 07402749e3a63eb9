package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const packetStoreDir = "packets"

type packetRepository struct {
	store *badgerhold.Store
}

type packetDTO struct {
	domain.Packet
	UpdatedAt int64
}

func NewPacketRepository(config ...interface{}) (domain.PacketRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, packetStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open packet store: %s", err)
	}

	return &packetRepository{store}, nil
}

func (r *packetRepository) AddPacket(ctx context.Context, packet domain.Packet) error {
	dto := packetDTO{packet, time.Now().Unix()}
	if err := r.store.Insert(packet.Id, dto); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("packet %s already exists", packet.Id)
		}
		return err
	}
	return nil
}

func (r *packetRepository) GetPacket(
	ctx context.Context, id string,
) (*domain.Packet, error) {
	var dto packetDTO
	if err := r.store.Get(id, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	packet := dto.Packet
	return &packet, nil
}

func (r *packetRepository) UpdatePacket(
	ctx context.Context, id string,
	updateFn func(*domain.Packet) (*domain.Packet, error),
) error {
	update := func() error {
		return r.store.Badger().Update(func(tx *badger.Txn) error {
			var dto packetDTO
			if err := r.store.TxGet(tx, id, &dto); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return fmt.Errorf("packet %s not found", id)
				}
				return err
			}

			packet := dto.Packet
			updated, err := updateFn(&packet)
			if err != nil {
				return err
			}

			return r.store.TxUpdate(tx, id, packetDTO{*updated, time.Now().Unix()})
		})
	}

	err := update()
	if errors.Is(err, badger.ErrConflict) {
		attempts := 1
		for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
			time.Sleep(100 * time.Millisecond)
			err = update()
			attempts++
		}
	}
	return err
}

func (r *packetRepository) GetPacketsByCreator(
	ctx context.Context, creator string,
) ([]domain.Packet, error) {
	return r.findPackets(ctx, badgerhold.Where("Creator").Eq(creator))
}

func (r *packetRepository) GetPacketsByRecipient(
	ctx context.Context, recipient string,
) ([]domain.Packet, error) {
	return r.findPackets(ctx, badgerhold.Where("RestrictedTo").Eq(recipient))
}

func (r *packetRepository) GetLivePackets(ctx context.Context) ([]domain.Packet, error) {
	return r.findPackets(ctx, badgerhold.Where("Balance").Gt(uint64(0)))
}

func (r *packetRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *packetRepository) findPackets(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Packet, error) {
	var dtos []packetDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	packets := make([]domain.Packet, 0, len(dtos))
	for _, dto := range dtos {
		packets = append(packets, dto.Packet)
	}
	return packets, nil
}
