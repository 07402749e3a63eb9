package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
)

type packetRepository struct {
	db *sql.DB
}

func NewPacketRepository(config ...interface{}) (domain.PacketRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open packet repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &packetRepository{db}, nil
}

func (r *packetRepository) AddPacket(ctx context.Context, packet domain.Packet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO packet (
			id, creator, asset, balance, initial_balance, remaining_shares,
			initial_shares, random_split, expires_at, authority_key,
			restricted_to, message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		packet.Id, packet.Creator, packet.Asset,
		int64(packet.Balance), int64(packet.InitialBalance),
		int64(packet.RemainingShares), int64(packet.InitialShares),
		packet.RandomSplit, packet.ExpiresAt, packet.AuthorityKey,
		packet.RestrictedTo, packet.Message, packet.CreatedAt, now,
	); err != nil {
		return err
	}

	for claimant, amount := range packet.ClaimedBy {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO packet_claim (packet_id, claimant, amount, created_at)
			VALUES (?, ?, ?, ?)`,
			packet.Id, claimant, int64(amount), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *packetRepository) GetPacket(
	ctx context.Context, id string,
) (*domain.Packet, error) {
	packet, err := getPacketTx(ctx, r.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return packet, err
}

func (r *packetRepository) UpdatePacket(
	ctx context.Context, id string,
	updateFn func(*domain.Packet) (*domain.Packet, error),
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	packet, err := getPacketTx(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("packet %s not found", id)
	}
	if err != nil {
		return err
	}

	updated, err := updateFn(packet)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE packet SET balance = ?, remaining_shares = ?, updated_at = ?
		WHERE id = ?`,
		int64(updated.Balance), int64(updated.RemainingShares), now, id,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx, `DELETE FROM packet_claim WHERE packet_id = ?`, id,
	); err != nil {
		return err
	}
	for claimant, amount := range updated.ClaimedBy {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO packet_claim (packet_id, claimant, amount, created_at)
			VALUES (?, ?, ?, ?)`,
			id, claimant, int64(amount), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *packetRepository) GetPacketsByCreator(
	ctx context.Context, creator string,
) ([]domain.Packet, error) {
	return r.findPackets(ctx, `creator = ?`, creator)
}

func (r *packetRepository) GetPacketsByRecipient(
	ctx context.Context, recipient string,
) ([]domain.Packet, error) {
	return r.findPackets(ctx, `restricted_to = ?`, recipient)
}

func (r *packetRepository) GetLivePackets(ctx context.Context) ([]domain.Packet, error) {
	return r.findPackets(ctx, `balance > 0`)
}

func (r *packetRepository) Close() {
	_ = r.db.Close()
}

func (r *packetRepository) findPackets(
	ctx context.Context, where string, args ...any,
) ([]domain.Packet, error) {
	rows, err := r.db.QueryContext(
		ctx, `SELECT id FROM packet WHERE `+where+` ORDER BY created_at DESC`, args...,
	)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	packets := make([]domain.Packet, 0, len(ids))
	for _, id := range ids {
		packet, err := getPacketTx(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		packets = append(packets, *packet)
	}
	return packets, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getPacketTx(ctx context.Context, q querier, id string) (*domain.Packet, error) {
	var packet domain.Packet
	var balance, initialBalance, remainingShares, initialShares int64
	if err := q.QueryRowContext(
		ctx,
		`SELECT id, creator, asset, balance, initial_balance, remaining_shares,
			initial_shares, random_split, expires_at, authority_key,
			restricted_to, message, created_at
		FROM packet WHERE id = ?`,
		id,
	).Scan(
		&packet.Id, &packet.Creator, &packet.Asset, &balance, &initialBalance,
		&remainingShares, &initialShares, &packet.RandomSplit, &packet.ExpiresAt,
		&packet.AuthorityKey, &packet.RestrictedTo, &packet.Message,
		&packet.CreatedAt,
	); err != nil {
		return nil, err
	}
	packet.Balance = uint64(balance)
	packet.InitialBalance = uint64(initialBalance)
	packet.RemainingShares = uint64(remainingShares)
	packet.InitialShares = uint64(initialShares)

	rows, err := q.QueryContext(
		ctx,
		`SELECT claimant, amount FROM packet_claim WHERE packet_id = ?`,
		id,
	)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	packet.ClaimedBy = make(map[string]uint64)
	for rows.Next() {
		var claimant string
		var amount int64
		if err := rows.Scan(&claimant, &amount); err != nil {
			return nil, err
		}
		packet.ClaimedBy[claimant] = uint64(amount)
	}
	return &packet, rows.Err()
}
