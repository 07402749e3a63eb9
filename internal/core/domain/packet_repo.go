package domain

import "context"

type PacketRepository interface {
	AddPacket(ctx context.Context, packet Packet) error
	// GetPacket returns nil without error when the packet does not exist.
	GetPacket(ctx context.Context, id string) (*Packet, error)
	// UpdatePacket applies updateFn to the stored packet inside a single
	// store transaction. The closure's error aborts the update untouched.
	UpdatePacket(
		ctx context.Context, id string, updateFn func(*Packet) (*Packet, error),
	) error
	GetPacketsByCreator(ctx context.Context, creator string) ([]Packet, error)
	GetPacketsByRecipient(ctx context.Context, recipient string) ([]Packet, error)
	// GetLivePackets returns every packet still holding a balance.
	GetLivePackets(ctx context.Context) ([]Packet, error)
	Close()
}
