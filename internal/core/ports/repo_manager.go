package ports

import "github.com/hongbao-labs/packetd/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Packets() domain.PacketRepository
	Close()
}
