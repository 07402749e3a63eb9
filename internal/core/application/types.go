package application

import (
	"context"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/pkg/errors"
)

// EscrowAccount is the ledger-owned account holding every packet's balance
// between creation and claim/reclaim.
const EscrowAccount = "packetd:escrow"

type Service interface {
	Start() errors.Error
	Stop()
	CreatePacket(ctx context.Context, req CreatePacketRequest) (string, errors.Error)
	ClaimPacket(
		ctx context.Context, packetId, claimant, token string,
	) (uint64, errors.Error)
	ReclaimPacket(ctx context.Context, packetId, caller string) (uint64, errors.Error)
	GetEventsChannel(ctx context.Context) <-chan []domain.Event
}

type CreatePacketRequest struct {
	Creator      string
	Asset        string
	TotalAmount  uint64
	ShareCount   uint64
	RandomSplit  bool
	AuthorityKey string
	RestrictedTo string
	Duration     time.Duration
	Message      string
}

// PacketInfo is the read-only projection of a packet served to external
// consumers, claim payouts included.
type PacketInfo struct {
	Id              string
	Creator         string
	Asset           string
	Balance         uint64
	InitialBalance  uint64
	RemainingShares uint64
	InitialShares   uint64
	RandomSplit     bool
	ExpiresAt       int64
	AuthorityKey    string
	RestrictedTo    string
	Message         string
	Claims          []ClaimInfo
	CreatedAt       int64
	Expired         bool
}

type ClaimInfo struct {
	Claimant string
	Amount   uint64
}

type Page struct {
	PageSize int
	PageNum  int
}

type PageResp struct {
	Current int
	Next    int
	Total   int
}
