package application

import (
	"context"
	"sort"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	"github.com/hongbao-labs/packetd/pkg/errors"
)

const maxPageSizePackets = 100

// IndexerService serves the read-only projections consumed by the
// presentation layer: single-packet lookups plus the "my packets" views
// keyed by creator and by designated recipient.
type IndexerService interface {
	GetPacket(ctx context.Context, packetId string) (*PacketInfo, error)
	ListPacketsByCreator(
		ctx context.Context, creator string, page *Page,
	) ([]PacketInfo, PageResp, error)
	ListPacketsForRecipient(
		ctx context.Context, recipient string, page *Page,
	) ([]PacketInfo, PageResp, error)
	ListClaims(ctx context.Context, packetId string) ([]ClaimInfo, error)
}

type indexerService struct {
	repoManager ports.RepoManager
}

func NewIndexerService(repoManager ports.RepoManager) IndexerService {
	return &indexerService{
		repoManager: repoManager,
	}
}

func (i *indexerService) GetPacket(
	ctx context.Context, packetId string,
) (*PacketInfo, error) {
	packet, err := i.repoManager.Packets().GetPacket(ctx, packetId)
	if err != nil {
		return nil, err
	}
	if packet == nil {
		return nil, errors.PACKET_NOT_FOUND.New("packet not found").
			WithMetadata(errors.PacketMetadata{PacketId: packetId})
	}
	info := newPacketInfo(*packet, time.Now().Unix())
	return &info, nil
}

func (i *indexerService) ListPacketsByCreator(
	ctx context.Context, creator string, page *Page,
) ([]PacketInfo, PageResp, error) {
	packets, err := i.repoManager.Packets().GetPacketsByCreator(ctx, creator)
	if err != nil {
		return nil, PageResp{}, err
	}
	return paginatePackets(packets, page)
}

func (i *indexerService) ListPacketsForRecipient(
	ctx context.Context, recipient string, page *Page,
) ([]PacketInfo, PageResp, error) {
	packets, err := i.repoManager.Packets().GetPacketsByRecipient(ctx, recipient)
	if err != nil {
		return nil, PageResp{}, err
	}
	return paginatePackets(packets, page)
}

func (i *indexerService) ListClaims(
	ctx context.Context, packetId string,
) ([]ClaimInfo, error) {
	packet, err := i.repoManager.Packets().GetPacket(ctx, packetId)
	if err != nil {
		return nil, err
	}
	if packet == nil {
		return nil, errors.PACKET_NOT_FOUND.New("packet not found").
			WithMetadata(errors.PacketMetadata{PacketId: packetId})
	}
	return claimList(*packet), nil
}

func paginatePackets(packets []domain.Packet, page *Page) ([]PacketInfo, PageResp, error) {
	sort.Slice(packets, func(x, y int) bool {
		return packets[x].CreatedAt > packets[y].CreatedAt
	})

	now := time.Now().Unix()
	infos := make([]PacketInfo, 0, len(packets))
	for _, packet := range packets {
		infos = append(infos, newPacketInfo(packet, now))
	}

	paged, resp := paginate(infos, page, maxPageSizePackets)
	return paged, resp, nil
}

func newPacketInfo(packet domain.Packet, now int64) PacketInfo {
	return PacketInfo{
		Id:              packet.Id,
		Creator:         packet.Creator,
		Asset:           packet.Asset,
		Balance:         packet.Balance,
		InitialBalance:  packet.InitialBalance,
		RemainingShares: packet.RemainingShares,
		InitialShares:   packet.InitialShares,
		RandomSplit:     packet.RandomSplit,
		ExpiresAt:       packet.ExpiresAt,
		AuthorityKey:    packet.AuthorityKey,
		RestrictedTo:    packet.RestrictedTo,
		Message:         packet.Message,
		Claims:          claimList(packet),
		CreatedAt:       packet.CreatedAt,
		Expired:         packet.IsExpired(now),
	}
}

func claimList(packet domain.Packet) []ClaimInfo {
	claims := make([]ClaimInfo, 0, len(packet.ClaimedBy))
	for claimant, amount := range packet.ClaimedBy {
		claims = append(claims, ClaimInfo{Claimant: claimant, Amount: amount})
	}
	sort.Slice(claims, func(x, y int) bool {
		return claims[x].Claimant < claims[y].Claimant
	})
	return claims
}

func paginate[T any](items []T, page *Page, maxSize int) ([]T, PageResp) {
	if page == nil {
		return items, PageResp{Total: len(items)}
	}
	if page.PageSize <= 0 || page.PageSize > maxSize {
		page.PageSize = maxSize
	}
	if page.PageNum <= 0 {
		page.PageNum = 1
	}
	totalCount := len(items)
	totalPages := (totalCount + page.PageSize - 1) / page.PageSize

	resp := PageResp{Current: page.PageNum, Total: totalPages}

	startIndex := (page.PageNum - 1) * page.PageSize
	if startIndex >= totalCount {
		return nil, resp
	}
	endIndex := startIndex + page.PageSize
	if endIndex > totalCount {
		endIndex = totalCount
	}
	if page.PageNum < totalPages {
		resp.Next = page.PageNum + 1
	}
	return items[startIndex:endIndex], resp
}
