package ports

import "context"

type Topic string

const (
	PacketCreatedAlertTopic Topic = "PacketCreated"
	PacketClaimedAlertTopic Topic = "PacketClaimed"
	PacketExpiredAlertTopic Topic = "PacketExpired"
)

type Alerts interface {
	Publish(ctx context.Context, topic Topic, message any) error
}

type PacketCreatedAlert struct {
	Id      string
	Creator string
	Asset   string
	Amount  uint64
	Shares  uint64
}

type PacketClaimedAlert struct {
	Id       string
	Claimant string
	Amount   uint64
}

type PacketExpiredAlert struct {
	Id      string
	Creator string
	Balance uint64
}
