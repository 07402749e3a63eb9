package domain

// PacketTopic is the event-log topic carrying every packet lifecycle event.
const PacketTopic = "packets"

type EventType string

const (
	EventTypePacketCreated   EventType = "packet_created"
	EventTypePacketClaimed   EventType = "packet_claimed"
	EventTypePacketReclaimed EventType = "packet_reclaimed"
	EventTypePacketExpired   EventType = "packet_expired"
)

type Event interface {
	GetType() EventType
	GetPacketId() string
}

type PacketEvent struct {
	Id   string
	Type EventType
}

func (e PacketEvent) GetType() EventType {
	return e.Type
}

func (e PacketEvent) GetPacketId() string {
	return e.Id
}

// PacketCreated carries every immutable field of the packet so external
// indexers can reconstruct creator and recipient views without querying the
// engine by account.
type PacketCreated struct {
	PacketEvent
	Creator        string
	Asset          string
	InitialBalance uint64
	InitialShares  uint64
	RandomSplit    bool
	ExpiresAt      int64
	AuthorityKey   string
	RestrictedTo   string
	Message        string
	CreatedAt      int64
}

type PacketClaimed struct {
	PacketEvent
	Claimant  string
	Amount    uint64
	ClaimedAt int64
}

type PacketReclaimed struct {
	PacketEvent
	Creator     string
	Amount      uint64
	ReclaimedAt int64
}

type PacketExpired struct {
	PacketEvent
	ExpiredAt int64
	Balance   uint64
}
