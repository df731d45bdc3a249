package protocol

const Version = "1.0"

// Packet types.
const (
	TypeHello       = "HELLO"
	TypeInput       = "INPUT"
	TypeJoined      = "JOINED"
	TypeMap         = "MAP"
	TypeUpdate      = "UPDATE"
	TypeAliveCounts = "ALIVE_COUNTS"
	TypeKill        = "KILL"
	TypeDisconnect  = "DISCONNECT"
)

// Packet is any message that travels inside an Envelope.
type Packet interface {
	PacketType() string
}

// Envelope frames one packet on the wire. A burst is several envelopes back to back.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func newPacket(typ string) (Packet, bool) {
	switch typ {
	case TypeHello:
		return &HelloMsg{}, true
	case TypeInput:
		return &InputMsg{}, true
	case TypeJoined:
		return &JoinedMsg{}, true
	case TypeMap:
		return &MapMsg{}, true
	case TypeUpdate:
		return &UpdateMsg{}, true
	case TypeAliveCounts:
		return &AliveCountsMsg{}, true
	case TypeKill:
		return &KillMsg{}, true
	case TypeDisconnect:
		return &DisconnectMsg{}, true
	}
	return nil, false
}
