package protocol

// HELLO (client -> server)
type HelloMsg struct {
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// INPUT (client -> server). Direction flags are levels; ShootStart is an edge.
type InputMsg struct {
	Seq        uint32     `json:"seq"`
	Up         bool       `json:"up,omitempty"`
	Down       bool       `json:"down,omitempty"`
	Left       bool       `json:"left,omitempty"`
	Right      bool       `json:"right,omitempty"`
	ShootStart bool       `json:"shoot_start,omitempty"`
	Facing     [2]float64 `json:"facing"`
	Emote      string     `json:"emote,omitempty"`
}

// JOINED (server -> client)
type JoinedMsg struct {
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	PlayerID        uint32 `json:"player_id"`
	TickMs          int    `json:"tick_ms"`
}

// MAP (server -> client)
type MapMsg struct {
	Name   string  `json:"name"`
	Seed   int64   `json:"seed"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UPDATE (server -> client): the per-tick delta for one client.
type UpdateMsg struct {
	Tick       uint64          `json:"tick"`
	Full       []ObjectFull    `json:"full,omitempty"`
	Partial    []ObjectPartial `json:"partial,omitempty"`
	Emotes     []Emote         `json:"emotes,omitempty"`
	Explosions []Explosion     `json:"explosions,omitempty"`
	DeletedIDs []uint32        `json:"deleted_ids,omitempty"`
	// Gone lists objects that left this client's view.
	Gone []uint32 `json:"gone,omitempty"`
}

// ALIVE_COUNTS (server -> client)
type AliveCountsMsg struct {
	Alive int `json:"alive"`
}

// KILL (server -> client)
type KillMsg struct {
	KillerID uint32 `json:"killer_id"`
	KilledID uint32 `json:"killed_id"`
	Weapon   string `json:"weapon,omitempty"`
}

// DISCONNECT (server -> client) precedes a server-initiated close.
type DisconnectMsg struct {
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

type ObjectFull struct {
	ID       uint32        `json:"id"`
	Kind     string        `json:"kind"`
	Pos      [2]float64    `json:"pos"`
	Layer    int           `json:"layer"`
	Rot      float64       `json:"rot"`
	Scale    float64       `json:"scale"`
	Dead     bool          `json:"dead,omitempty"`
	Player   *PlayerFull   `json:"player,omitempty"`
	Obstacle *ObstacleFull `json:"obstacle,omitempty"`
}

type PlayerFull struct {
	Name   string    `json:"name"`
	Health float64   `json:"health"`
	Anim   AnimState `json:"anim"`
}

type AnimState struct {
	Type string `json:"type,omitempty"`
	Seq  uint8  `json:"seq,omitempty"`
}

type ObstacleFull struct {
	Type         string  `json:"type"`
	Health       float64 `json:"health"`
	Destructible bool    `json:"destructible,omitempty"`
	Door         bool    `json:"door,omitempty"`
	Open         bool    `json:"open,omitempty"`
}

type ObjectPartial struct {
	ID  uint32     `json:"id"`
	Pos [2]float64 `json:"pos"`
	Rot float64    `json:"rot"`
}

type Emote struct {
	PlayerID uint32 `json:"player_id"`
	Type     string `json:"type"`
}

type Explosion struct {
	SourceID uint32     `json:"source_id"`
	Type     string     `json:"type"`
	Pos      [2]float64 `json:"pos"`
}

func (*HelloMsg) PacketType() string       { return TypeHello }
func (*InputMsg) PacketType() string       { return TypeInput }
func (*JoinedMsg) PacketType() string      { return TypeJoined }
func (*MapMsg) PacketType() string         { return TypeMap }
func (*UpdateMsg) PacketType() string      { return TypeUpdate }
func (*AliveCountsMsg) PacketType() string { return TypeAliveCounts }
func (*KillMsg) PacketType() string        { return TypeKill }
func (*DisconnectMsg) PacketType() string  { return TypeDisconnect }
