// Package game is the authoritative simulation of one session: the object registry,
// the tick loop, melee combat and per-client delta tracking.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"skirmish.io/internal/physics"
	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/spatial"
	"skirmish.io/internal/sim/tuning"
)

var (
	ErrSessionEnded = errors.New("session ended")
	ErrSessionFull  = errors.New("session full")
)

// Conn is the outgoing side of a client connection. Send must not block; a full
// queue or a closed socket is reported as an error.
type Conn interface {
	Send(b []byte) error
	Close() error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type RecordedJoin struct {
	PlayerID ObjectID `json:"player_id"`
	Name     string   `json:"name"`
}

type TickLogEntry struct {
	SessionID    string             `json:"session_id"`
	Tick         uint64             `json:"tick"`
	Joins        []RecordedJoin     `json:"joins,omitempty"`
	Leaves       []ObjectID         `json:"leaves,omitempty"`
	Kills        []protocol.KillMsg `json:"kills,omitempty"`
	Alive        int                `json:"alive"`
	FullDirty    int                `json:"full_dirty"`
	PartialDirty int                `json:"partial_dirty"`
	StepMS       float64            `json:"step_ms"`
}

type JoinRequest struct {
	Name string
	Conn Conn
	Resp chan JoinResponse
}

type JoinResponse struct {
	PlayerID ObjectID
	Err      error
}

type InputEnvelope struct {
	PlayerID ObjectID
	Input    protocol.InputMsg
}

type Config struct {
	Name   string
	Seed   int64
	Tuning tuning.Tuning
	Codec  protocol.Codec

	// Optional collaborators; defaults are box2d, ScatterMap and time.Now.
	Engine physics.Engine
	Map    MapGenerator
	Clock  func() time.Time

	Logger *log.Logger
}

// Game is a single-threaded authoritative session.
// All simulation state must be accessed only from the session loop goroutine.
type Game struct {
	id     uuid.UUID
	name   string
	seed   int64
	tune   tuning.Tuning
	codec  protocol.Codec
	engine physics.Engine
	grid   *spatial.Grid
	rng    *rand.Rand
	now    func() time.Time
	logger *log.Logger

	objects   []WorldObject
	players   []*Player
	byID      map[ObjectID]*Player
	connected []*Player
	active    []*Player

	aliveCount int

	// Players whose connection failed during the last broadcast; removed next tick.
	failed []*Player

	tick    atomic.Uint64
	metrics atomic.Value

	tickLogger TickLogger

	join  chan JoinRequest
	leave chan ObjectID
	input chan InputEnvelope

	stop    chan struct{}
	done    chan struct{}
	endOnce sync.Once
}

func New(cfg Config) (*Game, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if cfg.Codec == nil {
		cfg.Codec = protocol.MsgpackCodec{}
	}
	if cfg.Engine == nil {
		cfg.Engine = physics.NewBox2D(cfg.Tuning.MapWidth, cfg.Tuning.MapHeight)
	}
	if cfg.Map == nil {
		cfg.Map = ScatterMap{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = "session"
	}

	id := uuid.New()
	base := cfg.Logger
	if base == nil {
		base = log.Default()
	}
	logger := log.New(base.Writer(), fmt.Sprintf("%s[%s] ", base.Prefix(), id.String()[:8]), base.Flags())

	g := &Game{
		id:     id,
		name:   cfg.Name,
		seed:   cfg.Seed,
		tune:   cfg.Tuning,
		codec:  cfg.Codec,
		engine: cfg.Engine,
		grid:   spatial.NewGrid(cfg.Tuning.MapWidth, cfg.Tuning.MapHeight, cfg.Tuning.ViewRadius),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		now:    cfg.Clock,
		logger: logger,
		byID:   map[ObjectID]*Player{},
		join:   make(chan JoinRequest, 64),
		leave:  make(chan ObjectID, 256),
		input:  make(chan InputEnvelope, 4096),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, spec := range cfg.Map.Generate(g.rng, g.tune) {
		g.addObstacle(spec)
	}
	g.publishMetrics(0)
	return g, nil
}

func (g *Game) ID() uuid.UUID         { return g.id }
func (g *Game) Name() string          { return g.name }
func (g *Game) Seed() int64           { return g.seed }
func (g *Game) Tuning() tuning.Tuning { return g.tune }
func (g *Game) CurrentTick() uint64   { return g.tick.Load() }
func (g *Game) Done() <-chan struct{} { return g.done }

func (g *Game) SetTickLogger(l TickLogger) { g.tickLogger = l }

// Join stages a join for the next tick boundary and waits for the assigned player id.
func (g *Game) Join(ctx context.Context, name string, conn Conn) (ObjectID, error) {
	req := JoinRequest{Name: name, Conn: conn, Resp: make(chan JoinResponse, 1)}
	select {
	case g.join <- req:
	case <-g.stop:
		return 0, ErrSessionEnded
	case <-g.done:
		return 0, ErrSessionEnded
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.PlayerID, resp.Err
	case <-g.done:
		return 0, ErrSessionEnded
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Leave stages the removal of a player. It never blocks once the session has ended.
func (g *Game) Leave(id ObjectID) {
	select {
	case g.leave <- id:
	case <-g.done:
	}
}

// Input stages a client input for the next tick boundary.
func (g *Game) Input(env InputEnvelope) {
	select {
	case g.input <- env:
	case <-g.done:
	}
}

// End stops the session loop. It is safe to call more than once and from any goroutine.
func (g *Game) End() {
	g.endOnce.Do(func() { close(g.stop) })
}

// Object returns the registry entry for id.
func (g *Game) Object(id ObjectID) (WorldObject, bool) {
	if int(id) >= len(g.objects) {
		return nil, false
	}
	return g.objects[id], true
}

func (g *Game) Player(id ObjectID) *Player { return g.byID[id] }

func (g *Game) AliveCount() int { return g.aliveCount }
