package game

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/tuning"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failSend bool
	closed   bool
}

func (c *fakeConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send queue full")
	}
	c.frames = append(c.frames, append([]byte(nil), b...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// frame decodes the i-th frame sent to the connection.
func (c *fakeConn) frame(t *testing.T, i int) []protocol.Packet {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 {
		i += len(c.frames)
	}
	if i < 0 || i >= len(c.frames) {
		t.Fatalf("frame %d out of range (have %d)", i, len(c.frames))
	}
	pkts, err := protocol.MsgpackCodec{}.Decode(c.frames[i])
	if err != nil {
		t.Fatalf("decode frame %d: %v", i, err)
	}
	return pkts
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// lastUpdate returns the update of the most recent frame.
func (c *fakeConn) lastUpdate(t *testing.T) *protocol.UpdateMsg {
	t.Helper()
	for _, p := range c.frame(t, -1) {
		if u, ok := p.(*protocol.UpdateMsg); ok {
			return u
		}
	}
	t.Fatalf("last frame has no update")
	return nil
}

type harness struct {
	t   *testing.T
	g   *Game
	now time.Time
}

func testTuning() tuning.Tuning {
	tune := tuning.Defaults()
	tune.Obstacles = nil
	tune.Debug = true
	return tune
}

func newHarness(t *testing.T, mutate func(*tuning.Tuning), obstacles ...ObstacleSpec) *harness {
	t.Helper()
	tune := testTuning()
	if mutate != nil {
		mutate(&tune)
	}
	g, err := New(Config{
		Name:   "test",
		Seed:   1,
		Tuning: tune,
		Map:    FixedMap(obstacles),
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return &harness{t: t, g: g, now: time.Unix(1_700_000_000, 0)}
}

func (h *harness) step(joins []JoinRequest, leaves []ObjectID, inputs []InputEnvelope) {
	h.g.step(h.now, joins, leaves, inputs)
	h.now = h.now.Add(h.g.tune.TickDelta())
	h.checkAliveCount()
}

func (h *harness) tick(inputs ...InputEnvelope) { h.step(nil, nil, inputs) }

func (h *harness) leave(ids ...ObjectID) { h.step(nil, ids, nil) }

// join adds a player spawned at pos and runs the tick that admits it.
func (h *harness) join(name string, pos mgl64.Vec2) (*Player, *fakeConn) {
	h.t.Helper()
	h.g.tune.DebugSpawn = [2]float64{pos[0], pos[1]}
	conn := &fakeConn{}
	resp := make(chan JoinResponse, 1)
	h.step([]JoinRequest{{Name: name, Conn: conn, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Err != nil {
		h.t.Fatalf("join %s: %v", name, r.Err)
	}
	return h.g.Player(r.PlayerID), conn
}

func (h *harness) checkAliveCount() {
	h.t.Helper()
	n := 0
	for _, p := range h.g.active {
		if !p.dead {
			n++
		}
	}
	if n != h.g.aliveCount {
		h.t.Fatalf("alive count %d, active non-dead players %d", h.g.aliveCount, n)
	}
}

func shoot(p *Player, facing [2]float64) InputEnvelope {
	return InputEnvelope{PlayerID: p.id, Input: protocol.InputMsg{ShootStart: true, Facing: facing}}
}

func post(pos mgl64.Vec2) ObstacleSpec {
	return ObstacleSpec{
		Kind: tuning.ObstacleTuning{Type: "post", Radius: 0.5, Health: 100, Destructible: true},
		Pos:  pos,
	}
}

func fullIDs(u *protocol.UpdateMsg) []uint32 {
	out := make([]uint32, 0, len(u.Full))
	for _, o := range u.Full {
		out = append(out, o.ID)
	}
	return out
}

func partialIDs(u *protocol.UpdateMsg) []uint32 {
	out := make([]uint32, 0, len(u.Partial))
	for _, o := range u.Partial {
		out = append(out, o.ID)
	}
	return out
}

func contains(ids []uint32, id ObjectID) bool {
	for _, v := range ids {
		if v == uint32(id) {
			return true
		}
	}
	return false
}
