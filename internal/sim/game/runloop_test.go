package game

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/tuning"
)

type recordingTickLogger struct {
	entries []TickLogEntry
}

func (r *recordingTickLogger) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestNew_AssignsSessionIdentity(t *testing.T) {
	a := newHarness(t, nil).g
	b := newHarness(t, nil).g
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct session ids")
	}
	if a.ID().Version() != 4 {
		t.Fatalf("expected a v4 uuid, got %v", a.ID().Version())
	}
}

func TestNew_ScatterMapPlacesObstacles(t *testing.T) {
	tune := testTuning()
	tune.Obstacles = []tuning.ObstacleTuning{{Type: "tree", Count: 7, Radius: 2, Health: 10, Destructible: true}}
	g, err := New(Config{Seed: 3, Tuning: tune, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.objects) != 7 {
		t.Fatalf("expected 7 obstacles, got %d", len(g.objects))
	}
	for _, o := range g.objects {
		p := o.Position()
		if p[0] < tune.SpawnMargin || p[0] > tune.MapWidth-tune.SpawnMargin {
			t.Fatalf("obstacle outside the margin: %v", p)
		}
	}
}

func TestStep_TickLogRecordsLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	rec := &recordingTickLogger{}
	h.g.SetTickLogger(rec)

	a, _ := h.join("a", mgl(100, 100))
	h.leave(a.id)

	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rec.entries))
	}
	if j := rec.entries[0].Joins; len(j) != 1 || j[0].PlayerID != a.id || j[0].Name != "a" {
		t.Fatalf("unexpected joins %+v", j)
	}
	if l := rec.entries[1].Leaves; len(l) != 1 || l[0] != a.id {
		t.Fatalf("unexpected leaves %+v", l)
	}
	if rec.entries[0].Tick+1 != rec.entries[1].Tick || rec.entries[1].SessionID != h.g.ID().String() {
		t.Fatalf("unexpected entries %+v", rec.entries)
	}
	if m := h.g.Metrics(); m.Tick != 2 || m.Players != 1 || m.Connected != 0 || m.Alive != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestStep_InputLastWinsShootIsSticky(t *testing.T) {
	h := newHarness(t, nil)
	a, _ := h.join("a", mgl(100, 100))

	h.tick(
		InputEnvelope{PlayerID: a.id, Input: protocol.InputMsg{Seq: 1, Up: true, ShootStart: true, Facing: [2]float64{0, 1}}},
		InputEnvelope{PlayerID: a.id, Input: protocol.InputMsg{Seq: 2, Left: true}},
	)
	if a.velocity != mgl(-h.g.tune.Player.Speed, 0) {
		t.Fatalf("expected the last input to win, velocity %v", a.velocity)
	}
	if !a.Animation().Active {
		t.Fatalf("expected the earlier shoot press to be kept")
	}
	if a.Facing() != mgl(0, 1) {
		t.Fatalf("zero facing must not override, got %v", a.Facing())
	}
}

func TestRun_JoinTickEnd(t *testing.T) {
	tune := testTuning()
	tune.TickMs = 5
	g, err := New(Config{Name: "run", Tuning: tune, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()

	conn := &fakeConn{}
	id, err := g.Join(ctx, "a", conn)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	g.Input(InputEnvelope{PlayerID: id, Input: protocol.InputMsg{Right: true}})

	deadline := time.Now().Add(2 * time.Second)
	for conn.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.count() < 5 {
		t.Fatalf("expected ticks to be broadcast, got %d frames", conn.count())
	}

	g.End()
	g.End()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if !conn.isClosed() {
		t.Fatalf("expected connections closed on end")
	}
	if _, err := g.Join(ctx, "late", &fakeConn{}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	g.Leave(id)
	g.Input(InputEnvelope{PlayerID: id})
}

func TestRun_ContextCancelStops(t *testing.T) {
	g := newHarness(t, nil).g
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()
	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	<-g.Done()
}
