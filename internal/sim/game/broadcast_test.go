package game

import (
	"testing"

	"skirmish.io/internal/protocol"
)

func TestBroadcast_IdlePlayersGetPartialEveryTick(t *testing.T) {
	h := newHarness(t, nil)
	a, connA := h.join("a", mgl(100, 100))
	b, connB := h.join("b", mgl(110, 100))

	for i := 0; i < 5; i++ {
		h.tick()
		for _, c := range []*fakeConn{connA, connB} {
			u := c.lastUpdate(t)
			got := partialIDs(u)
			if !contains(got, a.id) || !contains(got, b.id) {
				t.Fatalf("tick %d: expected partial updates for both players, got %v", u.Tick, got)
			}
			if len(u.Full) != 0 {
				t.Fatalf("tick %d: unexpected full state %v", u.Tick, fullIDs(u))
			}
		}
	}
	if a.Position() != mgl(100, 100) {
		t.Fatalf("idle player moved: %v", a.Position())
	}
}

func TestBroadcast_NeverLeaksOutsideVisibility(t *testing.T) {
	h := newHarness(t, nil, post(mgl(102, 100)), post(mgl(400, 400)))
	a, connA := h.join("a", mgl(100, 100))
	far, _ := h.join("far", mgl(400, 410))

	for i := 0; i < 10; i++ {
		h.tick(shoot(a, [2]float64{1, 0}), shoot(far, [2]float64{0, -1}))
		u := connA.lastUpdate(t)
		for _, id := range append(fullIDs(u), partialIDs(u)...) {
			if !a.Sees(ObjectID(id)) {
				t.Fatalf("tick %d: id %d sent outside the visibility set", u.Tick, id)
			}
		}
		if contains(partialIDs(u), far.id) || contains(fullIDs(u), far.id) || contains(fullIDs(u), 1) {
			t.Fatalf("tick %d: far objects leaked", u.Tick)
		}
	}
}

func TestBroadcast_NewlyVisibleObjectsSentFull(t *testing.T) {
	h := newHarness(t, nil)
	a, connA := h.join("a", mgl(100, 100))
	// Outside a's view until it walks right.
	b, _ := h.join("b", mgl(166, 100))
	if a.Sees(b.id) {
		t.Fatalf("b should start outside the view")
	}

	move := InputEnvelope{PlayerID: a.id, Input: protocol.InputMsg{Right: true, Facing: [2]float64{1, 0}}}
	h.tick(move)
	for i := 0; i < 10 && !a.Sees(b.id); i++ {
		h.tick()
	}
	if !a.Sees(b.id) {
		t.Fatalf("expected b visible after moving, a at %v", a.Position())
	}
	if !contains(fullIDs(connA.lastUpdate(t)), b.id) {
		t.Fatalf("expected full state for a newly visible player")
	}
	h.tick()
	if u := connA.lastUpdate(t); contains(fullIDs(u), b.id) || !contains(partialIDs(u), b.id) {
		t.Fatalf("expected partial state once b is known")
	}
}

func TestBroadcast_EmotesReachEveryConnectedPlayer(t *testing.T) {
	h := newHarness(t, nil)
	a, _ := h.join("a", mgl(100, 100))
	_, connFar := h.join("far", mgl(500, 500))

	h.tick(InputEnvelope{PlayerID: a.id, Input: protocol.InputMsg{Emote: "wave", Facing: [2]float64{1, 0}}})
	u := connFar.lastUpdate(t)
	if len(u.Emotes) != 1 || u.Emotes[0].PlayerID != uint32(a.id) || u.Emotes[0].Type != "wave" {
		t.Fatalf("unexpected emotes %+v", u.Emotes)
	}
	h.tick()
	if u := connFar.lastUpdate(t); len(u.Emotes) != 0 {
		t.Fatalf("emotes must not carry over, got %+v", u.Emotes)
	}
}

func TestBroadcast_AliveCountsOnlyWhenChanged(t *testing.T) {
	h := newHarness(t, nil)
	_, connA := h.join("a", mgl(100, 100))
	h.join("b", mgl(110, 100))

	hasAlive := func() bool {
		for _, p := range connA.frame(t, -1) {
			if _, ok := p.(*protocol.AliveCountsMsg); ok {
				return true
			}
		}
		return false
	}
	if !hasAlive() {
		t.Fatalf("expected alive counts on the tick b joined")
	}
	h.tick()
	if hasAlive() {
		t.Fatalf("unexpected alive counts on a quiet tick")
	}
}

func TestBroadcast_QuietTickSkipsVisibilityRefresh(t *testing.T) {
	h := newHarness(t, nil)
	killer, _ := h.join("killer", mgl(100, 100))
	victim, conn := h.join("victim", mgl(102.5, 100))
	for i := 0; !victim.Dead() && i < 10; i++ {
		h.tick(shoot(killer, [2]float64{1, 0}))
		h.now = h.now.Add(h.g.tune.Melee.Cooldown())
	}
	h.leave(killer.id)
	h.tick()

	// Nothing is active and the dead viewer does not move: no object work this tick.
	o := h.g.addObstacle(post(mgl(98, 100)))
	h.tick()
	if victim.Sees(o.id) {
		t.Fatalf("visibility refreshed on a quiet tick")
	}
	u := conn.lastUpdate(t)
	if len(u.Full) != 0 || len(u.Partial) != 0 {
		t.Fatalf("expected an empty update, got full=%v partial=%v", fullIDs(u), partialIDs(u))
	}
}
