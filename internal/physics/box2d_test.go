package physics

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTestOverlap_Circles(t *testing.T) {
	e := NewBox2D(100, 100)
	a := Circle(mgl64.Vec2{10, 10}, 1)
	b := Circle(mgl64.Vec2{11.5, 10}, 1)

	depth, ok := e.TestOverlap(a, b)
	if !ok {
		t.Fatalf("expected overlap")
	}
	if math.Abs(depth-0.5) > 1e-9 {
		t.Fatalf("depth: got %v want 0.5", depth)
	}

	if _, ok := e.TestOverlap(a, Circle(mgl64.Vec2{13, 10}, 1)); ok {
		t.Fatalf("expected no overlap for separated circles")
	}
}

func TestTestOverlap_DeeperProbeWins(t *testing.T) {
	e := NewBox2D(100, 100)
	probe := Circle(mgl64.Vec2{0, 0}, 1)
	near, ok1 := e.TestOverlap(probe, Circle(mgl64.Vec2{0.5, 0}, 1))
	far, ok2 := e.TestOverlap(probe, Circle(mgl64.Vec2{1.5, 0}, 1))
	if !ok1 || !ok2 {
		t.Fatalf("expected both to overlap")
	}
	if near <= far {
		t.Fatalf("expected nearer target deeper: near=%v far=%v", near, far)
	}
}

func TestTestOverlap_RectAndCircleSymmetric(t *testing.T) {
	e := NewBox2D(100, 100)
	box := Rect(mgl64.Vec2{20, 20}, 2, 2)
	probe := Circle(mgl64.Vec2{22.5, 20}, 1)

	d1, ok1 := e.TestOverlap(box, probe)
	d2, ok2 := e.TestOverlap(probe, box)
	if !ok1 || !ok2 {
		t.Fatalf("expected overlap both ways")
	}
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("asymmetric depth: %v vs %v", d1, d2)
	}
	if d1 < 0.4 || d1 > 0.6 {
		t.Fatalf("depth out of range: %v", d1)
	}

	if _, ok := e.TestOverlap(Circle(mgl64.Vec2{30, 20}, 1), box); ok {
		t.Fatalf("expected no overlap")
	}
}

func TestTestOverlap_InvalidShape(t *testing.T) {
	e := NewBox2D(10, 10)
	if _, ok := e.TestOverlap(Shape{}, Circle(mgl64.Vec2{}, 1)); ok {
		t.Fatalf("expected invalid shape to never overlap")
	}
}

func TestIntegrate_MovesDynamicBody(t *testing.T) {
	e := NewBox2D(100, 100)
	id := e.CreateBody(Circle(mgl64.Vec2{50, 50}, 1), true)
	if id == NoBody {
		t.Fatalf("expected a body id")
	}
	e.SetVelocity(id, mgl64.Vec2{10, -5})
	e.Integrate(100 * time.Millisecond)

	pos, ok := e.Position(id)
	if !ok {
		t.Fatalf("missing body")
	}
	if math.Abs(pos[0]-51) > 1e-6 || math.Abs(pos[1]-49.5) > 1e-6 {
		t.Fatalf("unexpected position %v", pos)
	}

	e.RemoveBody(id)
	if _, ok := e.Position(id); ok {
		t.Fatalf("expected removed body to be gone")
	}
	e.RemoveBody(id)
}

func TestIntegrate_WallsKeepBodiesInside(t *testing.T) {
	e := NewBox2D(20, 20)
	id := e.CreateBody(Circle(mgl64.Vec2{18, 10}, 1), true)
	for i := 0; i < 60; i++ {
		e.SetVelocity(id, mgl64.Vec2{30, 0})
		e.Integrate(30 * time.Millisecond)
	}
	pos, _ := e.Position(id)
	if pos[0] > 19.1 {
		t.Fatalf("body escaped the map: %v", pos)
	}
}

func TestSetCollidable_LetsBodiesPass(t *testing.T) {
	e := NewBox2D(100, 100)
	door := e.CreateBody(Rect(mgl64.Vec2{50, 50}, 0.5, 5), false)
	e.SetCollidable(door, false)

	id := e.CreateBody(Circle(mgl64.Vec2{47, 50}, 1), true)
	for i := 0; i < 30; i++ {
		e.SetVelocity(id, mgl64.Vec2{20, 0})
		e.Integrate(30 * time.Millisecond)
	}
	pos, _ := e.Position(id)
	if pos[0] < 52 {
		t.Fatalf("expected body to pass the open door, got %v", pos)
	}
}
