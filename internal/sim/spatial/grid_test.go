package spatial

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestGrid_QueryReturnsIntersectingSorted(t *testing.T) {
	g := NewGrid(200, 200, 16)
	g.Insert(3, mgl64.Vec2{50, 50}, 1, 1)
	g.Insert(1, mgl64.Vec2{60, 55}, 2, 2)
	g.Insert(2, mgl64.Vec2{150, 150}, 1, 1)

	got := g.Query(mgl64.Vec2{55, 50}, 20, 20)
	if want := []uint32{1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("query: got %v want %v", got, want)
	}
}

func TestGrid_BoxEdgeCountsAsVisible(t *testing.T) {
	g := NewGrid(200, 200, 16)
	g.Insert(7, mgl64.Vec2{81, 50}, 1, 1)

	if got := g.Query(mgl64.Vec2{50, 50}, 30, 30); len(got) != 1 {
		t.Fatalf("expected touching box to be visible, got %v", got)
	}
	if got := g.Query(mgl64.Vec2{50, 50}, 29, 29); len(got) != 0 {
		t.Fatalf("expected box out of range, got %v", got)
	}
}

func TestGrid_MoveAndRemove(t *testing.T) {
	g := NewGrid(200, 200, 16)
	g.Insert(4, mgl64.Vec2{10, 10}, 1, 1)
	g.Move(4, mgl64.Vec2{180, 180})

	if got := g.Query(mgl64.Vec2{10, 10}, 5, 5); len(got) != 0 {
		t.Fatalf("expected moved entry gone from old area, got %v", got)
	}
	if got := g.Query(mgl64.Vec2{180, 180}, 5, 5); !reflect.DeepEqual(got, []uint32{4}) {
		t.Fatalf("expected moved entry at new area, got %v", got)
	}

	g.Remove(4)
	g.Remove(4)
	if g.Len() != 0 {
		t.Fatalf("expected empty grid, got %d", g.Len())
	}
	if got := g.Query(mgl64.Vec2{180, 180}, 5, 5); len(got) != 0 {
		t.Fatalf("expected removed entry not returned, got %v", got)
	}
}

func TestGrid_InsertReplaces(t *testing.T) {
	g := NewGrid(100, 100, 10)
	g.Insert(1, mgl64.Vec2{10, 10}, 1, 1)
	g.Insert(1, mgl64.Vec2{90, 90}, 1, 1)
	if g.Len() != 1 {
		t.Fatalf("expected one entry, got %d", g.Len())
	}
	if got := g.Query(mgl64.Vec2{10, 10}, 3, 3); len(got) != 0 {
		t.Fatalf("stale entry returned: %v", got)
	}
}
