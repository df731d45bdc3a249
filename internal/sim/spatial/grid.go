// Package spatial indexes world objects in a uniform cell grid so visibility
// queries touch only the cells around a viewer.
package spatial

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
)

const (
	tagEntry = "entry"
	tagProbe = "probe"
)

type Grid struct {
	space   *resolv.Space
	entries map[uint32]*resolv.Object
	probe   *resolv.Object
}

func NewGrid(width, height, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 16
	}
	cell := int(math.Ceil(cellSize))
	g := &Grid{
		space:   resolv.NewSpace(int(math.Ceil(width))+cell, int(math.Ceil(height))+cell, cell, cell),
		entries: map[uint32]*resolv.Object{},
		probe:   resolv.NewObject(0, 0, 1, 1, tagProbe),
	}
	g.space.Add(g.probe)
	return g
}

func (g *Grid) Len() int { return len(g.entries) }

// Insert adds or replaces the entry for id with a box of the given half extents.
func (g *Grid) Insert(id uint32, center mgl64.Vec2, halfW, halfH float64) {
	g.Remove(id)
	obj := resolv.NewObject(center[0]-halfW, center[1]-halfH, 2*halfW, 2*halfH, tagEntry)
	obj.Data = id
	g.space.Add(obj)
	g.entries[id] = obj
}

func (g *Grid) Move(id uint32, center mgl64.Vec2) {
	obj := g.entries[id]
	if obj == nil {
		return
	}
	x, y := center[0]-obj.W/2, center[1]-obj.H/2
	if obj.X == x && obj.Y == y {
		return
	}
	obj.X, obj.Y = x, y
	obj.Update()
}

func (g *Grid) Remove(id uint32) {
	obj := g.entries[id]
	if obj == nil {
		return
	}
	g.space.Remove(obj)
	delete(g.entries, id)
}

// Query returns, in ascending order, the ids whose boxes intersect the box
// of half extents (halfW, halfH) around center.
func (g *Grid) Query(center mgl64.Vec2, halfW, halfH float64) []uint32 {
	minX, minY := center[0]-halfW, center[1]-halfH
	maxX, maxY := center[0]+halfW, center[1]+halfH

	// resolv maps the far edge with a one unit inset; pad so boxes touching the edge are found.
	g.probe.X, g.probe.Y = minX-1, minY-1
	g.probe.W, g.probe.H = 2*halfW+2, 2*halfH+2
	g.probe.Update()

	col := g.probe.Check(0, 0, tagEntry)
	if col == nil {
		return nil
	}
	seen := make(map[uint32]struct{}, len(col.Objects))
	out := make([]uint32, 0, len(col.Objects))
	for _, obj := range col.Objects {
		id, ok := obj.Data.(uint32)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if obj.X > maxX || obj.X+obj.W < minX || obj.Y > maxY || obj.Y+obj.H < minY {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
