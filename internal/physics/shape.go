package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota + 1
	ShapeRect
)

// Shape is a world-space collision shape. Rectangles are axis-aligned.
type Shape struct {
	Kind   ShapeKind
	Center mgl64.Vec2
	Radius float64
	HalfW  float64
	HalfH  float64
}

func Circle(center mgl64.Vec2, radius float64) Shape {
	return Shape{Kind: ShapeCircle, Center: center, Radius: radius}
}

func Rect(center mgl64.Vec2, halfW, halfH float64) Shape {
	return Shape{Kind: ShapeRect, Center: center, HalfW: halfW, HalfH: halfH}
}

// At returns the same shape centered on pos.
func (s Shape) At(pos mgl64.Vec2) Shape {
	s.Center = pos
	return s
}

// Scaled returns the shape with its extents multiplied by k.
func (s Shape) Scaled(k float64) Shape {
	s.Radius *= k
	s.HalfW *= k
	s.HalfH *= k
	return s
}

// Bounds returns the half extents of the shape's bounding box.
func (s Shape) Bounds() (halfW, halfH float64) {
	if s.Kind == ShapeCircle {
		return s.Radius, s.Radius
	}
	return s.HalfW, s.HalfH
}

func (s Shape) Valid() bool {
	switch s.Kind {
	case ShapeCircle:
		return s.Radius > 0 && !math.IsNaN(s.Radius)
	case ShapeRect:
		return s.HalfW > 0 && s.HalfH > 0
	}
	return false
}
