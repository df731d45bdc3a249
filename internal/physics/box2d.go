package physics

import (
	"math"
	"time"

	"github.com/bytearena/box2d"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	velocityIterations = 8
	positionIterations = 3

	wallThickness = 1.0
)

// Box2D is an Engine backed by a zero-gravity box2d world enclosed by static walls.
// It is not safe for concurrent use; the owning session loop is its only caller.
type Box2D struct {
	world  box2d.B2World
	bodies map[BodyID]*box2d.B2Body
	next   BodyID
}

func NewBox2D(width, height float64) *Box2D {
	e := &Box2D{
		world:  box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)),
		bodies: map[BodyID]*box2d.B2Body{},
	}
	hw, hh := width/2, height/2
	walls := []Shape{
		Rect(mgl64.Vec2{hw, -wallThickness / 2}, hw+wallThickness, wallThickness/2),
		Rect(mgl64.Vec2{hw, height + wallThickness/2}, hw+wallThickness, wallThickness/2),
		Rect(mgl64.Vec2{-wallThickness / 2, hh}, wallThickness/2, hh+wallThickness),
		Rect(mgl64.Vec2{width + wallThickness/2, hh}, wallThickness/2, hh+wallThickness),
	}
	for _, w := range walls {
		e.CreateBody(w, false)
	}
	return e
}

func (e *Box2D) CreateBody(shape Shape, dynamic bool) BodyID {
	def := box2d.MakeB2BodyDef()
	if dynamic {
		def.Type = box2d.B2BodyType.B2_dynamicBody
	} else {
		def.Type = box2d.B2BodyType.B2_staticBody
	}
	def.Position = toB2(shape.Center)
	def.FixedRotation = true

	body := e.world.CreateBody(&def)
	switch shape.Kind {
	case ShapeCircle:
		c := box2d.MakeB2CircleShape()
		c.M_radius = shape.Radius
		body.CreateFixture(&c, 1.0)
	case ShapeRect:
		p := box2d.MakeB2PolygonShape()
		p.SetAsBox(shape.HalfW, shape.HalfH)
		body.CreateFixture(&p, 1.0)
	}

	e.next++
	e.bodies[e.next] = body
	return e.next
}

func (e *Box2D) RemoveBody(id BodyID) {
	body := e.bodies[id]
	if body == nil {
		return
	}
	e.world.DestroyBody(body)
	delete(e.bodies, id)
}

func (e *Box2D) SetVelocity(id BodyID, v mgl64.Vec2) {
	if body := e.bodies[id]; body != nil {
		body.SetLinearVelocity(toB2(v))
	}
}

func (e *Box2D) SetCollidable(id BodyID, on bool) {
	body := e.bodies[id]
	if body == nil {
		return
	}
	for f := body.GetFixtureList(); f != nil; f = f.GetNext() {
		f.SetSensor(!on)
	}
}

func (e *Box2D) Position(id BodyID) (mgl64.Vec2, bool) {
	body := e.bodies[id]
	if body == nil {
		return mgl64.Vec2{}, false
	}
	return fromB2(body.GetPosition()), true
}

func (e *Box2D) Integrate(dt time.Duration) {
	if dt <= 0 {
		return
	}
	e.world.Step(dt.Seconds(), velocityIterations, positionIterations)
}

func (e *Box2D) TestOverlap(a, b Shape) (float64, bool) {
	if !a.Valid() || !b.Valid() {
		return 0, false
	}
	xfA := transformAt(a.Center)
	xfB := transformAt(b.Center)

	var m box2d.B2Manifold
	var radiusA, radiusB float64
	switch {
	case a.Kind == ShapeCircle && b.Kind == ShapeCircle:
		ca, cb := circleShape(a), circleShape(b)
		box2d.B2CollideCircles(&m, &ca, xfA, &cb, xfB)
		radiusA, radiusB = ca.M_radius, cb.M_radius
	case a.Kind == ShapeRect && b.Kind == ShapeCircle:
		pa, cb := boxShape(a), circleShape(b)
		box2d.B2CollidePolygonAndCircle(&m, &pa, xfA, &cb, xfB)
		radiusA, radiusB = pa.M_radius, cb.M_radius
	case a.Kind == ShapeCircle && b.Kind == ShapeRect:
		// box2d only collides polygon-first; the separation is symmetric.
		pb, ca := boxShape(b), circleShape(a)
		box2d.B2CollidePolygonAndCircle(&m, &pb, xfB, &ca, xfA)
		xfA, xfB = xfB, xfA
		radiusA, radiusB = pb.M_radius, ca.M_radius
	default:
		pa, pb := boxShape(a), boxShape(b)
		box2d.B2CollidePolygons(&m, &pa, xfA, &pb, xfB)
		radiusA, radiusB = pa.M_radius, pb.M_radius
	}
	if m.PointCount == 0 {
		return 0, false
	}

	wm := box2d.MakeB2WorldManifold()
	wm.Initialize(&m, xfA, radiusA, xfB, radiusB)
	sep := math.Inf(1)
	for i := 0; i < m.PointCount; i++ {
		sep = math.Min(sep, wm.Separations[i])
	}
	if sep >= 0 {
		return 0, false
	}
	return -sep, true
}

func circleShape(s Shape) box2d.B2CircleShape {
	c := box2d.MakeB2CircleShape()
	c.M_radius = s.Radius
	return c
}

func boxShape(s Shape) box2d.B2PolygonShape {
	p := box2d.MakeB2PolygonShape()
	p.SetAsBox(s.HalfW, s.HalfH)
	return p
}

func transformAt(pos mgl64.Vec2) box2d.B2Transform {
	xf := box2d.MakeB2Transform()
	xf.Set(toB2(pos), 0)
	return xf
}

func toB2(v mgl64.Vec2) box2d.B2Vec2 { return box2d.MakeB2Vec2(v[0], v[1]) }

func fromB2(v box2d.B2Vec2) mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }
