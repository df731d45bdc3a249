package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/physics"
	"skirmish.io/internal/protocol"
)

// ObjectID is the index of an object in the session registry. It is never reused.
type ObjectID uint32

type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindObstacle
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindObstacle:
		return "obstacle"
	}
	return "unknown"
}

// WorldObject is anything registered in a session. Behavior is selected through the
// capability predicates, never by concrete type.
//
// All methods must be called from the session loop goroutine.
type WorldObject interface {
	ID() ObjectID
	Kind() Kind
	Position() mgl64.Vec2
	Layer() int
	Orientation() float64
	Scale() float64
	Dead() bool

	Damageable() bool
	Destructible() bool
	Interactable() bool

	Hitbox() physics.Shape
	// Damage applies amount and reports whether the object died from it.
	Damage(ts *tickState, amount float64, source ObjectID) (killed bool)
	// Interact runs the object's interaction (doors toggle).
	Interact(ts *tickState)

	SerializePartial() protocol.ObjectPartial
	SerializeFull() protocol.ObjectFull
}

// object carries the state shared by every kind.
type object struct {
	g *Game

	id    ObjectID
	kind  Kind
	pos   mgl64.Vec2
	layer int
	rot   float64
	scale float64
	dead  bool
	body  physics.BodyID
}

func (o *object) ID() ObjectID         { return o.id }
func (o *object) Kind() Kind           { return o.kind }
func (o *object) Position() mgl64.Vec2 { return o.pos }
func (o *object) Layer() int           { return o.layer }
func (o *object) Orientation() float64 { return o.rot }
func (o *object) Scale() float64       { return o.scale }
func (o *object) Dead() bool           { return o.dead }

func (o *object) Interact(ts *tickState) {}

func (o *object) removeBody() {
	if o.body == physics.NoBody {
		return
	}
	o.g.engine.RemoveBody(o.body)
	o.body = physics.NoBody
}

func (o *object) partial() protocol.ObjectPartial {
	return protocol.ObjectPartial{ID: uint32(o.id), Pos: vec(o.pos), Rot: o.rot}
}

func (o *object) full() protocol.ObjectFull {
	return protocol.ObjectFull{
		ID:    uint32(o.id),
		Kind:  o.kind.String(),
		Pos:   vec(o.pos),
		Layer: o.layer,
		Rot:   o.rot,
		Scale: o.scale,
		Dead:  o.dead,
	}
}

func vec(v mgl64.Vec2) [2]float64 { return [2]float64{v[0], v[1]} }

// Obstacle is a static map object: trees, stones, crates, barrels and doors.
type Obstacle struct {
	object

	Type         string
	shape        physics.Shape // centered at the origin, unscaled
	health       float64
	maxHealth    float64
	destructible bool
	door         bool
	open         bool
	explosive    bool
}

const minObstacleScale = 0.5

// Doors can be hit to toggle them even though they never break.
func (o *Obstacle) Damageable() bool   { return o.destructible || o.door }
func (o *Obstacle) Destructible() bool { return o.destructible }
func (o *Obstacle) Interactable() bool { return o.door }
func (o *Obstacle) Open() bool         { return o.open }
func (o *Obstacle) Health() float64    { return o.health }

func (o *Obstacle) Hitbox() physics.Shape {
	return o.shape.Scaled(o.scale).At(o.pos)
}

func (o *Obstacle) Damage(ts *tickState, amount float64, source ObjectID) bool {
	if o.dead || !o.destructible {
		return false
	}
	o.health = math.Max(0, o.health-amount)
	if o.health > 0 {
		if scale := math.Max(minObstacleScale, o.health/o.maxHealth); scale != o.scale {
			o.scale = scale
			o.place()
		}
		ts.MarkFull(o.id)
		return false
	}
	o.dead = true
	o.removeBody()
	ts.MarkFull(o.id)
	if o.explosive {
		ts.explosions = append(ts.explosions, protocol.Explosion{SourceID: uint32(o.id), Type: o.Type, Pos: vec(o.pos)})
	}
	return true
}

// place (re)creates the collision body and grid entry from the current hitbox,
// so movement, visibility and melee agree on the obstacle's size.
func (o *Obstacle) place() {
	o.removeBody()
	hb := o.Hitbox()
	o.body = o.g.engine.CreateBody(hb, false)
	hw, hh := hb.Bounds()
	o.g.grid.Insert(uint32(o.id), o.pos, hw, hh)
}

func (o *Obstacle) Interact(ts *tickState) {
	if o.dead || !o.door {
		return
	}
	o.open = !o.open
	o.g.engine.SetCollidable(o.body, !o.open)
	ts.MarkFull(o.id)
}

func (o *Obstacle) SerializePartial() protocol.ObjectPartial { return o.partial() }

func (o *Obstacle) SerializeFull() protocol.ObjectFull {
	f := o.full()
	f.Obstacle = &protocol.ObstacleFull{
		Type:         o.Type,
		Health:       o.health,
		Destructible: o.destructible,
		Door:         o.door,
		Open:         o.open,
	}
	return f
}
