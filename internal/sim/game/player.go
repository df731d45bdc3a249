package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/physics"
	"skirmish.io/internal/protocol"
)

type AnimType uint8

const (
	AnimNone AnimType = iota
	AnimMelee
)

func (a AnimType) String() string {
	if a == AnimMelee {
		return "melee"
	}
	return ""
}

type Animation struct {
	Type    AnimType
	Seq     uint8
	Elapsed int
	Active  bool
}

// InputState holds the intent flags staged from the client. Direction flags are
// levels; ShootStart is an edge consumed by the resolver.
type InputState struct {
	Up, Down, Left, Right bool
	ShootStart            bool
}

type Player struct {
	object

	Name string

	input     InputState
	facing    mgl64.Vec2
	velocity  mgl64.Vec2
	lastMelee time.Time
	anim      Animation
	health    float64
	radius    float64

	visible        map[ObjectID]struct{}
	fullObjects    idSet
	partialObjects idSet
	gone           []ObjectID

	conn       Conn
	quit       bool
	connFailed bool
}

func (p *Player) Damageable() bool   { return !p.quit }
func (p *Player) Destructible() bool { return false }
func (p *Player) Interactable() bool { return false }

func (p *Player) Health() float64      { return p.health }
func (p *Player) Animation() Animation { return p.anim }
func (p *Player) Facing() mgl64.Vec2   { return p.facing }
func (p *Player) Quit() bool           { return p.quit }
func (p *Player) Moving() bool         { return p.velocity != (mgl64.Vec2{}) }

// Sees reports whether id is in the player's visibility set.
func (p *Player) Sees(id ObjectID) bool {
	_, ok := p.visible[id]
	return ok
}

func (p *Player) Hitbox() physics.Shape {
	return physics.Circle(p.pos, p.radius*p.scale)
}

func (p *Player) Damage(ts *tickState, amount float64, source ObjectID) bool {
	if p.dead || p.quit {
		return false
	}
	p.health = math.Max(0, p.health-amount)
	ts.MarkFull(p.id)
	if p.health > 0 {
		return false
	}
	p.g.killPlayer(ts, p, source)
	return true
}

func (p *Player) SerializePartial() protocol.ObjectPartial { return p.partial() }

func (p *Player) SerializeFull() protocol.ObjectFull {
	f := p.full()
	f.Player = &protocol.PlayerFull{
		Name:   p.Name,
		Health: p.health,
		Anim:   protocol.AnimState{Type: p.anim.Type.String(), Seq: p.anim.Seq},
	}
	return f
}

func (p *Player) applyInput(in protocol.InputMsg) {
	p.input.Up, p.input.Down = in.Up, in.Down
	p.input.Left, p.input.Right = in.Left, in.Right
	p.input.ShootStart = p.input.ShootStart || in.ShootStart

	f := mgl64.Vec2{in.Facing[0], in.Facing[1]}
	if l := f.Len(); l > 0 && !math.IsNaN(l) && !math.IsInf(l, 0) {
		p.facing = f.Mul(1 / l)
		p.rot = math.Atan2(p.facing[1], p.facing[0])
	}
}

func (p *Player) resetAnimation() {
	p.anim = Animation{}
}
