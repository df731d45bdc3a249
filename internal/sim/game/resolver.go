package game

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/physics"
)

const defaultAnimationTicks = 8

// velocityFor maps the direction flags to a velocity. Diagonals are checked first;
// up is +y.
func velocityFor(in InputState, speed, diagonal float64) mgl64.Vec2 {
	switch {
	case in.Up && in.Left:
		return mgl64.Vec2{-diagonal, diagonal}
	case in.Up && in.Right:
		return mgl64.Vec2{diagonal, diagonal}
	case in.Down && in.Left:
		return mgl64.Vec2{-diagonal, -diagonal}
	case in.Down && in.Right:
		return mgl64.Vec2{diagonal, -diagonal}
	case in.Up:
		return mgl64.Vec2{0, speed}
	case in.Down:
		return mgl64.Vec2{0, -speed}
	case in.Left:
		return mgl64.Vec2{-speed, 0}
	case in.Right:
		return mgl64.Vec2{speed, 0}
	}
	return mgl64.Vec2{}
}

// resolve runs movement and combat for every active player.
func (g *Game) resolve(ts *tickState) {
	// Melee can kill players, which shrinks g.active.
	for _, p := range slices.Clone(g.active) {
		if p.dead || p.quit {
			continue
		}
		p.velocity = velocityFor(p.input, g.tune.Player.Speed, g.tune.Player.DiagonalSpeed)
		g.engine.SetVelocity(p.body, p.velocity)

		wasActive := p.anim.Active
		g.advanceAnimation(p)
		if p.input.ShootStart {
			g.tryMelee(ts, p)
			p.input.ShootStart = false
		}

		if p.anim.Active || wasActive {
			ts.MarkFull(p.id)
			p.fullObjects.Add(p.id)
		} else {
			// TODO: skip when the body has not moved since the last tick.
			ts.MarkPartial(p.id)
			p.partialObjects.Add(p.id)
		}
	}
}

func (g *Game) animationTicks() int {
	if g.tune.Melee != nil && g.tune.Melee.AnimationTicks > 0 {
		return g.tune.Melee.AnimationTicks
	}
	return defaultAnimationTicks
}

func (g *Game) advanceAnimation(p *Player) {
	if !p.anim.Active {
		return
	}
	p.anim.Elapsed++
	if p.anim.Elapsed > g.animationTicks() {
		p.resetAnimation()
	}
}

func (g *Game) tryMelee(ts *tickState, p *Player) {
	w := g.tune.Melee
	if w == nil {
		return
	}
	if ts.now.Sub(p.lastMelee) < w.Cooldown() {
		return
	}
	p.lastMelee = ts.now
	if !p.anim.Active {
		p.anim = Animation{Type: AnimMelee, Seq: 1, Active: true}
	}

	angle := math.Atan2(p.facing[1], p.facing[0])
	reach := mgl64.Rotate2D(angle).Mul2x1(mgl64.Vec2{w.Offset[0], w.Offset[1]})
	probe := physics.Circle(p.pos.Add(reach), w.Radius)

	target := g.meleeTarget(p, probe)
	if target == nil {
		return
	}
	target.Damage(ts, w.Damage, p.id)
	if target.Interactable() {
		target.Interact(ts)
	}
}

// meleeTarget returns the live object the probe penetrates deepest. Ties keep the
// lowest id.
func (g *Game) meleeTarget(attacker *Player, probe physics.Shape) WorldObject {
	var best WorldObject
	bestDepth := 0.0
	for _, o := range g.objects {
		if o.ID() == attacker.id || o.Dead() {
			continue
		}
		if !o.Damageable() && !o.Destructible() {
			continue
		}
		depth, ok := g.engine.TestOverlap(probe, o.Hitbox())
		if !ok {
			continue
		}
		if best == nil || depth > bestDepth {
			best, bestDepth = o, depth
		}
	}
	return best
}
