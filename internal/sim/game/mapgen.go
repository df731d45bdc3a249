package game

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/physics"
	"skirmish.io/internal/sim/tuning"
)

// ObstacleSpec places one obstacle of a tuned kind.
type ObstacleSpec struct {
	Kind tuning.ObstacleTuning
	Pos  mgl64.Vec2
}

// MapGenerator produces the static obstacles of a new session.
type MapGenerator interface {
	Generate(rng *rand.Rand, t tuning.Tuning) []ObstacleSpec
}

// ScatterMap places every obstacle kind uniformly inside the spawn margin.
type ScatterMap struct{}

func (ScatterMap) Generate(rng *rand.Rand, t tuning.Tuning) []ObstacleSpec {
	var out []ObstacleSpec
	for _, kind := range t.Obstacles {
		for i := 0; i < kind.Count; i++ {
			out = append(out, ObstacleSpec{Kind: kind, Pos: randomIn(rng, t)})
		}
	}
	return out
}

// FixedMap returns the given specs unchanged.
type FixedMap []ObstacleSpec

func (m FixedMap) Generate(*rand.Rand, tuning.Tuning) []ObstacleSpec { return m }

func randomIn(rng *rand.Rand, t tuning.Tuning) mgl64.Vec2 {
	m := t.SpawnMargin
	return mgl64.Vec2{
		m + rng.Float64()*(t.MapWidth-2*m),
		m + rng.Float64()*(t.MapHeight-2*m),
	}
}

func obstacleShape(k tuning.ObstacleTuning) physics.Shape {
	if k.Radius > 0 {
		return physics.Circle(mgl64.Vec2{}, k.Radius)
	}
	return physics.Rect(mgl64.Vec2{}, k.Width/2, k.Height/2)
}

func (g *Game) addObstacle(spec ObstacleSpec) *Obstacle {
	o := &Obstacle{
		object: object{
			g:     g,
			id:    ObjectID(len(g.objects)),
			kind:  KindObstacle,
			pos:   spec.Pos,
			scale: 1,
		},
		Type:         spec.Kind.Type,
		shape:        obstacleShape(spec.Kind),
		health:       spec.Kind.Health,
		maxHealth:    spec.Kind.Health,
		destructible: spec.Kind.Destructible,
		door:         spec.Kind.Door,
		explosive:    spec.Kind.Explosive,
	}
	if o.maxHealth <= 0 {
		o.health, o.maxHealth = 1, 1
	}
	o.place()
	g.objects = append(g.objects, o)
	return o
}
