// Package physics is the rigid-body collaborator of the simulation: body lifecycle,
// velocities, fixed-step integration and narrow-phase overlap queries.
package physics

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

type BodyID uint32

// NoBody is never returned by CreateBody.
const NoBody BodyID = 0

type Engine interface {
	CreateBody(shape Shape, dynamic bool) BodyID
	RemoveBody(id BodyID)
	SetVelocity(id BodyID, v mgl64.Vec2)
	// SetCollidable toggles whether the body blocks other bodies. Queries ignore it.
	SetCollidable(id BodyID, on bool)
	Position(id BodyID) (mgl64.Vec2, bool)
	Integrate(dt time.Duration)
	// TestOverlap reports the penetration depth of a into b, if they overlap.
	TestOverlap(a, b Shape) (depth float64, ok bool)
}
