package constraint

import (
	"github.com/duskforge/ironbody/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactPoint is a single point of contact between two bodies, produced by
// the narrow phase and cached across frames for warm starting. P1 and P2 are
// the world-space surface points on BodyA and BodyB respectively; Normal
// points from BodyA toward BodyB.
type ContactPoint struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	P1, P2 mgl64.Vec3
	Normal mgl64.Vec3

	PenetrationDepth float64
	IsRestingContact bool

	// PenetrationImpulse is the accumulated normal impulse from the previous
	// solve, carried forward for warm starting.
	PenetrationImpulse float64
}

// NewContactPoint builds a ContactPoint from a single representative contact
// position and depth, the form the narrow phase actually produces. The
// position is split along the normal by half the penetration depth to
// approximate the two distinct surface points the solver's data model wants.
func NewContactPoint(bodyA, bodyB *actor.RigidBody, position, normal mgl64.Vec3, depth float64) ContactPoint {
	half := normal.Mul(depth / 2)
	return ContactPoint{
		BodyA:            bodyA,
		BodyB:            bodyB,
		P1:               position.Sub(half),
		P2:               position.Add(half),
		Normal:           normal,
		PenetrationDepth: depth,
	}
}

// Position returns the midpoint between the point's two surface points, used
// wherever a single representative location is convenient (manifold
// clipping heuristics, debug rendering).
func (p ContactPoint) Position() mgl64.Vec3 {
	return p.P1.Add(p.P2).Mul(0.5)
}

// ContactManifold is the ordered set of contact points between the same pair
// of bodies, plus the friction state carried across frames for warm
// starting: the tangent basis and the accumulated per-manifold impulses.
type ContactManifold struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	Points []ContactPoint

	T1, T2 mgl64.Vec3

	Friction1Impulse         float64
	Friction2Impulse         float64
	FrictionTwistImpulse     float64
	RollingResistanceImpulse mgl64.Vec3
}

// Normal returns the normalized average of every point's normal, the same
// quantity setup uses to build the friction basis. Useful for callers that
// want a single representative direction without duplicating that average.
func (m *ContactManifold) Normal() mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range m.Points {
		sum = sum.Add(p.Normal)
	}
	if sum.Len() <= 1e-12 {
		return mgl64.Vec3{}
	}
	return sum.Normalize()
}

// NewContactManifold builds a manifold from a body pair and the points found
// by the narrow phase for that pair. The friction basis and impulse caches
// start zeroed; setup fills them in on first solve.
func NewContactManifold(bodyA, bodyB *actor.RigidBody, points []ContactPoint) *ContactManifold {
	return &ContactManifold{
		BodyA:  bodyA,
		BodyB:  bodyB,
		Points: points,
	}
}

// IslandView is the read/index surface the solver needs from a caller-owned
// island: the bodies and manifolds to solve, and a stable body-to-index
// mapping for the velocity arrays bound via InitVelocityArrays. Kept as an
// interface here (rather than a concrete Island type) so this package never
// imports the island package that constructs one.
type IslandView interface {
	Bodies() []*actor.RigidBody
	Manifolds() []*ContactManifold
	IndexOf(body *actor.RigidBody) (int, bool)
}

// BodyIndexFunc resolves a body to its dense velocity-array index for the
// duration of one solve.
type BodyIndexFunc func(body *actor.RigidBody) (int, bool)
