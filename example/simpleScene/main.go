package main

import (
	"fmt"

	"github.com/duskforge/ironbody"
	"github.com/duskforge/ironbody/actor"
	"github.com/duskforge/ironbody/constraint"
	"github.com/duskforge/ironbody/epa"
	"github.com/duskforge/ironbody/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionDebugger instruments the collision pipeline for a scene.
type CollisionDebugger interface {
	DebugGJK(bodyA, bodyB *actor.RigidBody, direction mgl64.Vec3)
	DebugEPA(bodyA, bodyB *actor.RigidBody, simplex *gjk.Simplex)
	DebugManifold(bodyA, bodyB *actor.RigidBody, contacts []constraint.ContactPoint)
	DebugManifoldNormal(bodyA, bodyB *actor.RigidBody, manifold *constraint.ContactManifold)
}

// SimpleDebugger prints collision internals to stdout.
type SimpleDebugger struct{}

func (d *SimpleDebugger) DebugGJK(bodyA, bodyB *actor.RigidBody, direction mgl64.Vec3) {
	fmt.Printf("GJK: A=%v B=%v dir=%v\n", bodyA.Transform.Position, bodyB.Transform.Position, direction)
}

func (d *SimpleDebugger) DebugEPA(bodyA, bodyB *actor.RigidBody, simplex *gjk.Simplex) {
	fmt.Printf("EPA: simplex points=%d\n", simplex.Count)
	for i := 0; i < simplex.Count; i++ {
		p := simplex.Points[i]
		fmt.Printf("  point %d: %v (len=%.3f)\n", i, p, p.Len())
	}
}

func (d *SimpleDebugger) DebugManifold(bodyA, bodyB *actor.RigidBody, contacts []constraint.ContactPoint) {
	fmt.Printf("Manifold: %d contact(s)\n", len(contacts))
	for i, point := range contacts {
		pos := point.Position()
		fmt.Printf("  point %d: position=%v penetration=%.6f\n", i, pos, point.PenetrationDepth)

		rA := pos.Sub(bodyA.Transform.Position)
		rB := pos.Sub(bodyB.Transform.Position)
		fmt.Printf("    rA=%v (len=%.3f) rB=%v (len=%.3f)\n", rA, rA.Len(), rB, rB.Len())
	}
}

func (d *SimpleDebugger) DebugManifoldNormal(bodyA, bodyB *actor.RigidBody, manifold *constraint.ContactManifold) {
	fmt.Printf("Contact solver input: A.v=%v A.w=%v B.v=%v B.w=%v normal=%v points=%d\n",
		bodyA.Velocity, bodyA.AngularVelocity, bodyB.Velocity, bodyB.AngularVelocity,
		manifold.Normal(), len(manifold.Points))
}

// debugGJK runs GJK against a scratch simplex and reports it to the debugger.
func debugGJK(bodyA, bodyB *actor.RigidBody, direction mgl64.Vec3, debugger CollisionDebugger) (bool, *gjk.Simplex) {
	debugger.DebugGJK(bodyA, bodyB, direction)

	simplex := &gjk.Simplex{}
	collides := gjk.GJK(bodyA, bodyB, simplex)

	return collides, simplex
}

// SetupScene builds a plane and a falling box for the demo below.
func SetupScene() (*ironbody.World, *actor.RigidBody, *actor.RigidBody, CollisionDebugger) {
	debugger := &SimpleDebugger{}
	world := &ironbody.World{
		Gravity:  mgl64.Vec3{0, -9.81, 0},
		Substeps: 1,
	}

	planeShape := &actor.Plane{
		Normal:   mgl64.Vec3{0, 1, 0},
		Distance: 0.0,
	}
	planeTransform := actor.Transform{Position: mgl64.Vec3{0, 0, 0}}
	planeBody := actor.NewRigidBody(planeTransform, planeShape, actor.BodyTypeStatic, 0.0)
	world.AddBody(planeBody)

	boxShape := &actor.Box{HalfExtents: mgl64.Vec3{1.5, 1.5, 1.5}}
	cubeTransform := actor.Transform{
		Position: mgl64.Vec3{-5.0, 5.0, -5.0},
		Rotation: mgl64.QuatRotate(70.0, mgl64.Vec3{0, 0, 1}),
	}
	cubeBody := actor.NewRigidBody(cubeTransform, boxShape, actor.BodyTypeDynamic, 1.0)
	cubeBody.Material.Restitution = 0.8
	cubeBody.Material.Friction = 0.4
	world.AddBody(cubeBody)

	return world, planeBody, cubeBody, debugger
}

// runFallingBoxDemo steps a box falling onto a plane, printing collision and
// solver state at every frame.
func runFallingBoxDemo() {
	fmt.Println("falling box demo")

	world, planeBody, cubeBody, debugger := SetupScene()

	fmt.Printf("plane at %v, cube at %v (rotation %v), gravity %v\n",
		planeBody.Transform.Position, cubeBody.Transform.Position, cubeBody.Transform.Rotation, world.Gravity)

	const dt = 1.0 / 60.0
	const maxSteps = 200

	for step := 0; step < maxSteps; step++ {
		fmt.Printf("--- step %d ---\n", step+1)
		fmt.Printf("before: pos=%v v=%v w=%v (|w|=%.3f) rot=%v\n",
			cubeBody.Transform.Position, cubeBody.Velocity, cubeBody.AngularVelocity,
			cubeBody.AngularVelocity.Len(), cubeBody.Transform.Rotation)

		direction := mgl64.Vec3{0, -1, 0}
		collides, simplex := debugGJK(planeBody, cubeBody, direction, debugger)

		if collides {
			fmt.Println("collision detected")
			debugger.DebugEPA(planeBody, cubeBody, simplex)

			manifold, err := epa.EPA(planeBody, cubeBody, simplex)
			if err == nil {
				debugger.DebugManifold(planeBody, cubeBody, manifold.Points)
				debugger.DebugManifoldNormal(planeBody, cubeBody, manifold)
			}
		} else {
			fmt.Println("no collision")
		}

		world.Step(dt)

		fmt.Printf("after: pos=%v v=%v w=%v (|w|=%.3f) rot=%v\n",
			cubeBody.Transform.Position, cubeBody.Velocity, cubeBody.AngularVelocity,
			cubeBody.AngularVelocity.Len(), cubeBody.Transform.Rotation)

		qDelta := cubeBody.Transform.Rotation.Mul(cubeBody.PreviousTransform.Rotation.Conjugate()).Normalize()
		fmt.Printf("rotation delta: %v (|V|=%.6f)\n\n", qDelta, qDelta.V.Len())
	}

	fmt.Println("done")
}

func main() {
	runFallingBoxDemo()
}
