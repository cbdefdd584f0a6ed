package ironbody

import (
	"github.com/duskforge/ironbody/actor"
	"github.com/duskforge/ironbody/constraint"
	"github.com/duskforge/ironbody/island"
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_WORKERS = 1

// DefaultSolverIterations is the number of PGS sweeps run per substep when
// World.SolverIterations is left at zero.
const DefaultSolverIterations = 10

type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s², or N/kg)
	Gravity     mgl64.Vec3
	Substeps    int
	SpatialGrid *SpatialGrid
	Workers     int

	// SolverIterations is the number of PGS sweeps the constraint solver
	// runs each substep. Zero uses DefaultSolverIterations.
	SolverIterations int
	// SolverConfig carries the Baumgarte/slop/restitution coefficients
	// passed to every substep's Solver. Zero value falls back to
	// constraint.NewDefaultSolverConfig.
	SolverConfig constraint.SolverConfig

	Events Events

	solver   *constraint.Solver
	linVel   []mgl64.Vec3
	angVel   []mgl64.Vec3
	splitLin []mgl64.Vec3
	splitAng []mgl64.Vec3
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	w.Bodies = append(w.Bodies, body)
}

// RemoveBody removes a rigid body from the world
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, b := range w.Bodies {
		if b == body {
			k = i
			break
		}
	}

	if k != -1 {
		w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	}

	delete(w.Events.sleepStates, body)
	for pair := range w.Events.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(w.Events.previousActivePairs, pair)
		}
	}
}

func (w *World) ensureSolver() {
	if w.solver == nil {
		cfg := w.SolverConfig
		if cfg == (constraint.SolverConfig{}) {
			cfg = constraint.NewDefaultSolverConfig()
		}
		w.solver = constraint.NewSolver(cfg)
	}
}

func (w *World) Step(dt float64) {
	w.Workers = max(DEFAULT_WORKERS, w.Workers)
	w.ensureSolver()
	h := dt / float64(w.Substeps)

	for i := 0; i < w.Substeps; i++ {
		task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
			body.IntegrateForces(h, w.Gravity)
		})

		manifolds := w.detectCollision()
		manifolds = w.Events.recordCollisions(manifolds)

		w.solveConstraints(h, manifolds)

		task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
			body.IntegratePosition(h)
		})

		w.trySleep(h)
	}

	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()
}

func (w *World) detectCollision() []*constraint.ContactManifold {
	return NarrowPhase(BroadPhase(w.SpatialGrid, w.Bodies, w.Workers), w.Workers)
}

// solveConstraints partitions the substep's manifolds into islands and runs
// the sequential-impulse solver over each one independently, writing the
// resolved velocities and split-impulse position correction back onto the
// bodies. Trigger pairs never reach here: recordCollisions already dropped
// them from the manifold slice.
func (w *World) solveConstraints(h float64, manifolds []*constraint.ContactManifold) {
	if len(manifolds) == 0 {
		return
	}

	builder := island.NewBuilder()
	for _, body := range w.Bodies {
		builder.AddBody(body)
	}
	for _, m := range manifolds {
		builder.AddManifold(m)
	}

	iterations := w.SolverIterations
	if iterations <= 0 {
		iterations = DefaultSolverIterations
	}

	for _, isl := range builder.Build() {
		w.solveIsland(h, isl, iterations)
	}
}

func (w *World) solveIsland(h float64, isl *island.Island, iterations int) {
	bodies := isl.Bodies()
	n := len(bodies)

	if cap(w.linVel) < n {
		w.linVel = make([]mgl64.Vec3, n)
		w.angVel = make([]mgl64.Vec3, n)
		w.splitLin = make([]mgl64.Vec3, n)
		w.splitAng = make([]mgl64.Vec3, n)
	}
	linVel := w.linVel[:n]
	angVel := w.angVel[:n]
	splitLin := w.splitLin[:n]
	splitAng := w.splitAng[:n]

	for i, b := range bodies {
		linVel[i] = b.Velocity
		angVel[i] = b.AngularVelocity
		splitLin[i] = mgl64.Vec3{}
		splitAng[i] = mgl64.Vec3{}
	}

	w.solver.InitVelocityArrays(linVel, angVel, splitLin, splitAng, isl.IndexOf)
	if err := w.solver.InitializeForIsland(h, isl); err != nil {
		return
	}

	w.solver.WarmStart()
	for iter := 0; iter < iterations; iter++ {
		w.solver.ResetTotalPenetrationImpulse()
		w.solver.SolvePenetrationConstraints()
		w.solver.SolveFrictionConstraints()
	}
	w.solver.StoreImpulses()
	w.solver.Cleanup()

	for i, b := range bodies {
		if b.BodyType != actor.BodyTypeDynamic {
			continue
		}
		b.Velocity = linVel[i]
		b.AngularVelocity = angVel[i]
		b.ApplySplitCorrection(splitLin[i], splitAng[i], h)
	}
}

// trySleep sets the body to sleep if its velocity is lower than the threshold, for a given duration
// this method is too simple to use a task, it slows down in multiple goroutines
func (w *World) trySleep(h float64) {
	for _, body := range w.Bodies {
		body.TrySleep(h, 0.1, 0.05)
	}
}
