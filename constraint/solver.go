// Package constraint implements the iterative contact solver: given contact
// manifolds from a narrow phase, it resolves interpenetration and friction
// between rigid bodies in one island via sequential-impulse Projected
// Gauss-Seidel with warm starting and split-impulse position correction.
package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// penetrationConstraint is the solver-owned non-penetration row for one
// contact point. frictionIndex links back to the parent FrictionConstraint
// by index rather than pointer, per the index-addressed scratch layout an
// Island owns for its bodies and manifolds.
type penetrationConstraint struct {
	i1, i2       int
	m1Inv, m2Inv float64
	I1inv, I2inv mgl64.Mat3

	n          mgl64.Vec3
	r1, r2     mgl64.Vec3
	r1xn, r2xn mgl64.Vec3
	kNInv      float64

	restitution     float64
	restitutionBias float64

	penetrationDepth float64
	isResting        bool

	lambda      float64
	lambdaSplit float64

	frictionIndex int
	point         *ContactPoint
}

// frictionConstraint is the solver-owned per-manifold friction row: two
// tangent directions, twist about the normal, and rolling resistance, all
// sharing the running penetration-impulse sum that bounds their cones.
type frictionConstraint struct {
	i1, i2       int
	m1Inv, m2Inv float64
	I1inv, I2inv mgl64.Mat3

	friction          float64
	rollingResistance float64

	r1F, r2F mgl64.Vec3
	n        mgl64.Vec3
	t1, t2   mgl64.Vec3

	r1xt1, r1xt2 mgl64.Vec3
	r2xt1, r2xt2 mgl64.Vec3

	k1Inv, k2Inv, kTwistInv float64
	kRoll                   mgl64.Mat3

	t1Old, t2Old mgl64.Vec3

	lambda1, lambda2, lambdaTwist float64
	lambdaRoll                    mgl64.Vec3

	sumLambdaN    float64
	hasAnyResting bool

	manifold *ContactManifold
}

// Solver runs one island's PGS iteration. It holds no state between islands
// beyond its configuration and reusable scratch slices: InitializeForIsland
// rebuilds the constraint arrays every call, and Cleanup releases the
// borrowed velocity arrays at the end of a solve.
type Solver struct {
	cfg SolverConfig

	warmStarting bool
	splitImpulse bool

	dt float64

	linVel, angVel           []mgl64.Vec3
	splitLinVel, splitAngVel []mgl64.Vec3
	bodyIndex                BodyIndexFunc

	penetrations []penetrationConstraint
	frictions    []frictionConstraint
}

// NewSolver constructs a solver with the given configuration. Warm starting
// and split impulse start enabled or disabled per cfg and can be toggled
// later with SetIsWarmStartingActive / SetIsSplitImpulseActive.
func NewSolver(cfg SolverConfig) *Solver {
	return &Solver{
		cfg:          cfg,
		warmStarting: cfg.WarmStarting,
		splitImpulse: cfg.SplitImpulse,
	}
}

// InitVelocityArrays binds the caller-owned velocity arrays and body-index
// mapping for the duration of one solve. splitLinVel/splitAngVel must be
// zeroed by the caller before this call; linVel/angVel must already hold
// each body's current velocity.
func (s *Solver) InitVelocityArrays(linVel, angVel, splitLinVel, splitAngVel []mgl64.Vec3, bodyIndex BodyIndexFunc) {
	s.linVel = linVel
	s.angVel = angVel
	s.splitLinVel = splitLinVel
	s.splitAngVel = splitAngVel
	s.bodyIndex = bodyIndex
}

// SetIsWarmStartingActive toggles warm starting; takes effect at the next
// InitializeForIsland call.
func (s *Solver) SetIsWarmStartingActive(active bool) { s.warmStarting = active }

// SetIsSplitImpulseActive toggles split-impulse position correction; takes
// effect at the next InitializeForIsland / iteration.
func (s *Solver) SetIsSplitImpulseActive(active bool) { s.splitImpulse = active }

func (s *Solver) relVel(lin, ang []mgl64.Vec3, i1, i2 int, r1, r2 mgl64.Vec3) mgl64.Vec3 {
	v1 := lin[i1].Add(ang[i1].Cross(r1))
	v2 := lin[i2].Add(ang[i2].Cross(r2))
	return v2.Sub(v1)
}

func (s *Solver) applyNormalImpulse(pc *penetrationConstraint, lambda float64, lin, ang []mgl64.Vec3) {
	if lambda == 0 {
		return
	}
	impulse := pc.n.Mul(lambda)
	lin[pc.i1] = lin[pc.i1].Sub(impulse.Mul(pc.m1Inv))
	ang[pc.i1] = ang[pc.i1].Sub(pc.I1inv.Mul3x1(pc.r1xn).Mul(lambda))
	lin[pc.i2] = lin[pc.i2].Add(impulse.Mul(pc.m2Inv))
	ang[pc.i2] = ang[pc.i2].Add(pc.I2inv.Mul3x1(pc.r2xn).Mul(lambda))
}

func (s *Solver) applyTangentImpulse(fc *frictionConstraint, dir, r1xd, r2xd mgl64.Vec3, lambda float64) {
	if lambda == 0 {
		return
	}
	impulse := dir.Mul(lambda)
	s.linVel[fc.i1] = s.linVel[fc.i1].Sub(impulse.Mul(fc.m1Inv))
	s.angVel[fc.i1] = s.angVel[fc.i1].Sub(fc.I1inv.Mul3x1(r1xd).Mul(lambda))
	s.linVel[fc.i2] = s.linVel[fc.i2].Add(impulse.Mul(fc.m2Inv))
	s.angVel[fc.i2] = s.angVel[fc.i2].Add(fc.I2inv.Mul3x1(r2xd).Mul(lambda))
}

func (s *Solver) applyTwistImpulse(fc *frictionConstraint, lambda float64) {
	if lambda == 0 {
		return
	}
	impulse := fc.n.Mul(lambda)
	s.angVel[fc.i1] = s.angVel[fc.i1].Sub(fc.I1inv.Mul3x1(impulse))
	s.angVel[fc.i2] = s.angVel[fc.i2].Add(fc.I2inv.Mul3x1(impulse))
}

func (s *Solver) applyRollingImpulse(fc *frictionConstraint, delta mgl64.Vec3) {
	if delta.Len() == 0 {
		return
	}
	s.angVel[fc.i1] = s.angVel[fc.i1].Sub(fc.I1inv.Mul3x1(delta))
	s.angVel[fc.i2] = s.angVel[fc.i2].Add(fc.I2inv.Mul3x1(delta))
}

// WarmStart seeds the velocity arrays with impulses cached from the
// previous step. Non-resting penetration rows and manifolds with no resting
// point have their accumulators reset to zero instead.
func (s *Solver) WarmStart() {
	for i := range s.penetrations {
		pc := &s.penetrations[i]
		if !pc.isResting {
			pc.lambda = 0
			continue
		}
		s.applyNormalImpulse(pc, pc.lambda, s.linVel, s.angVel)
	}

	for i := range s.frictions {
		fc := &s.frictions[i]
		if !fc.hasAnyResting {
			fc.lambda1, fc.lambda2, fc.lambdaTwist = 0, 0, 0
			fc.lambdaRoll = mgl64.Vec3{}
			continue
		}

		iOld := fc.t1Old.Mul(fc.lambda1).Add(fc.t2Old.Mul(fc.lambda2))
		fc.lambda1 = iOld.Dot(fc.t1)
		fc.lambda2 = iOld.Dot(fc.t2)

		s.applyTangentImpulse(fc, fc.t1, fc.r1xt1, fc.r2xt1, fc.lambda1)
		s.applyTangentImpulse(fc, fc.t2, fc.r1xt2, fc.r2xt2, fc.lambda2)
		s.applyTwistImpulse(fc, fc.lambdaTwist)
		s.applyRollingImpulse(fc, fc.lambdaRoll)
	}
}

// ResetTotalPenetrationImpulse zeroes the running penetration-impulse sum on
// every FrictionConstraint. Must run before each outer PGS iteration: the
// friction cone limit is scoped to the current iteration's penetration
// impulses only.
func (s *Solver) ResetTotalPenetrationImpulse() {
	for i := range s.frictions {
		s.frictions[i].sumLambdaN = 0
	}
}

// SolvePenetrationConstraints runs one PGS sweep over the non-penetration
// rows. When split impulse is active the main pass drops the Baumgarte bias
// (leaving only the restitution bias) and a second pass corrects position
// error separately through splitLinVel/splitAngVel, so the correction never
// adds kinetic energy to the reported velocity.
func (s *Solver) SolvePenetrationConstraints() {
	for i := range s.penetrations {
		pc := &s.penetrations[i]

		bPen := 0.0
		if pc.penetrationDepth > s.cfg.Slop {
			bPen = -(s.cfg.Beta / s.dt) * (pc.penetrationDepth - s.cfg.Slop)
		}

		mainBias := bPen + pc.restitutionBias
		if s.splitImpulse {
			mainBias = pc.restitutionBias
		}

		dv := s.relVel(s.linVel, s.angVel, pc.i1, pc.i2, pc.r1, pc.r2)
		jv := dv.Dot(pc.n)
		dLambda := -(jv + mainBias) * pc.kNInv
		newLambda := math.Max(pc.lambda+dLambda, 0)
		dLambda = newLambda - pc.lambda
		pc.lambda = newLambda
		s.applyNormalImpulse(pc, dLambda, s.linVel, s.angVel)

		if s.splitImpulse {
			splitBias := 0.0
			if pc.penetrationDepth > s.cfg.Slop {
				splitBias = -(s.cfg.BetaSplitImpulse / s.dt) * (pc.penetrationDepth - s.cfg.Slop)
			}
			dvSplit := s.relVel(s.splitLinVel, s.splitAngVel, pc.i1, pc.i2, pc.r1, pc.r2)
			jvSplit := dvSplit.Dot(pc.n)
			dLambdaSplit := -(jvSplit + splitBias) * pc.kNInv
			newLambdaSplit := math.Max(pc.lambdaSplit+dLambdaSplit, 0)
			dLambdaSplit = newLambdaSplit - pc.lambdaSplit
			pc.lambdaSplit = newLambdaSplit
			s.applyNormalImpulse(pc, dLambdaSplit, s.splitLinVel, s.splitAngVel)
		}

		s.frictions[pc.frictionIndex].sumLambdaN += pc.lambda
	}
}

// SolveFrictionConstraints runs one PGS sweep over the two tangent rows, the
// twist row, and the rolling-resistance row of every manifold, clamped to
// the friction cone derived from that manifold's current penetration
// impulse sum.
func (s *Solver) SolveFrictionConstraints() {
	for i := range s.frictions {
		fc := &s.frictions[i]
		limit := fc.friction * fc.sumLambdaN

		dv := s.relVel(s.linVel, s.angVel, fc.i1, fc.i2, fc.r1F, fc.r2F)
		dLambda := -dv.Dot(fc.t1) * fc.k1Inv
		newLambda1 := clampFloat(fc.lambda1+dLambda, -limit, limit)
		dLambda = newLambda1 - fc.lambda1
		fc.lambda1 = newLambda1
		s.applyTangentImpulse(fc, fc.t1, fc.r1xt1, fc.r2xt1, dLambda)

		dv = s.relVel(s.linVel, s.angVel, fc.i1, fc.i2, fc.r1F, fc.r2F)
		dLambda = -dv.Dot(fc.t2) * fc.k2Inv
		newLambda2 := clampFloat(fc.lambda2+dLambda, -limit, limit)
		dLambda = newLambda2 - fc.lambda2
		fc.lambda2 = newLambda2
		s.applyTangentImpulse(fc, fc.t2, fc.r1xt2, fc.r2xt2, dLambda)

		jvTwist := s.angVel[fc.i2].Sub(s.angVel[fc.i1]).Dot(fc.n)
		dLambdaTwist := -jvTwist * fc.kTwistInv
		newLambdaTwist := clampFloat(fc.lambdaTwist+dLambdaTwist, -limit, limit)
		dLambdaTwist = newLambdaTwist - fc.lambdaTwist
		fc.lambdaTwist = newLambdaTwist
		s.applyTwistImpulse(fc, dLambdaTwist)

		if fc.rollingResistance <= 0 {
			continue
		}
		jvVec := s.angVel[fc.i2].Sub(s.angVel[fc.i1])
		candidate := fc.lambdaRoll.Add(fc.kRoll.Mul3x1(jvVec.Mul(-1)))
		radius := fc.rollingResistance * fc.sumLambdaN
		clamped := clampLen(candidate, radius)
		delta := clamped.Sub(fc.lambdaRoll)
		fc.lambdaRoll = clamped
		s.applyRollingImpulse(fc, delta)
	}
}

// StoreImpulses writes every accumulated impulse and the current friction
// basis back to the external ContactPoint/ContactManifold records, so the
// next step's InitializeForIsland can warm-start from them.
func (s *Solver) StoreImpulses() {
	for i := range s.penetrations {
		pc := &s.penetrations[i]
		pc.point.PenetrationImpulse = pc.lambda
	}
	for i := range s.frictions {
		fc := &s.frictions[i]
		fc.manifold.Friction1Impulse = fc.lambda1
		fc.manifold.Friction2Impulse = fc.lambda2
		fc.manifold.FrictionTwistImpulse = fc.lambdaTwist
		fc.manifold.RollingResistanceImpulse = fc.lambdaRoll
		fc.manifold.T1 = fc.t1
		fc.manifold.T2 = fc.t2
	}
}

// Cleanup releases the per-island scratch storage and unbinds the borrowed
// velocity arrays.
func (s *Solver) Cleanup() {
	s.penetrations = s.penetrations[:0]
	s.frictions = s.frictions[:0]
	s.linVel, s.angVel, s.splitLinVel, s.splitAngVel = nil, nil, nil, nil
	s.bodyIndex = nil
}
