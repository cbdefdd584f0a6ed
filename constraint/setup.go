package constraint

import (
	"math"

	"github.com/duskforge/ironbody/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// InitializeForIsland allocates and fills every PenetrationConstraint and
// FrictionConstraint for one island, precomputing everything that stays
// constant across the PGS iterations that follow. InitVelocityArrays must
// have been called first so setup can read each body's initial velocity out
// of the bound arrays.
func (s *Solver) InitializeForIsland(dt float64, isl IslandView) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return newError(NumericalInvariant, "non-finite or non-positive dt %v", dt)
	}

	bodies := isl.Bodies()
	manifolds := isl.Manifolds()
	if len(bodies) == 0 || len(manifolds) == 0 {
		return newError(EmptyIsland, "island has %d bodies and %d manifolds", len(bodies), len(manifolds))
	}

	s.dt = dt
	s.penetrations = s.penetrations[:0]
	s.frictions = s.frictions[:0]

	for mi := range manifolds {
		m := manifolds[mi]
		if len(m.Points) == 0 {
			return newError(DegenerateManifold, "manifold %d between bodies has zero contact points", mi)
		}

		b1, b2 := m.BodyA, m.BodyB
		i1, ok1 := isl.IndexOf(b1)
		i2, ok2 := isl.IndexOf(b2)
		if !ok1 || !ok2 {
			return newError(EmptyIsland, "manifold %d references a body outside the island", mi)
		}

		if !finiteVec3(b1.Transform.Position) || !finiteVec3(b2.Transform.Position) {
			return newError(NumericalInvariant, "manifold %d: non-finite body position", mi)
		}

		m1Inv, m2Inv := b1.InvMass(), b2.InvMass()
		if math.IsNaN(m1Inv) || math.IsNaN(m2Inv) {
			return newError(NumericalInvariant, "manifold %d: NaN inverse mass", mi)
		}
		I1inv, I2inv := b1.GetInverseInertiaWorld(), b2.GetInverseInertiaWorld()

		restitution := math.Max(b1.Material.Restitution, b2.Material.Restitution)
		friction := math.Sqrt(math.Max(b1.Material.Friction, 0) * math.Max(b2.Material.Friction, 0))
		rolling := (b1.Material.RollingResistance + b2.Material.RollingResistance) / 2

		fc, err := s.setupFriction(m, i1, i2, b1, b2, m1Inv, m2Inv, I1inv, I2inv, friction, rolling)
		if err != nil {
			return err
		}
		fcIndex := len(s.frictions)

		for pi := range m.Points {
			p := &m.Points[pi]
			if !finiteVec3(p.Normal) {
				return newError(NumericalInvariant, "manifold %d point %d: non-finite normal", mi, pi)
			}

			r1 := p.P1.Sub(b1.Transform.Position)
			r2 := p.P2.Sub(b2.Transform.Position)
			n := p.Normal

			resting := p.IsRestingContact
			// Every point that survives one setup pass is treated as resting
			// from here on, regardless of measured velocity: this is what
			// makes warm starting apply to a contact from its second frame
			// onward, not a bug to be fixed.
			p.IsRestingContact = true

			r1xn := r1.Cross(n)
			r2xn := r2.Cross(n)
			kN := m1Inv + m2Inv + angularTerm(I1inv, r1, n) + angularTerm(I2inv, r2, n)

			relV := s.relVel(s.linVel, s.angVel, i1, i2, r1, r2)
			vn := relV.Dot(n)
			var restBias float64
			if vn < -s.cfg.RestitutionVelocityThreshold {
				restBias = restitution * vn
			}

			var lambda float64
			if s.warmStarting {
				lambda = p.PenetrationImpulse
			}

			s.penetrations = append(s.penetrations, penetrationConstraint{
				i1: i1, i2: i2,
				m1Inv: m1Inv, m2Inv: m2Inv,
				I1inv: I1inv, I2inv: I2inv,
				n:                n,
				r1:               r1,
				r2:               r2,
				r1xn:             r1xn,
				r2xn:             r2xn,
				kNInv:            safeInv(kN),
				restitution:      restitution,
				restitutionBias:  restBias,
				penetrationDepth: p.PenetrationDepth,
				isResting:        resting,
				lambda:           lambda,
				frictionIndex:    fcIndex,
				point:            p,
			})

			fc.hasAnyResting = fc.hasAnyResting || resting
		}

		s.frictions = append(s.frictions, fc)
	}

	return nil
}

func (s *Solver) setupFriction(
	m *ContactManifold,
	i1, i2 int,
	b1, b2 *actor.RigidBody,
	m1Inv, m2Inv float64,
	I1inv, I2inv mgl64.Mat3,
	friction, rolling float64,
) (frictionConstraint, error) {
	var pCenter1, pCenter2, nSum mgl64.Vec3
	for _, p := range m.Points {
		pCenter1 = pCenter1.Add(p.P1)
		pCenter2 = pCenter2.Add(p.P2)
		nSum = nSum.Add(p.Normal)
	}
	inv := 1.0 / float64(len(m.Points))
	pCenter1 = pCenter1.Mul(inv)
	pCenter2 = pCenter2.Mul(inv)

	nLen := nSum.Len()
	if nLen <= s.cfg.Epsilon {
		return frictionConstraint{}, newError(DegenerateManifold, "averaged manifold normal degenerates to zero")
	}
	n := nSum.Mul(1 / nLen)

	r1F := pCenter1.Sub(b1.Transform.Position)
	r2F := pCenter2.Sub(b2.Transform.Position)

	relV := s.relVel(s.linVel, s.angVel, i1, i2, r1F, r2F)
	vt := relV.Sub(n.Mul(relV.Dot(n)))
	var t1 mgl64.Vec3
	if vt.Len() > s.cfg.Epsilon {
		t1 = vt.Normalize()
	} else {
		t1 = anyOrthonormal(n)
	}
	t2 := n.Cross(t1).Normalize()

	r1xt1 := r1F.Cross(t1)
	r1xt2 := r1F.Cross(t2)
	r2xt1 := r2F.Cross(t1)
	r2xt2 := r2F.Cross(t2)

	k1 := m1Inv + m2Inv + angularTerm(I1inv, r1F, t1) + angularTerm(I2inv, r2F, t1)
	k2 := m1Inv + m2Inv + angularTerm(I1inv, r1F, t2) + angularTerm(I2inv, r2F, t2)
	kTwist := n.Dot(I1inv.Add(I2inv).Mul3x1(n))

	fc := frictionConstraint{
		i1: i1, i2: i2,
		m1Inv: m1Inv, m2Inv: m2Inv,
		I1inv: I1inv, I2inv: I2inv,
		friction:          friction,
		rollingResistance: rolling,
		r1F:               r1F,
		r2F:               r2F,
		n:                 n,
		t1:                t1,
		t2:                t2,
		r1xt1:             r1xt1,
		r1xt2:             r1xt2,
		r2xt1:             r2xt1,
		r2xt2:             r2xt2,
		k1Inv:             safeInv(k1),
		k2Inv:             safeInv(k2),
		kTwistInv:         safeInv(kTwist),
		manifold:          m,
	}

	if rolling > 0 && (m1Inv > 0 || m2Inv > 0) {
		if roll, ok := mat3TryInv(I1inv.Add(I2inv)); ok {
			fc.kRoll = roll
		}
	}

	if s.warmStarting {
		fc.lambda1 = m.Friction1Impulse
		fc.lambda2 = m.Friction2Impulse
		fc.lambdaTwist = m.FrictionTwistImpulse
		fc.lambdaRoll = m.RollingResistanceImpulse
		fc.t1Old, fc.t2Old = m.T1, m.T2
		if fc.t1Old == (mgl64.Vec3{}) {
			fc.t1Old, fc.t2Old = t1, t2
		}
	} else {
		fc.t1Old, fc.t2Old = t1, t2
	}

	return fc, nil
}
