package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// safeInv inverts a scalar effective mass, storing zero (disabling the row)
// when the mass is not strictly positive.
func safeInv(k float64) float64 {
	if k > 0 {
		return 1 / k
	}
	return 0
}

// angularTerm computes the angular contribution to an effective inverse
// mass along axis for a body with inverse inertia Iinv and lever arm r:
// ((Iinv·(r×axis))×r)·axis.
func angularTerm(Iinv mgl64.Mat3, r, axis mgl64.Vec3) float64 {
	rxAxis := r.Cross(axis)
	return Iinv.Mul3x1(rxAxis).Cross(r).Dot(axis)
}

// anyOrthonormal returns an arbitrary unit vector perpendicular to n, used
// as a fallback tangent when the relative velocity at a manifold has no
// tangential component to seed the friction basis from.
func anyOrthonormal(n mgl64.Vec3) mgl64.Vec3 {
	pick := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.Dot(pick)) > 0.9 {
		pick = mgl64.Vec3{0, 1, 0}
	}
	return pick.Sub(n.Mul(pick.Dot(n))).Normalize()
}

// clampLen scales v down to length r if it exceeds it, leaving it unchanged
// otherwise. Used for the rolling-resistance friction-cone projection.
func clampLen(v mgl64.Vec3, r float64) mgl64.Vec3 {
	l := v.Len()
	if l <= r {
		return v
	}
	if l == 0 {
		return v
	}
	return v.Mul(r / l)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mat3TryInv inverts a 3x3 matrix, reporting failure instead of returning a
// NaN-filled matrix when the determinant is degenerate.
func mat3TryInv(m mgl64.Mat3) (mgl64.Mat3, bool) {
	if math.Abs(m.Det()) <= 1e-12 {
		return mgl64.Mat3{}, false
	}
	return m.Inv(), true
}

func finiteVec3(v mgl64.Vec3) bool {
	return !math.IsNaN(v.X()) && !math.IsInf(v.X(), 0) &&
		!math.IsNaN(v.Y()) && !math.IsInf(v.Y(), 0) &&
		!math.IsNaN(v.Z()) && !math.IsInf(v.Z(), 0)
}
