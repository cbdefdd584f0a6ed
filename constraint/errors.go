package constraint

import "fmt"

// ErrorKind classifies a precondition violation raised by the solver. All
// three are programmer errors: the caller assembled the island wrong, not
// something the physics itself can recover from.
type ErrorKind int

const (
	// EmptyIsland means the island has zero bodies or zero manifolds, or a
	// manifold references a body outside the island.
	EmptyIsland ErrorKind = iota
	// DegenerateManifold means a manifold has zero contact points, or its
	// averaged normal collapses to a length at or below machine epsilon.
	DegenerateManifold
	// NumericalInvariant means a non-finite quantity (NaN mass, non-finite
	// position, non-finite time step) reached setup.
	NumericalInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyIsland:
		return "EmptyIsland"
	case DegenerateManifold:
		return "DegenerateManifold"
	case NumericalInvariant:
		return "NumericalInvariant"
	default:
		return "Unknown"
	}
}

// SolverError reports a precondition violation from InitializeForIsland. The
// solver never fails once iteration starts: clamped projections absorb every
// numerical edge case there.
type SolverError struct {
	Kind ErrorKind
	Msg  string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("constraint: %s: %s", e.Kind, e.Msg)
}

func newError(kind ErrorKind, format string, args ...any) *SolverError {
	return &SolverError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
