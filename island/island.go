// Package island groups the bodies and contact manifolds that can affect
// each other in a single physics step into one unit of solver work.
package island

import (
	"github.com/duskforge/ironbody/actor"
	"github.com/duskforge/ironbody/constraint"
)

// Island is a caller-owned batch of bodies and the contact manifolds
// between them, along with the stable body-to-index mapping the solver
// binds its velocity arrays against. It satisfies constraint.IslandView.
type Island struct {
	bodies    []*actor.RigidBody
	manifolds []*constraint.ContactManifold
	index     map[*actor.RigidBody]int
}

// New builds an Island from a body set and the manifolds found between
// them. The index map is built once here so IndexOf is O(1) for every
// lookup the solver performs during setup.
func New(bodies []*actor.RigidBody, manifolds []*constraint.ContactManifold) *Island {
	index := make(map[*actor.RigidBody]int, len(bodies))
	for i, b := range bodies {
		index[b] = i
	}
	return &Island{bodies: bodies, manifolds: manifolds, index: index}
}

func (isl *Island) Bodies() []*actor.RigidBody { return isl.bodies }
func (isl *Island) Manifolds() []*constraint.ContactManifold { return isl.manifolds }
func (isl *Island) IndexOf(b *actor.RigidBody) (int, bool) {
	i, ok := isl.index[b]
	return i, ok
}

// Builder accumulates bodies and manifolds discovered by a broad/narrow
// phase pass and produces the islands the solver runs against. Build
// unions dynamic bodies through a union-find over the contact graph, so
// two dynamic bodies with no manifold path between them end up in
// separate islands and solve independently.
type Builder struct {
	bodies    []*actor.RigidBody
	manifolds []*constraint.ContactManifold
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddBody(body *actor.RigidBody) {
	b.bodies = append(b.bodies, body)
}

func (b *Builder) AddManifold(m *constraint.ContactManifold) {
	b.manifolds = append(b.manifolds, m)
}

// Build partitions the accumulated bodies and manifolds into islands. A
// body with no manifold touching it does not need a solver pass, so it is
// left out of every island returned.
func (b *Builder) Build() []*Island {
	if len(b.manifolds) == 0 {
		return nil
	}

	parent := make(map[*actor.RigidBody]*actor.RigidBody, len(b.bodies))
	var find func(*actor.RigidBody) *actor.RigidBody
	find = func(x *actor.RigidBody) *actor.RigidBody {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}
	union := func(x, y *actor.RigidBody) {
		rx, ry := find(x), find(y)
		if rx != ry {
			parent[rx] = ry
		}
	}

	touch := func(body *actor.RigidBody) {
		if _, ok := parent[body]; !ok {
			parent[body] = body
		}
	}

	for _, m := range b.manifolds {
		touch(m.BodyA)
		touch(m.BodyB)
		// Static and kinematic bodies never propagate a union: two dynamic
		// bodies each resting on the same static floor are not coupled to
		// each other through it.
		if m.BodyA.BodyType == actor.BodyTypeDynamic && m.BodyB.BodyType == actor.BodyTypeDynamic {
			union(m.BodyA, m.BodyB)
		}
	}

	groups := make(map[*actor.RigidBody][]*actor.RigidBody)
	for body := range parent {
		root := find(body)
		groups[root] = append(groups[root], body)
	}

	manifoldsByRoot := make(map[*actor.RigidBody][]*constraint.ContactManifold)
	rootOf := func(body *actor.RigidBody) *actor.RigidBody {
		if body.BodyType != actor.BodyTypeDynamic {
			return nil
		}
		return find(body)
	}
	for _, m := range b.manifolds {
		if r := rootOf(m.BodyA); r != nil {
			manifoldsByRoot[r] = append(manifoldsByRoot[r], m)
		} else if r := rootOf(m.BodyB); r != nil {
			manifoldsByRoot[r] = append(manifoldsByRoot[r], m)
		}
	}

	islands := make([]*Island, 0, len(groups))
	for root, bodies := range groups {
		manifolds := manifoldsByRoot[root]
		if len(manifolds) == 0 {
			continue
		}
		// Every body a manifold in this group references must be present
		// in the island, including the static/kinematic anchors that never
		// joined a union group of their own.
		seen := make(map[*actor.RigidBody]bool, len(bodies))
		all := append([]*actor.RigidBody{}, bodies...)
		for _, body := range bodies {
			seen[body] = true
		}
		for _, m := range manifolds {
			for _, body := range [2]*actor.RigidBody{m.BodyA, m.BodyB} {
				if !seen[body] {
					seen[body] = true
					all = append(all, body)
				}
			}
		}
		islands = append(islands, New(all, manifolds))
	}
	return islands
}
