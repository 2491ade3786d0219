package types

import "sort"

// Registry owns every complex type of a compiler instance and collapses
// structurally identical types onto one canonical instance.
type Registry struct {
	order []ComplexType
	byKey map[string]ComplexType
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]ComplexType)}
}

// Register returns the canonical instance for ct, adding ct if it is new.
func (r *Registry) Register(ct ComplexType) ComplexType {
	key := ct.String()
	if existing, ok := r.byKey[key]; ok {
		return existing
	}
	r.byKey[key] = ct
	r.order = append(r.order, ct)
	return ct
}

// Lookup finds a registered type by its canonical identifier.
func (r *Registry) Lookup(id ID) (ComplexType, bool) {
	ct, ok := r.byKey[id.String()]
	return ct, ok
}

// All returns the registered types in registration order.
func (r *Registry) All() []ComplexType {
	return append([]ComplexType(nil), r.order...)
}

// Structs returns the registered struct types sorted by id.
func (r *Registry) Structs() []*StructType {
	var out []*StructType
	for _, ct := range r.order {
		if s, ok := ct.(*StructType); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out
}

// Snapshot is a saved registry state.
type Snapshot struct {
	order []ComplexType
}

// Checkpoint saves the current state for a later Rollback.
func (r *Registry) Checkpoint() Snapshot {
	return Snapshot{order: append([]ComplexType(nil), r.order...)}
}

// Rollback restores a checkpoint, forgetting types registered since and
// bringing back types removed since.
func (r *Registry) Rollback(s Snapshot) {
	r.order = append([]ComplexType(nil), s.order...)
	r.byKey = make(map[string]ComplexType, len(r.order))
	for _, ct := range r.order {
		r.byKey[ct.String()] = ct
	}
}

// RemoveWithin forgets the types declared inside ns and every instance that
// mentions one of them, used when a unit is torn down before recompilation.
func (r *Registry) RemoveWithin(ns ID) {
	var kept []ComplexType
	for _, ct := range r.order {
		if Mentions(ct.String(), ns) {
			delete(r.byKey, ct.String())
			continue
		}
		kept = append(kept, ct)
	}
	r.order = kept
}
