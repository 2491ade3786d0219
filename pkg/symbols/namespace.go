package symbols

import (
	"src.elv.sh/pkg/persistent/hash"
	"src.elv.sh/pkg/persistent/hashmap"
	"src.elv.sh/pkg/persistent/vector"

	"dspc/pkg/types"
)

// ScopeKind tells the passes what kind of storage symbols declared in a
// namespace live in.
type ScopeKind uint8

const (
	PlainScope    ScopeKind = iota // namespaces and the unit root: globals
	ClassScope                     // struct bodies: members
	FunctionScope                  // parameter lists: parameters
	BlockScope                     // statement blocks: locals
)

func (k ScopeKind) String() string {
	return [...]string{"namespace", "class", "function", "block"}[k]
}

// Handle addresses a namespace in the registry arena. Handles of torn-down
// namespaces fail generation checks instead of dangling.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) IsValid() bool { return h.gen != 0 }

// LineRange is the source extent of a namespace.
type LineRange struct {
	File       string
	Start, End int
}

// Namespace is one scope. Its fields are persistent structures: a Namespace
// is never modified once published, the registry swaps in an updated copy,
// which is what makes checkpoints cheap.
type Namespace struct {
	ID       types.ID
	Kind     ScopeKind
	Lines    LineRange
	Internal bool

	parent   Handle
	aliases  vector.Vector // *Alias in declaration order
	index    hashmap.Map   // name -> position in aliases
	usings   vector.Vector // Handle
	children vector.Vector // Handle
}

func stringEqual(a, b any) bool { return a.(string) == b.(string) }
func stringHash(k any) uint32   { return hash.String(k.(string)) }

func newNamespace(id types.ID, kind ScopeKind, parent Handle) *Namespace {
	return &Namespace{
		ID:       id,
		Kind:     kind,
		parent:   parent,
		aliases:  vector.Empty,
		index:    hashmap.New(stringEqual, stringHash),
		usings:   vector.Empty,
		children: vector.Empty,
	}
}

func (ns *Namespace) Parent() Handle { return ns.parent }

// Alias finds a direct member by name.
func (ns *Namespace) Alias(name string) (*Alias, bool) {
	pos, ok := ns.index.Index(name)
	if !ok {
		return nil, false
	}
	a, ok := ns.aliases.Index(pos.(int))
	if !ok {
		return nil, false
	}
	return a.(*Alias), true
}

// Aliases lists the members in declaration order.
func (ns *Namespace) Aliases() []*Alias {
	out := make([]*Alias, 0, ns.aliases.Len())
	for it := ns.aliases.Iterator(); it.HasElem(); it.Next() {
		out = append(out, it.Elem().(*Alias))
	}
	return out
}

func (ns *Namespace) Usings() []Handle   { return handles(ns.usings) }
func (ns *Namespace) Children() []Handle { return handles(ns.children) }

func handles(v vector.Vector) []Handle {
	out := make([]Handle, 0, v.Len())
	for it := v.Iterator(); it.HasElem(); it.Next() {
		out = append(out, it.Elem().(Handle))
	}
	return out
}

// put inserts or replaces an alias, keeping the original position.
func (ns *Namespace) put(a *Alias) {
	name := a.ID.Name()
	if pos, ok := ns.index.Index(name); ok {
		ns.aliases = ns.aliases.Assoc(pos.(int), a)
		return
	}
	ns.index = ns.index.Assoc(name, ns.aliases.Len())
	ns.aliases = ns.aliases.Conj(a)
}

func (ns *Namespace) uses(h Handle) bool {
	for it := ns.usings.Iterator(); it.HasElem(); it.Next() {
		if it.Elem().(Handle) == h {
			return true
		}
	}
	return false
}

func (ns *Namespace) dropChild(h Handle) {
	kept := vector.Empty
	for it := ns.children.Iterator(); it.HasElem(); it.Next() {
		if c := it.Elem().(Handle); c != h {
			kept = kept.Conj(c)
		}
	}
	ns.children = kept
}
