// Package symbols is the namespace registry: every named entity of a
// compilation lives in a Namespace, addressed by a namespaced identifier.
//
// Namespaces are stored in an append-only arena and referenced by
// generation-checked handles. All mutation goes through the Registry, which
// publishes updated copies of persistent namespaces; Checkpoint and Rollback
// restore the whole registry so a failed unit leaves nothing behind.
package symbols

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"src.elv.sh/pkg/persistent/hashmap"

	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// TemplateBridge connects the registry to the template engine.
type TemplateBridge interface {
	IsTemplateClass(id types.ID) bool
	IsTemplateFunction(id types.ID) bool
	CreateTemplateInstantiation(id types.ID, params types.ParameterList) (types.ComplexType, error)
	CreateTemplateFunction(id types.ID, params types.ParameterList, args []types.TypeInfo) (*Signature, error)
}

// Registry owns all namespaces of one compiler instance.
type Registry struct {
	slots     []*Namespace
	gens      []uint32
	byID      hashmap.Map // id string -> Handle
	stack     []Handle
	templates TemplateBridge
}

func NewRegistry() *Registry {
	r := &Registry{byID: hashmap.New(stringEqual, stringHash)}
	r.stack = []Handle{r.alloc(types.ID{}, PlainScope, Handle{})}
	return r
}

func (r *Registry) SetTemplateBridge(b TemplateBridge) { r.templates = b }

func (r *Registry) alloc(id types.ID, kind ScopeKind, parent Handle) Handle {
	ns := newNamespace(id, kind, parent)
	idx := uint32(len(r.slots))
	r.slots = append(r.slots, ns)
	r.gens = append(r.gens, 1)
	h := Handle{index: idx, gen: r.gens[idx]}
	r.byID = r.byID.Assoc(id.String(), h)
	if parent.IsValid() {
		r.update(parent, func(p *Namespace) { p.children = p.children.Conj(h) })
	}
	return h
}

// update publishes a modified copy of a namespace.
func (r *Registry) update(h Handle, fn func(ns *Namespace)) {
	cp := *r.slots[h.index]
	fn(&cp)
	r.slots[h.index] = &cp
}

// Get dereferences a handle. The returned namespace must be treated as
// read-only.
func (r *Registry) Get(h Handle) (*Namespace, error) {
	if !h.IsValid() || int(h.index) >= len(r.slots) {
		return nil, errors.New("invalid namespace handle")
	}
	if r.gens[h.index] != h.gen || r.slots[h.index] == nil {
		return nil, errors.New("namespace torn down")
	}
	return r.slots[h.index], nil
}

func (r *Registry) handle(id types.ID) (Handle, bool) {
	v, ok := r.byID.Index(id.String())
	if !ok {
		return Handle{}, false
	}
	return v.(Handle), true
}

// Handle returns the handle of an existing namespace.
func (r *Registry) Handle(id types.ID) (Handle, bool) { return r.handle(id) }

// Lookup finds a namespace by id.
func (r *Registry) Lookup(id types.ID) (*Namespace, bool) {
	h, ok := r.handle(id)
	if !ok {
		return nil, false
	}
	return r.slots[h.index], true
}

func (r *Registry) Root() *Namespace { return r.slots[r.stack[0].index] }

// ensure returns the namespace for id, creating it and any missing ancestors.
func (r *Registry) ensure(id types.ID, kind ScopeKind) Handle {
	if h, ok := r.handle(id); ok {
		return h
	}
	parent := r.ensure(id.Parent(), PlainScope)
	return r.alloc(id, kind, parent)
}

// PushNamespace makes id the current namespace. Entering an existing id
// reuses its namespace.
func (r *Registry) PushNamespace(id types.ID, kind ScopeKind) Handle {
	h := r.ensure(id, kind)
	r.stack = append(r.stack, h)
	return h
}

// PushChild pushes a namespace below the current one.
func (r *Registry) PushChild(name string, kind ScopeKind) Handle {
	return r.PushNamespace(r.Current().Child(name), kind)
}

func (r *Registry) PopNamespace() {
	if len(r.stack) <= 1 {
		diag.Unreachable("namespace stack underflow")
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// Current is the id of the innermost pushed namespace.
func (r *Registry) Current() types.ID {
	return r.slots[r.stack[len(r.stack)-1].index].ID
}

func (r *Registry) CurrentNamespace() *Namespace {
	return r.slots[r.stack[len(r.stack)-1].index]
}

// Depth is the number of pushed namespaces including the root.
func (r *Registry) Depth() int { return len(r.stack) }

// SetLines records the source extent of a namespace.
func (r *Registry) SetLines(id types.ID, lines LineRange) {
	if h, ok := r.handle(id); ok {
		r.update(h, func(ns *Namespace) { ns.Lines = lines })
	}
}

// SetInternal marks a namespace as hidden from editor queries.
func (r *Registry) SetInternal(id types.ID) {
	if h, ok := r.handle(id); ok {
		r.update(h, func(ns *Namespace) { ns.Internal = true })
	}
}

// Symbol returns the alias registered under exactly id.
func (r *Registry) Symbol(id types.ID) (*Alias, bool) {
	if !id.IsValid() {
		return nil, false
	}
	ns, ok := r.Lookup(id.Parent())
	if !ok {
		return nil, false
	}
	return ns.Alias(id.Name())
}

func (r *Registry) put(a *Alias) {
	h := r.ensure(a.ID.Parent(), PlainScope)
	r.update(h, func(ns *Namespace) { ns.put(a) })
}

// add validates a new alias against existing entries before inserting it.
func (r *Registry) add(a *Alias) (*Alias, error) {
	if !a.ID.IsValid() {
		return nil, errors.New("empty symbol name")
	}
	if existing, ok := r.Symbol(a.ID); ok {
		switch {
		case existing.Kind == a.Kind && existing.Type.IsDynamic() && !a.Type.IsDynamic():
			// forward-declared symbol whose type is now known
		case existing.Kind == a.Kind && a.Kind == Struct && existing.Type.Equals(a.Type):
			return existing, nil
		default:
			return nil, errors.Errorf("%s is already defined as %s", a.ID, existing.Kind)
		}
	}
	r.put(a)
	return a, nil
}

// AddSymbol registers an alias. A failed call leaves the registry untouched.
func (r *Registry) AddSymbol(id types.ID, t types.TypeInfo, kind SymbolKind, vis Visibility, debug DebugInfo) (*Alias, error) {
	if kind == Function {
		return nil, errors.Errorf("function %s must be added with its signature", id)
	}
	return r.add(&Alias{ID: id, Type: t, Kind: kind, Visibility: vis, Debug: debug})
}

// AddConstant registers a compile-time value (Constant, EnumValue or
// TemplateConstant).
func (r *Registry) AddConstant(id types.ID, value types.Constant, kind SymbolKind, vis Visibility, debug DebugInfo) (*Alias, error) {
	t := types.Native(value.Type()).WithConst(true)
	return r.add(&Alias{ID: id, Type: t, Kind: kind, Visibility: vis, Value: value, Debug: debug})
}

// AddFunction adds an overload to the function named sig.ID.
func (r *Registry) AddFunction(sig *Signature, vis Visibility, debug DebugInfo) (*Alias, error) {
	if existing, ok := r.Symbol(sig.ID); ok {
		if existing.Kind != Function {
			return nil, errors.Errorf("%s is already defined as %s", sig.ID, existing.Kind)
		}
		for _, o := range existing.Functions {
			if o.SameParams(sig) {
				return nil, errors.Errorf("%s is already defined", sig)
			}
		}
		a := existing.clone()
		a.Functions = append(a.Functions, sig)
		r.put(a)
		return a, nil
	}
	return r.add(&Alias{ID: sig.ID, Type: sig.Return, Kind: Function, Visibility: vis, Functions: []*Signature{sig}, Debug: debug})
}

// SetSymbolType replaces the type of an existing alias, e.g. once an "auto"
// declaration has been deduced.
func (r *Registry) SetSymbolType(id types.ID, t types.TypeInfo) error {
	existing, ok := r.Symbol(id)
	if !ok {
		return errors.Errorf("can't find %s", id)
	}
	a := existing.clone()
	a.Type = t
	r.put(a)
	return nil
}

// AddTemplateBinding binds a formal template parameter inside scope.
func (r *Registry) AddTemplateBinding(scope types.ID, b types.Binding) error {
	id := scope.Child(b.Formal.ID.Name())
	a := &Alias{ID: id, Visibility: Public}
	switch {
	case b.Formal.Variadic:
		a.Kind, a.Type = TemplateType, types.TemplateParam(b.Formal.ID)
		a.Pack = append(types.ParameterList{}, b.Args...)
		if b.Formal.Kind == types.ConstantParameter {
			a.Kind = TemplateConstant
		}
	case len(b.Args) != 1:
		return errors.Errorf("template parameter %s is unbound", b.Formal.ID.Name())
	case b.Formal.Kind == types.TypeParameter:
		a.Kind, a.Type = TemplateType, b.Args[0].Type
	case b.Args[0].IsResolved():
		a.Kind, a.Type = TemplateConstant, types.Native(types.Integer).WithConst(true)
		a.Value = types.IntConstant(int64(b.Args[0].Value))
	default:
		a.Kind, a.Type = TemplateConstant, types.TemplateParam(b.Args[0].ID)
	}
	_, err := r.add(a)
	return err
}

// LookupPack returns the arguments bound to a variadic template parameter
// visible from the current namespace.
func (r *Registry) LookupPack(id types.ID) (types.ParameterList, bool) {
	resolved, err := r.Resolve(id, true)
	if err != nil || !resolved.IsValid() {
		return nil, false
	}
	a, ok := r.Symbol(resolved)
	if !ok || a.Pack == nil {
		return nil, false
	}
	return a.Pack, true
}

// AddUsedNamespace makes the members of id visible from the current namespace.
func (r *Registry) AddUsedNamespace(id types.ID) error {
	h, ok := r.handle(id)
	if !ok {
		return errors.Errorf("can't find namespace %s", id)
	}
	cur := r.stack[len(r.stack)-1]
	if r.slots[cur.index].uses(h) {
		return nil
	}
	r.update(cur, func(ns *Namespace) { ns.usings = ns.usings.Conj(h) })
	return nil
}

func (r *Registry) exists(id types.ID) bool {
	if _, ok := r.Symbol(id); ok {
		return true
	}
	_, ok := r.Lookup(id)
	return ok && id.IsValid()
}

// Resolve finds the unique entity id refers to from the current namespace.
func (r *Registry) Resolve(id types.ID, allowZeroMatch bool) (types.ID, error) {
	return r.ResolveFrom(r.Current(), id, allowZeroMatch)
}

// ResolveFrom resolves id as seen from scope:
//  1. a qualified id that exists as written;
//  2. the innermost enclosing namespace with a matching child;
//  3. the namespaces imported with "using", or, for qualified ids, the members
//     of the resolved qualifying parent and of what it uses.
//
// More than one match is always an error. With allowZeroMatch a miss returns
// the root ID and no error.
func (r *Registry) ResolveFrom(scope, id types.ID, allowZeroMatch bool) (types.ID, error) {
	if !id.IsValid() {
		return types.ID{}, errors.New("empty identifier")
	}
	if id.IsQualified() && r.exists(id) {
		return id, nil
	}
	for s := scope; ; s = s.Parent() {
		if cand := s.Join(id); r.exists(cand) {
			return cand, nil
		}
		if s.IsRoot() {
			break
		}
	}

	var matches []types.ID
	if !id.IsQualified() {
		for s := scope; ; s = s.Parent() {
			if matches = r.fromUsings(s, id.Name()); len(matches) > 0 || s.IsRoot() {
				break
			}
		}
	} else {
		parent, err := r.ResolveFrom(scope, id.Parent(), true)
		if err != nil {
			return types.ID{}, err
		}
		if parent.IsValid() {
			parent = r.substitute(parent)
			if cand := parent.Child(id.Name()); r.exists(cand) {
				matches = []types.ID{cand}
			} else {
				matches = r.fromUsings(parent, id.Name())
			}
		}
	}

	switch len(matches) {
	case 0:
		if allowZeroMatch {
			return types.ID{}, nil
		}
		return types.ID{}, errors.Errorf("can't resolve %s", id)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.String()
	}
	sort.Strings(names)
	return types.ID{}, errors.Errorf("%s is ambiguous: %s", id, strings.Join(names, ", "))
}

// ResolveAlias resolves id and returns the alias it names.
func (r *Registry) ResolveAlias(id types.ID) (*Alias, error) {
	resolved, err := r.Resolve(id, false)
	if err != nil {
		return nil, err
	}
	a, ok := r.Symbol(resolved)
	if !ok {
		return nil, errors.Errorf("%s is a namespace", resolved)
	}
	return a, nil
}

// substitute follows aliases that stand for a type (bound template
// parameters, using-aliases, structs) to the namespace of that type.
func (r *Registry) substitute(id types.ID) types.ID {
	for range 8 {
		a, ok := r.Symbol(id)
		if !ok || !a.Kind.IsType() || !a.Type.IsComplex() {
			return id
		}
		next := a.Type.Complex().ID()
		if next == id {
			return id
		}
		id = next
	}
	return id
}

func (r *Registry) fromUsings(scope types.ID, name string) []types.ID {
	ns, ok := r.Lookup(scope)
	if !ok {
		return nil
	}
	var out []types.ID
	for _, h := range ns.Usings() {
		used, err := r.Get(h)
		if err != nil {
			continue
		}
		if cand := used.ID.Child(name); r.exists(cand) {
			out = append(out, cand)
		}
	}
	return out
}

// CheckVisibility fails unless id is public or the current namespace is
// within its declaring namespace.
func (r *Registry) CheckVisibility(id types.ID) error {
	return r.CheckVisibilityFrom(r.Current(), id)
}

func (r *Registry) CheckVisibilityFrom(scope, id types.ID) error {
	a, ok := r.Symbol(id)
	if !ok {
		return errors.Errorf("can't find %s", id)
	}
	if a.Visibility == Public || id.Parent().Contains(scope) {
		return nil
	}
	return errors.Errorf("%s is %s in %s", id.Name(), a.Visibility, id.Parent())
}

// CopySymbolsFromExistingNamespace duplicates the aliases of from into to,
// translating their ids. Name clashes abort before anything is copied.
func (r *Registry) CopySymbolsFromExistingNamespace(from, to types.ID) error {
	src, ok := r.Lookup(from)
	if !ok {
		return errors.Errorf("can't find namespace %s", from)
	}
	aliases := src.Aliases()
	for _, a := range aliases {
		target := a.ID.Relocate(from, to)
		if existing, ok := r.Symbol(target); ok && existing != a {
			return errors.Errorf("%s is already defined as %s", target, existing.Kind)
		}
	}
	h := r.ensure(to, PlainScope)
	r.update(h, func(ns *Namespace) {
		for _, a := range aliases {
			c := a.clone()
			c.Origin = a.Canonical()
			c.ID = a.ID.Relocate(from, to)
			ns.put(c)
		}
		for _, u := range src.Usings() {
			if !ns.uses(u) {
				ns.usings = ns.usings.Conj(u)
			}
		}
	})
	return nil
}

// RemoveNamespace tears down id and everything below it. Outstanding handles
// to removed namespaces become invalid.
func (r *Registry) RemoveNamespace(id types.ID) error {
	h, ok := r.handle(id)
	if !ok {
		return errors.Errorf("can't find namespace %s", id)
	}
	if !id.IsValid() {
		return errors.New("can't remove the root namespace")
	}
	for _, s := range r.stack {
		if r.slots[s.index].ID == id || id.IsParentOf(r.slots[s.index].ID) {
			return errors.Errorf("namespace %s is in use", id)
		}
	}
	parent := r.slots[h.index].parent
	r.teardown(h)
	if _, err := r.Get(parent); err == nil {
		r.update(parent, func(ns *Namespace) { ns.dropChild(h) })
	}
	return nil
}

func (r *Registry) teardown(h Handle) {
	ns := r.slots[h.index]
	for _, c := range ns.Children() {
		if _, err := r.Get(c); err == nil {
			r.teardown(c)
		}
	}
	r.byID = r.byID.Dissoc(ns.ID.String())
	r.slots[h.index] = nil
	r.gens[h.index]++
}

// Snapshot is a saved registry state.
type Snapshot struct {
	slots []*Namespace
	gens  []uint32
	byID  hashmap.Map
	stack []Handle
}

// Checkpoint saves the current state. Namespaces are immutable once
// published, so this copies handles, not contents.
func (r *Registry) Checkpoint() Snapshot {
	return Snapshot{
		slots: append([]*Namespace(nil), r.slots...),
		gens:  append([]uint32(nil), r.gens...),
		byID:  r.byID,
		stack: append([]Handle(nil), r.stack...),
	}
}

// Rollback restores a checkpoint. Slots are never reused, so namespaces
// created after the checkpoint are simply burnt: their handles fail the
// generation check from now on.
func (r *Registry) Rollback(s Snapshot) {
	for i := range r.slots {
		if i < len(s.slots) {
			r.slots[i], r.gens[i] = s.slots[i], s.gens[i]
			continue
		}
		if r.slots[i] != nil {
			r.slots[i] = nil
			r.gens[i]++
		}
	}
	r.byID = s.byID
	r.stack = append(r.stack[:0], s.stack...)
}

// IsTemplateClass reports whether id names a class template.
func (r *Registry) IsTemplateClass(id types.ID) bool {
	return r.templates != nil && r.templates.IsTemplateClass(id)
}

// IsTemplateFunction reports whether id names a function template.
func (r *Registry) IsTemplateFunction(id types.ID) bool {
	return r.templates != nil && r.templates.IsTemplateFunction(id)
}

func (r *Registry) CreateTemplateInstantiation(id types.ID, params types.ParameterList) (types.ComplexType, error) {
	if r.templates == nil {
		return nil, errors.Errorf("no template engine for %s", id)
	}
	return r.templates.CreateTemplateInstantiation(id, params)
}

func (r *Registry) CreateTemplateFunction(id types.ID, params types.ParameterList, args []types.TypeInfo) (*Signature, error) {
	if r.templates == nil {
		return nil, errors.Errorf("no template engine for %s", id)
	}
	return r.templates.CreateTemplateFunction(id, params, args)
}
