package symbols

import (
	"testing"

	"github.com/nalgeon/be"

	"dspc/pkg/diag"
	"dspc/pkg/types"
)

var (
	floatT = types.Native(types.Float)
	intT   = types.Native(types.Integer)
)

func id(s string) types.ID { return types.ParseID(s) }

func mustAdd(t *testing.T, r *Registry, name string, typ types.TypeInfo, vis Visibility) {
	t.Helper()
	if _, err := r.AddSymbol(id(name), typ, Variable, vis, DebugInfo{}); err != nil {
		t.Fatalf("AddSymbol(%s) error = %v", name, err)
	}
}

func mustAddFunc(t *testing.T, r *Registry, name string, ret types.TypeInfo, params ...types.TypeInfo) {
	t.Helper()
	sig := &Signature{ID: id(name), Return: ret}
	for i, p := range params {
		sig.Params = append(sig.Params, Parameter{Name: string(rune('a' + i)), Type: p})
	}
	if _, err := r.AddFunction(sig, Public, DebugInfo{}); err != nil {
		t.Fatalf("AddFunction(%s) error = %v", sig, err)
	}
}

func TestRegistry_AddSymbol(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "Main::gain", floatT, Public)

	a, ok := r.Symbol(id("Main::gain"))
	be.True(t, ok)
	be.Equal(t, a.Kind, Variable)
	be.True(t, a.Type.Equals(floatT))

	ns, ok := r.Lookup(id("Main"))
	be.True(t, ok)
	be.Equal(t, ns.Kind, PlainScope)
	be.Equal(t, len(ns.Aliases()), 1)

	_, err := r.AddSymbol(id("Main::gain"), intT, Variable, Public, DebugInfo{})
	be.Err(t, err, "Main::gain is already defined as variable")
	_, err = r.AddSymbol(id("Main::f"), floatT, Function, Public, DebugInfo{})
	be.Err(t, err, "must be added with its signature")
	_, err = r.AddSymbol(types.ID{}, floatT, Variable, Public, DebugInfo{})
	be.Err(t, err, "empty symbol name")

	t.Run("forward declaration", func(t *testing.T) {
		_, err := r.AddSymbol(id("Main::later"), types.Auto(), Variable, Public, DebugInfo{})
		be.Err(t, err, nil)
		_, err = r.AddSymbol(id("Main::later"), intT, Variable, Public, DebugInfo{})
		be.Err(t, err, nil)
		a, _ := r.Symbol(id("Main::later"))
		be.True(t, a.Type.Equals(intT))
	})

	t.Run("constant", func(t *testing.T) {
		a, err := r.AddConstant(id("Main::taps"), types.IntConstant(4), Constant, Public, DebugInfo{})
		be.Err(t, err, nil)
		be.True(t, a.Type.IsConst())
		be.Equal(t, a.Value.Int(), int64(4))
	})
}

func TestRegistry_AddFunction(t *testing.T) {
	r := NewRegistry()
	mustAddFunc(t, r, "Math::abs", floatT, floatT)
	mustAddFunc(t, r, "Math::abs", intT, intT)

	a, ok := r.Symbol(id("Math::abs"))
	be.True(t, ok)
	be.Equal(t, len(a.Functions), 2)

	_, err := r.AddFunction(&Signature{ID: id("Math::abs"), Return: floatT, Params: []Parameter{{Name: "y", Type: floatT}}}, Public, DebugInfo{})
	be.Err(t, err, "float Math::abs(float) is already defined")

	mustAdd(t, r, "Math::x", floatT, Public)
	_, err = r.AddFunction(&Signature{ID: id("Math::x"), Return: floatT}, Public, DebugInfo{})
	be.Err(t, err, "already defined as variable")
}

func TestSignature(t *testing.T) {
	sig := &Signature{ID: id("Main::gain"), Return: floatT, Params: []Parameter{{Name: "x", Type: floatT}}}
	be.Equal(t, sig.String(), "float Main::gain(float)")
	be.Equal(t, sig.Symbol(), "Main.gain_float")
	be.Equal(t, sig.Scope(), id("Main::gain::(float)"))
	be.Equal(t, (&Signature{ID: id("Main::f")}).Symbol(), "Main.f")

	tests := []struct {
		name      string
		args      []types.TypeInfo
		exact, ok bool
	}{
		{"exact", []types.TypeInfo{floatT}, true, true},
		{"int converts", []types.TypeInfo{intT}, false, true},
		{"bool converts", []types.TypeInfo{types.Native(types.Boolean)}, false, true},
		{"arity", []types.TypeInfo{floatT, floatT}, false, false},
		{"span doesn't", []types.TypeInfo{types.Complex(types.NewSpanType(floatT, 4))}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exact, ok := sig.Match(tt.args)
			be.Equal(t, exact, tt.exact)
			be.Equal(t, ok, tt.ok)
		})
	}

	t.Run("view", func(t *testing.T) {
		view := &Signature{ID: id("Main::sum"), Return: floatT, Params: []Parameter{{Name: "xs", Type: types.Complex(types.NewDynType(floatT))}}}
		exact, ok := view.Match([]types.TypeInfo{types.Complex(types.NewSpanType(floatT, 4))})
		be.Equal(t, exact, false)
		be.Equal(t, ok, true)
		_, ok = view.Match([]types.TypeInfo{types.Complex(types.NewSpanType(intT, 4))})
		be.Equal(t, ok, false)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "A::x", floatT, Public)
	mustAdd(t, r, "A::B::y", floatT, Public)
	mustAddFunc(t, r, "Math::sin", floatT, floatT)
	mustAddFunc(t, r, "Alt::sin", floatT, floatT)

	r.PushNamespace(id("A"), PlainScope)
	r.PushChild("B", PlainScope)
	be.Equal(t, r.Current(), id("A::B"))
	be.Equal(t, r.Depth(), 3)

	got, err := r.Resolve(id("x"), false)
	be.Err(t, err, nil)
	be.Equal(t, got, id("A::x"))

	got, err = r.Resolve(id("B::y"), false)
	be.Err(t, err, nil)
	be.Equal(t, got, id("A::B::y"))

	_, err = r.Resolve(id("sin"), false)
	be.Err(t, err, "can't resolve sin")
	got, err = r.Resolve(id("sin"), true)
	be.Err(t, err, nil)
	be.True(t, got.IsRoot())

	be.Err(t, r.AddUsedNamespace(id("Math")), nil)
	got, err = r.Resolve(id("sin"), false)
	be.Err(t, err, nil)
	be.Equal(t, got, id("Math::sin"))

	be.Err(t, r.AddUsedNamespace(id("Alt")), nil)
	_, err = r.Resolve(id("sin"), false)
	be.Err(t, err, "sin is ambiguous")

	t.Run("shadowing", func(t *testing.T) {
		mustAdd(t, r, "A::B::x", intT, Public)
		a, err := r.ResolveAlias(id("x"))
		be.Err(t, err, nil)
		be.Equal(t, a.ID, id("A::B::x"))
	})

	be.Err(t, r.RemoveNamespace(id("A")), "namespace A is in use")
	r.PopNamespace()
	r.PopNamespace()
	be.True(t, r.Current().IsRoot())
	be.Err(t, r.AddUsedNamespace(id("Nope")), "can't find namespace Nope")
}

func TestRegistry_Visibility(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "S::secret", floatT, Private)
	mustAdd(t, r, "S::open", floatT, Public)

	be.Err(t, r.CheckVisibilityFrom(types.ID{}, id("S::secret")), "secret is private in S")
	be.Err(t, r.CheckVisibilityFrom(id("S::get::()"), id("S::secret")), nil)
	be.Err(t, r.CheckVisibilityFrom(types.ID{}, id("S::open")), nil)
	be.Err(t, r.CheckVisibility(id("S::missing")), "can't find S::missing")
}

func TestRegistry_CheckpointRollback(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "Main::a", floatT, Public)
	cp := r.Checkpoint()

	mustAdd(t, r, "Main::b", floatT, Public)
	mustAdd(t, r, "Other::c", floatT, Public)
	h, ok := r.Handle(id("Other"))
	be.True(t, ok)

	r.Rollback(cp)
	_, ok = r.Symbol(id("Main::a"))
	be.True(t, ok)
	_, ok = r.Symbol(id("Main::b"))
	be.True(t, !ok)
	_, ok = r.Lookup(id("Other"))
	be.True(t, !ok)
	_, err := r.Get(h)
	be.Err(t, err, "torn down")

	// new namespaces never reuse a burnt slot
	mustAdd(t, r, "Other::c", floatT, Public)
	h2, _ := r.Handle(id("Other"))
	be.True(t, h2 != h)
}

func TestRegistry_RemoveNamespace(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "Main::a", floatT, Public)
	mustAdd(t, r, "Main::Inner::b", floatT, Public)
	inner, _ := r.Handle(id("Main::Inner"))

	be.Err(t, r.RemoveNamespace(id("Main")), nil)
	_, ok := r.Lookup(id("Main"))
	be.True(t, !ok)
	_, ok = r.Lookup(id("Main::Inner"))
	be.True(t, !ok)
	_, err := r.Get(inner)
	be.Err(t, err, "torn down")
	be.Equal(t, len(r.Root().Children()), 0)

	be.Err(t, r.RemoveNamespace(id("Main")), "can't find namespace Main")
	be.Err(t, r.RemoveNamespace(types.ID{}), "can't remove the root namespace")
}

func TestRegistry_CopySymbols(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "Lib::gain", floatT, Public)
	mustAddFunc(t, r, "Lib::f", floatT)

	be.Err(t, r.CopySymbolsFromExistingNamespace(id("Lib"), id("Main")), nil)
	a, ok := r.Symbol(id("Main::gain"))
	be.True(t, ok)
	be.Equal(t, a.Canonical(), id("Lib::gain"))

	mustAdd(t, r, "Other::gain", intT, Public)
	be.Err(t, r.CopySymbolsFromExistingNamespace(id("Lib"), id("Other")), "Other::gain is already defined")
	_, ok = r.Symbol(id("Other::f"))
	be.True(t, !ok)
}

func TestRegistry_TemplateBinding(t *testing.T) {
	r := NewRegistry()
	scope := id("Array<float, 4>")
	T := types.FormalType(id("Array::T"), false)
	N := types.FormalConstant(id("Array::N"), false)

	be.Err(t, r.AddTemplateBinding(scope, types.Binding{Formal: T, Args: types.ParameterList{types.TypeArg(floatT)}}), nil)
	be.Err(t, r.AddTemplateBinding(scope, types.Binding{Formal: N, Args: types.ParameterList{types.ConstantArg(4)}}), nil)

	a, ok := r.Symbol(scope.Child("T"))
	be.True(t, ok)
	be.Equal(t, a.Kind, TemplateType)
	be.True(t, a.Type.Equals(floatT))

	a, ok = r.Symbol(scope.Child("N"))
	be.True(t, ok)
	be.Equal(t, a.Kind, TemplateConstant)
	be.Equal(t, a.Value.Int(), int64(4))

	err := r.AddTemplateBinding(scope, types.Binding{Formal: types.FormalType(id("Array::U"), false)})
	be.Err(t, err, "template parameter U is unbound")
}

func TestRegistry_Editor(t *testing.T) {
	r := NewRegistry()
	mustAddFunc(t, r, "Math::sin", floatT, floatT)
	mustAddFunc(t, r, "Math::sqrt", floatT, floatT)
	mustAddFunc(t, r, "Math::cos", floatT, floatT)
	mustAdd(t, r, "Main::gain", floatT, Public)
	mustAdd(t, r, "Main::f::(float)::g", floatT, Public)
	r.SetLines(id("Main"), LineRange{File: "main.dsp", Start: 1, End: 20})
	r.SetLines(id("Main::f::(float)"), LineRange{File: "main.dsp", Start: 5, End: 8})

	t.Run("autocomplete", func(t *testing.T) {
		var names []string
		for _, c := range r.Autocomplete(id("Main"), "Math::s") {
			names = append(names, c.Name)
		}
		be.Equal(t, names, []string{"sin", "sqrt"})

		got := r.Autocomplete(id("Main::f::(float)"), "g")
		be.Equal(t, len(got), 2)
		be.Equal(t, got[0].String(), "g (variable float)")
		be.Equal(t, got[1].Name, "gain")

		got = r.Autocomplete(id("Main"), "Ma")
		be.Equal(t, len(got), 2)
		be.Equal(t, got[0].String(), "Main (namespace)")

		r.SetInternal(id("Math"))
		be.Equal(t, len(r.Autocomplete(id("Main"), "Ma")), 1)
		be.Equal(t, len(r.Autocomplete(id("Main"), "Nope::x")), 0)
	})

	t.Run("lines", func(t *testing.T) {
		be.Equal(t, r.NamespaceAt("main.dsp", 6), id("Main::f::(float)"))
		be.Equal(t, r.NamespaceAt("main.dsp", 12), id("Main"))
		be.True(t, r.NamespaceAt("other.dsp", 6).IsRoot())

		loc, ok := r.DefinitionLine(id("Main::f::(float)"))
		be.True(t, ok)
		be.Equal(t, loc, diag.Location{File: "main.dsp", Line: 5})
		_, ok = r.DefinitionLine(id("Main::gain"))
		be.True(t, !ok)
	})
}
