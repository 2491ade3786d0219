package compiler

import (
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"

	"dspc/pkg/ast"
	"dspc/pkg/diag"
	"dspc/pkg/library"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

func newCompiler(t *testing.T, opts Options) *Compiler {
	t.Helper()
	c, err := New(opts, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func mustCompile(t *testing.T, c *Compiler, src string) *Result {
	t.Helper()
	res, err := c.Compile(Unit{Name: "Main", Source: src})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return res
}

func collect[T ast.Node](root ast.Node) []T {
	var out []T
	ast.Walk(root, func(n ast.Node) bool {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestNew_InstallsInbuilts(t *testing.T) {
	c := newCompiler(t, DefaultOptions())

	tests := []struct {
		id        string
		kind      symbols.SymbolKind
		overloads int
	}{
		{"Math::sin", symbols.Function, 2},
		{"Math::abs", symbols.Function, 3},
		{"Math::clamp", symbols.Function, 2},
		{"Console::print", symbols.Function, 5},
		{"Math::pi", symbols.Constant, 0},
		{"span", symbols.TemplatedClass, 0},
		{"dyn", symbols.TemplatedClass, 0},
		{"block", symbols.UsingAlias, 0},
		{"block::size", symbols.Function, 1},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a, ok := c.Registry.Symbol(types.ParseID(tt.id))
			be.True(t, ok)
			be.Equal(t, a.Kind, tt.kind)
			be.Equal(t, len(a.Functions), tt.overloads)
		})
	}
	be.Equal(t, len(c.Units()), 0)
}

// Scenario A: a local read in a sibling statement resolves to the alias
// declared before it.
func TestCompile_SiblingResolution(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	res := mustCompile(t, c, `
int f() {
	int x = 5;
	int y = x;
	return y;
}
`)
	var xs []*ast.VariableReference
	for _, r := range collect[*ast.VariableReference](res.Root) {
		if r.ID.Name() == "x" {
			xs = append(xs, r)
		}
	}
	be.Equal(t, len(xs), 2)
	be.Equal(t, xs[0].ID, xs[1].ID)
	be.True(t, xs[1].Type().Is(types.Integer))
	be.True(t, strings.Contains(res.IR, "define i32 @Main.f()"))
}

// Scenario B: implicit construction from a single value.
func TestCompile_Constructors(t *testing.T) {
	const decl = `
struct S {
	int v;
	S(int x) { v = x; }
};
`
	t.Run("Matching constructor", func(t *testing.T) {
		c := newCompiler(t, DefaultOptions())
		res := mustCompile(t, c, decl+"int f() { S s = 3; return s.v; }")
		var ctors int
		for _, call := range collect[*ast.FunctionCall](res.Root) {
			if call.Sig != nil && call.Sig.Constructor {
				ctors++
			}
		}
		be.Equal(t, ctors, 1)
	})
	t.Run("No matching constructor", func(t *testing.T) {
		c := newCompiler(t, DefaultOptions())
		_, err := c.Compile(Unit{Name: "Main", Source: decl + `void f() { S s = "text"; }`})
		be.Err(t, err, "constructor")
		be.Err(t, err, "compiling Main")
	})
}

// Scenario C: one ComplexType per distinct instantiation.
func TestCompile_TemplateInstancesShared(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	res := mustCompile(t, c, `
template <typename T, int N>
struct Array {
	T first;
};

Array<float, 4> a;
Array<float, 4> b;
`)
	defs := collect[*ast.ComplexTypeDefinition](res.Root)
	be.Equal(t, len(defs), 2)
	be.Equal(t, defs[0].Declared.Complex(), defs[1].Declared.Complex())

	ct, ok := c.Types.Lookup(types.ParseID("Main::Array<float, 4>"))
	be.True(t, ok)
	be.Equal(t, ct, defs[0].Declared.Complex())
}

func TestCompile_ExplicitTemplateArgs(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	res := mustCompile(t, c, `
template <typename T>
T twice(T x) { return x + x; }
float f() { return twice<float>(2); }
`)
	var sigs []string
	for _, call := range collect[*ast.FunctionCall](res.Root) {
		if call.Sig != nil {
			sigs = append(sigs, call.Sig.String())
		}
	}
	be.Equal(t, sigs, []string{"float Main::twice<float>(float)"})
}

// Scenario D: constant indices are bounds checked, runtime ones only warn in
// safe mode.
func TestCompile_SpanIndexing(t *testing.T) {
	const runtime = `
span<float, 4> a;
float f(int i) { return a[i]; }
`
	t.Run("Constant out of range", func(t *testing.T) {
		c := newCompiler(t, DefaultOptions())
		_, err := c.Compile(Unit{Name: "Main", Source: "span<float, 4> a;\nfloat f() {\n\treturn a[10];\n}\n"})
		be.Err(t, err, "index 10 is out of range for span<float, 4>")
		de, ok := diag.AsError(err)
		be.True(t, ok)
		be.Equal(t, de.Loc.Line, 3)
	})
	t.Run("Runtime index", func(t *testing.T) {
		c := newCompiler(t, DefaultOptions())
		res := mustCompile(t, c, runtime)
		be.Equal(t, len(res.Warnings), 0)
	})
	t.Run("Runtime index in safe mode", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SafeMode = true
		c := newCompiler(t, opts)
		res := mustCompile(t, c, runtime)
		be.Equal(t, len(res.Warnings), 1)
		be.True(t, strings.Contains(res.Warnings[0].Msg, "unchecked index"))
	})
	t.Run("Dyn view", func(t *testing.T) {
		const src = `
span<float, 4> a;
float f(int i) {
	dyn<float> d = a;
	return d[i];
}
`
		tests := []struct {
			safe     bool
			warnings int
		}{
			{false, 0},
			{true, 1},
		}
		for _, tt := range tests {
			opts := DefaultOptions()
			opts.SafeMode = tt.safe
			c := newCompiler(t, opts)
			res := mustCompile(t, c, src)
			be.Equal(t, len(res.Warnings), tt.warnings)
		}
	})
}

// Scenario E: element-wise arithmetic becomes a loop.
func TestCompile_VectorOps(t *testing.T) {
	const src = `
span<float, 8> a;
span<float, 8> b;
span<float, 8> out;
void mix() { out = a + b * 0.5f; }
`
	c := newCompiler(t, DefaultOptions())
	res := mustCompile(t, c, src)
	be.True(t, len(collect[*ast.VectorOp](res.Root)) > 0)
	be.Equal(t, len(collect[*ast.BinaryOp](res.Root)), 0)
	be.True(t, strings.Contains(res.IR, "endloop"))
	be.True(t, strings.Contains(res.IR, "<4 x float>"))

	t.Run("Scalar only", func(t *testing.T) {
		opts := DefaultOptions()
		opts.VectorBits = 0
		c := newCompiler(t, opts)
		res := mustCompile(t, c, src)
		be.True(t, strings.Contains(res.IR, "endloop"))
		be.True(t, !strings.Contains(res.IR, "<4 x float>"))
	})
}

func TestCompile_ShortCircuitFolding(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"Or", "true || g() > 0"},
		{"And", "false && g() > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t, DefaultOptions())
			res := mustCompile(t, c, "int g() { return 1; }\nbool f() { return "+tt.expr+"; }")
			be.Equal(t, len(collect[*ast.FunctionCall](res.Root)), 0)
			be.True(t, !strings.Contains(res.IR, "call i32 @Main.g"))
		})
	}
}

func TestCompile_DeadFunctions(t *testing.T) {
	const src = `
namespace N {
	int used() { return 2; }
	int unused() { return 3; }
}
int f() { return N::used(); }
`
	tests := []struct {
		optimize bool
		defines  int
	}{
		{false, 3},
		{true, 2},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Optimize = tt.optimize
		c := newCompiler(t, opts)
		res := mustCompile(t, c, src)
		be.Equal(t, strings.Count(res.IR, "define "), tt.defines)
		be.True(t, strings.Contains(res.IR, "define i32 @Main.f()"))
	}
}

func TestCompile_Inbuilts(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			"Float intrinsics",
			"float f(float x) { return Math::sin(x) + Math::clamp(x, 0.0f, 1.0f); }",
			[]string{"@llvm.sin.f32", "@llvm.minnum.f32", "@llvm.maxnum.f32"},
		},
		{
			"Double intrinsics",
			"double f(double x) { return Math::sqrt(x) * Math::pi; }",
			[]string{"@llvm.sqrt.f64"},
		},
		{
			"Integer max",
			"int f(int a) { return Math::max(a, 3); }",
			[]string{"icmp sgt", "phi i32"},
		},
		{
			"Libm",
			"float f(float x) { return Math::tan(x); }",
			[]string{"@tanf"},
		},
		{
			"Console",
			"void f() { Console::print(1.5); Console::print(2); }",
			[]string{"@dspc_print_f64", "@dspc_print_i32"},
		},
		{
			"Span size",
			"span<float, 8> buf;\nint f() { return buf.size(); }",
			[]string{"ret i32 8"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t, DefaultOptions())
			res := mustCompile(t, c, tt.src)
			for _, w := range tt.want {
				if !strings.Contains(res.IR, w) {
					t.Fatalf("IR is missing %q:\n%s", w, res.IR)
				}
			}
		})
	}
}

func TestCompile_InvalidSpan(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	_, err := c.Compile(Unit{Name: "Main", Source: "span<float, 0> a;"})
	be.Err(t, err, "span size must be positive")
	_, ok := c.Types.Lookup(types.ParseID("span<float, 0>"))
	be.True(t, !ok)
}

func TestCompile_Includes(t *testing.T) {
	lib := library.NewStore()
	be.Err(t, lib.Write("dsp/gain.h", "float gain(float x) { return x * 0.5f; }\n"), nil)
	opts := DefaultOptions()
	opts.SearchPaths = []string{"dsp"}
	c, err := New(opts, lib, nil)
	be.Err(t, err, nil)

	res, err := c.Compile(Unit{Name: "Main", Source: "#include \"gain.h\"\nfloat f(float x) { return gain(x); }\n"})
	be.Err(t, err, nil)
	be.True(t, strings.Contains(res.IR, "@Main.gain_float"))

	_, err = c.Compile(Unit{Name: "Other", Source: "#include \"missing.h\"\n"})
	be.Err(t, err, "file not found")
}

func TestCompile_Deterministic(t *testing.T) {
	const src = `
struct Voice { float phase; float step() { phase += 0.1f; return phase; } };
Voice v;
float f() { return v.step() * 2.0f; }
`
	c := newCompiler(t, DefaultOptions())
	first := mustCompile(t, c, src)
	second := mustCompile(t, c, src)
	be.Equal(t, second.IR, first.IR)
}

func TestCompile_Recompile(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	mustCompile(t, c, "float gain = 1.0f;\nfloat f() { return gain; }")
	_, ok := c.Registry.Symbol(types.NewID("Main", "gain"))
	be.True(t, ok)

	mustCompile(t, c, "float level = 1.0f;\nfloat f() { return level; }")
	_, ok = c.Registry.Symbol(types.NewID("Main", "gain"))
	be.True(t, !ok)
	_, ok = c.Registry.Symbol(types.NewID("Main", "level"))
	be.True(t, ok)
	be.Equal(t, c.Units(), []string{"Main"})
}

func TestCompile_RollsBackOnError(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	mustCompile(t, c, "float gain = 1.0f;\nspan<float, 2> buf;")

	_, err := c.Compile(Unit{Name: "Main", Source: "span<int, 3> other;\nfloat f() { return nope; }"})
	be.Err(t, err, "can't resolve nope")

	// the previous version is still in place
	_, ok := c.Registry.Symbol(types.NewID("Main", "gain"))
	be.True(t, ok)
	_, ok = c.Types.Lookup(types.ParseID("span<int, 3>"))
	be.True(t, !ok)
	_, ok = c.Registry.Symbol(types.ParseID("span<int, 3>::size"))
	be.True(t, !ok)
	_, ok = c.Registry.Symbol(types.ParseID("span<float, 2>::size"))
	be.True(t, ok)

	t.Run("New unit", func(t *testing.T) {
		_, err := c.Compile(Unit{Name: "Broken", Source: "int x = ;"})
		be.True(t, err != nil)
		_, ok := c.Registry.Lookup(types.NewID("Broken"))
		be.True(t, !ok)
		be.Equal(t, c.Units(), []string{"Main"})
	})
}

func TestCompile_UnitNames(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	_, err := c.Compile(Unit{Name: "1st", Source: ""})
	be.Err(t, err, "invalid unit name")
	_, err = c.Compile(Unit{Name: "Math", Source: ""})
	be.Err(t, err, "already taken")
}

func TestCheck(t *testing.T) {
	opts := DefaultOptions()
	opts.SafeMode = true
	c := newCompiler(t, opts)
	warnings, err := c.Check(Unit{Name: "Main", Source: "span<float, 4> a;\nfloat f(int i) { return a[i]; }"})
	be.Err(t, err, nil)
	be.Equal(t, len(warnings), 1)
	_, ok := c.Registry.Lookup(types.NewID("Main"))
	be.True(t, !ok)

	_, err = c.Check(Unit{Name: "Main", Source: "void f() { break; }"})
	be.Err(t, err, "outside a loop")
}

func TestRemoveAndReset(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	mustCompile(t, c, "float gain = 1.0f;")
	_, err := c.Compile(Unit{Name: "Other", Source: "int n = 2;"})
	be.Err(t, err, nil)
	be.Equal(t, c.Units(), []string{"Main", "Other"})

	be.Err(t, c.Remove("Other"), nil)
	_, ok := c.Registry.Lookup(types.NewID("Other"))
	be.True(t, !ok)
	be.Err(t, c.Remove("Other"), "not compiled")

	c.Reset()
	be.Equal(t, len(c.Units()), 0)
	_, ok = c.Registry.Lookup(types.NewID("Main"))
	be.True(t, !ok)
	_, ok = c.Registry.Symbol(types.NewID("Math", "sin"))
	be.True(t, ok)
	mustCompile(t, c, "float gain = 2.0f;")
}

func TestOptionsFromEnv_Defaults(t *testing.T) {
	base := DefaultOptions()
	opts, err := OptionsFromEnv(base)
	be.Err(t, err, nil)
	be.Equal(t, opts, base)
	be.Equal(t, opts.VectorBits, 128)
}

func TestWorker_LastWriterWins(t *testing.T) {
	w := NewWorker(newCompiler(t, DefaultOptions()))
	defer w.Close()

	var last uint64
	for i := 0; i < 5; i++ {
		last = w.Submit(Unit{Name: "Main", Source: "float gain = 1.0f;"})
	}
	timeout := time.After(10 * time.Second)
	var prev uint64
	for {
		select {
		case o := <-w.Results():
			be.True(t, o.Seq > prev)
			prev = o.Seq
			if o.Seq == last {
				be.Err(t, o.Err, nil)
				be.Equal(t, o.Unit, "Main")
				return
			}
		case <-timeout:
			t.Fatalf("no result for request %d", last)
		}
	}
}

func TestWorker_UnitsDoNotSupersedeEachOther(t *testing.T) {
	w := NewWorker(newCompiler(t, DefaultOptions()))
	defer w.Close()

	want := map[string]uint64{
		"A": w.Submit(Unit{Name: "A", Source: "float gain = 1.0f;"}),
		"B": w.Submit(Unit{Name: "B", Source: "int taps = 3;"}),
	}
	timeout := time.After(10 * time.Second)
	for len(want) > 0 {
		select {
		case o := <-w.Results():
			be.Err(t, o.Err, nil)
			if o.Seq == want[o.Unit] {
				delete(want, o.Unit)
			}
		case <-timeout:
			t.Fatalf("no result for units %v", want)
		}
	}
}

func TestDump(t *testing.T) {
	c := newCompiler(t, DefaultOptions())
	res := mustCompile(t, c, "float gain = 0.5f;\nconst int taps = 4;\nfloat f(float x) { return x * gain; }\n")

	var ns strings.Builder
	DumpNamespaces(&ns, c.Registry, types.NewID("Main"), false)
	for _, want := range []string{
		"Main [namespace]",
		"  variable gain float",
		"  constant taps = 4",
		"  function float Main::f(float)",
		"Main::f::(float)",
	} {
		if !strings.Contains(ns.String(), want) {
			t.Fatalf("namespace dump is missing %q:\n%s", want, ns.String())
		}
	}

	var tree strings.Builder
	DumpAST(&tree, res.Root)
	be.True(t, strings.HasPrefix(tree.String(), "StatementBlock"))
	be.True(t, strings.Contains(tree.String(), "\n  Function"))
}
