package ast_test

import (
	"io"
	"testing"

	"github.com/nalgeon/be"
	"github.com/sirupsen/logrus"

	"dspc/pkg/ast"
	"dspc/pkg/parser"
	"dspc/pkg/symbols"
	"dspc/pkg/templates"
	"dspc/pkg/types"
)

func check(src string, opts ast.Options) (*ast.CompilationContext, error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)
	reg := symbols.NewRegistry()
	tr := types.NewRegistry()
	eng := templates.NewEngine(reg, tr, log)
	ctx := ast.NewCompilationContext(reg, tr, eng, nil, opts, log)
	if _, err := parser.Parse(ctx, types.NewID("Main"), "main.dsp", src, nil); err != nil {
		return ctx, err
	}
	return ctx, ast.Run(ctx, ast.TypeCheck)
}

func mustCheck(t *testing.T, src string) *ast.CompilationContext {
	t.Helper()
	ctx, err := check(src, ast.Options{})
	if err != nil {
		t.Fatalf("check() error = %v", err)
	}
	return ctx
}

func count[T ast.Node](root ast.Node) int {
	n := 0
	ast.Walk(root, func(x ast.Node) bool {
		if _, ok := x.(T); ok {
			n++
		}
		return true
	})
	return n
}

func TestRun_DeducesAuto(t *testing.T) {
	ctx := mustCheck(t, `
float gain = 0.5f;
void f() {
	auto a = gain * 2;
	auto b = 1.0;
}
`)
	a, ok := ctx.Registry.Symbol(types.ParseID("Main::f::()::{0}::a"))
	be.True(t, ok)
	be.Equal(t, a.Type.String(), "float")

	b, ok := ctx.Registry.Symbol(types.ParseID("Main::f::()::{0}::b"))
	be.True(t, ok)
	be.Equal(t, b.Type.String(), "double")
}

func TestRun_FoldsConstants(t *testing.T) {
	ctx := mustCheck(t, `
const int size = 4;
int g() { return 1; }
float f() {
	bool skip = true || g() > 0;
	return size * 2 + 0.5f;
}
`)
	be.Equal(t, ctx.Pass(), ast.TypeCheck)

	be.Equal(t, count[*ast.FunctionCall](ctx.Root), 0)
	be.Equal(t, count[*ast.BinaryOp](ctx.Root), 0)

	var ret *ast.ReturnStatement
	ast.Walk(ctx.Root, func(n ast.Node) bool {
		if r, ok := n.(*ast.ReturnStatement); ok {
			ret = r
		}
		return true
	})
	imm, ok := ret.Children()[0].(*ast.Immediate)
	be.True(t, ok)
	be.Equal(t, imm.Value.String(), "8.5f")
}

func TestRun_Overloads(t *testing.T) {
	ctx := mustCheck(t, `
float amp(float x) { return x; }
int amp(int x) { return x; }
void f() {
	float a = amp(1.0f);
	int b = amp(2);
}
`)
	var calls []*ast.FunctionCall
	ast.Walk(ctx.Root, func(n ast.Node) bool {
		if c, ok := n.(*ast.FunctionCall); ok {
			calls = append(calls, c)
		}
		return true
	})
	be.Equal(t, len(calls), 2)
	be.Equal(t, calls[0].Sig.String(), "float Main::amp(float)")
	be.Equal(t, calls[1].Sig.String(), "int Main::amp(int)")
}

func TestRun_TypesEveryNode(t *testing.T) {
	ctx := mustCheck(t, `
struct Voice {
	float level = 1.0f;
	float scaled(float x) { return x * level; }
};
span<float, 4> buf;
float run(bool on) {
	Voice v;
	auto total = 0.0f;
	for (float s : buf) {
		total += v.scaled(s);
	}
	int n = 0;
	while (n < 4) {
		n++;
	}
	return on ? total : -total;
}
`)
	ast.Walk(ctx.Root, func(n ast.Node) bool {
		if _, ok := n.(*ast.Noop); ok {
			return true
		}
		if n.Type().IsDynamic() {
			t.Fatalf("%s at %s has no type after type checking", n.Kind(), n.Loc())
		}
		return true
	})
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"Break outside loop", "void f() { break; }", "outside a loop"},
		{"Missing return value", "int f() { return; }", "must return int"},
		{"Void returns value", "void f() { return 1; }", "void function f can't return a value"},
		{"Assign constant", "const int k = 1; void f() { k = 2; }", "not assignable"},
		{"No member", "struct S { float a; }; void f() { S s; s.b = 1.0f; }", "has no member b"},
		{"Negate string", `void f() { auto s = -"x"; }`, "can't negate string"},
		{"Void value", "void g() {} void f() { float x = g(); }", "has no value"},
		{"Mixed ternary", `void f(bool c) { auto x = c ? 1.0f : "s"; }`, "branches of ?: have different types"},
		{"Global initialiser", "int g() { return 1; } int x = g();", "global x must be initialised with a constant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := check(tt.src, ast.Options{})
			be.Err(t, err, tt.want)
		})
	}
}
