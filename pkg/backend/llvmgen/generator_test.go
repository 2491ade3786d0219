package llvmgen

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/nalgeon/be"

	"dspc/pkg/backend"
	"dspc/pkg/types"
)

var (
	intT   = types.Native(types.Integer)
	floatT = types.Native(types.Float)
	boolT  = types.Native(types.Boolean)
)

func begin(t *testing.T, g *Generator, symbol string, ret types.TypeInfo, params ...backend.Param) []*backend.Register {
	t.Helper()
	if err := g.DeclareFunction(backend.FunctionSpec{Symbol: symbol, Return: ret, Params: params}); err != nil {
		t.Fatalf("DeclareFunction() error = %v", err)
	}
	regs, err := g.BeginFunction(symbol)
	if err != nil {
		t.Fatalf("BeginFunction() error = %v", err)
	}
	return regs
}

func end(t *testing.T, g *Generator) string {
	t.Helper()
	if err := g.EndFunction(); err != nil {
		t.Fatalf("EndFunction() error = %v", err)
	}
	return g.String()
}

func contains(t *testing.T, ir string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(ir, want) {
			t.Fatalf("IR is missing %q:\n%s", want, ir)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"Main::f(float)":         "Main.f_float",
		"gain":                   "gain",
		"Main::Array<float, 4>":  "Main.Array_float_4",
		"__tmp":                  "tmp",
		"span<Main::V, 2>::size": "span_Main.V_2_.size",
	}
	for in, want := range tests {
		be.Equal(t, sanitize(in), want)
	}
}

func TestGenerator_Arithmetic(t *testing.T) {
	g := New("test.dsp", DefaultOptions)
	regs := begin(t, g, "add", intT, backend.Param{Name: "a", Type: intT}, backend.Param{Name: "b", Type: intT})
	sum, err := g.Binary(backend.Add, regs[0], regs[1])
	be.Err(t, err, nil)
	prod, err := g.Binary(backend.Mul, sum, g.Constant(types.IntConstant(3)))
	be.Err(t, err, nil)
	be.Err(t, g.Return(prod), nil)
	ir := end(t, g)

	contains(t, ir, `source_filename = "test.dsp"`, "define i32 @add(i32 %a, i32 %b)", "add i32", "mul i32", "ret i32")

	t.Run("float", func(t *testing.T) {
		g := New("f", DefaultOptions)
		regs := begin(t, g, "half", floatT, backend.Param{Name: "x", Type: floatT})
		q, err := g.Binary(backend.Div, regs[0], g.Constant(types.FloatConstant(2)))
		be.Err(t, err, nil)
		neg, err := g.Negate(q)
		be.Err(t, err, nil)
		be.Err(t, g.Return(neg), nil)
		contains(t, end(t, g), "fdiv float", "fneg float")
	})

	t.Run("mismatch", func(t *testing.T) {
		g := New("f", DefaultOptions)
		begin(t, g, "f", types.TypeInfo{})
		_, err := g.Binary(backend.Add, g.Constant(types.IntConstant(1)), g.Constant(types.FloatConstant(1)))
		be.Err(t, err, "operand types differ")
		_, err = g.Binary(backend.Add, g.Constant(types.BoolConstant(true)), g.Constant(types.BoolConstant(false)))
		be.Err(t, err, "operator + is not defined for bool")
		_, err = g.Not(g.Constant(types.IntConstant(1)))
		be.Err(t, err, "! needs a bool")
		be.Err(t, g.Store(g.Constant(types.IntConstant(1)), g.Constant(types.IntConstant(2))), "can't assign to a temporary")
	})
}

func TestGenerator_Casts(t *testing.T) {
	g := New("f", DefaultOptions)
	regs := begin(t, g, "conv", floatT, backend.Param{Name: "n", Type: intT})
	f, err := g.Cast(regs[0], floatT)
	be.Err(t, err, nil)
	d, err := g.Cast(f, types.Native(types.Double))
	be.Err(t, err, nil)
	b, err := g.Cast(d, boolT)
	be.Err(t, err, nil)
	be.True(t, b.Type.IsBool())
	same, err := g.Cast(f, floatT)
	be.Err(t, err, nil)
	be.True(t, same == f)
	_, err = g.Cast(f, types.Complex(types.NewSpanType(floatT, 2)))
	be.Err(t, err, "can't cast float to span<float, 2>")
	be.Err(t, g.Return(f), nil)
	contains(t, end(t, g), "sitofp i32", "fpext float", "fcmp one double")
}

func TestGenerator_BranchPhi(t *testing.T) {
	g := New("f", DefaultOptions)
	regs := begin(t, g, "pick", intT, backend.Param{Name: "x", Type: intT})
	cond, err := g.Compare(backend.Gt, regs[0], g.Constant(types.IntConstant(0)))
	be.Err(t, err, nil)
	v, err := g.Branch(cond,
		func() (*backend.Register, error) { return g.Constant(types.IntConstant(1)), nil },
		func() (*backend.Register, error) { return g.Constant(types.IntConstant(-1)), nil },
	)
	be.Err(t, err, nil)
	be.True(t, v != nil)
	be.Err(t, g.Return(v), nil)
	contains(t, end(t, g), "icmp sgt i32", "phi i32", "then.", "endif.")

	t.Run("statement", func(t *testing.T) {
		g := New("f", DefaultOptions)
		regs := begin(t, g, "clip", intT, backend.Param{Name: "x", Type: intT})
		cond, err := g.Compare(backend.Lt, regs[0], g.Constant(types.IntConstant(0)))
		be.Err(t, err, nil)
		v, err := g.Branch(cond, func() (*backend.Register, error) {
			return nil, g.Return(g.Constant(types.IntConstant(0)))
		}, nil)
		be.Err(t, err, nil)
		be.True(t, v == nil)
		be.Err(t, g.Return(regs[0]), nil)
		ir := end(t, g)
		be.True(t, !strings.Contains(ir, "phi"))
		contains(t, ir, "ret i32 0")
	})
}

func TestGenerator_Loops(t *testing.T) {
	g := New("f", DefaultOptions)
	begin(t, g, "count", intT)
	acc := g.Alloca(intT, "acc")
	be.Err(t, g.Zero(acc), nil)
	err := g.Loop(g.Constant(types.IntConstant(10)), func(i *backend.Register) error {
		sum, err := g.Binary(backend.Add, acc, i)
		if err != nil {
			return err
		}
		return g.Store(acc, sum)
	})
	be.Err(t, err, nil)

	err = g.While(func() (*backend.Register, error) {
		return g.Compare(backend.Gt, acc, g.Constant(types.IntConstant(100)))
	}, func() error {
		half, err := g.Binary(backend.Div, acc, g.Constant(types.IntConstant(2)))
		if err != nil {
			return err
		}
		if err := g.Store(acc, half); err != nil {
			return err
		}
		return g.Break()
	})
	be.Err(t, err, nil)
	be.Err(t, g.Return(acc), nil)
	contains(t, end(t, g), "loop.", "endloop.", "while.", "endwhile.", "icmp slt i32", "sdiv i32")

	t.Run("break outside", func(t *testing.T) {
		g := New("f", DefaultOptions)
		begin(t, g, "f", types.TypeInfo{})
		be.Err(t, g.Break(), "break outside a loop")
		be.Err(t, g.Continue(), "continue outside a loop")
	})
}

func TestGenerator_VectorLoop(t *testing.T) {
	arr := types.Complex(types.NewSpanType(floatT, 10))

	emit := func(opts Options) string {
		g := New("f", opts)
		begin(t, g, "scale", types.TypeInfo{})
		buf := g.Alloca(arr, "buf")
		be.Err(t, g.Zero(buf), nil)
		n, err := g.Length(buf)
		be.Err(t, err, nil)
		c, ok := n.Value.(*constant.Int)
		be.True(t, ok)
		be.Equal(t, c.X.Int64(), int64(10))

		err = g.VectorLoop(n, g.Lanes(floatT), func(i *backend.Register, lanes int) error {
			ref, err := g.ElementRef(buf, i)
			if err != nil {
				return err
			}
			v, err := g.LoadLanes(ref, lanes)
			if err != nil {
				return err
			}
			two, err := g.Splat(g.Constant(types.FloatConstant(2)), lanes)
			if err != nil {
				return err
			}
			prod, err := g.Binary(backend.Mul, v, two)
			if err != nil {
				return err
			}
			return g.StoreLanes(ref, prod, lanes)
		})
		be.Err(t, err, nil)
		return end(t, g)
	}

	ir := emit(DefaultOptions)
	contains(t, ir, "<4 x float>", "insertelement", "fmul <4 x float>", "fmul float")
	be.True(t, strings.Count(ir, "endloop.") >= 4)

	scalar := emit(Options{})
	be.True(t, !strings.Contains(scalar, "<4 x float>"))
}

func TestGenerator_Lanes(t *testing.T) {
	g := New("f", DefaultOptions)
	be.Equal(t, g.Lanes(floatT), 4)
	be.Equal(t, g.Lanes(intT), 4)
	be.Equal(t, g.Lanes(types.Native(types.Double)), 2)
	be.Equal(t, g.Lanes(boolT), 1)
	be.Equal(t, g.Lanes(types.Complex(types.NewSpanType(floatT, 4))), 1)
	be.Equal(t, New("f", Options{VectorBits: 256}).Lanes(floatT), 8)
	be.Equal(t, New("f", Options{}).Lanes(floatT), 1)
}

func TestGenerator_Calls(t *testing.T) {
	g := New("f", DefaultOptions)
	be.Err(t, g.DeclareFunction(backend.FunctionSpec{Symbol: "Main.gain_float", Return: floatT, Params: []backend.Param{{Name: "x", Type: floatT}}}), nil)
	be.Err(t, g.DeclareFunction(backend.FunctionSpec{Symbol: "Main.gain_float"}), "function Main.gain_float declared twice")

	regs := begin(t, g, "Main.f", floatT, backend.Param{Name: "x", Type: floatT})
	r, err := g.Call("Main.gain_float", regs)
	be.Err(t, err, nil)
	s, err := g.Intrinsic("llvm.sin.f32", floatT, []*backend.Register{r})
	be.Err(t, err, nil)
	_, err = g.External("dspc_print_f32", types.TypeInfo{}, []*backend.Register{s})
	be.Err(t, err, nil)
	_, err = g.External("dspc_print_f32", types.TypeInfo{}, []*backend.Register{s})
	be.Err(t, err, nil)

	_, err = g.Call("Main.nope", nil)
	be.Err(t, err, "function Main.nope was not declared")
	_, err = g.Call("Main.gain_float", nil)
	be.Err(t, err, "calling Main.gain_float: expected 1 arguments, got 0")
	be.Err(t, g.Return(s), nil)
	ir := end(t, g)

	contains(t, ir, "declare float @llvm.sin.f32(", "call float @Main.gain_float(", "call void @dspc_print_f32(")
	be.Equal(t, strings.Count(ir, "declare void @dspc_print_f32("), 1)

	_, err = g.BeginFunction("Main.f")
	be.Err(t, err, "function Main.f already has a body")
	be.Err(t, g.EndFunction(), "no function in progress")
}

func TestGenerator_DefaultReturn(t *testing.T) {
	g := New("f", DefaultOptions)
	begin(t, g, "empty", intT)
	contains(t, end(t, g), "ret i32 0")

	g = New("f", DefaultOptions)
	begin(t, g, "flag", boolT)
	contains(t, end(t, g), "ret i1 false")

	g = New("f", DefaultOptions)
	begin(t, g, "nothing", types.TypeInfo{})
	contains(t, end(t, g), "define void @nothing()", "ret void")
}

func TestGenerator_Globals(t *testing.T) {
	g := New("f", DefaultOptions)
	r, err := g.DefineGlobal("Main::gain", floatT, []types.Constant{types.FloatConstant(0.5)})
	be.Err(t, err, nil)
	be.True(t, r.Memory)
	_, err = g.DefineGlobal("Main::taps", types.Complex(types.NewSpanType(intT, 3)), nil)
	be.Err(t, err, nil)
	contains(t, g.String(), "@Main.gain = global float", "@Main.taps = global [3 x i32]")
}

func TestGenerator_Structs(t *testing.T) {
	st := types.NewStructType(types.ParseID("Main::Biquad"))
	_, err := st.AddMember("a", floatT, false)
	be.Err(t, err, nil)
	_, err = st.AddMember("n", intT, false)
	be.Err(t, err, nil)
	st.Complete()
	bt := types.Complex(st)

	g := New("f", DefaultOptions)
	begin(t, g, "f", intT)
	s := g.Alloca(bt, "s")
	be.Err(t, g.Zero(s), nil)
	m, err := g.MemberRef(s, 1)
	be.Err(t, err, nil)
	be.True(t, m.Type.Equals(intT))
	_, err = g.MemberRef(s, 2)
	be.Err(t, err, "Main::Biquad has no member 2")
	_, err = g.MemberRef(g.Constant(types.IntConstant(1)), 0)
	be.Err(t, err, "int has no members")
	be.Err(t, g.Return(m), nil)
	contains(t, end(t, g), "getelementptr")
}
