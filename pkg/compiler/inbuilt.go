package compiler

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"dspc/pkg/backend"
	"dspc/pkg/symbols"
	"dspc/pkg/templates"
	"dspc/pkg/types"
)

// Inbuilt is a native function every unit can call. It has no body in the
// language; Inliner emits it at each call site.
type Inbuilt struct {
	ID      types.ID
	Return  types.TypeInfo
	Params  []symbols.Parameter
	Method  bool
	Const   bool
	Inliner backend.Inliner
	Comment string
}

var (
	intType    = types.Native(types.Integer)
	floatType  = types.Native(types.Float)
	doubleType = types.Native(types.Double)
	boolType   = types.Native(types.Boolean)
	stringType = types.Native(types.String)
	voidType   = types.Native(types.Void)
)

// AddInbuilt registers fn as an overload in the implicit root namespace (or
// wherever its id puts it).
func (c *Compiler) AddInbuilt(fn Inbuilt) error {
	if fn.Inliner == nil {
		return errors.Errorf("inbuilt %s has no inliner", fn.ID)
	}
	sig := &symbols.Signature{
		ID:      fn.ID,
		Return:  fn.Return,
		Params:  fn.Params,
		Method:  fn.Method,
		Const:   fn.Const,
		Inliner: fn.Inliner,
	}
	_, err := c.Registry.AddFunction(sig, symbols.Public, symbols.DebugInfo{Comment: fn.Comment})
	return err
}

func params(ts ...types.TypeInfo) []symbols.Parameter {
	out := make([]symbols.Parameter, len(ts))
	for i, t := range ts {
		out[i] = symbols.Parameter{Name: fmt.Sprintf("a%d", i), Type: t}
	}
	return out
}

func (c *Compiler) installInbuilts() error {
	for _, install := range []func() error{
		c.installArrays,
		c.installMath,
		c.installConsole,
	} {
		if err := install(); err != nil {
			return errors.Wrap(err, "installing inbuilts")
		}
	}
	return nil
}

// sizeOf is the size() method every array type gets.
func sizeOf(s backend.Service, this *backend.Register, _ []*backend.Register) (*backend.Register, error) {
	return s.Length(this)
}

// addSize gives ct its size() method. Instances rebuilt after a unit is
// removed already have one.
func (c *Compiler) addSize(ct types.ComplexType) error {
	id := ct.ID().Child("size")
	if _, ok := c.Registry.Symbol(id); ok {
		return nil
	}
	err := c.AddInbuilt(Inbuilt{
		ID:      id,
		Return:  intType,
		Method:  true,
		Const:   true,
		Inliner: sizeOf,
		Comment: "number of elements",
	})
	// method namespaces of array types stay out of completions
	c.Registry.SetInternal(ct.ID())
	return err
}

// installArrays defines span<T, N>, dyn<T> and block.
func (c *Compiler) installArrays() error {
	span := &templates.Object{
		ID: types.NewID("span"),
		Params: types.ParameterList{
			types.FormalType(types.NewID("T"), false),
			types.FormalConstant(types.NewID("N"), false),
		},
		Class: templates.ClassBuilderFunc(func(req *templates.ClassRequest) (types.ComplexType, error) {
			elem, n := req.Params[0].Type, req.Params[1].Value
			if n <= 0 {
				return nil, errors.Errorf("span size must be positive, got %d", n)
			}
			if !elem.IsNumeric() && !elem.IsBool() {
				if _, ok := elem.Struct(); !ok {
					return nil, errors.Errorf("span can't hold %s", elem)
				}
			}
			st := types.NewSpanType(elem, n)
			return st, c.addSize(st)
		}),
	}
	if err := c.Templates.AddTemplateClass(span); err != nil {
		return err
	}

	dyn := &templates.Object{
		ID:     types.NewID("dyn"),
		Params: types.ParameterList{types.FormalType(types.NewID("T"), false)},
		Class: templates.ClassBuilderFunc(func(req *templates.ClassRequest) (types.ComplexType, error) {
			elem := req.Params[0].Type
			if !elem.IsNumeric() {
				return nil, errors.Errorf("dyn can only view numbers, not %s", elem)
			}
			dt := types.NewDynType(elem)
			return dt, c.addSize(dt)
		}),
	}
	if err := c.Templates.AddTemplateClass(dyn); err != nil {
		return err
	}

	block := c.Types.Register(types.BlockType{})
	if _, err := c.Registry.AddSymbol(block.ID(), types.Complex(block), symbols.UsingAlias, symbols.Public, symbols.DebugInfo{Comment: "host audio buffer"}); err != nil {
		return err
	}
	return c.addSize(block)
}

// intrinsic maps a floating point function onto the llvm intrinsic of the
// matching width, e.g. llvm.sin.f32.
func intrinsic(name string, ret types.TypeInfo) backend.Inliner {
	suffix := "f64"
	if ret.Is(types.Float) {
		suffix = "f32"
	}
	full := "llvm." + name + "." + suffix
	return func(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
		return s.Intrinsic(full, ret, args)
	}
}

// libm calls a C math function the host links in.
func libm(name string, ret types.TypeInfo) backend.Inliner {
	if ret.Is(types.Float) {
		name += "f"
	}
	return func(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
		return s.External(name, ret, args)
	}
}

// pick returns the first argument when op holds for the pair, else the second.
func pick(op backend.CompareOp) backend.Inliner {
	return func(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
		a, b := s.Load(args[0]), s.Load(args[1])
		cond, err := s.Compare(op, a, b)
		if err != nil {
			return nil, err
		}
		return s.Branch(cond,
			func() (*backend.Register, error) { return a, nil },
			func() (*backend.Register, error) { return b, nil })
	}
}

func absInt(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
	a := s.Load(args[0])
	cond, err := s.Compare(backend.Lt, a, s.Constant(types.IntConstant(0)))
	if err != nil {
		return nil, err
	}
	return s.Branch(cond,
		func() (*backend.Register, error) { return s.Negate(a) },
		func() (*backend.Register, error) { return a, nil })
}

// clamp is max(lo, min(x, hi)).
func clamp(t types.TypeInfo) backend.Inliner {
	lower, upper := intrinsic("maxnum", t), intrinsic("minnum", t)
	return func(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
		hi, err := upper(s, nil, []*backend.Register{args[0], args[2]})
		if err != nil {
			return nil, err
		}
		return lower(s, nil, []*backend.Register{args[1], hi})
	}
}

func (c *Compiler) installMath() error {
	ns := types.NewID("Math")
	for name, v := range map[string]float64{"pi": math.Pi, "e": math.E, "sqrt2": math.Sqrt2} {
		if _, err := c.Registry.AddConstant(ns.Child(name), types.DoubleConstant(v), symbols.Constant, symbols.Public, symbols.DebugInfo{}); err != nil {
			return err
		}
	}

	var fns []Inbuilt
	for _, t := range []types.TypeInfo{floatType, doubleType} {
		for _, name := range []string{"sin", "cos", "exp", "log", "sqrt", "floor", "ceil"} {
			fns = append(fns, Inbuilt{ID: ns.Child(name), Return: t, Params: params(t), Inliner: intrinsic(name, t)})
		}
		fns = append(fns,
			Inbuilt{ID: ns.Child("abs"), Return: t, Params: params(t), Inliner: intrinsic("fabs", t)},
			Inbuilt{ID: ns.Child("pow"), Return: t, Params: params(t, t), Inliner: intrinsic("pow", t)},
			Inbuilt{ID: ns.Child("min"), Return: t, Params: params(t, t), Inliner: intrinsic("minnum", t)},
			Inbuilt{ID: ns.Child("max"), Return: t, Params: params(t, t), Inliner: intrinsic("maxnum", t)},
			Inbuilt{ID: ns.Child("clamp"), Return: t, Params: params(t, t, t), Inliner: clamp(t)},
			Inbuilt{ID: ns.Child("tan"), Return: t, Params: params(t), Inliner: libm("tan", t)},
			Inbuilt{ID: ns.Child("tanh"), Return: t, Params: params(t), Inliner: libm("tanh", t)},
		)
	}
	fns = append(fns,
		Inbuilt{ID: ns.Child("abs"), Return: intType, Params: params(intType), Inliner: absInt},
		Inbuilt{ID: ns.Child("min"), Return: intType, Params: params(intType, intType), Inliner: pick(backend.Lt)},
		Inbuilt{ID: ns.Child("max"), Return: intType, Params: params(intType, intType), Inliner: pick(backend.Gt)},
	)
	for _, fn := range fns {
		if err := c.AddInbuilt(fn); err != nil {
			return err
		}
	}
	return nil
}

// installConsole defines Console::print, which forwards to dspc_print_*
// functions the host provides.
func (c *Compiler) installConsole() error {
	for _, t := range []struct {
		typ    types.TypeInfo
		symbol string
	}{
		{intType, "dspc_print_i32"},
		{floatType, "dspc_print_f32"},
		{doubleType, "dspc_print_f64"},
		{boolType, "dspc_print_bool"},
		{stringType, "dspc_print_str"},
	} {
		symbol := t.symbol
		fn := Inbuilt{
			ID:     types.NewID("Console", "print"),
			Return: voidType,
			Params: params(t.typ),
			Inliner: func(s backend.Service, _ *backend.Register, args []*backend.Register) (*backend.Register, error) {
				return s.External(symbol, voidType, args)
			},
			Comment: "debug output",
		}
		if err := c.AddInbuilt(fn); err != nil {
			return err
		}
	}
	return nil
}
