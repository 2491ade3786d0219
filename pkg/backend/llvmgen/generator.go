// Package llvmgen implements backend.Service by building an LLVM IR module
// with github.com/llir/llvm. The module text can be handed to any LLVM
// toolchain or JIT by the host.
package llvmgen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"dspc/pkg/backend"
	"dspc/pkg/types"
)

// Options tune code emission.
type Options struct {
	// VectorBits is the SIMD register width; 0 disables vector loops.
	VectorBits int
}

var DefaultOptions = Options{VectorBits: 128}

type function struct {
	spec  backend.FunctionSpec
	f     *ir.Func
	entry *ir.Block
}

type loopTargets struct {
	cont, exit *ir.Block
}

// Generator emits one LLVM module.
type Generator struct {
	opts      Options
	m         *ir.Module
	funcs     map[string]*function
	externals map[string]*ir.Func
	structs   map[string]lltypes.Type
	strings   map[string]*ir.Global
	fn        *function
	block     *ir.Block
	loops     []loopTargets
	counter   int
}

var _ backend.Service = (*Generator)(nil)

func New(name string, opts Options) *Generator {
	m := ir.NewModule()
	m.SourceFilename = name
	return &Generator{
		opts:      opts,
		m:         m,
		funcs:     make(map[string]*function),
		externals: make(map[string]*ir.Func),
		structs:   make(map[string]lltypes.Type),
		strings:   make(map[string]*ir.Global),
	}
}

// Module exposes the underlying IR module.
func (g *Generator) Module() *ir.Module { return g.m }

func (g *Generator) String() string { return g.m.String() }

func (g *Generator) unique(name string) string {
	g.counter++
	return fmt.Sprintf("%s.%d", sanitize(name), g.counter)
}

func (g *Generator) reg(t types.TypeInfo, v value.Value) *backend.Register {
	return &backend.Register{Type: t, Value: v, Lanes: 1}
}

func (g *Generator) mem(t types.TypeInfo, ptr value.Value) *backend.Register {
	return &backend.Register{Type: t, Value: ptr, Memory: true, Lanes: 1}
}

func (g *Generator) value(r *backend.Register) value.Value {
	return g.Load(r).Value.(value.Value)
}

func (g *Generator) DeclareFunction(spec backend.FunctionSpec) error {
	if _, ok := g.funcs[spec.Symbol]; ok {
		return errors.Errorf("function %s declared twice", spec.Symbol)
	}
	params := make([]*ir.Param, len(spec.Params))
	for i, p := range spec.Params {
		params[i] = ir.NewParam(sanitize(p.Name), g.paramType(p.Type))
	}
	f := g.m.NewFunc(spec.Symbol, g.lltype(spec.Return.Plain()), params...)
	g.funcs[spec.Symbol] = &function{spec: spec, f: f}
	return nil
}

func (g *Generator) BeginFunction(symbol string) ([]*backend.Register, error) {
	fn, ok := g.funcs[symbol]
	if !ok {
		return nil, errors.Errorf("function %s was not declared", symbol)
	}
	if fn.entry != nil {
		return nil, errors.Errorf("function %s already has a body", symbol)
	}
	fn.entry = fn.f.NewBlock("entry")
	body := fn.f.NewBlock("body")
	g.fn, g.block = fn, body

	regs := make([]*backend.Register, len(fn.spec.Params))
	for i, p := range fn.spec.Params {
		param := fn.f.Params[i]
		switch {
		case p.Type.IsRef():
			regs[i] = g.mem(p.Type, param)
		case p.Type.IsComplex():
			// by-value aggregates get a private copy
			slot := g.Alloca(p.Type, p.Name)
			g.block.NewStore(g.block.NewLoad(g.lltype(p.Type), param), slot.Value.(value.Value))
			regs[i] = slot
		default:
			slot := g.Alloca(p.Type, p.Name)
			g.block.NewStore(param, slot.Value.(value.Value))
			regs[i] = slot
		}
	}
	return regs, nil
}

func (g *Generator) EndFunction() error {
	if g.fn == nil {
		return errors.New("no function in progress")
	}
	fn := g.fn
	fn.entry.NewBr(fn.f.Blocks[1])
	ret := fn.f.Sig.RetType
	for _, b := range fn.f.Blocks {
		if b.Term != nil {
			continue
		}
		if ret.Equal(lltypes.Void) {
			b.NewRet(nil)
		} else {
			b.NewRet(zeroOf(ret))
		}
	}
	g.fn, g.block, g.loops = nil, nil, nil
	return nil
}

// zeroOf is the zero value of t; aggregates use zeroinitializer.
func zeroOf(t lltypes.Type) constant.Constant {
	switch t := t.(type) {
	case *lltypes.IntType:
		return constant.NewInt(t, 0)
	case *lltypes.FloatType:
		return constant.NewFloat(t, 0)
	case *lltypes.PointerType:
		return constant.NewNull(t)
	}
	return constant.NewZeroInitializer(t)
}

func (g *Generator) DefineGlobal(name string, t types.TypeInfo, init []types.Constant) (*backend.Register, error) {
	c, err := g.constantOf(t, init)
	if err != nil {
		return nil, err
	}
	glob := g.m.NewGlobalDef(sanitize(name), c)
	return g.mem(t, glob), nil
}

func (g *Generator) Alloca(t types.TypeInfo, name string) *backend.Register {
	slot := g.fn.entry.NewAlloca(g.lltype(t.Plain()))
	slot.SetName(g.unique(name))
	return g.mem(t.Plain(), slot)
}

func (g *Generator) Materialize(r *backend.Register) *backend.Register {
	if r.Memory {
		return r
	}
	slot := g.Alloca(r.Type, "tmp")
	g.block.NewStore(r.Value.(value.Value), slot.Value.(value.Value))
	return slot
}

func (g *Generator) Zero(dst *backend.Register) error {
	if !dst.Memory {
		return errors.New("can't initialise a temporary")
	}
	c, err := g.constantOf(dst.Type.Plain(), nil)
	if err != nil {
		return err
	}
	g.block.NewStore(c, dst.Value.(value.Value))
	return nil
}

func (g *Generator) Constant(c types.Constant) *backend.Register {
	v, err := g.scalarConstant(c)
	if err != nil {
		v = constant.NewInt(lltypes.I32, 0)
	}
	return g.reg(types.Native(c.Type()), v)
}

func (g *Generator) Load(r *backend.Register) *backend.Register {
	if !r.Memory {
		return r
	}
	ld := g.block.NewLoad(g.lltype(r.Type.Plain()), r.Value.(value.Value))
	return g.reg(r.Type.Plain(), ld)
}

func (g *Generator) Store(dst, src *backend.Register) error {
	if !dst.Memory {
		return errors.New("can't assign to a temporary")
	}
	if src.Lanes > 1 {
		return g.StoreLanes(dst, src, src.Lanes)
	}
	v := g.value(src)
	want := g.lltype(dst.Type.Plain())
	if !v.Type().Equal(want) {
		return errors.Errorf("can't store %s into %s", src.Type, dst.Type)
	}
	g.block.NewStore(v, dst.Value.(value.Value))
	return nil
}

func (g *Generator) Binary(op backend.Op, l, r *backend.Register) (*backend.Register, error) {
	lv, rv := g.value(l), g.value(r)
	if !lv.Type().Equal(rv.Type()) {
		return nil, errors.Errorf("operand types differ: %s %s %s", l.Type, op, r.Type)
	}
	t := l.Type.Plain()
	var v value.Value
	if t.Native().IsFloatingPoint() {
		switch op {
		case backend.Add:
			v = g.block.NewFAdd(lv, rv)
		case backend.Sub:
			v = g.block.NewFSub(lv, rv)
		case backend.Mul:
			v = g.block.NewFMul(lv, rv)
		case backend.Div:
			v = g.block.NewFDiv(lv, rv)
		case backend.Mod:
			v = g.block.NewFRem(lv, rv)
		}
	} else if t.Is(types.Integer) {
		switch op {
		case backend.Add:
			v = g.block.NewAdd(lv, rv)
		case backend.Sub:
			v = g.block.NewSub(lv, rv)
		case backend.Mul:
			v = g.block.NewMul(lv, rv)
		case backend.Div:
			v = g.block.NewSDiv(lv, rv)
		case backend.Mod:
			v = g.block.NewSRem(lv, rv)
		}
	}
	if v == nil {
		return nil, errors.Errorf("operator %s is not defined for %s", op, t)
	}
	return &backend.Register{Type: t, Value: v, Lanes: max(l.Lanes, r.Lanes)}, nil
}

var (
	intPreds   = [...]enum.IPred{enum.IPredEQ, enum.IPredNE, enum.IPredSLT, enum.IPredSLE, enum.IPredSGT, enum.IPredSGE}
	floatPreds = [...]enum.FPred{enum.FPredOEQ, enum.FPredONE, enum.FPredOLT, enum.FPredOLE, enum.FPredOGT, enum.FPredOGE}
)

func (g *Generator) Compare(op backend.CompareOp, l, r *backend.Register) (*backend.Register, error) {
	lv, rv := g.value(l), g.value(r)
	if !lv.Type().Equal(rv.Type()) {
		return nil, errors.Errorf("operand types differ: %s %s %s", l.Type, op, r.Type)
	}
	var v value.Value
	switch t := l.Type.Plain(); {
	case t.Native().IsFloatingPoint():
		v = g.block.NewFCmp(floatPreds[op], lv, rv)
	case t.Is(types.Integer), t.Is(types.Boolean):
		v = g.block.NewICmp(intPreds[op], lv, rv)
	default:
		return nil, errors.Errorf("can't compare %s values", t)
	}
	return g.reg(types.Native(types.Boolean), v), nil
}

func (g *Generator) Not(r *backend.Register) (*backend.Register, error) {
	if !r.Type.IsBool() {
		return nil, errors.Errorf("! needs a bool, got %s", r.Type)
	}
	return g.reg(r.Type.Plain(), g.block.NewXor(g.value(r), constant.NewBool(true))), nil
}

func (g *Generator) Negate(r *backend.Register) (*backend.Register, error) {
	v := g.value(r)
	switch t := r.Type.Plain(); {
	case t.Native().IsFloatingPoint():
		return &backend.Register{Type: t, Value: g.block.NewFNeg(v), Lanes: r.Lanes}, nil
	case t.Is(types.Integer):
		return &backend.Register{Type: t, Value: g.block.NewSub(constant.NewInt(lltypes.I32, 0), v), Lanes: r.Lanes}, nil
	}
	return nil, errors.Errorf("can't negate %s", r.Type)
}

func (g *Generator) Cast(r *backend.Register, to types.TypeInfo) (*backend.Register, error) {
	from := r.Type.Plain()
	to = to.Plain()
	if from.Equals(to) {
		return r, nil
	}
	if from.IsComplex() || to.IsComplex() {
		return nil, errors.Errorf("can't cast %s to %s", from, to)
	}
	v := g.value(r)
	lt := g.lltype(to)
	var out value.Value
	switch f, t := from.Native(), to.Native(); {
	case f == types.Integer && t.IsFloatingPoint():
		out = g.block.NewSIToFP(v, lt)
	case f == types.Boolean && t.IsFloatingPoint():
		out = g.block.NewUIToFP(v, lt)
	case f.IsFloatingPoint() && t == types.Integer:
		out = g.block.NewFPToSI(v, lt)
	case f == types.Float && t == types.Double:
		out = g.block.NewFPExt(v, lt)
	case f == types.Double && t == types.Float:
		out = g.block.NewFPTrunc(v, lt)
	case f == types.Boolean && t == types.Integer:
		out = g.block.NewZExt(v, lt)
	case f == types.Integer && t == types.Boolean:
		out = g.block.NewICmp(enum.IPredNE, v, constant.NewInt(lltypes.I32, 0))
	case f.IsFloatingPoint() && t == types.Boolean:
		out = g.block.NewFCmp(enum.FPredONE, v, zeroOf(v.Type()))
	default:
		return nil, errors.Errorf("can't cast %s to %s", from, to)
	}
	return g.reg(to, out), nil
}

func (g *Generator) args(params []backend.Param, args []*backend.Register) ([]value.Value, error) {
	if len(params) != len(args) {
		return nil, errors.Errorf("expected %d arguments, got %d", len(params), len(args))
	}
	vals := make([]value.Value, len(args))
	for i, a := range args {
		p := params[i].Type
		if p.IsRef() || p.IsComplex() {
			vals[i] = g.Materialize(a).Value.(value.Value)
			continue
		}
		vals[i] = g.value(a)
	}
	return vals, nil
}

func (g *Generator) Call(symbol string, args []*backend.Register) (*backend.Register, error) {
	fn, ok := g.funcs[symbol]
	if !ok {
		return nil, errors.Errorf("function %s was not declared", symbol)
	}
	vals, err := g.args(fn.spec.Params, args)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", symbol)
	}
	call := g.block.NewCall(fn.f, vals...)
	if fn.spec.Return.IsVoid() {
		return nil, nil
	}
	return g.reg(fn.spec.Return.Plain(), call), nil
}

// Intrinsic calls an LLVM intrinsic such as llvm.sin.f32.
func (g *Generator) Intrinsic(name string, ret types.TypeInfo, args []*backend.Register) (*backend.Register, error) {
	return g.External(name, ret, args)
}

// External calls a function the host links in, declaring it on first use.
func (g *Generator) External(name string, ret types.TypeInfo, args []*backend.Register) (*backend.Register, error) {
	params := make([]backend.Param, len(args))
	for i, a := range args {
		params[i] = backend.Param{Name: fmt.Sprintf("a%d", i), Type: a.Type.Plain()}
	}
	f, ok := g.externals[name]
	if !ok {
		irParams := make([]*ir.Param, len(params))
		for i, p := range params {
			irParams[i] = ir.NewParam(p.Name, g.paramType(p.Type))
		}
		f = g.m.NewFunc(name, g.lltype(ret), irParams...)
		g.externals[name] = f
	}
	vals, err := g.args(params, args)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", name)
	}
	call := g.block.NewCall(f, vals...)
	if ret.IsVoid() {
		return nil, nil
	}
	return g.reg(ret.Plain(), call), nil
}

func (g *Generator) ElementRef(base, index *backend.Register) (*backend.Register, error) {
	arr, ok := base.Type.Array()
	if !ok {
		return nil, errors.Errorf("%s can't be indexed", base.Type)
	}
	base = g.Materialize(base)
	idx := g.value(index)
	zero := constant.NewInt(lltypes.I32, 0)
	elem := arr.Element()
	if _, ok := arr.(*types.SpanType); ok {
		ptr := g.block.NewGetElementPtr(g.lltype(base.Type.Plain()), base.Value.(value.Value), zero, idx)
		return g.mem(elem, ptr), nil
	}
	data := g.dataPointer(base)
	return g.mem(elem, g.block.NewGetElementPtr(g.lltype(elem), data, idx)), nil
}

func (g *Generator) dataPointer(view *backend.Register) value.Value {
	zero := constant.NewInt(lltypes.I32, 0)
	st := g.lltype(view.Type.Plain())
	field := g.block.NewGetElementPtr(st, view.Value.(value.Value), zero, zero)
	elem := view.Type.Complex().(types.ArrayType).Element()
	return g.block.NewLoad(lltypes.NewPointer(g.lltype(elem)), field)
}

func (g *Generator) MemberRef(base *backend.Register, index int) (*backend.Register, error) {
	st, ok := base.Type.Struct()
	if !ok {
		return nil, errors.Errorf("%s has no members", base.Type)
	}
	if index < 0 || index >= len(st.Members()) {
		return nil, errors.Errorf("%s has no member %d", st.ID(), index)
	}
	base = g.Materialize(base)
	ptr := g.block.NewGetElementPtr(g.lltype(base.Type.Plain()), base.Value.(value.Value),
		constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(index)))
	return g.mem(st.Members()[index].Type, ptr), nil
}

func (g *Generator) Length(base *backend.Register) (*backend.Register, error) {
	arr, ok := base.Type.Array()
	if !ok {
		return nil, errors.Errorf("%s has no length", base.Type)
	}
	if n := arr.Length(); n >= 0 {
		return g.Constant(types.IntConstant(int64(n))), nil
	}
	base = g.Materialize(base)
	st := g.lltype(base.Type.Plain())
	field := g.block.NewGetElementPtr(st, base.Value.(value.Value), constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 1))
	return g.reg(types.Native(types.Integer), g.block.NewLoad(lltypes.I32, field)), nil
}

func (g *Generator) MakeView(dst, src *backend.Register) error {
	if !dst.Memory {
		return errors.New("can't initialise a temporary")
	}
	srcArr, ok := src.Type.Array()
	if !ok {
		return errors.Errorf("%s is not an array", src.Type)
	}
	if srcArr.Length() < 0 {
		return g.Store(dst, src)
	}
	src = g.Materialize(src)
	zero := constant.NewInt(lltypes.I32, 0)
	data := g.block.NewGetElementPtr(g.lltype(src.Type.Plain()), src.Value.(value.Value), zero, zero)
	st := g.lltype(dst.Type.Plain())
	dptr := g.block.NewGetElementPtr(st, dst.Value.(value.Value), zero, zero)
	g.block.NewStore(data, dptr)
	sptr := g.block.NewGetElementPtr(st, dst.Value.(value.Value), zero, constant.NewInt(lltypes.I32, 1))
	g.block.NewStore(constant.NewInt(lltypes.I32, int64(srcArr.Length())), sptr)
	return nil
}

func (g *Generator) newBlock(name string) *ir.Block {
	return g.fn.f.NewBlock(g.unique(name))
}

func (g *Generator) Branch(cond *backend.Register, then, els func() (*backend.Register, error)) (*backend.Register, error) {
	c := g.value(cond)
	tb, eb, mb := g.newBlock("then"), g.newBlock("else"), g.newBlock("endif")
	g.block.NewCondBr(c, tb, eb)

	arm := func(b *ir.Block, body func() (*backend.Register, error)) (value.Value, *ir.Block, types.TypeInfo, error) {
		g.block = b
		var v value.Value
		var t types.TypeInfo
		if body != nil {
			r, err := body()
			if err != nil {
				return nil, nil, t, err
			}
			if r != nil && g.block.Term == nil {
				v, t = g.value(r), r.Type.Plain()
			}
		}
		end := g.block
		if end.Term == nil {
			end.NewBr(mb)
			return v, end, t, nil
		}
		return nil, end, t, nil
	}
	tv, tEnd, tt, err := arm(tb, then)
	if err != nil {
		return nil, err
	}
	ev, eEnd, _, err := arm(eb, els)
	if err != nil {
		return nil, err
	}
	g.block = mb
	if tv == nil || ev == nil {
		return nil, nil
	}
	phi := mb.NewPhi(ir.NewIncoming(tv, tEnd), ir.NewIncoming(ev, eEnd))
	return g.reg(tt, phi), nil
}

func (g *Generator) While(cond func() (*backend.Register, error), body func() error) error {
	header, bodyB, exit := g.newBlock("while"), g.newBlock("do"), g.newBlock("endwhile")
	g.block.NewBr(header)
	g.block = header
	c, err := cond()
	if err != nil {
		return err
	}
	g.block.NewCondBr(g.value(c), bodyB, exit)
	g.block = bodyB
	g.loops = append(g.loops, loopTargets{cont: header, exit: exit})
	err = body()
	g.loops = g.loops[:len(g.loops)-1]
	if err != nil {
		return err
	}
	if g.block.Term == nil {
		g.block.NewBr(header)
	}
	g.block = exit
	return nil
}

// counted emits "for (idx = start; idx < end; idx += step) body".
func (g *Generator) counted(idx *backend.Register, end value.Value, step int, body func(index *backend.Register) error) error {
	header, bodyB, latch, exit := g.newBlock("loop"), g.newBlock("body"), g.newBlock("next"), g.newBlock("endloop")
	g.block.NewBr(header)
	g.block = header
	i := g.block.NewLoad(lltypes.I32, idx.Value.(value.Value))
	g.block.NewCondBr(g.block.NewICmp(enum.IPredSLT, i, end), bodyB, exit)

	g.block = bodyB
	g.loops = append(g.loops, loopTargets{cont: latch, exit: exit})
	err := body(g.Load(idx))
	g.loops = g.loops[:len(g.loops)-1]
	if err != nil {
		return err
	}
	if g.block.Term == nil {
		g.block.NewBr(latch)
	}
	g.block = latch
	cur := g.block.NewLoad(lltypes.I32, idx.Value.(value.Value))
	g.block.NewStore(g.block.NewAdd(cur, constant.NewInt(lltypes.I32, int64(step))), idx.Value.(value.Value))
	g.block.NewBr(header)
	g.block = exit
	return nil
}

func (g *Generator) Loop(count *backend.Register, body func(index *backend.Register) error) error {
	n := g.value(count)
	idx := g.Alloca(types.Native(types.Integer), "i")
	g.block.NewStore(constant.NewInt(lltypes.I32, 0), idx.Value.(value.Value))
	return g.counted(idx, n, 1, body)
}

func (g *Generator) VectorLoop(count *backend.Register, lanes int, body func(index *backend.Register, lanes int) error) error {
	if lanes <= 1 {
		return g.Loop(count, func(i *backend.Register) error { return body(i, 1) })
	}
	n := g.value(count)
	idx := g.Alloca(types.Native(types.Integer), "i")
	g.block.NewStore(constant.NewInt(lltypes.I32, 0), idx.Value.(value.Value))

	w := constant.NewInt(lltypes.I32, int64(lanes))
	var simdEnd value.Value
	if c, ok := n.(*constant.Int); ok {
		v := c.X.Int64()
		simdEnd = constant.NewInt(lltypes.I32, v-v%int64(lanes))
	} else {
		simdEnd = g.block.NewSub(n, g.block.NewSRem(n, w))
	}
	if err := g.counted(idx, simdEnd, lanes, func(i *backend.Register) error { return body(i, lanes) }); err != nil {
		return err
	}
	return g.counted(idx, n, 1, func(i *backend.Register) error { return body(i, 1) })
}

func (g *Generator) deadBlock() {
	g.block = g.newBlock("dead")
}

func (g *Generator) Break() error {
	if len(g.loops) == 0 {
		return errors.New("break outside a loop")
	}
	g.block.NewBr(g.loops[len(g.loops)-1].exit)
	g.deadBlock()
	return nil
}

func (g *Generator) Continue() error {
	if len(g.loops) == 0 {
		return errors.New("continue outside a loop")
	}
	g.block.NewBr(g.loops[len(g.loops)-1].cont)
	g.deadBlock()
	return nil
}

func (g *Generator) Return(r *backend.Register) error {
	if r == nil {
		g.block.NewRet(nil)
	} else {
		g.block.NewRet(g.value(r))
	}
	g.deadBlock()
	return nil
}

func (g *Generator) Lanes(t types.TypeInfo) int {
	if g.opts.VectorBits == 0 || t.IsComplex() {
		return 1
	}
	switch t.Native() {
	case types.Float, types.Integer:
		return g.opts.VectorBits / 32
	case types.Double:
		return g.opts.VectorBits / 64
	}
	return 1
}

func (g *Generator) vectorPointer(ref *backend.Register, lanes int) (value.Value, lltypes.Type) {
	vt := lltypes.NewVector(uint64(lanes), g.lltype(ref.Type.Plain()))
	return g.block.NewBitCast(ref.Value.(value.Value), lltypes.NewPointer(vt)), vt
}

func (g *Generator) LoadLanes(ref *backend.Register, lanes int) (*backend.Register, error) {
	if lanes <= 1 {
		return g.Load(ref), nil
	}
	if !ref.Memory {
		return nil, errors.New("vector load needs an element address")
	}
	ptr, vt := g.vectorPointer(ref, lanes)
	ld := g.block.NewLoad(vt, ptr)
	ld.Align = ir.Align(ref.Type.Size())
	return &backend.Register{Type: ref.Type.Plain(), Value: ld, Lanes: lanes}, nil
}

func (g *Generator) StoreLanes(ref, val *backend.Register, lanes int) error {
	if lanes <= 1 {
		return g.Store(ref, val)
	}
	if !ref.Memory {
		return errors.New("vector store needs an element address")
	}
	if val.Lanes != lanes {
		var err error
		if val, err = g.Splat(val, lanes); err != nil {
			return err
		}
	}
	ptr, _ := g.vectorPointer(ref, lanes)
	st := g.block.NewStore(val.Value.(value.Value), ptr)
	st.Align = ir.Align(ref.Type.Size())
	return nil
}

func (g *Generator) Splat(r *backend.Register, lanes int) (*backend.Register, error) {
	if r.Lanes == lanes {
		return r, nil
	}
	if r.Lanes > 1 {
		return nil, errors.Errorf("can't splat a %d-lane value to %d lanes", r.Lanes, lanes)
	}
	v := g.value(r)
	vt := lltypes.NewVector(uint64(lanes), v.Type())
	var vec value.Value = constant.NewUndef(vt)
	for i := range lanes {
		vec = g.block.NewInsertElement(vec, v, constant.NewInt(lltypes.I32, int64(i)))
	}
	return &backend.Register{Type: r.Type.Plain(), Value: vec, Lanes: lanes}, nil
}
