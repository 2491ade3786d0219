package ast

import (
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

var (
	voidType = types.Native(types.Void)
	boolType = types.Native(types.Boolean)
	intType  = types.Native(types.Integer)
)

// typeCheck computes result types, inserts implicit conversions and swaps
// nodes for cheaper or more specific equivalents.
func (c *CompilationContext) typeCheck(n Node) error {
	switch n := n.(type) {
	case *StatementBlock:
		if err := c.processChildren(n, TypeCheck); err != nil {
			return err
		}
		n.finalise(voidType)
	case *Noop:
	case *ControlFlow:
		n.finalise(voidType)
	case *Immediate:
		n.finalise(n.typ)
	case *VariableReference:
		return c.typeVariable(n)
	case *ThisPointer:
		n.finalise(types.Complex(c.function.Class).WithConst(c.function.Sig.Const))
	case *Assignment:
		return c.typeAssignment(n)
	case *Cast:
		return c.typeCast(n)
	case *BinaryOp:
		return c.typeBinary(n)
	case *Compare:
		return c.typeCompare(n)
	case *LogicalNot:
		return c.typeNot(n)
	case *Negation:
		return c.typeNegation(n)
	case *TernaryOp:
		return c.typeTernary(n)
	case *Subscript:
		return c.typeSubscript(n)
	case *DotOperator:
		return c.typeDot(n)
	case *FunctionCall:
		return c.typeCall(n)
	case *Increment:
		return c.typeIncrement(n)
	case *VectorOp:
		return c.typeVectorOp(n)
	case *ComplexTypeDefinition:
		return c.typeDefinition(n)
	case *InitializerList:
		return c.typeList(n)
	case *ReturnStatement:
		return c.typeReturn(n)
	case *IfStatement:
		return c.typeIf(n)
	case *WhileLoop:
		if err := c.process(n.Cond(), TypeCheck); err != nil {
			return err
		}
		if _, err := c.convert(n.Cond(), boolType); err != nil {
			return err
		}
		if err := c.process(n.Body(), TypeCheck); err != nil {
			return err
		}
		n.finalise(voidType)
	case *Loop:
		return c.typeLoop(n)
	case *Function:
		return c.typeFunction(n)
	case *ClassStatement:
		if err := c.processChildren(n, TypeCheck); err != nil {
			return err
		}
		n.finalise(voidType)
	default:
		diag.Unreachable("TypeCheck: unhandled node %T", n)
	}
	return nil
}

func arithmetic(t types.TypeInfo) bool { return t.IsNumeric() || t.IsBool() }

func isArray(t types.TypeInfo) bool {
	_, ok := t.Array()
	return ok
}

func constOf(n Node) (types.Constant, bool) {
	if imm, ok := n.(*Immediate); ok {
		return imm.Value, true
	}
	return types.Constant{}, false
}

// isLValue reports whether n denotes storage that can be written.
func isLValue(n Node) bool {
	switch n := n.(type) {
	case *VariableReference:
		return n.Storage != StorageConstant
	case *Subscript, *DotOperator, *ThisPointer:
		return true
	case *FunctionCall:
		return n.Sig != nil && n.Sig.Return.IsRef()
	}
	return false
}

// scope is the namespace synthesized nodes are checked from.
func (c *CompilationContext) scope() types.ID {
	if c.function != nil {
		return c.function.Sig.Scope()
	}
	return c.Unit
}

func (c *CompilationContext) hasMethod(id types.ID) bool {
	a, ok := c.Registry.Symbol(id)
	return ok && a.Kind == symbols.Function
}

// convert makes n produce a value of type to, folding constants and
// inserting casts (or cast operator calls) as needed. It returns the node
// that now stands in n's place.
func (c *CompilationContext) convert(n Node, to types.TypeInfo) (Node, error) {
	from := n.Type()
	to = to.Plain()
	if from.Equals(to) {
		return n, nil
	}
	_, fromStruct := from.Struct()
	switch {
	case arithmetic(from) && arithmetic(to):
		if v, ok := constOf(n); ok {
			repl := NewImmediate(n.Loc(), v.ConvertTo(to.Native()))
			return repl, c.replace(n, repl, TypeCheck)
		}
	case fromStruct && !to.IsComplex():
	default:
		return nil, errorf(n, "can't convert %s to %s", from.Plain(), to)
	}
	cast := NewCast(n.Loc(), to, nil, false)
	Wrap(n, cast)
	return cast, c.process(cast, TypeCheck)
}

// operatorCall replaces n by a call of the struct's operator overload, with
// n's first child as the object and the rest as arguments.
func (c *CompilationContext) operatorCall(n Node, st *types.StructType, op string) error {
	id := symbols.OperatorID(st.ID(), op)
	if !c.hasMethod(id) {
		return errorf(n, "%s has no operator%s", st, op)
	}
	kids := n.base().release()
	call := NewFunctionCall(n.Loc(), id, c.scope(), kids[0], kids[1:]...)
	return c.replace(n, call, TypeCheck)
}

func (c *CompilationContext) typeVariable(n *VariableReference) error {
	a, ok := c.Registry.Symbol(n.ID)
	if !ok {
		return errorf(n, "can't resolve %s", n.ID)
	}
	n.Alias = a
	if n.Storage == StorageConstant && !a.Value.IsVoid() {
		return c.replace(n, NewImmediate(n.Loc(), a.Value), TypeCheck)
	}
	t := a.Type
	switch {
	case t.IsDynamic():
		return errorf(n, "the type of %s can't be determined", n.ID.Name())
	case t.IsTemplated():
		return errorf(n, "%s depends on an unbound template parameter", n.ID.Name())
	}
	if n.Storage == StorageMember && c.function != nil && c.function.Sig.Const {
		t = t.WithConst(true)
	}
	n.finalise(t)
	return nil
}

func (c *CompilationContext) typeAssignment(n *Assignment) error {
	if err := c.process(n.Value(), TypeCheck); err != nil {
		return err
	}
	value := n.Value()
	if value.Type().IsVoid() {
		return errorf(value, "%s has no value", value)
	}
	if target, ok := n.Target().(*VariableReference); ok && n.FirstDecl {
		if err := c.deduce(target, value); err != nil {
			return err
		}
	}
	if err := c.process(n.Target(), TypeCheck); err != nil {
		return err
	}
	target := n.Target()
	tt := target.Type()
	if !n.FirstDecl && !isLValue(target) {
		return errorf(target, "%s is not assignable", target)
	}

	if n.FirstDecl && tt.IsRef() {
		if !isLValue(value) {
			return errorf(value, "can't bind reference %s to a temporary", target)
		}
		if !value.Type().Equals(tt) {
			return errorf(n, "reference %s of type %s can't bind to %s", target, tt, value.Type())
		}
		n.finalise(voidType)
		return nil
	}

	if arr, ok := tt.Array(); ok {
		if n.FirstDecl && arr.Length() < 0 {
			return errorf(n, "%s needs storage: declare it as a span", target)
		}
		kids := n.release()
		return c.replace(n, NewVectorOp(n.Loc(), n.Op, true, kids[0], kids[1]), TypeCheck)
	}

	if st, ok := tt.Struct(); ok {
		if n.Op == OpAssign && value.Type().Equals(tt) {
			n.finalise(voidType)
			return nil
		}
		op := "="
		if n.Op != OpAssign {
			op = n.Op.String() + "="
		}
		if !c.hasMethod(symbols.OperatorID(st.ID(), op)) {
			return errorf(n, "no operator%s for %s and %s", op, tt.Plain(), value.Type().Plain())
		}
		return c.operatorCall(n, st, op)
	}

	if n.Op != OpAssign && (!tt.IsNumeric() || !arithmetic(value.Type())) {
		return errorf(n, "operator %s= can't be applied to %s and %s", n.Op, tt.Plain(), value.Type().Plain())
	}
	if _, err := c.convert(value, tt); err != nil {
		return errorf(n, "can't assign %s to %s", value.Type().Plain(), tt.Plain())
	}
	n.finalise(voidType)
	return nil
}

// deduce settles the type of an "auto" declaration from its initializer.
func (c *CompilationContext) deduce(target *VariableReference, value Node) error {
	a, ok := c.Registry.Symbol(target.ID)
	if !ok || !a.Type.IsDynamic() {
		return nil
	}
	vt := value.Type()
	if vt.IsDynamic() {
		return errorf(value, "can't deduce the type of %s", target.ID.Name())
	}
	t := vt.Plain().WithConst(a.Type.IsConst()).WithRef(a.Type.IsRef())
	return diag.At(target.Loc(), c.Registry.SetSymbolType(target.ID, t))
}

func (c *CompilationContext) typeCast(n *Cast) error {
	if err := c.process(n.Operand(), TypeCheck); err != nil {
		return err
	}
	op := n.Operand()
	from, to := op.Type(), n.To
	st, fromStruct := from.Struct()
	switch {
	case from.Equals(to):
		n.release()
		Replace(n, op)
		return nil
	case fromStruct && !to.IsComplex():
		id := symbols.CastOperatorID(st.ID(), to)
		if !c.hasMethod(id) {
			return errorf(n, "%s has no operator %s()", st, to.Plain())
		}
		kids := n.release()
		return c.replace(n, NewFunctionCall(n.Loc(), id, c.scope(), kids[0]), TypeCheck)
	case arithmetic(from) && arithmetic(to):
		if v, ok := constOf(op); ok {
			n.release()
			return c.replace(n, NewImmediate(n.Loc(), v.ConvertTo(to.Native())), TypeCheck)
		}
		n.finalise(to.Plain())
		return nil
	}
	return errorf(n, "can't convert %s to %s", from.Plain(), to.Plain())
}

func (c *CompilationContext) typeBinary(n *BinaryOp) error {
	if err := c.process(n.Left(), TypeCheck); err != nil {
		return err
	}
	if n.Op.IsLogic() {
		return c.typeLogic(n)
	}
	if err := c.process(n.Right(), TypeCheck); err != nil {
		return err
	}
	lt, rt := n.Left().Type(), n.Right().Type()
	if isArray(lt) || isArray(rt) {
		kids := n.release()
		return c.replace(n, NewVectorOp(n.Loc(), n.Op, false, kids[0], kids[1]), TypeCheck)
	}
	if st, ok := lt.Struct(); ok {
		return c.operatorCall(n, st, n.Op.String())
	}
	if !arithmetic(lt) || !arithmetic(rt) {
		return errorf(n, "operator %s can't be applied to %s and %s", n.Op, lt.Plain(), rt.Plain())
	}
	res := types.Native(types.Promote(arithType(lt.Native()), arithType(rt.Native())))
	l, err := c.convert(n.Left(), res)
	if err != nil {
		return err
	}
	r, err := c.convert(n.Right(), res)
	if err != nil {
		return err
	}
	lv, lok := constOf(l)
	rv, rok := constOf(r)
	if lok && rok {
		v, err := foldBinary(n.Op, lv, rv)
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		n.release()
		return c.replace(n, NewImmediate(n.Loc(), v), TypeCheck)
	}
	if n.Op == OpDiv && rok && res.Native().IsFloatingPoint() && rv.Float64() != 0 {
		n.Op = OpMul
		recip := types.DoubleConstant(1 / rv.Float64()).ConvertTo(res.Native())
		if err := c.replace(r, NewImmediate(r.Loc(), recip), TypeCheck); err != nil {
			return err
		}
	}
	n.finalise(res)
	return nil
}

// typeLogic handles && and ||. A constant left operand decides the result
// alone; the right operand is then dropped without being checked.
func (c *CompilationContext) typeLogic(n *BinaryOp) error {
	if v, ok := constOf(n.Left()); ok {
		kids := n.release()
		if v.Bool() == (n.Op == OpOr) {
			return c.replace(n, NewImmediate(n.Loc(), types.BoolConstant(v.Bool())), TypeCheck)
		}
		if err := c.replace(n, kids[1], TypeCheck); err != nil {
			return err
		}
		_, err := c.convert(kids[1], boolType)
		return err
	}
	if err := c.process(n.Right(), TypeCheck); err != nil {
		return err
	}
	if _, err := c.convert(n.Left(), boolType); err != nil {
		return err
	}
	if _, err := c.convert(n.Right(), boolType); err != nil {
		return err
	}
	n.finalise(boolType)
	return nil
}

func (c *CompilationContext) typeCompare(n *Compare) error {
	if err := c.processChildren(n, TypeCheck); err != nil {
		return err
	}
	lt, rt := n.Left().Type(), n.Right().Type()
	if isArray(lt) || isArray(rt) {
		return errorf(n, "operator %s can't be applied to arrays", n.Op)
	}
	if st, ok := lt.Struct(); ok {
		return c.operatorCall(n, st, n.Op.String())
	}
	lv, lok := constOf(n.Left())
	rv, rok := constOf(n.Right())
	if lt.Is(types.String) || rt.Is(types.String) {
		if !lok || !rok {
			return errorf(n, "strings can only be compared when both are constants")
		}
	} else {
		if !arithmetic(lt) || !arithmetic(rt) {
			return errorf(n, "operator %s can't be applied to %s and %s", n.Op, lt.Plain(), rt.Plain())
		}
		res := types.Native(types.Promote(arithType(lt.Native()), arithType(rt.Native())))
		if _, err := c.convert(n.Left(), res); err != nil {
			return err
		}
		if _, err := c.convert(n.Right(), res); err != nil {
			return err
		}
	}
	if lok && rok {
		v, err := foldCompare(n.Op, lv, rv)
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		n.release()
		return c.replace(n, NewImmediate(n.Loc(), v), TypeCheck)
	}
	n.finalise(boolType)
	return nil
}

func (c *CompilationContext) typeNot(n *LogicalNot) error {
	if err := c.process(n.Operand(), TypeCheck); err != nil {
		return err
	}
	op, err := c.convert(n.Operand(), boolType)
	if err != nil {
		return err
	}
	if v, ok := constOf(op); ok {
		n.release()
		return c.replace(n, NewImmediate(n.Loc(), types.BoolConstant(!v.Bool())), TypeCheck)
	}
	n.finalise(boolType)
	return nil
}

func (c *CompilationContext) typeNegation(n *Negation) error {
	if err := c.process(n.Operand(), TypeCheck); err != nil {
		return err
	}
	t := n.Operand().Type()
	if st, ok := t.Struct(); ok {
		return c.operatorCall(n, st, "-")
	}
	if !arithmetic(t) {
		return errorf(n, "can't negate %s", t.Plain())
	}
	res := types.Native(arithType(t.Native()))
	op, err := c.convert(n.Operand(), res)
	if err != nil {
		return err
	}
	if v, ok := constOf(op); ok {
		if neg, ok := negate(v); ok {
			n.release()
			return c.replace(n, NewImmediate(n.Loc(), neg), TypeCheck)
		}
	}
	n.finalise(res)
	return nil
}

func (c *CompilationContext) typeTernary(n *TernaryOp) error {
	if err := c.process(n.Cond(), TypeCheck); err != nil {
		return err
	}
	cond, err := c.convert(n.Cond(), boolType)
	if err != nil {
		return err
	}
	if v, ok := constOf(cond); ok {
		kids := n.release()
		chosen := kids[2]
		if v.Bool() {
			chosen = kids[1]
		}
		return c.replace(n, chosen, TypeCheck)
	}
	if err := c.process(n.Then(), TypeCheck); err != nil {
		return err
	}
	if err := c.process(n.Else(), TypeCheck); err != nil {
		return err
	}
	at, bt := n.Then().Type(), n.Else().Type()
	switch {
	case arithmetic(at) && arithmetic(bt):
		res := types.Native(types.Promote(arithType(at.Native()), arithType(bt.Native())))
		if at.IsBool() && bt.IsBool() {
			res = boolType
		}
		if _, err := c.convert(n.Then(), res); err != nil {
			return err
		}
		if _, err := c.convert(n.Else(), res); err != nil {
			return err
		}
		n.finalise(res)
	case at.Equals(bt) && !at.IsVoid():
		n.finalise(at.Plain())
	default:
		return errorf(n, "branches of ?: have different types %s and %s", at.Plain(), bt.Plain())
	}
	return nil
}

func (c *CompilationContext) typeSubscript(n *Subscript) error {
	if err := c.processChildren(n, TypeCheck); err != nil {
		return err
	}
	bt := n.Base().Type()
	if st, ok := bt.Struct(); ok {
		return c.operatorCall(n, st, "[]")
	}
	arr, ok := bt.Array()
	if !ok {
		return errorf(n, "%s can't be indexed", bt.Plain())
	}
	idx := n.Index()
	it := idx.Type()
	switch {
	case it.Is(types.Integer):
	case it.IsBool():
		var err error
		if idx, err = c.convert(idx, intType); err != nil {
			return err
		}
	default:
		return errorf(idx, "array index must be an integer, got %s", it.Plain())
	}
	if v, ok := constOf(idx); ok {
		i := v.Int()
		if i < 0 || (arr.Length() >= 0 && i >= int64(arr.Length())) {
			return errorf(n, "index %d is out of range for %s", i, bt.Plain())
		}
	} else {
		n.Unchecked = true
		if c.Options.SafeMode {
			c.Warn(n.Loc(), "unchecked index into %s", bt.Plain())
		}
	}
	n.finalise(arr.Element().Plain().WithConst(bt.IsConst()))
	return nil
}

func (c *CompilationContext) typeDot(n *DotOperator) error {
	if err := c.process(n.Object(), TypeCheck); err != nil {
		return err
	}
	ot := n.Object().Type()
	st, ok := ot.Struct()
	if !ok {
		return errorf(n, "%s has no members", ot.Plain())
	}
	m, ok := st.Member(n.Name)
	if !ok {
		return errorf(n, "%s has no member %s", st, n.Name)
	}
	if err := c.Registry.CheckVisibilityFrom(n.Scope, st.ID().Child(n.Name)); err != nil {
		return diag.At(n.Loc(), err)
	}
	n.Member = m
	n.finalise(m.Type.Plain().WithConst(ot.IsConst() || m.Type.IsConst()))
	return nil
}

func (c *CompilationContext) typeIncrement(n *Increment) error {
	if _, ok := n.Target().(*Increment); ok {
		return errorf(n, "can't stack increment operators")
	}
	if err := c.process(n.Target(), TypeCheck); err != nil {
		return err
	}
	target := n.Target()
	if !isLValue(target) {
		return errorf(n, "%s is not assignable", target)
	}
	op := "++"
	if n.Decrement {
		op = "--"
	}
	tt := target.Type()
	if st, ok := tt.Struct(); ok {
		return c.operatorCall(n, st, op)
	}
	if !tt.Is(types.Integer) {
		return errorf(n, "%s needs an int, got %s", op, tt.Plain())
	}
	n.finalise(intType)
	return nil
}

func (c *CompilationContext) typeDefinition(n *ComplexTypeDefinition) error {
	init := n.Initializer()
	if init == nil {
		n.finalise(voidType)
		return nil
	}
	if err := c.process(init, TypeCheck); err != nil {
		return err
	}
	init = n.Initializer()
	if _, ok := init.(*InitializerList); !ok {
		arr, ok := n.Declared.Array()
		if !ok || arr.Length() >= 0 {
			return errorf(n, "%s can't be initialised from %s", n.Declared, init.Type().Plain())
		}
		src, ok := init.Type().Array()
		if !ok || !src.Element().Equals(arr.Element()) {
			return errorf(n, "%s can't view %s", n.Declared, init.Type().Plain())
		}
		if !isLValue(init) {
			return errorf(init, "%s must view an existing array", n.IDs[0].Name())
		}
	}
	n.finalise(voidType)
	return nil
}

// listElement is the type the i-th entry of a list initialising t must have.
func listElement(t types.TypeInfo, i int) types.TypeInfo {
	switch ct := t.Complex().(type) {
	case *types.SpanType:
		return ct.Element()
	case *types.StructType:
		if i < len(ct.Members()) {
			return ct.Members()[i].Type
		}
	case nil:
		return t
	}
	return types.Auto()
}

func (c *CompilationContext) typeList(n *InitializerList) error {
	var t types.TypeInfo
	switch p := n.Parent().(type) {
	case *ComplexTypeDefinition:
		t = p.Declared
	case *InitializerList:
		i := 0
		for i < len(p.children) && p.children[i] != n {
			i++
		}
		t = listElement(p.Type(), i)
	default:
		return errorf(n, "unexpected initializer list")
	}
	n.finalise(t.Plain())
	for i := 0; i < len(n.children); i++ {
		if err := c.process(n.children[i], TypeCheck); err != nil {
			return err
		}
		e := n.children[i]
		if _, ok := e.(*InitializerList); ok {
			continue
		}
		et := listElement(t, i)
		if et.IsComplex() {
			if !e.Type().Equals(et) {
				return errorf(e, "can't initialise %s with %s", et, e.Type().Plain())
			}
			continue
		}
		if _, err := c.convert(e, et); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompilationContext) typeReturn(n *ReturnStatement) error {
	fn := c.function
	ret := fn.Sig.Return
	name := fn.Sig.ID.Name()
	if n.Value() == nil {
		switch {
		case ret.IsDynamic():
			fn.Sig.Return = voidType
		case !ret.IsVoid():
			return errorf(n, "%s must return %s", name, ret)
		}
		n.finalise(voidType)
		return nil
	}
	if err := c.process(n.Value(), TypeCheck); err != nil {
		return err
	}
	v := n.Value()
	vt := v.Type()
	switch {
	case vt.IsVoid():
		return errorf(v, "%s has no value", v)
	case ret.IsDynamic():
		fn.Sig.Return = vt.Plain()
	case ret.IsVoid():
		return errorf(n, "void function %s can't return a value", name)
	case ret.IsRef():
		if !isLValue(v) || !vt.Equals(ret) {
			return errorf(v, "%s must return a reference to a %s", name, ret.Plain())
		}
	case ret.IsComplex():
		if !vt.Equals(ret) {
			return errorf(n, "%s can't return %s as %s", name, vt.Plain(), ret)
		}
	default:
		if _, err := c.convert(v, ret); err != nil {
			return err
		}
	}
	n.finalise(voidType)
	return nil
}

func (c *CompilationContext) typeIf(n *IfStatement) error {
	if err := c.process(n.Cond(), TypeCheck); err != nil {
		return err
	}
	cond, err := c.convert(n.Cond(), boolType)
	if err != nil {
		return err
	}
	if v, ok := constOf(cond); ok {
		kids := n.release()
		var repl Node = NewNoop(n.Loc())
		switch {
		case v.Bool():
			repl = kids[1]
		case len(kids) > 2:
			repl = kids[2]
		}
		return c.replace(n, repl, TypeCheck)
	}
	for i := 1; i < len(n.children); i++ {
		if err := c.process(n.children[i], TypeCheck); err != nil {
			return err
		}
	}
	n.finalise(voidType)
	return nil
}

func (c *CompilationContext) typeLoop(n *Loop) error {
	if err := c.process(n.Target(), TypeCheck); err != nil {
		return err
	}
	tt := n.Target().Type()
	arr, ok := tt.Array()
	if !ok {
		return errorf(n, "can't iterate over %s", tt.Plain())
	}
	elem := arr.Element().Plain()
	a, ok := c.Registry.Symbol(n.Iterator)
	if !ok {
		return errorf(n, "can't resolve %s", n.Iterator)
	}
	it := a.Type
	switch {
	case it.IsDynamic():
		it = elem.WithRef(n.Ref).WithConst(it.IsConst())
		if err := c.Registry.SetSymbolType(n.Iterator, it); err != nil {
			return diag.At(n.Loc(), err)
		}
	case n.Ref && !it.Equals(elem):
		return errorf(n, "loop reference %s must be a %s", n.Iterator.Name(), elem)
	case !n.Ref && !it.Equals(elem) && !(arithmetic(it) && arithmetic(elem)):
		return errorf(n, "loop variable %s can't hold a %s", n.Iterator.Name(), elem)
	}
	if n.Ref && tt.IsConst() && !it.IsConst() {
		return errorf(n, "loop reference %s must be const", n.Iterator.Name())
	}
	if err := c.process(n.Body(), TypeCheck); err != nil {
		return err
	}
	n.finalise(voidType)
	return nil
}

func (c *CompilationContext) typeFunction(n *Function) error {
	return c.withFunction(n, func() error {
		c.typing[n] = true
		defer delete(c.typing, n)
		if err := c.processChildren(n, TypeCheck); err != nil {
			return err
		}
		if n.Sig.Return.IsDynamic() {
			n.Sig.Return = voidType
		}
		n.finalise(voidType)
		return nil
	})
}

func (c *CompilationContext) typeCall(n *FunctionCall) error {
	if err := c.processChildren(n, TypeCheck); err != nil {
		return err
	}
	args := n.Args()
	argTypes := make([]types.TypeInfo, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}

	id := n.ID
	candidates := n.candidates
	switch {
	case n.HasObject:
		ct := n.Object().Type().Complex()
		if ct == nil {
			return errorf(n, "%s has no methods", n.Object().Type().Plain())
		}
		id = ct.ID().Child(n.ID.Name())
		a, ok := c.Registry.Symbol(id)
		if !ok || a.Kind != symbols.Function {
			return errorf(n, "%s has no method %s", ct, n.ID.Name())
		}
		if err := c.Registry.CheckVisibilityFrom(n.Scope, id); err != nil {
			return diag.At(n.Loc(), err)
		}
		candidates = a.Functions
	case n.template:
		sig, err := c.Registry.CreateTemplateFunction(id, n.TemplateArgs, argTypes)
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		candidates = []*symbols.Signature{sig}
	}
	sig, err := pickOverload(id, candidates, argTypes)
	if err != nil {
		return diag.At(n.Loc(), err)
	}
	n.Sig = sig

	if sig.Method && !n.HasObject {
		if c.function == nil || c.function.Class == nil {
			return errorf(n, "method %s needs an object", id.Name())
		}
		this := NewThisPointer(n.Loc())
		this.parent = n
		n.children = append([]Node{this}, n.children...)
		n.HasObject = true
		if err := c.process(this, TypeCheck); err != nil {
			return err
		}
	}
	if n.HasObject && n.Object().Type().IsConst() && !sig.Const && !sig.Constructor {
		return errorf(n, "can't call non-const method %s on const %s", id.Name(), n.Object())
	}

	ret, err := c.returnType(n, sig)
	if err != nil {
		return err
	}
	for i, p := range sig.Params {
		a := n.Args()[i]
		switch {
		case p.Type.IsRef():
			if !isLValue(a) {
				return errorf(a, "argument %d of %s must be assignable", i+1, id.Name())
			}
			if !a.Type().Equals(p.Type) {
				return errorf(a, "argument %d of %s must be a %s", i+1, id.Name(), p.Type.Plain())
			}
			if a.Type().IsConst() && !p.Type.IsConst() {
				return errorf(a, "argument %d of %s can't bind a const value", i+1, id.Name())
			}
		case p.Type.IsComplex():
			// spans passed to dyn parameters become views at the call
		default:
			if _, err := c.convert(a, p.Type); err != nil {
				return err
			}
		}
	}
	n.finalise(ret)
	return nil
}

// returnType is sig's return type, type-checking the callee first when it
// is still to be deduced.
func (c *CompilationContext) returnType(n *FunctionCall, sig *symbols.Signature) (types.TypeInfo, error) {
	if !sig.Return.IsDynamic() {
		return sig.Return, nil
	}
	fn, ok := c.functions[sig]
	if !ok {
		return types.TypeInfo{}, errorf(n, "the return type of %s is unknown", sig.ID.Name())
	}
	if c.typing[fn] {
		return types.TypeInfo{}, errorf(n, "can't deduce the return type of %s: it calls itself first", sig.ID.Name())
	}
	if err := c.process(fn, TypeCheck); err != nil {
		return types.TypeInfo{}, err
	}
	return sig.Return, nil
}
