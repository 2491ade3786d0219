package ast

import (
	"fmt"
	"strings"

	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// Storage says where a variable lives.
type Storage uint8

const (
	StorageUnknown Storage = iota
	StorageConstant
	StorageLocal
	StorageParameter
	StorageGlobal
	StorageMember
)

func (s Storage) String() string {
	return [...]string{"unknown", "constant", "local", "parameter", "global", "member"}[s]
}

// StatementBlock is a sequence of statements with its own namespace.
type StatementBlock struct {
	nodeBase
	Scope types.ID
}

func NewStatementBlock(loc diag.Location, scope types.ID, stmts ...Node) *StatementBlock {
	n := &StatementBlock{Scope: scope}
	n.init(n, loc, stmts...)
	return n
}

func (*StatementBlock) Kind() Kind { return KindStatementBlock }
func (n *StatementBlock) String() string {
	return fmt.Sprintf("{%d statements}", len(n.children))
}

// Noop does nothing; it stands in for folded-away statements.
type Noop struct{ nodeBase }

func NewNoop(loc diag.Location) *Noop {
	n := &Noop{}
	n.init(n, loc)
	n.finalise(types.Native(types.Void))
	return n
}

func (*Noop) Kind() Kind       { return KindNoop }
func (*Noop) String() string   { return ";" }

// Immediate is a compile-time constant.
type Immediate struct {
	nodeBase
	Value types.Constant
}

func NewImmediate(loc diag.Location, v types.Constant) *Immediate {
	n := &Immediate{Value: v}
	n.init(n, loc)
	n.typ = types.Native(v.Type()).WithConst(true)
	return n
}

func (*Immediate) Kind() Kind       { return KindImmediate }
func (n *Immediate) String() string { return n.Value.String() }

// VariableReference names a variable, parameter, member or constant.
type VariableReference struct {
	nodeBase
	ID types.ID
	// Scope is the namespace the reference was written in.
	Scope types.ID
	// Decl is set on the reference that introduces the variable.
	Decl    bool
	Storage Storage
	Member  *types.Member
	Alias   *symbols.Alias
}

func NewVariableReference(loc diag.Location, id, scope types.ID, decl bool) *VariableReference {
	n := &VariableReference{ID: id, Scope: scope, Decl: decl}
	n.init(n, loc)
	return n
}

func (*VariableReference) Kind() Kind       { return KindVariableReference }
func (n *VariableReference) String() string { return n.ID.Name() }

// ThisPointer is the implicit object of a method.
type ThisPointer struct{ nodeBase }

func NewThisPointer(loc diag.Location) *ThisPointer {
	n := &ThisPointer{}
	n.init(n, loc)
	return n
}

func (*ThisPointer) Kind() Kind     { return KindThisPointer }
func (*ThisPointer) String() string { return "this" }

// Assignment stores Value into Target. Op is OpAssign or the arithmetic
// operator of a compound assignment.
type Assignment struct {
	nodeBase
	Op Operator
	// FirstDecl marks the initializing assignment of a declaration.
	FirstDecl bool
	// Init holds the folded value of a global or member initializer.
	Init []types.Constant
}

func NewAssignment(loc diag.Location, op Operator, target, value Node, firstDecl bool) *Assignment {
	n := &Assignment{Op: op, FirstDecl: firstDecl}
	n.init(n, loc, target, value)
	return n
}

func (*Assignment) Kind() Kind     { return KindAssignment }
func (n *Assignment) Target() Node { return n.child(0) }
func (n *Assignment) Value() Node  { return n.child(1) }
func (n *Assignment) String() string {
	op := "="
	if n.Op != OpAssign {
		op = n.Op.String() + "="
	}
	return fmt.Sprintf("%s %s %s", n.Target(), op, n.Value())
}

// Cast converts its operand to To.
type Cast struct {
	nodeBase
	To       types.TypeInfo
	Explicit bool
}

func NewCast(loc diag.Location, to types.TypeInfo, expr Node, explicit bool) *Cast {
	n := &Cast{To: to, Explicit: explicit}
	n.init(n, loc, expr)
	return n
}

func (*Cast) Kind() Kind            { return KindCast }
func (n *Cast) Operand() Node       { return n.child(0) }
func (n *Cast) String() string      { return fmt.Sprintf("%s(%s)", n.To, n.Operand()) }

// BinaryOp is an arithmetic or logical operation.
type BinaryOp struct {
	nodeBase
	Op Operator
}

func NewBinaryOp(loc diag.Location, op Operator, l, r Node) *BinaryOp {
	n := &BinaryOp{Op: op}
	n.init(n, loc, l, r)
	return n
}

func (*BinaryOp) Kind() Kind      { return KindBinaryOp }
func (n *BinaryOp) Left() Node    { return n.child(0) }
func (n *BinaryOp) Right() Node   { return n.child(1) }
func (n *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left(), n.Op, n.Right())
}

// Compare is a relational operation.
type Compare struct {
	nodeBase
	Op Operator
}

func NewCompare(loc diag.Location, op Operator, l, r Node) *Compare {
	n := &Compare{Op: op}
	n.init(n, loc, l, r)
	return n
}

func (*Compare) Kind() Kind    { return KindCompare }
func (n *Compare) Left() Node  { return n.child(0) }
func (n *Compare) Right() Node { return n.child(1) }
func (n *Compare) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left(), n.Op, n.Right())
}

type LogicalNot struct{ nodeBase }

func NewLogicalNot(loc diag.Location, expr Node) *LogicalNot {
	n := &LogicalNot{}
	n.init(n, loc, expr)
	return n
}

func (*LogicalNot) Kind() Kind       { return KindLogicalNot }
func (n *LogicalNot) Operand() Node  { return n.child(0) }
func (n *LogicalNot) String() string { return "!" + n.Operand().String() }

type Negation struct{ nodeBase }

func NewNegation(loc diag.Location, expr Node) *Negation {
	n := &Negation{}
	n.init(n, loc, expr)
	return n
}

func (*Negation) Kind() Kind       { return KindNegation }
func (n *Negation) Operand() Node  { return n.child(0) }
func (n *Negation) String() string { return "-" + n.Operand().String() }

// TernaryOp is cond ? a : b.
type TernaryOp struct{ nodeBase }

func NewTernaryOp(loc diag.Location, cond, a, b Node) *TernaryOp {
	n := &TernaryOp{}
	n.init(n, loc, cond, a, b)
	return n
}

func (*TernaryOp) Kind() Kind      { return KindTernaryOp }
func (n *TernaryOp) Cond() Node    { return n.child(0) }
func (n *TernaryOp) Then() Node    { return n.child(1) }
func (n *TernaryOp) Else() Node    { return n.child(2) }
func (n *TernaryOp) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", n.Cond(), n.Then(), n.Else())
}

// Subscript indexes an array.
type Subscript struct {
	nodeBase
	// Unchecked is set when the index can't be proven in range at compile
	// time.
	Unchecked bool
}

func NewSubscript(loc diag.Location, base, index Node) *Subscript {
	n := &Subscript{}
	n.init(n, loc, base, index)
	return n
}

func (*Subscript) Kind() Kind        { return KindSubscript }
func (n *Subscript) Base() Node      { return n.child(0) }
func (n *Subscript) Index() Node     { return n.child(1) }
func (n *Subscript) String() string  { return fmt.Sprintf("%s[%s]", n.Base(), n.Index()) }

// DotOperator selects a struct member.
type DotOperator struct {
	nodeBase
	Name   string
	Scope  types.ID
	Member *types.Member
}

func NewDotOperator(loc diag.Location, object Node, name string, scope types.ID) *DotOperator {
	n := &DotOperator{Name: name, Scope: scope}
	n.init(n, loc, object)
	return n
}

func (*DotOperator) Kind() Kind       { return KindDotOperator }
func (n *DotOperator) Object() Node   { return n.child(0) }
func (n *DotOperator) String() string { return n.Object().String() + "." + n.Name }

// FunctionCall calls a free function, a method (HasObject) or a function
// template (TemplateArgs or deduction).
type FunctionCall struct {
	nodeBase
	// ID is the resolved function identifier, or the bare method name when
	// HasObject is set.
	ID           types.ID
	Scope        types.ID
	TemplateArgs types.ParameterList
	HasObject    bool
	Sig          *symbols.Signature

	candidates []*symbols.Signature
	template   bool
}

func NewFunctionCall(loc diag.Location, id, scope types.ID, object Node, args ...Node) *FunctionCall {
	n := &FunctionCall{ID: id, Scope: scope, HasObject: object != nil}
	n.init(n, loc)
	n.add(object)
	for _, a := range args {
		n.add(a)
	}
	return n
}

func (*FunctionCall) Kind() Kind { return KindFunctionCall }

// Object is the receiver of a method call, nil otherwise.
func (n *FunctionCall) Object() Node {
	if !n.HasObject {
		return nil
	}
	return n.child(0)
}

func (n *FunctionCall) Args() []Node {
	if n.HasObject {
		return n.children[1:]
	}
	return n.children
}

func (n *FunctionCall) String() string {
	args := make([]string, 0, len(n.Args()))
	for _, a := range n.Args() {
		args = append(args, a.String())
	}
	name := n.ID.String()
	if n.HasObject {
		name = n.Object().String() + "." + n.ID.Name()
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// Increment is ++/-- in prefix or postfix position.
type Increment struct {
	nodeBase
	Decrement bool
	Prefix    bool
}

func NewIncrement(loc diag.Location, target Node, decrement, prefix bool) *Increment {
	n := &Increment{Decrement: decrement, Prefix: prefix}
	n.init(n, loc, target)
	return n
}

func (*Increment) Kind() Kind     { return KindIncrement }
func (n *Increment) Target() Node { return n.child(0) }
func (n *Increment) String() string {
	op := "++"
	if n.Decrement {
		op = "--"
	}
	if n.Prefix {
		return op + n.Target().String()
	}
	return n.Target().String() + op
}

// VectorOp is an element-wise array operation. In assign form the first
// child is the destination array and Op is OpAssign or a compound operator.
// Nested VectorOps fuse into a single loop.
type VectorOp struct {
	nodeBase
	Op     Operator
	Assign bool
}

func NewVectorOp(loc diag.Location, op Operator, assign bool, l, r Node) *VectorOp {
	n := &VectorOp{Op: op, Assign: assign}
	n.init(n, loc, l, r)
	return n
}

func (*VectorOp) Kind() Kind      { return KindVectorOp }
func (n *VectorOp) Left() Node    { return n.child(0) }
func (n *VectorOp) Right() Node   { return n.child(1) }
func (n *VectorOp) String() string {
	op := n.Op.String()
	if n.Assign && n.Op != OpAssign {
		op += "="
	}
	return fmt.Sprintf("[%s %s %s]", n.Left(), op, n.Right())
}

// ComplexTypeDefinition declares variables of a complex type, with an
// optional initializer list or source expression as its only child.
type ComplexTypeDefinition struct {
	nodeBase
	IDs      []types.ID
	Declared types.TypeInfo
	Storage  Storage
	// Init holds the folded initializer of a global.
	Init []types.Constant
}

func NewComplexTypeDefinition(loc diag.Location, t types.TypeInfo, ids []types.ID, init Node) *ComplexTypeDefinition {
	n := &ComplexTypeDefinition{IDs: ids, Declared: t}
	n.init(n, loc)
	n.add(init)
	return n
}

func (*ComplexTypeDefinition) Kind() Kind { return KindComplexTypeDefinition }

// Initializer is the initializer list or source expression, nil if absent.
func (n *ComplexTypeDefinition) Initializer() Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.child(0)
}

func (n *ComplexTypeDefinition) String() string {
	names := make([]string, len(n.IDs))
	for i, id := range n.IDs {
		names[i] = id.Name()
	}
	s := n.Declared.String() + " " + strings.Join(names, ", ")
	if init := n.Initializer(); init != nil {
		s += " = " + init.String()
	}
	return s
}

// InitializerList is a braced list of values.
type InitializerList struct{ nodeBase }

func NewInitializerList(loc diag.Location, values ...Node) *InitializerList {
	n := &InitializerList{}
	n.init(n, loc, values...)
	return n
}

func (*InitializerList) Kind() Kind { return KindInitializerList }
func (n *InitializerList) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type ReturnStatement struct{ nodeBase }

func NewReturnStatement(loc diag.Location, value Node) *ReturnStatement {
	n := &ReturnStatement{}
	n.init(n, loc)
	n.add(value)
	return n
}

func (*ReturnStatement) Kind() Kind { return KindReturnStatement }

// Value is the returned expression, nil for a bare return.
func (n *ReturnStatement) Value() Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.child(0)
}

func (n *ReturnStatement) String() string {
	if v := n.Value(); v != nil {
		return "return " + v.String()
	}
	return "return"
}

type IfStatement struct{ nodeBase }

func NewIfStatement(loc diag.Location, cond, then, els Node) *IfStatement {
	n := &IfStatement{}
	n.init(n, loc, cond, then)
	n.add(els)
	return n
}

func (*IfStatement) Kind() Kind    { return KindIfStatement }
func (n *IfStatement) Cond() Node  { return n.child(0) }
func (n *IfStatement) Then() Node  { return n.child(1) }
func (n *IfStatement) Else() Node {
	if len(n.children) < 3 {
		return nil
	}
	return n.child(2)
}
func (n *IfStatement) String() string { return "if (" + n.Cond().String() + ")" }

type WhileLoop struct{ nodeBase }

func NewWhileLoop(loc diag.Location, cond, body Node) *WhileLoop {
	n := &WhileLoop{}
	n.init(n, loc, cond, body)
	return n
}

func (*WhileLoop) Kind() Kind       { return KindWhileLoop }
func (n *WhileLoop) Cond() Node     { return n.child(0) }
func (n *WhileLoop) Body() Node     { return n.child(1) }
func (n *WhileLoop) String() string { return "while (" + n.Cond().String() + ")" }

// Loop is a range-based for over an array. Iterator names the loop
// variable, which is bound by reference when Ref is set.
type Loop struct {
	nodeBase
	Iterator types.ID
	Ref      bool
}

func NewLoop(loc diag.Location, iterator types.ID, ref bool, target, body Node) *Loop {
	n := &Loop{Iterator: iterator, Ref: ref}
	n.init(n, loc, target, body)
	return n
}

func (*Loop) Kind() Kind      { return KindLoop }
func (n *Loop) Target() Node  { return n.child(0) }
func (n *Loop) Body() Node    { return n.child(1) }
func (n *Loop) String() string {
	return fmt.Sprintf("for (%s : %s)", n.Iterator.Name(), n.Target())
}

// ControlFlow is break or continue.
type ControlFlow struct {
	nodeBase
	Break bool
}

func NewControlFlow(loc diag.Location, brk bool) *ControlFlow {
	n := &ControlFlow{Break: brk}
	n.init(n, loc)
	return n
}

func (*ControlFlow) Kind() Kind { return KindControlFlow }
func (n *ControlFlow) String() string {
	if n.Break {
		return "break"
	}
	return "continue"
}

// Function is a function or method definition.
type Function struct {
	nodeBase
	Sig      *symbols.Signature
	ParamIDs []types.ID
	// Class is the owning struct of a method.
	Class *types.StructType
}

func NewFunction(loc diag.Location, sig *symbols.Signature, params []types.ID, class *types.StructType, body Node) *Function {
	n := &Function{Sig: sig, ParamIDs: params, Class: class}
	n.init(n, loc, body)
	return n
}

func (*Function) Kind() Kind       { return KindFunction }
func (n *Function) Body() Node     { return n.child(0) }
func (n *Function) String() string { return n.Sig.String() }

// ClassStatement defines a struct: its member initializers and methods.
type ClassStatement struct {
	nodeBase
	Struct *types.StructType
}

func NewClassStatement(loc diag.Location, st *types.StructType, members ...Node) *ClassStatement {
	n := &ClassStatement{Struct: st}
	n.init(n, loc, members...)
	return n
}

func (*ClassStatement) Kind() Kind       { return KindClassStatement }
func (n *ClassStatement) String() string { return "struct " + n.Struct.String() }
