// Package ast is the typed syntax tree the parser produces and the six
// compilation passes refine:
//
//	ComplexTypeParsing -> DataAllocation -> DataInitialisation ->
//	ResolvingSymbols -> TypeCheck -> CodeGeneration
//
// Each pass visits every node exactly once, parent first; a node's handler
// decides when its children run. Handlers may replace a node with a cheaper
// or more specific one (constant folding, operator overload calls, vector
// ops); the replacement is brought up to date with the running pass before
// the walk continues.
//
// The node set is closed: Node has an unexported method, and every pass is a
// single type switch over all kinds whose default case is an internal error.
package ast

import (
	"dspc/pkg/backend"
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// Kind identifies the concrete node type.
type Kind uint8

const (
	KindStatementBlock Kind = iota
	KindNoop
	KindImmediate
	KindVariableReference
	KindThisPointer
	KindAssignment
	KindCast
	KindBinaryOp
	KindCompare
	KindLogicalNot
	KindNegation
	KindTernaryOp
	KindSubscript
	KindDotOperator
	KindFunctionCall
	KindIncrement
	KindVectorOp
	KindComplexTypeDefinition
	KindInitializerList
	KindReturnStatement
	KindIfStatement
	KindWhileLoop
	KindLoop
	KindControlFlow
	KindFunction
	KindClassStatement
)

var kindNames = [...]string{
	KindStatementBlock:        "StatementBlock",
	KindNoop:                  "Noop",
	KindImmediate:             "Immediate",
	KindVariableReference:     "VariableReference",
	KindThisPointer:           "ThisPointer",
	KindAssignment:            "Assignment",
	KindCast:                  "Cast",
	KindBinaryOp:              "BinaryOp",
	KindCompare:               "Compare",
	KindLogicalNot:            "LogicalNot",
	KindNegation:              "Negation",
	KindTernaryOp:             "TernaryOp",
	KindSubscript:             "Subscript",
	KindDotOperator:           "DotOperator",
	KindFunctionCall:          "FunctionCall",
	KindIncrement:             "Increment",
	KindVectorOp:              "VectorOp",
	KindComplexTypeDefinition: "ComplexTypeDefinition",
	KindInitializerList:       "InitializerList",
	KindReturnStatement:       "ReturnStatement",
	KindIfStatement:           "IfStatement",
	KindWhileLoop:             "WhileLoop",
	KindLoop:                  "Loop",
	KindControlFlow:           "ControlFlow",
	KindFunction:              "Function",
	KindClassStatement:        "ClassStatement",
}

func (k Kind) String() string { return kindNames[k] }

// Node is implemented by the node types of this package only.
type Node interface {
	Kind() Kind
	Loc() diag.Location
	// Type is the node's TypeInfo. It is final once TypeCheck has run.
	Type() types.TypeInfo
	Parent() Node
	Children() []Node
	String() string
	base() *nodeBase
}

type nodeBase struct {
	self     Node
	loc      diag.Location
	typ      types.TypeInfo
	final    bool
	parent   Node
	children []Node
	done     Pass
	reg      *backend.Register
}

func (b *nodeBase) base() *nodeBase       { return b }
func (b *nodeBase) Loc() diag.Location    { return b.loc }
func (b *nodeBase) Type() types.TypeInfo  { return b.typ }
func (b *nodeBase) Parent() Node          { return b.parent }
func (b *nodeBase) Children() []Node      { return b.children }
func (b *nodeBase) child(i int) Node      { return b.children[i] }
func (b *nodeBase) numChildren() int      { return len(b.children) }
func (b *nodeBase) Register() *backend.Register {
	if b.reg == nil {
		diag.Unreachable("%s at %s: register queried before code generation", b.self.Kind(), b.loc)
	}
	return b.reg
}

func (b *nodeBase) init(self Node, loc diag.Location, children ...Node) {
	b.self, b.loc, b.typ = self, loc, types.Auto()
	for _, c := range children {
		b.add(c)
	}
}

// add appends a child. A node can only ever have one parent.
func (b *nodeBase) add(c Node) {
	if c == nil {
		return
	}
	cb := c.base()
	if cb.parent != nil {
		diag.Unreachable("%s at %s already has a parent", c.Kind(), cb.loc)
	}
	cb.parent = b.self
	b.children = append(b.children, c)
}

// release detaches and returns all children so they can move to a new
// parent.
func (b *nodeBase) release() []Node {
	out := b.children
	for _, c := range out {
		c.base().parent = nil
	}
	b.children = nil
	return out
}

// setType records the node's type. Once a type is final it can only be
// replaced through rewriteType.
func (b *nodeBase) setType(t types.TypeInfo) {
	if b.final && !b.typ.EqualsWithModifiers(t) {
		diag.Unreachable("%s at %s: final type %s changed to %s", b.self.Kind(), b.loc, b.typ, t)
	}
	b.typ = t
}

func (b *nodeBase) finalise(t types.TypeInfo) {
	b.setType(t)
	b.final = true
}

// rewriteType is the sanctioned way to change a final type, used when an
// "auto" declaration or return type is deduced.
func (b *nodeBase) rewriteType(t types.TypeInfo) {
	b.typ = t
}

// Add appends a child to a node under construction.
func Add(parent, child Node) { parent.base().add(child) }

// Replace puts repl where old sits in the tree. old is left detached.
func Replace(old, repl Node) {
	p := old.Parent()
	if p == nil {
		diag.Unreachable("%s at %s has no parent to replace it in", old.Kind(), old.Loc())
	}
	if repl.Parent() != nil {
		diag.Unreachable("replacement %s already has a parent", repl.Kind())
	}
	pb := p.base()
	for i, c := range pb.children {
		if c == old {
			pb.children[i] = repl
			repl.base().parent = p
			old.base().parent = nil
			return
		}
	}
	diag.Unreachable("%s is not a child of its parent", old.Kind())
}

// Wrap inserts w between n and n's parent: w takes n's place and n becomes
// w's last child.
func Wrap(n, w Node) {
	Replace(n, w)
	w.base().add(n)
}

// Walk visits n and its descendants depth-first, stopping a branch when fn
// returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// Operator is a binary, comparison, logical or assignment operator.
type Operator uint8

const (
	OpAssign Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opSymbols = [...]string{"=", "+", "-", "*", "/", "%", "&&", "||", "==", "!=", "<", "<=", ">", ">="}

func (o Operator) String() string { return opSymbols[o] }

func (o Operator) IsArithmetic() bool { return o >= OpAdd && o <= OpMod }
func (o Operator) IsLogic() bool      { return o == OpAnd || o == OpOr }
func (o Operator) IsCompare() bool    { return o >= OpEq && o <= OpGe }

func (o Operator) arith() backend.Op {
	return backend.Op(o - OpAdd)
}

func (o Operator) compare() backend.CompareOp {
	return backend.CompareOp(o - OpEq)
}
