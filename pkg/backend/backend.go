// Package backend defines the code emission service the CodeGeneration pass
// drives. The service owns registers, the constant pool and instruction
// emission; the AST layer only tells it what to compute.
package backend

import "dspc/pkg/types"

// Register is a value produced by the backend. A Memory register holds the
// address of its value (an l-value); otherwise it holds the value itself.
// Lanes is greater than one for SIMD values.
type Register struct {
	Type   types.TypeInfo
	Memory bool
	Lanes  int
	Value  any
}

// Op is an arithmetic operator.
type Op uint8

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
)

func (o Op) String() string { return [...]string{"+", "-", "*", "/", "%"}[o] }

// CompareOp is a relational operator.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (o CompareOp) String() string { return [...]string{"==", "!=", "<", "<=", ">", ">="}[o] }

// Param describes a function parameter at the backend level.
type Param struct {
	Name string
	Type types.TypeInfo
}

// FunctionSpec is the backend view of a function: a unique symbol name plus
// its lowered signature. Method receivers appear as an explicit first
// parameter.
type FunctionSpec struct {
	Symbol string
	Return types.TypeInfo
	Params []Param
}

// Inliner emits the body of an inbuilt function at the call site. this is nil
// for free functions.
type Inliner func(s Service, this *Register, args []*Register) (*Register, error)

// Service is the emission contract.
type Service interface {
	// DeclareFunction makes a function callable before its body is emitted.
	DeclareFunction(spec FunctionSpec) error
	// BeginFunction starts the body of a declared function and returns one
	// register per parameter.
	BeginFunction(symbol string) ([]*Register, error)
	EndFunction() error

	DefineGlobal(name string, t types.TypeInfo, init []types.Constant) (*Register, error)
	Alloca(t types.TypeInfo, name string) *Register
	// Materialize returns a Memory register holding r's value, spilling it to
	// a fresh stack slot when needed.
	Materialize(r *Register) *Register
	// Zero stores the zero value (or member defaults) into a Memory register.
	Zero(dst *Register) error

	Constant(c types.Constant) *Register
	Load(r *Register) *Register
	Store(dst, src *Register) error

	Binary(op Op, l, r *Register) (*Register, error)
	Compare(op CompareOp, l, r *Register) (*Register, error)
	Not(r *Register) (*Register, error)
	Negate(r *Register) (*Register, error)
	Cast(r *Register, to types.TypeInfo) (*Register, error)

	Call(symbol string, args []*Register) (*Register, error)
	Intrinsic(name string, ret types.TypeInfo, args []*Register) (*Register, error)
	External(name string, ret types.TypeInfo, args []*Register) (*Register, error)

	ElementRef(base, index *Register) (*Register, error)
	MemberRef(base *Register, index int) (*Register, error)
	// Length returns the runtime element count of an array register.
	Length(base *Register) (*Register, error)
	// MakeView points a dyn/block register at the elements of an array.
	MakeView(dst, src *Register) error

	// Branch emits an if/else. When both arms yield a value the results are
	// merged and returned.
	Branch(cond *Register, then, els func() (*Register, error)) (*Register, error)
	While(cond func() (*Register, error), body func() error) error
	// Loop runs body for index 0..count-1 in steps of one.
	Loop(count *Register, body func(index *Register) error) error
	// VectorLoop runs body over 0..count-1 in SIMD strides of lanes elements
	// followed by a scalar remainder; body receives the lane count it must
	// process at index.
	VectorLoop(count *Register, lanes int, body func(index *Register, lanes int) error) error
	Break() error
	Continue() error
	Return(r *Register) error

	// Lanes is the SIMD width for the element type, 1 when not vectorisable.
	Lanes(t types.TypeInfo) int
	LoadLanes(ref *Register, lanes int) (*Register, error)
	StoreLanes(ref, value *Register, lanes int) error
	Splat(r *Register, lanes int) (*Register, error)

	// String renders the emitted module.
	String() string
}
