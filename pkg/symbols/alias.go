package symbols

import (
	"strings"

	"dspc/pkg/backend"
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// SymbolKind classifies an Alias.
type SymbolKind uint8

const (
	Struct SymbolKind = iota
	Function
	Variable
	UsingAlias
	Constant
	TemplateType
	TemplateConstant
	TemplatedClass
	TemplatedFunction
	Enum
	EnumValue
)

var kindNames = [...]string{
	Struct:            "struct",
	Function:          "function",
	Variable:          "variable",
	UsingAlias:        "using",
	Constant:          "constant",
	TemplateType:      "template type",
	TemplateConstant:  "template constant",
	TemplatedClass:    "template class",
	TemplatedFunction: "template function",
	Enum:              "enum",
	EnumValue:         "enum value",
}

func (k SymbolKind) String() string { return kindNames[k] }

// IsType reports whether an alias of this kind names a type.
func (k SymbolKind) IsType() bool {
	return k == Struct || k == UsingAlias || k == TemplateType || k == Enum || k == TemplatedClass
}

// IsValue reports whether an alias of this kind can appear in an expression.
func (k SymbolKind) IsValue() bool {
	return k == Variable || k == Constant || k == TemplateConstant || k == EnumValue
}

type Visibility uint8

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// DebugInfo is kept for editor integration.
type DebugInfo struct {
	Loc     diag.Location
	Comment string
}

// Parameter is a formal function parameter.
type Parameter struct {
	Name string
	Type types.TypeInfo
}

// Signature is one overload of a function.
type Signature struct {
	ID          types.ID
	Return      types.TypeInfo
	Params      []Parameter
	Method      bool // takes an implicit this
	Const       bool // const method
	Constructor bool
	// Template holds the bound parameters of a function template instance.
	Template types.ParameterList
	// Inliner is set for inbuilt functions emitted at the call site.
	Inliner backend.Inliner
	Loc     diag.Location
}

// Scope is the namespace holding the parameters and body of this overload.
func (s *Signature) Scope() types.ID {
	return s.ID.Child(s.paramList())
}

func (s *Signature) paramList() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Symbol is the unique backend name of this overload.
func (s *Signature) Symbol() string {
	var b strings.Builder
	for _, r := range strings.ReplaceAll(s.ID.String()+s.paramList(), types.Separator, ".") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
		case r == ':':
			b.WriteByte('.')
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// ParamTypes returns the declared parameter types.
func (s *Signature) ParamTypes() []types.TypeInfo {
	out := make([]types.TypeInfo, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Type
	}
	return out
}

// SameParams reports whether two overloads take identical parameter types.
func (s *Signature) SameParams(o *Signature) bool {
	if len(s.Params) != len(o.Params) || s.Const != o.Const {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Type.Equals(o.Params[i].Type) {
			return false
		}
	}
	return true
}

func (s *Signature) String() string {
	str := s.Return.String() + " " + s.ID.String() + s.paramList()
	if s.Const {
		str += " const"
	}
	return str
}

// Match grades how well argument types fit the overload. exact means every
// argument has the parameter's type; ok means arguments convert implicitly.
func (s *Signature) Match(args []types.TypeInfo) (exact, ok bool) {
	if len(args) != len(s.Params) {
		return false, false
	}
	exact = true
	for i, a := range args {
		p := s.Params[i].Type
		switch {
		case a.Equals(p):
		case a.IsDynamic():
			exact = false
		case p.IsNumeric() && (a.IsNumeric() || a.IsBool()) && !p.IsRef():
			exact = false
		case p.IsBool() && a.IsNumeric() && !p.IsRef():
			exact = false
		case viewable(p, a):
			exact = false
		default:
			return false, false
		}
	}
	return exact, true
}

// viewable reports whether an array argument can be passed to a dyn or
// block parameter as a view of its elements.
func viewable(p, a types.TypeInfo) bool {
	pa, ok := p.Array()
	if !ok || pa.Length() >= 0 || p.IsRef() {
		return false
	}
	aa, ok := a.Array()
	return ok && aa.Element().Equals(pa.Element())
}

// Alias is a named entry in a namespace.
type Alias struct {
	ID         types.ID
	Type       types.TypeInfo
	Kind       SymbolKind
	Visibility Visibility
	// Value holds the compile-time value of constants and enum values.
	Value types.Constant
	// Pack holds the arguments bound to a variadic template parameter.
	Pack      types.ParameterList
	Functions []*Signature
	Debug     DebugInfo
	// Origin is the id of the declaration a copied alias stands for.
	Origin types.ID
}

// Canonical is the id storage and calls should use for a.
func (a *Alias) Canonical() types.ID {
	if a.Origin.IsValid() {
		return a.Origin
	}
	return a.ID
}

func (a *Alias) clone() *Alias {
	c := *a
	c.Functions = append([]*Signature(nil), a.Functions...)
	return &c
}

// ConstructorID is the identifier of a struct's constructor overload set.
func ConstructorID(class types.ID) types.ID {
	return class.Child(class.Name())
}

var operatorNames = map[string]string{
	"<":  "operator lt",
	"<=": "operator le",
	">":  "operator gt",
	">=": "operator ge",
}

// OperatorID is the member name of an operator overload, e.g. "operator+".
// Angle-bracket operators get spelled out so they don't read as template
// arguments in identifiers.
func OperatorID(class types.ID, op string) types.ID {
	if n, ok := operatorNames[op]; ok {
		return class.Child(n)
	}
	return class.Child("operator" + op)
}

// CastOperatorID is the member name of "operator T()".
func CastOperatorID(class types.ID, to types.TypeInfo) types.ID {
	return class.Child("operator " + to.Plain().String())
}
