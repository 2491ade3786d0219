package types

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParameterKind separates type parameters from integer constant parameters.
type ParameterKind uint8

const (
	TypeParameter ParameterKind = iota
	ConstantParameter
)

func (k ParameterKind) String() string {
	if k == ConstantParameter {
		return "constant"
	}
	return "type"
}

// TemplateParameter is either a formal parameter of a template definition
// (named, optionally defaulted or variadic) or an actual argument: a concrete
// type, a concrete integer, or a reference to a still unbound formal.
type TemplateParameter struct {
	Kind     ParameterKind
	ID       ID // formal name; for unresolved actuals the formal they refer to
	Type     TypeInfo
	Value    int
	Variadic bool

	resolved   bool
	hasDefault bool
	defType    TypeInfo
	defValue   int
}

// TypeArg is a type argument.
func TypeArg(t TypeInfo) TemplateParameter {
	return TemplateParameter{Kind: TypeParameter, Type: t.Plain(), ID: t.TemplateID()}
}

// ConstantArg is a resolved integer argument.
func ConstantArg(v int) TemplateParameter {
	return TemplateParameter{Kind: ConstantParameter, Value: v, resolved: true}
}

// UnresolvedConstant is an integer argument that names an unbound formal.
func UnresolvedConstant(id ID) TemplateParameter {
	return TemplateParameter{Kind: ConstantParameter, ID: id}
}

// PackExpansion is "Ts..." used as an argument.
func PackExpansion(id ID) TemplateParameter {
	return TemplateParameter{Kind: TypeParameter, ID: id, Type: TemplateParam(id), Variadic: true}
}

// FormalType declares "typename T" (or "typename... T").
func FormalType(id ID, variadic bool) TemplateParameter {
	return TemplateParameter{Kind: TypeParameter, ID: id, Type: TemplateParam(id), Variadic: variadic}
}

// FormalConstant declares "int N" (or "int... N").
func FormalConstant(id ID, variadic bool) TemplateParameter {
	return TemplateParameter{Kind: ConstantParameter, ID: id, Variadic: variadic}
}

func (p TemplateParameter) WithDefaultType(t TypeInfo) TemplateParameter {
	p.hasDefault, p.defType = true, t.Plain()
	return p
}

func (p TemplateParameter) WithDefaultConstant(v int) TemplateParameter {
	p.hasDefault, p.defValue = true, v
	return p
}

func (p TemplateParameter) HasDefault() bool { return p.hasDefault }

// Default is the actual argument a defaulted formal falls back to.
func (p TemplateParameter) Default() TemplateParameter {
	if p.Kind == ConstantParameter {
		return ConstantArg(p.defValue)
	}
	return TypeArg(p.defType)
}

// IsResolved reports whether the argument is concrete.
func (p TemplateParameter) IsResolved() bool {
	if p.Kind == ConstantParameter {
		return p.resolved
	}
	return !p.Variadic && !p.Type.IsTemplated() && !p.Type.IsDynamic()
}

func (p TemplateParameter) Equals(o TemplateParameter) bool {
	if p.Kind != o.Kind || p.IsResolved() != o.IsResolved() {
		return false
	}
	if !p.IsResolved() {
		return p.ID == o.ID
	}
	if p.Kind == ConstantParameter {
		return p.Value == o.Value
	}
	return p.Type.Equals(o.Type)
}

func (p TemplateParameter) String() string {
	var s string
	switch {
	case p.Kind == ConstantParameter && p.resolved:
		s = strconv.Itoa(p.Value)
	case p.Kind == ConstantParameter:
		s = p.ID.Name()
	default:
		s = p.Type.String()
	}
	if p.Variadic {
		s += "..."
	}
	return s
}

// ParameterList is an ordered template argument or formal parameter list.
type ParameterList []TemplateParameter

func (l ParameterList) String() string {
	parts := make([]string, len(l))
	for i, p := range l {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func (l ParameterList) IsResolved() bool {
	for _, p := range l {
		if !p.IsResolved() {
			return false
		}
	}
	return true
}

// IsVariadic reports whether the last formal takes a parameter pack.
func (l ParameterList) IsVariadic() bool {
	return len(l) > 0 && l[len(l)-1].Variadic
}

// MinArity is the number of formals without defaults before the pack.
func (l ParameterList) MinArity() int {
	n := 0
	for _, p := range l {
		if p.Variadic || p.hasDefault {
			break
		}
		n++
	}
	return n
}

func (l ParameterList) Equals(o ParameterList) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if !l[i].Equals(o[i]) {
			return false
		}
	}
	return true
}

// MergeParameters lines actual arguments up with formal parameters and fills
// trailing defaults. The result is positional: entry i belongs to formal i,
// except that a trailing variadic formal absorbs all remaining arguments.
func MergeParameters(formal, actual ParameterList) (ParameterList, error) {
	out := make(ParameterList, 0, len(formal))
	ai := 0
	for _, f := range formal {
		if f.Variadic {
			for ; ai < len(actual); ai++ {
				if actual[ai].Kind != f.Kind {
					return nil, errors.Errorf("template argument %d: expected %s, got %s", ai+1, f.Kind, actual[ai].Kind)
				}
				out = append(out, actual[ai])
			}
			break
		}
		switch {
		case ai < len(actual):
			a := actual[ai]
			if a.Variadic && !a.IsResolved() {
				// an unexpanded pack swallows the rest of the formals
				out = append(out, a)
				ai++
				return out, nil
			}
			if a.Kind != f.Kind {
				return nil, errors.Errorf("template argument %d: expected %s, got %s", ai+1, f.Kind, a.Kind)
			}
			out = append(out, a)
			ai++
		case f.hasDefault:
			out = append(out, f.Default())
		default:
			return nil, errors.Errorf("missing template argument for %s", f.ID.Name())
		}
	}
	if ai < len(actual) {
		return nil, errors.Errorf("too many template arguments: expected %d, got %d", len(formal), len(actual))
	}
	return out, nil
}

// Validate checks a merged list against its formals: every argument resolved
// and of the right kind, no void type arguments.
func (l ParameterList) Validate(formal ParameterList) error {
	for i, p := range l {
		fi := i
		if fi >= len(formal) {
			fi = len(formal) - 1
		}
		if fi < 0 {
			return errors.New("template takes no arguments")
		}
		if p.Kind != formal[fi].Kind {
			return errors.Errorf("template argument %d: expected %s, got %s", i+1, formal[fi].Kind, p.Kind)
		}
		if !p.IsResolved() {
			return errors.Errorf("template argument %d (%s) is unresolved", i+1, p)
		}
		if p.Kind == TypeParameter && p.Type.IsVoid() {
			return errors.Errorf("template argument %d can't be void", i+1)
		}
	}
	return nil
}

// Binding associates a formal with the argument(s) it was bound to.
type Binding struct {
	Formal TemplateParameter
	Args   ParameterList
}

// Bindings pairs formals with a merged argument list.
func Bindings(formal, merged ParameterList) []Binding {
	var out []Binding
	for i, f := range formal {
		if f.Variadic {
			var rest ParameterList
			if i < len(merged) {
				rest = merged[i:]
			}
			out = append(out, Binding{Formal: f, Args: rest})
			break
		}
		if i < len(merged) {
			out = append(out, Binding{Formal: f, Args: merged[i : i+1]})
		}
	}
	return out
}

// ExpandVariadics splices bound packs into a list of actual arguments.
// lookup returns the arguments a pack name is currently bound to.
func ExpandVariadics(actual ParameterList, lookup func(ID) (ParameterList, bool)) ParameterList {
	var out ParameterList
	for _, a := range actual {
		if a.Variadic && a.ID.IsValid() {
			if pack, ok := lookup(a.ID); ok {
				out = append(out, pack...)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
