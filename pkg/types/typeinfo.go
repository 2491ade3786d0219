// Package types holds the compiler's value-level vocabulary: namespaced
// identifiers, native and complex types, the complex-type registry and the
// template parameter algebra.
package types

// TypeInfo describes the type of a symbol or expression. Exactly one of the
// three shapes applies: a native kind, a complex type, or an unresolved
// template parameter placeholder (inside a template definition).
type TypeInfo struct {
	native   NativeType
	complex  ComplexType
	template ID
	ref      bool
	constant bool
}

// Native wraps a native kind.
func Native(t NativeType) TypeInfo { return TypeInfo{native: t} }

// Complex wraps a complex type.
func Complex(c ComplexType) TypeInfo {
	if c == nil {
		return TypeInfo{native: Dynamic}
	}
	return TypeInfo{native: Pointer, complex: c}
}

// TemplateParam is the placeholder type of an unbound template parameter.
func TemplateParam(id ID) TypeInfo { return TypeInfo{native: Dynamic, template: id} }

// Auto is the undetermined type.
func Auto() TypeInfo { return Native(Dynamic) }

func (t TypeInfo) Native() NativeType   { return t.native }
func (t TypeInfo) Complex() ComplexType { return t.complex }
func (t TypeInfo) TemplateID() ID       { return t.template }
func (t TypeInfo) IsComplex() bool      { return t.complex != nil }
func (t TypeInfo) IsRef() bool          { return t.ref }
func (t TypeInfo) IsConst() bool        { return t.constant }
func (t TypeInfo) IsVoid() bool         { return t.complex == nil && t.native == Void }

// IsDynamic reports an undetermined type that is not a template placeholder.
func (t TypeInfo) IsDynamic() bool {
	return t.complex == nil && t.native == Dynamic && !t.template.IsValid()
}

// IsTemplated reports whether t still depends on an unbound template
// parameter, directly or through a placeholder complex type.
func (t TypeInfo) IsTemplated() bool {
	if t.template.IsValid() {
		return true
	}
	if tc, ok := t.complex.(*TemplatedComplexType); ok && tc != nil {
		return true
	}
	return false
}

// IsNumeric reports a native numeric type.
func (t TypeInfo) IsNumeric() bool { return t.complex == nil && t.native.IsNumeric() }

// IsBool reports a native boolean.
func (t TypeInfo) IsBool() bool { return t.complex == nil && t.native == Boolean }

// Is reports whether t is exactly the native kind n.
func (t TypeInfo) Is(n NativeType) bool { return t.complex == nil && !t.template.IsValid() && t.native == n }

func (t TypeInfo) WithRef(ref bool) TypeInfo {
	t.ref = ref
	return t
}

func (t TypeInfo) WithConst(c bool) TypeInfo {
	t.constant = c
	return t
}

// Plain strips ref and const modifiers.
func (t TypeInfo) Plain() TypeInfo {
	t.ref, t.constant = false, false
	return t
}

// Equals compares types structurally, ignoring ref/const modifiers.
func (t TypeInfo) Equals(o TypeInfo) bool {
	if t.template != o.template {
		return false
	}
	if t.complex != nil || o.complex != nil {
		if t.complex == nil || o.complex == nil {
			return false
		}
		return t.complex == o.complex || t.complex.String() == o.complex.String()
	}
	return t.native == o.native
}

// EqualsWithModifiers also compares ref/const.
func (t TypeInfo) EqualsWithModifiers(o TypeInfo) bool {
	return t.Equals(o) && t.ref == o.ref && t.constant == o.constant
}

// Size is the storage size in bytes.
func (t TypeInfo) Size() int {
	if t.complex != nil {
		return t.complex.Size()
	}
	return t.native.Size()
}

// Array returns the array view of t when it is span, dyn or block.
func (t TypeInfo) Array() (ArrayType, bool) {
	a, ok := t.complex.(ArrayType)
	return a, ok
}

// Struct returns the struct type behind t.
func (t TypeInfo) Struct() (*StructType, bool) {
	s, ok := t.complex.(*StructType)
	return s, ok
}

func (t TypeInfo) String() string {
	var s string
	switch {
	case t.template.IsValid():
		s = t.template.Name()
	case t.complex != nil:
		s = t.complex.String()
	default:
		s = t.native.String()
	}
	if t.constant {
		s = "const " + s
	}
	if t.ref {
		s += "&"
	}
	return s
}
