package types

import (
	"fmt"
	"math"
	"strconv"
)

// NativeType is a built-in scalar kind.
type NativeType uint8

const (
	Void    NativeType = iota
	Integer            // 32-bit signed
	Float              // 32-bit IEEE
	Double             // 64-bit IEEE
	Boolean
	String  // literal strings, only accepted by inbuilt debug functions
	Pointer // complex-typed values are addressed through a pointer
	Dynamic // not yet determined ("auto")
)

var nativeNames = [...]string{
	Void:    "void",
	Integer: "int",
	Float:   "float",
	Double:  "double",
	Boolean: "bool",
	String:  "string",
	Pointer: "pointer",
	Dynamic: "auto",
}

func (t NativeType) String() string {
	if int(t) < len(nativeNames) {
		return nativeNames[t]
	}
	return fmt.Sprintf("native(%d)", int(t))
}

// IsNumeric reports whether t takes part in arithmetic.
func (t NativeType) IsNumeric() bool {
	return t == Integer || t == Float || t == Double
}

// IsFloatingPoint reports whether t is float or double.
func (t NativeType) IsFloatingPoint() bool { return t == Float || t == Double }

// Size is the storage size in bytes.
func (t NativeType) Size() int {
	switch t {
	case Integer, Float:
		return 4
	case Double, Pointer, String:
		return 8
	case Boolean:
		return 1
	}
	return 0
}

// Promote returns the wider of two numeric types (int < float < double).
func Promote(a, b NativeType) NativeType {
	rank := func(t NativeType) int {
		switch t {
		case Double:
			return 3
		case Float:
			return 2
		case Integer:
			return 1
		}
		return 0
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// Constant is a compile-time value of a native type.
type Constant struct {
	typ NativeType
	i   int64
	f   float64
	s   string
}

func IntConstant(v int64) Constant     { return Constant{typ: Integer, i: v} }
func FloatConstant(v float32) Constant { return Constant{typ: Float, f: float64(v)} }
func DoubleConstant(v float64) Constant {
	return Constant{typ: Double, f: v}
}
func StringConstant(v string) Constant { return Constant{typ: String, s: v} }

func BoolConstant(v bool) Constant {
	c := Constant{typ: Boolean}
	if v {
		c.i = 1
	}
	return c
}

// ZeroConstant is the default value of t.
func ZeroConstant(t NativeType) Constant { return Constant{typ: t} }

func (c Constant) Type() NativeType { return c.typ }
func (c Constant) IsVoid() bool     { return c.typ == Void }

// Int returns the value truncated to an integer.
func (c Constant) Int() int64 {
	if c.typ.IsFloatingPoint() {
		return int64(c.f)
	}
	return c.i
}

// Float64 returns the value as a double.
func (c Constant) Float64() float64 {
	if c.typ.IsFloatingPoint() {
		return c.f
	}
	return float64(c.i)
}

func (c Constant) Bool() bool {
	if c.typ.IsFloatingPoint() {
		return c.f != 0
	}
	return c.i != 0
}

func (c Constant) Str() string { return c.s }

// ConvertTo casts the constant to t using C conversion rules.
func (c Constant) ConvertTo(t NativeType) Constant {
	switch t {
	case Integer:
		return IntConstant(int64(int32(c.Int())))
	case Float:
		return FloatConstant(float32(c.Float64()))
	case Double:
		return DoubleConstant(c.Float64())
	case Boolean:
		return BoolConstant(c.Bool())
	}
	return c
}

// Equal compares type and value. NaN is never equal.
func (c Constant) Equal(o Constant) bool {
	if c.typ != o.typ {
		return false
	}
	switch {
	case c.typ.IsFloatingPoint():
		return c.f == o.f
	case c.typ == String:
		return c.s == o.s
	}
	return c.i == o.i
}

func (c Constant) String() string {
	switch c.typ {
	case Integer:
		return strconv.FormatInt(c.i, 10)
	case Float:
		return formatFloat(c.f, 32) + "f"
	case Double:
		return formatFloat(c.f, 64)
	case Boolean:
		return strconv.FormatBool(c.i != 0)
	case String:
		return strconv.Quote(c.s)
	}
	return "void"
}

func formatFloat(f float64, bits int) string {
	if math.Trunc(f) == f && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, bits)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
