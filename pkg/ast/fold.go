package ast

import (
	"math"

	"github.com/pkg/errors"

	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// EvalConstant computes the value of a constant expression without touching
// the tree. References are looked up in reg when they haven't been bound
// yet, so the parser can evaluate template arguments and enum values.
func EvalConstant(reg *symbols.Registry, n Node) (types.Constant, bool) {
	switch n := n.(type) {
	case *Immediate:
		return n.Value, true
	case *VariableReference:
		a := n.Alias
		if a == nil && reg != nil {
			a, _ = reg.Symbol(n.ID)
		}
		if a == nil || a.Value.IsVoid() {
			return types.Constant{}, false
		}
		switch a.Kind {
		case symbols.Constant, symbols.EnumValue, symbols.TemplateConstant:
			return a.Value, true
		}
	case *BinaryOp:
		l, ok := EvalConstant(reg, n.Left())
		if !ok {
			return l, false
		}
		if n.Op.IsLogic() && l.Bool() == (n.Op == OpOr) {
			return types.BoolConstant(l.Bool()), true
		}
		r, ok := EvalConstant(reg, n.Right())
		if !ok {
			return r, false
		}
		v, err := foldBinary(n.Op, l, r)
		return v, err == nil
	case *Compare:
		l, lok := EvalConstant(reg, n.Left())
		r, rok := EvalConstant(reg, n.Right())
		if !lok || !rok {
			return types.Constant{}, false
		}
		v, err := foldCompare(n.Op, l, r)
		return v, err == nil
	case *LogicalNot:
		v, ok := EvalConstant(reg, n.Operand())
		if !ok || v.Type() == types.String {
			return v, false
		}
		return types.BoolConstant(!v.Bool()), true
	case *Negation:
		v, ok := EvalConstant(reg, n.Operand())
		if !ok {
			return v, false
		}
		return negate(v)
	case *Cast:
		v, ok := EvalConstant(reg, n.Operand())
		if !ok || n.To.IsComplex() {
			return v, false
		}
		return v.ConvertTo(n.To.Native()), true
	case *TernaryOp:
		cond, ok := EvalConstant(reg, n.Cond())
		if !ok {
			return cond, false
		}
		if cond.Bool() {
			return EvalConstant(reg, n.Then())
		}
		return EvalConstant(reg, n.Else())
	}
	return types.Constant{}, false
}

func arithType(t types.NativeType) types.NativeType {
	if t == types.Boolean {
		return types.Integer
	}
	return t
}

func foldBinary(op Operator, a, b types.Constant) (types.Constant, error) {
	switch {
	case op.IsLogic():
		if op == OpAnd {
			return types.BoolConstant(a.Bool() && b.Bool()), nil
		}
		return types.BoolConstant(a.Bool() || b.Bool()), nil
	case op.IsCompare():
		return foldCompare(op, a, b)
	case a.Type() == types.String || b.Type() == types.String:
		return types.Constant{}, errors.Errorf("operator %s can't be applied to strings", op)
	}
	t := types.Promote(arithType(a.Type()), arithType(b.Type()))
	a, b = a.ConvertTo(t), b.ConvertTo(t)
	if t == types.Integer {
		x, y := a.Int(), b.Int()
		var r int64
		switch op {
		case OpAdd:
			r = x + y
		case OpSub:
			r = x - y
		case OpMul:
			r = x * y
		case OpDiv, OpMod:
			if y == 0 {
				return types.Constant{}, errors.New("division by zero")
			}
			if op == OpDiv {
				r = x / y
			} else {
				r = x % y
			}
		}
		return types.IntConstant(int64(int32(r))), nil
	}
	x, y := a.Float64(), b.Float64()
	var r float64
	switch op {
	case OpAdd:
		r = x + y
	case OpSub:
		r = x - y
	case OpMul:
		r = x * y
	case OpDiv:
		r = x / y
	case OpMod:
		r = math.Mod(x, y)
	}
	if t == types.Float {
		return types.FloatConstant(float32(r)), nil
	}
	return types.DoubleConstant(r), nil
}

func foldCompare(op Operator, a, b types.Constant) (types.Constant, error) {
	var cmp int
	switch {
	case a.Type() == types.String && b.Type() == types.String:
		if op != OpEq && op != OpNe {
			return types.Constant{}, errors.Errorf("operator %s can't be applied to strings", op)
		}
		if a.Str() != b.Str() {
			cmp = 1
		}
	case a.Type() == types.String || b.Type() == types.String:
		return types.Constant{}, errors.New("can't compare a string with a number")
	case a.Type().IsFloatingPoint() || b.Type().IsFloatingPoint():
		x, y := a.Float64(), b.Float64()
		if x != x || y != y {
			return types.BoolConstant(op == OpNe), nil
		}
		cmp = threeWay(x < y, x > y)
	default:
		x, y := a.Int(), b.Int()
		cmp = threeWay(x < y, x > y)
	}
	var r bool
	switch op {
	case OpEq:
		r = cmp == 0
	case OpNe:
		r = cmp != 0
	case OpLt:
		r = cmp < 0
	case OpLe:
		r = cmp <= 0
	case OpGt:
		r = cmp > 0
	case OpGe:
		r = cmp >= 0
	}
	return types.BoolConstant(r), nil
}

func threeWay(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func negate(v types.Constant) (types.Constant, bool) {
	switch v.Type() {
	case types.Integer, types.Boolean:
		return types.IntConstant(int64(int32(-v.Int()))), true
	case types.Float:
		return types.FloatConstant(float32(-v.Float64())), true
	case types.Double:
		return types.DoubleConstant(-v.Float64()), true
	}
	return v, false
}
