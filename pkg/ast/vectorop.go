package ast

import (
	"dspc/pkg/backend"
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

func (c *CompilationContext) typeVectorOp(n *VectorOp) error {
	if err := c.processChildren(n, TypeCheck); err != nil {
		return err
	}
	if n.Op != OpAssign && !n.Op.IsArithmetic() {
		return errorf(n, "operator %s can't be applied to arrays", n.Op)
	}
	l, r := n.Left(), n.Right()
	lt, rt := l.Type(), r.Type()
	la, lArr := lt.Array()
	ra, rArr := rt.Array()
	if n.Assign {
		if !lArr {
			diag.Unreachable("vector assignment to %s", lt)
		}
		if !isLValue(l) {
			return errorf(n, "%s is not assignable", l)
		}
		if lt.IsConst() {
			return errorf(n, "can't assign to const %s", l)
		}
	}

	var arr types.ArrayType
	var result types.TypeInfo
	switch {
	case lArr && rArr:
		if !la.Element().Equals(ra.Element()) {
			return errorf(n, "element types differ: %s and %s", la.Element(), ra.Element())
		}
		if la.Length() >= 0 && ra.Length() >= 0 && la.Length() != ra.Length() {
			return errorf(n, "array sizes differ: %d and %d", la.Length(), ra.Length())
		}
		arr, result = la, lt.Plain()
	case lArr:
		arr, result = la, lt.Plain()
		if _, err := c.convert(r, arr.Element()); err != nil {
			return err
		}
	case rArr && !n.Assign:
		arr, result = ra, rt.Plain()
		if _, err := c.convert(l, arr.Element()); err != nil {
			return err
		}
	default:
		diag.Unreachable("vector op without array operand")
	}

	copyOnly := n.Assign && n.Op == OpAssign && lArr && rArr
	if !arr.Element().IsNumeric() && !copyOnly {
		return errorf(n, "operator %s needs numeric elements, got %s", n.Op, arr.Element())
	}
	if n.Assign {
		n.finalise(voidType)
	} else {
		n.finalise(result)
	}
	return nil
}

// generateVectorOp lowers a vector op and every vector op nested in it into
// a single loop. Array operands are evaluated once before the loop; scalars
// are broadcast to the SIMD width.
func (c *CompilationContext) generateVectorOp(n *VectorOp) error {
	be := c.Backend
	var dst *backend.Register
	var expr Node
	op := OpAssign
	if n.Assign {
		if err := c.process(n.Left(), CodeGeneration); err != nil {
			return err
		}
		dst = n.Left().base().Register()
		expr, op = n.Right(), n.Op
	} else {
		arr, _ := n.Type().Array()
		if arr.Length() < 0 {
			return errorf(n, "the result of %s needs storage: assign it to a span first", n)
		}
		dst = be.Alloca(n.Type(), "vec")
		expr = n
	}

	leaves := make(map[Node]*backend.Register)
	if err := c.vectorLeaves(expr, leaves); err != nil {
		return err
	}
	count, err := be.Length(dst)
	if err != nil {
		return diag.At(n.Loc(), err)
	}
	arr, _ := dst.Type.Array()
	lanes := be.Lanes(arr.Element())

	err = be.VectorLoop(count, lanes, func(idx *backend.Register, w int) error {
		val, err := c.vectorValue(expr, leaves, idx, w)
		if err != nil {
			return err
		}
		ref, err := be.ElementRef(dst, idx)
		if err != nil {
			return err
		}
		if op != OpAssign {
			cur, err := be.LoadLanes(ref, w)
			if err != nil {
				return err
			}
			if val, err = be.Binary(op.arith(), cur, val); err != nil {
				return err
			}
		}
		return be.StoreLanes(ref, val, w)
	})
	if err != nil {
		return diag.At(n.Loc(), err)
	}
	if !n.Assign {
		n.reg = dst
	}
	return nil
}

func fused(n Node) (*VectorOp, bool) {
	v, ok := n.(*VectorOp)
	return v, ok && !v.Assign
}

func (c *CompilationContext) vectorLeaves(n Node, leaves map[Node]*backend.Register) error {
	if v, ok := fused(n); ok {
		if err := c.vectorLeaves(v.Left(), leaves); err != nil {
			return err
		}
		return c.vectorLeaves(v.Right(), leaves)
	}
	if err := c.process(n, CodeGeneration); err != nil {
		return err
	}
	r := n.base().Register()
	if isArray(n.Type()) {
		leaves[n] = c.Backend.Materialize(r)
	} else {
		leaves[n] = c.Backend.Load(r)
	}
	return nil
}

func (c *CompilationContext) vectorValue(n Node, leaves map[Node]*backend.Register, idx *backend.Register, w int) (*backend.Register, error) {
	be := c.Backend
	if v, ok := fused(n); ok {
		l, err := c.vectorValue(v.Left(), leaves, idx, w)
		if err != nil {
			return nil, err
		}
		r, err := c.vectorValue(v.Right(), leaves, idx, w)
		if err != nil {
			return nil, err
		}
		return be.Binary(v.Op.arith(), l, r)
	}
	r := leaves[n]
	if !isArray(n.Type()) {
		return be.Splat(r, w)
	}
	ref, err := be.ElementRef(r, idx)
	if err != nil {
		return nil, err
	}
	return be.LoadLanes(ref, w)
}
