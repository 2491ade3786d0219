package llvmgen

import (
	"strings"

	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"dspc/pkg/types"
)

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
		case r == ':':
			b.WriteByte('.')
		case r == ' ':
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(strings.ReplaceAll(b.String(), "..", "."), "_")
}

// lltype maps a DSL type onto its in-memory LLVM type.
func (g *Generator) lltype(t types.TypeInfo) lltypes.Type {
	if t.IsComplex() {
		return g.complexType(t.Complex())
	}
	switch t.Native() {
	case types.Integer:
		return lltypes.I32
	case types.Float:
		return lltypes.Float
	case types.Double:
		return lltypes.Double
	case types.Boolean:
		return lltypes.I1
	case types.String, types.Pointer:
		return lltypes.I8Ptr
	}
	return lltypes.Void
}

// paramType is the type a value of t is passed as: references and complex
// values travel by pointer.
func (g *Generator) paramType(t types.TypeInfo) lltypes.Type {
	if t.IsRef() || t.IsComplex() {
		return lltypes.NewPointer(g.lltype(t))
	}
	return g.lltype(t)
}

func (g *Generator) complexType(ct types.ComplexType) lltypes.Type {
	key := ct.String()
	if a, ok := ct.(types.ArrayType); ok && a.Length() < 0 {
		// dyn<float> and block share one view layout
		key = "dyn." + sanitize(a.Element().String())
	}
	if t, ok := g.structs[key]; ok {
		return t
	}
	var t lltypes.Type
	switch c := ct.(type) {
	case *types.SpanType:
		t = lltypes.NewArray(uint64(c.Length()), g.lltype(c.Element()))
	case *types.DynType, types.BlockType, *types.BlockType:
		elem := ct.(types.ArrayType).Element()
		t = g.m.NewTypeDef(key, lltypes.NewStruct(lltypes.NewPointer(g.lltype(elem)), lltypes.I32))
	case *types.StructType:
		fields := make([]lltypes.Type, len(c.Members()))
		for i, m := range c.Members() {
			fields[i] = g.lltype(m.Type)
		}
		t = g.m.NewTypeDef(sanitize(c.ID().String()), lltypes.NewStruct(fields...))
	default:
		t = lltypes.I8
	}
	g.structs[key] = t
	return t
}

// constantOf builds the constant initializer for t from a flat value list.
// Missing values fall back to member defaults, then zero.
func (g *Generator) constantOf(t types.TypeInfo, vals []types.Constant) (constant.Constant, error) {
	lt := g.lltype(t)
	switch c := t.Complex().(type) {
	case nil:
		v := types.ZeroConstant(t.Native())
		if len(vals) > 0 {
			v = vals[0].ConvertTo(t.Native())
		}
		return g.scalarConstant(v)
	case *types.SpanType:
		if len(vals) == 0 && !hasDefaults(c.Element()) {
			return constant.NewZeroInitializer(lt), nil
		}
		elems := make([]constant.Constant, c.Length())
		for i := range elems {
			var v []types.Constant
			if i < len(vals) {
				v = vals[i : i+1]
			}
			e, err := g.constantOf(c.Element(), v)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return constant.NewArray(lt.(*lltypes.ArrayType), elems...), nil
	case *types.StructType:
		if len(vals) == 0 && !hasDefaults(t) {
			return constant.NewZeroInitializer(lt), nil
		}
		st, ok := lt.(*lltypes.StructType)
		if !ok {
			return nil, errors.Errorf("%s is not a struct type", t)
		}
		fields := make([]constant.Constant, len(c.Members()))
		for i, m := range c.Members() {
			var v []types.Constant
			switch {
			case i < len(vals):
				v = vals[i : i+1]
			case m.HasDefault:
				v = []types.Constant{m.Default}
			}
			f, err := g.constantOf(m.Type, v)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return constant.NewStruct(st, fields...), nil
	}
	return constant.NewZeroInitializer(lt), nil
}

func hasDefaults(t types.TypeInfo) bool {
	switch c := t.Complex().(type) {
	case *types.StructType:
		for _, m := range c.Members() {
			if m.HasDefault || hasDefaults(m.Type) {
				return true
			}
		}
	case *types.SpanType:
		return hasDefaults(c.Element())
	}
	return false
}

func (g *Generator) scalarConstant(c types.Constant) (constant.Constant, error) {
	switch c.Type() {
	case types.Integer:
		return constant.NewInt(lltypes.I32, c.Int()), nil
	case types.Float:
		return constant.NewFloat(lltypes.Float, float64(float32(c.Float64()))), nil
	case types.Double:
		return constant.NewFloat(lltypes.Double, c.Float64()), nil
	case types.Boolean:
		return constant.NewBool(c.Bool()), nil
	case types.String:
		return g.stringConstant(c.Str()), nil
	}
	return nil, errors.Errorf("no constant of type %s", c.Type())
}

func (g *Generator) stringConstant(s string) constant.Constant {
	glob, ok := g.strings[s]
	if !ok {
		data := constant.NewCharArrayFromString(s + "\x00")
		glob = g.m.NewGlobalDef(g.unique(".str"), data)
		glob.Immutable = true
		g.strings[s] = glob
	}
	zero := constant.NewInt(lltypes.I32, 0)
	return constant.NewGetElementPtr(glob.ContentType, glob, zero, zero)
}
