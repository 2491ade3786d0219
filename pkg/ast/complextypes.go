package ast

import (
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// complexTypes rejects declarations of types that never got completed and
// settles "auto" variables initialised from a literal.
func (c *CompilationContext) complexTypes(n Node) error {
	switch n := n.(type) {
	case *ClassStatement:
		for _, m := range n.Struct.Members() {
			if err := c.checkComplete(n, m.Type); err != nil {
				return err
			}
		}
		return c.processChildren(n, ComplexTypeParsing)
	case *Assignment:
		if err := c.processChildren(n, ComplexTypeParsing); err != nil {
			return err
		}
		target, ok := n.Target().(*VariableReference)
		imm, isImm := n.Value().(*Immediate)
		if !ok || !isImm || !n.FirstDecl {
			return nil
		}
		if a, ok := c.Registry.Symbol(target.ID); ok && a.Type.IsDynamic() && !a.Type.IsTemplated() {
			t := types.Native(imm.Value.Type()).WithConst(a.Type.IsConst())
			return diag.At(n.Loc(), c.Registry.SetSymbolType(target.ID, t))
		}
		return nil
	case *ComplexTypeDefinition:
		if err := c.checkComplete(n, n.Declared); err != nil {
			return err
		}
		return c.processChildren(n, ComplexTypeParsing)
	case *Cast:
		if err := c.checkComplete(n, n.To); err != nil {
			return err
		}
		return c.processChildren(n, ComplexTypeParsing)
	case *StatementBlock, *Noop, *Immediate, *VariableReference, *ThisPointer,
		*BinaryOp, *Compare, *LogicalNot, *Negation, *TernaryOp,
		*Subscript, *DotOperator, *FunctionCall, *Increment, *VectorOp,
		*InitializerList, *ReturnStatement, *IfStatement, *WhileLoop, *Loop,
		*ControlFlow, *Function:
		return c.processChildren(n, ComplexTypeParsing)
	default:
		diag.Unreachable("ComplexTypeParsing: unhandled node %T", n)
	}
	return nil
}

func (c *CompilationContext) checkComplete(n Node, t types.TypeInfo) error {
	switch ct := t.Complex().(type) {
	case nil:
		if t.IsTemplated() {
			return errorf(n, "template parameter %s is unbound", t.TemplateID().Name())
		}
	case *types.TemplatedComplexType:
		return errorf(n, "%s is not a complete type", ct)
	case *types.StructType:
		for _, m := range ct.Members() {
			if err := c.checkComplete(n, m.Type); err != nil {
				return err
			}
		}
	case *types.SpanType:
		return c.checkComplete(n, ct.Element())
	}
	return nil
}
