package ast

import (
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// initialise folds member defaults into their struct and global
// initializers into constants, and checks initializer list shapes.
func (c *CompilationContext) initialise(n Node) error {
	switch n := n.(type) {
	case *ClassStatement:
		for i := 0; i < len(n.children); i++ {
			a, ok := n.children[i].(*Assignment)
			if !ok || !a.FirstDecl {
				continue
			}
			target, ok := a.Target().(*VariableReference)
			if !ok || target.Storage != StorageMember {
				continue
			}
			v, ok := EvalConstant(c.Registry, a.Value())
			if !ok {
				return errorf(a, "default value of member %s must be a constant", target.ID.Name())
			}
			if err := n.Struct.SetDefault(target.ID.Name(), v); err != nil {
				return diag.At(a.Loc(), err)
			}
			if err := c.replace(a, NewNoop(a.Loc()), DataInitialisation); err != nil {
				return err
			}
		}
		return c.processChildren(n, DataInitialisation)
	case *Assignment:
		if err := c.processChildren(n, DataInitialisation); err != nil {
			return err
		}
		target, ok := n.Target().(*VariableReference)
		if !n.FirstDecl || !ok || target.Storage != StorageGlobal {
			return nil
		}
		v, ok := EvalConstant(c.Registry, n.Value())
		if !ok {
			return errorf(n, "global %s must be initialised with a constant", target.ID.Name())
		}
		n.Init = []types.Constant{v}
		return nil
	case *ComplexTypeDefinition:
		if err := c.processChildren(n, DataInitialisation); err != nil {
			return err
		}
		list, isList := n.Initializer().(*InitializerList)
		if isList {
			if err := checkListShape(list, n.Declared); err != nil {
				return err
			}
		}
		if n.Storage != StorageGlobal || n.Initializer() == nil {
			return nil
		}
		if !isList {
			return errorf(n, "global %s can only be initialised with a constant list", n.IDs[0].Name())
		}
		for _, e := range list.children {
			v, ok := EvalConstant(c.Registry, e)
			if !ok {
				return errorf(e, "global %s must be initialised with constants", n.IDs[0].Name())
			}
			n.Init = append(n.Init, v)
		}
		return nil
	case *Function:
		return c.withFunction(n, func() error { return c.processChildren(n, DataInitialisation) })
	case *StatementBlock, *Noop, *Immediate, *VariableReference, *ThisPointer,
		*Cast, *BinaryOp, *Compare, *LogicalNot, *Negation, *TernaryOp,
		*Subscript, *DotOperator, *FunctionCall, *Increment, *VectorOp,
		*InitializerList, *ReturnStatement, *IfStatement, *WhileLoop, *Loop,
		*ControlFlow:
		return c.processChildren(n, DataInitialisation)
	default:
		diag.Unreachable("DataInitialisation: unhandled node %T", n)
	}
	return nil
}

// checkListShape validates the element count of a (possibly nested)
// initializer list against t.
func checkListShape(list *InitializerList, t types.TypeInfo) error {
	switch ct := t.Complex().(type) {
	case *types.SpanType:
		if len(list.children) > ct.Length() {
			return errorf(list, "too many initializers for %s: %d", ct, len(list.children))
		}
		for _, e := range list.children {
			if sub, ok := e.(*InitializerList); ok {
				if err := checkListShape(sub, ct.Element()); err != nil {
					return err
				}
			}
		}
	case *types.StructType:
		members := ct.Members()
		if len(list.children) > len(members) {
			return errorf(list, "too many initializers for %s: %d", ct, len(list.children))
		}
		for i, e := range list.children {
			if sub, ok := e.(*InitializerList); ok {
				if err := checkListShape(sub, members[i].Type); err != nil {
					return err
				}
			}
		}
	case nil:
		if len(list.children) > 1 {
			return errorf(list, "too many initializers for %s", t)
		}
	default:
		return errorf(list, "%s can't be initialised from a list", t)
	}
	return nil
}
