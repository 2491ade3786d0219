package ast

import (
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
)

// resolve checks visibility and const-correctness and collects the overload
// candidates of free function calls.
func (c *CompilationContext) resolve(n Node) error {
	switch n := n.(type) {
	case *VariableReference:
		if err := c.Registry.CheckVisibilityFrom(n.Scope, n.ID); err != nil {
			return diag.At(n.Loc(), err)
		}
		if n.Storage == StorageMember && (c.function == nil || c.function.Class == nil) {
			return errorf(n, "member %s used outside a method", n.ID.Name())
		}
		return nil
	case *ThisPointer:
		if c.function == nil || c.function.Class == nil {
			return errorf(n, "this used outside a method")
		}
		return nil
	case *Assignment:
		if err := c.processChildren(n, ResolvingSymbols); err != nil {
			return err
		}
		if n.FirstDecl {
			return nil
		}
		return c.checkAssignable(n.Target())
	case *Increment:
		if err := c.processChildren(n, ResolvingSymbols); err != nil {
			return err
		}
		return c.checkAssignable(n.Target())
	case *FunctionCall:
		if err := c.processChildren(n, ResolvingSymbols); err != nil {
			return err
		}
		if n.HasObject {
			return nil
		}
		a, ok := c.Registry.Symbol(n.ID)
		if !ok {
			return errorf(n, "can't resolve %s", n.ID)
		}
		switch a.Kind {
		case symbols.Function:
			n.candidates = a.Functions
		case symbols.TemplatedFunction:
			n.template = true
		default:
			return errorf(n, "%s is a %s, not a function", n.ID.Name(), a.Kind)
		}
		if err := c.Registry.CheckVisibilityFrom(n.Scope, n.ID); err != nil {
			return diag.At(n.Loc(), err)
		}
		return nil
	case *ReturnStatement:
		if c.function == nil {
			return errorf(n, "return outside a function")
		}
		return c.processChildren(n, ResolvingSymbols)
	case *ControlFlow:
		if c.loopDepth == 0 {
			return errorf(n, "%s outside a loop", n)
		}
		return nil
	case *WhileLoop, *Loop:
		c.loopDepth++
		defer func() { c.loopDepth-- }()
		return c.processChildren(n, ResolvingSymbols)
	case *Function:
		return c.withFunction(n, func() error {
			saved := c.loopDepth
			c.loopDepth = 0
			defer func() { c.loopDepth = saved }()
			return c.processChildren(n, ResolvingSymbols)
		})
	case *StatementBlock, *Noop, *Immediate, *Cast, *BinaryOp, *Compare,
		*LogicalNot, *Negation, *TernaryOp, *Subscript, *DotOperator,
		*VectorOp, *ComplexTypeDefinition, *InitializerList, *IfStatement,
		*ClassStatement:
		return c.processChildren(n, ResolvingSymbols)
	default:
		diag.Unreachable("ResolvingSymbols: unhandled node %T", n)
	}
	return nil
}

// checkAssignable rejects writes to constants, through const variables and
// to members from const methods.
func (c *CompilationContext) checkAssignable(target Node) error {
	switch t := target.(type) {
	case *VariableReference:
		if t.Storage == StorageConstant || (t.Alias != nil && t.Alias.Type.IsConst()) {
			return errorf(t, "can't assign to const %s", t.ID.Name())
		}
		if t.Storage == StorageMember && c.function != nil && c.function.Sig.Const {
			return errorf(t, "can't modify member %s in const method %s", t.ID.Name(), c.function.Sig.ID.Name())
		}
		return nil
	case *ThisPointer:
		if c.function != nil && c.function.Sig.Const {
			return errorf(t, "can't modify this in const method %s", c.function.Sig.ID.Name())
		}
		return nil
	case *Subscript:
		return c.checkAssignable(t.Base())
	case *DotOperator:
		if err := c.checkAssignable(t.Object()); err != nil {
			return errorf(t, "can't assign to %s: %s", t, diag.Message(err))
		}
		return nil
	case *FunctionCall:
		// operator[] and friends returning a reference
		return nil
	}
	return errorf(target, "%s is not assignable", target)
}
