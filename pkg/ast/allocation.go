package ast

import (
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// allocate binds variable references to their aliases, decides where every
// variable lives and lays out struct members.
func (c *CompilationContext) allocate(n Node) error {
	switch n := n.(type) {
	case *ClassStatement:
		if !n.Struct.IsComplete() {
			n.Struct.Complete()
		}
		return c.processChildren(n, DataAllocation)
	case *VariableReference:
		return c.bindVariable(n)
	case *ComplexTypeDefinition:
		n.Storage = c.storageOf(n.IDs[0])
		if n.Storage == StorageMember {
			return errorf(n, "member %s must be declared in its struct", n.IDs[0].Name())
		}
		return c.processChildren(n, DataAllocation)
	case *Function:
		return c.withFunction(n, func() error { return c.processChildren(n, DataAllocation) })
	case *StatementBlock, *Noop, *Immediate, *ThisPointer, *Assignment, *Cast,
		*BinaryOp, *Compare, *LogicalNot, *Negation, *TernaryOp, *Subscript,
		*DotOperator, *FunctionCall, *Increment, *VectorOp, *InitializerList,
		*ReturnStatement, *IfStatement, *WhileLoop, *Loop, *ControlFlow:
		return c.processChildren(n, DataAllocation)
	default:
		diag.Unreachable("DataAllocation: unhandled node %T", n)
	}
	return nil
}

func (c *CompilationContext) bindVariable(n *VariableReference) error {
	a, ok := c.Registry.Symbol(n.ID)
	if !ok {
		return errorf(n, "can't resolve %s", n.ID)
	}
	n.Alias = a
	switch a.Kind {
	case symbols.Constant, symbols.EnumValue, symbols.TemplateConstant:
		n.Storage = StorageConstant
	case symbols.Variable:
		n.Storage = c.storageOf(n.ID)
		if n.Storage != StorageMember {
			break
		}
		ct, ok := c.Types.Lookup(n.ID.Parent())
		st, isStruct := ct.(*types.StructType)
		if !ok || !isStruct {
			return errorf(n, "can't find the struct owning %s", n.ID)
		}
		m, ok := st.Member(n.ID.Name())
		if !ok {
			return errorf(n, "%s has no member %s", st, n.ID.Name())
		}
		n.Member = m
	default:
		return errorf(n, "%s is a %s, not a value", n.ID.Name(), a.Kind)
	}
	return nil
}

// storageOf derives a variable's storage from the kind of namespace it was
// declared in.
func (c *CompilationContext) storageOf(id types.ID) Storage {
	ns, ok := c.Registry.Lookup(id.Parent())
	if !ok {
		return StorageGlobal
	}
	switch ns.Kind {
	case symbols.ClassScope:
		return StorageMember
	case symbols.FunctionScope:
		return StorageParameter
	case symbols.BlockScope:
		return StorageLocal
	}
	return StorageGlobal
}
