package ast

import (
	"dspc/pkg/backend"
	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// generate drives the backend. Expression nodes leave their result in their
// register; statements emit code only.
func (c *CompilationContext) generate(n Node) error {
	be := c.Backend
	switch n := n.(type) {
	case *StatementBlock:
		if n == c.Root {
			return c.generateRoot(n)
		}
		return c.processChildren(n, CodeGeneration)
	case *Noop:
	case *Immediate:
		n.reg = be.Constant(n.Value)
	case *VariableReference:
		return c.generateVariable(n)
	case *ThisPointer:
		n.reg = c.this
	case *Assignment:
		return c.generateAssignment(n)
	case *Cast:
		op, err := c.gen(n.Operand())
		if err != nil {
			return err
		}
		n.reg, err = be.Cast(op, n.To)
		return diag.At(n.Loc(), err)
	case *BinaryOp:
		if n.Op.IsLogic() {
			return c.generateLogic(n)
		}
		l, r, err := c.gen2(n.Left(), n.Right())
		if err != nil {
			return err
		}
		n.reg, err = be.Binary(n.Op.arith(), l, r)
		return diag.At(n.Loc(), err)
	case *Compare:
		l, r, err := c.gen2(n.Left(), n.Right())
		if err != nil {
			return err
		}
		n.reg, err = be.Compare(n.Op.compare(), l, r)
		return diag.At(n.Loc(), err)
	case *LogicalNot:
		op, err := c.gen(n.Operand())
		if err != nil {
			return err
		}
		n.reg, err = be.Not(op)
		return diag.At(n.Loc(), err)
	case *Negation:
		op, err := c.gen(n.Operand())
		if err != nil {
			return err
		}
		n.reg, err = be.Negate(op)
		return diag.At(n.Loc(), err)
	case *TernaryOp:
		cond, err := c.gen(n.Cond())
		if err != nil {
			return err
		}
		n.reg, err = be.Branch(cond,
			func() (*backend.Register, error) { return c.gen(n.Then()) },
			func() (*backend.Register, error) { return c.gen(n.Else()) })
		return diag.At(n.Loc(), err)
	case *Subscript:
		base, idx, err := c.gen2(n.Base(), n.Index())
		if err != nil {
			return err
		}
		n.reg, err = be.ElementRef(base, idx)
		return diag.At(n.Loc(), err)
	case *DotOperator:
		obj, err := c.gen(n.Object())
		if err != nil {
			return err
		}
		n.reg, err = be.MemberRef(obj, n.Member.Index)
		return diag.At(n.Loc(), err)
	case *FunctionCall:
		return c.generateCall(n)
	case *Increment:
		target, err := c.gen(n.Target())
		if err != nil {
			return err
		}
		op := backend.Add
		if n.Decrement {
			op = backend.Sub
		}
		old := be.Load(target)
		updated, err := be.Binary(op, old, be.Constant(types.IntConstant(1)))
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		if err := be.Store(target, updated); err != nil {
			return diag.At(n.Loc(), err)
		}
		n.reg = old
		if n.Prefix {
			n.reg = updated
		}
	case *VectorOp:
		return c.generateVectorOp(n)
	case *ComplexTypeDefinition:
		return c.generateDefinition(n)
	case *InitializerList:
		diag.Unreachable("initializer list at %s generated outside its definition", n.Loc())
	case *ReturnStatement:
		if n.Value() == nil {
			return diag.At(n.Loc(), be.Return(nil))
		}
		v, err := c.gen(n.Value())
		if err != nil {
			return err
		}
		return diag.At(n.Loc(), be.Return(v))
	case *IfStatement:
		cond, err := c.gen(n.Cond())
		if err != nil {
			return err
		}
		var els func() (*backend.Register, error)
		if n.Else() != nil {
			els = func() (*backend.Register, error) { return nil, c.process(n.Else(), CodeGeneration) }
		}
		_, err = be.Branch(cond, func() (*backend.Register, error) { return nil, c.process(n.Then(), CodeGeneration) }, els)
		return err
	case *WhileLoop:
		return be.While(
			func() (*backend.Register, error) { return c.gen(n.Cond()) },
			func() error { return c.process(n.Body(), CodeGeneration) })
	case *Loop:
		return c.generateLoop(n)
	case *ControlFlow:
		if n.Break {
			return diag.At(n.Loc(), be.Break())
		}
		return diag.At(n.Loc(), be.Continue())
	case *Function:
		return c.generateFunction(n)
	case *ClassStatement:
		return c.processChildren(n, CodeGeneration)
	default:
		diag.Unreachable("CodeGeneration: unhandled node %T", n)
	}
	return nil
}

// gen generates n and returns its register.
func (c *CompilationContext) gen(n Node) (*backend.Register, error) {
	if err := c.process(n, CodeGeneration); err != nil {
		return nil, err
	}
	return n.base().reg, nil
}

func (c *CompilationContext) gen2(a, b Node) (*backend.Register, *backend.Register, error) {
	ra, err := c.gen(a)
	if err != nil {
		return nil, nil, err
	}
	rb, err := c.gen(b)
	return ra, rb, err
}

// generateRoot declares every live function and global before emitting any
// body, so bodies can refer to each other in any order.
func (c *CompilationContext) generateRoot(root *StatementBlock) error {
	var fns []*Function
	var globals []Node
	Walk(root, func(n Node) bool {
		switch n := n.(type) {
		case *Function:
			fns = append(fns, n)
			return false
		case *Assignment:
			if v, ok := n.Target().(*VariableReference); ok && n.FirstDecl && v.Storage == StorageGlobal {
				globals = append(globals, n)
			}
			return false
		case *ComplexTypeDefinition:
			if n.Storage == StorageGlobal {
				globals = append(globals, n)
			}
			return false
		}
		return true
	})

	live := c.liveFunctions(fns)
	for _, fn := range fns {
		if !live[fn] {
			c.Log.WithField("function", fn.Sig.String()).Debug("dropping unreachable function")
			continue
		}
		if err := c.Backend.DeclareFunction(c.functionSpec(fn)); err != nil {
			return diag.At(fn.Loc(), err)
		}
	}
	for _, g := range globals {
		if err := c.defineGlobal(g); err != nil {
			return err
		}
	}
	for _, fn := range fns {
		if !live[fn] {
			continue
		}
		if err := c.process(fn, CodeGeneration); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompilationContext) defineGlobal(n Node) error {
	switch n := n.(type) {
	case *Assignment:
		v := n.Target().(*VariableReference)
		r, err := c.Backend.DefineGlobal(v.ID.String(), v.Type(), n.Init)
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		c.storage[v.ID.String()] = r
	case *ComplexTypeDefinition:
		for _, id := range n.IDs {
			r, err := c.Backend.DefineGlobal(id.String(), n.Declared, n.Init)
			if err != nil {
				return diag.At(n.Loc(), err)
			}
			c.storage[id.String()] = r
		}
	}
	return nil
}

func (c *CompilationContext) functionSpec(fn *Function) backend.FunctionSpec {
	spec := backend.FunctionSpec{Symbol: fn.Sig.Symbol(), Return: fn.Sig.Return}
	if fn.Sig.Method {
		spec.Params = append(spec.Params, backend.Param{Name: "this", Type: types.Complex(fn.Class).WithRef(true)})
	}
	for _, p := range fn.Sig.Params {
		spec.Params = append(spec.Params, backend.Param{Name: p.Name, Type: p.Type})
	}
	return spec
}

func (c *CompilationContext) generateFunction(fn *Function) error {
	return c.withFunction(fn, func() error {
		regs, err := c.Backend.BeginFunction(fn.Sig.Symbol())
		if err != nil {
			return diag.At(fn.Loc(), err)
		}
		saved := c.this
		defer func() { c.this = saved }()
		c.this = nil
		if fn.Sig.Method {
			c.this, regs = regs[0], regs[1:]
		}
		for i, id := range fn.ParamIDs {
			c.storage[id.String()] = regs[i]
		}
		if err := c.process(fn.Body(), CodeGeneration); err != nil {
			return err
		}
		return diag.At(fn.Loc(), c.Backend.EndFunction())
	})
}

func (c *CompilationContext) generateVariable(n *VariableReference) error {
	be := c.Backend
	switch n.Storage {
	case StorageConstant:
		n.reg = be.Constant(n.Alias.Value)
	case StorageMember:
		r, err := be.MemberRef(c.this, n.Member.Index)
		if err != nil {
			return diag.At(n.Loc(), err)
		}
		n.reg = r
	default:
		key := n.ID.String()
		r, ok := c.storage[key]
		if !ok {
			if n.Storage != StorageLocal {
				return errorf(n, "%s has no storage", n.ID.Name())
			}
			r = be.Alloca(n.Type(), n.ID.Name())
			c.storage[key] = r
		}
		n.reg = r
	}
	return nil
}

func (c *CompilationContext) generateAssignment(n *Assignment) error {
	be := c.Backend
	if v, ok := n.Target().(*VariableReference); ok && n.FirstDecl {
		if v.Storage == StorageGlobal {
			return nil
		}
		if v.Type().IsRef() {
			r, err := c.gen(n.Value())
			if err != nil {
				return err
			}
			if !r.Memory {
				return errorf(n, "can't bind reference %s to a temporary", v)
			}
			c.storage[v.ID.String()] = r
			return nil
		}
	}
	val, err := c.gen(n.Value())
	if err != nil {
		return err
	}
	target, err := c.gen(n.Target())
	if err != nil {
		return err
	}
	if n.Op != OpAssign {
		if val, err = be.Binary(n.Op.arith(), be.Load(target), val); err != nil {
			return diag.At(n.Loc(), err)
		}
	}
	return diag.At(n.Loc(), be.Store(target, val))
}

func (c *CompilationContext) generateLogic(n *BinaryOp) error {
	be := c.Backend
	l, err := c.gen(n.Left())
	if err != nil {
		return err
	}
	right := func() (*backend.Register, error) { return c.gen(n.Right()) }
	short := func() (*backend.Register, error) {
		return be.Constant(types.BoolConstant(n.Op == OpOr)), nil
	}
	if n.Op == OpAnd {
		n.reg, err = be.Branch(l, right, short)
	} else {
		n.reg, err = be.Branch(l, short, right)
	}
	return diag.At(n.Loc(), err)
}

func (c *CompilationContext) generateCall(n *FunctionCall) error {
	be := c.Backend
	sig := n.Sig
	var this *backend.Register
	if n.HasObject {
		var err error
		if this, err = c.gen(n.Object()); err != nil {
			return err
		}
	}
	args := make([]*backend.Register, len(sig.Params))
	for i, a := range n.Args() {
		r, err := c.gen(a)
		if err != nil {
			return err
		}
		p := sig.Params[i].Type
		if pa, ok := p.Array(); ok && pa.Length() < 0 && !p.IsRef() {
			if aa, _ := a.Type().Array(); aa != nil && aa.Length() >= 0 {
				view := be.Alloca(p.Plain(), "view")
				if err := be.MakeView(view, r); err != nil {
					return diag.At(a.Loc(), err)
				}
				r = view
			}
		}
		args[i] = r
	}
	var err error
	if sig.Inliner != nil {
		n.reg, err = sig.Inliner(be, this, args)
		return diag.At(n.Loc(), err)
	}
	if this != nil {
		args = append([]*backend.Register{this}, args...)
	}
	n.reg, err = be.Call(sig.Symbol(), args)
	return diag.At(n.Loc(), err)
}

func (c *CompilationContext) generateDefinition(n *ComplexTypeDefinition) error {
	if n.Storage == StorageGlobal {
		return nil
	}
	be := c.Backend
	for _, id := range n.IDs {
		slot := be.Alloca(n.Declared, id.Name())
		c.storage[id.String()] = slot
		switch init := n.Initializer().(type) {
		case nil:
			if err := be.Zero(slot); err != nil {
				return diag.At(n.Loc(), err)
			}
		case *InitializerList:
			if err := be.Zero(slot); err != nil {
				return diag.At(n.Loc(), err)
			}
			if err := c.storeList(slot, init); err != nil {
				return err
			}
		default:
			src, err := c.gen(init)
			if err != nil {
				return err
			}
			if err := be.MakeView(slot, src); err != nil {
				return diag.At(n.Loc(), err)
			}
		}
	}
	return nil
}

// storeList writes the entries of a (possibly nested) initializer list into
// dst.
func (c *CompilationContext) storeList(dst *backend.Register, list *InitializerList) error {
	be := c.Backend
	for i, e := range list.children {
		ref := dst
		var err error
		switch dst.Type.Complex().(type) {
		case *types.SpanType:
			ref, err = be.ElementRef(dst, be.Constant(types.IntConstant(int64(i))))
		case *types.StructType:
			ref, err = be.MemberRef(dst, i)
		}
		if err != nil {
			return diag.At(e.Loc(), err)
		}
		if sub, ok := e.(*InitializerList); ok {
			if err := c.storeList(ref, sub); err != nil {
				return err
			}
			continue
		}
		v, err := c.gen(e)
		if err != nil {
			return err
		}
		if err := be.Store(ref, v); err != nil {
			return diag.At(e.Loc(), err)
		}
	}
	list.done = CodeGeneration
	return nil
}

func (c *CompilationContext) generateLoop(n *Loop) error {
	be := c.Backend
	target, err := c.gen(n.Target())
	if err != nil {
		return err
	}
	target = be.Materialize(target)
	count, err := be.Length(target)
	if err != nil {
		return diag.At(n.Loc(), err)
	}
	key := n.Iterator.String()
	var slot *backend.Register
	if !n.Ref {
		a, ok := c.Registry.Symbol(n.Iterator)
		if !ok {
			return errorf(n, "can't resolve %s", n.Iterator)
		}
		slot = be.Alloca(a.Type, n.Iterator.Name())
		c.storage[key] = slot
	}
	err = be.Loop(count, func(idx *backend.Register) error {
		ref, err := be.ElementRef(target, idx)
		if err != nil {
			return err
		}
		if n.Ref {
			c.storage[key] = ref
		} else {
			v := be.Load(ref)
			if !v.Type.Equals(slot.Type) {
				if v, err = be.Cast(v, slot.Type); err != nil {
					return err
				}
			}
			if err := be.Store(slot, v); err != nil {
				return err
			}
		}
		return c.process(n.Body(), CodeGeneration)
	})
	return diag.At(n.Loc(), err)
}
