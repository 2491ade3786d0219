package ast

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dspc/pkg/backend"
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/templates"
	"dspc/pkg/types"
)

// Options tune a compilation.
type Options struct {
	// SafeMode warns about array accesses that can't be bounds-checked at
	// compile time.
	SafeMode bool
	// Optimize drops functions the unit's top-level functions never reach.
	Optimize bool
}

// CompilationContext carries the state shared by all passes of one
// compilation unit.
type CompilationContext struct {
	Registry  *symbols.Registry
	Types     *types.Registry
	Templates *templates.Engine
	Backend   backend.Service
	Options   Options
	Log       *logrus.Entry
	// Unit is the namespace of the compilation unit.
	Unit     types.ID
	Root     *StatementBlock
	Warnings []diag.Warning

	pass      Pass
	functions map[*symbols.Signature]*Function
	typing    map[*Function]bool
	storage   map[string]*backend.Register
	function  *Function
	this      *backend.Register
	loopDepth int
}

func NewCompilationContext(reg *symbols.Registry, tr *types.Registry, eng *templates.Engine, be backend.Service, opts Options, log *logrus.Entry) *CompilationContext {
	return &CompilationContext{
		Registry:  reg,
		Types:     tr,
		Templates: eng,
		Backend:   be,
		Options:   opts,
		Log:       log,
		functions: make(map[*symbols.Signature]*Function),
		typing:    make(map[*Function]bool),
		storage:   make(map[string]*backend.Register),
	}
}

// Pass is the pass currently running, zero while parsing.
func (c *CompilationContext) Pass() Pass { return c.pass }

// Warn records a non-fatal diagnostic.
func (c *CompilationContext) Warn(loc diag.Location, format string, args ...any) {
	w := diag.Warning{Loc: loc, Msg: fmt.Sprintf(format, args...)}
	c.Warnings = append(c.Warnings, w)
	c.Log.WithField("loc", loc.String()).Warn(w.Msg)
}

// AddFunction makes a parsed function known so calls can find its body.
func (c *CompilationContext) AddFunction(fn *Function) {
	c.functions[fn.Sig] = fn
}

// FunctionFor returns the definition of sig, if it has one.
func (c *CompilationContext) FunctionFor(sig *symbols.Signature) (*Function, bool) {
	fn, ok := c.functions[sig]
	return fn, ok
}

// AddInstantiated appends a node synthesised by template instantiation to
// the root block. When passes are already running the node is brought up to
// the current pass immediately.
func (c *CompilationContext) AddInstantiated(n Node) error {
	if fn, ok := n.(*Function); ok {
		c.AddFunction(fn)
	}
	if cs, ok := n.(*ClassStatement); ok {
		for _, m := range cs.children {
			if fn, ok := m.(*Function); ok {
				c.AddFunction(fn)
			}
		}
	}
	c.Root.add(n)
	if c.pass == 0 {
		return nil
	}
	saved := c.function
	c.function = nil
	defer func() { c.function = saved }()
	return c.process(n, c.pass)
}

func (c *CompilationContext) withFunction(fn *Function, body func() error) error {
	saved := c.function
	c.function = fn
	defer func() { c.function = saved }()
	return body()
}

// errorf builds a located compile error.
func errorf(n Node, format string, args ...any) error {
	return diag.Errorf(n.Loc(), format, args...)
}
