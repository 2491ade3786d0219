// Package compiler is the entry point hosts use: it owns one symbol registry,
// type registry and template engine, installs the inbuilts and compiles
// units into LLVM IR modules.
package compiler

import (
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dspc/pkg/ast"
	"dspc/pkg/backend/llvmgen"
	"dspc/pkg/diag"
	"dspc/pkg/library"
	"dspc/pkg/parser"
	"dspc/pkg/symbols"
	"dspc/pkg/templates"
	"dspc/pkg/types"
)

// Unit is one compilation unit. Name becomes the unit's namespace.
type Unit struct {
	Name   string
	File   string
	Source string
}

type Result struct {
	Unit     string
	IR       string
	Warnings []diag.Warning
	Root     *ast.StatementBlock
	Elapsed  time.Duration
}

var unitName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiler is not safe for concurrent use. Hosts that compile in the
// background wrap it in a Worker.
type Compiler struct {
	Registry  *symbols.Registry
	Types     *types.Registry
	Templates *templates.Engine

	opts  Options
	lib   *library.Store
	log   *logrus.Logger
	units map[string]bool

	// state right after the inbuilts were installed
	base checkpoint
}

// New creates a compiler. lib may be nil when units never include anything;
// log may be nil to discard logging.
func New(opts Options, lib *library.Store, log *logrus.Logger) (*Compiler, error) {
	if lib == nil {
		lib = library.NewStore()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	} else {
		log.SetLevel(opts.LogLevel)
	}
	for _, dir := range opts.SearchPaths {
		if err := lib.AddSearchPath(dir); err != nil {
			return nil, errors.Wrapf(err, "search path %q", dir)
		}
	}

	c := &Compiler{
		Registry: symbols.NewRegistry(),
		Types:    types.NewRegistry(),
		opts:     opts,
		lib:      lib,
		log:      log,
		units:    make(map[string]bool),
	}
	c.Templates = templates.NewEngine(c.Registry, c.Types, log.WithField("component", "templates"))
	if err := c.installInbuilts(); err != nil {
		return nil, err
	}
	c.base = c.checkpoint()
	return c, nil
}

func (c *Compiler) Options() Options        { return c.opts }
func (c *Compiler) Library() *library.Store { return c.lib }

// Units lists the compiled units in name order.
func (c *Compiler) Units() []string {
	out := make([]string, 0, len(c.units))
	for name := range c.units {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type checkpoint struct {
	reg   symbols.Snapshot
	types types.Snapshot
	eng   templates.Snapshot
}

func (c *Compiler) checkpoint() checkpoint {
	return checkpoint{c.Registry.Checkpoint(), c.Types.Checkpoint(), c.Templates.Checkpoint()}
}

func (c *Compiler) rollback(cp checkpoint) {
	c.Registry.Rollback(cp.reg)
	c.Types.Rollback(cp.types)
	c.Templates.Rollback(cp.eng)
}

// validate checks u's name doesn't clash with an inbuilt namespace and
// fills in a default file name.
func (c *Compiler) validate(u *Unit) error {
	if !unitName.MatchString(u.Name) {
		return errors.Errorf("invalid unit name %q", u.Name)
	}
	if _, ok := c.Registry.Lookup(types.NewID(u.Name)); ok && !c.units[u.Name] {
		return errors.Errorf("unit name %s is already taken", u.Name)
	}
	if u.File == "" {
		u.File = u.Name + ".dsp"
	}
	return nil
}

// forget drops everything a previous compilation of unit left behind.
func (c *Compiler) forget(unit types.ID) error {
	if !c.units[unit.String()] {
		return nil
	}
	if err := c.Registry.RemoveNamespace(unit); err != nil {
		return err
	}
	c.Types.RemoveWithin(unit)
	c.Templates.RemoveWithin(unit)
	return nil
}

// Compile parses, checks and lowers u. Compiling a unit again replaces its
// previous version. On failure every registry is restored to where it was
// before the call, so the previous version of u (if any) stays usable.
func (c *Compiler) Compile(u Unit) (*Result, error) {
	if err := c.validate(&u); err != nil {
		return nil, err
	}
	start := time.Now()
	log := c.log.WithField("unit", u.Name)
	unit := types.NewID(u.Name)

	cp := c.checkpoint()
	fail := func(err error) (*Result, error) {
		c.rollback(cp)
		log.WithError(err).Info("compilation failed, registry rolled back")
		return nil, errors.Wrapf(err, "compiling %s", u.Name)
	}

	if err := c.forget(unit); err != nil {
		return fail(err)
	}
	gen := llvmgen.New(u.File, llvmgen.Options{VectorBits: c.opts.VectorBits})
	ctx := ast.NewCompilationContext(c.Registry, c.Types, c.Templates, gen,
		ast.Options{SafeMode: c.opts.SafeMode, Optimize: c.opts.Optimize}, log)
	if _, err := parser.Parse(ctx, unit, u.File, u.Source, c.lib); err != nil {
		return fail(err)
	}
	if err := ast.Run(ctx, ast.CodeGeneration); err != nil {
		return fail(err)
	}

	c.units[u.Name] = true
	res := &Result{
		Unit:     u.Name,
		IR:       gen.String(),
		Warnings: ctx.Warnings,
		Root:     ctx.Root,
		Elapsed:  time.Since(start),
	}
	log.WithFields(logrus.Fields{
		"elapsed":  res.Elapsed,
		"warnings": len(res.Warnings),
	}).Debug("unit compiled")
	return res, nil
}

// Check runs every pass except code generation. Nothing it declares is kept.
func (c *Compiler) Check(u Unit) ([]diag.Warning, error) {
	if err := c.validate(&u); err != nil {
		return nil, err
	}
	cp := c.checkpoint()
	defer c.rollback(cp)

	unit := types.NewID(u.Name)
	if err := c.forget(unit); err != nil {
		return nil, err
	}
	ctx := ast.NewCompilationContext(c.Registry, c.Types, c.Templates, nil,
		ast.Options{SafeMode: c.opts.SafeMode, Optimize: c.opts.Optimize}, c.log.WithField("unit", u.Name))
	if _, err := parser.Parse(ctx, unit, u.File, u.Source, c.lib); err != nil {
		return nil, errors.Wrapf(err, "checking %s", u.Name)
	}
	if err := ast.Run(ctx, ast.TypeCheck); err != nil {
		return nil, errors.Wrapf(err, "checking %s", u.Name)
	}
	return ctx.Warnings, nil
}

// Remove drops a compiled unit and everything it declared.
func (c *Compiler) Remove(name string) error {
	if !c.units[name] {
		return errors.Errorf("unit %s is not compiled", name)
	}
	if err := c.forget(types.NewID(name)); err != nil {
		return err
	}
	delete(c.units, name)
	return nil
}

// Reset forgets every unit, keeping the inbuilts.
func (c *Compiler) Reset() {
	c.rollback(c.base)
	c.units = make(map[string]bool)
	c.log.Debug("compiler reset")
}
