package ast

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Pass is one of the compilation passes, in execution order.
type Pass uint8

const (
	ComplexTypeParsing Pass = iota + 1
	DataAllocation
	DataInitialisation
	ResolvingSymbols
	TypeCheck
	CodeGeneration
)

var passNames = [...]string{
	ComplexTypeParsing: "ComplexTypeParsing",
	DataAllocation:     "DataAllocation",
	DataInitialisation: "DataInitialisation",
	ResolvingSymbols:   "ResolvingSymbols",
	TypeCheck:          "TypeCheck",
	CodeGeneration:     "CodeGeneration",
}

func (p Pass) String() string {
	if int(p) < len(passNames) && passNames[p] != "" {
		return passNames[p]
	}
	return "Parsing"
}

// Run drives the root block through every pass up to and including last.
// Code generation needs a backend.
func Run(ctx *CompilationContext, last Pass) error {
	for p := ComplexTypeParsing; p <= last; p++ {
		if p == CodeGeneration && ctx.Backend == nil {
			break
		}
		ctx.pass = p
		start := time.Now()
		if err := ctx.process(ctx.Root, p); err != nil {
			return err
		}
		ctx.Log.WithFields(logrus.Fields{
			"pass":    p.String(),
			"elapsed": time.Since(start),
		}).Debug("pass complete")
	}
	return nil
}

// process brings n up to pass p, running any earlier pass it missed first.
// Nodes that already ran p are skipped, so a node is never visited twice by
// the same pass.
func (c *CompilationContext) process(n Node, p Pass) error {
	b := n.base()
	for b.done < p {
		q := b.done + 1
		var err error
		switch q {
		case ComplexTypeParsing:
			err = c.complexTypes(n)
		case DataAllocation:
			err = c.allocate(n)
		case DataInitialisation:
			err = c.initialise(n)
		case ResolvingSymbols:
			err = c.resolve(n)
		case TypeCheck:
			err = c.typeCheck(n)
		case CodeGeneration:
			err = c.generate(n)
		}
		if err != nil {
			return err
		}
		b.done = q
	}
	return nil
}

// processChildren runs pass p over n's children in order. Children are
// addressed by index so a child replaced while it is processed is not
// visited again.
func (c *CompilationContext) processChildren(n Node, p Pass) error {
	b := n.base()
	for i := 0; i < len(b.children); i++ {
		if err := c.process(b.children[i], p); err != nil {
			return err
		}
	}
	return nil
}

// replace swaps old for repl and brings repl up to pass p.
func (c *CompilationContext) replace(old, repl Node, p Pass) error {
	Replace(old, repl)
	return c.process(repl, p)
}
