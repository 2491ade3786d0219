package ast

// liveFunctions returns the functions that need code. Without optimisation
// that is all of them; otherwise only what the unit's own top-level functions
// reach through calls.
func (c *CompilationContext) liveFunctions(fns []*Function) map[*Function]bool {
	live := make(map[*Function]bool, len(fns))
	if !c.Options.Optimize {
		for _, fn := range fns {
			live[fn] = true
		}
		return live
	}

	var worklist []*Function
	mark := func(fn *Function) {
		if !live[fn] {
			live[fn] = true
			worklist = append(worklist, fn)
		}
	}

	// Roots: plain functions the unit declares itself. Methods and template
	// instances only matter when something calls them.
	for _, fn := range fns {
		if fn.Class == nil && fn.Sig.Template == nil && fn.Sig.ID.Parent() == c.Unit {
			mark(fn)
		}
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]
		Walk(curr.Body(), func(n Node) bool {
			if call, ok := n.(*FunctionCall); ok && call.Sig != nil {
				// inbuilts have no definition
				if callee, ok := c.functions[call.Sig]; ok {
					mark(callee)
				}
			}
			return true
		})
	}

	c.Log.WithField("live", len(live)).WithField("total", len(fns)).Debug("dead function elimination")
	return live
}
