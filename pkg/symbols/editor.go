package symbols

import (
	"fmt"
	"sort"
	"strings"

	"dspc/pkg/diag"
	"dspc/pkg/types"
)

// Completion is one autocomplete candidate.
type Completion struct {
	Name      string
	ID        types.ID
	Kind      SymbolKind
	Namespace bool
	Type      string
	Comment   string
}

func (c Completion) String() string {
	if c.Namespace {
		return c.Name + " (namespace)"
	}
	return fmt.Sprintf("%s (%s %s)", c.Name, c.Kind, c.Type)
}

// Autocomplete lists the symbols visible from scope whose name starts with
// prefix. A qualified prefix ("Math::s") lists members of the resolved
// qualifier instead. Inner declarations shadow outer ones.
func (r *Registry) Autocomplete(scope types.ID, prefix string) []Completion {
	seen := make(map[string]bool)
	var out []Completion
	collect := func(ns *Namespace, stem string) {
		for _, a := range ns.Aliases() {
			name := a.ID.Name()
			if seen[name] || !strings.HasPrefix(name, stem) {
				continue
			}
			seen[name] = true
			out = append(out, Completion{Name: name, ID: a.ID, Kind: a.Kind, Type: a.Type.String(), Comment: a.Debug.Comment})
		}
		for _, h := range ns.Children() {
			child, err := r.Get(h)
			if err != nil || child.Internal || child.Kind != PlainScope {
				continue
			}
			name := child.ID.Name()
			if seen[name] || !strings.HasPrefix(name, stem) {
				continue
			}
			seen[name] = true
			out = append(out, Completion{Name: name, ID: child.ID, Namespace: true})
		}
	}

	if i := strings.LastIndex(prefix, types.Separator); i >= 0 {
		qualifier, stem := types.ParseID(prefix[:i]), prefix[i+len(types.Separator):]
		resolved, err := r.ResolveFrom(scope, qualifier, true)
		if err != nil || !resolved.IsValid() {
			return nil
		}
		if ns, ok := r.Lookup(r.substitute(resolved)); ok {
			collect(ns, stem)
		}
	} else {
		for s := scope; ; s = s.Parent() {
			if ns, ok := r.Lookup(s); ok {
				collect(ns, prefix)
				for _, h := range ns.Usings() {
					if used, err := r.Get(h); err == nil {
						collect(used, prefix)
					}
				}
			}
			if s.IsRoot() {
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NamespaceLines returns the source extent of a namespace.
func (r *Registry) NamespaceLines(id types.ID) (LineRange, bool) {
	ns, ok := r.Lookup(id)
	if !ok || ns.Lines.Start == 0 {
		return LineRange{}, false
	}
	return ns.Lines, true
}

// DefinitionLine returns where id was declared.
func (r *Registry) DefinitionLine(id types.ID) (diag.Location, bool) {
	if a, ok := r.Symbol(id); ok && a.Debug.Loc.IsValid() {
		return a.Debug.Loc, true
	}
	if lines, ok := r.NamespaceLines(id); ok {
		return diag.Location{File: lines.File, Line: lines.Start}, true
	}
	return diag.Location{}, false
}

// NamespaceAt returns the innermost namespace whose source extent covers
// file:line, the scope an editor cursor sits in.
func (r *Registry) NamespaceAt(file string, line int) types.ID {
	var best *Namespace
	for _, ns := range r.slots {
		if ns == nil || ns.Lines.File != file || line < ns.Lines.Start || line > ns.Lines.End {
			continue
		}
		if best == nil || ns.ID.Depth() > best.ID.Depth() {
			best = ns
		}
	}
	if best == nil {
		return types.ID{}
	}
	return best.ID
}

// String dumps every live namespace and its aliases in id order.
func (r *Registry) String() string {
	var live []*Namespace
	for _, ns := range r.slots {
		if ns != nil && !ns.Internal {
			live = append(live, ns)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID.String() < live[j].ID.String() })

	var sb strings.Builder
	for _, ns := range live {
		name := ns.ID.String()
		if name == "" {
			name = "<root>"
		}
		fmt.Fprintf(&sb, "%s (%s)", name, ns.Kind)
		if ns.Lines.Start > 0 {
			fmt.Fprintf(&sb, " lines %d-%d", ns.Lines.Start, ns.Lines.End)
		}
		sb.WriteString(":\n")
		for _, h := range ns.Usings() {
			if used, err := r.Get(h); err == nil {
				fmt.Fprintf(&sb, "  using %s\n", used.ID)
			}
		}
		for _, a := range ns.Aliases() {
			switch {
			case a.Kind == Function:
				for _, sig := range a.Functions {
					fmt.Fprintf(&sb, "  %-20s  %s %s\n", a.ID.Name(), a.Kind, sig)
				}
			case a.Kind == Constant || a.Kind == EnumValue || a.Kind == TemplateConstant && a.Pack == nil:
				fmt.Fprintf(&sb, "  %-20s  %s %s = %s\n", a.ID.Name(), a.Visibility, a.Kind, a.Value)
			default:
				fmt.Fprintf(&sb, "  %-20s  %s %s %s\n", a.ID.Name(), a.Visibility, a.Kind, a.Type)
			}
		}
	}
	return sb.String()
}
