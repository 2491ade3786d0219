package compiler

import (
	"fmt"
	"io"
	"strings"

	"dspc/pkg/ast"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// DumpAST writes one line per node, indented by depth.
func DumpAST(w io.Writer, root ast.Node) {
	var walk func(n ast.Node, depth int)
	walk = func(n ast.Node, depth int) {
		line := fmt.Sprintf("%s%s", strings.Repeat("  ", depth), n.Kind())
		if t := n.Type(); !t.IsVoid() {
			line += " : " + t.String()
		}
		switch n.(type) {
		case *ast.StatementBlock, *ast.Function, *ast.ClassStatement:
		default:
			line += "  " + firstLine(n.String())
		}
		fmt.Fprintf(w, "%-72s %s\n", line, n.Loc())
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// DumpNamespaces writes the namespace tree below id. Internal namespaces are
// skipped unless all is set.
func DumpNamespaces(w io.Writer, reg *symbols.Registry, id types.ID, all bool) {
	var walk func(ns *symbols.Namespace, depth int)
	walk = func(ns *symbols.Namespace, depth int) {
		indent := strings.Repeat("  ", depth)
		name := ns.ID.String()
		if name == "" {
			name = "::"
		}
		fmt.Fprintf(w, "%s%s [%s]\n", indent, name, ns.Kind)
		for _, a := range ns.Aliases() {
			switch {
			case a.Kind == symbols.Function:
				for _, sig := range a.Functions {
					fmt.Fprintf(w, "%s  %s %s\n", indent, a.Kind, sig)
				}
			case !a.Value.IsVoid():
				fmt.Fprintf(w, "%s  %s %s = %s\n", indent, a.Kind, a.ID.Name(), a.Value)
			default:
				fmt.Fprintf(w, "%s  %s %s %s\n", indent, a.Kind, a.ID.Name(), a.Type)
			}
		}
		for _, h := range ns.Children() {
			child, err := reg.Get(h)
			if err != nil || (child.Internal && !all) {
				continue
			}
			walk(child, depth+1)
		}
	}
	if ns, ok := reg.Lookup(id); ok {
		walk(ns, 0)
	}
}
