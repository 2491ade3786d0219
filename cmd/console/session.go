package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"dspc/pkg/compiler"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

const unitName = "Repl"

// session accumulates declarations typed at the prompt and recompiles the
// whole unit after every complete one. A declaration that fails to compile
// is dropped and the unit keeps its previous state.
type session struct {
	c       *compiler.Compiler
	out     io.Writer
	decls   []string
	pending strings.Builder
	ir      string
}

func newSession(c *compiler.Compiler, out io.Writer) *session {
	return &session{c: c, out: out}
}

// prompt is the prompt for the next line.
func (s *session) prompt() string {
	if s.pending.Len() > 0 {
		return "... "
	}
	return "dsp> "
}

// handle processes one input line and reports whether the console should
// exit.
func (s *session) handle(line string) bool {
	trimmed := strings.TrimSpace(line)
	if s.pending.Len() == 0 && strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed)
	}
	if trimmed == "" {
		return false
	}
	s.pending.WriteString(line)
	s.pending.WriteByte('\n')
	if !complete(s.pending.String()) {
		return false
	}
	decl := s.pending.String()
	s.pending.Reset()
	s.add(decl)
	return false
}

func (s *session) add(decl string) {
	decls := append(append([]string(nil), s.decls...), decl)
	res, err := s.c.Compile(compiler.Unit{Name: unitName, File: "console", Source: strings.Join(decls, "")})
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(s.out, w)
	}
	s.decls, s.ir = decls, res.IR
}

func (s *session) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":q":
		return true
	case ":complete":
		for _, c := range s.completions(arg) {
			fmt.Fprintln(s.out, c)
		}
	case ":symbols":
		compiler.DumpNamespaces(s.out, s.c.Registry, types.NewID(unitName), arg == "all")
	case ":ir":
		fmt.Fprint(s.out, s.ir)
	case ":source":
		fmt.Fprint(s.out, strings.Join(s.decls, ""))
	case ":reset":
		s.c.Reset()
		s.decls, s.ir = nil, ""
		s.pending.Reset()
		fmt.Fprintln(s.out, "reset")
	case ":help":
		fmt.Fprintln(s.out, help)
	default:
		fmt.Fprintf(s.out, "unknown command %s, try :help\n", name)
	}
	return false
}

const help = `declarations typed here are added to the console unit
:complete <prefix>  list visible symbols starting with prefix (Math::s works too)
:symbols [all]      print the console unit's namespaces
:ir                 print the LLVM IR of the unit
:source             print the accumulated source
:reset              forget everything typed so far
:quit               exit`

// candidates are the symbols visible from the console unit, or from the
// root before anything has been declared.
func (s *session) candidates(prefix string) []symbols.Completion {
	scope := types.NewID(unitName)
	if _, ok := s.c.Registry.Lookup(scope); !ok {
		scope = types.ID{}
	}
	return s.c.Registry.Autocomplete(scope, prefix)
}

func (s *session) completions(prefix string) []string {
	var out []string
	for _, c := range s.candidates(prefix) {
		out = append(out, c.String())
	}
	return out
}

// typeDecl matches declarations that end in "};".
var typeDecl = regexp.MustCompile(`^\s*(template\s*<[^>]*>\s*)?(struct|class|enum)\b`)

// complete reports whether src ends a declaration: brackets are balanced and
// the last token closes a statement or block.
func complete(src string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(src); i++ {
		switch ch := src[i]; {
		case inString:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{' || ch == '(':
			depth++
		case ch == '}' || ch == ')':
			depth--
		}
	}
	if depth > 0 || inString {
		return false
	}
	end := strings.TrimSpace(src)
	if typeDecl.MatchString(src) {
		return strings.HasSuffix(end, ";")
	}
	return strings.HasSuffix(end, ";") || strings.HasSuffix(end, "}")
}
