package parser

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"dspc/pkg/diag"
)

// Sources is where includes are looked up. *library.Store implements it.
type Sources interface {
	Resolve(name, fromDir string) (string, error)
	Read(name string) (string, error)
}

// Macro represents a defined macro, either simple or function-like.
type Macro struct {
	Args []string // empty for simple macros
	Body string
}

// LineMap maps lines of preprocessed text back to the file and line they
// came from.
type LineMap struct {
	lines []diag.Location
}

// Locate maps a 1-based line and column of preprocessed text to its origin.
func (m *LineMap) Locate(line, col int) diag.Location {
	if m == nil || line < 1 || line > len(m.lines) {
		return diag.Location{Line: line, Col: col}
	}
	loc := m.lines[line-1]
	loc.Col = col
	return loc
}

func (m *LineMap) add(file string, line int) {
	m.lines = append(m.lines, diag.Location{File: file, Line: line})
}

// Preprocessor expands #include and #define directives. Definitions persist
// across the files of one unit.
type Preprocessor struct {
	sources Sources
	defines map[string]Macro
	done    map[string]bool
	out     strings.Builder
	lines   *LineMap
}

// Preprocess expands src, which was read from file. Includes resolve
// relative to file's directory first, then the search paths of sources.
// sources may be nil when the unit includes nothing.
func Preprocess(src, file string, sources Sources) (string, *LineMap, error) {
	p := &Preprocessor{
		sources: sources,
		defines: make(map[string]Macro),
		done:    make(map[string]bool),
		lines:   &LineMap{},
	}
	if err := p.file(src, file, map[string]bool{file: true}); err != nil {
		return "", nil, err
	}
	return p.out.String(), p.lines, nil
}

func (p *Preprocessor) emit(text, file string, line int) {
	p.out.WriteString(text)
	p.out.WriteByte('\n')
	p.lines.add(file, line)
}

func (p *Preprocessor) file(src, file string, stack map[string]bool) error {
	for i, line := range strings.Split(src, "\n") {
		lineNo := i + 1
		loc := diag.Location{File: file, Line: lineNo}
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#define"):
			if err := p.define(strings.TrimSpace(strings.TrimPrefix(trimmed, "#define")), loc); err != nil {
				return err
			}
			// keep line numbering intact
			p.emit("", file, lineNo)

		case strings.HasPrefix(trimmed, "#include"):
			if err := p.include(trimmed, file, loc, stack); err != nil {
				return err
			}

		case strings.HasPrefix(trimmed, "#"):
			return diag.Errorf(loc, "unknown preprocessor directive %s", strings.Fields(trimmed)[0])

		default:
			expanded, err := applyDefines(line, p.defines, nil)
			if err != nil {
				return diag.At(loc, err)
			}
			p.emit(expanded, file, lineNo)
		}
	}
	return nil
}

// define parses "NAME VALUE" or "NAME(ARGS) VALUE".
func (p *Preprocessor) define(rest string, loc diag.Location) error {
	if rest == "" {
		return diag.Errorf(loc, "#define needs a name")
	}
	nameEnd := 0
	for nameEnd < len(rest) && isIdentPart(rune(rest[nameEnd])) {
		nameEnd++
	}
	name := rest[:nameEnd]
	if name == "" || !isIdentStart(rune(name[0])) {
		return diag.Errorf(loc, "invalid macro name in #define %s", rest)
	}
	rest = rest[nameEnd:]

	var args []string
	// a function-like macro has '(' immediately after its name
	if len(rest) > 0 && rest[0] == '(' {
		closeParen := strings.Index(rest, ")")
		if closeParen == -1 {
			return diag.Errorf(loc, "unterminated macro parameter list")
		}
		if argStr := rest[1:closeParen]; strings.TrimSpace(argStr) != "" {
			for _, arg := range strings.Split(argStr, ",") {
				args = append(args, strings.TrimSpace(arg))
			}
		}
		rest = rest[closeParen+1:]
	}

	value := strings.TrimSpace(rest)
	if len(args) == 0 {
		var err error
		if value, err = applyDefines(value, p.defines, nil); err != nil {
			return diag.At(loc, err)
		}
	}
	p.defines[name] = Macro{Args: args, Body: value}
	return nil
}

func (p *Preprocessor) include(directive, file string, loc diag.Location, stack map[string]bool) error {
	parts := strings.SplitN(directive, "\"", 3)
	if len(parts) < 3 {
		return diag.Errorf(loc, "invalid include directive: %s", directive)
	}
	if p.sources == nil {
		return diag.Errorf(loc, "can't include %q: no library configured", parts[1])
	}
	name, err := p.sources.Resolve(parts[1], path.Dir(file))
	if err != nil {
		return diag.At(loc, err)
	}
	if stack[name] {
		return diag.Errorf(loc, "circular include detected: %s", parts[1])
	}
	// a file shared by several includers is expanded once
	if p.done[name] {
		p.emit("", file, loc.Line)
		return nil
	}
	p.done[name] = true

	content, err := p.sources.Read(name)
	if err != nil {
		return diag.At(loc, err)
	}
	nested := make(map[string]bool, len(stack)+1)
	for k, v := range stack {
		nested[k] = v
	}
	nested[name] = true
	return p.file(content, name, nested)
}

// maxExpansionDepth stops runaway macro expansion.
const maxExpansionDepth = 64

var errMacroDepth = errors.New("macro expansion too deep")

// applyDefines replaces macro names in input on word boundaries, leaving
// string literals alone. active holds the macros being expanded.
func applyDefines(input string, defines map[string]Macro, active map[string]bool) (string, error) {
	if len(defines) == 0 {
		return input, nil
	}
	if len(active) > maxExpansionDepth {
		return "", errMacroDepth
	}

	var sb strings.Builder
	n := len(input)
	i := 0
	for i < n {
		if input[i] == '"' {
			sb.WriteByte(input[i])
			i++
			for i < n {
				char := input[i]
				sb.WriteByte(char)
				i++
				if char == '\\' && i < n {
					sb.WriteByte(input[i])
					i++
				} else if char == '"' {
					break
				}
			}
			continue
		}
		if input[i] == '/' && i+1 < n && input[i+1] == '/' {
			sb.WriteString(input[i:])
			break
		}
		if !isIdentStart(rune(input[i])) {
			sb.WriteByte(input[i])
			i++
			continue
		}

		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		if !ok || active[word] {
			sb.WriteString(word)
			continue
		}
		inner := make(map[string]bool, len(active)+1)
		for k := range active {
			inner[k] = true
		}
		inner[word] = true

		if len(macro.Args) == 0 {
			expanded, err := applyDefines(macro.Body, defines, inner)
			if err != nil {
				return "", err
			}
			sb.WriteString(expanded)
			continue
		}

		args, next, ok := macroArgs(input, i)
		if !ok || len(args) != len(macro.Args) {
			// not an invocation, keep the identifier
			sb.WriteString(word)
			continue
		}
		expanded, err := applyDefines(substituteArgs(macro, args), defines, inner)
		if err != nil {
			return "", err
		}
		sb.WriteString(expanded)
		i = next
	}
	return sb.String(), nil
}

// substituteArgs replaces parameter names in the body of m with args in a
// single pass, so argument text is never substituted again.
func substituteArgs(m Macro, args []string) string {
	var sb strings.Builder
	body := m.Body
	n := len(body)
	for i := 0; i < n; {
		if !isIdentStart(rune(body[i])) {
			sb.WriteByte(body[i])
			i++
			continue
		}
		start := i
		for i < n && isIdentPart(rune(body[i])) {
			i++
		}
		word := body[start:i]
		replaced := false
		for k, param := range m.Args {
			if param == word {
				sb.WriteString(args[k])
				replaced = true
				break
			}
		}
		if !replaced {
			sb.WriteString(word)
		}
	}
	return sb.String()
}

// macroArgs reads a parenthesised argument list starting at or after i.
func macroArgs(input string, i int) ([]string, int, bool) {
	n := len(input)
	j := i
	for j < n && (input[j] == ' ' || input[j] == '\t') {
		j++
	}
	if j >= n || input[j] != '(' {
		return nil, i, false
	}
	j++
	var args []string
	var current strings.Builder
	depth := 1
	for ; j < n && depth > 0; j++ {
		switch c := input[j]; {
		case c == '(':
			depth++
			current.WriteByte(c)
		case c == ')':
			depth--
			if depth > 0 {
				current.WriteByte(c)
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if depth != 0 {
		return nil, i, false
	}
	return append(args, strings.TrimSpace(current.String())), j, true
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
