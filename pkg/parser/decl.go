package parser

import (
	"strings"

	"dspc/pkg/ast"
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/templates"
	"dspc/pkg/types"
)

var nativeKeywords = map[TokenType]types.NativeType{
	INT:       types.Integer,
	FLOAT_KW:  types.Float,
	DOUBLE_KW: types.Double,
	BOOL:      types.Boolean,
	VOID:      types.Void,
}

func isNativeKeyword(tt TokenType) bool {
	_, ok := nativeKeywords[tt]
	return ok
}

type classState struct {
	st      *types.StructType
	name    string // as spelled in the source
	node    *ast.ClassStatement
	access  symbols.Visibility
	pending []pendingBody
}

// pendingBody is a method whose body is parsed once the whole class is known.
type pendingBody struct {
	sig    *symbols.Signature
	params []param
	start  int
	name   Token
}

type param struct {
	name Token
	typ  types.TypeInfo
}

func signatureParams(params []param) []symbols.Parameter {
	out := make([]symbols.Parameter, len(params))
	for i, p := range params {
		out[i] = symbols.Parameter{Name: p.name.Lexeme, Type: p.typ}
	}
	return out
}

// parseDeclaration parses one namespace-level declaration and appends what
// it produces to the unit's root.
func (p *Parser) parseDeclaration() error {
	switch p.peek().Type {
	case SEMICOLON:
		p.advance()
		return nil
	case NAMESPACE:
		return p.parseNamespace()
	case USING:
		return p.parseUsing()
	case ENUM:
		return p.parseEnum()
	case TEMPLATE:
		return p.parseTemplate()
	case STRUCT, CLASS:
		node, err := p.parseClass()
		if err != nil {
			return err
		}
		p.emit(node)
		return nil
	}

	p.accept(STATIC)
	t, err := p.parseType()
	if err != nil {
		return err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if p.check(LPAREN) && (p.peekAt(1).Type == RPAREN || p.isTypeStart(p.pos+1)) {
		fn, err := p.parseFunction(t, name)
		if err != nil {
			return err
		}
		p.emit(fn)
		return nil
	}
	nodes, err := p.parseDeclarators(t, name)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		p.emit(n)
	}
	return nil
}

func (p *Parser) parseNamespace() error {
	p.advance()
	if p.fnDepth > 0 || p.class != nil {
		return p.errorf(p.peek(), "namespaces must be declared at namespace scope")
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if p.accept(ASSIGN) {
		target, at, err := p.parseQualifiedName()
		if err != nil {
			return err
		}
		resolved, err := p.reg.ResolveFrom(p.reg.Current(), target, false)
		if err != nil {
			return diag.At(p.loc(at), err)
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return err
		}
		return diag.At(p.loc(name), p.reg.CopySymbolsFromExistingNamespace(resolved, p.reg.Current().Child(name.Lexeme)))
	}

	open, err := p.expect(LBRACE)
	if err != nil {
		return err
	}
	p.reg.PushChild(name.Lexeme, symbols.PlainScope)
	id := p.reg.Current()
	for !p.check(RBRACE) {
		if p.check(EOF) {
			return p.errorf(open, "unterminated namespace %s", name.Lexeme)
		}
		if err := p.parseDeclaration(); err != nil {
			return err
		}
	}
	p.setLines(id, name, p.advance())
	p.reg.PopNamespace()
	return nil
}

func (p *Parser) parseUsing() error {
	p.advance()
	if p.accept(NAMESPACE) {
		name, at, err := p.parseQualifiedName()
		if err != nil {
			return err
		}
		id, err := p.reg.ResolveFrom(p.reg.Current(), name, false)
		if err != nil {
			return diag.At(p.loc(at), err)
		}
		if _, ok := p.reg.Lookup(id); !ok {
			return p.errorf(at, "%s is not a namespace", name)
		}
		if err := p.reg.AddUsedNamespace(id); err != nil {
			return diag.At(p.loc(at), err)
		}
		_, err = p.expect(SEMICOLON)
		return err
	}

	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return err
	}
	t, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return err
	}
	_, err = p.reg.AddSymbol(p.reg.Current().Child(name.Lexeme), t, symbols.UsingAlias, p.visibility(), p.debug(name))
	return diag.At(p.loc(name), err)
}

// parseEnum declares an int-typed enum. Values count up from the previous
// one; unscoped enums also make their values visible in the enclosing scope.
func (p *Parser) parseEnum() error {
	p.advance()
	scoped := p.accept(CLASS) || p.accept(STRUCT)
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	outer := p.reg.Current()
	id := outer.Child(name.Lexeme)
	if _, err := p.reg.AddSymbol(id, types.Native(types.Integer), symbols.Enum, p.visibility(), p.debug(name)); err != nil {
		return diag.At(p.loc(name), err)
	}
	if _, err := p.expect(LBRACE); err != nil {
		return err
	}

	p.reg.PushNamespace(id, symbols.PlainScope)
	next := int64(0)
	for !p.check(RBRACE) {
		value, err := p.expect(IDENTIFIER)
		if err != nil {
			return err
		}
		if p.accept(ASSIGN) {
			v, err := p.parseConstantInt()
			if err != nil {
				return err
			}
			next = int64(v)
		}
		if _, err := p.reg.AddConstant(id.Child(value.Lexeme), types.IntConstant(next), symbols.EnumValue, symbols.Public, p.debug(value)); err != nil {
			return diag.At(p.loc(value), err)
		}
		next++
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return err
	}
	p.reg.PopNamespace()
	if _, err := p.expect(SEMICOLON); err != nil {
		return err
	}
	if scoped {
		return nil
	}
	return diag.At(p.loc(name), p.reg.CopySymbolsFromExistingNamespace(id, outer))
}

// parseType parses ["const"] base ["&"].
func (p *Parser) parseType() (types.TypeInfo, error) {
	isConst := p.accept(CONST)
	tok := p.peek()
	var t types.TypeInfo
	switch {
	case tok.Type == AUTO:
		p.advance()
		t = types.Auto()
	case isNativeKeyword(tok.Type):
		p.advance()
		t = types.Native(nativeKeywords[tok.Type])
	case tok.Type == IDENTIFIER || tok.Type == COLON_COLON:
		var err error
		if t, err = p.parseNamedType(); err != nil {
			return t, err
		}
	default:
		return t, p.errorf(tok, "expected a type, got %s", describe(tok))
	}
	if isConst {
		t = t.WithConst(true)
	}
	if p.accept(AND) {
		t = t.WithRef(true)
	}
	return t, nil
}

func (p *Parser) parseNamedType() (types.TypeInfo, error) {
	name, at, err := p.parseQualifiedName()
	if err != nil {
		return types.TypeInfo{}, err
	}
	if f, ok := p.formals[name.String()]; ok {
		if f.Kind != types.TypeParameter {
			return types.TypeInfo{}, p.errorf(at, "%s is a constant, not a type", name)
		}
		return types.TemplateParam(f.ID), nil
	}
	if p.self != nil && !p.check(LESS) && name.String() == p.selfTemplate.Name() {
		return types.Complex(p.self), nil
	}

	id, err := p.reg.ResolveFrom(p.reg.Current(), name, false)
	if err != nil {
		return types.TypeInfo{}, diag.At(p.loc(at), err)
	}
	a, ok := p.reg.Symbol(id)
	if !ok {
		return types.TypeInfo{}, p.errorf(at, "%s is a namespace, not a type", name)
	}
	if err := p.reg.CheckVisibilityFrom(p.reg.Current(), id); err != nil {
		return types.TypeInfo{}, diag.At(p.loc(at), err)
	}
	switch a.Kind {
	case symbols.Struct, symbols.UsingAlias, symbols.TemplateType, symbols.Enum:
		return a.Type, nil
	case symbols.TemplatedClass:
		if !p.check(LESS) {
			return types.TypeInfo{}, p.errorf(at, "template %s needs arguments", name)
		}
		args, err := p.parseTemplateArgs()
		if err != nil {
			return types.TypeInfo{}, err
		}
		if p.self != nil && id.String() == p.selfTemplate.String() {
			if o, ok := p.ctx.Templates.ClassTemplate(id); ok {
				if merged, err := types.MergeParameters(o.Params, args); err == nil && types.InstanceID(id, merged).String() == p.self.ID().String() {
					return types.Complex(p.self), nil
				}
			}
		}
		ct, err := p.reg.CreateTemplateInstantiation(id, args)
		if err != nil {
			return types.TypeInfo{}, diag.At(p.loc(at), err)
		}
		return types.Complex(ct), nil
	}
	return types.TypeInfo{}, p.errorf(at, "%s is a %s, not a type", name, a.Kind)
}

// parseTemplateArgs parses "<" targ ("," targ)* ">". A type argument is
// anything that starts like a type; everything else must be a constant
// integer expression or the name of a constant parameter.
func (p *Parser) parseTemplateArgs() (types.ParameterList, error) {
	if _, err := p.expect(LESS); err != nil {
		return nil, err
	}
	var args types.ParameterList
	if p.accept(GREATER) {
		return args, nil
	}
	for {
		tok := p.peek()
		formal, isFormal := p.formals[tok.Lexeme]
		switch {
		case tok.Type == IDENTIFIER && p.peekAt(1).Type == ELLIPSIS:
			p.advance()
			p.advance()
			id := types.NewID(tok.Lexeme)
			if isFormal {
				id = formal.ID
			} else if resolved, err := p.reg.ResolveFrom(p.reg.Current(), id, false); err == nil {
				id = resolved
			} else {
				return nil, diag.At(p.loc(tok), err)
			}
			args = append(args, types.PackExpansion(id))

		case tok.Type == IDENTIFIER && isFormal && formal.Kind == types.ConstantParameter && !isArithmetic(p.peekAt(1)):
			p.advance()
			args = append(args, types.UnresolvedConstant(formal.ID))

		case p.isTypeStart(p.pos):
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, types.TypeArg(t))

		default:
			v, err := p.parseConstantInt()
			if err != nil {
				return nil, err
			}
			args = append(args, types.ConstantArg(v))
		}
		if !p.accept(COMMA) {
			break
		}
	}
	_, err := p.expect(GREATER)
	return args, err
}

func isArithmetic(tok Token) bool {
	switch tok.Type {
	case PLUS, MINUS, STAR, SLASH, PERCENT:
		return true
	}
	return false
}

// parseConstantInt parses an additive expression that must fold to an
// integer at parse time.
func (p *Parser) parseConstantInt() (int, error) {
	tok := p.peek()
	expr, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	v, ok := ast.EvalConstant(p.reg, expr)
	if !ok || (v.Type() != types.Integer && v.Type() != types.Boolean) {
		return 0, p.errorf(tok, "expected a constant integer")
	}
	return int(v.Int()), nil
}

// parseQualifiedName reads "a::b::c" and returns it unresolved together with
// its first token.
func (p *Parser) parseQualifiedName() (types.ID, Token, error) {
	tok := p.peek()
	id, n := p.nameAt(p.pos)
	if n == 0 {
		return id, tok, p.errorf(tok, "expected a name, got %s", describe(tok))
	}
	p.pos += n
	return id, tok, nil
}

// nameAt reads a qualified name at token i without consuming it and returns
// the number of tokens it spans.
func (p *Parser) nameAt(i int) (types.ID, int) {
	j := i
	if p.tokenAt(j).Type == COLON_COLON {
		j++
	}
	var segments []string
	for p.tokenAt(j).Type == IDENTIFIER {
		segments = append(segments, p.tokenAt(j).Lexeme)
		j++
		if p.tokenAt(j).Type != COLON_COLON || p.tokenAt(j+1).Type != IDENTIFIER {
			break
		}
		j++
	}
	if len(segments) == 0 {
		return types.ID{}, 0
	}
	return types.NewID(segments...), j - i
}

// typeNameAt reports whether the name at token i denotes a type.
func (p *Parser) typeNameAt(i int) (int, symbols.SymbolKind, bool) {
	id, n := p.nameAt(i)
	if n == 0 {
		return 0, 0, false
	}
	if f, ok := p.formals[id.String()]; ok {
		return n, symbols.TemplateType, f.Kind == types.TypeParameter
	}
	resolved, err := p.reg.ResolveFrom(p.reg.Current(), id, true)
	if err != nil || !resolved.IsValid() {
		return 0, 0, false
	}
	a, ok := p.reg.Symbol(resolved)
	if !ok || !a.Kind.IsType() {
		return 0, 0, false
	}
	return n, a.Kind, true
}

// isTypeStart reports whether a type begins at token i.
func (p *Parser) isTypeStart(i int) bool {
	switch tt := p.tokenAt(i).Type; {
	case tt == CONST || tt == AUTO || isNativeKeyword(tt):
		return true
	case tt == IDENTIFIER || tt == COLON_COLON:
		_, _, ok := p.typeNameAt(i)
		return ok
	}
	return false
}

// isDeclarationStart tells a local declaration from an expression statement.
func (p *Parser) isDeclarationStart() bool {
	tok := p.peek()
	switch {
	case tok.Type == STATIC || tok.Type == CONST || tok.Type == AUTO:
		return true
	case isNativeKeyword(tok.Type):
		// float(x) is a cast
		return p.peekAt(1).Type != LPAREN
	case tok.Type == IDENTIFIER || tok.Type == COLON_COLON:
		n, kind, ok := p.typeNameAt(p.pos)
		if !ok {
			return false
		}
		switch p.tokenAt(p.pos + n).Type {
		case IDENTIFIER, AND:
			return true
		case LESS:
			return kind == symbols.TemplatedClass
		}
	}
	return false
}

// parseDeclarators parses the declarators of a variable declaration whose
// type and first name have been read, through the closing ";".
func (p *Parser) parseDeclarators(t types.TypeInfo, name Token) ([]ast.Node, error) {
	var out []ast.Node
	for {
		nodes, err := p.declareVariable(t, name)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
		if !p.accept(COMMA) {
			break
		}
		if name, err = p.expect(IDENTIFIER); err != nil {
			return nil, err
		}
	}
	_, err := p.expect(SEMICOLON)
	return out, err
}

func (p *Parser) declareVariable(t types.TypeInfo, name Token) ([]ast.Node, error) {
	loc := p.loc(name)
	id := p.reg.Current().Child(name.Lexeme)
	switch {
	case t.IsVoid():
		return nil, p.errorf(name, "variable %s can't be void", name.Lexeme)
	case t.IsRef() && p.fnDepth == 0:
		return nil, p.errorf(name, "global reference %s is not supported", name.Lexeme)
	case t.IsComplex() && !t.IsRef():
		return p.declareComplex(t, id, name)
	}

	var value ast.Node
	var err error
	switch {
	case p.accept(ASSIGN):
		value, err = p.parseExpression()
	case p.check(LPAREN):
		p.advance()
		if value, err = p.parseExpression(); err == nil {
			_, err = p.expect(RPAREN)
		}
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		switch {
		case t.IsRef():
			return nil, p.errorf(name, "reference %s must be bound to a variable", name.Lexeme)
		case t.IsDynamic():
			return nil, p.errorf(name, "can't deduce the type of %s without an initialiser", name.Lexeme)
		}
		value = ast.NewImmediate(loc, types.ZeroConstant(t.Native()))
	}
	if t.IsConst() && !t.IsRef() {
		if v, ok := ast.EvalConstant(p.reg, value); ok {
			return nil, p.declareConstant(t, id, name, v, p.visibility())
		}
	}
	if _, err := p.reg.AddSymbol(id, t, symbols.Variable, p.visibility(), p.debug(name)); err != nil {
		return nil, diag.At(loc, err)
	}
	target := ast.NewVariableReference(loc, id, p.reg.Current(), true)
	return []ast.Node{ast.NewAssignment(loc, ast.OpAssign, target, value, true)}, nil
}

func (p *Parser) declareConstant(t types.TypeInfo, id types.ID, name Token, v types.Constant, vis symbols.Visibility) error {
	if !t.IsDynamic() {
		if v.Type() == types.String {
			return p.errorf(name, "can't initialise %s %s with a string", t.Plain(), name.Lexeme)
		}
		v = v.ConvertTo(t.Native())
	}
	_, err := p.reg.AddConstant(id, v, symbols.Constant, vis, p.debug(name))
	return diag.At(p.loc(name), err)
}

// declareComplex declares a struct or array variable. Runtime-length views
// bind to their initialiser; everything else is defined first and then
// assigned or constructed.
func (p *Parser) declareComplex(t types.TypeInfo, id types.ID, name Token) ([]ast.Node, error) {
	loc := p.loc(name)
	scope := p.reg.Current()
	st, isStruct := t.Struct()
	arr, isArray := t.Array()
	ctors := p.constructors(st)

	var (
		init      ast.Node
		assign    ast.Node
		args      []ast.Node
		construct bool
		err       error
	)
	switch {
	case p.check(LBRACE):
		init, err = p.parseInitializerList()
	case p.accept(ASSIGN):
		if p.check(LBRACE) {
			init, err = p.parseInitializerList()
			break
		}
		var value ast.Node
		if value, err = p.parseExpression(); err != nil {
			break
		}
		switch {
		case isArray && arr.Length() < 0:
			init = value
		case len(ctors) > 0:
			construct, args = true, []ast.Node{value}
		default:
			assign = value
		}
	case p.check(LPAREN) && isStruct:
		construct = true
		args, err = p.parseArgs()
	case len(ctors) > 0 && p.fnDepth > 0:
		construct = true
	}
	if err != nil {
		return nil, err
	}

	if p.fnDepth == 0 {
		switch {
		case construct:
			return nil, p.errorf(name, "global %s can't call a constructor", name.Lexeme)
		case assign != nil:
			return nil, p.errorf(name, "global %s can only be initialised with a constant list", name.Lexeme)
		}
	}
	if construct {
		if err := p.checkConstructor(st, args, name); err != nil {
			return nil, err
		}
	}
	if _, err := p.reg.AddSymbol(id, t, symbols.Variable, p.visibility(), p.debug(name)); err != nil {
		return nil, diag.At(loc, err)
	}

	out := []ast.Node{ast.NewComplexTypeDefinition(loc, t, []types.ID{id}, init)}
	switch {
	case construct:
		obj := ast.NewVariableReference(loc, id, scope, false)
		out = append(out, ast.NewFunctionCall(loc, types.NewID(st.ID().Name()), scope, obj, args...))
	case assign != nil:
		target := ast.NewVariableReference(loc, id, scope, false)
		out = append(out, ast.NewAssignment(loc, ast.OpAssign, target, assign, false))
	}
	return out, nil
}

func (p *Parser) constructors(st *types.StructType) []*symbols.Signature {
	if st == nil {
		return nil
	}
	a, ok := p.reg.Symbol(symbols.ConstructorID(st.ID()))
	if !ok || a.Kind != symbols.Function {
		return nil
	}
	return a.Functions
}

// checkConstructor rejects a construction no constructor can accept. Only
// literal arguments have a known type at this point; the rest match anything
// and are checked again during type checking.
func (p *Parser) checkConstructor(st *types.StructType, args []ast.Node, at Token) error {
	argTypes := make([]types.TypeInfo, len(args))
	names := make([]string, len(args))
	for i, a := range args {
		argTypes[i] = types.Auto()
		if imm, ok := a.(*ast.Immediate); ok {
			argTypes[i] = imm.Type()
		}
		names[i] = argTypes[i].Plain().String()
	}
	for _, sig := range p.constructors(st) {
		if _, ok := sig.Match(argTypes); ok {
			return nil
		}
	}
	return p.errorf(at, "can't find a constructor %s(%s)", st.ID().Name(), strings.Join(names, ", "))
}

func (p *Parser) parseInitializerList() (*ast.InitializerList, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	var values []ast.Node
	for !p.check(RBRACE) {
		var v ast.Node
		if p.check(LBRACE) {
			v, err = p.parseInitializerList()
		} else {
			v, err = p.parseExpression()
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return ast.NewInitializerList(p.loc(open), values...), nil
}

// parseParams parses a parenthesised parameter list.
func (p *Parser) parseParams() ([]param, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var out []param
	if p.accept(RPAREN) {
		return out, nil
	}
	if p.check(VOID) && p.peekAt(1).Type == RPAREN {
		p.advance()
		p.advance()
		return out, nil
	}
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.check(ELLIPSIS) {
			return nil, p.errorf(p.peek(), "parameter packs can't be used as function parameters")
		}
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if t.IsVoid() || (t.IsDynamic() && !t.IsTemplated()) {
			return nil, p.errorf(name, "parameter %s needs a type", name.Lexeme)
		}
		out = append(out, param{name: name, typ: t})
		if !p.accept(COMMA) {
			break
		}
	}
	_, err := p.expect(RPAREN)
	return out, err
}

// parseFunction parses a free function whose return type and name have been read.
func (p *Parser) parseFunction(ret types.TypeInfo, name Token) (*ast.Function, error) {
	if p.fnDepth > 0 {
		return nil, p.errorf(name, "function %s can't be declared inside a function", name.Lexeme)
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	sig := &symbols.Signature{
		ID:     p.reg.Current().Child(name.Lexeme),
		Return: ret,
		Params: signatureParams(params),
		Loc:    p.loc(name),
	}
	if _, err := p.reg.AddFunction(sig, symbols.Public, p.debug(name)); err != nil {
		return nil, diag.At(sig.Loc, err)
	}
	if !p.check(LBRACE) {
		return nil, p.errorf(p.peek(), "function %s needs a body", name.Lexeme)
	}
	return p.parseFunctionBody(sig, params, name, nil)
}

// parseFunctionBody parses the body block of sig inside its own scope.
func (p *Parser) parseFunctionBody(sig *symbols.Signature, params []param, name Token, class *types.StructType) (*ast.Function, error) {
	scope := sig.Scope()
	p.reg.PushNamespace(scope, symbols.FunctionScope)
	ids := make([]types.ID, len(params))
	for i, prm := range params {
		ids[i] = scope.Child(prm.name.Lexeme)
		if _, err := p.reg.AddSymbol(ids[i], prm.typ, symbols.Variable, symbols.Public, p.debug(prm.name)); err != nil {
			return nil, diag.At(p.loc(prm.name), err)
		}
	}

	p.fnDepth++
	defer func() { p.fnDepth-- }()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	p.setLines(scope, name, p.tokenAt(p.pos-1))
	p.reg.PopNamespace()

	fn := ast.NewFunction(p.loc(name), sig, ids, class, body)
	p.ctx.AddFunction(fn)
	return fn, nil
}

func (p *Parser) parseClass() (*ast.ClassStatement, error) {
	kw := p.advance()
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if p.fnDepth > 0 || p.class != nil {
		return nil, p.errorf(name, "struct %s must be declared at namespace scope", name.Lexeme)
	}
	st := types.NewStructType(p.reg.Current().Child(name.Lexeme))
	return p.defineClass(st, kw, name)
}

// defineClass parses the body of st. Member declarations come first; method
// bodies are parsed after the closing brace so they see every member.
func (p *Parser) defineClass(st *types.StructType, kw, name Token) (*ast.ClassStatement, error) {
	id := st.ID()
	if _, err := p.reg.AddSymbol(id, types.Complex(st), symbols.Struct, p.visibility(), p.debug(name)); err != nil {
		return nil, diag.At(p.loc(name), err)
	}
	p.ctx.Types.Register(st)

	cs := &classState{st: st, name: name.Lexeme, node: ast.NewClassStatement(p.loc(name), st), access: symbols.Public}
	if kw.Type == CLASS {
		cs.access = symbols.Private
	}
	saved := p.class
	p.class = cs
	defer func() { p.class = saved }()

	p.reg.PushNamespace(id, symbols.ClassScope)
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	for !p.check(RBRACE) {
		if p.check(EOF) {
			return nil, p.errorf(open, "unterminated struct %s", name.Lexeme)
		}
		if err := p.parseMember(cs); err != nil {
			return nil, err
		}
	}
	closing := p.advance()
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	p.setLines(id, name, closing)
	st.Complete()

	after := p.pos
	for _, b := range cs.pending {
		p.pos = b.start
		fn, err := p.parseFunctionBody(b.sig, b.params, b.name, st)
		if err != nil {
			return nil, err
		}
		ast.Add(cs.node, fn)
	}
	p.pos = after
	p.reg.PopNamespace()
	return cs.node, nil
}

var operatorSymbols = map[TokenType]string{
	PLUS:           "+",
	MINUS:          "-",
	STAR:           "*",
	SLASH:          "/",
	PERCENT:        "%",
	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",
	EQUALS:         "==",
	NOT_EQ:         "!=",
	LESS:           "<",
	LESS_EQ:        "<=",
	GREATER:        ">",
	GREATER_EQ:     ">=",
	PLUS_PLUS:      "++",
	MINUS_MINUS:    "--",
}

func (p *Parser) parseMember(cs *classState) error {
	tok := p.peek()
	switch tok.Type {
	case SEMICOLON:
		p.advance()
		return nil
	case PUBLIC, PRIVATE:
		p.advance()
		cs.access = symbols.Public
		if tok.Type == PRIVATE {
			cs.access = symbols.Private
		}
		_, err := p.expect(COLON)
		return err
	case USING:
		return p.parseUsing()
	case ENUM:
		return p.parseEnum()
	case TEMPLATE:
		return p.errorf(tok, "member templates are not supported")
	case STRUCT, CLASS, NAMESPACE:
		return p.errorf(tok, "%s can't be declared inside struct %s", tok.Lexeme, cs.name)
	case STATIC:
		return p.parseStaticMember(cs)
	case OPERATOR:
		return p.parseCastOperator(cs)
	case IDENTIFIER:
		if tok.Lexeme == cs.name && p.peekAt(1).Type == LPAREN {
			p.advance()
			sig := &symbols.Signature{
				ID:          symbols.ConstructorID(cs.st.ID()),
				Return:      types.Native(types.Void),
				Method:      true,
				Constructor: true,
			}
			return p.parseMethod(cs, sig, tok)
		}
	}

	t, err := p.parseType()
	if err != nil {
		return err
	}
	if p.check(OPERATOR) {
		at := p.advance()
		op, err := p.parseOperatorSymbol()
		if err != nil {
			return err
		}
		sig := &symbols.Signature{ID: symbols.OperatorID(cs.st.ID(), op), Return: t, Method: true}
		return p.parseMethod(cs, sig, at)
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if p.check(LPAREN) {
		sig := &symbols.Signature{ID: cs.st.ID().Child(name.Lexeme), Return: t, Method: true}
		return p.parseMethod(cs, sig, name)
	}
	for {
		if err := p.declareMember(cs, t, name); err != nil {
			return err
		}
		if !p.accept(COMMA) {
			break
		}
		if name, err = p.expect(IDENTIFIER); err != nil {
			return err
		}
	}
	_, err = p.expect(SEMICOLON)
	return err
}

func (p *Parser) parseOperatorSymbol() (string, error) {
	tok := p.advance()
	if tok.Type == LBRACKET {
		if _, err := p.expect(RBRACKET); err != nil {
			return "", err
		}
		return "[]", nil
	}
	if op, ok := operatorSymbols[tok.Type]; ok {
		return op, nil
	}
	return "", p.errorf(tok, "can't overload operator %s", describe(tok))
}

func (p *Parser) parseMethod(cs *classState, sig *symbols.Signature, at Token) error {
	params, err := p.parseParams()
	if err != nil {
		return err
	}
	sig.Params = signatureParams(params)
	return p.registerMethod(cs, sig, params, at)
}

// parseCastOperator parses "operator T() [const] { ... }".
func (p *Parser) parseCastOperator(cs *classState) error {
	at := p.advance()
	t, err := p.parseType()
	if err != nil {
		return err
	}
	if t.IsComplex() || t.IsVoid() || t.IsDynamic() {
		return p.errorf(at, "operator %s() must convert to a native type", t)
	}
	params, err := p.parseParams()
	if err != nil {
		return err
	}
	if len(params) > 0 {
		return p.errorf(at, "operator %s() takes no parameters", t)
	}
	sig := &symbols.Signature{ID: symbols.CastOperatorID(cs.st.ID(), t), Return: t.Plain(), Method: true}
	return p.registerMethod(cs, sig, params, at)
}

func (p *Parser) registerMethod(cs *classState, sig *symbols.Signature, params []param, at Token) error {
	sig.Loc = p.loc(at)
	sig.Const = p.accept(CONST)
	if sig.Constructor && sig.Const {
		return p.errorf(at, "constructor of %s can't be const", cs.name)
	}
	if _, err := p.reg.AddFunction(sig, cs.access, p.debug(at)); err != nil {
		return diag.At(sig.Loc, err)
	}
	if !p.check(LBRACE) {
		return p.errorf(p.peek(), "%s needs a body", sig.ID.Name())
	}
	cs.pending = append(cs.pending, pendingBody{sig: sig, params: params, start: p.pos, name: at})
	return p.skipBraces()
}

func (p *Parser) declareMember(cs *classState, t types.TypeInfo, name Token) error {
	loc := p.loc(name)
	switch {
	case t.IsRef():
		return p.errorf(name, "member %s can't be a reference", name.Lexeme)
	case t.IsDynamic():
		return p.errorf(name, "member %s needs a type", name.Lexeme)
	case t.IsVoid():
		return p.errorf(name, "member %s can't be void", name.Lexeme)
	}
	if st, ok := t.Struct(); ok && st == cs.st {
		return p.errorf(name, "%s can't contain itself", cs.name)
	}
	if _, err := cs.st.AddMember(name.Lexeme, t, cs.access == symbols.Private); err != nil {
		return diag.At(loc, err)
	}
	id := cs.st.ID().Child(name.Lexeme)
	if _, err := p.reg.AddSymbol(id, t, symbols.Variable, cs.access, p.debug(name)); err != nil {
		return diag.At(loc, err)
	}
	if !p.accept(ASSIGN) {
		return nil
	}
	if t.IsComplex() {
		return p.errorf(name, "member %s can't have a default value", name.Lexeme)
	}
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	target := ast.NewVariableReference(loc, id, cs.st.ID(), true)
	ast.Add(cs.node, ast.NewAssignment(loc, ast.OpAssign, target, value, true))
	return nil
}

// parseStaticMember parses "static const T name = value;".
func (p *Parser) parseStaticMember(cs *classState) error {
	p.advance()
	t, err := p.parseType()
	if err != nil {
		return err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if !t.IsConst() || t.IsComplex() {
		return p.errorf(name, "static member %s must be a native constant", name.Lexeme)
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return err
	}
	tok := p.peek()
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	v, ok := ast.EvalConstant(p.reg, value)
	if !ok {
		return p.errorf(tok, "static member %s needs a constant value", name.Lexeme)
	}
	if err := p.declareConstant(t, cs.st.ID().Child(name.Lexeme), name, v, cs.access); err != nil {
		return err
	}
	_, err = p.expect(SEMICOLON)
	return err
}

// parseTemplate reads a template header and registers the class or function
// template that follows. Its body is skipped here and parsed again, with the
// parameters bound, every time a new instance is requested.
func (p *Parser) parseTemplate() error {
	tok := p.advance()
	if p.fnDepth > 0 || p.class != nil {
		return p.errorf(tok, "templates must be declared at namespace scope")
	}
	formals, err := p.parseFormals()
	if err != nil {
		return err
	}
	if p.check(STRUCT) || p.check(CLASS) {
		return p.defineClassTemplate(formals)
	}
	return p.defineFunctionTemplate(formals)
}

func (p *Parser) parseFormals() (types.ParameterList, error) {
	open, err := p.expect(LESS)
	if err != nil {
		return nil, err
	}
	var out types.ParameterList
	seen := make(map[string]bool)
	for {
		kind := p.advance()
		if kind.Type != TYPENAME && kind.Type != CLASS && kind.Type != INT {
			return nil, p.errorf(kind, "expected typename or int, got %s", describe(kind))
		}
		variadic := p.accept(ELLIPSIS)
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if seen[name.Lexeme] {
			return nil, p.errorf(name, "duplicate template parameter %s", name.Lexeme)
		}
		seen[name.Lexeme] = true

		id := types.NewID(name.Lexeme)
		var f types.TemplateParameter
		if kind.Type == INT {
			f = types.FormalConstant(id, variadic)
			if p.accept(ASSIGN) {
				v, err := p.parseConstantInt()
				if err != nil {
					return nil, err
				}
				f = f.WithDefaultConstant(v)
			}
		} else {
			f = types.FormalType(id, variadic)
			if p.accept(ASSIGN) {
				t, err := p.parseType()
				if err != nil {
					return nil, err
				}
				f = f.WithDefaultType(t)
			}
		}
		if variadic && f.HasDefault() {
			return nil, p.errorf(name, "parameter pack %s can't have a default", name.Lexeme)
		}
		if len(out) > 0 && out[len(out)-1].Variadic {
			return nil, p.errorf(name, "parameter pack %s must come last", out[len(out)-1].ID)
		}
		out = append(out, f)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(GREATER); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, p.errorf(open, "template needs parameters")
	}
	return out, nil
}

func formalMap(formals types.ParameterList) map[string]types.TemplateParameter {
	m := make(map[string]types.TemplateParameter, len(formals))
	for _, f := range formals {
		m[f.ID.Name()] = f
	}
	return m
}

func (p *Parser) defineClassTemplate(formals types.ParameterList) error {
	start := p.pos
	p.advance()
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	if err := p.skipBraces(); err != nil {
		return err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return err
	}
	obj := &templates.Object{
		ID:     p.reg.Current().Child(name.Lexeme),
		Params: formals,
		Loc:    p.loc(name),
	}
	obj.Class = templates.ClassBuilderFunc(func(req *templates.ClassRequest) (types.ComplexType, error) {
		return p.fork(start).instantiateClass(req)
	})
	return diag.At(obj.Loc, p.ctx.Templates.AddTemplateClass(obj))
}

func (p *Parser) instantiateClass(req *templates.ClassRequest) (types.ComplexType, error) {
	depth := p.reg.Depth()
	defer p.unwind(depth)

	kw := p.advance()
	name := p.advance()
	st := types.NewStructType(req.ID)
	st.SetTemplate(req.Template.ID, req.Params)
	p.self, p.selfTemplate = st, req.Template.ID

	p.reg.PushNamespace(req.ID, symbols.ClassScope)
	for _, b := range req.Bindings {
		if err := p.reg.AddTemplateBinding(req.ID, b); err != nil {
			return nil, diag.At(p.loc(name), err)
		}
	}
	node, err := p.defineClass(st, kw, name)
	if err != nil {
		return nil, err
	}
	if err := p.ctx.AddInstantiated(node); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *Parser) defineFunctionTemplate(formals types.ParameterList) error {
	start := p.pos
	saved := p.formals
	p.formals = formalMap(formals)
	defer func() { p.formals = saved }()

	if _, err := p.parseType(); err != nil {
		return err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return err
	}
	params, err := p.parseParams()
	if err != nil {
		return err
	}
	if !p.check(LBRACE) {
		return p.errorf(p.peek(), "template %s needs a body", name.Lexeme)
	}
	if err := p.skipBraces(); err != nil {
		return err
	}

	args := make([]types.TypeInfo, len(params))
	for i, prm := range params {
		args[i] = prm.typ
	}
	obj := &templates.Object{
		ID:     p.reg.Current().Child(name.Lexeme),
		Params: formals,
		Args:   args,
		Loc:    p.loc(name),
	}
	obj.Function = templates.FunctionBuilderFunc(func(req *templates.FunctionRequest) (*symbols.Signature, error) {
		return p.fork(start).instantiateFunction(req)
	})
	return diag.At(obj.Loc, p.ctx.Templates.AddTemplateFunction(obj))
}

func (p *Parser) instantiateFunction(req *templates.FunctionRequest) (*symbols.Signature, error) {
	depth := p.reg.Depth()
	defer p.unwind(depth)

	p.reg.PushNamespace(req.ID, symbols.PlainScope)
	for _, b := range req.Bindings {
		if err := p.reg.AddTemplateBinding(req.ID, b); err != nil {
			return nil, diag.At(req.Template.Loc, err)
		}
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	sig := &symbols.Signature{
		ID:       req.ID,
		Return:   ret,
		Params:   signatureParams(params),
		Template: req.Params,
		Loc:      p.loc(name),
	}
	if _, err := p.reg.AddFunction(sig, symbols.Public, p.debug(name)); err != nil {
		return nil, diag.At(sig.Loc, err)
	}
	fn, err := p.parseFunctionBody(sig, params, name, nil)
	if err != nil {
		return nil, err
	}
	if err := p.ctx.AddInstantiated(fn); err != nil {
		return nil, err
	}
	return sig, nil
}
