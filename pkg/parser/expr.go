package parser

import (
	"math"
	"strconv"

	"dspc/pkg/ast"
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

var compareOps = map[TokenType]ast.Operator{
	EQUALS:     ast.OpEq,
	NOT_EQ:     ast.OpNe,
	LESS:       ast.OpLt,
	LESS_EQ:    ast.OpLe,
	GREATER:    ast.OpGt,
	GREATER_EQ: ast.OpGe,
}

var additiveOps = map[TokenType]ast.Operator{
	PLUS:  ast.OpAdd,
	MINUS: ast.OpSub,
}

var multiplicativeOps = map[TokenType]ast.Operator{
	STAR:    ast.OpMul,
	SLASH:   ast.OpDiv,
	PERCENT: ast.OpMod,
}

func (p *Parser) parseExpression() (ast.Node, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Node, error) {
	cond, err := p.parseLogicalOr()
	if err != nil || !p.check(QUESTION) {
		return cond, err
	}
	q := p.advance()
	a, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	b, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return ast.NewTernaryOp(p.loc(q), cond, a, b), nil
}

func (p *Parser) parseLogicalOr() (ast.Node, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.check(OR_LOGICAL) {
		op := p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(p.loc(op), ast.OpOr, left, right)
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.check(AND_LOGICAL) {
		op := p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(p.loc(op), ast.OpAnd, left, right)
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := compareOps[p.peek().Type]
		if !ok {
			return left, nil
		}
		at := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.NewCompare(p.loc(at), op, left, right)
	}
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := additiveOps[p.peek().Type]
		if !ok {
			return left, nil
		}
		at := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(p.loc(at), op, left, right)
	}
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := multiplicativeOps[p.peek().Type]
		if !ok {
			return left, nil
		}
		at := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(p.loc(at), op, left, right)
	}
}

func (p *Parser) parseUnary() (ast.Node, error) {
	tok := p.peek()
	loc := p.loc(tok)
	switch tok.Type {
	case MINUS, NOT, PLUS_PLUS, MINUS_MINUS, PLUS:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case MINUS:
			return ast.NewNegation(loc, operand), nil
		case NOT:
			return ast.NewLogicalNot(loc, operand), nil
		case PLUS:
			return operand, nil
		}
		return ast.NewIncrement(loc, operand, tok.Type == MINUS_MINUS, true), nil

	case LPAREN:
		if !p.isCast() {
			break
		}
		p.advance()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewCast(loc, t, operand, true), nil
	}
	return p.parsePostfix()
}

// isCast reports whether the "(" at the current position opens a C-style cast.
func (p *Parser) isCast() bool {
	i := p.pos + 1
	switch tt := p.tokenAt(i).Type; {
	case isNativeKeyword(tt):
		return p.tokenAt(i+1).Type == RPAREN
	case tt == IDENTIFIER || tt == COLON_COLON:
		n, _, ok := p.typeNameAt(i)
		return ok && p.tokenAt(i+n).Type == RPAREN
	}
	return false
}

func (p *Parser) parsePostfix() (ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Type {
		case LBRACKET:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = ast.NewSubscript(p.loc(tok), expr, index)

		case DOT:
			p.advance()
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if !p.check(LPAREN) {
				expr = ast.NewDotOperator(p.loc(name), expr, name.Lexeme, p.reg.Current())
				continue
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = ast.NewFunctionCall(p.loc(name), types.NewID(name.Lexeme), p.reg.Current(), expr, args...)

		case PLUS_PLUS, MINUS_MINUS:
			p.advance()
			expr = ast.NewIncrement(p.loc(tok), expr, tok.Type == MINUS_MINUS, false)

		default:
			return expr, nil
		}
	}
}

// parseArgs parses a parenthesised, comma separated argument list.
func (p *Parser) parseArgs() ([]ast.Node, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Node
	if p.accept(RPAREN) {
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.accept(COMMA) {
			break
		}
	}
	_, err := p.expect(RPAREN)
	return args, err
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	tok := p.peek()
	loc := p.loc(tok)
	switch tok.Type {
	case INTEGER:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 0, 64)
		if err != nil || v > math.MaxUint32 {
			return nil, p.errorf(tok, "integer literal %s is out of range", tok.Lexeme)
		}
		// hex literals above MaxInt32 wrap like their C counterparts
		return ast.NewImmediate(loc, types.IntConstant(int64(int32(uint32(v))))), nil

	case FLOAT:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 32)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok.Lexeme)
		}
		return ast.NewImmediate(loc, types.FloatConstant(float32(f))), nil

	case DOUBLE:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok.Lexeme)
		}
		return ast.NewImmediate(loc, types.DoubleConstant(f)), nil

	case STRING:
		p.advance()
		return ast.NewImmediate(loc, types.StringConstant(tok.Lexeme)), nil

	case TRUE, FALSE:
		p.advance()
		return ast.NewImmediate(loc, types.BoolConstant(tok.Type == TRUE)), nil

	case THIS:
		p.advance()
		if p.class == nil || p.fnDepth == 0 {
			return nil, p.errorf(tok, "this is only valid inside a method")
		}
		return ast.NewThisPointer(loc), nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	case INT, FLOAT_KW, DOUBLE_KW, BOOL:
		p.advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, p.errorf(tok, "%s(...) takes one value", tok.Lexeme)
		}
		return ast.NewCast(loc, types.Native(nativeKeywords[tok.Type]), args[0], true), nil

	case IDENTIFIER, COLON_COLON:
		return p.parseIdentifier()
	}
	return nil, p.errorf(tok, "expected an expression, got %s", describe(tok))
}

// parseIdentifier resolves a name in the current scope and builds the node
// its symbol kind calls for.
func (p *Parser) parseIdentifier() (ast.Node, error) {
	name, at, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	loc := p.loc(at)
	scope := p.reg.Current()
	if f, ok := p.formals[name.String()]; ok {
		return nil, p.errorf(at, "template parameter %s can't be used here", f.ID)
	}
	id, err := p.reg.ResolveFrom(scope, name, false)
	if err != nil {
		return nil, diag.At(loc, err)
	}
	a, ok := p.reg.Symbol(id)
	if !ok {
		return nil, p.errorf(at, "%s is a namespace, not a value", name)
	}
	id = a.Canonical()

	switch a.Kind {
	case symbols.Function:
		if !p.check(LPAREN) {
			return nil, p.errorf(at, "function %s must be called", name)
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return ast.NewFunctionCall(loc, id, scope, nil, args...), nil

	case symbols.TemplatedFunction:
		var targs types.ParameterList
		if p.check(LESS) {
			if targs, err = p.parseTemplateArgs(); err != nil {
				return nil, err
			}
		}
		if !p.check(LPAREN) {
			return nil, p.errorf(at, "function template %s must be called", name)
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		call := ast.NewFunctionCall(loc, id, scope, nil, args...)
		call.TemplateArgs = targs
		return call, nil

	case symbols.Constant, symbols.EnumValue, symbols.TemplateConstant:
		if err := p.reg.CheckVisibilityFrom(scope, id); err != nil {
			return nil, diag.At(loc, err)
		}
		if !a.Value.IsVoid() {
			return ast.NewImmediate(loc, a.Value), nil
		}
		return ast.NewVariableReference(loc, id, scope, false), nil

	case symbols.Variable:
		return ast.NewVariableReference(loc, id, scope, false), nil
	}
	return nil, p.errorf(at, "%s is a %s, not a value", name, a.Kind)
}
