package parser

import (
	"dspc/pkg/ast"
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
)

var assignOps = map[TokenType]ast.Operator{
	ASSIGN:         ast.OpAssign,
	PLUS_ASSIGN:    ast.OpAdd,
	MINUS_ASSIGN:   ast.OpSub,
	STAR_ASSIGN:    ast.OpMul,
	SLASH_ASSIGN:   ast.OpDiv,
	PERCENT_ASSIGN: ast.OpMod,
}

func one(n ast.Node, err error) ([]ast.Node, error) {
	if err != nil {
		return nil, err
	}
	return []ast.Node{n}, nil
}

// parseBlock parses "{" statement* "}" in a fresh block scope.
func (p *Parser) parseBlock() (*ast.StatementBlock, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	p.reg.PushChild(p.nextBlockName(), symbols.BlockScope)
	scope := p.reg.Current()
	var stmts []ast.Node
	for !p.check(RBRACE) {
		if p.check(EOF) {
			return nil, p.errorf(open, "unterminated block")
		}
		nodes, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, nodes...)
	}
	p.setLines(scope, open, p.advance())
	p.reg.PopNamespace()
	return ast.NewStatementBlock(p.loc(open), scope, stmts...), nil
}

// parseStatement returns the nodes of one statement: none for an empty
// statement, several for a declaration with more than one declarator.
func (p *Parser) parseStatement() ([]ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case LBRACE:
		return one(p.parseBlock())
	case SEMICOLON:
		p.advance()
		return nil, nil
	case IF:
		return one(p.parseIf())
	case WHILE:
		return one(p.parseWhile())
	case FOR:
		return one(p.parseFor())
	case RETURN:
		return one(p.parseReturn())
	case BREAK, CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return []ast.Node{ast.NewControlFlow(p.loc(tok), tok.Type == BREAK)}, nil
	case USING:
		return nil, p.parseUsing()
	case ENUM:
		return nil, p.parseEnum()
	case STATIC:
		return nil, p.errorf(tok, "static locals are not supported, declare the state outside the function")
	case STRUCT, CLASS, TEMPLATE, NAMESPACE:
		return nil, p.errorf(tok, "%s must be declared at namespace scope", tok.Lexeme)
	}

	if p.isDeclarationStart() {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return p.parseDeclarators(t, name)
	}
	return one(p.parseExpressionStatement())
}

// parseBody parses the single statement controlled by if, while or for.
func (p *Parser) parseBody() (ast.Node, error) {
	start := p.peek()
	nodes, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return ast.NewNoop(p.loc(start)), nil
	case 1:
		return nodes[0], nil
	}
	return ast.NewStatementBlock(p.loc(start), p.reg.Current(), nodes...), nil
}

func (p *Parser) parseCondition() (ast.Node, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	_, err = p.expect(RPAREN)
	return cond, err
}

func (p *Parser) parseIf() (ast.Node, error) {
	tok := p.advance()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	var els ast.Node
	if p.accept(ELSE) {
		if els, err = p.parseBody(); err != nil {
			return nil, err
		}
	}
	return ast.NewIfStatement(p.loc(tok), cond, then, els), nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	tok := p.advance()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return ast.NewWhileLoop(p.loc(tok), cond, body), nil
}

// parseFor parses a range loop. The iterator lives in a block scope of its
// own wrapped around the body.
func (p *Parser) parseFor() (ast.Node, error) {
	tok := p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if !p.isTypeStart(p.pos) {
		return nil, p.errorf(p.peek(), "only range-based for loops are supported")
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if !p.accept(COLON) {
		return nil, p.errorf(p.peek(), "only range-based for loops are supported")
	}
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	p.reg.PushChild(p.nextBlockName(), symbols.BlockScope)
	id := p.reg.Current().Child(name.Lexeme)
	if _, err := p.reg.AddSymbol(id, t, symbols.Variable, symbols.Public, p.debug(name)); err != nil {
		return nil, diag.At(p.loc(name), err)
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	p.reg.PopNamespace()
	return ast.NewLoop(p.loc(tok), id, t.IsRef(), target, body), nil
}

func (p *Parser) parseReturn() (ast.Node, error) {
	tok := p.advance()
	if p.accept(SEMICOLON) {
		return ast.NewReturnStatement(p.loc(tok), nil), nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return ast.NewReturnStatement(p.loc(tok), value), nil
}

func (p *Parser) parseExpressionStatement() (ast.Node, error) {
	lhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.peek().Type]; ok {
		at := p.advance()
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return ast.NewAssignment(p.loc(at), op, lhs, rhs, false), nil
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return lhs, nil
}
