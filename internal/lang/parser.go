package lang

import "fmt"

// Parser builds an AST from a token stream. Expressions use a Pratt-style
// precedence climb; statements are dispatched on the leading token.
type Parser struct {
	toks []Token
	pos  int
}

// Parse parses a whole program: a sequence of statements and function
// definitions.
func Parse(src string) ([]Stmt, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	var stmts []Stmt
	for p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// ParseLine parses a single REPL line. It returns a *ParseError with
// Incomplete set when the input ends mid-construct.
func ParseLine(src string) (Stmt, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	if p.peek().Type == EOF {
		return nil, nil
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != EOF {
		return nil, p.errorf(tok, "unexpected %q after statement", tok.Text)
	}
	return stmt, nil
}

func (p *Parser) peek() Token {
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) Token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *Parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return Token{}, p.errorf(tok, "expected %s, got %q", what, tok.Text)
	}
	p.pos++
	return tok, nil
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if tok.Type == EOF {
		return &ParseError{Pos: tok.Pos, Msg: msg + " (end of input)", Incomplete: true}
	}
	return &ParseError{Pos: tok.Pos, Msg: msg}
}

// ---- statements ----

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case KWFUNCTION:
		return p.parseFunctionDef()
	case KWIF:
		return p.parseIf()
	case KWFOR:
		return p.parseFor()
	case KWWHILE:
		return p.parseWhile()
	case LBRACE:
		return p.parseBlock()
	case KWRETURN:
		p.next()
		stmt := &ReturnStmt{node: node{tok.Pos}}
		if p.peek().Type != SEMI && p.peek().Type != EOF && p.peek().Type != RBRACE {
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Value = value
		}
		p.accept(SEMI)
		return stmt, nil
	case KWBREAK:
		p.next()
		p.accept(SEMI)
		return &BreakStmt{node: node{tok.Pos}}, nil
	case KWCONTINUE:
		p.next()
		p.accept(SEMI)
		return &ContinueStmt{node: node{tok.Pos}}, nil
	}

	if decl, ok, err := p.tryParseDecl(); err != nil {
		return nil, err
	} else if ok {
		p.accept(SEMI)
		return decl, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.accept(SEMI)
	return &ExprStmt{node: node{tok.Pos}, X: expr}, nil
}

// tryParseDecl recognizes "T name = e" and "T[] name = e" declaration
// statements, where T is an identifier naming a type.
func (p *Parser) tryParseDecl() (Stmt, bool, error) {
	tok := p.peek()
	if tok.Type != IDENT {
		return nil, false, nil
	}
	var typeExpr Expr
	var nameTok Token
	if p.peekAt(1).Type == IDENT && p.peekAt(2).Type == ASSIGN {
		typeExpr = &Ident{node: node{tok.Pos}, Name: tok.Text}
		p.next()
		nameTok = p.next()
	} else if p.peekAt(1).Type == LBRACKET && p.peekAt(2).Type == RBRACKET &&
		p.peekAt(3).Type == IDENT && p.peekAt(4).Type == ASSIGN {
		base := &Ident{node: node{tok.Pos}, Name: tok.Text}
		typeExpr = &IndexExpr{node: node{tok.Pos}, X: base, Index: nil}
		p.next()
		p.next()
		p.next()
		nameTok = p.next()
	} else {
		return nil, false, nil
	}
	if _, err := p.expect(ASSIGN, "'='"); err != nil {
		return nil, false, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, false, err
	}
	return &VarDeclStmt{node: node{tok.Pos}, Type: typeExpr, Name: nameTok.Text, Value: value}, true, nil
}

func (p *Parser) parseFunctionDef() (Stmt, error) {
	tok := p.next() // function
	nameTok, err := p.expect(IDENT, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for p.peek().Type != RPAREN {
		// Parameters may carry a type ("uint256 x") which is ignored:
		// user functions are untyped.
		first, err := p.expect(IDENT, "parameter name")
		if err != nil {
			return nil, err
		}
		name := first.Text
		if p.peek().Type == IDENT {
			name = p.next().Text
		}
		params = append(params, name)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDef{node: node{tok.Pos}, Name: nameTok.Text, Params: params, Body: body.(*BlockStmt)}, nil
}

func (p *Parser) parseBlock() (Stmt, error) {
	tok, err := p.expect(LBRACE, "'{'")
	if err != nil {
		return nil, err
	}
	block := &BlockStmt{node: node{tok.Pos}}
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return nil, p.errorf(p.peek(), "expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.next()
	return block, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	tok := p.next() // if
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{node: node{tok.Pos}, Cond: cond, Then: then}
	if p.accept(KWELSE) {
		els, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	tok := p.next() // while
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{node: node{tok.Pos}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	tok := p.next() // for
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	stmt := &ForStmt{node: node{tok.Pos}}
	if p.peek().Type != SEMI {
		if decl, ok, err := p.tryParseDecl(); err != nil {
			return nil, err
		} else if ok {
			stmt.Init = decl
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Init = &ExprStmt{node: node{expr.Position()}, X: expr}
		}
	}
	if _, err := p.expect(SEMI, "';'"); err != nil {
		return nil, err
	}
	if p.peek().Type != SEMI {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(SEMI, "';'"); err != nil {
		return nil, err
	}
	if p.peek().Type != RPAREN {
		post, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Post = &ExprStmt{node: node{post.Position()}, X: post}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

// ---- expressions ----

// Binary precedence levels, loosest first.
var binaryLevels = [][]TokenType{
	{OR},
	{AND},
	{PIPE},
	{CARET},
	{AMP},
	{EQ, NEQ},
	{LT, LTE, GT, GTE},
	{SHL, SHR},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
	{POW},
}

var binaryOps = map[TokenType]string{
	OR: "||", AND: "&&", PIPE: "|", CARET: "^", AMP: "&",
	EQ: "==", NEQ: "!=", LT: "<", LTE: "<=", GT: ">", GTE: ">=",
	SHL: "<<", SHR: ">>", PLUS: "+", MINUS: "-",
	STAR: "*", SLASH: "/", PERCENT: "%", POW: "**",
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseAssign()
}

var assignOps = map[TokenType]string{
	ASSIGN: "=", PLUSEQ: "+=", MINUSEQ: "-=", STAREQ: "*=", SLASHEQ: "/=", PERCENTEQ: "%=",
}

func (p *Parser) parseAssign() (Expr, error) {
	lhs, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.peek().Type]; ok {
		tok := p.next()
		if !isAssignable(lhs) {
			return nil, p.errorf(tok, "invalid assignment target")
		}
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{node: node{lhs.Position()}, Op: op, Target: lhs, Value: rhs}, nil
	}
	return lhs, nil
}

func isAssignable(e Expr) bool {
	switch t := e.(type) {
	case *Ident:
		return true
	case *TupleLit:
		for _, elem := range t.Elems {
			if _, ok := elem.(*Ident); !ok {
				return false
			}
		}
		return len(t.Elems) > 0
	}
	return false
}

func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return cond, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &CondExpr{node: node{cond.Position()}, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseBinary(level int) (Expr, error) {
	if level >= len(binaryLevels) {
		return p.parseUnary()
	}
	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		matched := false
		for _, cand := range binaryLevels[level] {
			if tt == cand {
				matched = true
				break
			}
		}
		if !matched {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{node: node{lhs.Position()}, Op: binaryOps[tt], X: lhs, Y: rhs}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case MINUS:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{node: node{tok.Pos}, Op: "-", X: x}, nil
	case NOT:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{node: node{tok.Pos}, Op: "!", X: x}, nil
	case TILDE:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{node: node{tok.Pos}, Op: "~", X: x}, nil
	case KWNEW:
		// "new" is tolerated in front of constructor calls and ignored.
		p.next()
		return p.parseUnary()
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case INCREMENT, DECREMENT:
			tok := p.next()
			id, ok := x.(*Ident)
			if !ok {
				return nil, p.errorf(tok, "%s requires a variable", tok.Text)
			}
			op := "+="
			if tok.Type == DECREMENT {
				op = "-="
			}
			one := &NumberLit{node: node{tok.Pos}, Mantissa: "1"}
			x = &AssignExpr{node: node{id.Position()}, Op: op, Target: id, Value: one}
		case DOT:
			p.next()
			name, err := p.expect(IDENT, "member name")
			if err != nil {
				return nil, err
			}
			x = &MemberExpr{node: node{x.Position()}, X: x, Name: name.Text}
		case LPAREN:
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			x = &CallExpr{node: node{x.Position()}, Callee: x, Args: args}
		case LBRACE:
			opts, ok, err := p.tryParseCallOpts()
			if err != nil {
				return nil, err
			}
			if !ok {
				return x, nil
			}
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			x = &CallExpr{node: node{x.Position()}, Callee: x, Opts: opts, Args: args}
		case LBRACKET:
			p.next()
			// x[] denotes an array type.
			if p.peek().Type == RBRACKET {
				p.next()
				x = &IndexExpr{node: node{x.Position()}, X: x, Index: nil}
				continue
			}
			var lo Expr
			if p.peek().Type != COLON {
				lo, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
			if p.accept(COLON) {
				var hi Expr
				if p.peek().Type != RBRACKET {
					hi, err = p.parseExpr()
					if err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(RBRACKET, "']'"); err != nil {
					return nil, err
				}
				x = &SliceExpr{node: node{x.Position()}, X: x, Lo: lo, Hi: hi}
			} else {
				if _, err := p.expect(RBRACKET, "']'"); err != nil {
					return nil, err
				}
				x = &IndexExpr{node: node{x.Position()}, X: x, Index: lo}
			}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	var args []Expr
	for p.peek().Type != RPAREN {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

// tryParseCallOpts parses a {key: value, ...} call-options block. The block
// is only treated as options when a '(' argument list follows; otherwise
// the parser rewinds and leaves the '{' alone.
func (p *Parser) tryParseCallOpts() ([]CallOption, bool, error) {
	save := p.pos
	p.next() // {
	var opts []CallOption
	for p.peek().Type != RBRACE {
		key := p.peek()
		if key.Type != IDENT {
			p.pos = save
			return nil, false, nil
		}
		p.next()
		if !p.accept(COLON) {
			p.pos = save
			return nil, false, nil
		}
		value, err := p.parseExpr()
		if err != nil {
			p.pos = save
			return nil, false, nil
		}
		opts = append(opts, CallOption{Key: key.Text, Value: value})
		if !p.accept(COMMA) {
			break
		}
	}
	if !p.accept(RBRACE) || p.peek().Type != LPAREN {
		p.pos = save
		return nil, false, nil
	}
	return opts, true, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case IDENT:
		// x => body
		if p.peekAt(1).Type == ARROW {
			p.next()
			p.next()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &LambdaExpr{node: node{tok.Pos}, Params: []string{tok.Text}, Body: body}, nil
		}
		p.next()
		return &Ident{node: node{tok.Pos}, Name: tok.Text}, nil
	case NUMBER:
		p.next()
		mantissa, exp := tok.Text, ""
		for i := 0; i < len(tok.Text); i++ {
			if tok.Text[i] == 'e' || tok.Text[i] == 'E' {
				mantissa, exp = tok.Text[:i], tok.Text[i+1:]
				break
			}
		}
		return &NumberLit{node: node{tok.Pos}, Mantissa: mantissa, Exp: exp}, nil
	case HEX:
		p.next()
		return &HexLit{node: node{tok.Pos}, Nibbles: tok.Text[2:]}, nil
	case STRING:
		p.next()
		return &StringLit{node: node{tok.Pos}, Value: tok.Text}, nil
	case KWTRUE:
		p.next()
		return &BoolLit{node: node{tok.Pos}, Value: true}, nil
	case KWFALSE:
		p.next()
		return &BoolLit{node: node{tok.Pos}, Value: false}, nil
	case LBRACKET:
		p.next()
		lit := &ArrayLit{node: node{tok.Pos}}
		for p.peek().Type != RBRACKET {
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lit.Elems = append(lit.Elems, elem)
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(RBRACKET, "']'"); err != nil {
			return nil, err
		}
		return lit, nil
	case LPAREN:
		return p.parseParenOrLambda()
	}
	return nil, p.errorf(tok, "unexpected %q", tok.Text)
}

// parseParenOrLambda handles "(expr)", "(a, b, ...)" tuples and
// "(a, b) => body" lambdas.
func (p *Parser) parseParenOrLambda() (Expr, error) {
	tok := p.next() // (
	var elems []Expr
	for p.peek().Type != RPAREN {
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	if p.peek().Type == ARROW {
		arrow := p.next()
		var params []string
		for _, elem := range elems {
			id, ok := elem.(*Ident)
			if !ok {
				return nil, p.errorf(arrow, "lambda parameters must be identifiers")
			}
			params = append(params, id.Name)
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &LambdaExpr{node: node{tok.Pos}, Params: params, Body: body}, nil
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return &TupleLit{node: node{tok.Pos}, Elems: elems}, nil
}
