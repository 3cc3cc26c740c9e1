// Package parser implements a recursive-descent, precedence-climbing parser
// that turns a token stream into an ast.Program.
//
// The shape follows the teacher's parser: one token of lookahead maintained
// by NextToken, statement parsing panics to the next SEMICOLON/RUN on error
// rather than aborting the whole program, and expression parsing climbs a
// fixed precedence table (spec.md §4.2).
package parser

import (
	"math"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/token"
)

// ParseError is a single grammar-level error.
type ParseError struct {
	Expected string
	Got      string
	Pos      token.Position
}

func (e ParseError) Error() string {
	return "expected " + e.Expected + ", got " + e.Got
}

// Parser consumes tokens from a Lexer and builds an ast.Program.
type Parser struct {
	lex *lexer.Lexer

	cur  token.Token
	peek token.Token

	errors []ParseError
}

// New creates a Parser reading from lex.
func New(lex *lexer.Lexer) *Parser {
	p := &Parser{lex: lex}
	p.next()
	p.next()
	return p
}

// Errors returns all parse errors accumulated so far.
func (p *Parser) Errors() []ParseError { return p.errors }

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) errorf(expected string) {
	p.errors = append(p.errors, ParseError{Expected: expected, Got: p.cur.Text, Pos: p.cur.Pos})
}

func (p *Parser) expect(kind token.Kind, what string) token.Token {
	if p.cur.Kind != kind {
		p.errorf(what)
		return p.cur
	}
	t := p.cur
	p.next()
	return t
}

// recover advances past tokens until a SEMICOLON (consumed) or RUN/EOF, the
// statement-boundary recovery point described in spec.md §4.2.
func (p *Parser) recover() {
	for p.cur.Kind != token.SEMICOLON && p.cur.Kind != token.RUN && p.cur.Kind != token.EOF {
		p.next()
	}
	if p.cur.Kind == token.SEMICOLON {
		p.next()
	}
}

// ParseProgram parses the entire token stream into a Program. Parse errors
// are recorded in Errors(); the returned Program contains every statement
// that parsed successfully up to that point (panic-mode recovery lets the
// driver proceed past a broken step).
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		stmt := p.parseTopStmt()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

func (p *Parser) parseTopStmt() ast.TopStmt {
	switch p.cur.Kind {
	case token.LIBNAME:
		return p.parseLibname()
	case token.OPTIONS:
		return p.parseOptions()
	case token.TITLE:
		return p.parseTitle()
	case token.DATA:
		return p.parseDataStep()
	case token.PROC:
		return p.parseProcStep()
	case token.SEMICOLON:
		p.next()
		return nil
	default:
		p.errorf("LIBNAME, OPTIONS, TITLE, DATA, or PROC")
		p.recover()
		return nil
	}
}

func (p *Parser) parseLibname() ast.TopStmt {
	pos := p.cur.Pos
	p.next() // LIBNAME
	name := p.expect(token.IDENTIFIER, "libref identifier").Text
	path := p.expect(token.STRING, "library path string").Text
	p.expect(token.SEMICOLON, "';'")
	return &ast.LibnameStmt{Libref: name, Path: path, Position: pos}
}

func (p *Parser) parseOptions() ast.TopStmt {
	pos := p.cur.Pos
	p.next() // OPTIONS
	opts := map[string]string{}
	for p.cur.Kind != token.SEMICOLON && p.cur.Kind != token.EOF {
		name := p.expect(token.IDENTIFIER, "option name").Text
		val := ""
		if p.cur.Kind == token.EQUAL {
			p.next()
			if p.cur.Kind == token.STRING || p.cur.Kind == token.IDENTIFIER {
				val = p.cur.Text
				p.next()
			} else if p.cur.Kind == token.NUMBER {
				val = p.cur.Text
				p.next()
			}
		}
		opts[strings.ToUpper(name)] = val
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.OptionsStmt{Options: opts, Position: pos}
}

func (p *Parser) parseTitle() ast.TopStmt {
	pos := p.cur.Pos
	p.next() // TITLE
	text := ""
	if p.cur.Kind == token.STRING {
		text = p.cur.Text
		p.next()
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.TitleStmt{Text: text, Position: pos}
}

func (p *Parser) parseRef() ast.Ref {
	pos := p.cur.Pos
	if token.IsKeyword(p.cur.Kind) {
		p.cur.Kind = token.IDENTIFIER // a keyword spelling names a dataset here, e.g. `data out;`
	}
	first := p.expect(token.IDENTIFIER, "identifier").Text
	if p.cur.Kind == token.DOT {
		p.next()
		if token.IsKeyword(p.cur.Kind) {
			p.cur.Kind = token.IDENTIFIER
		}
		member := p.expect(token.IDENTIFIER, "member identifier").Text
		return ast.Ref{Library: first, Member: member, Position: pos}
	}
	return ast.Ref{Member: first, Position: pos}
}

func (p *Parser) parseDataStep() ast.TopStmt {
	pos := p.cur.Pos
	p.next() // DATA
	outputs := []ast.Ref{p.parseRef()}
	for p.cur.Kind == token.COMMA || p.cur.Kind == token.IDENTIFIER {
		if p.cur.Kind == token.COMMA {
			p.next()
		}
		outputs = append(outputs, p.parseRef())
	}
	p.expect(token.SEMICOLON, "';'")

	var body []ast.Stmt
	for p.cur.Kind != token.RUN && p.cur.Kind != token.EOF {
		stmt := p.parseStmt()
		if stmt != nil {
			body = append(body, stmt)
		}
	}
	if p.cur.Kind == token.RUN {
		p.next()
		p.expect(token.SEMICOLON, "';'")
	} else {
		p.errorf("RUN;")
	}
	return &ast.DataStep{Outputs: outputs, Body: body, Position: pos}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur.Kind {
	case token.SET:
		return p.parseSet()
	case token.MERGE:
		return p.parseMerge()
	case token.INPUT:
		return p.parseInput()
	case token.DATALINES:
		return p.parseDatalines()
	case token.LENGTH:
		return p.parseLength()
	case token.RETAIN:
		return p.parseRetain()
	case token.DROP:
		return p.parseDrop()
	case token.KEEP:
		return p.parseKeep()
	case token.ARRAY:
		return p.parseArray()
	case token.IF:
		return p.parseIf()
	case token.DO:
		return p.parseDo()
	case token.OUTPUT:
		return p.parseOutput()
	case token.BY:
		return p.parseBy()
	case token.IDENTIFIER:
		return p.parseAssign()
	case token.SEMICOLON:
		p.next()
		return nil
	default:
		p.errorf("a DATA step statement")
		p.recover()
		return nil
	}
}

func (p *Parser) parseRefList() []ast.Ref {
	refs := []ast.Ref{p.parseRef()}
	for p.cur.Kind == token.IDENTIFIER {
		refs = append(refs, p.parseRef())
	}
	return refs
}

func (p *Parser) parseSet() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	inputs := p.parseRefList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.SetStmt{Inputs: inputs, Position: pos}
}

func (p *Parser) parseMerge() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	inputs := p.parseRefList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.MergeStmt{Inputs: inputs, Position: pos}
}

func (p *Parser) parseInput() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	var vars []ast.InputVar
	for p.cur.Kind == token.IDENTIFIER {
		name := p.cur.Text
		p.next()
		isStr := false
		if p.cur.Kind == token.DOLLAR {
			isStr = true
			p.next()
		}
		vars = append(vars, ast.InputVar{Name: name, IsString: isStr})
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.InputStmt{Vars: vars, Position: pos}
}

func (p *Parser) parseDatalines() ast.Stmt {
	pos := p.cur.Pos
	p.next() // DATALINES
	p.expect(token.SEMICOLON, "';'")
	// The lexer's SEMICOLON-after-DATALINES trigger has already produced a
	// single STRING token carrying the raw block as the token following
	// the semicolon.
	var lines []string
	if p.cur.Kind == token.STRING {
		lines = strings.Split(p.cur.Text, "\n")
		p.next()
	}
	return &ast.DatalinesStmt{Lines: lines, Position: pos}
}

func (p *Parser) parseLength() ast.Stmt {
	pos := p.cur.Pos
	p.next() // LENGTH
	name := p.expect(token.IDENTIFIER, "variable name").Text
	isStr := false
	length := 8
	if p.cur.Kind == token.DOLLAR {
		isStr = true
		p.next()
	}
	if p.cur.Kind == token.NUMBER {
		length = int(p.cur.Num)
		p.next()
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.LengthStmt{Name: name, IsString: isStr, Length: length, Position: pos}
}

func (p *Parser) parseRetain() ast.Stmt {
	pos := p.cur.Pos
	p.next() // RETAIN
	name := p.expect(token.IDENTIFIER, "variable name").Text
	var initial ast.Expr
	if p.cur.Kind != token.SEMICOLON {
		initial = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.RetainStmt{Name: name, Initial: initial, Position: pos}
}

func (p *Parser) parseNameList() []string {
	var names []string
	for p.cur.Kind == token.IDENTIFIER {
		names = append(names, p.cur.Text)
		p.next()
	}
	return names
}

func (p *Parser) parseDrop() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	names := p.parseNameList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.DropStmt{Names: names, Position: pos}
}

func (p *Parser) parseKeep() ast.Stmt {
	pos := p.cur.Pos
	p.next()
	names := p.parseNameList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.KeepStmt{Names: names, Position: pos}
}

func (p *Parser) parseArray() ast.Stmt {
	pos := p.cur.Pos
	p.next() // ARRAY
	name := p.expect(token.IDENTIFIER, "array name").Text
	p.expect(token.LBRACE, "'{'")
	size := 0
	if p.cur.Kind == token.NUMBER {
		size = int(p.cur.Num)
		p.next()
	}
	p.expect(token.RBRACE, "'}'")
	vars := p.parseNameList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.ArrayStmt{Name: name, Size: size, Vars: vars, Position: pos}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.cur.Pos
	p.next() // IF
	cond := p.parseExpr()
	p.expect(token.THEN, "THEN")
	then := p.parseThenElseArm()
	var elseArm ast.Stmt
	if p.cur.Kind == token.ELSE {
		p.next()
		elseArm = p.parseThenElseArm()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: elseArm, Position: pos}
}

// parseThenElseArm parses either a DO; ... END; block or a single statement,
// matching SAS's `IF expr THEN stmt (ELSE stmt)?` grammar where stmt may
// itself be a block (spec.md §4.2).
func (p *Parser) parseThenElseArm() ast.Stmt {
	if p.cur.Kind == token.DO {
		return p.parseDo()
	}
	return p.parseStmt()
}

func (p *Parser) parseDo() ast.Stmt {
	pos := p.cur.Pos
	p.next() // DO

	var d *ast.DoStmt
	switch {
	case p.cur.Kind == token.IDENTIFIER && p.peek.Kind == token.EQUAL:
		name := p.cur.Text
		p.next() // name
		p.next() // =
		low := p.parseExpr()
		p.expect(token.TO, "TO")
		high := p.parseExpr()
		var step ast.Expr
		if p.cur.Kind == token.BY {
			p.next()
			step = p.parseExpr()
		}
		d = &ast.DoStmt{Kind: ast.DoTo, Var: name, Low: low, High: high, Step: step, Position: pos}
	case p.cur.Kind == token.WHILE:
		p.next()
		p.expect(token.LPAREN, "'('")
		cond := p.parseExpr()
		p.expect(token.RPAREN, "')'")
		d = &ast.DoStmt{Kind: ast.DoWhile, Cond: cond, Position: pos}
	case p.cur.Kind == token.UNTIL:
		p.next()
		p.expect(token.LPAREN, "'('")
		cond := p.parseExpr()
		p.expect(token.RPAREN, "')'")
		d = &ast.DoStmt{Kind: ast.DoUntil, Cond: cond, Position: pos}
	default:
		d = &ast.DoStmt{Kind: ast.DoBlock, Position: pos}
	}

	p.expect(token.SEMICOLON, "';'")
	for p.cur.Kind != token.END && p.cur.Kind != token.EOF {
		stmt := p.parseStmt()
		if stmt != nil {
			d.Body = append(d.Body, stmt)
		}
	}
	p.expect(token.END, "END")
	p.expect(token.SEMICOLON, "';'")
	return d
}

func (p *Parser) parseOutput() ast.Stmt {
	pos := p.cur.Pos
	p.next() // OUTPUT
	var target *ast.Ref
	if p.cur.Kind == token.IDENTIFIER {
		ref := p.parseRef()
		target = &ref
	}
	p.expect(token.SEMICOLON, "';'")
	return &ast.OutputStmt{Target: target, Position: pos}
}

func (p *Parser) parseBySpecList() []ast.BySpec {
	var specs []ast.BySpec
	for p.cur.Kind == token.IDENTIFIER || p.cur.Kind == token.DESCENDING {
		desc := false
		if p.cur.Kind == token.DESCENDING {
			desc = true
			p.next()
		}
		name := p.expect(token.IDENTIFIER, "BY variable").Text
		specs = append(specs, ast.BySpec{Var: name, Descending: desc})
	}
	return specs
}

func (p *Parser) parseBy() ast.Stmt {
	pos := p.cur.Pos
	p.next() // BY
	specs := p.parseBySpecList()
	p.expect(token.SEMICOLON, "';'")
	return &ast.ByStmt{Vars: specs, Position: pos}
}

func (p *Parser) parseAssign() ast.Stmt {
	pos := p.cur.Pos
	name := p.cur.Text
	p.next()
	var index ast.Expr
	if p.cur.Kind == token.LBRACE {
		p.next()
		index = p.parseExpr()
		p.expect(token.RBRACE, "'}'")
	}
	p.expect(token.EQUAL, "'='")
	value := p.parseExpr()
	p.expect(token.SEMICOLON, "';'")
	return &ast.AssignStmt{Name: name, Index: index, Value: value, Position: pos}
}

// ---- PROC steps ----

func (p *Parser) parseProcStep() ast.TopStmt {
	pos := p.cur.Pos
	p.next() // PROC
	step := &ast.ProcStep{Position: pos}
	switch p.cur.Kind {
	case token.PRINT:
		step.Kind = ast.ProcPrint
		p.next()
	case token.SORT:
		step.Kind = ast.ProcSort
		p.next()
	default:
		p.errorf("PRINT or SORT")
		p.recover()
		return step
	}

	for p.cur.Kind != token.SEMICOLON && p.cur.Kind != token.EOF {
		switch {
		case p.cur.Kind == token.DATA:
			p.next()
			p.expect(token.EQUAL, "'='")
			ref := p.parseRef()
			step.Data, step.HasData = ref, true
		case p.cur.Kind == token.OUT:
			p.next()
			p.expect(token.EQUAL, "'='")
			ref := p.parseRef()
			step.Out, step.HasOut = ref, true
		case p.cur.Kind == token.NODUPKEY:
			step.NoDupKey = true
			p.next()
		case p.cur.Kind == token.DUPLICATES:
			step.Duplicates = true
			p.next()
		case p.cur.Kind == token.OBS:
			p.next()
			p.expect(token.EQUAL, "'='")
			if p.cur.Kind == token.NUMBER {
				step.Obs = int(p.cur.Num)
				step.HasObs = true
				p.next()
			}
		default:
			p.errorf("a PROC option")
			p.next()
		}
	}
	p.expect(token.SEMICOLON, "';'")

	for p.cur.Kind != token.RUN && p.cur.Kind != token.EOF {
		switch p.cur.Kind {
		case token.BY:
			p.next()
			step.By = p.parseBySpecList()
			p.expect(token.SEMICOLON, "';'")
		case token.VAR:
			p.next()
			step.Var = p.parseNameList()
			p.expect(token.SEMICOLON, "';'")
		case token.WHERE:
			p.next()
			step.Where = p.parseExpr()
			p.expect(token.SEMICOLON, "';'")
		case token.SEMICOLON:
			p.next()
		default:
			p.errorf("BY, VAR, WHERE, or RUN")
			p.recover()
		}
	}
	if p.cur.Kind == token.RUN {
		p.next()
		p.expect(token.SEMICOLON, "';'")
	} else {
		p.errorf("RUN;")
	}
	return step
}

// ---- Expressions: precedence climbing, lowest to highest as spec.md §4.2:
// OR, AND, NOT (prefix), comparison, additive, multiplicative, unary minus,
// power, postfix call/index, primary.

func (p *Parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur.Kind == token.OR {
		pos := p.cur.Pos
		p.next()
		right := p.parseAnd()
		left = &ast.Binary{Op: ast.BinOr, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseNot()
	for p.cur.Kind == token.AND {
		pos := p.cur.Pos
		p.next()
		right := p.parseNot()
		left = &ast.Binary{Op: ast.BinAnd, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parseNot() ast.Expr {
	if p.cur.Kind == token.NOT {
		pos := p.cur.Pos
		p.next()
		operand := p.parseNot()
		return &ast.Unary{Op: ast.UnaryNot, Operand: operand, Position: pos}
	}
	return p.parseComparison()
}

var comparisonOps = map[token.Kind]ast.BinaryOp{
	token.LTOP: ast.BinLt, token.LT: ast.BinLt,
	token.LEOP: ast.BinLe, token.LE: ast.BinLe,
	token.GTOP: ast.BinGt, token.GT: ast.BinGt,
	token.GEOP: ast.BinGe, token.GE: ast.BinGe,
	token.EQEQ: ast.BinEq, token.EQUAL: ast.BinEq, token.EQ: ast.BinEq,
	token.NEOP: ast.BinNe, token.NE: ast.BinNe,
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAdditive()
	for {
		op, ok := comparisonOps[p.cur.Kind]
		if !ok {
			break
		}
		pos := p.cur.Pos
		p.next()
		right := p.parseAdditive()
		left = &ast.Binary{Op: op, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.PLUS || p.cur.Kind == token.MINUS {
		op := ast.BinAdd
		if p.cur.Kind == token.MINUS {
			op = ast.BinSub
		}
		pos := p.cur.Pos
		p.next()
		right := p.parseMultiplicative()
		left = &ast.Binary{Op: op, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.cur.Kind == token.STAR || p.cur.Kind == token.SLASH {
		op := ast.BinMul
		if p.cur.Kind == token.SLASH {
			op = ast.BinDiv
		}
		pos := p.cur.Pos
		p.next()
		right := p.parseUnary()
		left = &ast.Binary{Op: op, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.cur.Kind == token.MINUS {
		pos := p.cur.Pos
		p.next()
		operand := p.parseUnary()
		return &ast.Unary{Op: ast.UnaryNeg, Operand: operand, Position: pos}
	}
	return p.parsePower()
}

func (p *Parser) parsePower() ast.Expr {
	left := p.parsePostfix()
	if p.cur.Kind == token.STAR && p.peek.Kind == token.STAR {
		pos := p.cur.Pos
		p.next()
		p.next()
		right := p.parseUnary() // right-associative
		return &ast.Binary{Op: ast.BinPow, Left: left, Right: right, Position: pos}
	}
	return left
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.LBRACE:
			if ref, ok := expr.(*ast.VarRef); ok {
				pos := p.cur.Pos
				p.next()
				index := p.parseExpr()
				p.expect(token.RBRACE, "'}'")
				expr = &ast.ArrayRef{Name: ref.Name, Index: index, Position: pos}
				continue
			}
			return expr
		case token.LPAREN:
			if ref, ok := expr.(*ast.VarRef); ok {
				pos := p.cur.Pos
				p.next()
				var args []ast.Expr
				for p.cur.Kind != token.RPAREN && p.cur.Kind != token.EOF {
					args = append(args, p.parseExpr())
					if p.cur.Kind == token.COMMA {
						p.next()
					}
				}
				p.expect(token.RPAREN, "')'")
				expr = &ast.Call{Name: ref.Name, Args: args, Position: pos}
				continue
			}
			return expr
		}
		return expr
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case token.NUMBER:
		n := &ast.NumLit{Value: p.cur.Num, Position: p.cur.Pos}
		p.next()
		return n
	case token.STRING:
		s := &ast.StrLit{Value: p.cur.Text, Position: p.cur.Pos}
		p.next()
		return s
	case token.IDENTIFIER:
		v := &ast.VarRef{Name: p.cur.Text, Position: p.cur.Pos}
		p.next()
		return v
	case token.LPAREN:
		p.next()
		e := p.parseExpr()
		p.expect(token.RPAREN, "')'")
		return e
	case token.MINUS:
		return p.parseUnary()
	default:
		p.errorf("an expression")
		pos := p.cur.Pos
		p.next()
		return &ast.NumLit{Value: math.NaN(), Position: pos}
	}
}
