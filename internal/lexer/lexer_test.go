package lexer_test

import (
	"testing"

	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/token"
)

func kinds(t *testing.T, source string) []token.Kind {
	t.Helper()
	l := lexer.New(source)
	var out []token.Kind
	for {
		tok := l.NextToken()
		out = append(out, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out
}

func TestLexer_KeywordsCaseInsensitive(t *testing.T) {
	for _, src := range []string{"data", "Data", "DATA", "DaTa"} {
		ks := kinds(t, src)
		if len(ks) < 1 || ks[0] != token.DATA {
			t.Errorf("%q: got %v, want first token DATA", src, ks)
		}
	}
}

func TestLexer_Identifiers(t *testing.T) {
	ks := kinds(t, "x1 foo_bar")
	want := []token.Kind{token.IDENTIFIER, token.IDENTIFIER, token.EOF}
	if len(ks) != len(want) {
		t.Fatalf("got %v, want %v", ks, want)
	}
	for i, w := range want {
		if ks[i] != w {
			t.Errorf("token %d = %v, want %v", i, ks[i], w)
		}
	}
}

func TestLexer_Numbers(t *testing.T) {
	l := lexer.New("3.14")
	tok := l.NextToken()
	if tok.Kind != token.NUMBER || tok.Num != 3.14 {
		t.Errorf("got %+v, want NUMBER 3.14", tok)
	}
}

func TestLexer_StringLiteral(t *testing.T) {
	l := lexer.New(`"hello world"`)
	tok := l.NextToken()
	if tok.Kind != token.STRING || tok.Text != "hello world" {
		t.Errorf("got %+v, want STRING \"hello world\"", tok)
	}
}

func TestLexer_UnterminatedStringReportsError(t *testing.T) {
	l := lexer.New(`"unterminated`)
	l.NextToken()
	if len(l.Errors()) == 0 {
		t.Error("want an UnterminatedString error")
	}
}

func TestLexer_DatalinesBlockSplitsLines(t *testing.T) {
	l := lexer.New("datalines;\nfoo bar\nbaz qux\n;\n")
	// DATALINES
	if tok := l.NextToken(); tok.Kind != token.DATALINES {
		t.Fatalf("got %v, want DATALINES", tok.Kind)
	}
	// SEMICOLON triggers the raw-block read on the next token
	if tok := l.NextToken(); tok.Kind != token.SEMICOLON {
		t.Fatalf("got %v, want SEMICOLON", tok.Kind)
	}
	tok := l.NextToken()
	if tok.Kind != token.STRING {
		t.Fatalf("got %v, want STRING block", tok.Kind)
	}
	want := "foo bar\nbaz qux"
	if tok.Text != want {
		t.Errorf("got %q, want %q", tok.Text, want)
	}
}

func TestLexer_TracksLineAndColumn(t *testing.T) {
	l := lexer.New("data\nout;")
	l.NextToken() // data, line 1
	tok := l.NextToken()
	if tok.Pos.Line != 2 {
		t.Errorf("got line %d, want 2", tok.Pos.Line)
	}
}
