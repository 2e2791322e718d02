// Package scanner implements the lexical scanner, a concrete Token Source
// collaborator. It is not part of the compiler's core (the
// parser/analyzer/emitter triad), but a conforming implementation is
// required to drive the pipeline end to end.
package scanner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ifjc/ifjc/lang/token"
)

// Scanner tokenizes a source buffer, one rune at a time, in the style of a
// hand-rolled recursive-descent lexer: a single-character lookahead (cur)
// advanced by advance, with no backtracking in the byte stream itself.
type Scanner struct {
	src []byte

	cur       rune
	off, roff int
	line, col int

	pending    *token.Token
	hasPending bool
}

// New returns a Scanner ready to tokenize src.
func New(src []byte) *Scanner {
	s := &Scanner{src: src, line: 1, col: 0}
	s.advance()
	return s
}

var (
	_ interface {
		Next() token.Token
		PushBack(token.Token)
	} = (*Scanner)(nil)
)

// PushBack implements source.Source.
func (s *Scanner) PushBack(tok token.Token) {
	if s.hasPending {
		panic("scanner: PushBack called twice without an intervening Next")
	}
	s.pending = &tok
	s.hasPending = true
}

// Next implements source.Source.
func (s *Scanner) Next() token.Token {
	if s.hasPending {
		s.hasPending = false
		tok := *s.pending
		s.pending = nil
		return tok
	}
	return s.scan()
}

func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = -1
		return
	}
	if s.cur == '\n' {
		s.line++
		s.col = 0
	}
	s.off = s.roff
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
	}
	s.roff += w
	s.cur = r
	s.col++
}

func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		for isWhitespace(s.cur) {
			s.advance()
		}
		if s.cur == '/' && s.peek() == '/' {
			for s.cur != '\n' && s.cur != -1 {
				s.advance()
			}
			continue
		}
		break
	}
}

func (s *Scanner) scan() token.Token {
	s.skipWhitespaceAndComments()
	line, col := s.line, s.col

	switch {
	case s.cur == -1:
		return token.Token{Kind: token.EOF, Line: line, Col: col}

	case isLetter(s.cur):
		lit := s.ident()
		return token.Token{Kind: token.LookupKeyword(lit), Lexeme: lit, Line: line, Col: col}

	case isDigit(s.cur):
		kind, lit := s.number()
		return token.Token{Kind: kind, Lexeme: lit, Line: line, Col: col}

	case s.cur == '"':
		lit, ok := s.stringLit()
		if !ok {
			return token.Token{Kind: token.ILLEGAL, Lexeme: lit, Line: line, Col: col}
		}
		return token.Token{Kind: token.STRING_LIT, Lexeme: lit, Line: line, Col: col}
	}

	cur := s.cur
	s.advance()
	mk := func(k token.Kind) token.Token { return token.Token{Kind: k, Lexeme: k.String(), Line: line, Col: col} }

	switch cur {
	case '+':
		return mk(token.PLUS)
	case '-':
		if s.cur == '>' {
			s.advance()
			return mk(token.ARROW)
		}
		return mk(token.MINUS)
	case '*':
		return mk(token.STAR)
	case '/':
		return mk(token.SLASH)
	case '(':
		return mk(token.LPAREN)
	case ')':
		return mk(token.RPAREN)
	case '{':
		return mk(token.LBRACE)
	case '}':
		return mk(token.RBRACE)
	case ':':
		return mk(token.COLON)
	case ',':
		return mk(token.COMMA)
	case '!':
		if s.cur == '=' {
			s.advance()
			return mk(token.NEQ)
		}
		return mk(token.BANG)
	case '=':
		if s.cur == '=' {
			s.advance()
			return mk(token.EQ)
		}
		return mk(token.ASSIGN)
	case '<':
		if s.cur == '=' {
			s.advance()
			return mk(token.LE)
		}
		return mk(token.LT)
	case '>':
		if s.cur == '=' {
			s.advance()
			return mk(token.GE)
		}
		return mk(token.GT)
	case '?':
		if s.cur == '?' {
			s.advance()
			return mk(token.NILCOAL)
		}
		return mk(token.QUESTION)
	default:
		return token.Token{Kind: token.ILLEGAL, Lexeme: string(cur), Line: line, Col: col}
	}
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

// number scans an integer or double literal. A double has a mandatory
// fractional part and/or an exponent; anything else stays an integer.
func (s *Scanner) number() (token.Kind, string) {
	start := s.off
	for isDigit(s.cur) {
		s.advance()
	}
	kind := token.INT_LIT
	if s.cur == '.' && isDigit(rune(s.peek())) {
		kind = token.DOUBLE_LIT
		s.advance()
		for isDigit(s.cur) {
			s.advance()
		}
	}
	if s.cur == 'e' || s.cur == 'E' {
		kind = token.DOUBLE_LIT
		s.advance()
		if s.cur == '+' || s.cur == '-' {
			s.advance()
		}
		for isDigit(s.cur) {
			s.advance()
		}
	}
	return kind, string(s.src[start:s.off])
}

// stringLit scans a double-quoted string literal, decoding the supported
// escape sequences. The returned lexeme is the decoded value (without
// quotes); it is the emitter's job to re-escape it for IFJcode (§4.2).
func (s *Scanner) stringLit() (string, bool) {
	s.advance() // opening quote
	var sb strings.Builder
	for {
		if s.cur == -1 || s.cur == '\n' {
			return sb.String(), false
		}
		if s.cur == '"' {
			s.advance()
			return sb.String(), true
		}
		if s.cur == '\\' {
			s.advance()
			switch s.cur {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '0':
				sb.WriteByte(0)
			default:
				return sb.String(), false
			}
			s.advance()
			continue
		}
		sb.WriteRune(s.cur)
		s.advance()
	}
}

func isWhitespace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' ||
		r >= utf8.RuneSelf && unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
