package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokString
	TokEquals
	TokColon
	TokLParen
	TokRParen
	TokQuestion
	TokDollar
	TokStar
	TokComma
	TokSemicolon
	TokArrow
	TokDoubleDash
	TokNewline
)

var tokenNames = map[TokenKind]string{
	TokEOF:        "end of input",
	TokIdent:      "identifier",
	TokString:     "string",
	TokEquals:     "'='",
	TokColon:      "':'",
	TokLParen:     "'('",
	TokRParen:     "')'",
	TokQuestion:   "'?'",
	TokDollar:     "'$'",
	TokStar:       "'*'",
	TokComma:      "','",
	TokSemicolon:  "';'",
	TokArrow:      "'->'",
	TokDoubleDash: "'--'",
	TokNewline:    "newline",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is one lexical token with its source position.
//
// Indent is the leading indentation (in columns) of the line the token is
// on. SpaceBefore is true when whitespace separates the token from the
// previous one on the same line.
type Token struct {
	Kind        TokenKind
	Text        string
	Line        int
	Column      int
	Indent      int
	SpaceBefore bool

	// Blank is set on newline tokens that end a line with no tokens and no
	// comment.
	Blank bool
}

func (t Token) String() string {
	if t.Kind == TokIdent || t.Kind == TokString {
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
	return t.Kind.String()
}

// IsIdentChar reports whether r may appear in an unquoted identifier.
func IsIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '-' || r == '.' || r == '/' || r == '@'
}

// Lex splits text into tokens. The result always ends with TokEOF.
func Lex(text string) ([]Token, error) {
	lx := &lexer{src: text, line: 1, col: 1}
	return lx.run()
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int

	indent       int
	atLineStart  bool
	lineHasToken bool
	lineComment  bool
	space        bool

	tokens []Token
}

func (lx *lexer) peekRune(offset int) rune {
	p := lx.pos + offset
	if p >= len(lx.src) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(lx.src[p:])
	return r
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
	lx.pos += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) emit(kind TokenKind, text string, line, col int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:        kind,
		Text:        text,
		Line:        line,
		Column:      col,
		Indent:      lx.indent,
		SpaceBefore: lx.space,
	})
	lx.space = false
	lx.lineHasToken = true
	lx.atLineStart = false
}

func (lx *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

func (lx *lexer) run() ([]Token, error) {
	lx.atLineStart = true
	for lx.pos < len(lx.src) {
		r := lx.peekRune(0)
		line, col := lx.line, lx.col

		switch {
		case r == '\n':
			lx.advance()
			lx.tokens = append(lx.tokens, Token{
				Kind:   TokNewline,
				Line:   line,
				Column: col,
				Indent: lx.indent,
				Blank:  !lx.lineHasToken && !lx.lineComment,
			})
			lx.indent = 0
			lx.atLineStart = true
			lx.lineHasToken = false
			lx.lineComment = false
			lx.space = false

		case r == ' ' || r == '\t' || r == '\r':
			lx.advance()
			if lx.atLineStart {
				if r == '\t' {
					lx.indent += 4
				} else if r == ' ' {
					lx.indent++
				}
			} else {
				lx.space = true
			}

		case r == '#':
			for lx.pos < len(lx.src) && lx.peekRune(0) != '\n' {
				lx.advance()
			}
			lx.lineComment = true

		case r == '"':
			s, err := lx.lexString()
			if err != nil {
				return nil, err
			}
			lx.emit(TokString, s, line, col)

		case r == '-' && lx.peekRune(1) == '>':
			lx.advance()
			lx.advance()
			lx.emit(TokArrow, "->", line, col)

		case r == '-' && lx.peekRune(1) == '-' && unicode.IsLetter(lx.peekRune(2)):
			lx.advance()
			lx.advance()
			lx.emit(TokDoubleDash, "--", line, col)

		case IsIdentChar(r):
			start := lx.pos
			for lx.pos < len(lx.src) {
				c := lx.peekRune(0)
				if !IsIdentChar(c) || (c == '-' && lx.peekRune(1) == '>') {
					break
				}
				lx.advance()
			}
			lx.emit(TokIdent, lx.src[start:lx.pos], line, col)

		default:
			kind, ok := punctuation[r]
			if !ok {
				return nil, lx.errorf(line, col, "unexpected character %q", r)
			}
			lx.advance()
			lx.emit(kind, string(r), line, col)
		}
	}

	lx.tokens = append(lx.tokens, Token{Kind: TokEOF, Line: lx.line, Column: lx.col, Indent: lx.indent})
	return lx.tokens, nil
}

var punctuation = map[rune]TokenKind{
	'=': TokEquals,
	':': TokColon,
	'(': TokLParen,
	')': TokRParen,
	'?': TokQuestion,
	'$': TokDollar,
	'*': TokStar,
	',': TokComma,
	';': TokSemicolon,
}

func (lx *lexer) lexString() (string, error) {
	line, col := lx.line, lx.col
	lx.advance() // opening quote

	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return "", lx.errorf(line, col, "unterminated string")
		}
		if r, size := utf8.DecodeRuneInString(lx.src[lx.pos:]); r == utf8.RuneError && size == 1 {
			return "", lx.errorf(lx.line, lx.col, "invalid UTF-8 in string")
		}
		r := lx.advance()
		switch r {
		case '"':
			return b.String(), nil
		case '\\':
			if lx.pos >= len(lx.src) {
				return "", lx.errorf(line, col, "unterminated string")
			}
			esc := lx.advance()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '"', '\\':
				b.WriteRune(esc)
			default:
				return "", lx.errorf(lx.line, lx.col-2, "unknown escape \\%c", esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

// TokenIterator is a cursor over a token slice with lookahead and
// backtracking.
type TokenIterator struct {
	tokens []Token
	pos    int
}

// NewTokenIterator returns a cursor at the first token. The slice must end
// with TokEOF.
func NewTokenIterator(tokens []Token) *TokenIterator {
	return &TokenIterator{tokens: tokens}
}

// Peek returns the current token without consuming it.
func (it *TokenIterator) Peek() Token { return it.PeekAt(0) }

// PeekAt returns the token n positions ahead.
func (it *TokenIterator) PeekAt(n int) Token {
	p := it.pos + n
	if p >= len(it.tokens) {
		return it.tokens[len(it.tokens)-1]
	}
	return it.tokens[p]
}

// Next consumes and returns the current token. At EOF it keeps returning EOF.
func (it *TokenIterator) Next() Token {
	tok := it.Peek()
	if it.pos < len(it.tokens)-1 {
		it.pos++
	}
	return tok
}

// NextIs consumes the current token if it has the given kind.
func (it *TokenIterator) NextIs(kind TokenKind) bool {
	if it.Peek().Kind == kind {
		it.Next()
		return true
	}
	return false
}

// Mark returns a position to pass to Restore.
func (it *TokenIterator) Mark() int { return it.pos }

// Restore rewinds the cursor to a position returned by Mark.
func (it *TokenIterator) Restore(mark int) { it.pos = mark }

// Done reports whether the cursor is at EOF.
func (it *TokenIterator) Done() bool { return it.Peek().Kind == TokEOF }
