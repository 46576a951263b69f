package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestLexKinds(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenKind
	}{
		{"a", []TokenKind{TokIdent, TokEOF}},
		{"a=1", []TokenKind{TokIdent, TokEquals, TokIdent, TokEOF}},
		{"a? $b", []TokenKind{TokIdent, TokQuestion, TokDollar, TokIdent, TokEOF}},
		{"a: (b, c)", []TokenKind{TokIdent, TokColon, TokLParen, TokIdent, TokComma, TokIdent, TokRParen, TokEOF}},
		{"--flag", []TokenKind{TokDoubleDash, TokIdent, TokEOF}},
		{"a -> b", []TokenKind{TokIdent, TokArrow, TokIdent, TokEOF}},
		{"a->b", []TokenKind{TokIdent, TokArrow, TokIdent, TokEOF}},
		{"x=*", []TokenKind{TokIdent, TokEquals, TokStar, TokEOF}},
		{`s="a b"`, []TokenKind{TokIdent, TokEquals, TokString, TokEOF}},
		{"a;b", []TokenKind{TokIdent, TokSemicolon, TokIdent, TokEOF}},
		{"a # comment\nb", []TokenKind{TokIdent, TokNewline, TokIdent, TokEOF}},
		{"-5", []TokenKind{TokIdent, TokEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(tokens))
		})
	}
}

func TestLexIdentChars(t *testing.T) {
	tokens, err := Lex("path/to.file_name-1@host")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "path/to.file_name-1@host", tokens[0].Text)
}

func TestLexPositions(t *testing.T) {
	tokens, err := Lex("a\n  bb c")
	require.NoError(t, err)

	require.Equal(t, TokIdent, tokens[0].Kind)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 0, tokens[0].Indent)

	bb := tokens[2]
	assert.Equal(t, "bb", bb.Text)
	assert.Equal(t, 2, bb.Line)
	assert.Equal(t, 3, bb.Column)
	assert.Equal(t, 2, bb.Indent)

	c := tokens[3]
	assert.Equal(t, 2, c.Indent, "indent is per line, not per token")
	assert.True(t, c.SpaceBefore)
	assert.False(t, bb.SpaceBefore, "leading indentation is not a separator on a fresh line")
}

func TestLexBlankLines(t *testing.T) {
	tokens, err := Lex("a\n\n# only comment\nb")
	require.NoError(t, err)

	var newlines []Token
	for _, tok := range tokens {
		if tok.Kind == TokNewline {
			newlines = append(newlines, tok)
		}
	}
	require.Len(t, newlines, 3)
	assert.False(t, newlines[0].Blank)
	assert.True(t, newlines[1].Blank)
	assert.False(t, newlines[2].Blank, "comment lines are not blank")
}

func TestLexStringEscapes(t *testing.T) {
	tokens, err := Lex(`"a \"quoted\" \\ value\n"`)
	require.NoError(t, err)
	assert.Equal(t, "a \"quoted\" \\ value\n", tokens[0].Text)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{`"open`, "unterminated string"},
		{`a=%`, "unexpected character"},
		{`"\q"`, "unknown escape"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Lex(tt.input)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Message, tt.message)
		})
	}
}

func TestTokenIteratorRestore(t *testing.T) {
	tokens, err := Lex("a b c")
	require.NoError(t, err)
	it := NewTokenIterator(tokens)

	assert.Equal(t, "a", it.Next().Text)
	mark := it.Mark()
	assert.Equal(t, "b", it.Next().Text)
	assert.Equal(t, "c", it.Peek().Text)
	assert.Equal(t, TokEOF, it.PeekAt(5).Kind)

	it.Restore(mark)
	assert.Equal(t, "b", it.Next().Text)
	assert.True(t, it.NextIs(TokIdent))
	assert.True(t, it.Done())
	assert.Equal(t, TokEOF, it.Next().Kind)
}
