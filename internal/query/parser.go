package query

import "fmt"

// Parse parses a single query.
func Parse(text string) (*Query, error) {
	tokens, err := Lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{it: NewTokenIterator(tokens)}
	q, err := p.parseTags(false)
	if err != nil {
		return nil, err
	}
	if tok := p.it.Peek(); tok.Kind != TokEOF {
		return nil, p.errorAt(tok, "unexpected %s", tok)
	}
	return q, nil
}

// MustParse is like Parse but panics on error. Use only with constant input.
func MustParse(text string) *Query {
	q, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("query.MustParse(%q): %v", text, err))
	}
	return q
}

// ParseSignature parses "inputs -> outputs". Without an arrow the outputs
// are empty.
func ParseSignature(text string) (inputs, outputs *Query, err error) {
	tokens, err := Lex(text)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{it: NewTokenIterator(tokens)}

	inputs, err = p.parseTags(false)
	if err != nil {
		return nil, nil, err
	}
	outputs = New()
	if p.it.NextIs(TokArrow) {
		outputs, err = p.parseTags(false)
		if err != nil {
			return nil, nil, err
		}
	}
	if tok := p.it.Peek(); tok.Kind != TokEOF {
		return nil, nil, p.errorAt(tok, "unexpected %s", tok)
	}
	return inputs, outputs, nil
}

type parser struct {
	it *TokenIterator
}

func (p *parser) errorAt(tok Token, format string, args ...any) error {
	return &ParseError{Line: tok.Line, Column: tok.Column, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.it.Next()
	if tok.Kind != kind {
		return tok, p.errorAt(tok, "expected %s, found %s", kind, tok)
	}
	return tok, nil
}

// parseTags reads tags until EOF, an arrow, a semicolon, or (when nested)
// a closing paren, which is left for the caller.
func (p *parser) parseTags(nested bool) (*Query, error) {
	q := &Query{Tags: []QueryTag{}}
	for {
		tok := p.it.Peek()
		switch tok.Kind {
		case TokEOF, TokArrow, TokSemicolon:
			if nested {
				return nil, p.errorAt(tok, "unclosed '(': found %s", tok)
			}
			return q, nil
		case TokRParen:
			if !nested {
				return nil, p.errorAt(tok, "unexpected ')'")
			}
			return q, nil
		case TokComma, TokNewline:
			p.it.Next()
			continue
		}

		tag, err := p.parseTag()
		if err != nil {
			return nil, err
		}
		q.Tags = append(q.Tags, tag)
	}
}

func (p *parser) parseTag() (QueryTag, error) {
	tok := p.it.Next()
	switch tok.Kind {
	case TokDoubleDash:
		name, err := p.expect(TokIdent)
		if err != nil {
			return QueryTag{}, err
		}
		return QueryTag{Attr: name.Text, Value: BoolValue(true), IsFlag: true}, nil

	case TokDollar:
		name, err := p.expect(TokIdent)
		if err != nil {
			return QueryTag{}, err
		}
		tag := QueryTag{Attr: name.Text, IsParameter: true, ParamName: name.Text}
		if p.it.Peek().Kind == TokQuestion && !p.it.Peek().SpaceBefore {
			p.it.Next()
			tag.Optional = true
		}
		return tag, nil

	case TokLParen:
		nested, err := p.parseNested()
		if err != nil {
			return QueryTag{}, err
		}
		return QueryTag{Value: nested}, nil

	case TokIdent:
		return p.parseAttrTag(tok)
	}
	return QueryTag{}, p.errorAt(tok, "unexpected %s", tok)
}

// parseNested reads "tags)" after an opening paren.
func (p *parser) parseNested() (*Query, error) {
	q, err := p.parseTags(true)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *parser) parseAttrTag(name Token) (QueryTag, error) {
	tag := QueryTag{Attr: name.Text}

	if next := p.it.Peek(); next.Kind == TokQuestion && !next.SpaceBefore {
		p.it.Next()
		tag.Optional = true
	}

	switch p.it.Peek().Kind {
	case TokEquals:
		p.it.Next()
		if err := p.parseValue(&tag); err != nil {
			return QueryTag{}, err
		}

	case TokColon:
		p.it.Next()
		open := p.it.Peek()
		if open.Kind != TokLParen {
			return QueryTag{}, p.errorAt(open, "expected '(' after ':', found %s", open)
		}
		p.it.Next()
		nested, err := p.parseNested()
		if err != nil {
			return QueryTag{}, err
		}
		tag.Value = nested

	case TokLParen:
		p.it.Next()
		nested, err := p.parseNested()
		if err != nil {
			return QueryTag{}, err
		}
		tag.Value = nested
	}
	return tag, nil
}

func (p *parser) parseValue(tag *QueryTag) error {
	tok := p.it.Next()
	switch tok.Kind {
	case TokStar:
		tag.Value = Star{}
	case TokDollar:
		name, err := p.expect(TokIdent)
		if err != nil {
			return err
		}
		tag.IsParameter = true
		tag.ParamName = name.Text
	case TokString:
		tag.Value = StringValue(tok.Text)
	case TokIdent:
		if n, ok := parseIntLiteral(tok.Text); ok {
			tag.Value = IntValue(n)
		} else {
			tag.Value = StringValue(tok.Text)
		}
	case TokLParen:
		nested, err := p.parseNested()
		if err != nil {
			return err
		}
		tag.Value = nested
	default:
		return p.errorAt(tok, "expected value after '=', found %s", tok)
	}
	return nil
}
