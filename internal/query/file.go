package query

// ParseFile parses a multi-query source.
//
// Lines starting with # are comments. A line indented deeper than the first
// line of the current query continues it; a semicolon, a blank line, or a
// line at the same or shallower indentation starts a new query. Newlines
// inside parentheses never split a query.
func ParseFile(text string) ([]*Query, error) {
	tokens, err := Lex(text)
	if err != nil {
		return nil, err
	}

	var (
		queries     []*Query
		group       []Token
		groupIndent int
		depth       int
		lastLine    int
	)

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		end := group[len(group)-1]
		group = append(group, Token{Kind: TokEOF, Line: end.Line, Column: end.Column + len(end.Text)})
		p := &parser{it: NewTokenIterator(group)}
		q, err := p.parseTags(false)
		if err != nil {
			return err
		}
		if tok := p.it.Peek(); tok.Kind != TokEOF {
			return p.errorAt(tok, "unexpected %s", tok)
		}
		queries = append(queries, q)
		group = nil
		return nil
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokEOF:
			if err := flush(); err != nil {
				return nil, err
			}
			return queries, nil

		case TokSemicolon:
			if depth == 0 {
				if err := flush(); err != nil {
					return nil, err
				}
				continue
			}

		case TokNewline:
			if tok.Blank && depth == 0 {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			continue
		}

		firstOnLine := tok.Line != lastLine
		lastLine = tok.Line
		if firstOnLine && depth == 0 && len(group) > 0 && tok.Indent <= groupIndent {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if len(group) == 0 {
			groupIndent = tok.Indent
		}

		switch tok.Kind {
		case TokLParen:
			depth++
		case TokRParen:
			if depth > 0 {
				depth--
			}
		}
		group = append(group, tok)
	}
	return queries, nil
}
