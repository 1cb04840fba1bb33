package query

import (
	"strconv"
	"strings"

	"github.com/liamw1/oxibooru/common"
)

// Query is the parsed form of a full search string: zero or more
// filter tokens and an optional sort. Anonymous tokens carry no field;
// the compiler decides which field they match.
type Query struct {
	Tokens []Token
	Sort   *Token
}

// Parse tokenizes and classifies raw into a Query, per spec.md §4.D.
func Parse(raw string) (Query, error) {
	rawTokens, err := Tokenize(raw)
	if err != nil {
		return Query{}, err
	}

	var q Query
	for _, rt := range rawTokens {
		tok, err := classify(rt)
		if err != nil {
			return Query{}, err
		}
		if tok.Kind == KindSort {
			t := tok
			q.Sort = &t
			continue
		}
		q.Tokens = append(q.Tokens, tok)
	}
	return q, nil
}

func classify(rt rawToken) (Token, error) {
	text := rt.text
	negated := false
	if strings.HasPrefix(text, "-") {
		negated = true
		text = text[1:]
	}

	key, value, hasKey := splitKey(text)

	var tok Token
	tok.Negated = negated
	tok.Position = rt.position

	switch {
	case !hasKey:
		tok.Kind = KindAnonymous
		v, err := parseValue(value, rt.position)
		if err != nil {
			return Token{}, err
		}
		tok.Value = v
	case key == "sort":
		tok.Kind = KindSort
		tok.Key = value
	case key == "special":
		tok.Kind = KindSpecial
		tok.Key = value
	default:
		tok.Kind = KindNamed
		tok.Key = key
		v, err := parseValue(value, rt.position)
		if err != nil {
			return Token{}, err
		}
		tok.Value = v
	}
	return tok, nil
}

// splitKey splits "key:value" on the first unescaped colon (escaping
// already resolved by Tokenize, so this is a plain first-colon split).
// An anonymous token (no colon) returns hasKey=false and value=text.
func splitKey(text string) (key, value string, hasKey bool) {
	i := strings.IndexByte(text, ':')
	if i < 0 {
		return "", text, false
	}
	return text[:i], text[i+1:], true
}

// parseValue classifies a token's value per spec.md §4.D: range,
// composite disjunction, or scalar/wildcard.
func parseValue(s string, pos int) (Value, error) {
	if i := strings.Index(s, ".."); i >= 0 {
		low, high := s[:i], s[i+2:]
		r := &Range{}
		if low != "" {
			r.HasLow, r.Low = true, low
		}
		if high != "" {
			r.HasHigh, r.High = true, high
		}
		if r.HasLow && r.HasHigh {
			// Numeric bounds compare as numbers; anything else (dates)
			// compares as text.
			reversed := low > high
			lf, lerr := strconv.ParseFloat(low, 64)
			hf, herr := strconv.ParseFloat(high, 64)
			if lerr == nil && herr == nil {
				reversed = lf > hf
			}
			if reversed {
				return Value{}, common.NewErrorf(common.KindMalformedInput,
					"malformed range %q at position %d: low > high", s, pos)
			}
		}
		return Value{Range: r}, nil
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		return Value{Scalars: parts}, nil
	}

	return Value{Scalars: []string{s}, Wildcard: strings.Contains(s, "*")}, nil
}
