// Package query tokenizes and parses the structured search language
// of spec.md §4.D into an AST, which db's compiler (§4.E) turns into
// parameterised SQL. Kept as its own package, separate from
// persistence (db/): this package never touches *sql.Tx.
package query

import (
	"strings"

	"github.com/liamw1/oxibooru/common"
)

// Kind distinguishes a token's syntactic role.
type Kind uint8

const (
	KindAnonymous Kind = iota
	KindNamed
	KindSort
	KindSpecial
)

// Token is one whitespace-separated unit of a query string, per
// spec.md §4.D: "[-]<head>[:<value>]".
type Token struct {
	Kind     Kind
	Negated  bool
	Key      string // empty for KindAnonymous
	Value    Value
	Position int // byte offset of the token's start, for error messages
}

// Value is a parsed token value: one of a scalar/wildcard string, a
// range, or a disjunction of scalars (spec.md §4.D "Value grammars").
type Value struct {
	Scalars  []string // len > 1 means a composite disjunction
	Wildcard bool     // Scalars[0] contains an unescaped '*'
	Range    *Range
}

// Range is an inclusive a..b / a.. / ..b bound.
type Range struct {
	Low, High     string
	HasLow, HasHigh bool
}

// Tokenize splits a raw query string into whitespace-separated
// tokens and performs escape processing, per spec.md §4.D's value
// grammar ("escape \:, \*, \,, \\"). It does not yet resolve a token
// into Anonymous/Named/Sort/Special — that happens in Parse.
func Tokenize(query string) ([]rawToken, error) {
	var tokens []rawToken
	pos := 0
	for pos < len(query) {
		for pos < len(query) && isSpace(query[pos]) {
			pos++
		}
		if pos >= len(query) {
			break
		}
		start := pos
		var buf strings.Builder
		for pos < len(query) && !isSpace(query[pos]) {
			c := query[pos]
			if c == '\\' {
				if pos+1 >= len(query) {
					return nil, common.NewErrorf(common.KindMalformedInput,
						"unclosed escape at position %d", start)
				}
				next := query[pos+1]
				if next != ':' && next != '*' && next != ',' && next != '\\' {
					return nil, common.NewErrorf(common.KindMalformedInput,
						"invalid escape '\\%c' at position %d", next, pos)
				}
				buf.WriteByte(next)
				pos += 2
				continue
			}
			buf.WriteByte(c)
			pos++
		}
		tokens = append(tokens, rawToken{text: buf.String(), position: start})
	}
	return tokens, nil
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' }

// rawToken is a decoded but unclassified token, produced by Tokenize
// and consumed by Parse.
type rawToken struct {
	text     string
	position int
}
