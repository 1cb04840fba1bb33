package query

import (
	"strings"

	"github.com/liamw1/oxibooru/common"
)

// SortDirection is the ,asc / ,desc suffix of a sort token.
type SortDirection uint8

const (
	SortDescending SortDirection = iota
	SortAscending
)

// ParsedSort is a sort token broken into its style name and direction
// (spec.md §4.D: "sort:<style>[,asc|,desc]").
type ParsedSort struct {
	Style     string
	Direction SortDirection
}

// ParseSort splits a sort token's value into style and direction,
// validating style against the caller-supplied allowed set (resource
// specific — the set of valid styles differs between posts, tags,
// pools, users, comments).
func ParseSort(value string, allowed map[string]bool) (ParsedSort, error) {
	style, dir, hasDir := strings.Cut(value, ",")
	ps := ParsedSort{Style: style, Direction: SortDescending}
	if hasDir {
		switch dir {
		case "asc":
			ps.Direction = SortAscending
		case "desc":
			ps.Direction = SortDescending
		default:
			return ParsedSort{}, common.NewErrorf(common.KindMalformedInput,
				"unknown sort direction %q", dir)
		}
	}
	if !allowed[style] {
		return ParsedSort{}, common.NewErrorf(common.KindMalformedInput,
			"unknown sort style %q", style)
	}
	return ps, nil
}
