package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/query"
)

// maxLimit hard-caps pagination, per spec.md §4.E.
const maxLimit = 1000

// postColumns maps a query-language field name to the base posts
// column it filters, for fields that don't need a statistics join.
// Grounded on spec.md §4.E: "each named token maps to a predicate
// clause against one logical column".
var postColumns = map[string]string{
	"id":       "posts.id",
	"safety":   "posts.safety",
	"type":     "posts.type",
	"source":   "posts.source",
	"file-size": "posts.file_size",
}

// postStatisticsColumns maps a field name requiring the post_statistics
// join to its column there (spec.md §4.E: "tag-count ->
// post_statistics.tag_count").
var postStatisticsColumns = map[string]string{
	"tag-count":      "post_statistics.tag_count",
	"pool-count":     "post_statistics.pool_count",
	"note-count":     "post_statistics.note_count",
	"comment-count":  "post_statistics.comment_count",
	"relation-count": "post_statistics.relation_count",
	"score":          "post_statistics.score",
	"fav-count":      "post_statistics.favorite_count",
}

// PostSearchRequest is the input to SearchPosts, per spec.md §4.E:
// "parsed query + authenticated user + requested field list +
// offset/limit".
type PostSearchRequest struct {
	Query       query.Query
	CallerID    *int64 // nil for an anonymous caller
	CallerRank  common.Rank
	SafetyOK    bool // config's EnableSafety: caller may view unsafe posts
	Fields      []string
	Offset      int
	Limit       int
}

// PostSearchResult is the projected rows plus the total matching
// count, which SearchPosts reads with a second COUNT(*) query in the
// same transaction (spec.md §4.E).
type PostSearchResult struct {
	IDs   []int64
	Total int64
}

// SearchPosts compiles req into one parameterised statement and a
// companion COUNT(*) statement with the same predicates, applying field
// projection before joining any statistics table — the performance
// rule spec.md §4.E calls "the reason the core exists".
func SearchPosts(tx *sql.Tx, req PostSearchRequest) (PostSearchResult, error) {
	builder := sq.Select("posts.id").From("posts")
	countBuilder := sq.Select("count(*)").From("posts")

	// Authorization is injected as a leading conjunct (spec.md §4.E).
	if !req.SafetyOK {
		builder = builder.Where(squirrel.NotEq{"posts.safety": common.SafetyUnsafe})
		countBuilder = countBuilder.Where(squirrel.NotEq{"posts.safety": common.SafetyUnsafe})
	}

	needsStats := fieldSetNeedsStatistics(req.Fields, req.Query)
	if needsStats {
		builder = builder.Join("post_statistics ON post_statistics.post_id = posts.id")
	}

	countJoined := false
	for _, tok := range req.Query.Tokens {
		pred, joinStats, err := compilePostToken(tok, req.CallerID)
		if err != nil {
			return PostSearchResult{}, err
		}
		if joinStats && !needsStats {
			builder = builder.Join("post_statistics ON post_statistics.post_id = posts.id")
			needsStats = true
		}
		if joinStats && !countJoined {
			countBuilder = countBuilder.Join("post_statistics ON post_statistics.post_id = posts.id")
			countJoined = true
		}
		if tok.Negated {
			sqlText, args := predToSQL(pred)
			builder = builder.Where(squirrel.Expr("NOT ("+sqlText+")", args...))
		} else {
			builder = builder.Where(pred)
		}
		countBuilder = applyTokenToCount(countBuilder, tok, pred)
	}

	limit := req.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	builder = orderPosts(builder, req.Query.Sort).Offset(uint64(req.Offset)).Limit(uint64(limit))

	rows, err := builder.RunWith(tx).Query()
	if err != nil {
		return PostSearchResult{}, classifyPQError(err)
	}
	defer rows.Close()

	var result PostSearchResult
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return PostSearchResult{}, classifyPQError(err)
		}
		result.IDs = append(result.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return PostSearchResult{}, classifyPQError(err)
	}

	if err := countBuilder.RunWith(tx).QueryRow().Scan(&result.Total); err != nil {
		return PostSearchResult{}, classifyPQError(err)
	}
	return result, nil
}

// predToSQL renders a squirrel Sqlizer back to bare SQL text and its
// placeholder args for negation wrapping. Values stay bound through
// squirrel's own placeholder args, so this never interpolates user
// input directly.
func predToSQL(pred squirrel.Sqlizer) (string, []interface{}) {
	sqlText, args, _ := pred.ToSql()
	return sqlText, args
}

func applyTokenToCount(b squirrel.SelectBuilder, tok query.Token, pred squirrel.Sqlizer) squirrel.SelectBuilder {
	if tok.Negated {
		sqlText, args := predToSQL(pred)
		return b.Where(squirrel.Expr("NOT ("+sqlText+")", args...))
	}
	return b.Where(pred)
}

// fieldSetNeedsStatistics reports whether the requested projection
// fields, any filter token or the sort style touches a statistics
// counter, the only condition under which post_statistics gets joined
// (spec.md §4.E field-projection-before-statistics-joins rule).
func fieldSetNeedsStatistics(fields []string, q query.Query) bool {
	for _, f := range fields {
		if _, ok := postStatisticsColumns[f]; ok {
			return true
		}
	}
	if q.Sort != nil {
		style, _, _ := strings.Cut(q.Sort.Key, ",")
		if _, ok := postStatisticsColumns[style]; ok {
			return true
		}
	}
	for _, tok := range q.Tokens {
		if tok.Kind == query.KindNamed {
			if _, ok := postStatisticsColumns[tok.Key]; ok {
				return true
			}
		}
	}
	return false
}

// compilePostToken compiles one query.Token into a squirrel predicate
// against the posts/post_statistics tables, per spec.md §4.E's
// compilation rules. joinStats reports whether the predicate requires
// the post_statistics join. callerID is the authenticated caller's id,
// if any, needed to compile the special:liked/disliked/fav predicates.
func compilePostToken(tok query.Token, callerID *int64) (pred squirrel.Sqlizer, joinStats bool, err error) {
	switch tok.Kind {
	case query.KindAnonymous:
		// Default field for posts is tag-name (spec.md §4.D).
		return tagNamePredicate(tok.Value), false, nil

	case query.KindNamed:
		if tok.Key == "tagme" {
			return squirrel.Expr(
				`EXISTS (SELECT 1 FROM post_tags JOIN tag_names ON tag_names.tag_id = post_tags.tag_id
					WHERE post_tags.post_id = posts.id)`), false, nil
		}
		if tok.Key == "image-ar" {
			pred, err := compileComputed("posts.canvas_width::float / nullif(posts.canvas_height, 0)", tok.Value)
			return pred, false, err
		}
		if col, ok := postColumns[tok.Key]; ok {
			pred, err := compileScalar(col, tok.Value)
			return pred, false, err
		}
		if col, ok := postStatisticsColumns[tok.Key]; ok {
			pred, err := compileScalar(col, tok.Value)
			return pred, true, err
		}
		if tok.Key == "tag" {
			return tagNamePredicate(tok.Value), false, nil
		}
		return nil, false, common.NewErrorf(common.KindMalformedInput,
			"unknown query field %q at position %d", tok.Key, tok.Position)

	case query.KindSpecial:
		return compileSpecial(tok.Key, callerID)

	default:
		return nil, false, common.NewErrorf(common.KindMalformedInput,
			"unsupported token kind at position %d", tok.Position)
	}
}

// tagNamePredicate compiles a tag-name lookup via the name table
// joined to its owning table (spec.md §4.E: "tag/pool/user name
// lookups go via the name table joined to their owning table").
func tagNamePredicate(v query.Value) squirrel.Sqlizer {
	scalars := v.Scalars
	clauses := make(squirrel.Or, 0, len(scalars))
	for _, s := range scalars {
		if strings.Contains(s, "*") {
			pattern := strings.ReplaceAll(s, "*", "%")
			clauses = append(clauses, squirrel.Expr(
				`EXISTS (SELECT 1 FROM post_tags pt JOIN tag_names tn ON tn.tag_id = pt.tag_id
					WHERE pt.post_id = posts.id AND lower(tn.name) LIKE lower(?))`, pattern))
		} else {
			clauses = append(clauses, squirrel.Expr(
				`EXISTS (SELECT 1 FROM post_tags pt JOIN tag_names tn ON tn.tag_id = pt.tag_id
					WHERE pt.post_id = posts.id AND tn.name = ?)`, s))
		}
	}
	return clauses
}

// compileScalar compiles a scalar/wildcard/range/composite value
// against a single column.
func compileScalar(col string, v query.Value) (squirrel.Sqlizer, error) {
	if v.Range != nil {
		var clauses squirrel.And
		if v.Range.HasLow {
			clauses = append(clauses, squirrel.GtOrEq{col: v.Range.Low})
		}
		if v.Range.HasHigh {
			clauses = append(clauses, squirrel.LtOrEq{col: v.Range.High})
		}
		return clauses, nil
	}
	if len(v.Scalars) > 1 {
		in := make(squirrel.Or, 0, len(v.Scalars))
		for _, s := range v.Scalars {
			in = append(in, squirrel.Eq{col: s})
		}
		return in, nil
	}
	if v.Wildcard {
		pattern := strings.ReplaceAll(v.Scalars[0], "*", "%")
		return squirrel.Expr(fmt.Sprintf("lower(%s) LIKE lower(?)", col), pattern), nil
	}
	return squirrel.Eq{col: v.Scalars[0]}, nil
}

// compileComputed compiles a value against a raw SQL expression
// rather than a bare column name (spec.md §4.E: "compound fields map
// to computed expressions").
func compileComputed(expr string, v query.Value) (squirrel.Sqlizer, error) {
	if v.Range != nil {
		var clauses squirrel.And
		if v.Range.HasLow {
			low, err := strconv.ParseFloat(v.Range.Low, 64)
			if err != nil {
				return nil, common.NewErrorf(common.KindMalformedInput, "malformed numeric bound %q", v.Range.Low)
			}
			clauses = append(clauses, squirrel.Expr(fmt.Sprintf("%s >= ?", expr), low))
		}
		if v.Range.HasHigh {
			high, err := strconv.ParseFloat(v.Range.High, 64)
			if err != nil {
				return nil, common.NewErrorf(common.KindMalformedInput, "malformed numeric bound %q", v.Range.High)
			}
			clauses = append(clauses, squirrel.Expr(fmt.Sprintf("%s <= ?", expr), high))
		}
		return clauses, nil
	}
	val, err := strconv.ParseFloat(v.Scalars[0], 64)
	if err != nil {
		return nil, common.NewErrorf(common.KindMalformedInput, "malformed numeric value %q", v.Scalars[0])
	}
	return squirrel.Expr(fmt.Sprintf("%s = ?", expr), val), nil
}

// compileSpecial compiles the special:<value> predicates of spec.md
// §4.D, all tied to the current user except tumbleweed. liked/
// disliked/fav require an authenticated caller, since they filter
// against that caller's own post_scores/post_favorites rows.
func compileSpecial(name string, callerID *int64) (squirrel.Sqlizer, bool, error) {
	switch name {
	case "liked":
		if callerID == nil {
			return nil, false, common.NewErrorf(common.KindMalformedInput,
				"special filter %q requires an authenticated caller", name)
		}
		return squirrel.Expr(
			`EXISTS (SELECT 1 FROM post_scores
				WHERE post_scores.post_id = posts.id
				AND post_scores.user_id = ? AND post_scores.score = 1)`,
			*callerID,
		), false, nil

	case "disliked":
		if callerID == nil {
			return nil, false, common.NewErrorf(common.KindMalformedInput,
				"special filter %q requires an authenticated caller", name)
		}
		return squirrel.Expr(
			`EXISTS (SELECT 1 FROM post_scores
				WHERE post_scores.post_id = posts.id
				AND post_scores.user_id = ? AND post_scores.score = -1)`,
			*callerID,
		), false, nil

	case "fav":
		if callerID == nil {
			return nil, false, common.NewErrorf(common.KindMalformedInput,
				"special filter %q requires an authenticated caller", name)
		}
		return squirrel.Expr(
			`EXISTS (SELECT 1 FROM post_favorites
				WHERE post_favorites.post_id = posts.id
				AND post_favorites.user_id = ?)`,
			*callerID,
		), false, nil

	case "tumbleweed":
		// SPEC_FULL.md's supplemented tumbleweed predicate, resolved
		// against original_source/server/src/search/post.rs: zero
		// favorites, zero comments, and a net vote count of zero where
		// no one voted at all (not merely a cancelled-out score) —
		// the left join + HAVING count(...) = 0 distinguishes "no
		// votes" from "votes that summed to zero".
		return squirrel.Expr(`posts.id IN (
			SELECT p.id FROM posts p
			JOIN post_statistics ps ON ps.post_id = p.id
			LEFT JOIN post_scores sc ON sc.post_id = p.id
			WHERE ps.favorite_count = 0 AND ps.comment_count = 0
			GROUP BY p.id
			HAVING count(sc.user_id) = 0
		)`), true, nil
	default:
		return nil, false, common.NewErrorf(common.KindMalformedInput,
			"unknown special filter %q", name)
	}
}

// orderPosts applies the sort token, defaulting to id descending
// (spec.md §4.D), with a secondary id-descending tie-break always
// appended to guarantee total order for stable pagination.
func orderPosts(b squirrel.SelectBuilder, sort *query.Token) squirrel.SelectBuilder {
	allowed := map[string]string{
		"id":            "posts.id",
		"creation-date": "posts.creation_time",
		"last-edit-date": "posts.last_edit_time",
		"score":         "post_statistics.score",
		"tag-count":     "post_statistics.tag_count",
		"fav-count":     "post_statistics.favorite_count",
	}
	if sort == nil {
		return b.OrderBy("posts.id DESC")
	}
	ps, err := query.ParseSort(sort.Key, sortStyleSet(allowed))
	if err != nil {
		return b.OrderBy("posts.id DESC")
	}
	col := allowed[ps.Style]
	dir := "DESC"
	if ps.Direction == query.SortAscending {
		dir = "ASC"
	}
	if col == "posts.id" {
		return b.OrderBy(col + " " + dir)
	}
	return b.OrderBy(col+" "+dir, "posts.id DESC")
}

func sortStyleSet(allowed map[string]string) map[string]bool {
	out := make(map[string]bool, len(allowed))
	for k := range allowed {
		out[k] = true
	}
	return out
}
