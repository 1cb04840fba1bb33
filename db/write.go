package db

import (
	"database/sql"
	"time"

	"github.com/liamw1/oxibooru/common"
)

// CheckVersion implements the optimistic concurrency check of spec.md
// §4.F step 4 / §8 property 2: the caller's claimed version must
// match the row's current last_edit_time, read via the same
// transaction that performs the update (so no other writer can slip
// in between the check and the write).
func CheckVersion(tx *sql.Tx, table string, id int64, claimed common.Version) error {
	var current time.Time
	err := tx.QueryRow(
		`select last_edit_time from `+table+` where id = $1 for update`, id,
	).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		return common.ErrNotFound
	case err != nil:
		return classifyPQError(err)
	}
	if !current.Equal(claimed) {
		return common.ErrVersionOutdated()
	}
	return nil
}

// checkCycle walks the edge table (tag_implications, tag_suggestions,
// or post_relations) from child back towards parent using a bounded
// WITH RECURSIVE traversal, per spec.md §4.F step 6: "cycle detection
// for tag implications/suggestions and post relations via bounded
// WITH RECURSIVE walk". The bound (maxDepth) prevents runaway
// recursion on a corrupt graph; a cycle is any path that reaches
// parent again.
func checkCycle(tx *sql.Tx, table, fromCol, toCol string, parent, child int64) error {
	if parent == child {
		return common.ErrCyclicDependency(parent, child)
	}
	const maxDepth = 64
	query := `
		with recursive walk(node, depth) as (
			select ` + toCol + `, 1 from ` + table + ` where ` + fromCol + ` = $1
			union all
			select e.` + toCol + `, w.depth + 1
				from ` + table + ` e
				join walk w on e.` + fromCol + ` = w.node
				where w.depth < $3
		)
		select exists(select 1 from walk where node = $2)`
	var found bool
	if err := tx.QueryRow(query, child, parent, maxDepth).Scan(&found); err != nil {
		return classifyPQError(err)
	}
	if found {
		return common.ErrCyclicDependency(parent, child)
	}
	return nil
}

// CheckTagImplicationCycle guards against a parent/child tag
// implication edge closing a cycle in the implication graph.
func CheckTagImplicationCycle(tx *sql.Tx, parentID, childID int64) error {
	return checkCycle(tx, "tag_implications", "parent_id", "child_id", parentID, childID)
}

// CheckTagSuggestionCycle guards against a parent/child tag
// suggestion edge closing a cycle in the suggestion graph.
func CheckTagSuggestionCycle(tx *sql.Tx, parentID, childID int64) error {
	return checkCycle(tx, "tag_suggestions", "parent_id", "child_id", parentID, childID)
}

// CheckPostRelationCycle guards against a post_id/child_id relation
// edge closing a cycle in the relation graph (spec.md's supplemented
// "post relations" semantics: stored directionally, read
// symmetrically — see SPEC_FULL.md).
func CheckPostRelationCycle(tx *sql.Tx, postID, childID int64) error {
	return checkCycle(tx, "post_relations", "post_id", "child_id", postID, childID)
}
