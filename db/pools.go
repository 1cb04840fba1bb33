package db

import (
	"database/sql"

	"github.com/liamw1/oxibooru/common"
)

// CreatePool inserts a new pool under categoryID with the given names
// and an initial ordered sequence of post ids, following the same
// create-then-associate-then-snapshot shape as CreateTag (spec.md
// §4.F/§4.G).
func CreatePool(tx *sql.Tx, userID *int64, categoryID int64, names []string, description string, postIDs []int64) (common.Pool, error) {
	var p common.Pool
	err := tx.QueryRow(
		`insert into pools (category_id, description) values ($1, $2)
			returning id, creation_time, last_edit_time`,
		categoryID, description,
	).Scan(&p.ID, &p.CreationTime, &p.LastEditTime)
	if err != nil {
		return common.Pool{}, classifyPQError(err)
	}
	p.CategoryID = categoryID
	p.Names = names
	p.Description = description

	for i, name := range names {
		if _, err := tx.Exec(
			`insert into pool_names (pool_id, name, ordinal) values ($1, $2, $3)`,
			p.ID, name, i,
		); err != nil {
			return common.Pool{}, classifyPQError(err)
		}
	}
	if err := setPoolPosts(tx, p.ID, postIDs); err != nil {
		return common.Pool{}, err
	}

	if err := RecordSnapshot(tx, userID, common.OperationCreated, common.ResourcePool, p.ID, &names[0], p); err != nil {
		return common.Pool{}, err
	}
	return p, nil
}

// setPoolPosts replaces a pool's ordered post sequence, re-numbering
// ordinals as a dense permutation of {0..n-1} per spec.md §3 invariant
// 7 ("PoolPost.order values within a pool are a permutation of
// {0..n−1}").
func setPoolPosts(tx *sql.Tx, poolID int64, postIDs []int64) error {
	if _, err := tx.Exec(`delete from pool_posts where pool_id = $1`, poolID); err != nil {
		return classifyPQError(err)
	}
	for ordinal, postID := range postIDs {
		if _, err := tx.Exec(
			`insert into pool_posts (pool_id, post_id, ordinal) values ($1, $2, $3)`,
			poolID, postID, ordinal,
		); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

// UpdatePool applies a version-checked change to a pool's category and
// post sequence, emitting a modification snapshot (spec.md §4.F steps
// 4-8). The post sequence is always rewritten wholesale — unlike tag
// associations, pool order is a full permutation rather than an
// unordered set, so a per-row added/removed diff is not meaningful.
func UpdatePool(tx *sql.Tx, userID *int64, poolID int64, version common.Version, newCategoryID int64, postIDs []int64) error {
	if err := CheckVersion(tx, "pools", poolID, version); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`update pools set category_id = $1, last_edit_time = now() where id = $2`,
		newCategoryID, poolID,
	); err != nil {
		return classifyPQError(err)
	}
	if err := setPoolPosts(tx, poolID, postIDs); err != nil {
		return err
	}
	diff := map[string]interface{}{
		"category": map[string]interface{}{"type": "primitive-change", "value": newCategoryID},
		"posts":    map[string]interface{}{"type": "list-change", "value": postIDs},
	}
	return RecordSnapshot(tx, userID, common.OperationModified, common.ResourcePool, poolID, nil, diff)
}

// MergePools re-homes a source pool's posts into target, appending
// them after target's existing sequence and de-duplicating any post
// already present in target, then deletes source (spec.md §4.F step
// 7). Unlike MergeTags, it transfers no statistics.
func MergePools(tx *sql.Tx, userID *int64, sourceID, targetID int64) error {
	if sourceID == targetID {
		return common.NewError(common.KindSelfMerge, "cannot merge a pool into itself")
	}

	rows, err := tx.Query(`select post_id from pool_posts where pool_id = $1 order by ordinal`, targetID)
	if err != nil {
		return classifyPQError(err)
	}
	var targetPosts []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		targetPosts = append(targetPosts, id)
	}
	rows.Close()
	existing := make(map[int64]bool, len(targetPosts))
	for _, id := range targetPosts {
		existing[id] = true
	}

	rows, err = tx.Query(`select post_id from pool_posts where pool_id = $1 order by ordinal`, sourceID)
	if err != nil {
		return classifyPQError(err)
	}
	var sourcePosts []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		sourcePosts = append(sourcePosts, id)
	}
	rows.Close()

	for _, id := range sourcePosts {
		if !existing[id] {
			targetPosts = append(targetPosts, id)
			existing[id] = true
		}
	}
	if err := setPoolPosts(tx, targetID, targetPosts); err != nil {
		return err
	}

	// Unlike tags, a pool carries no per-row usage counter of its own —
	// "usage" is just its post membership, already re-homed above by
	// setPoolPosts — so there is nothing further to sum before deleting
	// the source.
	if _, err := tx.Exec(`delete from pools where id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	return RecordSnapshot(tx, userID, common.OperationMerged, common.ResourcePool, sourceID, nil,
		map[string]interface{}{"type": "pool", "id": targetID})
}

// DeletePool removes a pool, cascade-deleting its pool_posts/pool_names
// rows.
func DeletePool(tx *sql.Tx, userID *int64, poolID int64) error {
	if _, err := tx.Exec(`delete from pools where id = $1`, poolID); err != nil {
		return classifyPQError(err)
	}
	return RecordSnapshot(tx, userID, common.OperationDeleted, common.ResourcePool, poolID, nil, nil)
}
