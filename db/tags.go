package db

import (
	"database/sql"

	"github.com/liamw1/oxibooru/common"
)

// CreateTag inserts a new tag under categoryID with the given names
// (first name is primary), emitting a creation snapshot in the same
// transaction (spec.md §4.F/§4.G).
func CreateTag(tx *sql.Tx, userID *int64, categoryID int64, names []string, description string) (common.Tag, error) {
	var t common.Tag
	err := tx.QueryRow(
		`insert into tags (category_id, description) values ($1, $2)
			returning id, creation_time, last_edit_time`,
		categoryID, description,
	).Scan(&t.ID, &t.CreationTime, &t.LastEditTime)
	if err != nil {
		return common.Tag{}, classifyPQError(err)
	}
	t.CategoryID = categoryID
	t.Names = names
	t.Description = description

	for i, name := range names {
		if _, err := tx.Exec(
			`insert into tag_names (tag_id, name, ordinal) values ($1, $2, $3)`,
			t.ID, name, i,
		); err != nil {
			return common.Tag{}, classifyPQError(err)
		}
	}

	if err := RecordSnapshot(tx, userID, common.OperationCreated, common.ResourceTag, t.ID, &names[0], t); err != nil {
		return common.Tag{}, err
	}
	return t, nil
}

// UpdateTagCategory changes a tag's category under optimistic
// concurrency, per spec.md §4.F steps 3-8.
func UpdateTagCategory(tx *sql.Tx, userID *int64, tagID int64, version common.Version, newCategoryID int64) error {
	if err := CheckVersion(tx, "tags", tagID, version); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`update tags set category_id = $1, last_edit_time = now() where id = $2`,
		newCategoryID, tagID,
	); err != nil {
		return classifyPQError(err)
	}
	diff := map[string]interface{}{
		"category": map[string]interface{}{"type": "primitive-change", "value": newCategoryID},
	}
	return RecordSnapshot(tx, userID, common.OperationModified, common.ResourceTag, tagID, nil, diff)
}

// AddTagImplication inserts a parent->child implication edge after
// checking it would not close a cycle (spec.md §4.F step 6).
func AddTagImplication(tx *sql.Tx, userID *int64, parentID, childID int64) error {
	if err := CheckTagImplicationCycle(tx, parentID, childID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`insert into tag_implications (parent_id, child_id) values ($1, $2)
			on conflict do nothing`,
		parentID, childID,
	); err != nil {
		return classifyPQError(err)
	}
	return nil
}

// AddTagSuggestion inserts a parent->child suggestion edge after
// checking it would not close a cycle.
func AddTagSuggestion(tx *sql.Tx, userID *int64, parentID, childID int64) error {
	if err := CheckTagSuggestionCycle(tx, parentID, childID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`insert into tag_suggestions (parent_id, child_id) values ($1, $2)
			on conflict do nothing`,
		parentID, childID,
	); err != nil {
		return classifyPQError(err)
	}
	return nil
}

// MergeTags re-homes sourceID's post_tags rows and the implication
// edges where it is the parent onto targetID, de-duplicating composite
// keys that would collide, recounts the target's usage_count from its
// post_tags rows, then deletes the source (spec.md §4.F step 7). The
// source's names, its suggestion edges and the implication edges where
// it is the child are not re-homed; they are deleted with the source.
func MergeTags(tx *sql.Tx, userID *int64, sourceID, targetID int64) error {
	if sourceID == targetID {
		return common.NewError(common.KindSelfMerge, "cannot merge a tag into itself")
	}

	// Re-home post_tags, skipping rows that would duplicate an
	// existing (post, target) pair.
	if _, err := tx.Exec(
		`update post_tags set tag_id = $1
			where tag_id = $2
			and not exists (
				select 1 from post_tags pt2 where pt2.post_id = post_tags.post_id and pt2.tag_id = $1
			)`,
		targetID, sourceID,
	); err != nil {
		return classifyPQError(err)
	}
	if _, err := tx.Exec(`delete from post_tags where tag_id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	if _, err := tx.Exec(
		`update tag_implications set parent_id = $1
			where parent_id = $2 and child_id != $1
			and not exists (select 1 from tag_implications i2 where i2.parent_id = $1 and i2.child_id = tag_implications.child_id)`,
		targetID, sourceID,
	); err != nil {
		return classifyPQError(err)
	}
	if _, err := tx.Exec(`delete from tag_implications where parent_id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	// Recount the target's usage from its post_tags rows: the re-homing
	// UPDATE above fires no trigger, and a post that carried both tags
	// counts once.
	if _, err := tx.Exec(
		`update tag_statistics
			set usage_count = (select count(*) from post_tags where tag_id = $1)
			where tag_id = $1`,
		targetID,
	); err != nil {
		return classifyPQError(err)
	}

	if _, err := tx.Exec(`delete from tags where id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	return RecordSnapshot(tx, userID, common.OperationMerged, common.ResourceTag, sourceID, nil,
		map[string]interface{}{"type": "tag", "id": targetID})
}

// DeleteTag removes a tag and records a deletion snapshot. No tag is
// exempt from deletion.
func DeleteTag(tx *sql.Tx, userID *int64, tagID int64) error {
	if _, err := tx.Exec(`delete from tags where id = $1`, tagID); err != nil {
		return classifyPQError(err)
	}
	return RecordSnapshot(tx, userID, common.OperationDeleted, common.ResourceTag, tagID, nil, nil)
}
