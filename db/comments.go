package db

import (
	"database/sql"

	"github.com/liamw1/oxibooru/common"
)

// CreateComment inserts a comment on postID, emitting a creation
// snapshot (spec.md §4.F/§4.G, analogous to posts/tags).
func CreateComment(tx *sql.Tx, userID int64, postID int64, text string) (common.Comment, error) {
	var c common.Comment
	err := tx.QueryRow(
		`insert into comments (post_id, user_id, text) values ($1, $2, $3)
			returning id, creation_time, last_edit_time`,
		postID, userID, text,
	).Scan(&c.ID, &c.CreationTime, &c.LastEditTime)
	if err != nil {
		return common.Comment{}, classifyPQError(err)
	}
	c.PostID = postID
	c.UserID = &userID
	c.Text = text

	if err := RecordSnapshot(tx, &userID, common.OperationCreated, common.ResourceComment, c.ID, nil, c); err != nil {
		return common.Comment{}, err
	}
	return c, nil
}

// UpdateComment applies a version-checked text edit to a comment.
func UpdateComment(tx *sql.Tx, userID *int64, commentID int64, version common.Version, text string) error {
	if err := CheckVersion(tx, "comments", commentID, version); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`update comments set text = $1, last_edit_time = now() where id = $2`,
		text, commentID,
	); err != nil {
		return classifyPQError(err)
	}
	diff := map[string]interface{}{
		"text": map[string]interface{}{"type": "primitive-change", "value": text},
	}
	return RecordSnapshot(tx, userID, common.OperationModified, common.ResourceComment, commentID, nil, diff)
}

// DeleteComment removes a comment, cascade-deleting its comment_scores
// rows.
func DeleteComment(tx *sql.Tx, userID *int64, commentID int64) error {
	if _, err := tx.Exec(`delete from comments where id = $1`, commentID); err != nil {
		return classifyPQError(err)
	}
	return RecordSnapshot(tx, userID, common.OperationDeleted, common.ResourceComment, commentID, nil, nil)
}

// SetCommentScore sets userID's vote on commentID to one of
// {-1, 0, +1}, mirroring SetScore's post-vote semantics. A zero score
// removes the row so comment_statistics' derived sum stays accurate
// without a lingering zero-weight vote.
func SetCommentScore(tx *sql.Tx, userID, commentID int64, score int32) error {
	if score < -1 || score > 1 {
		return common.NewErrorf(common.KindOutOfRange, "score %d is not one of -1, 0, +1", score)
	}
	// A changed vote is a delete plus an insert, since the statistics
	// triggers fire on insert and delete only.
	if _, err := tx.Exec(`delete from comment_scores where comment_id = $1 and user_id = $2`, commentID, userID); err != nil {
		return classifyPQError(err)
	}
	if score == 0 {
		return nil
	}
	if _, err := tx.Exec(
		`insert into comment_scores (comment_id, user_id, score) values ($1, $2, $3)`,
		commentID, userID, score,
	); err != nil {
		return classifyPQError(err)
	}
	return nil
}
