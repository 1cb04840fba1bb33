package db

import (
	"database/sql"
	"encoding/json"

	"github.com/liamw1/oxibooru/common"
)

// encodePolygon serialises a PostNote's polygon as JSON — new rows
// always use the JSON form (SPEC_FULL.md's supplement resolving the
// legacy-pickle question for note polygons).
func encodePolygon(points []common.Point) ([]byte, error) {
	return json.Marshal(points)
}

// CreatePost inserts a new post row along with its initial tag set and
// relations, auto-creating any tag name that does not yet exist under
// the default category, per the Post lifecycle described in spec.md §3
// ("A Post is created by an upload transaction that also inserts its
// tags (auto-creating missing ones in the default category)...").
// Signature/thumbnail generation happens outside this transaction in
// the imager pipeline; the caller supplies the already-computed
// checksum/MD5/dimensions.
func CreatePost(tx *sql.Tx, uploaderID *int64, p common.Post, tagNames []string, relationIDs []int64) (common.Post, error) {
	err := tx.QueryRow(
		`insert into posts
			(uploader_id, file_size, canvas_width, canvas_height, safety, type, mime_type,
				checksum, md5, flags, source)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			returning id, creation_time, last_edit_time`,
		uploaderID, p.FileSize, p.Width, p.Height, p.Safety, p.Type, p.MimeType,
		p.Checksum[:], p.MD5[:], p.Flags, p.Source,
	).Scan(&p.ID, &p.CreationTime, &p.LastEditTime)
	if err != nil {
		return common.Post{}, classifyPQError(err)
	}
	p.UploaderID = uploaderID

	tagIDs, err := resolveOrCreateTags(tx, tagNames)
	if err != nil {
		return common.Post{}, err
	}
	if err := addPostTags(tx, p.ID, tagIDs); err != nil {
		return common.Post{}, err
	}
	if err := addPostRelations(tx, p.ID, relationIDs); err != nil {
		return common.Post{}, err
	}

	if err := RecordSnapshot(tx, uploaderID, common.OperationCreated, common.ResourcePost, p.ID, nil, p); err != nil {
		return common.Post{}, err
	}
	return p, nil
}

// resolveOrCreateTags maps a list of tag names to tag ids, inserting a
// new tag under the default category (id 0) for any name that does not
// already exist, per spec.md §3's Post lifecycle note.
func resolveOrCreateTags(tx *sql.Tx, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var id int64
		err := tx.QueryRow(
			`select tag_id from tag_names where lower(name) = lower($1)`, name,
		).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			created, cerr := CreateTag(tx, nil, 0, []string{name}, "")
			if cerr != nil {
				return nil, cerr
			}
			id = created.ID
		case err != nil:
			return nil, classifyPQError(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func addPostTags(tx *sql.Tx, postID int64, tagIDs []int64) error {
	for _, id := range tagIDs {
		if _, err := tx.Exec(
			`insert into post_tags (post_id, tag_id) values ($1, $2) on conflict do nothing`,
			postID, id,
		); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

func removePostTags(tx *sql.Tx, postID int64, tagIDs []int64) error {
	for _, id := range tagIDs {
		if _, err := tx.Exec(
			`delete from post_tags where post_id = $1 and tag_id = $2`, postID, id,
		); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

// addPostRelations inserts a post_id/child_id relation row for each
// childID after checking it would not close a cycle in the relation
// graph (spec.md §4.F step 6). Relations are stored directionally but
// read symmetrically — see SPEC_FULL.md's "Post relations" supplement.
func addPostRelations(tx *sql.Tx, postID int64, childIDs []int64) error {
	for _, childID := range childIDs {
		if err := CheckPostRelationCycle(tx, postID, childID); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`insert into post_relations (post_id, child_id) values ($1, $2) on conflict do nothing`,
			postID, childID,
		); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

func removePostRelations(tx *sql.Tx, postID int64, childIDs []int64) error {
	for _, childID := range childIDs {
		if _, err := tx.Exec(
			`delete from post_relations where
				(post_id = $1 and child_id = $2) or (post_id = $2 and child_id = $1)`,
			postID, childID,
		); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

// diffIDs computes added = new - old and removed = old - new, per
// spec.md §4.F step 5's "added = new − old, removed = old − new,
// applied minimally so triggers fire per-row" rule.
func diffIDs(oldIDs, newIDs []int64) (added, removed []int64) {
	oldSet := make(map[int64]bool, len(oldIDs))
	for _, id := range oldIDs {
		oldSet[id] = true
	}
	newSet := make(map[int64]bool, len(newIDs))
	for _, id := range newIDs {
		newSet[id] = true
		if !oldSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range oldIDs {
		if !newSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// UpdatePostRequest carries the mutable fields of a post PUT, following
// the shape of the write path's step 1 ("parse the request body,
// extract a provided version"): zero-value fields are "unchanged"
// from the caller's perspective and are applied verbatim since the
// service layer is responsible for merging against the prior row
// before calling in.
type UpdatePostRequest struct {
	Version  common.Version
	Safety   common.PostSafety
	Source   string
	Flags    common.PostFlag
	TagIDs   []int64
	Relations []int64
}

// UpdatePost applies a version-checked update to a post's scalar
// fields and its tag/relation associations, diffing against the
// current rows so triggers fire per added/removed edge (spec.md §4.F
// steps 4-8).
func UpdatePost(tx *sql.Tx, userID *int64, postID int64, req UpdatePostRequest) error {
	if err := CheckVersion(tx, "posts", postID, req.Version); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`update posts set safety = $1, source = $2, flags = $3, last_edit_time = now()
			where id = $4`,
		req.Safety, req.Source, req.Flags, postID,
	); err != nil {
		return classifyPQError(err)
	}

	oldTagIDs, err := currentPostTagIDs(tx, postID)
	if err != nil {
		return err
	}
	addedTags, removedTags := diffIDs(oldTagIDs, req.TagIDs)
	if err := addPostTags(tx, postID, addedTags); err != nil {
		return err
	}
	if err := removePostTags(tx, postID, removedTags); err != nil {
		return err
	}

	oldRelations, err := currentPostRelationIDs(tx, postID)
	if err != nil {
		return err
	}
	addedRel, removedRel := diffIDs(oldRelations, req.Relations)
	if err := addPostRelations(tx, postID, addedRel); err != nil {
		return err
	}
	if err := removePostRelations(tx, postID, removedRel); err != nil {
		return err
	}

	diff := map[string]interface{}{
		"source": map[string]interface{}{"type": "primitive-change", "value": req.Source},
		"safety": map[string]interface{}{"type": "primitive-change", "value": req.Safety.String()},
		"tags":   map[string]interface{}{"type": "list-change", "added": addedTags, "removed": removedTags},
		"relations": map[string]interface{}{"type": "list-change", "added": addedRel, "removed": removedRel},
	}
	return RecordSnapshot(tx, userID, common.OperationModified, common.ResourcePost, postID, nil, diff)
}

func currentPostTagIDs(tx *sql.Tx, postID int64) ([]int64, error) {
	rows, err := tx.Query(`select tag_id from post_tags where post_id = $1`, postID)
	if err != nil {
		return nil, classifyPQError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func currentPostRelationIDs(tx *sql.Tx, postID int64) ([]int64, error) {
	rows, err := tx.Query(
		`select child_id from post_relations where post_id = $1
			union
			select post_id from post_relations where child_id = $1`,
		postID,
	)
	if err != nil {
		return nil, classifyPQError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeletePost removes a post; cascade-deletes its associations,
// statistics, and signature rows per spec.md §3 invariant 2, and
// removes on-disk content in the imager layer iff the
// DeleteSourceFiles policy is on (handled by the caller, outside this
// transaction).
func DeletePost(tx *sql.Tx, userID *int64, postID int64) error {
	if _, err := tx.Exec(`delete from posts where id = $1`, postID); err != nil {
		return classifyPQError(err)
	}
	return RecordSnapshot(tx, userID, common.OperationDeleted, common.ResourcePost, postID, nil, nil)
}

// SetFavorite adds or removes userID's favorite mark on postID. Unlike
// tag/pool merges this is not version-checked: favoriting is a
// per-user toggle, not a shared-state edit subject to a lost-update
// race (spec.md §5's per-resource concurrency scope).
func SetFavorite(tx *sql.Tx, userID, postID int64, favorited bool) error {
	var err error
	if favorited {
		_, err = tx.Exec(
			`insert into post_favorites (post_id, user_id) values ($1, $2) on conflict do nothing`,
			postID, userID,
		)
	} else {
		_, err = tx.Exec(`delete from post_favorites where post_id = $1 and user_id = $2`, postID, userID)
	}
	if err != nil {
		return classifyPQError(err)
	}
	return nil
}

// SetScore sets userID's vote on postID to one of {-1, 0, +1}; score 0
// removes the row entirely so tumbleweed's "no one voted at all" check
// (SPEC_FULL.md's supplement resolving original_source's post.rs
// tumbleweed predicate) stays accurate.
func SetScore(tx *sql.Tx, userID, postID int64, score int32) error {
	if score < -1 || score > 1 {
		return common.NewErrorf(common.KindOutOfRange, "score %d is not one of -1, 0, +1", score)
	}
	// A changed vote is a delete plus an insert, since the statistics
	// triggers fire on insert and delete only.
	if _, err := tx.Exec(`delete from post_scores where post_id = $1 and user_id = $2`, postID, userID); err != nil {
		return classifyPQError(err)
	}
	if score == 0 {
		return nil
	}
	if _, err := tx.Exec(
		`insert into post_scores (post_id, user_id, score) values ($1, $2, $3)`,
		postID, userID, score,
	); err != nil {
		return classifyPQError(err)
	}
	return nil
}

// SetFeatured marks postID as the currently featured post, per
// spec.md's post_features association table: a new feature row is
// inserted rather than a singleton flag flipped, so the feature
// history (and post_statistics.feature_count/last_feature_time) is
// preserved across re-features of the same post.
func SetFeatured(tx *sql.Tx, userID, postID int64) error {
	if _, err := tx.Exec(
		`insert into post_features (post_id, user_id) values ($1, $2)`, postID, userID,
	); err != nil {
		return classifyPQError(err)
	}
	return nil
}

// AddNote inserts a post annotation polygon+text pair (spec.md §3's
// PostNote entity).
func AddNote(tx *sql.Tx, postID int64, note common.PostNote) (int64, error) {
	encoded, err := encodePolygon(note.Polygon)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(
		`insert into post_notes (post_id, polygon, text) values ($1, $2, $3) returning id`,
		postID, encoded, note.Text,
	).Scan(&id)
	if err != nil {
		return 0, classifyPQError(err)
	}
	return id, nil
}

// DeleteNote removes a single post annotation.
func DeleteNote(tx *sql.Tx, noteID int64) error {
	if _, err := tx.Exec(`delete from post_notes where id = $1`, noteID); err != nil {
		return classifyPQError(err)
	}
	return nil
}

// MergePosts re-homes sourceID's tags, favorites, notes and comments
// onto targetID, de-duplicating tag and favorite rows that would
// collide, recounts the target's tag, favorite, comment and note
// counters from those rows, then deletes the source (spec.md §4.F step
// 7). The source's relations, scores and features are not re-homed;
// they are deleted with the source.
func MergePosts(tx *sql.Tx, userID *int64, sourceID, targetID int64) error {
	if sourceID == targetID {
		return common.NewError(common.KindSelfMerge, "cannot merge a post into itself")
	}

	if _, err := tx.Exec(
		`update post_tags set post_id = $1
			where post_id = $2
			and not exists (select 1 from post_tags p2 where p2.post_id = $1 and p2.tag_id = post_tags.tag_id)`,
		targetID, sourceID,
	); err != nil {
		return classifyPQError(err)
	}
	if _, err := tx.Exec(`delete from post_tags where post_id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	if _, err := tx.Exec(
		`update post_favorites set post_id = $1
			where post_id = $2
			and not exists (select 1 from post_favorites f2 where f2.post_id = $1 and f2.user_id = post_favorites.user_id)`,
		targetID, sourceID,
	); err != nil {
		return classifyPQError(err)
	}
	if _, err := tx.Exec(`delete from post_favorites where post_id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	if _, err := tx.Exec(`update post_notes set post_id = $1 where post_id = $2`, targetID, sourceID); err != nil {
		return classifyPQError(err)
	}
	if _, err := tx.Exec(`update comments set post_id = $1 where post_id = $2`, targetID, sourceID); err != nil {
		return classifyPQError(err)
	}

	// Recount the target's counters from its rows: the re-homing UPDATEs
	// above fire no trigger, and de-duplicated rows count once.
	if _, err := tx.Exec(
		`update post_statistics set
			tag_count = (select count(*) from post_tags where post_id = $1),
			favorite_count = (select count(*) from post_favorites where post_id = $1),
			comment_count = (select count(*) from comments where post_id = $1),
			note_count = (select count(*) from post_notes where post_id = $1)
			where post_id = $1`,
		targetID,
	); err != nil {
		return classifyPQError(err)
	}

	if _, err := tx.Exec(`delete from posts where id = $1`, sourceID); err != nil {
		return classifyPQError(err)
	}

	return RecordSnapshot(tx, userID, common.OperationMerged, common.ResourcePost, sourceID, nil,
		map[string]interface{}{"type": "post", "id": targetID})
}

// PostContentInfo returns the checksum and mime type a post's on-disk
// files are named and typed by. Used by the recompute_signatures and
// reset_filenames admin jobs (spec.md §9) to re-derive a post's
// filename or signature without loading its full row.
func PostContentInfo(tx *sql.Tx, postID int64) (checksum [32]byte, mimeType string, err error) {
	var buf []byte
	err = tx.QueryRow(
		`select checksum, mime_type from posts where id = $1`, postID,
	).Scan(&buf, &mimeType)
	if err != nil {
		return checksum, "", classifyPQError(err)
	}
	copy(checksum[:], buf)
	return checksum, mimeType, nil
}
