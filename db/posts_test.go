package db

import (
	"database/sql"
	"testing"

	"github.com/liamw1/oxibooru/common"
)

func TestCreatePostAutoCreatesMissingTags(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var postID int64
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1, "landscape", "sunset")
		postID = p.ID
		if p.Safety != common.SafetySafe {
			t.Fatalf("expected safety to round-trip, got %v", p.Safety)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		ids, err := currentPostTagIDs(tx, postID)
		if err != nil {
			return err
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 auto-created tags, got %d", len(ids))
		}
		return nil
	})
}

func TestUpdatePostDiffsTagsMinimally(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var postID int64
	var version common.Version
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1, "a", "b")
		postID = p.ID
		version = p.LastEditTime
		return nil
	})

	var keepID, addID int64
	withTx(t, func(tx *sql.Tx) error {
		ids, err := currentPostTagIDs(tx, postID)
		if err != nil {
			return err
		}
		keepID = ids[0]
		newTag, err := CreateTag(tx, nil, 0, []string{"c"}, "")
		if err != nil {
			return err
		}
		addID = newTag.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		return UpdatePost(tx, nil, postID, UpdatePostRequest{
			Version: version,
			Safety:  common.SafetySketchy,
			Source:  "https://example.com",
			TagIDs:  []int64{keepID, addID},
		})
	})

	withTx(t, func(tx *sql.Tx) error {
		ids, err := currentPostTagIDs(tx, postID)
		if err != nil {
			return err
		}
		if len(ids) != 2 {
			t.Fatalf("expected exactly 2 tags after the diffed update, got %d", len(ids))
		}
		var safety common.PostSafety
		var source string
		if err := tx.QueryRow(
			`select safety, source from posts where id = $1`, postID,
		).Scan(&safety, &source); err != nil {
			return err
		}
		if safety != common.SafetySketchy || source != "https://example.com" {
			t.Fatalf("expected updated safety/source, got %v/%s", safety, source)
		}
		return nil
	})
}

func TestDiffIDs(t *testing.T) {
	added, removed := diffIDs([]int64{1, 2, 3}, []int64{2, 3, 4})
	if len(added) != 1 || added[0] != 4 {
		t.Fatalf("expected added=[4], got %v", added)
	}
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("expected removed=[1], got %v", removed)
	}
}

func TestSetFavoriteAndSetScoreToggle(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var userID, postID int64
	withTx(t, func(tx *sql.Tx) error {
		u := createTestUser(t, tx, "voter")
		userID = u.ID
		p := createTestPost(t, tx, nil, 1)
		postID = p.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		if err := SetFavorite(tx, userID, postID, true); err != nil {
			return err
		}
		return SetScore(tx, userID, postID, 1)
	})

	withTx(t, func(tx *sql.Tx) error {
		var favCount, score int64
		if err := tx.QueryRow(
			`select favorite_count, score from post_statistics where post_id = $1`, postID,
		).Scan(&favCount, &score); err != nil {
			return err
		}
		if favCount != 1 || score != 1 {
			t.Fatalf("expected favorite_count=1 score=1, got %d/%d", favCount, score)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		if err := SetFavorite(tx, userID, postID, false); err != nil {
			return err
		}
		return SetScore(tx, userID, postID, 0)
	})

	withTx(t, func(tx *sql.Tx) error {
		var favCount, score int64
		if err := tx.QueryRow(
			`select favorite_count, score from post_statistics where post_id = $1`, postID,
		).Scan(&favCount, &score); err != nil {
			return err
		}
		if favCount != 0 || score != 0 {
			t.Fatalf("expected favorite_count=0 score=0 after unsetting, got %d/%d", favCount, score)
		}
		return nil
	})
}

func TestMergePostsSumsFavoriteAndCommentCounts(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var sourceID, targetID, userID int64
	withTx(t, func(tx *sql.Tx) error {
		u := createTestUser(t, tx, "fan")
		userID = u.ID
		source := createTestPost(t, tx, nil, 1)
		target := createTestPost(t, tx, nil, 2)
		sourceID, targetID = source.ID, target.ID
		if err := SetFavorite(tx, userID, sourceID, true); err != nil {
			return err
		}
		_, err := CreateComment(tx, userID, sourceID, "nice")
		return err
	})

	withTx(t, func(tx *sql.Tx) error {
		return MergePosts(tx, nil, sourceID, targetID)
	})

	withTx(t, func(tx *sql.Tx) error {
		var favCount, commentCount int64
		if err := tx.QueryRow(
			`select favorite_count, comment_count from post_statistics where post_id = $1`, targetID,
		).Scan(&favCount, &commentCount); err != nil {
			return err
		}
		if favCount != 1 || commentCount != 1 {
			t.Fatalf("expected favorite_count=1 comment_count=1 on target, got %d/%d", favCount, commentCount)
		}
		var sourceExists int
		if err := tx.QueryRow(`select count(*) from posts where id = $1`, sourceID).Scan(&sourceExists); err != nil {
			return err
		}
		if sourceExists != 0 {
			t.Fatal("expected source post to be deleted after merge")
		}
		return nil
	})
}

func TestPostContentInfo(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var postID int64
	var wantChecksum [32]byte
	wantChecksum[0] = 42
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 42)
		postID = p.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		checksum, mimeType, err := PostContentInfo(tx, postID)
		if err != nil {
			return err
		}
		if checksum != wantChecksum {
			t.Fatalf("expected checksum %v, got %v", wantChecksum, checksum)
		}
		if mimeType != "image/png" {
			t.Fatalf("expected image/png, got %s", mimeType)
		}
		return nil
	})
}
