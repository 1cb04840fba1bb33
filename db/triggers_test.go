package db

import (
	"context"
	"database/sql"
	"testing"
)

// TestBulkTagTriggersCoalesceByCommit covers spec.md §8 property 6: a
// single transaction that inserts a batch of post_tags rows and then
// deletes a subset of them settles post_statistics.tag_count to the
// net effect exactly once, at commit: a read inside that same
// transaction still sees the pre-transaction value (the deferred
// constraint triggers of spec.md §4.B).
func TestBulkTagTriggersCoalesceByCommit(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	const inserted = 100
	const deleted = 50
	netTagCount := inserted - deleted

	var postID int64
	tagIDs := make([]int64, 0, inserted)
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1)
		postID = p.ID
		for i := 0; i < inserted; i++ {
			tag, err := CreateTag(tx, nil, 0, []string{tagName(i)}, "")
			if err != nil {
				return err
			}
			tagIDs = append(tagIDs, tag.ID)
		}
		return nil
	})

	err := InTransaction(context.Background(), func(tx *sql.Tx) error {
		if err := addPostTags(tx, postID, tagIDs); err != nil {
			return err
		}
		if err := removePostTags(tx, postID, tagIDs[:deleted]); err != nil {
			return err
		}

		// Deferred constraint triggers only fire at commit, so within
		// this same transaction tag_count still reads as its
		// pre-transaction value (0) despite the 100 inserts and 50
		// deletes already applied to post_tags.
		var midTxCount int64
		if err := tx.QueryRow(
			`select tag_count from post_statistics where post_id = $1`, postID,
		).Scan(&midTxCount); err != nil {
			return err
		}
		if midTxCount != 0 {
			t.Fatalf("expected tag_count to still read 0 before commit (deferred trigger), got %d", midTxCount)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	withTx(t, func(tx *sql.Tx) error {
		var tagCount int64
		if err := tx.QueryRow(
			`select tag_count from post_statistics where post_id = $1`, postID,
		).Scan(&tagCount); err != nil {
			return err
		}
		if tagCount != int64(netTagCount) {
			t.Fatalf("expected tag_count %d after commit, got %d", netTagCount, tagCount)
		}

		var rowCount int64
		if err := tx.QueryRow(
			`select count(*) from post_tags where post_id = $1`, postID,
		).Scan(&rowCount); err != nil {
			return err
		}
		if rowCount != int64(netTagCount) {
			t.Fatalf("expected %d surviving post_tags rows, got %d", netTagCount, rowCount)
		}
		return nil
	})
}

func tagName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "bulk-" + string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}
