package db

import (
	"database/sql"
	"testing"

	"github.com/liamw1/oxibooru/common"
)

func TestSignatureBytesRoundTrip(t *testing.T) {
	var sig [544]int8
	sig[0] = -12
	sig[543] = 100
	b := signatureToBytes(sig)
	if len(b) != 544 {
		t.Fatalf("expected 544 bytes, got %d", len(b))
	}
	got := bytesToSignature(b)
	if got != sig {
		t.Fatal("signature did not round-trip through its byte encoding")
	}
}

// TestReverseSearchCandidatesExactMatch covers spec.md §8 property 4:
// a query signature whose words exactly match a stored post's words
// is returned by the coarse candidate lookup.
func TestReverseSearchCandidatesExactMatch(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var postID int64
	words := []int32{10, 20, 30}
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1)
		postID = p.ID
		return SaveSignature(tx, postID, common.PostSignature{
			PostID: postID,
			Words:  words,
		})
	})

	withTx(t, func(tx *sql.Tx) error {
		candidates, err := ReverseSearchCandidates(tx, words)
		if err != nil {
			return err
		}
		var found bool
		for _, c := range candidates {
			if c.PostID == postID {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected post %d among candidates, got %v", postID, candidates)
		}
		return nil
	})
}

func TestReverseSearchCandidatesNoOverlapExcluded(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1)
		return SaveSignature(tx, p.ID, common.PostSignature{
			PostID: p.ID,
			Words:  []int32{1, 2, 3},
		})
	})

	withTx(t, func(tx *sql.Tx) error {
		candidates, err := ReverseSearchCandidates(tx, []int32{999})
		if err != nil {
			return err
		}
		if len(candidates) != 0 {
			t.Fatalf("expected no candidates for a disjoint word set, got %v", candidates)
		}
		return nil
	})
}

func TestSaveSignatureOverwritesPriorRow(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var postID int64
	withTx(t, func(tx *sql.Tx) error {
		p := createTestPost(t, tx, nil, 1)
		postID = p.ID
		return SaveSignature(tx, postID, common.PostSignature{PostID: postID, Words: []int32{1}})
	})
	withTx(t, func(tx *sql.Tx) error {
		return SaveSignature(tx, postID, common.PostSignature{PostID: postID, Words: []int32{2}})
	})

	withTx(t, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`select count(*) from post_signatures where post_id = $1`, postID).Scan(&count); err != nil {
			return err
		}
		if count != 1 {
			t.Fatalf("expected exactly one signature row per post, got %d", count)
		}
		return nil
	})
}
