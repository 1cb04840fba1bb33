package db

import (
	"context"
	"database/sql"
	"testing"
)

func TestIteratePostsVisitsInAscendingOrder(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var want []int64
	withTx(t, func(tx *sql.Tx) error {
		for i := byte(1); i <= 5; i++ {
			want = append(want, createTestPost(t, tx, nil, i).ID)
		}
		return nil
	})

	var got []int64
	err := IteratePosts(context.Background(), 0, func(tx *sql.Tx, postID int64) error {
		got = append(got, postID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d posts visited, got %d", len(want), len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("expected strictly ascending ids, got %v", got)
		}
	}
}

func TestIteratePostsResumesAfterID(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var ids []int64
	withTx(t, func(tx *sql.Tx) error {
		for i := byte(1); i <= 3; i++ {
			ids = append(ids, createTestPost(t, tx, nil, i).ID)
		}
		return nil
	})

	var got []int64
	err := IteratePosts(context.Background(), ids[0], func(tx *sql.Tx, postID int64) error {
		got = append(got, postID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != ids[1] || got[1] != ids[2] {
		t.Fatalf("expected to resume after %d with %v, got %v", ids[0], ids[1:], got)
	}
}

func TestIteratePostsStopsOnCallbackError(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	withTx(t, func(tx *sql.Tx) error {
		createTestPost(t, tx, nil, 1)
		createTestPost(t, tx, nil, 2)
		return nil
	})

	var visited int
	err := IteratePosts(context.Background(), 0, func(tx *sql.Tx, postID int64) error {
		visited++
		return sql.ErrTxDone
	})
	if err == nil {
		t.Fatal("expected the callback's failure to propagate")
	}
	if visited != 1 {
		t.Fatalf("expected iteration to stop after the first failure, visited %d rows", visited)
	}
}
