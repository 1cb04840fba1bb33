package db

import (
	"database/sql"
	"testing"
)

func TestCreatePoolOrdersPosts(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var poolID int64
	var postA, postB int64
	withTx(t, func(tx *sql.Tx) error {
		a := createTestPost(t, tx, nil, 1)
		b := createTestPost(t, tx, nil, 2)
		postA, postB = a.ID, b.ID
		p, err := CreatePool(tx, nil, 0, []string{"series"}, "", []int64{postB, postA})
		if err != nil {
			return err
		}
		poolID = p.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`select post_id from pool_posts where pool_id = $1 order by ordinal`, poolID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		var order []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			order = append(order, id)
		}
		if len(order) != 2 || order[0] != postB || order[1] != postA {
			t.Fatalf("expected ordinal-preserving sequence [%d %d], got %v", postB, postA, order)
		}
		return nil
	})
}

func TestMergePoolsAppendsAndDedupes(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var sourceID, targetID, shared, sourceOnly, targetOnly int64
	withTx(t, func(tx *sql.Tx) error {
		shared = createTestPost(t, tx, nil, 1).ID
		sourceOnly = createTestPost(t, tx, nil, 2).ID
		targetOnly = createTestPost(t, tx, nil, 3).ID

		target, err := CreatePool(tx, nil, 0, []string{"target"}, "", []int64{targetOnly, shared})
		if err != nil {
			return err
		}
		targetID = target.ID

		source, err := CreatePool(tx, nil, 0, []string{"source"}, "", []int64{shared, sourceOnly})
		if err != nil {
			return err
		}
		sourceID = source.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		return MergePools(tx, nil, sourceID, targetID)
	})

	withTx(t, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`select count(*) from pool_posts where pool_id = $1`, targetID).Scan(&count); err != nil {
			return err
		}
		if count != 3 {
			t.Fatalf("expected 3 deduplicated posts in the merged pool, got %d", count)
		}
		var sourceExists int
		if err := tx.QueryRow(`select count(*) from pools where id = $1`, sourceID).Scan(&sourceExists); err != nil {
			return err
		}
		if sourceExists != 0 {
			t.Fatal("expected source pool to be deleted after merge")
		}
		return nil
	})
}

func TestMergePoolsRejectsSelfMerge(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var poolID int64
	withTx(t, func(tx *sql.Tx) error {
		p, err := CreatePool(tx, nil, 0, []string{"solo"}, "", nil)
		if err != nil {
			return err
		}
		poolID = p.ID
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		if err := MergePools(tx, nil, poolID, poolID); err == nil {
			t.Fatal("expected a self-merge error, got nil")
		}
		return nil
	})
}
