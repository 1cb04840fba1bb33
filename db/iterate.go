package db

import (
	"context"
	"database/sql"
)

// IteratePosts implements the "structure as explicit iterators over
// (id, version) pairs with per-row transactions and idempotent
// effects so crashes resume cleanly" design note of spec.md §9 for
// long-running admin jobs (recompute_signatures, reset_filenames).
// Rows are visited in ascending id order starting after afterID, each
// inside its own transaction, so a crash partway through only needs to
// be restarted with afterID set to the last id successfully processed
// by the caller.
func IteratePosts(ctx context.Context, afterID int64, fn func(tx *sql.Tx, postID int64) error) error {
	for {
		var id int64
		err := db.QueryRowContext(ctx,
			`select id from posts where id > $1 order by id limit 1`, afterID,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return classifyPQError(err)
		}

		err = InTransaction(ctx, func(tx *sql.Tx) error {
			return fn(tx, id)
		})
		if err != nil {
			return err
		}
		afterID = id
	}
}
