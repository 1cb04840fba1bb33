package db

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/liamw1/oxibooru/common"
)

func signatureToBytes(sig [544]int8) []byte {
	b := make([]byte, len(sig))
	for i, v := range sig {
		b[i] = byte(v)
	}
	return b
}

func bytesToSignature(b []byte) (sig [544]int8) {
	for i := 0; i < len(sig) && i < len(b); i++ {
		sig[i] = int8(b[i])
	}
	return sig
}

// SaveSignature persists a post's perceptual signature and its
// coarse-index words, overwriting any prior row for the same post
// (spec.md §3 invariant 2: exactly one PostSignature row per Post once
// computed).
func SaveSignature(tx *sql.Tx, postID int64, sig common.PostSignature) error {
	_, err := tx.Exec(
		`insert into post_signatures (post_id, signature, words) values ($1, $2, $3)
			on conflict (post_id) do update set signature = excluded.signature, words = excluded.words`,
		postID, signatureToBytes(sig.Signature), pq.Array(sig.Words),
	)
	if err != nil {
		return classifyPQError(err)
	}
	return nil
}

// ReverseSearchCandidates runs the coarse tier of spec.md §4.C's
// two-tier reverse search: an inverted-index lookup returning every
// post whose `words` array overlaps the query signature's words at
// all, via Postgres' `&&` array-overlap operator against the GIN
// index on post_signatures.words. This is deliberately NOT truncated —
// the fine tier (signature distance, computed by the caller with
// imager.Distance over the returned signatures) does the actual
// ranking and thresholding.
func ReverseSearchCandidates(tx *sql.Tx, queryWords []int32) ([]common.PostSignature, error) {
	rows, err := tx.Query(
		`select post_id, signature, words from post_signatures where words && $1`,
		pq.Array(queryWords),
	)
	if err != nil {
		return nil, classifyPQError(err)
	}
	defer rows.Close()

	var out []common.PostSignature
	for rows.Next() {
		var postID int64
		var sigBytes []byte
		var words []int32
		if err := rows.Scan(&postID, &sigBytes, pq.Array(&words)); err != nil {
			return nil, err
		}
		out = append(out, common.PostSignature{
			PostID:    postID,
			Signature: bytesToSignature(sigBytes),
			Words:     words,
		})
	}
	return out, rows.Err()
}
