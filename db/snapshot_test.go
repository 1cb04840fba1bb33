package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/liamw1/oxibooru/common"
)

func TestRecordSnapshotStoresOperationAndData(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var userID int64
	withTx(t, func(tx *sql.Tx) error {
		userID = createTestUser(t, tx, "auditor").ID
		return nil
	})

	name := "kitten"
	withTx(t, func(tx *sql.Tx) error {
		return RecordSnapshot(tx, &userID, common.OperationCreated, common.ResourceTag, 42, &name,
			map[string]string{"names": "kitten"})
	})

	withTx(t, func(tx *sql.Tx) error {
		var op common.SnapshotOperation
		var resourceType common.ResourceType
		var resourceID int64
		var resourceName sql.NullString
		var data []byte
		err := tx.QueryRow(
			`select operation, resource_type, resource_id, resource_name, data
				from snapshots where user_id = $1`, userID,
		).Scan(&op, &resourceType, &resourceID, &resourceName, &data)
		if err != nil {
			return err
		}
		if op != common.OperationCreated {
			t.Fatalf("expected OperationCreated, got %v", op)
		}
		if resourceType != common.ResourceTag {
			t.Fatalf("expected ResourceTag, got %v", resourceType)
		}
		if resourceID != 42 {
			t.Fatalf("expected resource_id 42, got %d", resourceID)
		}
		if !resourceName.Valid || resourceName.String != "kitten" {
			t.Fatalf("expected resource_name kitten, got %v", resourceName)
		}
		var decoded map[string]string
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded["names"] != "kitten" {
			t.Fatalf("expected data to round-trip through JSON, got %v", decoded)
		}
		return nil
	})
}

func TestRecordSnapshotRollsBackWithItsTransaction(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var userID int64
	withTx(t, func(tx *sql.Tx) error {
		userID = createTestUser(t, tx, "auditor2").ID
		return nil
	})

	err := InTransaction(context.Background(), func(tx *sql.Tx) error {
		if err := RecordSnapshot(tx, &userID, common.OperationDeleted, common.ResourcePost, 1, nil, nil); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err == nil {
		t.Fatal("expected the injected failure to roll back the transaction")
	}

	withTx(t, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`select count(*) from snapshots where user_id = $1`, userID).Scan(&count); err != nil {
			return err
		}
		if count != 0 {
			t.Fatal("expected the snapshot insert to have been rolled back")
		}
		return nil
	})
}
