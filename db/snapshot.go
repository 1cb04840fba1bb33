package db

import (
	"database/sql"
	"encoding/json"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/util"
)

// RecordSnapshot emits an audit-trail row in the same transaction as
// the mutation it describes (spec.md §4.G: "snapshot/audit-trail
// emission in the same transaction"), so a rolled-back write never
// leaves an orphaned snapshot behind.
func RecordSnapshot(
	tx *sql.Tx,
	userID *int64,
	op common.SnapshotOperation,
	resourceType common.ResourceType,
	resourceID int64,
	resourceName *string,
	data interface{},
) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return util.WrapError("marshal snapshot data", err)
	}
	_, err = tx.Exec(
		`insert into snapshots
			(user_id, operation, resource_type, resource_id, resource_name, data)
			values ($1, $2, $3, $4, $5, $6)`,
		userID, op, resourceType, resourceID, resourceName, encoded,
	)
	if err != nil {
		return classifyPQError(err)
	}
	return nil
}
