// Package db implements the persisted data model (spec.md §3), its
// versioned migrations, the deferred-trigger derived-statistics layer
// (§4.B), the optimistic-concurrency write path (§4.F), audit-trail
// snapshots (§4.G), and the query compiler's backing store (§4.E).
package db

import (
	"context"
	"database/sql"
	"net/url"

	"github.com/Masterminds/squirrel"
	"github.com/go-playground/log"
	"github.com/lib/pq"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/util"
)

var (
	// db is the open connection pool. Exported operations all accept
	// an explicit *sql.Tx; db itself is only used to begin
	// transactions and to run DDL at startup.
	db *sql.DB

	// sq is the shared statement builder/cache, grounded on the
	// teacher's init.go: RunWith(squirrel.NewStmtCacheProxy(db)) caches
	// prepared statements by SQL text; Dollar placeholders match
	// Postgres.
	sq squirrel.StatementBuilderType
)

// Open connects to the Postgres instance named by conf.Database.URL,
// enabling binary parameter encoding, then brings the schema up to
// date via either initDB (empty database) or runMigrations (existing
// one).
func Open(conf *config.Config) error {
	u, err := url.Parse(conf.Database.URL)
	if err != nil {
		return util.WrapError("parse database url", err)
	}
	q := u.Query()
	q.Set("binary_parameters", "yes")
	u.RawQuery = q.Encode()

	db, err = sql.Open("postgres", u.String())
	if err != nil {
		return util.WrapError("open database", err)
	}

	sq = squirrel.StatementBuilder.
		RunWith(squirrel.NewStmtCacheProxy(db)).
		PlaceholderFormat(squirrel.Dollar)

	var exists bool
	const q2 = `select exists (
		select 1 from information_schema.tables
			where table_schema = 'public' and table_name = 'schema_version'
	)`
	if err := db.QueryRow(q2).Scan(&exists); err != nil {
		return util.WrapError("probe schema", err)
	}
	if !exists {
		log.Info("initializing database schema")
		return initDB()
	}
	return runMigrations()
}

// Close releases the connection pool. Only meaningful once per
// process.
func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// InTransaction runs fn inside a transaction, committing on success
// and rolling back on error or panic, against database/sql, which is
// what this core's squirrel builder and lib/pq driver actually
// produce statements over.
func InTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return util.WrapError("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return
}

// ClearTables deletes every row from each named table, for tests that
// need a known-empty starting point between cases.
func ClearTables(tables ...string) error {
	for _, t := range tables {
		if _, err := db.Exec(`delete from ` + t); err != nil {
			return classifyPQError(err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique
// constraint violation, by checking its pq error code.
func IsUniqueViolation(err error) bool {
	return pqErrorCode(err) == "unique_violation"
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// constraint violation.
func IsForeignKeyViolation(err error) bool {
	return pqErrorCode(err) == "foreign_key_violation"
}

// IsSerializationFailure reports whether err is a Postgres
// serialization failure under SERIALIZABLE isolation, or a detected
// deadlock — both are retried by util.Retry before surfacing
// (spec.md §7).
func IsSerializationFailure(err error) bool {
	code := pqErrorCode(err)
	return code == "serialization_failure" || code == "deadlock_detected"
}

// asPQError extracts the concrete *pq.Error from err via a plain type
// assertion.
func asPQError(err error) (*pq.Error, bool) {
	perr, ok := err.(*pq.Error)
	return perr, ok
}

func pqErrorCode(err error) string {
	if perr, ok := asPQError(err); ok {
		return perr.Code.Name()
	}
	return ""
}

// classifyPQError maps a *pq.Error to the ErrorKind the rest of the
// core reasons about, so the write path never string-matches
// Postgres-specific messages beyond this one seam.
func classifyPQError(err error) error {
	perr, ok := asPQError(err)
	if !ok {
		return err
	}
	switch perr.Code.Name() {
	case "unique_violation":
		return common.WrapKind(common.KindUniqueViolation, err)
	case "foreign_key_violation":
		return common.WrapKind(common.KindForeignKeyViolation, err)
	case "serialization_failure":
		return common.WrapKind(common.KindSerializationFailure, err)
	case "deadlock_detected":
		return common.WrapKind(common.KindDeadlock, err)
	default:
		return common.WrapKind(common.KindTransportError, err)
	}
}
