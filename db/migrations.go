package db

import (
	"context"
	"database/sql"

	"github.com/liamw1/oxibooru/util"
)

// migrations are run forward-only, in order, against a schema_version
// row tracking how many have applied (`version = len(migrations)`, a
// single growing slice never reordered, each entry a self-contained
// *sql.Tx closure) and implement spec.md §3's data model.
var migrations = []func(*sql.Tx) error{
	createCoreTables,
	createStatisticsTables,
	createTriggers,
}

var version = len(migrations)

// initDB creates the schema_version bookkeeping table and runs every
// migration against a fresh database.
func initDB() error {
	return InTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`create table schema_version (
			id int primary key check (id = 1),
			version int not null
		)`); err != nil {
			return util.WrapError("create schema_version", err)
		}
		if _, err := tx.Exec(
			`insert into schema_version (id, version) values (1, 0)`,
		); err != nil {
			return util.WrapError("seed schema_version", err)
		}
		return runMigrationsTx(tx)
	})
}

// runMigrations brings an existing database up to the current version
// inside a single transaction, so a failed upgrade never leaves a
// partially-applied schema.
func runMigrations() error {
	return InTransaction(context.Background(), func(tx *sql.Tx) error {
		return runMigrationsTx(tx)
	})
}

func runMigrationsTx(tx *sql.Tx) error {
	var current int
	if err := tx.QueryRow(
		`select version from schema_version where id = 1`,
	).Scan(&current); err != nil {
		return util.WrapError("read schema version", err)
	}
	for i := current; i < version; i++ {
		if err := migrations[i](tx); err != nil {
			return util.WrapError("apply migration", err)
		}
	}
	if current != version {
		if _, err := tx.Exec(
			`update schema_version set version = $1 where id = 1`, version,
		); err != nil {
			return util.WrapError("update schema version", err)
		}
	}
	return nil
}

// execAll runs each statement against tx in order, stopping at the
// first error.
func execAll(tx *sql.Tx, queries ...string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// createCoreTables lays out spec.md §3's resource tables: users,
// tokens, tag categories/tags/implications/suggestions, pools/pool
// categories, posts and their associations, notes, signatures,
// comments and snapshots.
func createCoreTables(tx *sql.Tx) error {
	return execAll(tx,
		`create table users (
			id bigserial primary key,
			name text not null unique,
			rank smallint not null,
			email text,
			avatar_style smallint not null default 0,
			password_hash bytea not null,
			password_salt bytea not null,
			custom_avatar_size bigint not null default 0,
			creation_time timestamptz not null default now(),
			last_login_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now()
		)`,
		`create table user_tokens (
			id bigserial primary key,
			user_id bigint not null references users on delete cascade,
			token bytea not null unique,
			note text not null default '',
			enabled boolean not null default true,
			expiration_time timestamptz,
			creation_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now(),
			last_usage_time timestamptz
		)`,
		`create table tag_categories (
			id bigserial primary key,
			name text not null unique,
			color text not null default '#000000',
			"order" int not null default 0,
			is_default boolean not null default false,
			last_edit_time timestamptz not null default now()
		)`,
		`insert into tag_categories (id, name, is_default) values (0, 'default', true)`,
		`create table tags (
			id bigserial primary key,
			category_id bigint not null references tag_categories,
			description text not null default '',
			creation_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now()
		)`,
		`create table tag_names (
			tag_id bigint not null references tags on delete cascade,
			name text not null unique,
			ordinal int not null default 0,
			primary key (tag_id, name)
		)`,
		`create table tag_implications (
			parent_id bigint not null references tags on delete cascade,
			child_id bigint not null references tags on delete cascade,
			primary key (parent_id, child_id)
		)`,
		`create table tag_suggestions (
			parent_id bigint not null references tags on delete cascade,
			child_id bigint not null references tags on delete cascade,
			primary key (parent_id, child_id)
		)`,
		`create table pool_categories (
			id bigserial primary key,
			name text not null unique,
			color text not null default '#000000',
			is_default boolean not null default false
		)`,
		`insert into pool_categories (id, name, is_default) values (0, 'default', true)`,
		`create table pools (
			id bigserial primary key,
			category_id bigint not null references pool_categories,
			description text not null default '',
			creation_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now()
		)`,
		`create table pool_names (
			pool_id bigint not null references pools on delete cascade,
			name text not null unique,
			ordinal int not null default 0,
			primary key (pool_id, name)
		)`,
		`create table pool_posts (
			pool_id bigint not null references pools on delete cascade,
			post_id bigint not null,
			ordinal int not null,
			primary key (pool_id, post_id)
		)`,
		`create table posts (
			id bigserial primary key,
			uploader_id bigint references users on delete set null,
			file_size bigint not null,
			canvas_width int not null,
			canvas_height int not null,
			safety smallint not null,
			type smallint not null,
			mime_type text not null,
			checksum bytea not null unique,
			md5 bytea not null,
			flags int not null default 0,
			source text not null default '',
			creation_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now(),
			generated_thumbnail_size bigint not null default 0,
			custom_thumbnail_size bigint not null default 0
		)`,
		`create table post_tags (
			post_id bigint not null references posts on delete cascade,
			tag_id bigint not null references tags on delete cascade,
			primary key (post_id, tag_id)
		)`,
		`create table post_relations (
			post_id bigint not null references posts on delete cascade,
			child_id bigint not null references posts on delete cascade,
			primary key (post_id, child_id)
		)`,
		`create table post_favorites (
			post_id bigint not null references posts on delete cascade,
			user_id bigint not null references users on delete cascade,
			time timestamptz not null default now(),
			primary key (post_id, user_id)
		)`,
		`create table post_features (
			id bigserial primary key,
			post_id bigint not null references posts on delete cascade,
			user_id bigint references users on delete set null,
			time timestamptz not null default now()
		)`,
		`create table post_scores (
			post_id bigint not null references posts on delete cascade,
			user_id bigint not null references users on delete cascade,
			score smallint not null,
			time timestamptz not null default now(),
			primary key (post_id, user_id)
		)`,
		`create table post_notes (
			id bigserial primary key,
			post_id bigint not null references posts on delete cascade,
			polygon jsonb not null,
			text text not null default ''
		)`,
		`create table post_signatures (
			post_id bigint primary key references posts on delete cascade,
			signature bytea not null,
			words int[] not null
		)`,
		`create index post_signatures_words_idx on post_signatures using gin (words)`,
		`create table comments (
			id bigserial primary key,
			post_id bigint not null references posts on delete cascade,
			user_id bigint references users on delete set null,
			text text not null,
			creation_time timestamptz not null default now(),
			last_edit_time timestamptz not null default now()
		)`,
		`create table comment_scores (
			comment_id bigint not null references comments on delete cascade,
			user_id bigint not null references users on delete cascade,
			score smallint not null,
			primary key (comment_id, user_id)
		)`,
		`create table snapshots (
			id bigserial primary key,
			user_id bigint references users on delete set null,
			operation smallint not null,
			resource_type smallint not null,
			resource_id bigint not null,
			resource_name text,
			data jsonb not null,
			time timestamptz not null default now()
		)`,
	)
}

// createStatisticsTables adds the derived-counter rows of spec.md
// §4.B: one global row, and one row per post/tag/category/user/
// comment, each maintained solely by triggers (never written directly
// by the write path).
func createStatisticsTables(tx *sql.Tx) error {
	return execAll(tx,
		`create table database_statistics (
			id int primary key check (id = 1),
			disk_usage bigint not null default 0,
			comment_count bigint not null default 0,
			pool_count bigint not null default 0,
			post_count bigint not null default 0,
			tag_count bigint not null default 0,
			user_count bigint not null default 0
		)`,
		`insert into database_statistics (id) values (1)`,
		`create table post_statistics (
			post_id bigint primary key references posts on delete cascade,
			tag_count bigint not null default 0,
			pool_count bigint not null default 0,
			note_count bigint not null default 0,
			comment_count bigint not null default 0,
			relation_count bigint not null default 0,
			score bigint not null default 0,
			favorite_count bigint not null default 0,
			feature_count bigint not null default 0,
			last_comment_time timestamptz,
			last_favorite_time timestamptz,
			last_feature_time timestamptz
		)`,
		`create table tag_statistics (
			tag_id bigint primary key references tags on delete cascade,
			usage_count bigint not null default 0,
			implication_count bigint not null default 0,
			suggestion_count bigint not null default 0
		)`,
		`create table category_statistics (
			category_id bigint primary key,
			usage_count bigint not null default 0
		)`,
		`create table user_statistics (
			user_id bigint primary key references users on delete cascade,
			comment_count bigint not null default 0,
			favorite_count bigint not null default 0,
			upload_count bigint not null default 0
		)`,
		`create table comment_statistics (
			comment_id bigint primary key references comments on delete cascade,
			score bigint not null default 0
		)`,
	)
}
