package db

import (
	"database/sql"
	"time"

	"github.com/liamw1/oxibooru/auth"
	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/config"
)

// CreateUser registers a new account, hashing password with the
// configured argon2id scheme (spec.md §4.I). The default rank comes
// from config.Public.DefaultRank; the very first account created in
// an empty instance is promoted to administrator the way a fresh
// booru install always seeds its own admin.
func CreateUser(tx *sql.Tx, conf *config.Config, name, password string, email *string) (common.User, error) {
	salt, err := auth.NewSalt()
	if err != nil {
		return common.User{}, err
	}
	hash := auth.HashPassword(conf, password, salt)

	var count int
	if err := tx.QueryRow(`select count(*) from users`).Scan(&count); err != nil {
		return common.User{}, classifyPQError(err)
	}
	rank := common.ParseRank(conf.Public.DefaultRank)
	if count == 0 {
		rank = common.RankAdministrator
	}

	var u common.User
	err = tx.QueryRow(
		`insert into users (name, rank, email, password_hash, password_salt)
			values ($1, $2, $3, $4, $5)
			returning id, name, rank, email, avatar_style, creation_time,
				last_login_time, last_edit_time`,
		name, rank, email, hash, salt,
	).Scan(&u.ID, &u.Name, &u.Rank, &u.Email, &u.AvatarStyle,
		&u.CreationTime, &u.LastLoginTime, &u.LastEditTime)
	if err != nil {
		return common.User{}, classifyPQError(err)
	}
	u.PasswordHash = hash
	u.PasswordSalt = salt
	return u, nil
}

// GetUserByName fetches a user by case-insensitive name (spec.md §3:
// "name (CI, unique)").
func GetUserByName(tx *sql.Tx, name string) (common.User, error) {
	var u common.User
	err := tx.QueryRow(
		`select id, name, rank, email, avatar_style, password_hash,
			password_salt, custom_avatar_size, creation_time,
			last_login_time, last_edit_time
			from users where lower(name) = lower($1)`,
		name,
	).Scan(&u.ID, &u.Name, &u.Rank, &u.Email, &u.AvatarStyle,
		&u.PasswordHash, &u.PasswordSalt, &u.CustomAvatarSize,
		&u.CreationTime, &u.LastLoginTime, &u.LastEditTime)
	switch {
	case err == sql.ErrNoRows:
		return common.User{}, common.ErrNotFound
	case err != nil:
		return common.User{}, classifyPQError(err)
	}
	return u, nil
}

// AuthenticateBasic verifies a username/password pair against the
// stored hash, per spec.md §6's Basic auth scheme.
func AuthenticateBasic(tx *sql.Tx, conf *config.Config, name, password string) (common.User, error) {
	u, err := GetUserByName(tx, name)
	if err != nil {
		return common.User{}, err
	}
	if !auth.VerifyPassword(conf, password, u.PasswordHash, u.PasswordSalt) {
		return common.User{}, common.NewError(common.KindCredentialsMismatch,
			"username/password mismatch")
	}
	return u, nil
}

// CreateUserToken issues a new long-lived token for userID (spec.md
// §3/§4.I).
func CreateUserToken(tx *sql.Tx, userID int64, note string, expires *time.Time) (common.UserToken, error) {
	raw, err := auth.GenerateToken()
	if err != nil {
		return common.UserToken{}, err
	}
	var t common.UserToken
	t.Token = raw
	err = tx.QueryRow(
		`insert into user_tokens (user_id, token, note, expiration_time)
			values ($1, $2, $3, $4)
			returning id, enabled, creation_time, last_edit_time`,
		userID, raw[:], note, expires,
	).Scan(&t.ID, &t.Enabled, &t.CreationTime, &t.LastEditTime)
	if err != nil {
		return common.UserToken{}, classifyPQError(err)
	}
	t.UserID = userID
	t.Note = note
	t.Expires = expires
	return t, nil
}

// AuthenticateToken verifies a username/token pair, per spec.md §6's
// Token auth scheme, and marks the token's last_usage_time.
func AuthenticateToken(tx *sql.Tx, name, rawToken string) (common.User, error) {
	u, err := GetUserByName(tx, name)
	if err != nil {
		return common.User{}, err
	}

	var tok common.UserToken
	err = tx.QueryRow(
		`select id, enabled, expiration_time from user_tokens
			where user_id = $1 and token = $2`,
		u.ID, []byte(rawToken),
	).Scan(&tok.ID, &tok.Enabled, &tok.Expires)
	switch {
	case err == sql.ErrNoRows:
		return common.User{}, common.NewError(common.KindCredentialsMismatch,
			"unknown token")
	case err != nil:
		return common.User{}, classifyPQError(err)
	}

	if !auth.ValidateToken(tok, time.Now()) {
		return common.User{}, common.NewError(common.KindExpiredToken,
			"token disabled or expired")
	}

	if _, err := tx.Exec(
		`update user_tokens set last_usage_time = now() where id = $1`, tok.ID,
	); err != nil {
		return common.User{}, classifyPQError(err)
	}
	return u, nil
}
