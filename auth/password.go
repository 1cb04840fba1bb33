// Package auth hashes and verifies passwords, issues and validates
// opaque tokens, and answers rank/privilege questions, per spec.md
// §4.H "Authorization" and §4.I "Password + token credentials".
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/util"
)

// saltLen is the per-row salt size, stored alongside the hash on User
// (spec.md §3 "password hash + salt").
const saltLen = 16

// argon2Version tags rows hashed with the current scheme so
// VerifyPassword can stop verifying against the pbkdf2 fallback once an
// account has been rehashed.
const argon2Version byte = 1

// NewSalt returns a fresh random salt for a new or rehashed password.
func NewSalt() ([]byte, error) {
	return util.RandomBytes(saltLen)
}

// HashPassword hashes password with argon2id, salted with salt and
// peppered with the server's password_secret (spec.md §4.I: "a
// password_secret used in HMAC-style derivation"). Since
// golang.org/x/crypto/argon2 takes no secret parameter, the secret is
// mixed into the password material first with HMAC-SHA256.
func HashPassword(conf *config.Config, password string, salt []byte) []byte {
	peppered := pepper(conf, password)
	p := conf.Argon2
	hash := argon2.IDKey(peppered, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	out := make([]byte, 1+len(hash))
	out[0] = argon2Version
	copy(out[1:], hash)
	return out
}

// VerifyPassword reports whether password matches hash/salt. It
// verifies against the current argon2id scheme, and falls back to the
// legacy pbkdf2-hmac-sha256 scheme for rows hashed before the argon2id
// migration (hash[0] distinguishes the scheme), so accounts created
// under an older deployment keep working without a forced reset.
func VerifyPassword(conf *config.Config, password string, hash, salt []byte) bool {
	if len(hash) == 0 {
		return false
	}
	switch hash[0] {
	case argon2Version:
		want := HashPassword(conf, password, salt)
		return subtle.ConstantTimeCompare(want, hash) == 1
	default:
		want := legacyHash(conf, password, salt, len(hash))
		return subtle.ConstantTimeCompare(want, hash) == 1
	}
}

// legacyHash reproduces the pbkdf2-hmac-sha256 scheme predating the
// argon2id migration, keyed the same way (password_secret peppering,
// per-row salt), at the same output length as the stored hash.
func legacyHash(conf *config.Config, password string, salt []byte, keyLen int) []byte {
	peppered := pepper(conf, password)
	const legacyIterations = 100000
	return pbkdf2.Key(peppered, salt, legacyIterations, keyLen, sha256.New)
}

func pepper(conf *config.Config, password string) []byte {
	mac := hmac.New(sha256.New, []byte(conf.PasswordSecret))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
