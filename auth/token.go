package auth

import (
	"time"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/util"
)

// tokenLen is the opaque token size (spec.md §3: "opaque 128-bit
// token").
const tokenLen = 16

// GenerateToken returns a fresh cryptographically random 128-bit
// token, for UserToken.Token.
func GenerateToken() ([16]byte, error) {
	var tok [16]byte
	buf, err := util.RandomBytes(tokenLen)
	if err != nil {
		return tok, err
	}
	copy(tok[:], buf)
	return tok, nil
}

// ValidateToken reports whether tok is usable for authentication: it
// must be enabled and, if it carries an expiration, not yet expired
// (spec.md §3/§4.I).
func ValidateToken(tok common.UserToken, now time.Time) bool {
	if !tok.Enabled {
		return false
	}
	if tok.Expires != nil && now.After(*tok.Expires) {
		return false
	}
	return true
}
