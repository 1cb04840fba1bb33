package auth

import (
	"encoding/base64"
	"strings"

	"github.com/liamw1/oxibooru/common"
)

// Scheme distinguishes the two supported Authorization header schemes
// (spec.md §6 "Authentication").
type Scheme uint8

const (
	// SchemeAnonymous means no Authorization header was presented.
	SchemeAnonymous Scheme = iota
	SchemeBasic
	SchemeToken
)

// Credentials is the parsed, not-yet-verified content of an
// Authorization header: a username paired with either a plaintext
// password (Basic) or an opaque token (Token). Verifying these
// against the stored User/UserToken rows is left to the caller (the
// db package), since this package has no database access of its own.
type Credentials struct {
	Scheme   Scheme
	Username string
	Password string
	Token    string
}

// ParseAuthorization parses the value of an Authorization header per
// spec.md §6: "Authorization: Basic <base64(user:pass)> or
// Authorization: Token <base64(user:token)>". An empty header is valid
// and parses to SchemeAnonymous.
func ParseAuthorization(header string) (Credentials, error) {
	if header == "" {
		return Credentials{Scheme: SchemeAnonymous}, nil
	}

	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok {
		return Credentials{}, common.NewError(common.KindMalformedInput,
			"malformed Authorization header")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Credentials{}, common.WrapKind(common.KindMalformedInput, err)
	}
	user, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return Credentials{}, common.NewError(common.KindMalformedInput,
			"malformed Authorization credentials")
	}

	switch strings.ToLower(scheme) {
	case "basic":
		return Credentials{Scheme: SchemeBasic, Username: user, Password: secret}, nil
	case "token":
		return Credentials{Scheme: SchemeToken, Username: user, Token: secret}, nil
	default:
		return Credentials{}, common.NewErrorf(common.KindMalformedInput,
			"unsupported Authorization scheme %q", scheme)
	}
}

// RequiresAuthentication reports whether attempting privilege requires
// a logged-in user (spec.md §6: "Anonymous requests are valid iff the
// requested action's privilege <= anonymous").
func RequiresAuthentication(rank common.Rank) bool {
	return rank > common.RankAnonymous
}
