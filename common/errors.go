package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error the core can raise, per spec.md §7.
// A typed kind lets the request boundary choose an HTTP status and lets
// the write path decide whether an error is worth retrying (deadlock,
// serialisation failure) without string-matching messages.
type ErrorKind uint8

const (
	// Input/validation
	KindMalformedInput ErrorKind = iota
	KindRegexMismatch
	KindOutOfRange
	KindEmptyRequiredValue
	KindInvalidEnum
	KindCyclicDependency
	KindUniqueViolation
	KindForeignKeyViolation

	// State
	KindVersionOutdated
	KindResourceModified
	KindNotFound
	KindAlreadyExists
	KindDeleteDefaultCategory
	KindSelfMerge

	// Auth
	KindNotLoggedIn
	KindInsufficientPrivileges
	KindCredentialsMismatch
	KindExpiredToken

	// Content
	KindUnsupportedFormat
	KindCorruptContent
	KindDimensionsTooLarge
	KindChecksumCollision

	// I/O and infrastructure
	KindConnectionAborted
	KindDeadlock
	KindSerializationFailure
	KindFileTooLarge
	KindStorageFull
	KindUnreachableNetwork
	KindTransportError
)

var statusByKind = [...]int{
	KindMalformedInput:         400,
	KindRegexMismatch:          400,
	KindOutOfRange:             400,
	KindEmptyRequiredValue:     400,
	KindInvalidEnum:            400,
	KindCyclicDependency:       409,
	KindUniqueViolation:        409,
	KindForeignKeyViolation:    400,
	KindVersionOutdated:        409,
	KindResourceModified:       409,
	KindNotFound:               404,
	KindAlreadyExists:          409,
	KindDeleteDefaultCategory:  400,
	KindSelfMerge:              400,
	KindNotLoggedIn:            401,
	KindInsufficientPrivileges: 403,
	KindCredentialsMismatch:    401,
	KindExpiredToken:           401,
	KindUnsupportedFormat:      415,
	KindCorruptContent:         400,
	KindDimensionsTooLarge:     413,
	KindChecksumCollision:      200, // recorded, tolerated: not an error response
	KindConnectionAborted:      500,
	KindDeadlock:               500,
	KindSerializationFailure:   500,
	KindFileTooLarge:           413,
	KindStorageFull:            500,
	KindUnreachableNetwork:     500,
	KindTransportError:         500,
}

// StatusError is an error tagged with its ErrorKind and the HTTP status
// that kind maps to, so the write path (§4.F) and request boundary can
// branch on semantics, not on message text.
type StatusError struct {
	Err  error
	Kind ErrorKind
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e StatusError) Unwrap() error { return e.Err }

// Status returns the HTTP status code for this error's kind.
func (e StatusError) Status() int { return statusByKind[e.Kind] }

var errorKindNames = [...]string{
	"malformed input", "regex mismatch", "out of range",
	"empty required value", "invalid enum", "cyclic dependency",
	"unique violation", "foreign key violation", "version outdated",
	"resource modified", "not found", "already exists",
	"delete default category", "self merge", "not logged in",
	"insufficient privileges", "credentials mismatch", "expired token",
	"unsupported format", "corrupt content", "dimensions too large",
	"checksum collision", "connection aborted", "deadlock",
	"serialization failure", "file too large", "storage full",
	"unreachable network", "transport error",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

// NewError builds a StatusError of the given kind wrapping msg.
func NewError(kind ErrorKind, msg string) error {
	return StatusError{Err: errors.New(msg), Kind: kind}
}

// NewErrorf is NewError with Printf-style formatting.
func NewErrorf(kind ErrorKind, format string, args ...interface{}) error {
	return StatusError{Err: fmt.Errorf(format, args...), Kind: kind}
}

// WrapKind wraps err, if non-nil, as a StatusError of the given kind,
// preserving the original error as the cause.
func WrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return StatusError{Err: err, Kind: kind}
}

// KindOf extracts the ErrorKind from err, if it (or something it wraps)
// is a StatusError. ok is false for unrecognised errors, which callers
// should treat as KindTransportError / 500.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether err is a transient storage/concurrency
// error that the request handler should retry with backoff before
// surfacing to the client, per spec.md §7's propagation policy.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindDeadlock || kind == KindSerializationFailure ||
		kind == KindConnectionAborted
}

// CanIgnoreClientError reports whether a client-caused error is safe to
// drop without logging, driven off ErrorKind instead of a bare HTTP
// status range so it keeps working as kinds are added.
func CanIgnoreClientError(err error) bool {
	if err == nil {
		return true
	}
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	status := statusByKind[kind]
	return status >= 400 && status < 500
}

// Commonly constructed errors, each carrying a typed kind.
var (
	ErrNotFound            = NewError(KindNotFound, "resource not found")
	ErrNotLoggedIn         = NewError(KindNotLoggedIn, "not logged in")
	ErrInsufficientPrivileges = NewError(KindInsufficientPrivileges, "insufficient privileges")
)

// ErrVersionOutdated reports a failed optimistic concurrency check: the
// caller's request.version does not match the row's current
// last_edit_time (spec.md §4.F step 4 / §8 property 2).
func ErrVersionOutdated() error {
	return NewError(KindVersionOutdated, "version outdated, please refetch and retry")
}

// ErrCyclicDependency reports that applying an edge would create a
// cycle in a tag implication/suggestion or post relation graph
// (spec.md §4.F step 6).
func ErrCyclicDependency(parent, child int64) error {
	return NewErrorf(KindCyclicDependency,
		"adding edge %d -> %d would create a cycle", parent, child)
}
