// Package util contains general utility functions shared across the
// core: error wrapping, retry-with-backoff, and the crypto/random
// primitives used by auth and imager.
package util

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"log"
	"math"
	"runtime"
	"strconv"
	"time"

	"github.com/liamw1/oxibooru/common"
)

// WrapError wraps error types to create compound error chains
func WrapError(text string, err error) error {
	if err == nil {
		return nil
	}
	return wrapedError{
		text:  text,
		inner: err,
	}
}

type wrapedError struct {
	text  string
	inner error
}

func (e wrapedError) Error() string {
	text := e.text
	if e.inner != nil {
		text += ": " + e.inner.Error()
	}
	return text
}

func (e wrapedError) Unwrap() error { return e.inner }

// Waterfall executes a slice of functions until the first error returned. This
// error, if any, is returned to the caller.
func Waterfall(fns []func() error) (err error) {
	for _, fn := range fns {
		err = fn()
		if err != nil {
			break
		}
	}
	return
}

// HashBuffer computes a truncated MD5 hash from a buffer
func HashBuffer(buf []byte) string {
	hash := md5.Sum(buf)
	return hex.EncodeToString(hash[:])[:16]
}

// IDToString is a helper for converting a resource ID to a string for
// JSON keys
func IDToString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// LogError logs an error with its stack trace
func LogError(ip string, err interface{}) {
	const size = 64 << 10
	buf := make([]byte, size)
	buf = buf[:runtime.Stack(buf, false)]
	log.Printf("panic serving %v: %v\n%s", ip, err, buf)
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

// MaxRetries bounds how many times Retry attempts fn, per spec.md §7's
// propagation policy ("retried by the request handler up to three
// times with exponential backoff before surfacing").
const MaxRetries = 3

// Retry runs fn, retrying with exponential backoff while
// common.IsRetryable(err) is true, up to MaxRetries attempts. The last
// error, whatever its kind, is returned to the caller.
func Retry(fn func() error) (err error) {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err = fn()
		if err == nil || !common.IsRetryable(err) {
			return err
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * 50 * time.Millisecond
		time.Sleep(backoff)
	}
	return err
}
