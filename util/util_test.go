package util

import (
	"errors"
	"testing"

	"github.com/liamw1/oxibooru/common"
)

func TestWrapError(t *testing.T) {
	err := errors.New("foo")
	wrapped := WrapError("bar", err)
	if wrapped.Error() != "bar: foo" {
		t.Fatalf("unexpected message: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, err) {
		t.Fatal("WrapError must preserve the chain for errors.Is")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("bar", nil) != nil {
		t.Fatal("WrapError(nil) must return nil")
	}
}

func TestHashBuffer(t *testing.T) {
	if HashBuffer([]byte{1, 2, 3}) != "5289df737df57326" {
		t.Fatal("unexpected hash")
	}
}

func TestIDToString(t *testing.T) {
	if IDToString(1) != "1" {
		t.Fatal("unexpected result")
	}
}

func TestWaterfall(t *testing.T) {
	var ran int
	ok := func() error {
		ran++
		return nil
	}

	if err := Waterfall([]func() error{ok, ok}); err != nil {
		t.Fatal(err)
	}
	if ran != 2 {
		t.Fatalf("expected 2 calls, got %d", ran)
	}

	ran = 0
	fail := errors.New("foo")
	fns := []func() error{
		ok,
		func() error { ran++; return fail },
		ok,
	}
	if err := Waterfall(fns); err != fail {
		t.Fatalf("expected %v, got %v", fail, err)
	}
	if ran != 2 {
		t.Fatalf("expected short-circuit after 2 calls, got %d", ran)
	}
}

func TestRetrySucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	err := Retry(func() error {
		attempts++
		if attempts < MaxRetries {
			return common.WrapKind(common.KindDeadlock, errors.New("try again"))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != MaxRetries {
		t.Fatalf("expected %d attempts, got %d", MaxRetries, attempts)
	}
}

func TestRetryDoesNotRetryNonRetryableErrors(t *testing.T) {
	attempts := 0
	fail := common.WrapKind(common.KindMalformedInput, errors.New("bad input"))
	err := Retry(func() error {
		attempts++
		return fail
	})
	if err != fail {
		t.Fatalf("expected %v, got %v", fail, err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}
