package duscanerrors

import (
	"errors"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind     Kind
		expected int
	}{
		{InvalidInput, 2},
		{PartialFailure, 3},
		{Io, 4},
		{System, 4},
	}
	for _, c := range cases {
		if got := c.kind.ExitCode(); got != c.expected {
			t.Fatalf("%s.ExitCode() = %d, expected %d", c.kind, got, c.expected)
		}
	}
}

func TestErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := New(Io, cause)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to see through to the cause")
	}

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatalf("expected errors.As to recover the *Error")
	}
	if target.Kind != Io {
		t.Fatalf("expected recovered Kind Io, got %s", target.Kind)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := New(InvalidInput, errors.New("missing --snapshot"))
	expected := "invalid input: missing --snapshot"
	if err.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, err.Error())
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(System, nil)
	if err.Error() != "system error" {
		t.Fatalf("expected %q, got %q", "system error", err.Error())
	}
}
