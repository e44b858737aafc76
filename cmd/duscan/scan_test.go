package main

import (
	"testing"

	"github.com/duscan/duscan/pkg/scan"
)

func TestParseBasis(t *testing.T) {
	cases := []struct {
		input    string
		expected scan.SizeBasis
	}{
		{"", scan.SizeBasisLogical},
		{"logical", scan.SizeBasisLogical},
		{"physical", scan.SizeBasisPhysical},
	}
	for _, c := range cases {
		got, err := parseBasis(c.input)
		if err != nil {
			t.Fatalf("parseBasis(%q) returned an error: %v", c.input, err)
		}
		if got != c.expected {
			t.Fatalf("parseBasis(%q) = %v, expected %v", c.input, got, c.expected)
		}
	}
}

func TestParseBasisRejectsInvalid(t *testing.T) {
	if _, err := parseBasis("bogus"); err == nil {
		t.Fatalf("expected an error for an invalid basis value")
	}
}

func TestParseStrategy(t *testing.T) {
	if kind, err := parseStrategy(""); err != nil || kind != nil {
		t.Fatalf("expected an empty strategy string to leave the override unset, got kind=%v err=%v", kind, err)
	}

	kind, err := parseStrategy("posix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind == nil || *kind != scan.StrategyPOSIX {
		t.Fatalf("expected StrategyPOSIX, got %v", kind)
	}
}

func TestParseStrategyRejectsInvalid(t *testing.T) {
	if _, err := parseStrategy("bogus"); err == nil {
		t.Fatalf("expected an error for an invalid strategy value")
	}
}
