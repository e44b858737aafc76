package main

import (
	"testing"

	"github.com/duscan/duscan/pkg/duscan"
)

func TestApplyLogLevel(t *testing.T) {
	defer func() { rootConfiguration.logLevel = "" }()

	cases := []struct {
		input    string
		expected duscan.Level
	}{
		{"", duscan.VerbosityLevel},
		{"warn", duscan.LevelWarn},
		{"debug", duscan.LevelDebug},
		{"trace", duscan.LevelTrace},
	}
	for _, c := range cases {
		duscan.VerbosityLevel = duscan.LevelWarn
		rootConfiguration.logLevel = c.input
		if err := applyLogLevel(); err != nil {
			t.Fatalf("applyLogLevel(%q) returned an error: %v", c.input, err)
		}
		if c.input != "" && duscan.VerbosityLevel != c.expected {
			t.Fatalf("applyLogLevel(%q) set level %v, expected %v", c.input, duscan.VerbosityLevel, c.expected)
		}
	}
}

func TestApplyLogLevelRejectsInvalid(t *testing.T) {
	defer func() { rootConfiguration.logLevel = "" }()

	rootConfiguration.logLevel = "bogus"
	if err := applyLogLevel(); err == nil {
		t.Fatalf("expected an error for an invalid log level")
	}
}
