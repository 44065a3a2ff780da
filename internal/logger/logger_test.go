package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()

	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(WARN)
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	Error("failed", errors.New("boom"))

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("INFO message written at WARN level: %q", got)
	}
	if !strings.Contains(got, "WARN") || !strings.Contains(got, "shown 2") {
		t.Errorf("expected WARN message, got %q", got)
	}
	if !strings.Contains(got, "failed: boom") {
		t.Errorf("expected wrapped error message, got %q", got)
	}
	if !strings.Contains(got, "logger_test.go") {
		t.Errorf("expected caller file in output, got %q", got)
	}
}
