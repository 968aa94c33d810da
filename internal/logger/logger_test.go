package logger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestShouldLog(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    string
		shouldLog   bool
	}{
		{"debug logs at debug level", "debug", "debug", true},
		{"info logs at debug level", "debug", "info", true},
		{"debug doesn't log at info level", "info", "debug", false},
		{"warn doesn't log at error level", "error", "warn", false},
		{"unknown config level means info", "loud", "debug", false},
		{"upper case level", "DEBUG", "debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewWriter(io.Discard, tt.configLevel).(*implLogger)
			if got := l.shouldLog(tt.logLevel); got != tt.shouldLog {
				t.Errorf("shouldLog() = %v, want %v", got, tt.shouldLog)
			}
		})
	}
}

func TestWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	ctx := context.Background()
	l.Info(ctx, "hidden")
	l.Warn(ctx, "shown %d", 7)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 7") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	Logf(NewWriter(&buf, "debug"))("block %d of %d", 2, 5)
	if !strings.Contains(buf.String(), "[DEBUG] block 2 of 5") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	Logf(nil)("no panic")
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("Info") || ValidLevel("verbose") {
		t.Fatalf("unexpected ValidLevel results")
	}
}
