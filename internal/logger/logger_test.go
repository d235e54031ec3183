package logger

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestElidePayload(t *testing.T) {
	short := ElidePayload("abc")
	if short != "<3 bytes>" {
		t.Errorf("Expected short payload summary, got %q", short)
	}

	long := strings.Repeat("A", 5000)
	got := ElidePayload(long)
	if len(got) > 64 {
		t.Errorf("Expected elided payload to be short, got %d chars", len(got))
	}
	if !strings.Contains(got, "<5000 bytes>") {
		t.Errorf("Expected size in summary, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("Expected short text unchanged")
	}
	if got := Truncate("hello world", 5); got != "hello...(truncated)" {
		t.Errorf("Unexpected truncation: %q", got)
	}
	if Truncate("hello", 0) != "hello" {
		t.Error("Expected non-positive max to disable truncation")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-7")

	if got := RequestIDFromContext(ctx); got != "req-7" {
		t.Errorf("Expected req-7, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
	if FromContext(ctx).Data["request_id"] != "req-7" {
		t.Error("Expected entry to carry request_id field")
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range tests {
		if got := levelFromEnv(in); got != want {
			t.Errorf("levelFromEnv(%q) = %s, want %s", in, got, want)
		}
	}
}
