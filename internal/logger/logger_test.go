package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "api", "info", "json")

	log.Error(Entry{
		Action:  "withdrawal_failed",
		Message: "insufficient balance",
		UserID:  7,
		Err:     errors.New("boom"),
		Fields:  Fields{"amount": 10.5},
	})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if got["level"] != "ERROR" || got["service"] != "api" || got["action"] != "withdrawal_failed" {
		t.Errorf("unexpected record: %v", got)
	}
	if got["error"] != "boom" {
		t.Errorf("expected error field, got %v", got["error"])
	}
	if got["user_id"].(float64) != 7 {
		t.Errorf("expected user_id 7, got %v", got["user_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "api", "warn", "text")

	log.Debug(Entry{Action: "debug"})
	log.Info(Entry{Action: "info"})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below WARN, got %q", buf.String())
	}

	log.Warn(Entry{Action: "warn", Fields: Fields{"b": 2, "a": 1}})
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "a=1 b=2") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var log *Logger
	log.Info(Entry{Action: "noop"})
}
