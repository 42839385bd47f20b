package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithUserID(context.Background(), 42)
	ctx = logg.WithEntryID(ctx, "1700000000-0")
	logg.Info(ctx, "processing")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["user_id"] != "42" {
		t.Fatalf("expected user_id 42, got %v", entry["user_id"])
	}
	if entry["entry_id"] != "1700000000-0" {
		t.Fatalf("expected entry_id, got %v", entry["entry_id"])
	}
	if entry["service"] != "test" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "send failed", errors.New("boom"))

	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error cause in output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf, Level: zerolog.WarnLevel})

	logg.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level")
	}
	logg.Warn(context.Background(), "visible")
	if buf.Len() == 0 {
		t.Fatalf("warn should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatalf("debug not parsed")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatalf("empty should default to info")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatalf("unknown should default to info")
	}
}
