package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/socialserver/backend/internal/apperrors"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), captureLogger(&buf))

	ctx, parent := StartSpan(ctx, "parent")
	traceID := TraceIDFromContext(ctx)
	parentID := SpanIDFromContext(ctx)
	if traceID == "" || parentID == "" {
		t.Fatalf("expected trace and span ids, got %q %q", traceID, parentID)
	}

	child, span := StartSpan(ctx, "child")
	if TraceIDFromContext(child) != traceID {
		t.Fatal("expected child to share trace id")
	}
	if SpanIDFromContext(child) == parentID {
		t.Fatal("expected child to get its own span id")
	}

	span.End(nil)
	parent.End(nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries got %d", len(entries))
	}
	if entries[0]["parent_span_id"] != parentID {
		t.Fatalf("expected child entry to reference parent, got %v", entries[0])
	}
	if entries[0]["level"] != "DEBUG" {
		t.Fatalf("expected debug completion, got %v", entries[0]["level"])
	}
}

func TestSpanEndLevels(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), captureLogger(&buf))

	_, rejected := StartSpan(ctx, "rejected")
	rejected.End(apperrors.Argument("invalid id"))

	_, failed := StartSpan(ctx, "failed")
	failed.End(errors.New("boom"))

	var nilSpan *Span
	nilSpan.End(nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[0]["kind"] != "ArgumentError" {
		t.Fatalf("unexpected rejection entry %v", entries[0])
	}
	if entries[1]["level"] != "ERROR" {
		t.Fatalf("unexpected failure entry %v", entries[1])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Fatal("expected debug level")
	}
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Fatal("expected warn level")
	}
	if ParseLevel("loud") != slog.LevelInfo {
		t.Fatal("expected fallback to info")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}
