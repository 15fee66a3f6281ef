package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewJSONWritesStructuredFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, "debug", FormatJSON)

	logger.WithFields(map[string]any{"order_id": "A1"}).Info("pending order stored")

	logged := buf.String()
	if strings.TrimSpace(logged) == "" {
		t.Fatalf("expected go-logger output")
	}
	if !strings.Contains(logged, "order_id") {
		t.Fatalf("expected structured fields in output, got %q", logged)
	}
}

func TestFmtLoggerLevelsAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFmt(buf, "warn")

	logger.Info("hidden")
	logger.WithFields(map[string]any{"b": 2, "a": 1}).Warn("dispatch failed for %s", "A1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN  dispatch failed for A1 a=1 b=2") {
		t.Fatalf("unexpected line %q", out)
	}
}

func TestTextFormatUsesFallback(t *testing.T) {
	if _, ok := New(&bytes.Buffer{}, "info", FormatText).(*FmtLogger); !ok {
		t.Fatalf("expected text format to use FmtLogger")
	}
}

func TestNormalizeNil(t *testing.T) {
	if _, ok := Normalize(nil).(*FmtLogger); !ok {
		t.Fatalf("expected nil logger to normalize to FmtLogger")
	}
	l := Discard().WithContext(context.TODO())
	l.Error("dropped")
}
