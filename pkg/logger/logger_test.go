package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if RequestID(ctx) != "req-1" {
		t.Errorf("RequestID() = %q, expected req-1", RequestID(ctx))
	}
	if RequestID(context.Background()) != "" {
		t.Error("空上下文不应有请求ID")
	}
}

func TestPlannerLogger_PlanComplete(t *testing.T) {
	var buf bytes.Buffer
	l := NewPlannerLoggerFrom(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.PlanComplete("2026-01-12", 15*time.Millisecond, 42, 1)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("日志应为JSON: %v", err)
	}
	if entry["component"] != "planner" {
		t.Errorf("component = %v, expected planner", entry["component"])
	}
	if entry["week_start"] != "2026-01-12" {
		t.Errorf("week_start = %v", entry["week_start"])
	}
	if entry["assignments"].(float64) != 42 {
		t.Errorf("assignments = %v, expected 42", entry["assignments"])
	}
}

func TestPlannerLogger_DebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := NewPlannerLoggerFrom(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Move("local", "emp", "2026-01-12", "2026-01-13")

	if buf.Len() != 0 {
		t.Errorf("Info 级别下不应输出调班日志: %s", buf.String())
	}
}
