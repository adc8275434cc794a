package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"mediawatch/internal/logging"
)

func TestDumpRecentLogs(t *testing.T) {
	buffer := logging.NewBuffer(10)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelInfo, io.Discard)
	logger.Info("watch added", map[string]string{"watch_id": "a"})
	logger.Warn("watch error", map[string]string{"watch_id": "a"})

	var out bytes.Buffer
	dumpRecentLogs(buffer, &out)

	dumped := out.String()
	if !strings.Contains(dumped, "recent log entries (2)") {
		t.Fatalf("expected entry count header, got %q", dumped)
	}
	if !strings.Contains(dumped, `msg="watch added"`) || !strings.Contains(dumped, `watch_id="a"`) {
		t.Fatalf("expected buffered entries in dump, got %q", dumped)
	}
	first := strings.Index(dumped, "watch added")
	second := strings.Index(dumped, "watch error")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected oldest-first order, got %q", dumped)
	}
}

func TestDumpRecentLogsNilBuffer(t *testing.T) {
	var out bytes.Buffer
	dumpRecentLogs(nil, &out)
	if out.Len() != 0 {
		t.Fatalf("expected no output for nil buffer, got %q", out.String())
	}
}
