package logtail

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", lines, err)
	}
}

func TestRead_LinesSpanningChunks(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "foundry.log")
	long := strings.Repeat("x", chunkSize+100)
	content := "first\r\n" + long + "\nmiddle\n" + long + "y\nlast"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		maxLines int
		want     []string
	}{
		{1, []string{"last"}},
		{2, []string{long + "y", "last"}},
		{4, []string{long, "middle", long + "y", "last"}},
		{9, []string{"first", long, "middle", long + "y", "last"}},
	}
	for _, tt := range tests {
		got, err := Read(logPath, tt.maxLines)
		if err != nil {
			t.Fatalf("Read(%d) error = %v", tt.maxLines, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Read(%d) returned %d lines, want %d", tt.maxLines, len(got), len(tt.want))
		}
	}
}

func TestRead_EmptyFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "foundry.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lines, err := Read(logPath, 10)
	if err != nil || lines != nil {
		t.Fatalf("Read(empty) = %v, %v; want nil, nil", lines, err)
	}
}

func TestEntries_SkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("task poll started", "task_id", 3)
	buf.WriteString("\n   \n")
	logger.Error("delete task failed", "task_id", 3)

	logPath := filepath.Join(t.TempDir(), "foundry.log")
	if err := os.WriteFile(logPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := Entries(logPath, 10)
	if err != nil {
		t.Fatalf("Entries error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	if entries[0].Message != "task poll started" || entries[1].Level != "ERROR" {
		t.Fatalf("entries = %+v", entries)
	}

	entries, err = Entries(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Entries(missing) = %v, %v; want empty, nil", entries, err)
	}
}

func TestParse_TextHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Warn("task poll stopped on error", "task_id", 42, "error", `api get task status returned status 500: "boom"`)

	e := Parse(strings.TrimRight(buf.String(), "\n"))
	if e.Level != "WARN" || e.Message != "task poll stopped on error" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Time.IsZero() {
		t.Fatalf("time not parsed from %q", e.Raw)
	}
	if v, ok := e.Attr("task_id"); !ok || v != "42" {
		t.Fatalf("task_id = %q ok=%v", v, ok)
	}
	if v, _ := e.Attr("error"); v != `api get task status returned status 500: "boom"` {
		t.Fatalf("error attr = %q", v)
	}
}

func TestParse_JSONHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("task status", "task_id", 7, "status", "RUNNING")

	e := Parse(strings.TrimRight(buf.String(), "\n"))
	if e.Level != "INFO" || e.Message != "task status" || e.Time.IsZero() {
		t.Fatalf("entry = %+v", e)
	}
	if v, _ := e.Attr("task_id"); v != "7" {
		t.Fatalf("task_id = %q", v)
	}
	if v, _ := e.Attr("status"); v != "RUNNING" {
		t.Fatalf("status = %q", v)
	}
}

func TestParse_UnstructuredLine(t *testing.T) {
	line := "panic: something odd happened"
	e := Parse(line)
	if e.Message != line || e.Level != "" || len(e.Attrs) != 0 {
		t.Fatalf("entry = %+v, want raw message", e)
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		level, min string
		want       bool
	}{
		{"ERROR", "WARN", true},
		{"INFO", "WARN", false},
		{"debug", "debug", true},
		{"", "ERROR", true},
		{"INFO", "", true},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.level, tt.min); got != tt.want {
			t.Fatalf("AtLeast(%q, %q) = %v, want %v", tt.level, tt.min, got, tt.want)
		}
	}
}
