package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "JSON format to stdout",
			config: Config{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:   "Console format to stderr",
			config: Config{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:   "Invalid log level defaults to info",
			config: Config{Level: "invalid", Format: "json", Output: "stdout"},
		},
		{
			name:   "File output",
			config: Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "app.log")},
		},
		{
			name:    "Unwritable file output",
			config:  Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "missing", "app.log")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("Invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestDomainFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	logger.WithUserID(7).WithPhotoID(42).Info("photo saved")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["user_id"] != float64(7) {
		t.Errorf("Expected user_id 7, got %v", entries[0]["user_id"])
	}
	if entries[0]["photo_id"] != float64(42) {
		t.Errorf("Expected photo_id 42, got %v", entries[0]["photo_id"])
	}
	if entries[0]["message"] != "photo saved" {
		t.Errorf("Unexpected message %v", entries[0]["message"])
	}
}

func TestLogCompositing(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	logger.LogCompositing("gif", 4, 2, 120*time.Millisecond, nil)
	logger.LogCompositing("photo", 1, 0, time.Millisecond, errors.New("decode failed"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "info" || entries[0]["kind"] != "gif" || entries[0]["frames"] != float64(4) {
		t.Errorf("Unexpected success entry %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "decode failed" {
		t.Errorf("Unexpected failure entry %v", entries[1])
	}
}

func TestLogHTTPRequestLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel)

	logger.LogHTTPRequest("GET", "/api/gallery", "127.0.0.1", 200, time.Millisecond)
	logger.LogHTTPRequest("POST", "/api/editing/save", "127.0.0.1", 500, time.Millisecond)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "info" {
		t.Errorf("Expected info for 200, got %v", entries[0]["level"])
	}
	if entries[1]["level"] != "error" {
		t.Errorf("Expected error for 500, got %v", entries[1]["level"])
	}
}

func TestDatabaseOperationBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel)

	logger.LogDatabaseOperation("CreatePhoto", time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Errorf("Expected successful database operations to log at debug, got %s", buf.String())
	}

	logger.LogDatabaseOperation("CreatePhoto", time.Millisecond, errors.New("boom"))
	if buf.Len() == 0 {
		t.Error("Expected failed database operation to be logged")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	logger.WithUserID(1).ErrorWithErr("discarded", errors.New("x"))
}
