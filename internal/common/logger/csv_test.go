package logger

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"
	"testing"
)

func TestCSVLogger_HeaderAndRows(t *testing.T) {
	logger, err := NewCSVLogger(t.TempDir(), "exomigtool", "reconcile")
	if err != nil {
		t.Fatalf("NewCSVLogger() error = %v", err)
	}

	err = WriteWithHeader(logger, []string{"Mailbox", "Address", "Action"}, [][]string{
		{"jdoe@contoso.com", "jdoe@legacy.local", "Remove"},
		{"jdoe@contoso.com", "jdoe@contoso.com", "Keep"},
	})
	if err != nil {
		t.Fatalf("WriteWithHeader() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if strings.Join(records[0], ",") != "Timestamp,Mailbox,Address,Action" {
		t.Errorf("header = %q", records[0])
	}
	if records[1][3] != "Remove" || records[1][0] == "" {
		t.Errorf("row 1 = %q", records[1])
	}
}

func TestCSVLogger_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		logger, err := NewCSVLogger(dir, "exomigtool", "dlconvert")
		if err != nil {
			t.Fatalf("NewCSVLogger() error = %v", err)
		}
		if err := WriteWithHeader(logger, []string{"Group"}, [][]string{{"sales"}}); err != nil {
			t.Fatalf("WriteWithHeader() error = %v", err)
		}
		logger.Close()
	}

	data, err := os.ReadFile(logFilePath(dir, "exomigtool", "dlconvert", ".csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n := strings.Count(string(data), "Timestamp,Group"); n != 1 {
		t.Errorf("header written %d times", n)
	}
	if n := strings.Count(string(data), "sales"); n != 2 {
		t.Errorf("rows written %d times, want 2", n)
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format  string
		ext     string
		wantErr bool
	}{
		{"", ".csv", false},
		{"csv", ".csv", false},
		{"JSON", ".jsonl", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			l, err := NewLogger(tt.format, dir, "exomigtool", "test"+tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer l.Close()
			if !strings.HasSuffix(l.Path(), tt.ext) {
				t.Errorf("Path() = %s, want suffix %s", l.Path(), tt.ext)
			}
		})
	}
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, false, "WARN")
	LogInfo(log, "hidden")
	LogWarn(log, "shown", "mailbox", "jdoe")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("INFO message logged at WARN level")
	}
	if !strings.Contains(buf.String(), "mailbox=jdoe") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	LogDebug(NewConsoleLogger(&buf, true, "ERROR"), "debug on")
	if !strings.Contains(buf.String(), "debug on") {
		t.Error("verbose mode did not enable DEBUG")
	}

	// nil loggers are ignored
	LogError(nil, "nothing")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		if got := ParseLogLevel(in).String(); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
