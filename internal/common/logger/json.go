package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONLogger writes one JSON object per row (JSON Lines). Column names from
// WriteHeader become the object keys.
type JSONLogger struct {
	file       *os.File
	path       string
	buf        *bufio.Writer
	columns    []string
	rowCount   int
	flushEvery int
}

// NewJSONLogger creates a JSON Lines audit log for one action.
// Filename pattern: {dir}/_{toolName}_{action}_{date}.jsonl
func NewJSONLogger(dir, toolName, action string) (*JSONLogger, error) {
	file, err := openAppend(logFilePath(dir, toolName, action, ".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("could not create JSON log file: %w", err)
	}
	return &JSONLogger{
		file:       file,
		path:       file.Name(),
		buf:        bufio.NewWriter(file),
		flushEvery: defaultFlushEvery,
	}, nil
}

// Path returns the log file location.
func (l *JSONLogger) Path() string {
	return l.path
}

// WriteHeader records the column names. Nothing is written to the file;
// every row carries its own keys.
func (l *JSONLogger) WriteHeader(columns []string) error {
	l.columns = append([]string(nil), columns...)
	return nil
}

// WriteRow writes row as an object keyed by the header columns plus a
// timestamp.
func (l *JSONLogger) WriteRow(row []string) error {
	if l.columns == nil {
		return fmt.Errorf("JSON logger has no columns: call WriteHeader first")
	}
	if len(row) != len(l.columns) {
		return fmt.Errorf("row has %d values, header has %d columns", len(row), len(l.columns))
	}

	obj := make(map[string]string, len(row)+1)
	obj["timestamp"] = time.Now().Format(time.RFC3339)
	for i, col := range l.columns {
		obj[col] = row[i]
	}

	line, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode JSON row: %w", err)
	}
	if _, err := l.buf.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON row: %w", err)
	}

	l.rowCount++
	if l.rowCount%l.flushEvery == 0 {
		if err := l.buf.Flush(); err != nil {
			return fmt.Errorf("failed to flush JSON log: %w", err)
		}
	}
	return nil
}

// ShouldWriteHeader reports whether the column names are still unknown.
// JSON Lines files have no header row, but every logger needs the columns
// before its first row, including one appending to an existing file.
func (l *JSONLogger) ShouldWriteHeader() (bool, error) {
	return l.columns == nil, nil
}

// Close flushes buffered rows and closes the file. It is safe to call more
// than once.
func (l *JSONLogger) Close() error {
	if l.file == nil {
		return nil
	}
	flushErr := l.buf.Flush()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return fmt.Errorf("error flushing JSON log on close: %w", flushErr)
	}
	return closeErr
}
