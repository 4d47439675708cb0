// Package logger provides the structured console logger and the audit
// loggers that record every decision an action makes.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger writes audit rows to a file. Implementations prepend a timestamp to
// every row.
type Logger interface {
	WriteHeader(columns []string) error
	WriteRow(row []string) error
	ShouldWriteHeader() (bool, error)
	Path() string
	Close() error
}

// Supported audit log formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// defaultFlushEvery is the number of rows buffered between flushes.
const defaultFlushEvery = 10

// NewLogger opens an audit logger in the requested format. An empty dir
// means the system temp directory.
func NewLogger(format, dir, toolName, action string) (Logger, error) {
	var (
		l   Logger
		err error
	)
	switch strings.ToLower(format) {
	case "", FormatCSV:
		l, err = NewCSVLogger(dir, toolName, action)
	case FormatJSON:
		l, err = NewJSONLogger(dir, toolName, action)
	default:
		return nil, fmt.Errorf("unsupported log format %q (use csv or json)", format)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// WriteWithHeader writes the header when the file is new and then every row.
func WriteWithHeader(l Logger, columns []string, rows [][]string) error {
	newFile, err := l.ShouldWriteHeader()
	if err != nil {
		return err
	}
	if newFile {
		if err := l.WriteHeader(columns); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := l.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// logFilePath builds dir/_{tool}_{action}_{date}{ext}.
func logFilePath(dir, toolName, action, ext string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	dateStr := time.Now().Format("2006-01-02")
	return filepath.Join(dir, fmt.Sprintf("_%s_%s_%s%s", toolName, action, dateStr, ext))
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
