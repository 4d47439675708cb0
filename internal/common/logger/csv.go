package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// CSVLogger handles CSV logging operations with periodic buffering
type CSVLogger struct {
	writer     *csv.Writer
	file       *os.File
	path       string
	rowCount   int       // Number of rows written since the logger was opened
	lastFlush  time.Time // Time of last flush
	flushEvery int
}

// NewCSVLogger creates a CSV audit log for one action.
// Filename pattern: {dir}/_{toolName}_{action}_{date}.csv
//
// Examples:
//   - _exomigtool_sanitizepf_2026-10-18.csv
//   - _exomigtool_reconcile_2026-10-18.csv
func NewCSVLogger(dir, toolName, action string) (*CSVLogger, error) {
	file, err := openAppend(logFilePath(dir, toolName, action, ".csv"))
	if err != nil {
		return nil, fmt.Errorf("could not create CSV log file: %w", err)
	}

	return &CSVLogger{
		writer:     csv.NewWriter(file),
		file:       file,
		path:       file.Name(),
		lastFlush:  time.Now(),
		flushEvery: defaultFlushEvery,
	}, nil
}

// Path returns the log file location.
func (l *CSVLogger) Path() string {
	return l.path
}

// WriteHeader writes a CSV header with the provided column names.
// The Timestamp column is prepended.
func (l *CSVLogger) WriteHeader(columns []string) error {
	header := append([]string{"Timestamp"}, columns...)
	if err := l.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

// WriteRow writes a row to the CSV file with periodic buffering.
// Rows are flushed every N rows or every 5 seconds.
func (l *CSVLogger) WriteRow(row []string) error {
	if l.writer == nil {
		return fmt.Errorf("CSV writer is not initialized")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fullRow := append([]string{timestamp}, row...)

	if err := l.writer.Write(fullRow); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}

	l.rowCount++
	if l.rowCount%l.flushEvery == 0 || time.Since(l.lastFlush) > 5*time.Second {
		l.writer.Flush()
		l.lastFlush = time.Now()
		if err := l.writer.Error(); err != nil {
			return fmt.Errorf("failed to flush CSV: %w", err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file. It is safe to call more
// than once.
func (l *CSVLogger) Close() error {
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	flushErr := l.writer.Error()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return fmt.Errorf("error flushing CSV on close: %w", flushErr)
	}
	return closeErr
}

// ShouldWriteHeader reports whether the file is empty.
func (l *CSVLogger) ShouldWriteHeader() (bool, error) {
	fileInfo, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat CSV file: %w", err)
	}
	return fileInfo.Size() == 0, nil
}
