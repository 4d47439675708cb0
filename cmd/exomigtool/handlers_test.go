//go:build !integration
// +build !integration

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/exchange/distgroup"
	"exomigtool/internal/exchange/domains"
)

// fakeDirectory serves canned tenant data. Groups are returned as copies so
// callers can modify them freely.
type fakeDirectory struct {
	domains      []domains.AcceptedDomain
	mailboxes    map[string]*Mailbox
	groupsByMail map[string]*distgroup.Group
	groupsByID   map[string]*distgroup.Group
	members      map[string][]distgroup.Member
	err          error
	calls        []string
}

func (f *fakeDirectory) AcceptedDomains(ctx context.Context) ([]domains.AcceptedDomain, error) {
	f.calls = append(f.calls, "AcceptedDomains")
	return f.domains, f.err
}

func (f *fakeDirectory) FindMailbox(ctx context.Context, address string) (*Mailbox, error) {
	f.calls = append(f.calls, "FindMailbox:"+address)
	if f.err != nil {
		return nil, f.err
	}
	return f.mailboxes[strings.ToLower(address)], nil
}

func (f *fakeDirectory) FindGroup(ctx context.Context, address string) (*distgroup.Group, error) {
	f.calls = append(f.calls, "FindGroup:"+address)
	if f.err != nil {
		return nil, f.err
	}
	return copyGroup(f.groupsByMail[strings.ToLower(address)]), nil
}

func (f *fakeDirectory) GroupByID(ctx context.Context, id string) (*distgroup.Group, error) {
	f.calls = append(f.calls, "GroupByID:"+id)
	if f.err != nil {
		return nil, f.err
	}
	return copyGroup(f.groupsByID[id]), nil
}

func (f *fakeDirectory) GroupMembers(ctx context.Context, id string) ([]distgroup.Member, error) {
	f.calls = append(f.calls, "GroupMembers:"+id)
	if f.err != nil {
		return nil, f.err
	}
	return f.members[id], nil
}

func copyGroup(g *distgroup.Group) *distgroup.Group {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

func discardLogger() *slog.Logger {
	return slogTo(io.Discard)
}

func slogTo(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

// newTestAudit opens a CSV audit report in a temp directory.
func newTestAudit(t *testing.T, action string) logger.Logger {
	t.Helper()
	audit, err := logger.NewLogger(logger.FormatCSV, t.TempDir(), toolName, action)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() { audit.Close() })
	return audit
}

// readAudit closes the report and returns its records, header included.
func readAudit(t *testing.T, audit logger.Logger) [][]string {
	t.Helper()
	if err := audit.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	f, err := os.Open(audit.Path())
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	return records
}

func TestExecuteAction_GraphActionWithoutDirectory(t *testing.T) {
	config := NewConfig()
	config.Action = ActionReconcile

	err := executeAction(context.Background(), config, nil, nil, discardLogger(), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "requires a Graph connection") {
		t.Errorf("executeAction() error = %v", err)
	}
}

func TestExecuteAction_UnknownAction(t *testing.T) {
	config := NewConfig()
	config.Action = "getinbox"

	err := executeAction(context.Background(), config, nil, nil, discardLogger(), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Errorf("executeAction() error = %v", err)
	}
}

func TestExecuteAction_WrapsActionErrors(t *testing.T) {
	dirErr := errors.New("graph unavailable")
	config := NewConfig()
	config.Action = ActionReconcile
	config.Mailbox = "user@contoso.com"

	err := executeAction(context.Background(), config, &fakeDirectory{err: dirErr}, nil, discardLogger(), io.Discard)
	if !errors.Is(err, dirErr) {
		t.Fatalf("executeAction() error = %v, want wrapped %v", err, dirErr)
	}
	if !strings.Contains(err.Error(), "failed to reconcile user@contoso.com") {
		t.Errorf("error = %q", err)
	}
}

func TestWriteAudit(t *testing.T) {
	t.Run("nil report is ignored", func(t *testing.T) {
		writeAudit(nil, discardLogger(), []string{"A"}, [][]string{{"1"}})
	})

	t.Run("header and rows", func(t *testing.T) {
		audit := newTestAudit(t, "test")
		writeAudit(audit, discardLogger(), []string{"A", "B"}, [][]string{{"1", "2"}, {"3", "4"}})

		records := readAudit(t, audit)
		if len(records) != 3 {
			t.Fatalf("got %d records, want 3", len(records))
		}
		if strings.Join(records[0], ",") != "Timestamp,A,B" {
			t.Errorf("header = %v", records[0])
		}
	})

	t.Run("write failure is logged", func(t *testing.T) {
		audit, err := logger.NewLogger(logger.FormatJSON, t.TempDir(), toolName, "test")
		if err != nil {
			t.Fatal(err)
		}
		defer audit.Close()

		var logs bytes.Buffer
		// Row shorter than the header.
		writeAudit(audit, slogTo(&logs), []string{"A", "B"}, [][]string{{"1"}})
		if !strings.Contains(logs.String(), "Could not write audit report") {
			t.Errorf("expected a warning, got %q", logs.String())
		}
	})
}
