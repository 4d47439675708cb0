package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/exchange/migration"
)

const (
	rowTypeItem    = "ITEM"
	rowTypeSummary = "SUMMARY"
)

var skippedItemColumns = []string{
	"RowType", "Mailbox", "Kind", "Count", "FolderName", "Subject",
	"Sender", "DateReceived", "MessageSize", "Failure",
}

type skippedReport struct {
	Input    string                     `json:"input"`
	Users    []migration.UserStatistics `json:"users"`
	Kinds    []string                   `json:"kinds,omitempty"`
	Items    []migration.SkippedItem    `json:"items"`
	Summary  []migration.Summary        `json:"summary"`
	Reported int                        `json:"reported"`
}

func runSkippedItems(config *Config, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	data, err := os.ReadFile(config.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read migration statistics: %w", err)
	}

	stats, err := migration.ParseStatistics(data)
	if err != nil {
		return fmt.Errorf("%s: %w", config.InputPath, err)
	}
	logger.LogInfo(log, "Migration statistics loaded", "path", config.InputPath, "users", len(stats))

	report := buildSkippedReport(stats, config.Kinds, log)
	report.Input = config.InputPath

	writeAudit(audit, log, skippedItemColumns, skippedItemRows(report))

	if config.OutputFormat == "json" {
		printJSON(out, report)
		return nil
	}
	printSkippedReport(out, report)
	if audit != nil && report.Reported > 0 {
		fmt.Fprintf(out, "\nReport written to %s\n", audit.Path())
	}
	return nil
}

func buildSkippedReport(stats []migration.UserStatistics, kinds []string, log *slog.Logger) skippedReport {
	for _, s := range stats {
		// The count Exchange reports can exceed the items it lists when the
		// export was truncated.
		if s.SkippedItemCount > int64(len(s.Items)) {
			logger.LogWarn(log, "Export lists fewer skipped items than reported",
				"mailbox", s.Identity, "reported", s.SkippedItemCount, "listed", len(s.Items))
		}
	}

	items := migration.Filter(migration.Items(stats), kinds)
	return skippedReport{
		Users:    stats,
		Kinds:    kinds,
		Items:    items,
		Summary:  migration.Summarize(items),
		Reported: len(items),
	}
}

// skippedItemRows renders one row per item followed by one SUMMARY row per
// mailbox and kind.
func skippedItemRows(report skippedReport) [][]string {
	rows := make([][]string, 0, len(report.Items)+len(report.Summary))
	for _, it := range report.Items {
		rows = append(rows, []string{
			rowTypeItem, it.Mailbox, it.Kind, "1", it.FolderName, it.Subject,
			it.Sender, formatDate(it.DateReceived), strconv.FormatInt(it.MessageSize, 10), it.Failure,
		})
	}
	for _, s := range report.Summary {
		rows = append(rows, []string{
			rowTypeSummary, s.Mailbox, s.Kind, strconv.Itoa(s.Count), "", "",
			"", "", strconv.FormatInt(s.TotalSize, 10), "",
		})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func printSkippedReport(w io.Writer, report skippedReport) {
	fmt.Fprintf(w, "Skipped migration items: %s\n", report.Input)
	if len(report.Kinds) > 0 {
		fmt.Fprintf(w, "Kinds: %v\n", report.Kinds)
	}
	fmt.Fprintln(w)

	for _, u := range report.Users {
		fmt.Fprintf(w, "  %-40s %-14s batch=%s skipped=%d\n",
			ifEmpty(u.Identity, "(unknown)"), ifEmpty(u.Status, "-"), ifEmpty(u.BatchID, "-"), u.SkippedItemCount)
	}

	if report.Reported == 0 {
		fmt.Fprintln(w, "\nNo skipped items to report.")
		return
	}

	fmt.Fprintln(w, "\nSummary:")
	for _, s := range report.Summary {
		fmt.Fprintf(w, "  %-40s %-14s %5d items %12d bytes\n", s.Mailbox, s.Kind, s.Count, s.TotalSize)
	}
	fmt.Fprintf(w, "\nTotal skipped items reported: %d\n", report.Reported)
}
