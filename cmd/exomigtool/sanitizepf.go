package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/validation"
	"exomigtool/internal/exchange/recipient"
	"exomigtool/internal/nickname"
)

var sanitizePFColumns = []string{"Line", "OriginalAlias", "SuggestedAlias", "SMTP", "SmtpIsBad"}

// aliasRow is one flagged public folder. A folder can produce two rows: one
// for an alias change and one for a bad address.
type aliasRow struct {
	Line           int    `json:"line"`
	OriginalAlias  string `json:"originalAlias"`
	SuggestedAlias string `json:"suggestedAlias"`
	SMTP           string `json:"smtp"`
	SmtpIsBad      bool   `json:"smtpIsBad"`
}

type sanitizeReport struct {
	Input         string     `json:"input"`
	Recipients    int        `json:"recipients"`
	PublicFolders int        `json:"publicFolders"`
	Renamed       int        `json:"renamed"`
	BadAddresses  int        `json:"badAddresses"`
	Rows          []aliasRow `json:"rows"`
}

func newSanitizer(seed uint64) *nickname.Sanitizer {
	if seed == 0 {
		return nickname.NewSanitizer()
	}
	return nickname.NewSanitizer(nickname.WithRandomSource(rand.New(rand.NewPCG(seed, seed))))
}

func runSanitizePF(config *Config, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	f, err := os.Open(config.InputPath)
	if err != nil {
		return fmt.Errorf("failed to open recipient export: %w", err)
	}
	defer f.Close()

	records, err := recipient.ReadRecords(f)
	if err != nil {
		return err
	}
	logger.LogInfo(log, "Recipient export loaded", "path", config.InputPath, "records", len(records))

	report := sanitizePublicFolders(records, newSanitizer(config.Seed), log)
	report.Input = config.InputPath

	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []string{fmt.Sprint(r.Line), r.OriginalAlias, r.SuggestedAlias, r.SMTP, yesNo(r.SmtpIsBad)})
	}
	writeAudit(audit, log, sanitizePFColumns, rows)

	if config.OutputFormat == "json" {
		printJSON(out, report)
		return nil
	}
	printSanitizeReport(out, report)
	if audit != nil && len(rows) > 0 {
		fmt.Fprintf(out, "\nReport written to %s\n", audit.Path())
	}
	return nil
}

// sanitizePublicFolders checks the alias and primary address of every public
// folder in records. Every alias in the export seeds the registry, so no
// suggestion collides with an existing recipient.
func sanitizePublicFolders(records []recipient.Record, san *nickname.Sanitizer, log *slog.Logger) sanitizeReport {
	existing := make([]string, 0, len(records))
	for _, r := range records {
		if r.Alias != "" {
			existing = append(existing, r.Alias)
		}
	}
	reg := nickname.NewRegistry(existing...)

	report := sanitizeReport{Recipients: len(records)}
	for _, r := range records {
		if !r.IsPublicFolder() {
			continue
		}
		report.PublicFolders++

		res := san.Sanitize(r.Alias, reg)
		smtp, bad := publicFolderAddress(r, log)

		if res.WasModified {
			report.Renamed++
			logger.LogDebug(log, "Alias needs replacing", "line", r.Line, "alias", r.Alias, "suggested", res.Suggested)
			report.Rows = append(report.Rows, aliasRow{
				Line: r.Line, OriginalAlias: r.Alias, SuggestedAlias: res.Suggested, SMTP: smtp,
			})
		}
		if bad {
			report.BadAddresses++
			report.Rows = append(report.Rows, aliasRow{
				Line: r.Line, OriginalAlias: r.Alias, SMTP: smtp, SmtpIsBad: true,
			})
		}
	}
	return report
}

// publicFolderAddress picks the address a public folder is known by and
// reports whether it is unusable. The PrimarySmtpAddress column is only
// consulted when EmailAddresses holds no SMTP entry.
func publicFolderAddress(r recipient.Record, log *slog.Logger) (string, bool) {
	smtp, fromSecondary, ok := recipient.PrimarySMTP(r.EmailAddresses)
	switch {
	case !ok && r.PrimarySMTPAddress != "":
		smtp = r.PrimarySMTPAddress
	case !ok:
		logger.LogWarn(log, "Public folder has no SMTP address", "line", r.Line, "alias", r.Alias)
		return "", true
	case fromSecondary:
		logger.LogWarn(log, "Public folder has no primary SMTP address, using first secondary",
			"line", r.Line, "alias", r.Alias, "address", smtp)
	}

	if err := validation.ValidateEmail(smtp); err != nil {
		logger.LogWarn(log, "Public folder address is invalid", "line", r.Line, "alias", r.Alias, "error", err)
		return smtp, true
	}
	return smtp, false
}

func printSanitizeReport(w io.Writer, report sanitizeReport) {
	fmt.Fprintf(w, "Public folder alias check: %s\n", report.Input)
	fmt.Fprintf(w, "Recipients read:    %d\n", report.Recipients)
	fmt.Fprintf(w, "Public folders:     %d\n", report.PublicFolders)
	fmt.Fprintf(w, "Aliases to replace: %d\n", report.Renamed)
	fmt.Fprintf(w, "Bad SMTP addresses: %d\n", report.BadAddresses)

	if len(report.Rows) == 0 {
		fmt.Fprintln(w, "\nNo public folders need attention.")
		return
	}
	fmt.Fprintln(w)
	for _, r := range report.Rows {
		if r.SmtpIsBad {
			fmt.Fprintf(w, "  line %-5d %-30s bad address %q\n", r.Line, r.OriginalAlias, r.SMTP)
			continue
		}
		fmt.Fprintf(w, "  line %-5d %-30s -> %s\n", r.Line, r.OriginalAlias, r.SuggestedAlias)
	}
}
