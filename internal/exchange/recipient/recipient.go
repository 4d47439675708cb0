// Package recipient reads Exchange recipient exports and extracts the
// addressing details the migration actions work with.
package recipient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Address prefixes used in EmailAddresses / proxyAddresses values. The
// uppercase form marks the primary address.
const (
	PrimarySMTPPrefix   = "SMTP:"
	SecondarySMTPPrefix = "smtp:"
)

// Column names expected in a recipient export. Matching is case-insensitive.
const (
	ColumnAlias                = "Alias"
	ColumnEmailAddresses       = "EmailAddresses"
	ColumnRecipientTypeDetails = "RecipientTypeDetails"
	ColumnPrimarySMTPAddress   = "PrimarySmtpAddress"
	ColumnDisplayName          = "DisplayName"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// Record is one row of a recipient export.
type Record struct {
	Line                 int // 1-based line number in the source file
	Alias                string
	DisplayName          string
	EmailAddresses       []string
	RecipientTypeDetails string
	PrimarySMTPAddress   string
}

// IsPublicFolder reports whether the record is a mail-enabled public folder.
func (r Record) IsPublicFolder() bool {
	switch strings.ToLower(strings.TrimSpace(r.RecipientTypeDetails)) {
	case "publicfolder", "mailpublicfolder":
		return true
	}
	return false
}

// ParseEmailAddresses splits a semicolon-delimited EmailAddresses value into
// its entries. Blank entries are dropped. Exports from multi-valued
// attributes are sometimes space-separated instead, so a value without any
// semicolon is split on whitespace.
func ParseEmailAddresses(s string) []string {
	sep := func(r rune) bool { return r == ';' }
	if !strings.Contains(s, ";") {
		sep = func(r rune) bool { return r == ' ' || r == '\t' }
	}

	var out []string
	for _, part := range strings.FieldsFunc(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PrimarySMTP returns the primary SMTP address (without prefix) from a list of
// proxy addresses. When no primary is present it falls back to the first
// secondary SMTP address and reports fromSecondary. ok is false when the list
// holds no SMTP address at all.
func PrimarySMTP(addresses []string) (address string, fromSecondary bool, ok bool) {
	for _, a := range addresses {
		if strings.HasPrefix(a, PrimarySMTPPrefix) {
			return strings.TrimPrefix(a, PrimarySMTPPrefix), false, true
		}
	}
	for _, a := range addresses {
		if strings.HasPrefix(a, SecondarySMTPPrefix) {
			return strings.TrimPrefix(a, SecondarySMTPPrefix), true, true
		}
	}
	return "", false, false
}

// IsSMTP reports whether a proxy address is an SMTP address of either kind.
func IsSMTP(proxy string) bool {
	return strings.HasPrefix(strings.ToLower(proxy), SecondarySMTPPrefix)
}

// StripPrefix removes the "type:" prefix from a proxy address.
func StripPrefix(proxy string) string {
	if i := strings.Index(proxy, ":"); i >= 0 {
		return proxy[i+1:]
	}
	return proxy
}

// ReadRecords parses a recipient export. The header row decides the column
// order; Alias and EmailAddresses are required.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("recipient export is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		// Excel-saved exports carry a byte order mark on the first column.
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		cols[strings.ToLower(name)] = i
	}
	for _, required := range []string{ColumnAlias, ColumnEmailAddresses} {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipient export: %w", err)
		}
		line, _ := cr.FieldPos(0)

		records = append(records, Record{
			Line:                 line,
			Alias:                field(row, ColumnAlias),
			DisplayName:          field(row, ColumnDisplayName),
			EmailAddresses:       ParseEmailAddresses(field(row, ColumnEmailAddresses)),
			RecipientTypeDetails: field(row, ColumnRecipientTypeDetails),
			PrimarySMTPAddress:   strings.TrimSpace(field(row, ColumnPrimarySMTPAddress)),
		})
	}
	return records, nil
}
