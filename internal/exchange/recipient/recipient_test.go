package recipient

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseEmailAddresses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"semicolon delimited", "SMTP:pf@contoso.com;smtp:pf@contoso.mail.onmicrosoft.com", []string{"SMTP:pf@contoso.com", "smtp:pf@contoso.mail.onmicrosoft.com"}},
		{"blank entries dropped", "SMTP:a@contoso.com;; ;smtp:b@contoso.com;", []string{"SMTP:a@contoso.com", "smtp:b@contoso.com"}},
		{"whitespace around entries", " SMTP:a@contoso.com ; X500:/o=Contoso/ou=Exchange ", []string{"SMTP:a@contoso.com", "X500:/o=Contoso/ou=Exchange"}},
		{"space separated", "SMTP:a@contoso.com smtp:b@contoso.com", []string{"SMTP:a@contoso.com", "smtp:b@contoso.com"}},
		{"single address", "SMTP:a@contoso.com", []string{"SMTP:a@contoso.com"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEmailAddresses(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseEmailAddresses(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrimarySMTP(t *testing.T) {
	tests := []struct {
		name          string
		addresses     []string
		wantAddress   string
		wantSecondary bool
		wantOK        bool
	}{
		{
			name:        "primary present",
			addresses:   []string{"smtp:alt@contoso.com", "SMTP:main@contoso.com"},
			wantAddress: "main@contoso.com",
			wantOK:      true,
		},
		{
			name:          "falls back to first secondary",
			addresses:     []string{"X500:/o=Contoso", "smtp:first@contoso.com", "smtp:second@contoso.com"},
			wantAddress:   "first@contoso.com",
			wantSecondary: true,
			wantOK:        true,
		},
		{
			name:      "no smtp address",
			addresses: []string{"X500:/o=Contoso", "SIP:user@contoso.com"},
		},
		{
			name: "empty list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, secondary, ok := PrimarySMTP(tt.addresses)
			if addr != tt.wantAddress || secondary != tt.wantSecondary || ok != tt.wantOK {
				t.Errorf("PrimarySMTP() = (%q, %v, %v), want (%q, %v, %v)",
					addr, secondary, ok, tt.wantAddress, tt.wantSecondary, tt.wantOK)
			}
		})
	}
}

func TestIsSMTPAndStripPrefix(t *testing.T) {
	if !IsSMTP("SMTP:a@contoso.com") || !IsSMTP("smtp:a@contoso.com") {
		t.Error("IsSMTP() = false for SMTP address")
	}
	if IsSMTP("X500:/o=Contoso") || IsSMTP("smtpx@contoso.com") {
		t.Error("IsSMTP() = true for non-SMTP address")
	}
	if got := StripPrefix("smtp:a@contoso.com"); got != "a@contoso.com" {
		t.Errorf("StripPrefix() = %q", got)
	}
	if got := StripPrefix("plain"); got != "plain" {
		t.Errorf("StripPrefix() = %q", got)
	}
}

func TestRecord_IsPublicFolder(t *testing.T) {
	for _, v := range []string{"PublicFolder", "MailPublicFolder", "publicfolder", " PublicFolder "} {
		if !(Record{RecipientTypeDetails: v}).IsPublicFolder() {
			t.Errorf("IsPublicFolder() = false for %q", v)
		}
	}
	for _, v := range []string{"UserMailbox", "MailUniversalDistributionGroup", ""} {
		if (Record{RecipientTypeDetails: v}).IsPublicFolder() {
			t.Errorf("IsPublicFolder() = true for %q", v)
		}
	}
}

func TestReadRecords(t *testing.T) {
	input := "\ufeffrecipienttypedetails,Alias,EmailAddresses,PrimarySmtpAddress\n" +
		"PublicFolder,sales team!,SMTP:sales@contoso.com;smtp:sales2@contoso.com,sales@contoso.com\n" +
		"UserMailbox,jdoe,SMTP:jdoe@contoso.com,jdoe@contoso.com\n" +
		"PublicFolder, .archive.,smtp:archive@contoso.com\n"

	records, err := ReadRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ReadRecords() returned %d records, want 3", len(records))
	}

	first := records[0]
	if first.Alias != "sales team!" || !first.IsPublicFolder() || first.Line != 2 {
		t.Errorf("first record = %+v", first)
	}
	if len(first.EmailAddresses) != 2 {
		t.Errorf("first record addresses = %q", first.EmailAddresses)
	}
	if first.PrimarySMTPAddress != "sales@contoso.com" {
		t.Errorf("PrimarySMTPAddress = %q", first.PrimarySMTPAddress)
	}

	// Leading whitespace in the alias is data, not formatting.
	if records[2].Alias != " .archive." {
		t.Errorf("third alias = %q, want %q", records[2].Alias, " .archive.")
	}
	if records[2].PrimarySMTPAddress != "" {
		t.Errorf("short row PrimarySMTPAddress = %q, want empty", records[2].PrimarySMTPAddress)
	}
}

func TestReadRecords_Errors(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader("")); err == nil {
		t.Error("ReadRecords() expected error for empty input")
	}

	_, err := ReadRecords(strings.NewReader("Alias,DisplayName\nx,y\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("ReadRecords() error = %v, want ErrMissingColumn", err)
	}
	if err != nil && !strings.Contains(err.Error(), ColumnEmailAddresses) {
		t.Errorf("error %q does not name the missing column", err)
	}
}
