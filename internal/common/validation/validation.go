// Package validation checks user-supplied configuration values and the
// directory data the migration actions read.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	maxLocalPart = 64
	maxAddress   = 254
	maxDomain    = 253
	maxLabel     = 63
)

// ValidateEmail reports whether email is a well-formed SMTP address
// (local@domain). Surrounding whitespace is ignored. Quoted local parts,
// display names and comments are rejected: Exchange proxy addresses never
// carry them.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email format: %s (missing @)", email)
	}
	if len(email) > maxAddress {
		return fmt.Errorf("invalid email format: %s (longer than %d characters)", email, maxAddress)
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email format: %s", email)
	}
	local, domain := parts[0], parts[1]

	if len(local) > maxLocalPart {
		return fmt.Errorf("invalid email format: %s (local part longer than %d characters)", email, maxLocalPart)
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return fmt.Errorf("invalid email format: %s (misplaced period in local part)", email)
	}
	for _, ch := range local {
		if !isAtext(ch) && ch != '.' {
			return fmt.Errorf("invalid email format: %s (invalid character %q)", email, ch)
		}
	}

	if err := ValidateDomain(domain); err != nil {
		return fmt.Errorf("invalid email format: %s (%w)", email, err)
	}
	return nil
}

// isAtext reports whether ch may appear unquoted in a local part (RFC 5322
// atext).
func isAtext(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-/=?^_`{|}~", ch)
}

// ValidateEmails validates a slice of email addresses.
// Returns an error if any email in the slice is invalid.
func ValidateEmails(emails []string, fieldName string) error {
	for _, email := range emails {
		if err := ValidateEmail(email); err != nil {
			return fmt.Errorf("%s contains invalid email: %w", fieldName, err)
		}
	}
	return nil
}

// ValidateDomain checks a DNS domain name: dot-separated labels of letters,
// digits and hyphens, with at least two labels.
func ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if len(domain) > maxDomain {
		return fmt.Errorf("domain longer than %d characters", maxDomain)
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("domain %q has no top-level domain", domain)
	}
	for _, label := range labels {
		if label == "" || len(label) > maxLabel {
			return fmt.Errorf("domain %q has an empty or oversized label", domain)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("domain label %q cannot start or end with a hyphen", label)
		}
		for _, ch := range label {
			if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
				(ch >= '0' && ch <= '9') || ch == '-') {
				return fmt.Errorf("domain contains invalid character: %c", ch)
			}
		}
	}
	return nil
}

// ValidateGUID validates that a string matches standard GUID format (8-4-4-4-12).
// Example: 12345678-1234-1234-1234-123456789012
func ValidateGUID(guid, fieldName string) error {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if len(guid) != 36 {
		return fmt.Errorf("%s should be a GUID (36 characters, format: 12345678-1234-1234-1234-123456789012)", fieldName)
	}
	for _, i := range []int{8, 13, 18, 23} {
		if guid[i] != '-' {
			return fmt.Errorf("%s has invalid GUID format (dashes at wrong positions)", fieldName)
		}
	}
	for i, ch := range guid {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			continue
		}
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return fmt.Errorf("%s has invalid GUID format (non-hex character %q)", fieldName, ch)
		}
	}
	return nil
}

// ValidateFilePath checks that path names an existing regular file. Relative
// paths may not climb out of the working directory. An empty path is
// accepted for optional fields.
func ValidateFilePath(path, fieldName string) error {
	if path == "" {
		return nil
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(path) && (cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) ||
		strings.Contains(filepath.ToSlash(path), "../") || strings.Contains(path, `..\`)) {
		return fmt.Errorf("%s: path contains directory traversal (..) which is not allowed", fieldName)
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("%s: invalid path: %w", fieldName, err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: file not found: %s", fieldName, path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("%s: permission denied: %s", fieldName, path)
		}
		return fmt.Errorf("%s: cannot access file: %w", fieldName, err)
	}
	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file (is it a directory?): %s", fieldName, path)
	}
	return nil
}

// ValidateOutputDir checks that dir exists and is a directory. An empty dir
// is accepted and means the system temp directory.
func ValidateOutputDir(dir, fieldName string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: directory not found: %s", fieldName, dir)
		}
		return fmt.Errorf("%s: cannot access directory: %w", fieldName, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory: %s", fieldName, dir)
	}
	return nil
}

// ValidateProxyURL validates an HTTP, HTTPS or SOCKS5 proxy URL. An empty URL
// means no proxy.
func ValidateProxyURL(proxyURL string) error {
	if proxyURL == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("unsupported proxy scheme %q (use http, https or socks5)", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("proxy URL must include hostname")
	}
	if net.ParseIP(host) == nil && host != "localhost" {
		if err := validateHostLabels(host); err != nil {
			return fmt.Errorf("invalid proxy hostname: %w", err)
		}
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid proxy port: %s", p)
		}
	}

	if u.User != nil && u.User.Username() == "" {
		return fmt.Errorf("proxy URL has empty username")
	}
	return nil
}

// validateHostLabels is ValidateDomain without the top-level domain
// requirement, for single-label intranet proxy names.
func validateHostLabels(host string) error {
	if !strings.Contains(host, ".") {
		return ValidateDomain(host + ".local")
	}
	return ValidateDomain(host)
}
