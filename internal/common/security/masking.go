// Package security masks credentials and identifiers before they reach logs
// or audit files.
package security

import (
	"net/url"
	"strings"
)

// MaskPassword masks a password for safe logging.
// Shows first 2 and last 2 characters with **** in between.
// Short passwords (4 characters or less) are fully masked.
func MaskPassword(password string) string {
	switch {
	case password == "":
		return ""
	case len(password) <= 4:
		return "****"
	}
	return password[:2] + "****" + password[len(password)-2:]
}

// MaskAccessToken shows the first 8 and last 4 characters of a token.
// Tokens of 16 characters or less are split in half around "...".
func MaskAccessToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 16 {
		return token[:len(token)/2] + "..." + token[len(token)/2:]
	}
	return token[:8] + "..." + token[len(token)-4:]
}

// MaskSecret keeps the first 4 characters of a client secret.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	}
	return secret[:4] + "****"
}

// MaskGUID keeps the first 8 characters of a tenant or client id, enough to
// tell tenants apart in a log.
func MaskGUID(guid string) string {
	if len(guid) <= 8 {
		return guid + "****"
	}
	return guid[:8] + "****"
}

// MaskEmail keeps two characters of the local part and of the domain.
// "user@example.com" becomes "us****@ex****".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return MaskPassword(email)
	}
	return maskPrefix(local) + "@" + maskPrefix(domain)
}

func maskPrefix(s string) string {
	if len(s) > 2 {
		return s[:2] + "****"
	}
	return "****"
}

// MaskProxyURL hides the password of a proxy URL with credentials. Values
// that do not parse are fully masked.
func MaskProxyURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
