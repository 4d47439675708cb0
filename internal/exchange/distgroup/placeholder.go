// Package distgroup plans the conversion of an on-premises distribution group
// into a cloud-managed group.
//
// Conversion happens in two passes. First a placeholder is planned: a cloud
// group with a prefixed name and alias that holds the members while the
// on-premises group still exists. Once the on-premises group has been removed
// and directory sync has caught up, the placeholder is finalized by giving it
// the original name, alias and addresses.
package distgroup

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"exomigtool/internal/exchange/recipient"
	"exomigtool/internal/nickname"
)

// DefaultPrefix is prepended to the placeholder's display name and alias.
const DefaultPrefix = "Cloud-"

// maxDisplayName is the longest display name Exchange accepts.
const maxDisplayName = 256

var (
	ErrNotSynced          = errors.New("group is not synchronized from on-premises")
	ErrNoMail             = errors.New("group has no mail address")
	ErrInvalidAlias       = errors.New("placeholder alias is not a valid mail nickname")
	ErrSourceStillSynced  = errors.New("on-premises group is still synchronized")
	ErrPlaceholderMissing = errors.New("placeholder group not found")
)

// Member is a group member as recorded in a plan.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Mail        string `json:"mail,omitempty"`
}

// Group is a snapshot of a mail-enabled group.
type Group struct {
	ID                    string
	DisplayName           string
	Mail                  string
	MailNickname          string
	ProxyAddresses        []string
	Members               []Member
	OnPremisesSyncEnabled bool
}

// Plan describes the placeholder for one distribution group. It is written
// to disk by the convert pass and read back by the finalize pass.
type Plan struct {
	SourceID          string `json:"sourceId"`
	SourceDisplayName string `json:"sourceDisplayName"`
	SourceAlias       string `json:"sourceAlias"`
	SourceMail        string `json:"sourceMail"`

	PlaceholderDisplayName string `json:"placeholderDisplayName"`
	PlaceholderAlias       string `json:"placeholderAlias"`
	PlaceholderMail        string `json:"placeholderMail"`

	ProxyAddresses []string  `json:"proxyAddresses"`
	Members        []Member  `json:"members"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BuildPlaceholder plans the placeholder for g. prefix defaults to
// DefaultPrefix when empty.
func BuildPlaceholder(g Group, prefix string, now time.Time) (Plan, error) {
	if !g.OnPremisesSyncEnabled {
		return Plan{}, fmt.Errorf("%s: %w", g.DisplayName, ErrNotSynced)
	}
	at := strings.LastIndex(g.Mail, "@")
	if g.Mail == "" || at < 1 {
		return Plan{}, fmt.Errorf("%s: %w", g.DisplayName, ErrNoMail)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	sourceAlias := g.MailNickname
	if sourceAlias == "" {
		sourceAlias = g.Mail[:at]
	}
	alias := nickname.Normalize(prefix + sourceAlias)
	if !nickname.IsValid(alias) {
		return Plan{}, fmt.Errorf("%q: %w", alias, ErrInvalidAlias)
	}

	proxies := append([]string(nil), g.ProxyAddresses...)
	if !containsFold(proxies, recipient.PrimarySMTPPrefix+g.Mail) {
		proxies = append(proxies, recipient.PrimarySMTPPrefix+g.Mail)
	}

	return Plan{
		SourceID:               g.ID,
		SourceDisplayName:      g.DisplayName,
		SourceAlias:            sourceAlias,
		SourceMail:             g.Mail,
		PlaceholderDisplayName: truncateRunes(prefix+g.DisplayName, maxDisplayName),
		PlaceholderAlias:       alias,
		PlaceholderMail:        alias + g.Mail[at:],
		ProxyAddresses:         proxies,
		Members:                append([]Member(nil), g.Members...),
		CreatedAt:              now.UTC(),
	}, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
