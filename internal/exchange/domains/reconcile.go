// Package domains reconciles a recipient's proxy addresses against the
// domains a tenant accepts mail for.
package domains

import (
	"strings"

	"golang.org/x/text/cases"

	"exomigtool/internal/exchange/recipient"
)

// RoutingDomainSuffix marks the coexistence routing domain created for every
// hybrid tenant (tenant.mail.onmicrosoft.com).
const RoutingDomainSuffix = ".mail.onmicrosoft.com"

// Action is the outcome for one proxy address.
type Action string

const (
	ActionKeep               Action = "Keep"
	ActionRemove             Action = "Remove"
	ActionPrimaryNotAccepted Action = "PrimaryNotAccepted"
	ActionIgnored            Action = "Ignored"
)

// AcceptedDomain is a domain registered in the tenant.
type AcceptedDomain struct {
	Name       string
	IsDefault  bool
	IsInitial  bool
	IsVerified bool
}

// Entry is the reconciliation outcome for one proxy address.
type Entry struct {
	Proxy     string // address as stored, including its prefix
	Address   string // address without prefix
	Domain    string
	IsPrimary bool
	Accepted  bool
	Action    Action
}

// Result is the reconciliation of one recipient's address list.
type Result struct {
	Entries               []Entry
	HasRoutingAddress     bool
	MissingRoutingAddress bool // a routing domain exists but no address uses it
}

// Removals returns the entries that should be dropped from the address list.
func (r Result) Removals() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Action == ActionRemove {
			out = append(out, e)
		}
	}
	return out
}

// NeedsAttention reports whether anything in the result calls for a change.
func (r Result) NeedsAttention() bool {
	if r.MissingRoutingAddress {
		return true
	}
	for _, e := range r.Entries {
		if e.Action == ActionRemove || e.Action == ActionPrimaryNotAccepted {
			return true
		}
	}
	return false
}

// Reconcile classifies every proxy address. Only verified domains count as
// accepted; domain names are matched exactly, ignoring case.
func Reconcile(proxyAddresses []string, accepted []AcceptedDomain) Result {
	fold := cases.Fold()
	verified := make(map[string]bool, len(accepted))
	hasRoutingDomain := false
	for _, d := range accepted {
		if !d.IsVerified {
			continue
		}
		name := fold.String(strings.TrimSpace(d.Name))
		verified[name] = true
		if strings.HasSuffix(name, RoutingDomainSuffix) {
			hasRoutingDomain = true
		}
	}

	var res Result
	for _, proxy := range proxyAddresses {
		e := Entry{Proxy: proxy, Address: recipient.StripPrefix(proxy)}
		if !recipient.IsSMTP(proxy) {
			e.Action = ActionIgnored
			res.Entries = append(res.Entries, e)
			continue
		}

		e.IsPrimary = strings.HasPrefix(proxy, recipient.PrimarySMTPPrefix)
		if at := strings.LastIndex(e.Address, "@"); at >= 0 {
			e.Domain = fold.String(e.Address[at+1:])
		}
		e.Accepted = e.Domain != "" && verified[e.Domain]

		switch {
		case e.Accepted:
			e.Action = ActionKeep
		case e.IsPrimary:
			e.Action = ActionPrimaryNotAccepted
		default:
			e.Action = ActionRemove
		}
		if e.Accepted && strings.HasSuffix(e.Domain, RoutingDomainSuffix) {
			res.HasRoutingAddress = true
		}
		res.Entries = append(res.Entries, e)
	}

	res.MissingRoutingAddress = hasRoutingDomain && !res.HasRoutingAddress
	return res
}
