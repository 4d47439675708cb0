package distgroup

import (
	"fmt"
	"strings"

	"exomigtool/internal/exchange/recipient"
)

// Operation names a change applied to the placeholder during finalization.
type Operation string

const (
	OpSetDisplayName     Operation = "SetDisplayName"
	OpSetAlias           Operation = "SetAlias"
	OpSetPrimarySMTP     Operation = "SetPrimarySmtpAddress"
	OpAddProxyAddress    Operation = "AddProxyAddress"
	OpRemoveProxyAddress Operation = "RemoveProxyAddress"
	OpAddMember          Operation = "AddMember"
)

// Step is one change in a finalization.
type Step struct {
	Order     int
	Operation Operation
	Value     string
}

// Finalize lists the changes that turn the placeholder back into the original
// group. onPrem is the current state of the source group, nil once it has been
// deleted; placeholder is the current state of the placeholder, nil if it
// cannot be found.
func Finalize(plan Plan, onPrem *Group, placeholder *Group) ([]Step, error) {
	if onPrem != nil && onPrem.OnPremisesSyncEnabled {
		return nil, fmt.Errorf("%s: %w", plan.SourceMail, ErrSourceStillSynced)
	}
	if placeholder == nil {
		return nil, fmt.Errorf("%s: %w", plan.PlaceholderMail, ErrPlaceholderMissing)
	}

	var steps []Step
	add := func(op Operation, value string) {
		steps = append(steps, Step{Order: len(steps) + 1, Operation: op, Value: value})
	}

	if placeholder.DisplayName != plan.SourceDisplayName {
		add(OpSetDisplayName, plan.SourceDisplayName)
	}
	if !strings.EqualFold(placeholder.MailNickname, plan.SourceAlias) {
		add(OpSetAlias, plan.SourceAlias)
	}
	if !strings.EqualFold(placeholder.Mail, plan.SourceMail) {
		add(OpSetPrimarySMTP, plan.SourceMail)
	}

	current := make(map[string]bool, len(placeholder.ProxyAddresses))
	for _, p := range placeholder.ProxyAddresses {
		current[strings.ToLower(p)] = true
	}
	for _, p := range plan.ProxyAddresses {
		if strings.EqualFold(recipient.StripPrefix(p), plan.SourceMail) && recipient.IsSMTP(p) {
			continue // covered by the primary address step
		}
		if recipient.IsSMTP(p) {
			// Re-stamped addresses are all secondary.
			p = recipient.SecondarySMTPPrefix + recipient.StripPrefix(p)
		}
		if !current[strings.ToLower(p)] {
			add(OpAddProxyAddress, p)
		}
	}
	if plan.PlaceholderMail != "" && current[strings.ToLower(recipient.SecondarySMTPPrefix+plan.PlaceholderMail)] {
		add(OpRemoveProxyAddress, recipient.SecondarySMTPPrefix+plan.PlaceholderMail)
	}

	members := make(map[string]bool, len(placeholder.Members))
	for _, m := range placeholder.Members {
		members[m.ID] = true
	}
	for _, m := range plan.Members {
		if !members[m.ID] {
			add(OpAddMember, memberLabel(m))
		}
	}

	return steps, nil
}

func memberLabel(m Member) string {
	switch {
	case m.Mail != "":
		return m.Mail
	case m.DisplayName != "":
		return m.DisplayName + " (" + m.ID + ")"
	}
	return m.ID
}
