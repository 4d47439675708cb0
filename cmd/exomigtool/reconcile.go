package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/exchange/domains"
)

var reconcileColumns = []string{"Mailbox", "ProxyAddress", "Domain", "IsPrimary", "Accepted", "Action"}

type reconcileReport struct {
	Mailbox               string          `json:"mailbox"`
	UserPrincipalName     string          `json:"userPrincipalName"`
	AcceptedDomains       []string        `json:"acceptedDomains"`
	Entries               []domains.Entry `json:"entries"`
	Counts                map[string]int  `json:"counts"`
	MissingRoutingAddress bool            `json:"missingRoutingAddress"`
	NeedsAttention        bool            `json:"needsAttention"`
	Removals              []string        `json:"removals,omitempty"`
	WhatIf                bool            `json:"whatIf"`
}

func runReconcile(ctx context.Context, config *Config, dir directory, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	accepted, err := dir.AcceptedDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accepted domains: %w", err)
	}

	mbx, err := dir.FindMailbox(ctx, config.Mailbox)
	if err != nil {
		return fmt.Errorf("failed to look up mailbox: %w", err)
	}
	if mbx == nil {
		return fmt.Errorf("mailbox %s not found", config.Mailbox)
	}
	logger.LogInfo(log, "Reconciling proxy addresses",
		"mailbox", mbx.Mail, "addresses", len(mbx.ProxyAddresses), "domains", len(accepted))

	report := buildReconcileReport(mbx, accepted)
	report.WhatIf = config.WhatIf

	rows := make([][]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		rows = append(rows, []string{
			report.Mailbox, e.Proxy, e.Domain, yesNo(e.IsPrimary), yesNo(e.Accepted), string(e.Action),
		})
	}
	writeAudit(audit, log, reconcileColumns, rows)

	if report.MissingRoutingAddress {
		logger.LogWarn(log, "Mailbox has no address in the coexistence routing domain", "mailbox", report.Mailbox)
	}

	if config.OutputFormat == "json" {
		printJSON(out, report)
		return nil
	}
	printReconcileReport(out, report)
	return nil
}

func buildReconcileReport(mbx *Mailbox, accepted []domains.AcceptedDomain) reconcileReport {
	res := domains.Reconcile(mbx.ProxyAddresses, accepted)

	report := reconcileReport{
		Mailbox:               ifEmpty(mbx.Mail, mbx.UserPrincipalName),
		UserPrincipalName:     mbx.UserPrincipalName,
		Entries:               res.Entries,
		Counts:                make(map[string]int),
		MissingRoutingAddress: res.MissingRoutingAddress,
		NeedsAttention:        res.NeedsAttention(),
	}
	for _, d := range accepted {
		if d.IsVerified {
			report.AcceptedDomains = append(report.AcceptedDomains, d.Name)
		}
	}
	for _, e := range res.Entries {
		report.Counts[string(e.Action)]++
	}
	for _, e := range res.Removals() {
		report.Removals = append(report.Removals, e.Proxy)
	}
	return report
}

func printReconcileReport(w io.Writer, report reconcileReport) {
	fmt.Fprintf(w, "Proxy address reconciliation for %s\n", report.Mailbox)
	fmt.Fprintf(w, "Accepted domains: %d verified\n\n", len(report.AcceptedDomains))

	for _, e := range report.Entries {
		marker := " "
		if e.IsPrimary {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %-50s %s\n", marker, e.Proxy, e.Action)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Keep: %d, Remove: %d, Primary not accepted: %d, Ignored: %d\n",
		report.Counts[string(domains.ActionKeep)], report.Counts[string(domains.ActionRemove)],
		report.Counts[string(domains.ActionPrimaryNotAccepted)], report.Counts[string(domains.ActionIgnored)])
	if report.MissingRoutingAddress {
		fmt.Fprintln(w, "Warning: no address in the tenant's mail.onmicrosoft.com routing domain")
	}
	if report.Counts[string(domains.ActionPrimaryNotAccepted)] > 0 {
		fmt.Fprintln(w, "Warning: the primary address uses a domain the tenant does not accept; change it before removing addresses")
	}

	if !report.NeedsAttention {
		fmt.Fprintln(w, "\nNo changes needed.")
		return
	}
	if report.WhatIf {
		fmt.Fprintln(w, "\nWhatIf: no changes are applied. Remove the listed addresses in Exchange.")
	} else {
		fmt.Fprintln(w, "\nThis tool does not modify proxy addresses. Remove the listed addresses in Exchange.")
	}
}
