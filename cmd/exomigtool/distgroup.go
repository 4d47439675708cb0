package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/exchange/distgroup"
)

var (
	planColumns     = []string{"Group", "Field", "Value"}
	finalizeColumns = []string{"Group", "Order", "Operation", "Value"}

	// planRequired are the plan keys dlfinalize cannot work without.
	planRequired = []string{"sourceMail", "sourceAlias", "placeholderMail"}

	errInvalidPlan = errors.New("invalid conversion plan")
)

type convertReport struct {
	Plan     distgroup.Plan `json:"plan"`
	PlanPath string         `json:"planPath"`
	Written  bool           `json:"written"`
}

type finalizeReport struct {
	SourceMail      string           `json:"sourceMail"`
	PlaceholderMail string           `json:"placeholderMail"`
	Steps           []distgroup.Step `json:"steps"`
}

func runDLConvert(ctx context.Context, config *Config, dir directory, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	group, err := dir.FindGroup(ctx, config.Group)
	if err != nil {
		return fmt.Errorf("failed to look up group: %w", err)
	}
	if group == nil {
		return fmt.Errorf("group %s not found", config.Group)
	}

	members, err := dir.GroupMembers(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	group.Members = members
	logger.LogInfo(log, "Group loaded", "group", group.Mail, "members", len(members), "synced", group.OnPremisesSyncEnabled)

	plan, err := distgroup.BuildPlaceholder(*group, config.Prefix, time.Now())
	if err != nil {
		return err
	}

	report := convertReport{Plan: plan, PlanPath: planPath(config, plan)}
	if config.WhatIf {
		logger.LogInfo(log, "WhatIf: plan not written", "path", report.PlanPath)
	} else {
		if err := writePlan(report.PlanPath, plan); err != nil {
			return err
		}
		report.Written = true
		logger.LogInfo(log, "Conversion plan written", "path", report.PlanPath)
	}

	writeAudit(audit, log, planColumns, planRows(plan))

	if config.OutputFormat == "json" {
		printJSON(out, report)
		return nil
	}
	printConvertReport(out, report)
	return nil
}

// planPath is -plan, or a file named after the placeholder alias in the
// report directory.
func planPath(config *Config, plan distgroup.Plan) string {
	if config.PlanPath != "" {
		return config.PlanPath
	}
	dir := ifEmpty(config.ReportDir, os.TempDir())
	return filepath.Join(dir, fmt.Sprintf("exomigtool_plan_%s.json", plan.PlaceholderAlias))
}

func writePlan(path string, plan distgroup.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// readPlan loads a plan written by dlconvert.
func readPlan(path string) (distgroup.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return distgroup.Plan{}, fmt.Errorf("failed to read plan: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return distgroup.Plan{}, fmt.Errorf("%s: %w: not valid JSON", path, errInvalidPlan)
	}
	for i, v := range gjson.GetManyBytes(data, planRequired...) {
		if v.String() == "" {
			return distgroup.Plan{}, fmt.Errorf("%s: %w: %s is missing", path, errInvalidPlan, planRequired[i])
		}
	}

	var plan distgroup.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return distgroup.Plan{}, fmt.Errorf("%s: %w: %v", path, errInvalidPlan, err)
	}
	return plan, nil
}

func planRows(plan distgroup.Plan) [][]string {
	rows := [][]string{
		{plan.SourceMail, "SourceDisplayName", plan.SourceDisplayName},
		{plan.SourceMail, "SourceAlias", plan.SourceAlias},
		{plan.SourceMail, "PlaceholderDisplayName", plan.PlaceholderDisplayName},
		{plan.SourceMail, "PlaceholderAlias", plan.PlaceholderAlias},
		{plan.SourceMail, "PlaceholderMail", plan.PlaceholderMail},
	}
	for _, p := range plan.ProxyAddresses {
		rows = append(rows, []string{plan.SourceMail, "ProxyAddress", p})
	}
	for _, m := range plan.Members {
		rows = append(rows, []string{plan.SourceMail, "Member", ifEmpty(m.Mail, m.ID)})
	}
	return rows
}

func printConvertReport(w io.Writer, report convertReport) {
	p := report.Plan
	fmt.Fprintf(w, "Placeholder plan for %s (%s)\n\n", p.SourceDisplayName, p.SourceMail)
	fmt.Fprintf(w, "  Display name:    %s\n", p.PlaceholderDisplayName)
	fmt.Fprintf(w, "  Alias:           %s\n", p.PlaceholderAlias)
	fmt.Fprintf(w, "  Primary address: %s\n", p.PlaceholderMail)
	fmt.Fprintf(w, "  Members:         %d\n", len(p.Members))
	fmt.Fprintf(w, "  Addresses kept:  %d\n", len(p.ProxyAddresses))
	fmt.Fprintln(w)
	if report.Written {
		fmt.Fprintf(w, "Plan written to %s\n", report.PlanPath)
		fmt.Fprintln(w, "Create the placeholder group as listed, remove the on-premises group, and run dlfinalize once sync has completed.")
	} else {
		fmt.Fprintf(w, "WhatIf: plan would be written to %s\n", report.PlanPath)
	}
}

func runDLFinalize(ctx context.Context, config *Config, dir directory, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	plan, err := readPlan(config.PlanPath)
	if err != nil {
		return err
	}
	logger.LogInfo(log, "Conversion plan loaded", "source", plan.SourceMail, "placeholder", plan.PlaceholderMail)

	var onPrem *distgroup.Group
	if plan.SourceID != "" {
		onPrem, err = dir.GroupByID(ctx, plan.SourceID)
	} else {
		onPrem, err = dir.FindGroup(ctx, plan.SourceMail)
	}
	if err != nil {
		return fmt.Errorf("failed to look up source group: %w", err)
	}

	placeholder, err := dir.FindGroup(ctx, plan.PlaceholderMail)
	if err != nil {
		return fmt.Errorf("failed to look up placeholder group: %w", err)
	}
	if placeholder != nil {
		if placeholder.Members, err = dir.GroupMembers(ctx, placeholder.ID); err != nil {
			return fmt.Errorf("failed to list placeholder members: %w", err)
		}
	}

	steps, err := distgroup.Finalize(plan, onPrem, placeholder)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, []string{plan.SourceMail, strconv.Itoa(s.Order), string(s.Operation), s.Value})
	}
	writeAudit(audit, log, finalizeColumns, rows)

	report := finalizeReport{SourceMail: plan.SourceMail, PlaceholderMail: plan.PlaceholderMail, Steps: steps}
	if config.OutputFormat == "json" {
		printJSON(out, report)
		return nil
	}
	printFinalizeReport(out, report)
	return nil
}

func printFinalizeReport(w io.Writer, report finalizeReport) {
	fmt.Fprintf(w, "Finalizing %s into %s\n\n", report.PlaceholderMail, report.SourceMail)
	if len(report.Steps) == 0 {
		fmt.Fprintln(w, "The placeholder already matches the original group. Nothing to do.")
		return
	}
	for _, s := range report.Steps {
		fmt.Fprintf(w, "  %2d. %-22s %s\n", s.Order, s.Operation, s.Value)
	}
	fmt.Fprintf(w, "\n%d step(s) to apply in Exchange Online.\n", len(report.Steps))
}
