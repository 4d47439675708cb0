package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"exomigtool/internal/common/logger"
)

// executeAction dispatches to the handler for config.Action. dir is nil for
// the offline actions. audit may be nil when the report file could not be
// opened; the action still runs and prints its results.
func executeAction(ctx context.Context, config *Config, dir directory, audit logger.Logger, log *slog.Logger, out io.Writer) error {
	if requiresGraph(config.Action) && dir == nil {
		return fmt.Errorf("%s requires a Graph connection", config.Action)
	}

	switch config.Action {
	case ActionSanitizePF:
		if err := runSanitizePF(config, audit, log, out); err != nil {
			return fmt.Errorf("failed to sanitize public folder aliases: %w", err)
		}
	case ActionSkippedItems:
		if err := runSkippedItems(config, audit, log, out); err != nil {
			return fmt.Errorf("failed to report skipped items: %w", err)
		}
	case ActionReconcile:
		if err := runReconcile(ctx, config, dir, audit, log, out); err != nil {
			return fmt.Errorf("failed to reconcile %s: %w", config.Mailbox, err)
		}
	case ActionDLConvert:
		if err := runDLConvert(ctx, config, dir, audit, log, out); err != nil {
			return fmt.Errorf("failed to plan conversion of %s: %w", config.Group, err)
		}
	case ActionDLFinalize:
		if err := runDLFinalize(ctx, config, dir, audit, log, out); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", config.PlanPath, err)
		}
	default:
		return fmt.Errorf("unknown action: %s", config.Action)
	}
	return nil
}

// writeAudit appends rows to the audit report. Report failures are logged and
// never fail the action.
func writeAudit(audit logger.Logger, log *slog.Logger, columns []string, rows [][]string) {
	if audit == nil || len(rows) == 0 {
		return
	}
	if err := logger.WriteWithHeader(audit, columns, rows); err != nil {
		logger.LogWarn(log, "Could not write audit report", "path", audit.Path(), "error", err)
		return
	}
	logger.LogDebug(log, "Audit rows written", "path", audit.Path(), "rows", len(rows))
}
