// Package main provides exomigtool, a command-line tool for Exchange Online
// tenant-migration housekeeping.
//
// Actions:
//   - sanitizepf: suggest valid mail nicknames for public folders (offline)
//   - skippeditems: report items a mailbox migration skipped (offline)
//   - reconcile: compare a mailbox's proxy addresses with the accepted domains
//   - dlconvert: plan a cloud placeholder for an on-premises distribution group
//   - dlfinalize: list the steps that turn the placeholder into the original
//
// The Graph actions authenticate with an app registration (client secret or
// PFX certificate) and only read from the tenant. Every action appends its
// findings to an audit report (CSV or JSON lines) in the report directory.
//
// Example usage:
//
//	exomigtool -action sanitizepf -input recipients.csv
//	exomigtool -action reconcile -tenantid "..." -clientid "..." -secret "..." -mailbox user@example.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/security"
	"exomigtool/internal/common/version"
)

const toolName = "exomigtool"

// errInvalidConfig is returned by run after usage has been printed.
var errInvalidConfig = errors.New("invalid configuration")

func main() {
	// -completion is handled before flag parsing so only the script is printed.
	for i, arg := range os.Args {
		if arg == "-completion" && i+1 < len(os.Args) {
			switch os.Args[i+1] {
			case "bash":
				fmt.Print(generateBashCompletion())
				os.Exit(0)
			case "powershell":
				fmt.Print(generatePowerShellCompletion())
				os.Exit(0)
			default:
				fmt.Fprintf(os.Stderr, "Error: Invalid completion shell type '%s'\n", os.Args[i+1])
				fmt.Fprintf(os.Stderr, "Valid options: bash, powershell\n\n")
				fmt.Fprintf(os.Stderr, "Usage:\n")
				fmt.Fprintf(os.Stderr, "  %s -completion bash > exomigtool-completion.bash\n", os.Args[0])
				fmt.Fprintf(os.Stderr, "  %s -completion powershell > exomigtool-completion.ps1\n", os.Args[0])
				os.Exit(1)
			}
		}
	}

	if err := run(); err != nil {
		if !errors.Is(err, errInvalidConfig) {
			log.Println(err)
		}
		os.Exit(1)
	}
}

// setupSignalHandling returns a context cancelled on Ctrl+C or SIGTERM.
func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n\nReceived interrupt signal. Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// initializeServices opens the audit report and exports the proxy setting.
// A report that cannot be opened is logged and the action runs without it.
func initializeServices(config *Config, slogger *slog.Logger) logger.Logger {
	audit, err := logger.NewLogger(config.LogFormat, config.ReportDir, toolName, config.Action)
	if err != nil {
		logger.LogWarn(slogger, "Could not initialize audit report", "error", err)
	} else {
		logger.LogDebug(slogger, "Audit report opened", "path", audit.Path(), "format", config.LogFormat)
	}

	// net/http picks the proxy up from HTTP_PROXY/HTTPS_PROXY.
	if config.ProxyURL != "" && requiresGraph(config.Action) {
		os.Setenv("HTTP_PROXY", config.ProxyURL)
		os.Setenv("HTTPS_PROXY", config.ProxyURL)
		logger.LogInfo(slogger, "Using proxy", "proxy", security.MaskProxyURL(config.ProxyURL))
	}

	return audit
}

// run parses the configuration, connects to Graph when the action needs it
// and executes the action.
func run() error {
	ctx, cancel := setupSignalHandling()
	defer cancel()

	config := parseAndConfigureFlags()

	if config.ShowVersion {
		fmt.Printf("Exchange Online Migration Housekeeping Tool - Version %s\n", version.Get())
		return nil
	}

	if err := validateConfiguration(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		return errInvalidConfig
	}

	slogger := logger.SetupLogger(config.VerboseMode, config.LogLevel).With("run", uuid.NewString())
	logger.LogInfo(slogger, "Application starting", "version", version.Get(), "action", config.Action)

	audit := initializeServices(config, slogger)
	if audit != nil {
		defer func() {
			if err := audit.Close(); err != nil {
				logger.LogWarn(slogger, "Could not close audit report", "error", err)
			}
		}()
	}

	var dir directory
	if requiresGraph(config.Action) {
		client, err := setupGraphClient(ctx, config, slogger)
		if err != nil {
			return err
		}
		dir = newGraphDirectory(client, config, slogger)
	}

	if err := executeAction(ctx, config, dir, audit, slogger, os.Stdout); err != nil {
		logger.LogError(slogger, "Action failed", "action", config.Action, "error", err)
		return err
	}
	logger.LogInfo(slogger, "Action completed", "action", config.Action)
	return nil
}
