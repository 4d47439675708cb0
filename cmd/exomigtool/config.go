package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/ratelimit"
	"exomigtool/internal/common/security"
	"exomigtool/internal/common/validation"
	"exomigtool/internal/common/version"
)

// envPrefix is prepended to the upper-cased flag name to form its
// environment variable, e.g. -tenantid -> EXOMIGTENANTID.
const envPrefix = "EXOMIG"

// Action constants
const (
	ActionSanitizePF   = "sanitizepf"
	ActionSkippedItems = "skippeditems"
	ActionReconcile    = "reconcile"
	ActionDLConvert    = "dlconvert"
	ActionDLFinalize   = "dlfinalize"
)

var validActions = []string{ActionSanitizePF, ActionSkippedItems, ActionReconcile, ActionDLConvert, ActionDLFinalize}

// Config holds all exomigtool configuration.
type Config struct {
	// Core configuration
	ShowVersion bool
	Action      string

	// Authentication (Graph actions only; secret and PFX are mutually exclusive)
	TenantID string
	ClientID string
	Secret   string
	PfxPath  string
	PfxPass  string

	// Action inputs
	InputPath string      // recipient CSV (sanitizepf) or statistics JSON (skippeditems)
	Mailbox   string      // reconcile target
	Group     string      // dlconvert source group mail address
	PlanPath  string      // plan file written by dlconvert, read by dlfinalize
	Prefix    string      // placeholder prefix for dlconvert
	Kinds     stringSlice // skipped item kinds to keep (empty = all)
	Seed      uint64      // suffix seed for sanitizepf (0 = random)

	// Reporting
	ReportDir    string // audit log directory (empty = temp dir)
	LogFormat    string // csv, json
	OutputFormat string // text, json

	// Network configuration
	ProxyURL   string
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64 // Graph requests per second (0 = unlimited)

	// Runtime configuration
	VerboseMode bool
	LogLevel    string
	WhatIf      bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Prefix:       "Cloud-",
		LogFormat:    logger.FormatCSV,
		OutputFormat: "text",
		MaxRetries:   3,
		RetryDelay:   2000 * time.Millisecond,
		LogLevel:     "INFO",
	}
}

// requiresGraph reports whether action talks to Microsoft Graph.
func requiresGraph(action string) bool {
	switch action {
	case ActionReconcile, ActionDLConvert, ActionDLFinalize:
		return true
	}
	return false
}

// parseAndConfigureFlags parses os.Args and the EXOMIG* environment.
func parseAndConfigureFlags() *Config {
	fs := flag.CommandLine
	fs.Usage = func() { printUsage(fs) }
	config, err := parseFlags(fs, os.Args[1:], os.Getenv)
	if err != nil {
		// flag.ExitOnError has already reported parse failures; env failures land here.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if config.VerboseMode {
		printVerboseConfig(os.Stdout, config)
	}
	return config
}

// parseFlags defines every flag on fs, parses args and then fills each flag
// that was not given on the command line from its environment variable.
func parseFlags(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	config := NewConfig()
	var retryDelayMs int

	fs.BoolVar(&config.ShowVersion, "version", false, "Show version information")
	fs.StringVar(&config.Action, "action", "", "Action to perform: "+strings.Join(validActions, ", ")+" (env: EXOMIGACTION)")
	fs.StringVar(&config.TenantID, "tenantid", "", "The Azure Tenant ID (env: EXOMIGTENANTID)")
	fs.StringVar(&config.ClientID, "clientid", "", "The Application (Client) ID (env: EXOMIGCLIENTID)")
	fs.StringVar(&config.Secret, "secret", "", "The Client Secret (env: EXOMIGSECRET)")
	fs.StringVar(&config.PfxPath, "pfx", "", "Path to the .pfx certificate file (env: EXOMIGPFX)")
	fs.StringVar(&config.PfxPass, "pfxpass", "", "Password for the .pfx file (env: EXOMIGPFXPASS)")
	fs.StringVar(&config.InputPath, "input", "", "Recipient CSV (sanitizepf) or migration statistics JSON (skippeditems) (env: EXOMIGINPUT)")
	fs.StringVar(&config.Mailbox, "mailbox", "", "Mailbox to reconcile, by SMTP address or UPN (env: EXOMIGMAILBOX)")
	fs.StringVar(&config.Group, "group", "", "Mail address of the distribution group to convert (env: EXOMIGGROUP)")
	fs.StringVar(&config.PlanPath, "plan", "", "Conversion plan file, written by dlconvert and read by dlfinalize (env: EXOMIGPLAN)")
	fs.StringVar(&config.Prefix, "prefix", config.Prefix, "Placeholder display name and alias prefix (env: EXOMIGPREFIX)")
	fs.Var(&config.Kinds, "kinds", "Comma-separated skipped item kinds to report, e.g. LargeItem,CorruptItem (env: EXOMIGKINDS)")
	fs.Uint64Var(&config.Seed, "seed", 0, "Seed for alias suffixes, 0 = random (env: EXOMIGSEED)")
	fs.StringVar(&config.ReportDir, "reportdir", "", "Directory for audit reports (default: system temp) (env: EXOMIGREPORTDIR)")
	fs.StringVar(&config.LogFormat, "logformat", config.LogFormat, "Audit report format: csv, json (env: EXOMIGLOGFORMAT)")
	fs.StringVar(&config.OutputFormat, "output", config.OutputFormat, "Console output format: text, json (env: EXOMIGOUTPUT)")
	fs.StringVar(&config.ProxyURL, "proxy", "", "HTTP/HTTPS proxy URL (env: EXOMIGPROXY)")
	fs.IntVar(&config.MaxRetries, "maxretries", config.MaxRetries, "Maximum retry attempts for transient failures (env: EXOMIGMAXRETRIES)")
	fs.IntVar(&retryDelayMs, "retrydelay", int(config.RetryDelay/time.Millisecond), "Base delay between retries in milliseconds (env: EXOMIGRETRYDELAY)")
	fs.Float64Var(&config.RateLimit, "ratelimit", 0, "Maximum Graph requests per second, 0 = unlimited (env: EXOMIGRATELIMIT)")
	fs.BoolVar(&config.VerboseMode, "verbose", false, "Enable verbose output (shows configuration, tokens, API details) (env: EXOMIGVERBOSE)")
	fs.StringVar(&config.LogLevel, "loglevel", config.LogLevel, "Logging level: DEBUG, INFO, WARN, ERROR (env: EXOMIGLOGLEVEL)")
	fs.BoolVar(&config.WhatIf, "whatif", false, "Dry run mode: report what would change without writing files (env: EXOMIGWHATIF)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := applyEnvVars(fs, getenv); err != nil {
		return nil, err
	}

	config.RetryDelay = time.Duration(retryDelayMs) * time.Millisecond
	config.Action = strings.ToLower(strings.TrimSpace(config.Action))
	config.OutputFormat = strings.ToLower(config.OutputFormat)
	config.LogFormat = strings.ToLower(config.LogFormat)
	return config, nil
}

// applyEnvVars sets every flag not given on the command line from its
// environment variable. Flags take precedence.
func applyEnvVars(fs *flag.FlagSet, getenv func(string) string) error {
	provided := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		provided[f.Name] = true
	})

	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		if provided[f.Name] || f.Name == "version" || firstErr != nil {
			return
		}
		value := getenv(envName(f.Name))
		if value == "" {
			return
		}
		if err := fs.Set(f.Name, value); err != nil {
			firstErr = fmt.Errorf("invalid value %q for %s: %w", value, envName(f.Name), err)
		}
	})
	return firstErr
}

func envName(flagName string) string {
	return envPrefix + strings.ToUpper(flagName)
}

// validateConfiguration validates the configuration.
func validateConfiguration(config *Config) error {
	valid := false
	for _, a := range validActions {
		if config.Action == a {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid action: %q (must be one of: %s)", config.Action, strings.Join(validActions, ", "))
	}

	if config.OutputFormat != "text" && config.OutputFormat != "json" {
		return fmt.Errorf("invalid output format: %s (use: text, json)", config.OutputFormat)
	}
	if config.LogFormat != logger.FormatCSV && config.LogFormat != logger.FormatJSON {
		return fmt.Errorf("invalid log format: %s (use: csv, json)", config.LogFormat)
	}
	if err := validation.ValidateOutputDir(config.ReportDir, "Report directory"); err != nil {
		return err
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("maxretries cannot be negative")
	}
	if config.RetryDelay <= 0 {
		return fmt.Errorf("retrydelay must be positive")
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("ratelimit cannot be negative")
	}

	if requiresGraph(config.Action) {
		if err := validateGraphAuth(config); err != nil {
			return err
		}
		if err := validation.ValidateProxyURL(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}

	switch config.Action {
	case ActionSanitizePF, ActionSkippedItems:
		if config.InputPath == "" {
			return fmt.Errorf("%s requires -input", config.Action)
		}
		if err := validation.ValidateFilePath(config.InputPath, "Input file"); err != nil {
			return err
		}

	case ActionReconcile:
		if config.Mailbox == "" {
			return fmt.Errorf("reconcile requires -mailbox")
		}
		if err := validation.ValidateEmail(config.Mailbox); err != nil {
			return fmt.Errorf("invalid mailbox: %w", err)
		}

	case ActionDLConvert:
		if config.Group == "" {
			return fmt.Errorf("dlconvert requires -group")
		}
		if err := validation.ValidateEmail(config.Group); err != nil {
			return fmt.Errorf("invalid group address: %w", err)
		}
		if strings.TrimSpace(config.Prefix) == "" {
			return fmt.Errorf("dlconvert requires a non-empty -prefix")
		}

	case ActionDLFinalize:
		if config.PlanPath == "" {
			return fmt.Errorf("dlfinalize requires -plan")
		}
		if err := validation.ValidateFilePath(config.PlanPath, "Plan file"); err != nil {
			return err
		}
	}

	return nil
}

func validateGraphAuth(config *Config) error {
	if err := validation.ValidateGUID(config.TenantID, "Tenant ID"); err != nil {
		return err
	}
	if err := validation.ValidateGUID(config.ClientID, "Client ID"); err != nil {
		return err
	}

	switch {
	case config.Secret == "" && config.PfxPath == "":
		return fmt.Errorf("missing authentication: must provide one of -secret or -pfx")
	case config.Secret != "" && config.PfxPath != "":
		return fmt.Errorf("multiple authentication methods provided: use only one of -secret or -pfx")
	}
	if config.PfxPath != "" {
		if err := validation.ValidateFilePath(config.PfxPath, "PFX certificate file"); err != nil {
			return err
		}
	}
	return nil
}

func printUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Exchange Online Migration Housekeeping Tool - Version %s\n\n", version.Get())
	fmt.Fprintf(out, "Usage: %s -action <action> [options]\n\n", os.Args[0])
	fmt.Fprintf(out, "Actions:\n")
	fmt.Fprintf(out, "  sanitizepf    - Suggest valid aliases for public folders (offline, -input recipients.csv)\n")
	fmt.Fprintf(out, "  skippeditems  - Report skipped items from migration statistics (offline, -input stats.json)\n")
	fmt.Fprintf(out, "  reconcile     - Compare a mailbox's proxy addresses with the tenant's accepted domains\n")
	fmt.Fprintf(out, "  dlconvert     - Plan a cloud placeholder for an on-premises distribution group\n")
	fmt.Fprintf(out, "  dlfinalize    - List the steps that finish a planned group conversion\n\n")
	fmt.Fprintf(out, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment Variables:\n")
	fmt.Fprintf(out, "  All flags can be set via environment variables with %s prefix\n", envPrefix)
	fmt.Fprintf(out, "  Example: EXOMIGTENANTID, EXOMIGCLIENTID, EXOMIGSECRET\n")
	fmt.Fprintf(out, "  Command-line flags take precedence over environment variables\n\n")
	fmt.Fprintf(out, "Examples:\n")
	fmt.Fprintf(out, "  %s -action sanitizepf -input recipients.csv\n", os.Args[0])
	fmt.Fprintf(out, "  %s -action skippeditems -input stats.json -kinds LargeItem,CorruptItem\n", os.Args[0])
	fmt.Fprintf(out, "  %s -action reconcile -tenantid \"...\" -clientid \"...\" -secret \"...\" -mailbox user@example.com\n", os.Args[0])
	fmt.Fprintf(out, "  %s -action dlconvert -tenantid \"...\" -clientid \"...\" -pfx app.pfx -group sales@example.com -plan sales.json\n\n", os.Args[0])
}

// printVerboseConfig prints the effective configuration with secrets masked.
func printVerboseConfig(w io.Writer, config *Config) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "VERBOSE MODE ENABLED")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Environment Variables (%s*):\n", envPrefix)
	fmt.Fprintln(w, "----------------------------------")
	var keys []string
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, envPrefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		fmt.Fprintf(w, "  (no %s environment variables set)\n", envPrefix)
	}
	for _, key := range keys {
		value := os.Getenv(key)
		switch key {
		case envName("secret"):
			value = security.MaskSecret(value)
		case envName("pfxpass"):
			value = security.MaskPassword(value)
		case envName("proxy"):
			value = security.MaskProxyURL(value)
		}
		fmt.Fprintf(w, "  %s = %s\n", key, value)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Final Configuration (after env vars + flags):")
	fmt.Fprintln(w, "----------------------------------------------")
	fmt.Fprintf(w, "Version: %s\n", version.Get())
	fmt.Fprintf(w, "Action: %s\n", config.Action)
	fmt.Fprintf(w, "Output Format: %s\n", config.OutputFormat)
	fmt.Fprintf(w, "Report Format: %s\n", config.LogFormat)
	fmt.Fprintf(w, "Report Directory: %s\n", ifEmpty(config.ReportDir, os.TempDir()))
	fmt.Fprintf(w, "WhatIf (Dry Run): %t\n", config.WhatIf)

	if requiresGraph(config.Action) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Authentication:")
		fmt.Fprintf(w, "  Tenant ID: %s\n", security.MaskGUID(config.TenantID))
		fmt.Fprintf(w, "  Client ID: %s\n", security.MaskGUID(config.ClientID))
		if config.Secret != "" {
			fmt.Fprintln(w, "  Method: Client Secret")
			fmt.Fprintf(w, "  Secret: %s (length: %d)\n", security.MaskSecret(config.Secret), len(config.Secret))
		} else if config.PfxPath != "" {
			fmt.Fprintln(w, "  Method: PFX Certificate")
			fmt.Fprintf(w, "  PFX Path: %s\n", config.PfxPath)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Network Configuration:")
		fmt.Fprintf(w, "  Proxy: %s\n", ifEmpty(security.MaskProxyURL(config.ProxyURL), "(none)"))
		fmt.Fprintf(w, "  Max Retries: %d (base delay %s)\n", config.MaxRetries, config.RetryDelay)
		fmt.Fprintf(w, "  Rate Limit: %s\n", ratelimit.New(config.RateLimit))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Action Parameters:")
	switch config.Action {
	case ActionSanitizePF:
		fmt.Fprintf(w, "  Input: %s\n", config.InputPath)
		if config.Seed != 0 {
			fmt.Fprintf(w, "  Seed: %d\n", config.Seed)
		}
	case ActionSkippedItems:
		fmt.Fprintf(w, "  Input: %s\n", config.InputPath)
		fmt.Fprintf(w, "  Kinds: %s\n", ifEmpty(config.Kinds.String(), "(all)"))
	case ActionReconcile:
		fmt.Fprintf(w, "  Mailbox: %s\n", config.Mailbox)
	case ActionDLConvert:
		fmt.Fprintf(w, "  Group: %s\n", config.Group)
		fmt.Fprintf(w, "  Prefix: %s\n", config.Prefix)
		fmt.Fprintf(w, "  Plan: %s\n", ifEmpty(config.PlanPath, "(report directory)"))
	case ActionDLFinalize:
		fmt.Fprintf(w, "  Plan: %s\n", config.PlanPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w)
}

// stringSlice implements the flag.Value interface for comma-separated string lists.
type stringSlice []string

// String returns the comma-separated string representation of the slice.
func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

// Set parses a comma-separated string into a slice of trimmed strings.
func (s *stringSlice) Set(value string) error {
	var result []string
	for _, p := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	*s = result
	return nil
}
