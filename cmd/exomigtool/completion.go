package main

import (
	"fmt"
	"strings"
)

// completionFlags lists every flag offered by shell completion.
var completionFlags = []string{
	"-action", "-tenantid", "-clientid", "-secret", "-pfx", "-pfxpass",
	"-input", "-mailbox", "-group", "-plan", "-prefix", "-kinds", "-seed",
	"-reportdir", "-logformat", "-output", "-proxy", "-maxretries", "-retrydelay",
	"-ratelimit", "-verbose", "-loglevel", "-whatif", "-version", "-help", "-completion",
}

// skippedItemKinds are the Kind values Exchange reports for skipped items.
var skippedItemKinds = []string{"LargeItem", "CorruptItem", "MissingItem", "BadItem"}

func generateBashCompletion() string {
	return fmt.Sprintf(`# exomigtool bash completion script
# Installation:
#   Linux: Copy to /etc/bash_completion.d/exomigtool
#   macOS: Copy to /usr/local/etc/bash_completion.d/exomigtool
#   Manual: source this file in your ~/.bashrc

_exomigtool_completions() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    opts="%s"

    case "${prev}" in
        -action)
            COMPREPLY=( $(compgen -W "%s" -- ${cur}) )
            return 0
            ;;
        -kinds)
            COMPREPLY=( $(compgen -W "%s" -- ${cur}) )
            return 0
            ;;
        -pfx|-input|-plan)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        -reportdir)
            COMPREPLY=( $(compgen -d -- ${cur}) )
            return 0
            ;;
        -loglevel)
            COMPREPLY=( $(compgen -W "DEBUG INFO WARN ERROR" -- ${cur}) )
            return 0
            ;;
        -logformat)
            COMPREPLY=( $(compgen -W "csv json" -- ${cur}) )
            return 0
            ;;
        -output)
            COMPREPLY=( $(compgen -W "text json" -- ${cur}) )
            return 0
            ;;
        -completion)
            COMPREPLY=( $(compgen -W "bash powershell" -- ${cur}) )
            return 0
            ;;
        -version|-verbose|-whatif|-help)
            ;;
        -maxretries|-retrydelay|-ratelimit|-seed)
            return 0
            ;;
        -tenantid|-clientid|-secret|-pfxpass|-mailbox|-group|-prefix|-proxy)
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "${opts}" -- ${cur}) )
    return 0
}

complete -F _exomigtool_completions exomigtool
complete -F _exomigtool_completions ./exomigtool
`, strings.Join(completionFlags, " "), strings.Join(validActions, " "), strings.Join(skippedItemKinds, " "))
}

func generatePowerShellCompletion() string {
	quote := func(list []string) string {
		q := make([]string, len(list))
		for i, s := range list {
			q[i] = "'" + s + "'"
		}
		return strings.Join(q, ", ")
	}

	return fmt.Sprintf(`# exomigtool PowerShell completion script
# Installation:
#   Add to your PowerShell profile: notepad $PROFILE
#   Or run manually: . .\exomigtool-completion.ps1

Register-ArgumentCompleter -Native -CommandName exomigtool.exe,exomigtool,'.\exomigtool.exe','.\exomigtool' -ScriptBlock {
    param($wordToComplete, $commandAst, $cursorPosition)

    $actions = @(%s)
    $kinds = @(%s)
    $logLevels = @('DEBUG', 'INFO', 'WARN', 'ERROR')
    $flags = @(%s)

    $lastWord = ''
    if ($commandAst.CommandElements.Count -gt 1) {
        $lastWord = $commandAst.CommandElements[-2].ToString()
        if ($wordToComplete -eq '') {
            $lastWord = $commandAst.CommandElements[-1].ToString()
        }
    }

    $values = switch ($lastWord) {
        '-action'     { $actions }
        '-kinds'      { $kinds }
        '-loglevel'   { $logLevels }
        '-logformat'  { @('csv', 'json') }
        '-output'     { @('text', 'json') }
        '-completion' { @('bash', 'powershell') }
        default       { $null }
    }

    if ($null -ne $values) {
        $values | Where-Object { $_ -like "$wordToComplete*" } | ForEach-Object {
            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)
        }
        return
    }

    $flags | Where-Object { $_ -like "$wordToComplete*" } | ForEach-Object {
        [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterName', $_)
    }
}
`, quote(validActions), quote(skippedItemKinds), quote(completionFlags))
}
