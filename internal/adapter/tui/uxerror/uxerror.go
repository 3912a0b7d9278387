// Package uxerror translates fatal errors into short messages with recovery
// hints for the terminal.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"walletbridge/internal/adapter/tui/theme"
	"walletbridge/internal/domain"
	"walletbridge/internal/infra/config"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Browser Not Available"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text
}

// Render formats the error for stderr.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Sentinels first so errors.Is works through wrapping.
	{
		match: func(err error) bool {
			var ve *config.ValidationError
			return errors.As(err, &ve)
		},
		produce: func(err error) FriendlyError {
			var ve *config.ValidationError
			errors.As(err, &ve)
			return FriendlyError{
				Title:   "Invalid Configuration",
				Message: strings.Join(ve.Errors, "; "),
				Hints:   []string{"Fix walletbridge.yaml or the WALLETBRIDGE_* variables", "Run 'walletbridge doctor'"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: isErr(domain.ErrBrowserNotConn),
		produce: constantError("Browser Not Available", "Chrome could not be started or reached.",
			[]string{"Install Chrome or Chromium", "Set browser.remote_url to a running Chrome", "Try --simulate to run without a browser"}),
	},
	{
		match: isErr(domain.ErrInjectFailed),
		produce: constantError("Provider Injection Failed", "The wallet provider could not be installed in the page.",
			[]string{"Reload with a fresh browser profile", "Check that provider.binding is a plain identifier"}),
	},
	{
		match: isErr(domain.ErrPromptUnavailable),
		produce: constantError("Prompt Unavailable", "Wallet prompts cannot be shown in this terminal.",
			[]string{"Run from an interactive terminal", "Set prompt.mode to approve or reject"}),
	},
	{
		match: isErr(domain.ErrAuditWrite),
		produce: constantError("Audit Log Unwritable", "Wallet decisions could not be recorded.",
			[]string{"Check audit.path and its directory permissions"}),
	},
	// External errors only show up as text.
	{
		match:   containsAny("insecure permissions"),
		produce: constantError("Config File Permissions", "The config file is writable by others.", []string{"chmod 600 walletbridge.yaml"}),
	},
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the dApp or the browser.", []string{"Check your internet connection", "Verify dapp.url and browser.remote_url", "Run 'walletbridge doctor'"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "timed out"),
		produce: constantError("Timed Out", "The browser took too long to respond.", []string{"Increase browser.timeout", "Check that the dApp loads in a normal browser"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Run with WALLETBRIDGE_LOGGER_LEVEL=debug for more details"},
		Raw:     err.Error(),
	}
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny matches when the error text contains any of substrs,
// ignoring case.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
