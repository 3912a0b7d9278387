package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/term"
	"nhooyr.io/websocket"

	"walletbridge/internal/domain"
	"walletbridge/internal/infra/config"
	"walletbridge/internal/usecase"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Try to load config; some checks work without it.
	cfg, cfgErr := config.Load(flags.ConfigPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(flags.ConfigPath, cfgErr)},
		{Name: "Chrome", Fn: checkChrome},
		{Name: "dApp reachable", Fn: checkDApp},
		{Name: "Prompt terminal", Fn: checkPromptTerminal(term.IsTerminal(int(os.Stdin.Fd())))},
	}

	fmt.Println("walletbridge doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports on the config file. A missing file only warns
// because defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Fix %s or the WALLETBRIDGE_* variables", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// chromeBinaries are the names looked up on PATH for a local launch.
var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// checkChrome verifies a browser is available: a local binary, or a remote
// DevTools endpoint that accepts connections.
func checkChrome(cfg *config.Config) CheckResult {
	if cfg != nil && cfg.Browser.RemoteURL != "" {
		return checkRemoteDevTools(cfg.Browser.RemoteURL)
	}

	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("found %s at %s", name, path),
			}
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: "Chrome/Chromium not found",
		Fix:     "Install Chrome or Chromium, or set browser.remote_url (--simulate needs neither)",
	}
}

// checkRemoteDevTools opens a DevTools session on ws(s) endpoints, or asks
// an http(s) endpoint for its version.
func checkRemoteDevTools(raw string) CheckResult {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid remote_url %q", raw)}
	}
	fix := "Start Chrome with --remote-debugging-port or fix browser.remote_url"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch u.Scheme {
	case "ws", "wss":
		conn, _, err := websocket.Dial(ctx, raw, nil)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("DevTools handshake with %s failed: %v", u.Host, err),
				Fix:     fix,
			}
		}
		conn.Close(websocket.StatusNormalClosure, "doctor")
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("DevTools endpoint at %s accepted a session", u.Host)}
	default:
		versionURL := u.JoinPath("/json/version").String()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: err.Error()}
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("remote browser at %s unreachable: %v", u.Host, err), Fix: fix}
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s answered HTTP %d", versionURL, resp.StatusCode), Fix: fix}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("remote browser at %s is answering", u.Host)}
	}
}

// checkDApp fetches the configured dApp URL.
func checkDApp(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: "cannot check, config not loaded",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.DApp.URL, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid dApp URL: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s unreachable: %v", cfg.DApp.URL, err),
			Fix:     "Check your network connection or dapp.url",
		}
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s answered HTTP %d", cfg.DApp.URL, resp.StatusCode),
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s answered HTTP %d", cfg.DApp.URL, resp.StatusCode)}
}

// promptsReachUser reports whether any wallet method would open a dialog.
func promptsReachUser(p *usecase.PolicyPrompter) bool {
	for _, m := range []string{domain.MethodRequestAccounts, domain.MethodAccounts, domain.MethodSendTransaction} {
		if p.NeedsUser(m) {
			return true
		}
	}
	return false
}

// checkPromptTerminal warns when terminal prompts are configured but stdin
// cannot show them.
func checkPromptTerminal(isTTY bool) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg != nil && cfg.Prompt.Mode != "tui" {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("prompt mode %q needs no terminal", cfg.Prompt.Mode),
			}
		}
		if cfg != nil && !promptsReachUser(buildPrompter(cfg.Prompt, nil)) {
			return CheckResult{
				Status:  StatusPass,
				Message: "every wallet method is decided by the allow/deny lists",
			}
		}
		if !isTTY {
			return CheckResult{
				Status:  StatusWarn,
				Message: "stdin is not a terminal; wallet prompts cannot be answered",
				Fix:     "Run from a terminal or set prompt.mode to approve/reject",
			}
		}
		return CheckResult{Status: StatusPass, Message: "interactive terminal available"}
	}
}
