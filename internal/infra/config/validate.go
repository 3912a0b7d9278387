package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	addressRe     = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexQuantRe    = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	jsIdentRe     = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)
	promptModes   = map[string]bool{"tui": true, "approve": true, "reject": true}
	logFormats    = map[string]bool{"text": true, "json": true}
	auditBackends = map[string]bool{"file": true, "sqlite": true}
	traceExports  = map[string]bool{"noop": true, "stdout": true, "": true}
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateDApp(cfg, ve)
	validateWallet(cfg, ve)
	validateProvider(cfg, ve)
	validateBrowser(cfg, ve)
	validatePrompt(cfg, ve)
	validateBridge(cfg, ve)
	validateAudit(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateDApp(cfg *Config, ve *ValidationError) {
	u, err := url.Parse(cfg.DApp.URL)
	if err != nil || u.Host == "" {
		ve.Add("dapp.url %q is not an absolute URL", cfg.DApp.URL)
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		ve.Add("dapp.url scheme must be http or https, got %q", u.Scheme)
	}
}

func validateWallet(cfg *Config, ve *ValidationError) {
	if !addressRe.MatchString(cfg.Wallet.Address) {
		ve.Add("wallet.address %q is not a 20-byte hex address", cfg.Wallet.Address)
	}
	if !hexQuantRe.MatchString(cfg.Wallet.ChainID) {
		ve.Add("wallet.chain_id %q must be a 0x-prefixed hex quantity", cfg.Wallet.ChainID)
	}
	if cfg.Wallet.NetworkVersion == "" {
		ve.Add("wallet.network_version is required")
	}
	if cfg.Wallet.PlaceholderTxHash == "" {
		ve.Add("wallet.placeholder_tx_hash is required")
	}
}

func validateProvider(cfg *Config, ve *ValidationError) {
	if !jsIdentRe.MatchString(cfg.Provider.Binding) {
		ve.Add("provider.binding %q is not a valid JavaScript identifier", cfg.Provider.Binding)
	}
	if cfg.Provider.RequestTimeout < 0 {
		ve.Add("provider.request_timeout must be >= 0")
	}
}

func validateBrowser(cfg *Config, ve *ValidationError) {
	if cfg.Browser.Timeout <= 0 {
		ve.Add("browser.timeout must be > 0")
	}
	if cfg.Browser.RemoteURL != "" {
		u, err := url.Parse(cfg.Browser.RemoteURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
			ve.Add("browser.remote_url %q must be a ws(s):// or http(s):// URL", cfg.Browser.RemoteURL)
		}
	}
	if cfg.Browser.Breaker.Timeout < 0 {
		ve.Add("browser.breaker.timeout must be >= 0")
	}
}

func validatePrompt(cfg *Config, ve *ValidationError) {
	if !promptModes[cfg.Prompt.Mode] {
		ve.Add("prompt.mode %q must be one of tui, approve, reject", cfg.Prompt.Mode)
	}
	deny := make(map[string]bool, len(cfg.Prompt.AlwaysDeny))
	for _, m := range cfg.Prompt.AlwaysDeny {
		deny[m] = true
	}
	for _, m := range cfg.Prompt.AlwaysApprove {
		if deny[m] {
			ve.Add("prompt: method %q is in both always_approve and always_deny", m)
		}
	}
}

func validateBridge(cfg *Config, ve *ValidationError) {
	if cfg.Bridge.PromptRatePerMin < 0 {
		ve.Add("bridge.prompt_rate_per_min must be >= 0")
	}
	if cfg.Bridge.PromptBurst < 0 {
		ve.Add("bridge.prompt_burst must be >= 0")
	}
}

func validateAudit(cfg *Config, ve *ValidationError) {
	if cfg.Audit.MaxAge < 0 {
		ve.Add("audit.max_age must be >= 0")
	}
	if !auditBackends[cfg.Audit.Backend] {
		ve.Add("audit.backend %q must be file or sqlite", cfg.Audit.Backend)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !logFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !traceExports[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is not supported", cfg.Tracer.Exporter)
	}
}
