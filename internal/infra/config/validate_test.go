package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.DApp.URL = "app.uniswap.org" }, "dapp.url"},
		{"ftp url", func(c *Config) { c.DApp.URL = "ftp://example.org" }, "scheme"},
		{"short address", func(c *Config) { c.Wallet.Address = "0x1234" }, "wallet.address"},
		{"decimal chain id", func(c *Config) { c.Wallet.ChainID = "1" }, "wallet.chain_id"},
		{"empty placeholder", func(c *Config) { c.Wallet.PlaceholderTxHash = "" }, "placeholder_tx_hash"},
		{"binding injection", func(c *Config) { c.Provider.Binding = "post);alert(1" }, "provider.binding"},
		{"negative request timeout", func(c *Config) { c.Provider.RequestTimeout = -time.Second }, "request_timeout"},
		{"zero browser timeout", func(c *Config) { c.Browser.Timeout = 0 }, "browser.timeout"},
		{"bad remote url", func(c *Config) { c.Browser.RemoteURL = "file:///tmp/x" }, "remote_url"},
		{"ws remote url", func(c *Config) { c.Browser.RemoteURL = "ws://127.0.0.1:9222/devtools/browser/abc" }, ""},
		{"unknown prompt mode", func(c *Config) { c.Prompt.Mode = "maybe" }, "prompt.mode"},
		{"approve and deny overlap", func(c *Config) {
			c.Prompt.AlwaysApprove = []string{"eth_accounts"}
			c.Prompt.AlwaysDeny = []string{"eth_accounts"}
		}, "both"},
		{"negative rate", func(c *Config) { c.Bridge.PromptRatePerMin = -1 }, "prompt_rate_per_min"},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "postgres" }, "audit.backend"},
		{"negative audit age", func(c *Config) { c.Audit.MaxAge = -time.Hour }, "audit.max_age"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"bad exporter", func(c *Config) {
			c.Tracer.Enabled = true
			c.Tracer.Exporter = "jaeger"
		}, "tracer.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.Address = ""
	cfg.Prompt.Mode = ""
	cfg.Browser.Timeout = 0

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}
