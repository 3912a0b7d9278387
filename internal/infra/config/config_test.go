package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.DApp.URL != "https://app.uniswap.org" {
		t.Errorf("DApp.URL = %q, want %q", cfg.DApp.URL, "https://app.uniswap.org")
	}
	if cfg.Wallet.Address != "0x742d35Cc6634C0532925a3b844Bc454e4438f44e" {
		t.Errorf("Wallet.Address = %q", cfg.Wallet.Address)
	}
	if cfg.Wallet.PlaceholderTxHash != "0x123...789" {
		t.Errorf("PlaceholderTxHash = %q, want %q", cfg.Wallet.PlaceholderTxHash, "0x123...789")
	}
	if cfg.Provider.RequestTimeout != 0 {
		t.Errorf("RequestTimeout = %v, want 0", cfg.Provider.RequestTimeout)
	}
	if cfg.Prompt.Mode != "tui" {
		t.Errorf("Prompt.Mode = %q, want %q", cfg.Prompt.Mode, "tui")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wallet.ChainID != "0x1" {
		t.Errorf("expected defaults, got ChainID=%q", cfg.Wallet.ChainID)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walletbridge.yaml")
	content := `
dapp:
  url: "https://app.sushi.com"
  name: "Sushi"
wallet:
  chain_id: "0x89"
  network_version: "137"
provider:
  request_timeout: 45s
browser:
  headless: true
  timeout: 10s
prompt:
  mode: approve
  always_deny: [eth_sendTransaction]
logger:
  level: "debug"
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DApp.Name != "Sushi" {
		t.Errorf("DApp.Name = %q, want %q", cfg.DApp.Name, "Sushi")
	}
	if cfg.Wallet.ChainID != "0x89" {
		t.Errorf("ChainID = %q, want %q", cfg.Wallet.ChainID, "0x89")
	}
	// Unset fields keep their defaults.
	if cfg.Wallet.Address != Defaults().Wallet.Address {
		t.Errorf("Address = %q, want default", cfg.Wallet.Address)
	}
	if cfg.Provider.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Provider.RequestTimeout)
	}
	if !cfg.Browser.Headless || cfg.Browser.Timeout != 10*time.Second {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if cfg.Prompt.Mode != "approve" || len(cfg.Prompt.AlwaysDeny) != 1 {
		t.Errorf("Prompt = %+v", cfg.Prompt)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dapp: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.yaml")
	if err := os.WriteFile(path, []byte("dapp:\n  name: x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected permission error for world-writable config")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WALLETBRIDGE_DAPP_URL", "https://app.example.org")
	t.Setenv("WALLETBRIDGE_BROWSER_HEADLESS", "true")
	t.Setenv("WALLETBRIDGE_BROWSER_TIMEOUT", "5s")
	t.Setenv("WALLETBRIDGE_PROVIDER_REQUEST_TIMEOUT", "2m")
	t.Setenv("WALLETBRIDGE_PROMPT_MODE", "reject")
	t.Setenv("WALLETBRIDGE_PROMPT_ALWAYS_APPROVE", "eth_accounts, eth_requestAccounts,")
	t.Setenv("WALLETBRIDGE_BRIDGE_PROMPT_RATE_PER_MIN", "30")
	t.Setenv("WALLETBRIDGE_LOGGER_LEVEL", "warn")
	t.Setenv("WALLETBRIDGE_TRACER_ENABLED", "true")
	t.Setenv("WALLETBRIDGE_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.DApp.URL != "https://app.example.org" {
		t.Errorf("DApp.URL = %q", cfg.DApp.URL)
	}
	if !cfg.Browser.Headless {
		t.Error("expected headless from env")
	}
	if cfg.Browser.Timeout != 5*time.Second {
		t.Errorf("Browser.Timeout = %v", cfg.Browser.Timeout)
	}
	if cfg.Provider.RequestTimeout != 2*time.Minute {
		t.Errorf("RequestTimeout = %v", cfg.Provider.RequestTimeout)
	}
	if cfg.Prompt.Mode != "reject" {
		t.Errorf("Prompt.Mode = %q", cfg.Prompt.Mode)
	}
	if len(cfg.Prompt.AlwaysApprove) != 2 || cfg.Prompt.AlwaysApprove[1] != "eth_requestAccounts" {
		t.Errorf("AlwaysApprove = %v", cfg.Prompt.AlwaysApprove)
	}
	if cfg.Bridge.PromptRatePerMin != 30 {
		t.Errorf("PromptRatePerMin = %d", cfg.Bridge.PromptRatePerMin)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestEnvOverridesIgnoreBadDurations(t *testing.T) {
	t.Setenv("WALLETBRIDGE_BROWSER_TIMEOUT", "soon")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Browser.Timeout != 30*time.Second {
		t.Errorf("Browser.Timeout = %v, want default", cfg.Browser.Timeout)
	}
}
