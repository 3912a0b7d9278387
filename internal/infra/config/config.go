package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "./walletbridge.yaml"

// Config is the top-level application configuration.
type Config struct {
	DApp     DAppConfig     `yaml:"dapp"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Provider ProviderConfig `yaml:"provider"`
	Browser  BrowserConfig  `yaml:"browser"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Audit    AuditConfig    `yaml:"audit"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	// Includes lists extra YAML files (globs allowed) applied before this
	// one. Prompt allow/deny lists add up across files.
	Includes []string `yaml:"includes,omitempty"`
}

// DAppConfig describes the website loaded into the browser view.
type DAppConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"` // shown in the connect prompt
}

// WalletConfig holds the fixed values the bridge answers with.
type WalletConfig struct {
	Address           string `yaml:"address"`
	ChainID           string `yaml:"chain_id"`
	NetworkVersion    string `yaml:"network_version"`
	PlaceholderTxHash string `yaml:"placeholder_tx_hash"`
}

// ProviderConfig controls the script injected into the page.
type ProviderConfig struct {
	// Binding is the global function the page calls to post a message.
	Binding string `yaml:"binding"`
	// RequestTimeout rejects page-side calls that get no response in time.
	// Zero keeps the unbounded wait.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// BrowserConfig holds chromedp settings.
type BrowserConfig struct {
	// RemoteURL is a CDP WebSocket endpoint; empty launches a local Chrome.
	RemoteURL string        `yaml:"remote_url"`
	Headless  bool          `yaml:"headless"`
	Timeout   time.Duration `yaml:"timeout"` // per-action timeout
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around script injection.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PromptConfig selects how confirmation prompts are answered.
type PromptConfig struct {
	Mode          string   `yaml:"mode"` // "tui", "approve", "reject"
	AlwaysApprove []string `yaml:"always_approve,omitempty"`
	AlwaysDeny    []string `yaml:"always_deny,omitempty"`
}

// BridgeConfig holds host bridge limits.
type BridgeConfig struct {
	// PromptRatePerMin caps prompts per minute; 0 disables the limit.
	PromptRatePerMin int `yaml:"prompt_rate_per_min"`
	PromptBurst      int `yaml:"prompt_burst"`
	// ReportSchedule logs the outcome counts on a cron expression or
	// interval ("@hourly", "10m"). Empty disables it.
	ReportSchedule string `yaml:"report_schedule"`
}

// AuditConfig controls the wallet decision log.
type AuditConfig struct {
	Path    string        `yaml:"path"`    // empty disables auditing
	Backend string        `yaml:"backend"` // "file" (JSONL) or "sqlite"
	MaxAge  time.Duration `yaml:"max_age"`
	// MaxSize accepts sizes such as "10MB"; file backend only.
	MaxSize string `yaml:"max_size"`
	// RetentionSchedule re-applies the retention policy while running.
	RetentionSchedule string `yaml:"retention_schedule"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		DApp: DAppConfig{
			URL:  "https://app.uniswap.org",
			Name: "Uniswap",
		},
		Wallet: WalletConfig{
			Address:           "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
			ChainID:           "0x1",
			NetworkVersion:    "1",
			PlaceholderTxHash: "0x123...789",
		},
		Provider: ProviderConfig{
			Binding: "__walletBridgePost",
		},
		Browser: BrowserConfig{
			Headless: false,
			Timeout:  30 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Prompt: PromptConfig{
			Mode: "tui",
		},
		Audit: AuditConfig{
			Backend: "file",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env overrides, and validates.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	layers, err := configLayers(absPath, data)
	if err != nil {
		return nil, err
	}
	if err := applyLayers(cfg, layers); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps WALLETBRIDGE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WALLETBRIDGE_DAPP_URL"); v != "" {
		cfg.DApp.URL = v
	}
	if v := os.Getenv("WALLETBRIDGE_DAPP_NAME"); v != "" {
		cfg.DApp.Name = v
	}
	if v := os.Getenv("WALLETBRIDGE_WALLET_ADDRESS"); v != "" {
		cfg.Wallet.Address = v
	}
	if v := os.Getenv("WALLETBRIDGE_WALLET_CHAIN_ID"); v != "" {
		cfg.Wallet.ChainID = v
	}
	if v := os.Getenv("WALLETBRIDGE_PROVIDER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Provider.RequestTimeout = d
		}
	}
	if v := os.Getenv("WALLETBRIDGE_BROWSER_REMOTE_URL"); v != "" {
		cfg.Browser.RemoteURL = v
	}
	if v := os.Getenv("WALLETBRIDGE_BROWSER_HEADLESS"); v != "" {
		cfg.Browser.Headless = v == "true"
	}
	if v := os.Getenv("WALLETBRIDGE_BROWSER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Browser.Timeout = d
		}
	}
	if v := os.Getenv("WALLETBRIDGE_PROMPT_MODE"); v != "" {
		cfg.Prompt.Mode = v
	}
	if v := os.Getenv("WALLETBRIDGE_PROMPT_ALWAYS_APPROVE"); v != "" {
		cfg.Prompt.AlwaysApprove = splitList(v)
	}
	if v := os.Getenv("WALLETBRIDGE_PROMPT_ALWAYS_DENY"); v != "" {
		cfg.Prompt.AlwaysDeny = splitList(v)
	}
	if v := os.Getenv("WALLETBRIDGE_BRIDGE_PROMPT_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Bridge.PromptRatePerMin = n
		}
	}
	if v := os.Getenv("WALLETBRIDGE_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("WALLETBRIDGE_AUDIT_BACKEND"); v != "" {
		cfg.Audit.Backend = v
	}
	if v := os.Getenv("WALLETBRIDGE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WALLETBRIDGE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WALLETBRIDGE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WALLETBRIDGE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
