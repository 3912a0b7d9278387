package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"walletbridge/internal/adapter/provider"
	"walletbridge/internal/domain"
	"walletbridge/internal/infra/config"
	"walletbridge/internal/usecase"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    cliFlags
		wantErr bool
	}{
		{"defaults", nil, cliFlags{ConfigPath: config.DefaultPath}, false},
		{"separate values", []string{"--config", "a.yaml", "--url", "https://x.test"},
			cliFlags{ConfigPath: "a.yaml", URL: "https://x.test"}, false},
		{"equals form", []string{"--config=b.yaml", "--url=https://y.test", "--headless", "--simulate"},
			cliFlags{ConfigPath: "b.yaml", URL: "https://y.test", Headless: true, Simulate: true}, false},
		{"missing value", []string{"--url"}, cliFlags{}, true},
		{"unknown", []string{"--provider", "x"}, cliFlags{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WALLETBRIDGE_CONFIG", "")
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlagsConfigFromEnv(t *testing.T) {
	t.Setenv("WALLETBRIDGE_CONFIG", "/etc/walletbridge.yaml")
	got, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/walletbridge.yaml", got.ConfigPath)
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, applyFlags(cfg, cliFlags{URL: "https://app.example.org", Headless: true}))
	assert.Equal(t, "https://app.example.org", cfg.DApp.URL)
	assert.True(t, cfg.Browser.Headless)

	cfg = config.Defaults()
	assert.Error(t, applyFlags(cfg, cliFlags{URL: "not a url"}))
}

func TestBuildPrompterModes(t *testing.T) {
	ctx := context.Background()
	prompt := domain.Prompt{Method: domain.MethodSendTransaction}

	ok, err := buildPrompter(config.PromptConfig{Mode: "approve"}, nil).Confirm(ctx, prompt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = buildPrompter(config.PromptConfig{Mode: "reject"}, nil).Confirm(ctx, prompt)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = buildPrompter(config.PromptConfig{
		Mode:       "approve",
		AlwaysDeny: []string{domain.MethodSendTransaction},
	}, nil).Confirm(ctx, prompt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunSimulationConnects(t *testing.T) {
	cfg := config.Defaults()
	cfg.Prompt.Mode = "approve"

	script, err := provider.Script(providerOptions(cfg))
	require.NoError(t, err)

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := openAudit(context.Background(), config.AuditConfig{Path: auditPath}, quietLog())
	require.NoError(t, err)
	defer audit.Close()

	session := usecase.NewSession(cfg.DApp.URL)
	err = runSimulation(context.Background(), cfg, script,
		buildPrompter(cfg.Prompt, quietLog()), session, audit, quietLog())
	require.NoError(t, err)
	assert.Equal(t, 1, session.Stats().Approved)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"wallet_connect"`)
}

func TestOpenAudit(t *testing.T) {
	audit, err := openAudit(context.Background(), config.AuditConfig{}, quietLog())
	require.NoError(t, err)
	assert.Nil(t, audit)

	_, err = openAudit(context.Background(), config.AuditConfig{
		Path:    filepath.Join(t.TempDir(), "audit.jsonl"),
		MaxSize: "huge",
	}, quietLog())
	assert.Error(t, err)
}

func TestOpenAuditReportsStartupRetentionFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	audit, err := openAudit(ctx, config.AuditConfig{
		Path:    filepath.Join(t.TempDir(), "audit.db"),
		Backend: "sqlite",
		MaxAge:  time.Hour,
	}, quietLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit retention")
	assert.Nil(t, audit)
}

func TestCheckConfigFile(t *testing.T) {
	missing := checkConfigFile("/nonexistent/walletbridge.yaml", nil)(nil)
	assert.Equal(t, StatusWarn, missing.Status)

	bad := checkConfigFile("x.yaml", &config.ValidationError{Errors: []string{"bad"}})(nil)
	assert.Equal(t, StatusFail, bad.Status)
	assert.NotEmpty(t, bad.Fix)

	path := filepath.Join(t.TempDir(), "walletbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dapp:\n  name: Test\n"), 0o600))
	assert.Equal(t, StatusPass, checkConfigFile(path, nil)(nil).Status)
}

func TestCheckDApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.DApp.URL = srv.URL
	assert.Equal(t, StatusPass, checkDApp(cfg).Status)

	cfg.DApp.URL = srv.URL + "/gone"
	assert.Equal(t, StatusWarn, checkDApp(cfg).Status)

	assert.Equal(t, StatusWarn, checkDApp(nil).Status)
}

func TestCheckRemoteDevTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devtools/browser/abc":
			conn, err := websocket.Accept(w, r, nil)
			if err != nil {
				return
			}
			conn.Close(websocket.StatusNormalClosure, "")
		case "/json/version":
			w.Write([]byte(`{"Browser":"Chrome/140"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	host := srv.Listener.Addr().String()

	tests := []struct {
		name   string
		remote string
		want   CheckStatus
	}{
		{"websocket session", "ws://" + host + "/devtools/browser/abc", StatusPass},
		{"websocket refused", "ws://" + host + "/devtools/browser/missing", StatusFail},
		{"http version", "http://" + host, StatusPass},
		{"invalid", "::bad", StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Browser.RemoteURL = tt.remote
			res := checkChrome(cfg)
			assert.Equal(t, tt.want, res.Status, res.Message)
		})
	}
}

func TestStartScheduler(t *testing.T) {
	cfg := config.Defaults()
	session := usecase.NewSession(cfg.DApp.URL)

	s, err := startScheduler(context.Background(), cfg, nil, session, quietLog())
	require.NoError(t, err)
	assert.Nil(t, s, "nothing configured, nothing scheduled")

	cfg.Bridge.ReportSchedule = "not a schedule"
	_, err = startScheduler(context.Background(), cfg, nil, session, quietLog())
	assert.Error(t, err)

	cfg.Bridge.ReportSchedule = "@hourly"
	cfg.Audit.RetentionSchedule = "10m"
	audit, err := openAudit(context.Background(), config.AuditConfig{
		Path:    filepath.Join(t.TempDir(), "audit.db"),
		Backend: "sqlite",
		MaxAge:  time.Hour,
	}, quietLog())
	require.NoError(t, err)
	defer audit.Close()

	s, err = startScheduler(context.Background(), cfg, audit, session, quietLog())
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Stop()
}

func TestCheckPromptTerminal(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, StatusWarn, checkPromptTerminal(false)(cfg).Status)
	assert.Equal(t, StatusPass, checkPromptTerminal(true)(cfg).Status)

	cfg.Prompt.Mode = "reject"
	assert.Equal(t, StatusPass, checkPromptTerminal(false)(cfg).Status)

	// tui mode with every wallet method on a list never opens a dialog.
	cfg.Prompt.Mode = "tui"
	cfg.Prompt.AlwaysApprove = []string{"eth_requestAccounts", "eth_accounts"}
	cfg.Prompt.AlwaysDeny = []string{"eth_sendTransaction"}
	assert.Equal(t, StatusPass, checkPromptTerminal(false)(cfg).Status)

	cfg.Prompt.AlwaysDeny = nil
	assert.Equal(t, StatusWarn, checkPromptTerminal(false)(cfg).Status)
}
