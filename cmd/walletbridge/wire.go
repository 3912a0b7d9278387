package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"walletbridge/internal/adapter/browser"
	"walletbridge/internal/adapter/pagesim"
	"walletbridge/internal/adapter/provider"
	"walletbridge/internal/adapter/tui/confirm"
	"walletbridge/internal/domain"
	"walletbridge/internal/infra/config"
	"walletbridge/internal/security"
	"walletbridge/internal/usecase"
	"walletbridge/internal/usecase/bridge"
	"walletbridge/internal/usecase/scheduling"
)

// buildPrompter layers the allow/deny lists over the configured mode.
func buildPrompter(cfg config.PromptConfig, log *slog.Logger) *usecase.PolicyPrompter {
	var next domain.Prompter
	switch cfg.Mode {
	case "approve":
		next = usecase.StaticPrompter(true)
	case "reject":
		next = usecase.StaticPrompter(false)
	default:
		next = confirm.NewPrompter(log)
	}
	return usecase.NewPolicyPrompter(cfg.AlwaysApprove, cfg.AlwaysDeny, next)
}

// auditLog is what the command needs from either audit backend.
type auditLog interface {
	domain.AuditLogger
	SetRetention(security.RetentionPolicy)
	EnforceRetention(ctx context.Context) (int, error)
}

// openAudit opens the wallet decision log and trims it once. A nil log
// means auditing is off. A log that cannot be trimmed at startup is closed
// and reported, so a configured retention policy is never silently ignored.
func openAudit(ctx context.Context, cfg config.AuditConfig, log *slog.Logger) (auditLog, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	maxSize, err := security.ParseRetentionMaxSize(cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	var audit auditLog
	switch cfg.Backend {
	case "sqlite":
		audit, err = security.NewSQLiteAuditLogger(cfg.Path)
	default:
		audit, err = security.NewFileAuditLogger(cfg.Path)
	}
	if err != nil {
		return nil, err
	}
	if cfg.MaxAge > 0 || maxSize > 0 {
		audit.SetRetention(security.RetentionPolicy{MaxAge: cfg.MaxAge, MaxSize: maxSize})
		if err := enforceRetention(ctx, audit, log); err != nil {
			_ = audit.Close()
			return nil, err
		}
	}
	return audit, nil
}

func enforceRetention(ctx context.Context, audit auditLog, log *slog.Logger) error {
	removed, err := audit.EnforceRetention(ctx)
	if err != nil {
		return fmt.Errorf("audit retention: %w", err)
	}
	if removed > 0 {
		log.Info("audit log trimmed", "removed", removed)
	}
	return nil
}

// startScheduler runs audit retention and the periodic session report while
// the page is open. It returns nil when nothing is scheduled.
func startScheduler(ctx context.Context, cfg *config.Config, audit auditLog,
	session *usecase.Session, log *slog.Logger) (*scheduling.Scheduler, error) {
	s := scheduling.NewScheduler(log)
	s.RegisterAction(scheduling.ActionSessionReport, func(context.Context) error {
		log.Info("session report", session.LogAttrs()...)
		return nil
	})

	tasks := 0
	if cfg.Bridge.ReportSchedule != "" {
		if err := s.AddTask(scheduling.ScheduledTask{
			Name:     "session-report",
			Schedule: cfg.Bridge.ReportSchedule,
			Action:   scheduling.ActionSessionReport,
		}); err != nil {
			return nil, err
		}
		tasks++
	}
	if audit != nil && cfg.Audit.RetentionSchedule != "" {
		s.RegisterAction(scheduling.ActionAuditRetention, func(ctx context.Context) error {
			return enforceRetention(ctx, audit, log)
		})
		if err := s.AddTask(scheduling.ScheduledTask{
			Name:     "audit-retention",
			Schedule: cfg.Audit.RetentionSchedule,
			Action:   scheduling.ActionAuditRetention,
		}); err != nil {
			return nil, err
		}
		tasks++
	}
	if tasks == 0 {
		return nil, nil
	}
	s.Start(ctx)
	return s, nil
}

func newBridge(cfg *config.Config, prompter domain.Prompter, responder domain.Responder,
	session *usecase.Session, audit auditLog, log *slog.Logger) (*bridge.Bridge, error) {
	opts := []bridge.Option{
		bridge.WithRecorder(session),
		bridge.WithSessionID(session.ID),
	}
	if audit != nil {
		opts = append(opts, bridge.WithAuditLog(audit))
	}
	return bridge.New(bridge.Config{
		Address:           cfg.Wallet.Address,
		PlaceholderTxHash: cfg.Wallet.PlaceholderTxHash,
		DAppName:          cfg.DApp.Name,
		PromptRatePerMin:  cfg.Bridge.PromptRatePerMin,
		PromptBurst:       cfg.Bridge.PromptBurst,
	}, prompter, responder, log, opts...)
}

// lateHandler forwards to a bridge that is wired after the page exists.
type lateHandler struct {
	b atomic.Pointer[bridge.Bridge]
}

func (h *lateHandler) handle(ctx context.Context, raw string) {
	b := h.b.Load()
	if b == nil {
		return
	}
	_ = b.HandleMessage(ctx, raw)
}

// runBrowser hosts the dApp in Chrome until the tab closes or ctx ends.
func runBrowser(ctx context.Context, cfg *config.Config, script string, prompter domain.Prompter,
	session *usecase.Session, audit auditLog, log *slog.Logger) error {
	logStartup(log, cfg, "browser")

	h := &lateHandler{}
	page, err := browser.NewPage(browser.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Headless:  cfg.Browser.Headless,
		Timeout:   cfg.Browser.Timeout,
		Binding:   cfg.Provider.Binding,
	}, h.handle, log)
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer page.Close()

	injector := browser.NewBreakerInjector(page, browser.BreakerConfig{
		MaxFailures: cfg.Browser.Breaker.MaxFailures,
		Timeout:     cfg.Browser.Breaker.Timeout,
	}, log)
	b, err := newBridge(cfg, prompter, provider.NewResponder(injector), session, audit, log)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	// No document has loaded yet, so nothing can have posted.
	h.b.Store(b)

	if err := page.Install(ctx, script); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if err := page.Navigate(ctx, cfg.DApp.URL); err != nil {
		return fmt.Errorf("browser: %w", err)
	}

	err = page.Wait(ctx)
	if errors.Is(err, domain.ErrPageClosed) {
		log.Info("browser window closed")
		return nil
	}
	return err
}

// simulationPage is a minimal dApp: it listens for the provider events and
// logs them the way a real page would.
const simulationPage = `
window.ethereum.on('connect', function (info) {
  console.log('dapp: connect', info.chainId);
});
window.ethereum.on('accountsChanged', function (accounts) {
  console.log('dapp: accountsChanged', accounts);
});
`

// runSimulation runs the connect flow in an embedded page: the provider is
// installed, load fires, and the account prompt goes to the configured
// prompter. It returns once the page has seen an outcome or ctx ends.
func runSimulation(ctx context.Context, cfg *config.Config, script string, prompter domain.Prompter,
	session *usecase.Session, audit auditLog, log *slog.Logger) error {
	logStartup(log, cfg, "simulate")

	h := &lateHandler{}
	page, err := pagesim.New(pagesim.Options{Binding: cfg.Provider.Binding}, h.handle, log)
	if err != nil {
		return fmt.Errorf("pagesim: %w", err)
	}
	defer page.Close()

	b, err := newBridge(cfg, prompter, provider.NewResponder(page), session, audit, log)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	h.b.Store(b)

	if err := page.Inject(ctx, script); err != nil {
		return fmt.Errorf("pagesim: install provider: %w", err)
	}
	if err := page.Load(ctx, simulationPage); err != nil {
		return fmt.Errorf("pagesim: %w", err)
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	seen := 0
	for {
		// Outcomes are recorded after the page has settled, so the console
		// read below already holds the dApp's reaction.
		done := session.Stats().Handled > 0
		entries := page.Console()
		for _, e := range entries[seen:] {
			log.Info("page console", "level", e.Level, "message", e.Message)
		}
		seen = len(entries)
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
