package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"walletbridge/internal/adapter/provider"
	"walletbridge/internal/adapter/tui/uxerror"
	"walletbridge/internal/infra/config"
	"walletbridge/internal/infra/logger"
	"walletbridge/internal/infra/tracer"
	"walletbridge/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "doctor":
			if err := runDoctor(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
		fmt.Fprintf(os.Stderr, "\nfatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`walletbridge - Load a dApp with an injected wallet provider

USAGE:
    walletbridge [FLAGS]
    walletbridge doctor [--config PATH]

COMMANDS:
    doctor      Run health checks on your setup

    (no command) - Open the dApp and answer wallet requests

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./walletbridge.yaml)
    --url URL          dApp URL (overrides dapp.url)
    --headless         Run Chrome without a window
    --simulate         Run the connect flow in an embedded page, no browser

CONFIGURATION:
    Config file: ./walletbridge.yaml (optional; defaults apply)
    Environment: WALLETBRIDGE_* variables override config

EXAMPLES:
    walletbridge                                  # Open the default dApp
    walletbridge --url https://app.uniswap.org    # Open a specific dApp
    walletbridge --simulate                       # Dry run of the connect prompt
    walletbridge doctor                           # Check Chrome and config`)
}

// cliFlags holds the command-line overrides.
type cliFlags struct {
	ConfigPath string
	URL        string
	Headless   bool
	Simulate   bool
}

// parseFlags reads flags from args (without the program name).
func parseFlags(args []string) (cliFlags, error) {
	flags := cliFlags{ConfigPath: configPathFromEnv()}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "--url":
			if i+1 >= len(args) {
				return flags, fmt.Errorf("%s requires a value", arg)
			}
			if arg == "--config" {
				flags.ConfigPath = args[i+1]
			} else {
				flags.URL = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--url="):
			flags.URL = strings.TrimPrefix(arg, "--url=")
		case arg == "--headless":
			flags.Headless = true
		case arg == "--simulate":
			flags.Simulate = true
		default:
			return flags, fmt.Errorf("unknown argument %q (see --help)", arg)
		}
	}
	return flags, nil
}

func configPathFromEnv() string {
	if p := os.Getenv("WALLETBRIDGE_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath
}

// applyFlags layers command-line overrides on top of the loaded config.
func applyFlags(cfg *config.Config, flags cliFlags) error {
	if flags.URL != "" {
		cfg.DApp.URL = flags.URL
	}
	if flags.Headless {
		cfg.Browser.Headless = true
	}
	return config.Validate(cfg)
}

func run(args []string) error {
	// 1. Config
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyFlags(cfg, flags); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Session, prompter, provider script
	session := usecase.NewSession(cfg.DApp.URL)
	log = logger.ForSession(log, session.ID)
	defer func() { log.Info("session finished", session.LogAttrs()...) }()

	audit, err := openAudit(ctx, cfg.Audit, log)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if audit != nil {
		defer audit.Close()
	}

	sched, err := startScheduler(ctx, cfg, audit, session, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if sched != nil {
		defer sched.Stop()
	}

	prompter := buildPrompter(cfg.Prompt, log)
	script, err := provider.Script(providerOptions(cfg))
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	// 5. Page
	if flags.Simulate {
		return runSimulation(ctx, cfg, script, prompter, session, audit, log)
	}
	err = runBrowser(ctx, cfg, script, prompter, session, audit, log)
	if errors.Is(err, context.Canceled) {
		log.Info("shutdown requested")
		return nil
	}
	return err
}

func providerOptions(cfg *config.Config) provider.Options {
	return provider.Options{
		Binding:        cfg.Provider.Binding,
		Address:        cfg.Wallet.Address,
		ChainID:        cfg.Wallet.ChainID,
		NetworkVersion: cfg.Wallet.NetworkVersion,
		RequestTimeout: cfg.Provider.RequestTimeout,
	}
}

// logStartup prints the effective settings once.
func logStartup(log *slog.Logger, cfg *config.Config, mode string) {
	log.Info("walletbridge starting",
		"mode", mode,
		"url", cfg.DApp.URL,
		"address", cfg.Wallet.Address,
		"chain_id", cfg.Wallet.ChainID,
		"prompt_mode", cfg.Prompt.Mode,
	)
}
