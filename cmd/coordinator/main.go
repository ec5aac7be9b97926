// Package main is the entry point for the flash-loan arbitrage coordinator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flasharb/business/api"
	apiDI "github.com/fd1az/flasharb/business/api/di"
	"github.com/fd1az/flasharb/business/arbitrage"
	arbitrageDI "github.com/fd1az/flasharb/business/arbitrage/di"
	"github.com/fd1az/flasharb/business/autotrade"
	autotradeDI "github.com/fd1az/flasharb/business/autotrade/di"
	"github.com/fd1az/flasharb/business/blockchain"
	blockchainDI "github.com/fd1az/flasharb/business/blockchain/di"
	"github.com/fd1az/flasharb/business/execution"
	"github.com/fd1az/flasharb/business/persistence"
	persistenceDI "github.com/fd1az/flasharb/business/persistence/di"
	"github.com/fd1az/flasharb/business/pricing"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/health"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/metrics"
	"github.com/fd1az/flasharb/internal/monolith"
	"github.com/fd1az/flasharb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flasharb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.TUIMode = tuiMode

	// Logs go to stderr only in CLI mode; the dashboard owns the terminal otherwise.
	var log *logger.Logger
	if tuiMode {
		log = logger.Discard()
	} else {
		log = logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
		log.Info(ctx, "starting coordinator",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	stopTelemetry, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(context.Background(), "close resources", "error", err)
		}
	}()

	var program *tea.Program
	if tuiMode {
		program = ui.NewProgram()
		mono.Container().Register("tuiProgram", program)
	} else {
		mono.Container().Register("tuiProgram", nil)
	}

	modules := []monolith.Module{
		&blockchain.Module{},  // eth client, gas oracle
		&pricing.Module{},     // quote sources and aggregator
		&persistence.Module{}, // must precede arbitrage and execution
		&arbitrage.Module{},
		&execution.Module{},
		&autotrade.Module{},
		&api.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	healthServer := newHealthServer(cfg, mono.Services(), log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Stop(shutdownCtx)
	}()

	if !tuiMode {
		log.Info(ctx, "all modules started")
		return serve(ctx, mono.Services(), nil)
	}
	return runTUI(ctx, mono.Services(), program)
}

// serve runs the long-lived loops until ctx is done or one of them fails.
func serve(ctx context.Context, sr di.ServiceRegistry, program *tea.Program) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return arbitrageDI.GetScanner(sr).Run(ctx) })
	g.Go(func() error { return autotradeDI.GetScheduler(sr).Run(ctx) })
	g.Go(func() error { return apiDI.GetServer(sr).Run(ctx) })

	if program != nil {
		g.Go(func() error {
			pumpActors(ctx, sr, program)
			return nil
		})
	}

	return g.Wait()
}

func runTUI(ctx context.Context, sr di.ServiceRegistry, program *tea.Program) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		err := serve(ctx, sr, program)
		if err != nil {
			program.Send(ui.ErrorMsg{Error: err})
		}
		errCh <- err
	}()

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if err := ui.Run(program); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Quitting the dashboard stops the loops.
	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pumpActors(ctx context.Context, sr di.ServiceRegistry, program *tea.Program) {
	scheduler := autotradeDI.GetScheduler(sr)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			program.Send(ui.ActorsMsg{Actors: scheduler.Statuses()})
		}
	}
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	provider := apm.ParseProvider(cfg.Telemetry.TraceProvider)
	traceProvider := apm.NewTraceProvider(log, apm.WithProvider(provider, apm.Endpoint{
		ServiceName: cfg.Telemetry.ServiceName,
		URL:         cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}))
	log.Info(ctx, "tracing initialized", "provider", provider, "endpoint", cfg.Telemetry.OTLPEndpoint)

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{
			Provider: metrics.PrometheusProvider,
		}),
	}
	if provider == apm.OTLPGRPCProvider && cfg.Telemetry.OTLPEndpoint != "" {
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.OTLPCollector(cfg.Telemetry.OTLPEndpoint, apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)),
		))
	}

	meterProvider, err := metrics.NewMetricProvider(metricOpts...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	promServer := metrics.NewPrometheusServer(metrics.WithPort(strconv.Itoa(port)))
	go func() {
		if err := promServer.Start(); err != nil {
			log.Warn(ctx, "prometheus server stopped", "error", err)
		}
	}()
	log.Info(ctx, "prometheus metrics server started", "port", port)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = promServer.Stop(shutdownCtx)
		_ = meterProvider.Shutdown(shutdownCtx)
		if err := traceProvider.Stop(); err != nil {
			log.Warn(shutdownCtx, "stop trace provider", "error", err)
		}
	}, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newHealthServer(cfg *config.Config, sr di.ServiceRegistry, log logger.LoggerInterface) *health.Server {
	s := health.NewServer(cfg.Health.Port, version, log)

	repo := persistenceDI.GetRepository(sr)
	s.RegisterCheck("storage", func(ctx context.Context) (bool, string) {
		if err := repo.Ping(ctx); err != nil {
			return false, err.Error()
		}
		return true, cfg.Storage.Driver
	})

	if p, ok := blockchainDI.GetGasOracle(sr).(pinger); ok {
		s.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
			if err := p.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, "ok"
		})
	}

	scanner := arbitrageDI.GetScanner(sr)
	staleAfter := 3 * cfg.Scanner.Interval
	s.RegisterCheck("scanner", func(ctx context.Context) (bool, string) {
		rep, ok := scanner.LastScan()
		if !ok {
			return false, "no scan yet"
		}
		if age := time.Since(rep.StartedAt); age > staleAfter {
			return false, fmt.Sprintf("last scan %s ago", age.Round(time.Second))
		}
		return true, fmt.Sprintf("%d opportunities", len(rep.Opportunities))
	})

	return s
}
