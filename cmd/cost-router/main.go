package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/config"
	"github.com/tributary-ai/llm-cost-router/internal/health"
	"github.com/tributary-ai/llm-cost-router/internal/ledger"
	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/providers"
	"github.com/tributary-ai/llm-cost-router/internal/providers/anthropic"
	"github.com/tributary-ai/llm-cost-router/internal/providers/local"
	"github.com/tributary-ai/llm-cost-router/internal/providers/openai"
	"github.com/tributary-ai/llm-cost-router/internal/routing"
	"github.com/tributary-ai/llm-cost-router/internal/server"
)

// Application wires the routing core and the HTTP gateway together.
type Application struct {
	config  *config.Config
	server  *server.Server
	prober  *health.Prober
	tracker *health.Tracker
	logger  *logrus.Logger
}

func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	cat, err := catalog.NewCatalog(cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider catalog: %w", err)
	}

	registry := providers.NewRegistry(logger)
	probeTargets, err := registerProviders(registry, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	tracker := health.NewTracker(health.Config{
		FailureThreshold: cfg.Health.FailureThreshold,
		Cooldown:         cfg.Health.Cooldown,
	}, logger)
	costs := ledger.NewLedger(cat, logger)
	recorder := observe.NewRecorder(cfg.Observability, logger)

	selector := routing.NewSelector(cat, registry, tracker, costs, cfg.Routing.Weights, logger)
	executor := routing.NewExecutor(registry, tracker, costs, recorder, cfg.Routing.Executor, logger)
	orchestrator := routing.NewOrchestrator(selector, executor, recorder, logger)

	srv, err := server.NewServer(orchestrator, cat, tracker, costs, recorder, cfg.Server, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	app := &Application{
		config:  cfg,
		server:  srv,
		tracker: tracker,
		logger:  logger,
	}

	if cfg.Health.ProbeEnabled && len(probeTargets) > 0 {
		app.prober = health.NewProber(tracker, probeTargets, cfg.Health.ProbeInterval, cfg.Health.ProbeTimeout, logger)
	}

	return app, nil
}

// Run blocks until a shutdown signal arrives or the server fails.
func (app *Application) Run() error {
	app.logger.Info("Starting LLM cost router")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if app.prober != nil {
		go app.prober.Run(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	app.logger.Info("Starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProviders registers every backend with a usable configuration.
// Paid backends without credentials are skipped, which the selector later
// reports as "missing credential".
func registerProviders(registry *providers.Registry, cfg *config.Config, logger *logrus.Logger) ([]health.Probe, error) {
	var targets []health.Probe

	if cfg.Providers.Local != nil {
		p := local.NewLocalProvider(cfg.Providers.Local, logger)
		if err := registry.Register(p); err != nil {
			return nil, err
		}
		targets = append(targets, p)
		logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"base_url": cfg.Providers.Local.BaseURL,
		}).Info("Local provider registered")
	}

	if cfg.Providers.OpenAI != nil && cfg.Providers.OpenAI.APIKey != "" {
		p := openai.NewOpenAIProvider(cfg.Providers.OpenAI, logger)
		if err := registry.Register(p); err != nil {
			return nil, err
		}
		targets = append(targets, p)
		logger.WithField("provider", "openai").Info("OpenAI provider registered")
	}

	if cfg.Providers.Anthropic != nil && cfg.Providers.Anthropic.APIKey != "" {
		p := anthropic.NewAnthropicProvider(cfg.Providers.Anthropic, logger)
		if err := registry.Register(p); err != nil {
			return nil, err
		}
		targets = append(targets, p)
		logger.WithField("provider", "anthropic").Info("Anthropic provider registered")
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no providers were registered - check your configuration and API keys")
	}

	logger.WithField("count", len(targets)).Info("Provider registration completed")
	return targets, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY         OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY      Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  OLLAMA_BASE_URL        Local runner base URL (default: http://localhost:11434)\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_PORT        Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_LOG_LEVEL   Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_LOG_FORMAT  Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY=sk-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *version {
		fmt.Println("LLM Cost Router v1.0.0")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
