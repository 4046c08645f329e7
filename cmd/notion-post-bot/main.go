package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"notion-post-bot/config"
	"notion-post-bot/gemini"
	"notion-post-bot/notify"
	"notion-post-bot/notion"
	"notion-post-bot/pipeline"
	"notion-post-bot/scraper"
	"notion-post-bot/selector"
	"notion-post-bot/twitter"
	"notion-post-bot/workflow"
)

const serviceName = "notion-post-bot"

func main() {
	os.Exit(run())
}

func run() int {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		return 1
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	slog.Info("config loaded", "path", configPath, "dry_run", cfg.DryRun)

	tracer, shutdownTracing, err := setupTracing(cfg.TraceStdout)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer shutdownTracing()

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout := cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner, metrics := buildRunner(cfg, logger, tracer)
	report, runErr := runner.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("failed to write metrics", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if runErr != nil {
		return 1
	}
	slog.Info("posted", "run_id", report.RunID, "url", report.Receipt.URL())
	return 0
}

func buildRunner(cfg *config.Config, logger *slog.Logger, tracer trace.Tracer) (*pipeline.Runner, *pipeline.Metrics) {
	fetchTimeout := cfg.FetchTimeout()

	notionOpts := []notion.Option{
		notion.WithTimeout(fetchTimeout),
		notion.WithAPIVersion(cfg.NotionAPIVersion),
		notion.WithLogger(logger),
	}
	if cfg.ExpandBookmarks {
		notionOpts = append(notionOpts, notion.WithExpander(scraper.NewScraper(
			scraper.WithTimeout(fetchTimeout),
			scraper.WithLogger(logger),
		)))
	}
	source := pipeline.NewNotionSource(
		notion.NewClient(cfg.NotionAPIKey, notionOpts...),
		notion.Query{
			DatabaseID:     cfg.NotionDatabaseID,
			FilterProperty: cfg.NotionFilterProperty,
			SortProperty:   cfg.NotionSortProperty,
		},
		cfg.NotionTitleProperty,
	)

	generator := gemini.NewClient(
		cfg.GeminiAPIKey,
		gemini.WithModel(cfg.ModelName),
		gemini.WithTemperature(*cfg.Temperature),
		gemini.WithRequestsPerMinute(cfg.RequestsPerMinute),
		gemini.WithTimeout(2*fetchTimeout),
		gemini.WithLogger(logger),
	)
	wf := workflow.New(generator, cfg.Workflow(),
		workflow.WithPrompts(cfg.PromptTemplates()),
		workflow.WithLogger(logger),
		workflow.WithTracer(tracer),
	)

	var publisher pipeline.Publisher
	if cfg.DryRun {
		publisher = twitter.NewDryRun(logger)
	} else {
		publisher = twitter.NewClient(twitter.Credentials{
			APIKey:            cfg.TwitterAPIKey,
			APISecret:         cfg.TwitterAPISecret,
			AccessToken:       cfg.TwitterAccessToken,
			AccessTokenSecret: cfg.TwitterAccessTokenSecret,
		}, twitter.WithTimeout(fetchTimeout), twitter.WithLogger(logger))
	}

	metrics := pipeline.NewMetrics()
	opts := []pipeline.Option{
		pipeline.WithLookback(cfg.Lookback()),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
		pipeline.WithTracer(tracer),
	}

	if cfg.TelegramEnabled() {
		sender, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			// Notifications are optional; the run goes ahead without them.
			slog.Warn("telegram notifications disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithNotifier(notify.NewNotifier(sender, cfg.TelegramChatID, logger)))
		}
	}

	runner := pipeline.NewRunner(source, selector.New(cfg.Selector()), wf, publisher, opts...)
	return runner, metrics
}

// setupTracing returns a tracer that prints spans to stderr when enabled,
// and a no-op tracer otherwise.
func setupTracing(enabled bool) (trace.Tracer, func(), error) {
	if !enabled {
		return noop.NewTracerProvider().Tracer(serviceName), func() {}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
	return provider.Tracer(serviceName), shutdown, nil
}
