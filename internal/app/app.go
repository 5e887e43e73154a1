package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"spendtrend/internal/config"
	"spendtrend/internal/exporter"
	"spendtrend/internal/files"
	"spendtrend/internal/infrastructure"
	"spendtrend/internal/ingest"
	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
	transport "spendtrend/internal/transport/http"
)

// Application holds the wired components of one process
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Pipeline      *pipeline.Pipeline
	Loader        *ingest.Loader
	Paths         *config.Paths
	Store         *transport.ResultStore
	Server        *http.Server

	listener net.Listener
}

// Report is the outcome of Analyze
type Report struct {
	Input  string
	Output *pipeline.Output
	Files  exporter.Files
}

// Option configures an Application
type Option func(*Application)

// WithLogger replaces the process logger, mainly for tests
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.Logger = logger }
}

// NewApplication builds every component from cfg
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	a := &Application{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Tracing), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	if a.Metrics, err = infrastructure.NewPipelineMetrics(providers.Meter); err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if a.Pipeline, err = pipeline.New(cfg.Analysis, a.Logger, a.Metrics); err != nil {
		return nil, err
	}
	if a.Paths, err = cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	a.Loader = ingest.NewLoader(a.Logger)
	a.Store = transport.NewResultStore()

	a.Logger.Info("application initialized",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("output_dir", a.Paths.OutputDir))
	return a, nil
}

func (a *Application) load(ctx context.Context, input string) (*ingest.Result, error) {
	if input == "" {
		return nil, fmt.Errorf("no input file: set paths.input or pass a file argument")
	}
	return a.Loader.Load(ctx, input)
}

// Analyze loads input, runs the full pipeline, exports every artifact and
// stores the output for the API
func (a *Application) Analyze(ctx context.Context, input string, opts ...exporter.Option) (*Report, error) {
	ctx = infrastructure.EnsureTraceID(ctx)

	if err := files.ValidateOutputDirectory(a.Paths.OutputDir); err != nil {
		return nil, err
	}
	loaded, err := a.load(ctx, input)
	if err != nil {
		return nil, err
	}
	out, err := a.Pipeline.Run(ctx, loaded.Table)
	if err != nil {
		return nil, err
	}
	out.Issues = append(append([]panel.Issue(nil), loaded.Issues...), out.Issues...)

	written, err := exporter.New(a.Paths, a.Logger, opts...).ExportAll(ctx, out)
	if err != nil {
		return nil, err
	}
	a.Store.Set(out)

	return &Report{Input: loaded.Source, Output: out, Files: written}, nil
}

// Diagnose loads input and runs only the read-only diagnosis steps
func (a *Application) Diagnose(ctx context.Context, input string) (*pipeline.Output, error) {
	ctx = infrastructure.EnsureTraceID(ctx)

	loaded, err := a.load(ctx, input)
	if err != nil {
		return nil, err
	}
	out, err := a.Pipeline.Diagnose(ctx, loaded.Table)
	if err != nil {
		return nil, err
	}
	out.Issues = append(append([]panel.Issue(nil), loaded.Issues...), out.Issues...)
	return out, nil
}

// createServer builds the HTTP server around the API router
func (a *Application) createServer() error {
	router, err := transport.NewRouter(transport.RouterDeps{
		Store:          a.Store,
		Server:         a.Config.Server,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		MetricsHandler: a.OTelProviders.PrometheusHTTP,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
	return nil
}

// Start binds the listener and serves in the background. A serve failure
// calls cancel so the caller's wait returns.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	if err := a.createServer(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "server started", slog.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address once Start has run
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop shuts down the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Serve runs an analysis of input when one is given, then serves the API
// until ctx is canceled. A failed analysis is logged and the API keeps
// answering 503 for results.
func (a *Application) Serve(ctx context.Context, input string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	if input != "" {
		start := time.Now()
		if report, err := a.Analyze(ctx, input); err != nil {
			a.Logger.ErrorContext(ctx, "initial analysis failed", slog.String("error", err.Error()))
		} else {
			a.Logger.InfoContext(ctx, "initial analysis stored",
				slog.String("run_id", report.Output.RunID),
				slog.Duration("duration", time.Since(start)))
		}
	}

	<-ctx.Done()
	return a.Stop(ctx)
}
