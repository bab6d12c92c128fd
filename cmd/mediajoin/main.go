// Package main runs one mediajoin element wired to NATS subjects.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/c360/mediajoin/component"
	"github.com/c360/mediajoin/config"
	"github.com/c360/mediajoin/element"
	"github.com/c360/mediajoin/metric"
	"github.com/c360/mediajoin/natsclient"
	"github.com/c360/mediajoin/pkg/retry"
	"github.com/c360/mediajoin/route"
	"github.com/c360/mediajoin/subnet"
	"github.com/c360/mediajoin/transform"
	"github.com/c360/mediajoin/transport"
	"github.com/c360/mediajoin/view"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mediajoin"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := loadEnvFile(getEnv("MEDIAJOIN_ENV_FILE", ".env")); err != nil {
		return err
	}

	cliCfg, err := parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	switch {
	case cliCfg.ShowVersion:
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	case cliCfg.ShowHelp:
		return nil
	}

	cfg, err := loadConfig(cliCfg.ConfigPaths)
	if err != nil {
		return err
	}
	transforms := transform.DefaultRegistry()
	presets, err := transforms.LoadPresets(cfg.PluginDirs)
	if err != nil {
		return fmt.Errorf("load transform presets: %w", err)
	}

	if cliCfg.ListTransforms {
		for _, name := range transforms.Names() {
			desc, _ := transforms.Describe(name)
			fmt.Printf("%-12s %s\n", name, desc)
		}
		return nil
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("Starting mediajoin", "build_time", BuildTime, "config_paths", cliCfg.ConfigPaths)
	if len(presets) > 0 {
		logger.Info("Loaded transform presets", "dirs", cfg.PluginDirs, "presets", presets)
	}

	built, err := transforms.Create(cfg.Transform.Name, cfg.Transform.Params, logger)
	if err != nil {
		return fmt.Errorf("create transform: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "element", cfg.Element.Name, "transform", cfg.Transform.Name)
		return nil
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, built, cliCfg, logger)
}

// serve runs the element until ctx is done or the element finishes on its own
func serve(ctx context.Context, cfg *config.Config, built transform.Built, cliCfg *CLIConfig, logger *slog.Logger) error {
	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), natsOptions(cfg, metricsRegistry, logger)...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := connectToNATS(ctx, natsClient, cfg.RetryPolicy(), logger); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := natsClient.Close(closeCtx); err != nil {
			logger.Warn("NATS close failed", "error", err)
		}
	}()

	elemCfg, err := cfg.ElementConfig()
	if err != nil {
		return fmt.Errorf("element config: %w", err)
	}

	natsSink := transport.NewNATSSink(natsClient, logger.With("component", "nats-sink"))
	var sink route.Sink = natsSink
	if cliCfg.Trace {
		sink = route.MultiSink{natsSink, traceSink(logger)}
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}
	elem, err := element.New(elemCfg, built, deps, element.WithSink(sink))
	if err != nil {
		return fmt.Errorf("create element: %w", err)
	}
	if err := elem.Initialize(); err != nil {
		return fmt.Errorf("initialize element: %w", err)
	}
	natsClient.OnHealthChange(func(healthy bool) {
		elem.SetTransportHealthy(healthy)
		logNATSStatus(logger, natsClient)
	})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, metricsRegistry)
		g.Go(func() error {
			logger.Info("Serving metrics", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
			return server.Start(gctx)
		})
	}

	if err := elem.Start(gctx); err != nil {
		return fmt.Errorf("start element: %w", err)
	}

	source := transport.NewNATSSource(natsClient, elem, elemCfg.Formats, logger.With("component", "nats-source"))
	linker := &transport.NATSLinker{Source: source, Sink: natsSink, Prefix: cfg.NATS.SubjectPrefix}
	inputs, outputs := cfg.SubnetEntries()
	net, err := subnet.Compose(gctx, elem, inputs, outputs, linker)
	if err != nil {
		_ = elem.Stop(cliCfg.ShutdownTimeout)
		return fmt.Errorf("compose subnet: %w", err)
	}
	logger.Info("Element running",
		"element", elemCfg.Name,
		"inputs", len(inputs),
		"outputs", len(outputs),
		"subject_prefix", cfg.NATS.SubjectPrefix)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("Received shutdown signal")
		case <-elem.Done():
			logger.Info("Element finished")
		}

		var errs []error
		if err := net.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subnet: %w", err))
		}
		if err := elem.Stop(cliCfg.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("stop element: %w", err))
		}
		if elem.State() == component.StateFailed {
			errs = append(errs, fmt.Errorf("element failed: %w", elem.LastError()))
		}
		received, rejected := source.Stats()
		logger.Info("Element stopped", "received", received, "rejected", rejected)
		logNATSStatus(logger, natsClient)
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		// end the metrics server when the element finishes on its own
		return errElementDone
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errElementDone) {
		return err
	}
	logger.Info("mediajoin shutdown complete")
	return nil
}

var errElementDone = errors.New("element done")

// connectToNATS connects with retries and waits for the connection to be ready
func connectToNATS(ctx context.Context, client *natsclient.Client, policy retry.Config, logger *slog.Logger) error {
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("NATS connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	logger.Info("Connecting to NATS", "url", client.URL())
	if err := retry.Do(ctx, policy, func() error { return client.Connect(ctx) }); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	logNATSStatus(logger, client)
	return nil
}

// logNATSStatus reports the connection state, failures and round trip time
func logNATSStatus(logger *slog.Logger, client *natsclient.Client) {
	st := client.GetStatus()
	attrs := []any{"status", st.Status.String(), "failures", st.FailureCount, "rtt", st.RTT}
	if !st.LastFailureTime.IsZero() {
		attrs = append(attrs, "last_failure", st.LastFailureTime)
	}
	logger.Info("NATS status", attrs...)
}

func natsOptions(cfg *config.Config, registry *metric.MetricsRegistry, logger *slog.Logger) []natsclient.ClientOption {
	opts := []natsclient.ClientOption{
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithLogger(logger.With("component", "natsclient")),
		natsclient.WithMetrics(registry.CoreMetrics()),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(cfg.NATS.PingInterval))
	}
	if cfg.NATS.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(cfg.NATS.DrainTimeout))
	}
	if cfg.NATS.HandlerTimeout > 0 {
		opts = append(opts, natsclient.WithHandlerTimeout(cfg.NATS.HandlerTimeout))
	}
	if cfg.NATS.ClientName != "" {
		opts = append(opts, natsclient.WithName(cfg.NATS.ClientName))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if tls := cfg.NATS.TLS; tls.Enabled {
		opts = append(opts, natsclient.WithTLS(tls.CertFile, tls.KeyFile, tls.CAFile))
	}
	return opts
}

// traceSink logs each routed buffer
func traceSink(logger *slog.Logger) route.Sink {
	return route.SinkFunc(func(_ context.Context, port string, buf *view.Buffer) error {
		logger.Debug("Output routed", "port", port, "buffer", buf.ID, "format", buf.Format.Caps(), "pts", buf.PTS)
		return nil
	})
}

// loadConfig merges the given files in order and validates the result
func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, p := range paths {
		loader.AddLayer(p)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads a dotenv file without overriding variables already set
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
