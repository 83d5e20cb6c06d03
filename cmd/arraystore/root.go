package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/logger"
	"github.com/ajitpratap0/arraystore/pkg/observability"
	"github.com/ajitpratap0/arraystore/pkg/store"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
	"github.com/ajitpratap0/arraystore/pkg/version"
)

const envPrefix = "ARRAYSTORE"

// app holds the state shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	stdout  io.Writer
	stderr  io.Writer
	metrics *http.Server
	tracing bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "arraystore",
		Short: "Ingest tables and matrices into fragment-based arrays",
		Long: `arraystore writes dataframes and sparse or dense matrices into arrays kept
in a local directory or an object store, and reads them back.

Settings come from, in increasing priority: a YAML config file, ARRAYSTORE_*
environment variables (also read from .env), and command line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd.Context(), cmd.Flags())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Path to a YAML configuration file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-encoding", "", "Log encoding (json, console)")
	pf.String("backend", "", "Storage backend (file, mem, s3, gcs)")
	pf.String("root", "", "Root directory of the file backend")
	pf.String("bucket", "", "Bucket of the s3 and gcs backends")
	pf.String("prefix", "", "Key prefix within the bucket")
	pf.String("region", "", "S3 region")
	pf.String("endpoint", "", "S3 endpoint override")
	pf.Bool("trace", false, "Write ingestion spans to stderr")
	pf.Bool("metrics", false, "Serve Prometheus metrics while the command runs")
	pf.String("metrics-addr", "", "Listen address of the metrics server")

	root.AddCommand(newIngestCommand(a))
	root.AddCommand(newReadCommand(a))
	root.AddCommand(newInfoCommand(a))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return version.Show(a.stdout)
		},
	})

	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

// setup resolves configuration, then starts logging, tracing and the
// metrics server.
func (a *app) setup(ctx context.Context, flags *pflag.FlagSet) error {
	v := viper.New()
	if err := bindEnv(v, flags); err != nil {
		return err
	}

	cfg := config.New()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    cfg.Observability.LogEncoding,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	a.logger = logger.With(zap.String("component", "cli"))

	if cfg.Observability.Tracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version.ImplementationVersion()
		tc.Writer = a.stderr
		tc.Sync = true
		if err := observability.InitTracing(ctx, tc); err != nil {
			return err
		}
		a.tracing = true
	}
	if cfg.Observability.Metrics {
		a.serveMetrics(cfg.Observability.MetricsAddr)
	}
	return nil
}

func (a *app) teardown() error {
	var err error
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.tracing {
		err = multierr.Append(err, observability.Shutdown(ctx))
		a.tracing = false
	}
	if a.metrics != nil {
		err = multierr.Append(err, a.metrics.Shutdown(ctx))
		a.metrics = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
}

// openStore opens the configured backend.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	b, err := backend.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	return store.New(b, store.WithLogger(a.logger))
}

// bindEnv adds the flag set to v and lets ARRAYSTORE_* environment
// variables stand in for flags. ARRAYSTORE_LOG_LEVEL sets --log-level.
func bindEnv(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return nil
}

// applyOverrides copies flags and environment variables that were set onto
// cfg.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	obs := &cfg.Observability
	setString("log-level", &obs.LogLevel)
	setString("log-encoding", &obs.LogEncoding)
	setString("metrics-addr", &obs.MetricsAddr)
	setBool("metrics", &obs.Metrics)
	setBool("trace", &obs.Tracing)

	st := &cfg.Storage
	if v.IsSet("backend") {
		st.Kind = backend.Kind(v.GetString("backend"))
	}
	setString("root", &st.Root)
	setString("bucket", &st.Bucket)
	setString("prefix", &st.Prefix)
	setString("region", &st.Region)
	setString("endpoint", &st.Endpoint)
}
