package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agriconnect/internal/config"
	"github.com/felixgeelhaar/agriconnect/internal/credstore"
	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/log"
	"github.com/felixgeelhaar/agriconnect/internal/metrics"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/session"
	"github.com/felixgeelhaar/agriconnect/internal/telemetry"
	"github.com/felixgeelhaar/agriconnect/internal/ux"
	"github.com/felixgeelhaar/agriconnect/internal/version"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    credstore.Store
	client   *platform.Client
	binding  *platform.TokenBinding
	session  *session.Controller
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	out      io.Writer

	closers []func() error
}

// newApp wires the store, API client and session controller from cfg.
func newApp(cfg *config.Config, logger *log.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: out}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.store = store

	a.registry, a.metrics = metrics.NewRegistry()
	a.binding = &platform.TokenBinding{}
	a.client = platform.NewClient(cfg.API.URL,
		platform.WithTokenSource(a.binding),
		platform.WithTimeout(cfg.API.Timeout),
		platform.WithObserver(a.metrics),
	)
	a.session = session.New(a.client, a.store,
		session.WithBinder(a.binding),
		session.WithObserver(a.metrics),
		session.WithLogger(logger.With("component", "session")),
		session.WithConfirmRetry(cfg.Session.ConfirmAttempts, cfg.Session.ConfirmBackoff),
		session.WithPhoneRegion(cfg.Phone.DefaultRegion),
	)
	return a, nil
}

func (a *app) openStore() (credstore.Store, error) {
	switch a.cfg.Store.Backend {
	case config.StoreMemory:
		return credstore.NewMemoryStore(), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Store.Redis.Addr,
			Password: a.cfg.Store.Redis.Password,
			DB:       a.cfg.Store.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return credstore.NewRedisStore(client, a.cfg.Store.Redis.Profile), nil
	case config.StoreFile, "":
		return credstore.NewFileStore(a.cfg.Store.Path), nil
	default:
		return nil, agerrors.NewConfigInvalidError("store.backend", a.cfg.Store.Backend, "file, memory, redis")
	}
}

// boot restores the session. Failures are logged; the session is usable
// either way.
func (a *app) boot(ctx context.Context) {
	if err := a.session.Boot(ctx); err != nil {
		a.logger.WithError(err).Debug("session boot finished with error")
	}
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) formatter() (ux.Formatter, error) {
	return ux.NewFormatter(outFormat, &ux.FormatterOptions{Writer: a.out, NoColor: noColor})
}

func (a *app) print(v interface{}) error {
	f, err := a.formatter()
	if err != nil {
		return err
	}
	return f.Format(v)
}

func (a *app) printf(format string, args ...interface{}) {
	if outFormat != "text" && outFormat != "" {
		return
	}
	fmt.Fprintf(a.out, format, args...)
}

// loadApp builds the app for cmd from flags, environment and config.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: cfgFile,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	logger := log.New(log.CLIConfig().Override(cfg.Log.Level, cfg.Log.Format))
	log.SetDefaultLogger(logger)

	shutdownTracing, err := telemetry.InitProvider(cmd.Context(), tracingConfig(cfg))
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	if out == nil {
		out = os.Stdout
	}
	a, err := newApp(cfg, logger, out)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})
	return a, nil
}

func tracingConfig(cfg *config.Config) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version.GetInfo().Version
	tc.Enabled = cfg.Tracing.Enabled
	tc.Endpoint = cfg.Tracing.Endpoint
	tc.Insecure = cfg.Tracing.Insecure
	tc.SampleRate = cfg.Tracing.SampleRate
	if cfg.Tracing.Environment != "" {
		tc.Environment = cfg.Tracing.Environment
	}
	return tc
}

// withApp adapts an app-based run function to cobra's RunE.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.logger.WithError(err).Debug("close failed")
			}
		}()
		return run(cmd.Context(), a, cmd, args)
	}
}
