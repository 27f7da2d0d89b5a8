package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agriconnect/internal/console"
	"github.com/felixgeelhaar/agriconnect/internal/health"
	"github.com/felixgeelhaar/agriconnect/internal/log"
	"github.com/felixgeelhaar/agriconnect/internal/metrics"
	"github.com/felixgeelhaar/agriconnect/internal/server"
	"github.com/felixgeelhaar/agriconnect/internal/version"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serve the marketplace pages locally",
	Long: `Serve the marketplace pages over HTTP for the locally stored session.

Protected pages answer 503 while the session is being restored, redirect
to the matching login page when signed out, and redirect to the session's
own dashboard when the role does not match.

Endpoints:
  /                     Landing page
  /user-login           Farmer and supplier sign-in (POST to sign in)
  /admin-login          Administrator sign-in (POST to sign in)
  /register             Account registration (POST to register)
  /logout               POST to sign out
  /user/*               Farmer and supplier pages
  /supplier/dashboard   Supplier landing page
  /admin/*              Administrator pages
  /metrics              Prometheus metrics
  /health/live, /health/ready, /health/startup

Example:
  agriconnect console --addr 127.0.0.1:3000`,
	RunE: withApp(runConsole),
}

var (
	consoleAddr            string
	consoleShutdownTimeout time.Duration
)

func init() {
	consoleCmd.Flags().StringVar(&consoleAddr, "addr", "", "listen address (default 127.0.0.1:3000)")
	consoleCmd.Flags().DurationVar(&consoleShutdownTimeout, "shutdown-timeout", 30*time.Second, "maximum time to drain connections on shutdown")

	rootCmd.AddCommand(consoleCmd)
}

func runConsole(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	logger := serverLogger(a)

	ln, err := net.Listen("tcp", a.cfg.Console.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Console.Addr, err)
	}
	srv, probes := newConsoleServer(a, logger)

	a.printf("AgriConnect console %s\n", version.GetInfo().Version)
	a.printf("Listening on: http://%s\n", ln.Addr())
	a.printf("Backend API:  %s\n\n", a.cfg.API.URL)
	a.printf("Press Ctrl+C to stop the server\n\n")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(ln)
	}()

	go func() {
		a.boot(ctx)
		probes.MarkInitialized()
		logger.Info("session settled", "state", a.session.Snapshot().State.String())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), consoleShutdownTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		a.printf("Server stopped gracefully\n")
		return nil
	}
}

// newConsoleServer wires probes, the console router and metrics.
func newConsoleServer(a *app, logger *log.Logger) (*server.Server, *health.Probes) {
	manager := health.NewManager(
		health.NewSessionChecker(a.session),
		health.NewBackendChecker(a.client, a.cfg.API.URL),
	)
	probes := health.NewProbes(version.GetInfo().Version, manager)

	handler := console.New(console.Config{
		Session: a.session,
		Backend: a.client,
		Metrics: metrics.HandlerFor(a.registry),
		Errors:  a.metrics,
		Logger:  logger.With("component", "console"),
	})

	srv := server.New(probes, handler, server.Config{
		Address:         a.cfg.Console.Addr,
		ShutdownTimeout: consoleShutdownTimeout,
		Logger:          logger,
	})
	return srv, probes
}

// serverLogger switches to JSON at INFO on the command's stdout unless the
// user chose otherwise.
func serverLogger(a *app) *log.Logger {
	cfg := log.DefaultConfig().Override(a.cfg.Log.Level, a.cfg.Log.Format)
	cfg.Output = log.NewOutput(a.out)
	return log.New(cfg)
}
