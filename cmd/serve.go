package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/florinutz/icelake"
	"github.com/florinutz/icelake/internal/safegoroutine"
	"github.com/florinutz/icelake/server"
	"github.com/florinutz/icelake/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve [location]",
	Short: "Serve the table state over HTTP and keep it fresh",
	Long: `Starts an HTTP server exposing the current table metadata, snapshots and data
files, plus /metrics, /healthz and /readyz. A background loop reloads the
table every refresh.interval and retries failed loads with backoff; the last
good version keeps being served meanwhile.

Endpoints:

  GET  /api/v1/table
  GET  /api/v1/table/metadata
  GET  /api/v1/table/snapshots
  GET  /api/v1/table/files
  GET  /api/v1/table/versions
  POST /api/v1/table/reload
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":8080", "HTTP server address for API + metrics + health")
	f.Duration("refresh-interval", 0, "reload interval, overriding refresh.interval (0 loads once)")
	f.String("otel-exporter", "none", "trace exporter: none, stdout, otlp")
	f.String("otel-endpoint", "", "OTLP gRPC endpoint (default: OTEL_EXPORTER_OTLP_ENDPOINT)")

	mustBindPFlag("server.addr", f.Lookup("addr"))
	mustBindPFlag("otel.exporter", f.Lookup("otel-exporter"))
	mustBindPFlag("otel.endpoint", f.Lookup("otel-endpoint"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("refresh-interval") {
		cfg.Refresh.Interval, _ = cmd.Flags().GetDuration("refresh-interval")
	}
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Exporter:       cfg.OTel.Exporter,
		Endpoint:       cfg.OTel.Endpoint,
		SampleRatio:    cfg.OTel.SampleRatio,
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	opts := append(tableOptions(cfg), icelake.WithTracerProvider(tp))
	backend, err := icelake.OpenBackend(ctx, cfg.Table.Location, opts...)
	if err != nil {
		return err
	}
	tbl := icelake.New(backend, opts...)

	ref := server.NewRefresher(tbl, server.RefreshConfig{
		Interval:    cfg.Refresh.Interval,
		BackoffBase: cfg.Refresh.BackoffBase,
		BackoffCap:  cfg.Refresh.BackoffCap,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(ref, tp),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := safegoroutine.WithContext(ctx, logger)

	g.Go("refresher", func() error {
		return ref.Run(gCtx)
	})

	g.Go("http", func() error {
		ln, lnErr := net.Listen("tcp", cfg.Server.Addr)
		if lnErr != nil {
			return fmt.Errorf("http listen: %w", lnErr)
		}
		logger.Info("HTTP server started", "addr", ln.Addr().String(), "location", cfg.Table.Location)
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Wait for shutdown signal.
	g.Go("shutdown", func() error {
		<-gCtx.Done()
		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
