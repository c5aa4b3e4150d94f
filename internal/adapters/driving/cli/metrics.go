package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var metricsAddr string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Prometheus metrics commands",
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics",
	Long: `Serve retrieval, generation, citation and evaluation metrics on /metrics.

Metrics are collected in-process, so this is mostly useful alongside a
long-running command such as "mcp serve --port". Use --addr to pick the
listen address.`,
	Args: cobra.NoArgs,
	RunE: runMetricsServe,
}

func init() {
	metricsServeCmd.Flags().StringVar(&metricsAddr, "addr", ":9090", "listen address")
	metricsCmd.AddCommand(metricsServeCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runMetricsServe(cmd *cobra.Command, _ []string) error {
	if metricsHandler == nil {
		return errNotConfigured("metrics")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Serving metrics on http://localhost%s/metrics\n", metricsAddr)
	return serveMetrics(ctx, metricsAddr, metricsHandler)
}

// serveMetrics serves h on /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
