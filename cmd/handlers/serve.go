package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"civicbriefs/internal/logger"
	"civicbriefs/internal/server"

	"github.com/spf13/cobra"
)

// NewServeCmd runs the JSON API until SIGINT or SIGTERM.
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start the civicbriefs API server.

The server provides:
  • Pipeline, ingestion and mapping triggers
  • Today's capsule, quiz and weekly report
  • Study plans, test results and chat
  • /health and Prometheus /metrics

Examples:
  civicbriefs serve
  civicbriefs serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8000)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	srv := server.New(services, serverCfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", "addr", fmt.Sprintf("http://%s:%d", serverCfg.Host, serverCfg.Port))
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down API", "timeout", serverCfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("API stopped")
	return nil
}
