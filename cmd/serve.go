package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/audit"
	"github.com/attendly/facegate/internal/config"
	"github.com/attendly/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification HTTP server",
	Long: `Start the facegate HTTP server.
The server exposes the preview, verification, enrollment and device
endpoints under /api/v1. With --worker it also consumes the Redis-backed
audit queue in the same process.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("worker", false, "Also run the audit queue worker (requires REDIS_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger()
	defer log.Sync()

	host := cfg.Server.Host
	port := cfg.Server.Port
	if h := mustGetString(cmd, "host"); h != "" {
		host = h
	}
	if p := mustGetInt(cmd, "port"); p != 0 {
		port = p
	}

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	dispatcher := newDispatcher(cfg, stores, log)
	defer dispatcher.Close()

	p, loader, err := buildPipeline(ctx, cfg, stores, dispatcher, log)
	if err != nil {
		return err
	}
	defer loader.Close()

	var worker *audit.Worker
	if mustGetBool(cmd, "worker") {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("--worker requires REDIS_ADDR")
		}
		worker = audit.NewWorker(cfg.Redis.Addr, cfg.Redis.Password, stores.audits, stores.devices, log)
		go func() {
			if err := worker.Start(); err != nil {
				log.Error("audit worker stopped", zap.Error(err))
			}
		}()
		fmt.Println("Audit queue worker started")
	}

	server := web.NewServer(p, stores.identities, stores.devices, host, port, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if worker != nil {
			worker.Shutdown()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facegate on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
