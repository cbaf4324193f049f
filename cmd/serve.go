package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/card-export-formatter/internal/converter"
	"github.com/ginjaninja78/card-export-formatter/internal/metrics"
	"github.com/ginjaninja78/card-export-formatter/internal/web"
	"github.com/ginjaninja78/card-export-formatter/pkg/utils"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server",
	Long: `Start the HTTP server. Browsers get an upload form on /, API clients POST
a multipart "file" field to /api/format. The server stops gracefully on
SIGINT or SIGTERM, waiting up to server.shutdown_timeout for in-flight
uploads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
}

func runServe(ctx context.Context) error {
	cfg := appConfig
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.StagingDir, cfg.InputArchiveDir)
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	rec := metrics.New()
	conv := converter.New(cfg, converter.WithLogger(logger), converter.WithMetrics(rec))
	srv := web.NewServer(cfg, conv, files, rec, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}

	logger.Info().Msg("Server stopped")
	return nil
}
