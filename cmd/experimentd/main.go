// Experimentd serves experiment definitions and responses.
//
// Two processes share one binary: serve-api exposes the collection files as a
// REST API, serve-web runs the authoring and respondent site against that API.
//
// Usage:
//
//	experimentd serve-api --config experimentd.yaml
//	EXPERIMENTD_WEB_API_URL=http://api:9090/api/experiments experimentd serve-web
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/config"
	apihttp "github.com/fyrsmithlabs/experimentd/internal/http"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/services"
	"github.com/fyrsmithlabs/experimentd/internal/site"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "experimentd",
	Short:         "Experiment definition and response server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("EXPERIMENTD_CONFIG"),
		"config file (.yaml, .yml or .toml)")
	rootCmd.AddCommand(serveAPICmd, serveWebCmd, versionCmd)
}

var serveAPICmd = &cobra.Command{
	Use:   "serve-api",
	Short: "Serve the experiments REST API over the collection files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runAPI(ctx, configPath)
	},
}

var serveWebCmd = &cobra.Command{
	Use:   "serve-web",
	Short: "Serve the authoring and questionnaire site",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWeb(ctx, configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "experimentd by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

// runAPI starts the API server and blocks until ctx is cancelled.
func runAPI(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	reg, err := services.BuildAPI(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeRegistry(reg, cfg.Server.ShutdownTimeout.Duration())

	srv, err := apihttp.NewServer(reg.Store(), reg.Events(), reg.Logger(), services.APIConfig(cfg.Server))
	if err != nil {
		return err
	}
	return serve(ctx, srv, cfg.Server.ShutdownTimeout.Duration(), reg.Logger())
}

// runWeb starts the site and blocks until ctx is cancelled.
func runWeb(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	reg, err := services.BuildWeb(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeRegistry(reg, cfg.Web.ShutdownTimeout.Duration())

	srv, err := site.NewServer(reg.Backend(), reg.Logger(), services.SiteConfig(cfg.Web))
	if err != nil {
		return err
	}
	return serve(ctx, srv, cfg.Web.ShutdownTimeout.Duration(), reg.Logger())
}

type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until it fails or ctx is cancelled, then shuts it down
// within timeout.
func serve(ctx context.Context, srv server, timeout time.Duration, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutdown signal received", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info(ctx, "server stopped")
	return nil
}

func closeRegistry(reg services.Registry, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := reg.Close(ctx); err != nil {
		reg.Logger().Warn(ctx, "closing services", zap.Error(err))
	}
}
