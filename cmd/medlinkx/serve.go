package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medlinkx/medlinkx/internal/apiserver"
	"github.com/medlinkx/medlinkx/internal/auth/jwt"
	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/tenancy"
	"github.com/medlinkx/medlinkx/pkg/logger"
	"github.com/medlinkx/medlinkx/pkg/metrics"
	"github.com/medlinkx/medlinkx/pkg/trace"
	"github.com/medlinkx/medlinkx/pkg/utils"
	"github.com/medlinkx/medlinkx/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var pidPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, pidPath)
		},
	}
	cmd.Flags().StringVar(&pidPath, "pid", "", "write the server pid here so `medlinkx reload` can signal it")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, pidPath string) error {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Sync()

	lg.Info("starting medlinkx", zap.String("version", version.Get()))

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			lg.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	var m *metrics.Metrics
	var opts []tenancy.Option
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		opts = append(opts, tenancy.WithMetrics(m))
	}

	a, err := openAppWith(ctx, cfg, lg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtSvc, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.APIServer.JWT.SecretKey,
		Duration:  cfg.APIServer.JWT.Duration,
		Issuer:    cfg.APIServer.JWT.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize jwt service: %w", err)
	}

	if pidPath != "" {
		pf := utils.NewPIDFile(pidPath)
		if err := pf.Write(); err != nil {
			return err
		}
		defer func() {
			if err := pf.Remove(); err != nil {
				lg.Warn("failed to remove pid file", zap.String("path", pidPath), zap.Error(err))
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go watchReload(ctx, hup, a.svc, lg)

	if cfg.APIServer.Mode != "" {
		gin.SetMode(cfg.APIServer.Mode)
	}
	return apiserver.New(cfg, lg, a.svc, jwtSvc, m).Run(ctx)
}

// watchReload re-reads every document from storage each time a signal arrives,
// picking up changes made by other processes sharing the backend.
func watchReload(ctx context.Context, sigs <-chan os.Signal, svc *tenancy.Service, lg *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if err := svc.Load(ctx); err != nil {
				lg.Error("reload failed", zap.Stringer("signal", sig), zap.Error(err))
				continue
			}
			lg.Info("reloaded sites and access rules",
				zap.Stringer("signal", sig),
				zap.Int("sites", svc.Sites.Len()))
		}
	}
}

func newReloadCmd() *cobra.Command {
	var pidPath string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to re-read sites and access rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.NewPIDFile(pidPath).Signal(syscall.SIGHUP); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reload signal sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&pidPath, "pid", "", "pid file written by `medlinkx serve --pid`")
	_ = cmd.MarkFlagRequired("pid")
	return cmd
}
