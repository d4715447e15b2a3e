package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/medlinkx/medlinkx/internal/tenancy"
	"github.com/medlinkx/medlinkx/pkg/logger"
	"github.com/medlinkx/medlinkx/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	actor      string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "medlinkx",
		Short:         "MedLinkX site registry and access control",
		Long:          `MedLinkX manages the hospital site registry, per-user site access rules and the current site selection.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "conf", config.DefaultFile, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.actor, "actor", "cli", "user id recorded as the author of changes")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(flags),
		newReloadCmd(),
		newSiteCmd(flags),
		newAccessCmd(flags),
		newSelectCmd(flags),
		newTokenCmd(flags),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of medlinkx",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info("medlinkx"))
		},
	}
}

// app is what a one-shot command needs: configuration, a logger and the loaded service
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
	svc    *tenancy.Service
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, cfgPath, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// openApp loads the configuration and the service. Logs go to logOut so command output stays clean.
func openApp(ctx context.Context, flags *globalFlags, logOut io.Writer, opts ...tenancy.Option) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	lg := logger.NewWithWriter(&cfg.Logger, logOut)
	return openAppWith(ctx, cfg, lg, opts...)
}

func openAppWith(ctx context.Context, cfg *config.Config, lg *zap.Logger, opts ...tenancy.Option) (*app, error) {
	store, err := storage.NewStore(lg, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	svc, err := tenancy.New(ctx, lg, store, append(tenancy.FromConfig(cfg.Access), opts...)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: lg, store: store, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp runs fn against a freshly loaded service and closes it afterwards
func withApp(flags *globalFlags, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
