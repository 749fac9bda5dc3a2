package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/parley/internal/app"
	"github.com/vovakirdan/parley/internal/config"
	"github.com/vovakirdan/parley/internal/log"
	"github.com/vovakirdan/parley/internal/store"
	"github.com/vovakirdan/parley/internal/store/sqlite"
)

type rootFlags struct {
	configPath string
	logLevel   string
	addr       string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "parley",
		Short:         "Real-time private and group chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	serve.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address")

	root.AddCommand(serve, newMigrateCmd(flags), newAdminCmd(flags))
	root.RunE = serve.RunE
	return root
}

func loadConfig(flags *rootFlags) (*config.Config, *zerolog.Logger, error) {
	logger := log.New(flags.logLevel)

	cfg, path, err := config.Load(logger, flags.configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return nil, nil, err
	}
	cfg.UpdateFrom(config.Config{Addr: flags.addr, LogLevel: flags.logLevel})

	logger = log.New(cfg.LogLevel)
	logger.Debug().Str("path", path).Msg("config loaded")
	return &cfg, logger, nil
}

func runServe(ctx context.Context, flags *rootFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting parley server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			st, err := sqlite.NewMigrated(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				logger.Error().Err(err).Msg("migration failed")
				return err
			}
			defer st.Close()

			logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema up to date")
			return nil
		},
	}
}

func newAdminCmd(flags *rootFlags) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks",
	}
	admin.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.ToLower(strings.TrimSpace(args[0]))
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			st, err := sqlite.NewMigrated(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetRole(cmd.Context(), email, store.RoleAdmin); err != nil {
				logger.Error().Err(err).Str("email", email).Msg("failed to promote user")
				return fmt.Errorf("promote %s: %w", email, err)
			}
			logger.Info().Str("email", email).Msg("user promoted to admin")
			return nil
		},
	})
	return admin
}
