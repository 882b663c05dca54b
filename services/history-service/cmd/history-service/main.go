package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	histcfg "github.com/md-rashed-zaman/clinicflow/services/history-service/internal/config"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/migrations"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "history-service",
		Short:         "Appointment history projection and query API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().String("config", "", "optional YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the projection consumer, HTTP query API and gRPC health server",
		RunE:  runServe,
	}
	root.AddCommand(
		serve,
		runtime.MigrateCommand(func(cmd *cobra.Command) (config.PostgresConfig, error) {
			cfg, err := loadConfig(cmd)
			return cfg.Postgres, err
		}, migrations.FS, migrations.Table),
		runtime.ProbeCommand("history-service", "localhost:9091"),
		runtime.TokenCommand(func(cmd *cobra.Command) (string, error) {
			cfg, err := loadConfig(cmd)
			return cfg.Auth.JWTSecret, err
		}),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (histcfg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := histcfg.Load(path)
	if err != nil {
		return histcfg.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
