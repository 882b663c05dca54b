package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	schedcfg "github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/config"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/migrations"
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
		Use:           "scheduler-service",
		Short:         "Appointments, outbox relay and reminder scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().String("config", "", "optional YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health server, outbox relay and cron jobs",
		RunE:  runServe,
	}
	root.AddCommand(
		serve,
		runtime.MigrateCommand(func(cmd *cobra.Command) (config.PostgresConfig, error) {
			cfg, err := loadConfig(cmd)
			return cfg.Postgres, err
		}, migrations.FS, migrations.Table),
		runtime.ProbeCommand("scheduler-service", "localhost:9090"),
		runtime.TokenCommand(func(cmd *cobra.Command) (string, error) {
			cfg, err := loadConfig(cmd)
			return cfg.Auth.JWTSecret, err
		}),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (schedcfg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := schedcfg.Load(path)
	if err != nil {
		return schedcfg.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
