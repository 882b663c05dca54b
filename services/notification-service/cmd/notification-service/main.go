package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	notifycfg "github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/config"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/migrations"
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
		Use:           "notification-service",
		Short:         "Appointment notifications with retry and dead-lettering",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().String("config", "", "optional YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the appointment-events consumer, dead-letter consumer and health endpoints",
		RunE:  runServe,
	}
	root.AddCommand(
		serve,
		runtime.MigrateCommand(func(cmd *cobra.Command) (config.PostgresConfig, error) {
			cfg, err := loadConfig(cmd)
			return cfg.Postgres, err
		}, migrations.FS, migrations.Table),
		runtime.ProbeCommand("notification-service", "localhost:9093"),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (notifycfg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := notifycfg.Load(path)
	if err != nil {
		return notifycfg.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
