package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// MigrateCommand applies the pending migrations in fsys to the configured
// database, recording the version in table.
func MigrateCommand(postgres func(cmd *cobra.Command) (config.PostgresConfig, error), fsys fs.FS, table string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pgCfg, err := postgres(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.Open(ctx, pgCfg)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer pool.Close()

			version, err := db.Migrate(ctx, pool, fsys, table)
			if err != nil {
				return err
			}
			cmd.Printf("schema at version %d\n", version)
			return nil
		},
	}
}

// ProbeCommand checks the gRPC health service of a running instance and
// fails unless it reports SERVING.
func ProbeCommand(service, defaultAddr string) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the health of a running instance over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := grpcx.Probe(cmd.Context(), addr, service, timeout)
			if err != nil {
				return err
			}
			cmd.Println(status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", service, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "gRPC address of the instance")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "probe timeout")
	return cmd
}

// TokenCommand mints a bearer token for a user with the service's signing
// secret. Intended for operators and local testing; there is no login flow.
func TokenCommand(secret func(cmd *cobra.Command) (string, error)) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user id and role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}
			key, err := secret(cmd)
			if err != nil {
				return err
			}
			token, err := auth.Sign(key, auth.Caller{UserID: id, Role: r}, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&role, "role", string(auth.RolePatient), "DOCTOR, NURSE or PATIENT")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
