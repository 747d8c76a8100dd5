// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TomPlanche/PassGuard/internal/config"
	"github.com/TomPlanche/PassGuard/internal/db"
	"github.com/TomPlanche/PassGuard/internal/i18n"
	"github.com/TomPlanche/PassGuard/internal/kv"
)

// runDBMaintenanceFunc is a package-level variable so tests can inject a
// mock implementation.
var runDBMaintenanceFunc = db.RunDBMaintenance

// maintenanceDSN returns the DSN of the configured SQL backend.
func maintenanceDSN(cfg config.StorageConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Type != kv.TypeSQLite {
		return "", fmt.Errorf("storage.dsn is required for %s maintenance", cfg.Type)
	}
	dir := config.ExpandPath(cfg.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return kv.SQLiteDSN(dir), nil
}

// newDBCmd builds the `db` command group.
func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database helpers for the SQL storage backends",
	}

	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run database maintenance (VACUUM/OPTIMIZE) for the configured DB",
		Long: `Runs engine-specific maintenance tasks: PRAGMA optimize, VACUUM and an
integrity check for SQLite, VACUUM ANALYZE for Postgres and OPTIMIZE TABLE for
MySQL.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			storage := app.cfg.Storage
			out := cmd.OutOrStdout()
			if !db.IsSupported(storage.Type) {
				_, _ = fmt.Fprintln(out, i18n.T("db.maintain_unsupported", storage.Type))
				return nil
			}
			dsn, err := maintenanceDSN(storage)
			if err != nil {
				return err
			}

			timeoutSec, _ := cmd.Flags().GetInt("timeout")
			if timeoutSec <= 0 {
				if err := runDBMaintenanceFunc(storage.Type, dsn); err != nil {
					return fmt.Errorf("maintenance failed: %w", err)
				}
				_, _ = fmt.Fprintln(out, i18n.T("db.maintain_done", storage.Type))
				return nil
			}

			done := make(chan error, 1)
			go func() {
				done <- runDBMaintenanceFunc(storage.Type, dsn)
			}()
			select {
			case err := <-done:
				if err != nil {
					return fmt.Errorf("maintenance failed: %w", err)
				}
				_, _ = fmt.Fprintln(out, i18n.T("db.maintain_done", storage.Type))
				return nil
			case <-time.After(time.Duration(timeoutSec) * time.Second):
				return fmt.Errorf("maintenance timed out after %ds", timeoutSec)
			}
		},
	}
	maintainCmd.Flags().Int("timeout", 0, "Timeout in seconds for maintenance (0 means no timeout)")

	dbCmd.AddCommand(maintainCmd)
	return dbCmd
}
