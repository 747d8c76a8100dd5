// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TomPlanche/PassGuard/internal/config"
	"github.com/TomPlanche/PassGuard/internal/i18n"
	"github.com/TomPlanche/PassGuard/internal/kv"
	"github.com/TomPlanche/PassGuard/internal/logging"
	"github.com/TomPlanche/PassGuard/internal/store"
	"github.com/TomPlanche/PassGuard/internal/transfer"
)

// clipboardWriteAll is a package-level variable so tests can replace the
// system clipboard.
var clipboardWriteAll = clipboard.WriteAll

// newExportCmd builds the `export` command.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [output-file]",
		Short: "Export all profiles as JSON",
		Long: `Writes the whole collection as a pretty-printed JSON array, the same
format 'import' reads. Without an output file the JSON goes to stdout.

Examples:
  passguard export > profiles.json
  passguard export profiles.json
  passguard export --clipboard`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			text, err := r.ExportProfilesToJSON(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to export profiles: %w", err)
			}
			out := cmd.OutOrStdout()
			if toClipboard, _ := cmd.Flags().GetBool("clipboard"); toClipboard {
				if err := clipboardWriteAll(text); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				_, _ = fmt.Fprintln(out, i18n.T("export.clipboard"))
				return nil
			}
			if len(args) == 0 {
				_, _ = fmt.Fprintln(out, text)
				return nil
			}
			if err := os.WriteFile(args[0], []byte(text+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[0], err)
			}
			_, _ = fmt.Fprintln(out, i18n.T("export.written", args[0]))
			return nil
		},
	}
	cmd.Flags().Bool("clipboard", false, "Copy the JSON to the clipboard instead of printing it")
	return cmd
}

// newImportCmd builds the `import` command.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file | ->",
		Short: "Import profiles from a JSON export",
		Long: `Merges the profiles of a JSON export into the collection. Profiles with
a known id replace the stored one and keep its creation time; invalid entries
are skipped. Use '-' to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			var data []byte
			if args[0] == "-" {
				in := cmd.InOrStdin()
				if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					return errors.New(i18n.T("import.tty"))
				}
				data, err = io.ReadAll(in)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read profiles: %w", err)
			}
			n, err := r.ImportProfilesFromJSON(cmd.Context(), string(data))
			if err != nil {
				return fmt.Errorf("failed to import profiles: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("import.done", n))
			return nil
		},
	}
}

// newBackupCmd builds the `backup` command.
func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [output-file]",
		Short: "Create a compressed (zstd) JSON backup of the profiles",
		Long: `Dumps the whole collection into a single, Zstandard-compressed JSON file.

If an output file is specified, '.zst' will be appended to the name if it's not already present.
If no output file is specified, a default filename 'passguard-backup-YYYY-MM-DD.json.zst' is used.

Examples:
  # Backup to a default file (e.g., passguard-backup-2026-10-19.json.zst)
  passguard backup

  # Backup to a specific file
  passguard backup my-backup.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			var outputFile string
			if len(args) == 0 {
				outputFile = transfer.DefaultArchiveName(time.Now())
			} else {
				outputFile = args[0]
				if !strings.HasSuffix(outputFile, ".zst") {
					outputFile += ".zst"
				}
			}
			profiles, err := r.GetProfiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read profiles: %w", err)
			}
			f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("could not create file: %w", err)
			}
			if err := transfer.WriteArchive(f, profiles, time.Now()); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("could not close file: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("backup.done", outputFile, len(profiles)))
			return nil
		},
	}
}

// newRestoreCmd builds the `restore` command.
func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore profiles from a backup",
		Long: `Reads a backup written by 'backup'. By default the archived profiles are
merged into the collection like an import. With --full the collection is
replaced by the archive as it is, and an invalid entry aborts the restore.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationSkipSeed: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			full, _ := cmd.Flags().GetBool("full")
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open backup: %w", err)
			}
			defer func() { _ = f.Close() }()
			n, err := transfer.Restore(cmd.Context(), r, f, transfer.Options{Full: full})
			if err != nil {
				return fmt.Errorf("failed to restore %s: %w", args[0], err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restore.done", n, args[0]))
			return nil
		},
	}
	cmd.Flags().Bool("full", false, "Perform a full, destructive restore (replaces every existing profile)")
	return cmd
}

// newMigrateCmd builds the `migrate` command.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate --to-type <type> [--to-path <dir> | --to-dsn <dsn>]",
		Short: "Copy the profiles from the current storage to another backend",
		Long: `Reads the whole collection from the configured storage and writes it,
unchanged, into the target backend, replacing whatever the target held.
Unset target options are taken from the current configuration.

Example:
  passguard migrate --to-type postgres --to-dsn "postgres://passguard@localhost/passguard"`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipSeed: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			target := app.cfg.Storage.Backend()
			target.Type, _ = f.GetString("to-type")
			if f.Changed("to-path") {
				p, _ := f.GetString("to-path")
				target.Path = config.ExpandPath(p)
			}
			if f.Changed("to-dsn") {
				target.DSN, _ = f.GetString("to-dsn")
			} else if target.Type != app.cfg.Storage.Type {
				// A DSN belongs to the source backend.
				target.DSN = ""
			}
			if f.Changed("to-redis-addr") {
				target.Redis.Addr, _ = f.GetString("to-redis-addr")
			}
			if f.Changed("to-nats-url") {
				target.NATS.URL, _ = f.GetString("to-nats-url")
			}

			ctx := cmd.Context()
			profiles, err := r.GetProfiles(ctx)
			if err != nil {
				return fmt.Errorf("failed to read profiles: %w", err)
			}

			backend, err := kv.Open(ctx, target)
			if err != nil {
				return errors.New(i18n.T("config.error_open_storage", target.Type, err))
			}
			defer func() {
				if err := backend.Close(); err != nil {
					logging.Warnf("closing %s storage: %v", target.Type, err)
				}
			}()
			dst := store.New(backend, store.WithKey(app.cfg.Storage.Key), store.WithLogger(logging.L))
			defer func() { _ = dst.Close() }()

			if err := dst.ReplaceAll(ctx, profiles); err != nil {
				return fmt.Errorf("failed to write profiles to %s: %w", target.Type, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("migrate.done", len(profiles), target.Type))
			return nil
		},
	}
	cmd.Flags().String("to-type", "", "Target storage backend ("+strings.Join(kv.Types, ", ")+")")
	cmd.Flags().String("to-path", "", "Target data directory (file and sqlite)")
	cmd.Flags().String("to-dsn", "", "Target database connection string (sqlite, postgres, mysql)")
	cmd.Flags().String("to-redis-addr", "", "Target Redis address")
	cmd.Flags().String("to-nats-url", "", "Target NATS server URL")
	_ = cmd.MarkFlagRequired("to-type")
	return cmd
}
