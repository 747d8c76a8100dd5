// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for PassGuard using the
// Cobra library. It defines the root command, the shared service setup and
// teardown, and the version helpers.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TomPlanche/PassGuard/buildvars"
	"github.com/TomPlanche/PassGuard/internal/config"
	"github.com/TomPlanche/PassGuard/internal/db"
	"github.com/TomPlanche/PassGuard/internal/i18n"
	"github.com/TomPlanche/PassGuard/internal/kv"
	"github.com/TomPlanche/PassGuard/internal/logging"
	"github.com/TomPlanche/PassGuard/internal/metrics"
	"github.com/TomPlanche/PassGuard/internal/repository"
	"github.com/TomPlanche/PassGuard/internal/store"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

const modulePath = "github.com/TomPlanche/PassGuard"

// Command annotations read by the root PersistentPreRunE.
const (
	// annotationConfigOnly marks commands that need the configuration but
	// must not open the profile storage.
	annotationConfigOnly = "passguard/config-only"
	// annotationSkipSeed marks commands that must not seed an empty
	// collection at startup.
	annotationSkipSeed = "passguard/skip-seed"
)

// services holds everything opened by setupDefaultServices for the running
// command.
type services struct {
	cfg     config.Config
	backend kv.Backend
	store   *store.Store
	repo    *repository.Repository
	metrics *metrics.Prometheus
}

// app is the state of the command being executed.
var app services

func setupDefaultServices(cmd *cobra.Command, args []string) error {
	// Load optional config file argument from cli
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	defaults := config.Defaults()
	app.cfg, err = config.LoadConfig[config.Config](cmd, defaults, optionalConfigPath)
	// A "file not found" error is expected on first run, so we handle it specifically.
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		if path, pathErr := config.GetConfigPath(false); pathErr == nil {
			if writeErr := config.WriteConfigFileTo(&app.cfg, path); writeErr != nil {
				// The app can run on defaults.
				logging.Warnf("could not write default config file: %v", writeErr)
			} else {
				logging.Infof("%s", i18n.T("config.wrote_default", path))
			}
		}
	} else if err != nil {
		return errors.New(i18n.T("config.error_load", err))
	}

	// Fall back to defaults for values a config file left empty.
	if app.cfg.Storage.Type == "" {
		app.cfg.Storage.Type = defaults["storage.type"].(string)
	}
	if app.cfg.Storage.Path == "" {
		app.cfg.Storage.Path = defaults["storage.path"].(string)
	}
	if app.cfg.Storage.Key == "" {
		app.cfg.Storage.Key = defaults["storage.key"].(string)
	}
	if app.cfg.Language == "" {
		app.cfg.Language = defaults["language"].(string)
	}

	if err := logging.SetLevel(app.cfg.Log.Level); err != nil {
		logging.Warnf("%v", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		_ = logging.SetLevel("debug")
		db.SetDebug(true)
	}
	if app.cfg.Log.File != "" {
		logging.SetOutputFile(config.ExpandPath(app.cfg.Log.File))
	}

	i18n.Init(app.cfg.Language)

	if cmd.Annotations[annotationConfigOnly] != "" {
		return nil
	}
	return openStorage(cmd)
}

// openStorage opens the configured backend and builds the store and
// repository on top of it.
func openStorage(cmd *cobra.Command) error {
	ctx := cmd.Context()
	backend, err := kv.Open(ctx, app.cfg.Storage.Backend())
	if err != nil {
		return errors.New(i18n.T("config.error_open_storage", app.cfg.Storage.Type, err))
	}
	logging.Debugf("opened %s storage", app.cfg.Storage.Type)

	app.backend = backend
	app.metrics = metrics.NewPrometheus()
	app.store = store.New(backend,
		store.WithKey(app.cfg.Storage.Key),
		store.WithMetrics(app.metrics),
		store.WithLogger(logging.L),
	)
	app.repo = repository.New(app.store)
	repository.SetDefault(app.repo)

	if cmd.Annotations[annotationSkipSeed] != "" {
		return nil
	}
	if noSeed, _ := cmd.Flags().GetBool("no-seed"); noSeed {
		return nil
	}
	seeded, err := app.repo.InitializeDefaultProfiles(ctx)
	if err != nil {
		return err
	}
	if seeded {
		logging.Debugf("seeded the default profiles")
	}
	return nil
}

// closeServices releases everything opened by setupDefaultServices.
func closeServices() {
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			logging.Warnf("closing store: %v", err)
		}
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			logging.Warnf("closing %s storage: %v", app.cfg.Storage.Type, err)
		}
	}
	repository.ClearDefault()
	app = services{}
}

// Execute runs the CLI entrypoint. The main package should call this
// function and handle process exit.
func Execute() error {
	return runRoot(context.Background(), NewRootCmd())
}

// runRoot executes cmd and always releases the services it opened.
func runRoot(ctx context.Context, cmd *cobra.Command) error {
	defer closeServices()
	return cmd.ExecuteContext(ctx)
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		// Make sure the user-provided file exists to avoid unwanted behavior.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// NewRootCmd creates and configures a new root cobra command.
// This function is used to create the main application command as well as
// fresh instances for isolated testing.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passguard",
		Short: "PassGuard manages password rule profiles.",
		Long: `PassGuard keeps a collection of password rule profiles: named sets of
constraints (length bounds, character class rules, minimum counts and
forbidden characters) that a password generator can follow.

The collection is stored as one JSON document in the configured storage
backend (a file by default) and is seeded with General, Gmail, Banking
and Gaming the first time it is found empty.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupDefaultServices(cmd, args)
		},
		Annotations: map[string]string{annotationConfigOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = compositeVersion(resolveBuildVersion(nil))
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Flags().BoolP("version", "V", false, "Print version and exit")

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output (debug logs, including SQL)")
	cmd.PersistentFlags().String("config", "", "config file")
	cmd.PersistentFlags().Bool("no-seed", false, "Do not seed the default profiles into an empty collection")
	cmd.PersistentFlags().String("language", "", `Message language ("en", "fr")`)
	cmd.PersistentFlags().String("storage.type", "", "Storage backend ("+strings.Join(kv.Types, ", ")+")")
	cmd.PersistentFlags().String("storage.path", "", "Data directory of the file and sqlite backends")
	cmd.PersistentFlags().String("storage.dsn", "", "Database connection string (DSN) of the SQL backends")
	cmd.PersistentFlags().String("log.level", "", "Log level (debug, info, warn, error)")

	versionCmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOnly: "true"},
		// The version does not depend on any configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Version: %s\n", v)
			_, _ = fmt.Fprintf(out, "Commit: %s\n", c)
			if d != "" {
				_, _ = fmt.Fprintf(out, "Built: %s\n", d)
			}
		},
	}

	cmd.AddCommand(
		newProfileCmd(),
		newSeedCmd(),
		newExportCmd(),
		newImportCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newMigrateCmd(),
		newWatchCmd(),
		newServeCmd(),
		newDBCmd(),
		versionCmd,
	)

	return cmd
}

// compositeVersion joins the version, commit and build date into one line.
func compositeVersion(v, c, d string) string {
	out := v
	if c != "" && c != "dev" {
		out = out + " (" + c + ")"
	}
	if d != "" {
		out = out + " built: " + d
	}
	return out
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If `info` is nil, it reads build info from
// the runtime. This helper is separated to make unit testing straightforward.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// If Main doesn't contain the version (some build paths), try to
		// find our module in the dependencies and use that version.
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}

		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	// As a last resort, if no version was discovered, but a gitCommit was
	// provided via ldflags, show that to aid support.
	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
