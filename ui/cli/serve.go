// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/TomPlanche/PassGuard/internal/api"
	"github.com/TomPlanche/PassGuard/internal/i18n"
	"github.com/TomPlanche/PassGuard/internal/logging"
)

// signalContext ends when parent ends or the process is interrupted.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newWatchCmd builds the `watch` command.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the collection every time it changes",
		Long: `Prints one line for the current collection, then one line for every
committed change, until interrupted. Changes made by other processes are
picked up for the file and NATS backends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			seen := 0
			for profiles := range r.Profiles(ctx) {
				names := make([]string, 0, len(profiles))
				for _, p := range profiles {
					names = append(names, p.Name)
				}
				_, _ = fmt.Fprintln(out, i18n.T("watch.snapshot", len(profiles), strings.Join(names, ", ")))
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 0, "Exit after this many snapshots (0 means run until interrupted)")
	return cmd
}

// newServeCmd builds the `serve` command.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the profiles over a local HTTP API",
		Long: `Serves the profile collection as JSON under /api/profiles, a change
stream as server-sent events under /api/profiles/stream, a health check under
/healthz and Prometheus metrics under /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			addr := app.cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			router := api.NewRouter(r, app.metrics.Handler(), logging.L)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("serve.listening", addr))
			if err := api.Serve(ctx, addr, router); err != nil {
				return fmt.Errorf("serve %s: %w", addr, err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	return cmd
}
