// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for PassGuard.
//
// Usage:
//
//	go run . [flags]
//	./passguard [flags]
//
// This launches the PassGuard CLI. See --help for options.
package main

import (
	"fmt"
	"os"

	"github.com/TomPlanche/PassGuard/buildvars"
	"github.com/TomPlanche/PassGuard/internal/logging"
	"github.com/TomPlanche/PassGuard/ui/cli"
)

// version is set at build time using -ldflags, e.g.:
// go build -ldflags "-X main.version=1.2.3"
var version = "dev"

// main is the entrypoint for the PassGuard CLI.
func main() {
	if os.Getenv("PASSGUARD_SHOW_VERSION") == "1" {
		fmt.Fprintf(os.Stderr, "PassGuard version: %s\n", buildvars.VersionOrDefault(version))
	}

	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		_ = logging.Close()
		os.Exit(1)
	}
	_ = logging.Close()
}
