// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for PassGuard using Cobra.
// It wires configuration, logging, localization and the profile storage, and
// provides commands that delegate to the profile repository. CLI code should
// remain thin and leave profile semantics to the repository and store.
package cli
