// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db contains the SQL storage backend used by PassGuard.
//
// A Store is a tiny keyed document store: each key owns one row of the
// kv_entries table and every write replaces that row inside a transaction.
// The profile store keeps its whole collection under a single key, so the
// SQL engine only has to guarantee that one row is swapped atomically.
//
// Engines
//   - "sqlite" via modernc.org/sqlite (pure Go, no cgo)
//   - "postgres" via the pgx stdlib driver
//   - "mysql" via go-sql-driver/mysql
//
// Schema changes live in migrations/<engine>/*.up.sql and are applied by
// RunMigrations when a store is opened.
//
// Testing notes
//   - Prefer an in-memory DSN such as "file:<name>?mode=memory&cache=shared"
//     in tests that need real DB semantics and migrations.
//   - Postgres and MySQL are exercised only when INTEGRATION_DB and
//     INTEGRATION_DSN are set.
package db
