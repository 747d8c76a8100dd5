// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TomPlanche/PassGuard/internal/db"
)

// Backend type names accepted by Open.
const (
	TypeMemory   = "memory"
	TypeFile     = "file"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeRedis    = "redis"
	TypeNATS     = "nats"
)

// Types lists every backend type in the order shown to users.
var Types = []string{TypeFile, TypeSQLite, TypePostgres, TypeMySQL, TypeRedis, TypeNATS, TypeMemory}

// Config selects and configures a backend.
type Config struct {
	// Type is one of the Type* constants. Empty means file.
	Type string
	// Path is the data directory of the file backend and the default
	// location of the SQLite database.
	Path string
	// DSN is the SQL data source name. Required for postgres and mysql.
	DSN   string
	Redis RedisConfig
	NATS  NATSConfig
}

// SQLiteDSN returns the DSN of the database file kept in dir.
func SQLiteDSN(dir string) string {
	return "file:" + filepath.Join(dir, "passguard.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open builds the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", TypeFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("kv: file backend needs a data path")
		}
		return NewFile(cfg.Path), nil
	case TypeMemory:
		return NewMemory(), nil
	case TypeSQLite, TypePostgres, TypeMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.Type != TypeSQLite || cfg.Path == "" {
				return nil, fmt.Errorf("kv: %s backend needs a dsn", cfg.Type)
			}
			if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
				return nil, fmt.Errorf("kv: create data dir: %w", err)
			}
			dsn = SQLiteDSN(cfg.Path)
		}
		s, err := db.NewStoreFromDSN(cfg.Type, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeRedis:
		return NewRedis(ctx, cfg.Redis)
	case TypeNATS:
		return NewNATS(ctx, cfg.NATS)
	default:
		return nil, fmt.Errorf("kv: unknown backend type %q (want one of %v)", cfg.Type, Types)
	}
}
