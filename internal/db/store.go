// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// kvEntry is one row of kv_entries.
type kvEntry struct {
	bun.BaseModel `bun:"table:kv_entries"`

	Key       string    `bun:"entry_key,pk"`
	Value     string    `bun:"entry_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Store is a keyed document store on top of a SQL database.
type Store struct {
	bun    *bun.DB
	dbType string
}

// BunDB exposes the underlying *bun.DB for maintenance and tests.
func (s *Store) BunDB() *bun.DB { return s.bun }

// Type returns the engine name the store was opened with.
func (s *Store) Type() string { return s.dbType }

// Get returns the value stored under key. A missing key is reported through
// the boolean, not as an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e kvEntry
	err := s.bun.NewSelect().Model(&e).Column("entry_value").Where("entry_key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("db: read %q: %w", key, MapDBError(err))
	}
	return []byte(e.Value), true, nil
}

// Put replaces the value under key. The delete and the insert share one
// transaction, so a failed Put leaves the previous value in place.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*kvEntry)(nil)).Where("entry_key = ?", key).Exec(ctx); err != nil {
			return err
		}
		e := &kvEntry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
		_, err := tx.NewInsert().Model(e).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("db: write %q: %w", key, MapDBError(err))
	}
	dbLogf("db: wrote %d bytes to %q in %s", len(value), key, time.Since(start))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.bun.Close()
}
