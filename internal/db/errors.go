// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrDuplicate is returned when a write collides with an existing key.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnavailable is returned when the database cannot be reached.
	ErrUnavailable = errors.New("database unavailable")
)

// MapDBError inspects low-level driver errors and maps common failures to
// package-level sentinel errors. The mapping is string based so this file
// does not depend on any driver package. The original error stays in the
// chain.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	le := strings.ToLower(err.Error())
	switch {
	// MySQL duplicate entry (1062), Postgres unique violation (23505), SQLite unique constraint
	case strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062"):
		return errors.Join(ErrDuplicate, err)
	case strings.Contains(le, "connection refused") || strings.Contains(le, "bad connection") || strings.Contains(le, "database is closed") || strings.Contains(le, "database is locked"):
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
