// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package kv defines the durable key-value storage PassGuard persists its
// profile collection into, together with the concrete backends: an in-memory
// map, an atomically replaced file, Redis and a NATS JetStream KV bucket. SQL
// engines are provided by internal/db and selected through Open.
package kv // import "github.com/TomPlanche/PassGuard/internal/kv"

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a backend after Close.
var ErrClosed = errors.New("kv: backend closed")

// Backend is a durable key-value store. Put must be atomic: when it returns
// an error, Get keeps returning the previous value.
type Backend interface {
	// Get returns the value stored under key. A missing key yields
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases the backend's resources.
	Close() error
}

// Notifier is implemented by backends that can report changes made outside
// this process. The returned channel receives a signal (coalesced, never
// blocking the sender) whenever key may have changed, and is closed when
// ctx ends or the backend is closed.
type Notifier interface {
	Changes(ctx context.Context, key string) (<-chan struct{}, error)
}

// signal performs a non-blocking send on a coalescing change channel.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
