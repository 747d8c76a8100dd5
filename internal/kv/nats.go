// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/TomPlanche/PassGuard/internal/logging"
)

// NATSConfig holds the connection settings of the NATS KV backend.
type NATSConfig struct {
	URL    string
	Bucket string
}

// DefaultNATSBucket is the bucket used when none is configured.
const DefaultNATSBucket = "PASSGUARD"

// NATS stores keys in a JetStream key-value bucket.
type NATS struct {
	nc     *nats.Conn
	bucket jetstream.KeyValue

	closeOnce sync.Once
	done      chan struct{}
}

// NewNATS connects to the server at cfg.URL and opens (or creates) the
// configured bucket.
func NewNATS(ctx context.Context, cfg NATSConfig) (*NATS, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("passguard"))
	if err != nil {
		return nil, fmt.Errorf("kv: connect to NATS at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("kv: create jetstream context: %w", err)
	}
	name := cfg.Bucket
	if name == "" {
		name = DefaultNATSBucket
	}
	bucket, err := getOrCreateBucket(ctx, js, name)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("kv: open bucket %s: %w", name, err)
	}
	return &NATS{nc: nc, bucket: bucket, done: make(chan struct{})}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	bucket, err := js.KeyValue(ctx, name)
	if err == nil {
		return bucket, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("PassGuard %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.bucket.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: nats get %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.bucket.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv: nats put %q: %w", key, err)
	}
	return nil
}

// Changes watches key in the bucket and signals on every new revision.
func (n *NATS) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	watcher, err := n.bucket.Watch(ctx, key, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("kv: nats watch %q: %w", key, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := watcher.Stop(); err != nil {
				logging.Debugf("kv: nats watcher stop: %v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-n.done:
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil entry marks the end of the initial replay
				if entry == nil {
					continue
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

func (n *NATS) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.nc.Close()
	})
	return nil
}
