// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/TomPlanche/PassGuard/internal/logging"
)

// RedisConfig holds the connection settings of the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores each key as a plain Redis string. Every Put also publishes on
// a per-key channel inside the same MULTI block so other processes can follow
// changes.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client}, nil
}

// changeChannel is the pub/sub channel announcing writes to key.
func changeChannel(key string) string {
	return "passguard:changed:" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Publish(ctx, changeChannel(key), "put")
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: redis set %q: %w", key, err)
	}
	return nil
}

// Changes subscribes to the change channel of key.
func (r *Redis) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, changeChannel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("kv: redis subscribe: %w", err)
	}
	msgs := sub.Channel()
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				logging.Debugf("kv: redis unsubscribe: %v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
