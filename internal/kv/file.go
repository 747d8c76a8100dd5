// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/TomPlanche/PassGuard/internal/logging"
)

// File stores every key as its own file, <dir>/<key>.json. Writes go to a
// temporary file in the same directory which is synced and then renamed over
// the target, so readers see either the old or the new document.
type File struct {
	dir string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFile returns a file backend rooted at dir. The directory is created on
// the first write.
func NewFile(dir string) *File {
	return &File{dir: dir, done: make(chan struct{})}
}

// Dir returns the directory the backend writes into.
func (f *File) Dir() string { return f.dir }

// Path returns the file that holds key.
func (f *File) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("kv: invalid file key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if f.isClosed() {
		return nil, false, ErrClosed
	}
	p, err := f.Path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: read %s: %w", p, err)
	}
	return data, true, nil
}

func (f *File) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.isClosed() {
		return ErrClosed
	}
	p, err := f.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("kv: create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("kv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("kv: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("kv: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("kv: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("kv: replace %s: %w", p, err)
	}
	committed = true
	return nil
}

// Changes watches the data directory and signals whenever the file holding
// key is created, written, renamed or removed. The backend's own writes are
// reported too.
func (f *File) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	p, err := f.Path(key)
	if err != nil {
		return nil, err
	}
	if f.isClosed() {
		return nil, ErrClosed
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return nil, fmt.Errorf("kv: create data dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("kv: create watcher: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("kv: watch %s: %w", f.dir, err)
	}

	out := make(chan struct{}, 1)
	target := filepath.Clean(p)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				signal(out)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Warnf("kv: file watcher error: %v", err)
			}
		}
	}()
	return out, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}
