// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package store persists the collection of rule profiles as one JSON document
// in a kv.Backend. Every mutation is a whole-collection cycle (read, decode,
// mutate, encode, write) serialized by a write lock, and every committed
// cycle is broadcast to Watch subscribers.
package store // import "github.com/TomPlanche/PassGuard/internal/store"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/TomPlanche/PassGuard/internal/defaults"
	"github.com/TomPlanche/PassGuard/internal/kv"
	"github.com/TomPlanche/PassGuard/internal/logging"
	"github.com/TomPlanche/PassGuard/internal/metrics"
	"github.com/TomPlanche/PassGuard/internal/model"
)

// DefaultKey is the backend key holding the profile collection.
const DefaultKey = "profiles_json"

var (
	// ErrStorage wraps every failure of the underlying backend.
	ErrStorage = errors.New("profile storage failed")
	// ErrImportDecode is returned when imported text is not a list of profiles.
	ErrImportDecode = errors.New("cannot decode imported profiles")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("profile store closed")
)

// Store is the profile store. It is safe for concurrent use. The store does
// not own its backend; callers close the backend after closing the store.
type Store struct {
	backend kv.Backend
	key     string
	now     func() time.Time
	log     *clog.Logger
	rec     metrics.Recorder

	// mu is held for writing across every mutation cycle and for reading
	// while a consistent snapshot is taken.
	mu  sync.RWMutex
	hub *hub

	stop      context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithKey stores the collection under key instead of DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for recovered decode failures and
// background errors.
func WithLogger(l *clog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics sets the recorder that receives operation measurements.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// New creates a store on top of backend. When the backend implements
// kv.Notifier the store follows external changes until Close.
func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		log:     logging.L,
		rec:     metrics.Nop{},
		closed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.hub = newHub(s.rec)

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if n, ok := backend.(kv.Notifier); ok {
		changes, err := n.Changes(ctx, s.key)
		if err != nil {
			s.log.Warn("external change notifications unavailable", "err", err)
		} else {
			s.wg.Add(1)
			go s.followChanges(ctx, changes)
		}
	}
	return s
}

// Close stops following external changes and closes every Watch channel.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.stop()
		s.wg.Wait()
		s.hub.close()
	})
	return nil
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// observe records one operation with its outcome.
func (s *Store) observe(op string, start time.Time, err error) {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidProfile), errors.Is(err, ErrImportDecode):
		result = metrics.ResultInvalid
	default:
		result = metrics.ResultError
	}
	s.rec.ObserveOperation(op, result, time.Since(start))
}

// read loads and decodes the persisted collection. A missing key or an
// undecodable document yields an empty list; only backend failures are
// returned as errors.
func (s *Store) read(ctx context.Context) ([]model.RuleProfile, error) {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.key, err)
	}
	if !ok {
		return []model.RuleProfile{}, nil
	}
	var profiles []model.RuleProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		s.log.Warn("stored profiles could not be decoded, using an empty list", "key", s.key, "err", err)
		return []model.RuleProfile{}, nil
	}
	if profiles == nil {
		profiles = []model.RuleProfile{}
	}
	return profiles, nil
}

func encode(profiles []model.RuleProfile) ([]byte, error) {
	if profiles == nil {
		profiles = []model.RuleProfile{}
	}
	return json.MarshalIndent(profiles, "", "  ")
}

// write encodes and persists profiles, then publishes the new snapshot.
// Callers hold s.mu for writing.
func (s *Store) write(ctx context.Context, profiles []model.RuleProfile) error {
	data, err := encode(profiles)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, s.key, err)
	}
	s.rec.SetProfiles(len(profiles))
	s.hub.publish(data, profiles)
	return nil
}

// mutate runs one serialized read-modify-write cycle. fn returns the new
// collection and whether it must be written.
func (s *Store) mutate(ctx context.Context, op string, fn func([]model.RuleProfile) ([]model.RuleProfile, bool, error)) (err error) {
	start := time.Now()
	defer func() { s.observe(op, start, err) }()
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		return err
	}
	next, changed, err := fn(current)
	if err != nil || !changed {
		return err
	}
	return s.write(ctx, next)
}

// LoadAll returns the current collection in insertion order.
func (s *Store) LoadAll(ctx context.Context) (profiles []model.RuleProfile, err error) {
	start := time.Now()
	defer func() { s.observe("load", start, err) }()
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(ctx)
}

// GetByID returns the profile with the given id. A missing profile is
// reported through the boolean.
func (s *Store) GetByID(ctx context.Context, id string) (model.RuleProfile, bool, error) {
	profiles, err := s.LoadAll(ctx)
	if err != nil {
		return model.RuleProfile{}, false, err
	}
	if i := indexOf(profiles, id); i >= 0 {
		return profiles[i], true, nil
	}
	return model.RuleProfile{}, false, nil
}

func indexOf(profiles []model.RuleProfile, id string) int {
	for i := range profiles {
		if profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// merge applies the upsert rule for p to profiles and returns the result.
// A known id is replaced in place, keeping the stored creation time and
// moving updatedAt strictly forward. An unknown id is appended.
func merge(profiles []model.RuleProfile, p model.RuleProfile, now int64) []model.RuleProfile {
	if i := indexOf(profiles, p.ID); i >= 0 {
		prev := profiles[i]
		p.CreatedAt = prev.CreatedAt
		p.UpdatedAt = max(now, prev.UpdatedAt+1)
		profiles[i] = p
		return profiles
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = p.CreatedAt
	}
	return append(profiles, p)
}

// Upsert validates p and stores it. A blank id is replaced by a fresh one.
func (s *Store) Upsert(ctx context.Context, p model.RuleProfile) error {
	p = p.Clone()
	if strings.TrimSpace(p.ID) == "" {
		p.ID = model.GenerateID()
	}
	return s.mutate(ctx, "upsert", func(current []model.RuleProfile) ([]model.RuleProfile, bool, error) {
		if err := p.Validate(); err != nil {
			return nil, false, err
		}
		return merge(current, p, model.Millis(s.now())), true, nil
	})
}

// Delete removes the profile with the given id and reports whether it
// existed. Nothing is written when it did not.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.mutate(ctx, "delete", func(current []model.RuleProfile) ([]model.RuleProfile, bool, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, false, nil
		}
		found = true
		return append(current[:i], current[i+1:]...), true, nil
	})
	return found, err
}

// DeleteAll replaces the collection with an empty list.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.mutate(ctx, "delete_all", func([]model.RuleProfile) ([]model.RuleProfile, bool, error) {
		return []model.RuleProfile{}, true, nil
	})
}

// ExportJSON returns the current collection as pretty-printed JSON.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	profiles, err := s.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	data, err := encode(profiles)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	return string(data), nil
}

// decodeImport parses text as a JSON list of profile objects. A null list or
// a null element is not a list of profiles.
func decodeImport(text string) ([]model.RuleProfile, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportDecode, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a list", ErrImportDecode)
	}
	imported := make([]model.RuleProfile, 0, len(raw))
	for i, elem := range raw {
		if strings.TrimSpace(string(elem)) == "null" {
			return nil, fmt.Errorf("%w: entry %d is null", ErrImportDecode, i)
		}
		var p model.RuleProfile
		if err := json.Unmarshal(elem, &p); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrImportDecode, i, err)
		}
		imported = append(imported, p)
	}
	return imported, nil
}

// ImportJSON merges the profiles encoded in text into the collection in a
// single write and returns how many valid entries were processed. Text that
// is not a list of profiles fails with ErrImportDecode and changes nothing.
// Invalid entries are dropped silently; entries without an id get one.
func (s *Store) ImportJSON(ctx context.Context, text string) (int, error) {
	start := time.Now()
	imported, err := decodeImport(text)
	if err != nil {
		s.observe("import", start, err)
		return 0, err
	}
	valid := make([]model.RuleProfile, 0, len(imported))
	for _, p := range imported {
		if !p.IsValid() {
			continue
		}
		if strings.TrimSpace(p.ID) == "" {
			p.ID = model.GenerateID()
		}
		valid = append(valid, p)
	}
	err = s.mutate(ctx, "import", func(current []model.RuleProfile) ([]model.RuleProfile, bool, error) {
		now := model.Millis(s.now())
		for _, p := range valid {
			current = merge(current, p, now)
		}
		return current, true, nil
	})
	if err != nil {
		return 0, err
	}
	return len(valid), nil
}

// ReplaceAll validates every profile and swaps the whole collection in one
// write. Timestamps are kept as given. A later duplicate id replaces the
// earlier entry in place.
func (s *Store) ReplaceAll(ctx context.Context, profiles []model.RuleProfile) error {
	next := make([]model.RuleProfile, 0, len(profiles))
	for _, p := range profiles {
		p = p.Clone()
		if strings.TrimSpace(p.ID) == "" {
			p.ID = model.GenerateID()
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		if i := indexOf(next, p.ID); i >= 0 {
			next[i] = p
			continue
		}
		next = append(next, p)
	}
	return s.mutate(ctx, "replace_all", func([]model.RuleProfile) ([]model.RuleProfile, bool, error) {
		return next, true, nil
	})
}

// SeedDefaults writes the default profiles when the collection is empty and
// reports whether it did. The emptiness check and the write share one cycle.
func (s *Store) SeedDefaults(ctx context.Context) (bool, error) {
	var seeded bool
	err := s.mutate(ctx, "seed", func(current []model.RuleProfile) ([]model.RuleProfile, bool, error) {
		if len(current) > 0 {
			return nil, false, nil
		}
		seeded = true
		return defaults.Profiles(s.now()), true, nil
	})
	return seeded && err == nil, err
}

// Watch returns a channel that first receives the current collection and
// then every newly committed one. The channel holds only the latest snapshot;
// a slow reader skips intermediate states. It is closed when ctx ends or the
// store is closed.
func (s *Store) Watch(ctx context.Context) <-chan []model.RuleProfile {
	s.mu.RLock()
	profiles, err := s.read(ctx)
	if err != nil {
		s.log.Error("profile watch could not read the current collection", "err", err)
		profiles = []model.RuleProfile{}
	}
	data, encErr := encode(profiles)
	if encErr != nil {
		data = nil
	}
	sub := s.hub.subscribe(data, profiles)
	s.mu.RUnlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		s.hub.unsubscribe(sub)
	}()
	return sub.ch
}

// followChanges reloads the collection whenever the backend reports an
// external change and publishes it when it differs from the last snapshot.
func (s *Store) followChanges(ctx context.Context, changes <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			s.reload(ctx)
		}
	}
}

func (s *Store) reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles, err := s.read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("reloading profiles after an external change failed", "err", err)
		}
		return
	}
	data, err := encode(profiles)
	if err != nil {
		return
	}
	if s.hub.publish(data, profiles) {
		s.rec.SetProfiles(len(profiles))
		s.log.Debug("profiles changed outside this process", "count", len(profiles))
	}
}
