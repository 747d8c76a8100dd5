// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/TomPlanche/PassGuard/internal/kv"
	"github.com/TomPlanche/PassGuard/internal/metrics"
	"github.com/TomPlanche/PassGuard/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errDiskFull = errors.New("disk full")

// countingBackend wraps a memory backend, counts writes and fails on demand.
type countingBackend struct {
	*kv.Memory
	puts    atomic.Int32
	failPut atomic.Bool
	failGet atomic.Bool
}

func newCountingBackend() *countingBackend {
	return &countingBackend{Memory: kv.NewMemory()}
}

func (b *countingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.failGet.Load() {
		return nil, false, errDiskFull
	}
	return b.Memory.Get(ctx, key)
}

func (b *countingBackend) Put(ctx context.Context, key string, value []byte) error {
	if b.failPut.Load() {
		return errDiskFull
	}
	b.puts.Add(1)
	return b.Memory.Put(ctx, key, value)
}

// notifyingBackend lets tests simulate writes made by another process.
type notifyingBackend struct {
	*kv.Memory
	changes chan struct{}
}

func (b *notifyingBackend) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	return b.changes, nil
}

// recorder counts measurements by op and result.
type recorder struct {
	mu          sync.Mutex
	ops         map[string]int
	profiles    int
	subscribers int
}

func newRecorder() *recorder { return &recorder{ops: make(map[string]int)} }

func (r *recorder) ObserveOperation(op, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op+"/"+result]++
}

func (r *recorder) SetProfiles(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = n
}

func (r *recorder) AddSubscribers(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers += delta
}

func (r *recorder) liveSubscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribers
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

// fixedClock always returns the same instant.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestStore(t *testing.T, b kv.Backend, opts ...Option) *Store {
	t.Helper()
	s := New(b, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func profile(id, name string) model.RuleProfile {
	p := model.NewRuleProfile(name, time.UnixMilli(1_000))
	p.ID = id
	return p
}

func names(profiles []model.RuleProfile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Name)
	}
	return out
}

func nextSnapshot(t *testing.T, ch <-chan []model.RuleProfile) []model.RuleProfile {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed unexpectedly")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
	}
	return nil
}

func expectNoSnapshot(t *testing.T, ch <-chan []model.RuleProfile) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected snapshot %v", names(v))
	case <-time.After(50 * time.Millisecond):
	}
}

func waitWatchClosed(t *testing.T, ch <-chan []model.RuleProfile) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel was not closed")
		}
	}
}

func TestLoadAll_MissingKeyIsEmpty(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	got, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty non-nil list, got %#v", got)
	}
}

// Persisted garbage reads as an empty collection rather than an error.
func TestLoadAll_CorruptDataIsEmpty(t *testing.T) {
	b := kv.NewMemory()
	if err := b.Put(context.Background(), DefaultKey, []byte("{not valid json")); err != nil {
		t.Fatalf("seed backend: %v", err)
	}
	s := newTestStore(t, b)
	got, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll returned error for corrupt data: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected [], got %v", names(got))
	}
}

func TestLoadAll_BackendErrorIsReturned(t *testing.T) {
	b := newCountingBackend()
	b.failGet.Store(true)
	s := newTestStore(t, b)
	if _, err := s.LoadAll(context.Background()); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestUpsert_AppendsInOrder(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		if err := s.Upsert(ctx, profile("id-"+n, n)); err != nil {
			t.Fatalf("Upsert %s: %v", n, err)
		}
	}
	got, _ := s.LoadAll(ctx)
	if strings.Join(names(got), ",") != "a,b,c" {
		t.Fatalf("unexpected order %v", names(got))
	}
	p, ok, err := s.GetByID(ctx, "id-b")
	if err != nil || !ok || p.Name != "b" {
		t.Fatalf("GetByID: %+v ok=%v err=%v", p, ok, err)
	}
	if _, ok, err := s.GetByID(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetByID missing: ok=%v err=%v", ok, err)
	}
}

func TestUpsert_ReplaceKeepsCreatedAtAndAdvancesUpdatedAt(t *testing.T) {
	s := newTestStore(t, kv.NewMemory(), WithClock(fixedClock(5_000)))
	ctx := context.Background()

	p := profile("p1", "Work")
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	edited := p
	edited.Name = "Work 2"
	edited.CreatedAt = 42
	if err := s.Upsert(ctx, edited); err != nil {
		t.Fatalf("Upsert edited: %v", err)
	}
	first, _, _ := s.GetByID(ctx, "p1")
	if first.Name != "Work 2" || first.CreatedAt != 1_000 || first.UpdatedAt != 5_000 {
		t.Fatalf("unexpected entry after replace: %+v", first)
	}

	// Saving again within the same millisecond still moves updatedAt forward.
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	second, _, _ := s.GetByID(ctx, "p1")
	if second.UpdatedAt <= first.UpdatedAt {
		t.Fatalf("updatedAt did not advance: %d -> %d", first.UpdatedAt, second.UpdatedAt)
	}
	all, _ := s.LoadAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected a single entry, got %d", len(all))
	}
}

func TestUpsert_InvalidIsRejected(t *testing.T) {
	b := newCountingBackend()
	rec := newRecorder()
	s := newTestStore(t, b, WithMetrics(rec))
	p := profile("p1", "Bad")
	p.MinLength = 0
	if err := s.Upsert(context.Background(), p); !errors.Is(err, model.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if n := b.puts.Load(); n != 0 {
		t.Fatalf("invalid profile caused %d writes", n)
	}
	if rec.count("upsert/"+metrics.ResultInvalid) != 1 {
		t.Fatalf("invalid upsert not recorded: %v", rec.ops)
	}
}

func TestUpsert_BlankIDGetsFreshID(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	p := profile("  ", "NoID")
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	all, _ := s.LoadAll(ctx)
	if len(all) != 1 || strings.TrimSpace(all[0].ID) == "" {
		t.Fatalf("expected a generated id, got %+v", all)
	}
}

func TestUpsert_FailedWriteKeepsPreviousState(t *testing.T) {
	b := newCountingBackend()
	rec := newRecorder()
	s := newTestStore(t, b, WithMetrics(rec))
	ctx := context.Background()
	if err := s.Upsert(ctx, profile("p1", "One")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	b.failPut.Store(true)
	err := s.Upsert(ctx, profile("p2", "Two"))
	if !errors.Is(err, ErrStorage) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected ErrStorage wrapping the backend error, got %v", err)
	}
	b.failPut.Store(false)

	all, _ := s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "One" {
		t.Fatalf("failed write changed the collection: %v", names(all))
	}
	if rec.count("upsert/"+metrics.ResultError) != 1 {
		t.Fatalf("failed upsert not recorded: %v", rec.ops)
	}
}

func TestUpsert_ConcurrentWritersLoseNothing(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Upsert(ctx, profile(fmt.Sprintf("id-%02d", i), fmt.Sprintf("P%02d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	all, _ := s.LoadAll(ctx)
	if len(all) != n {
		t.Fatalf("expected %d profiles, got %d", n, len(all))
	}
	seen := make(map[string]bool)
	for _, p := range all {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
}

// Deleting an unknown id reports false and writes nothing.
func TestDelete_MissingID(t *testing.T) {
	b := newCountingBackend()
	s := newTestStore(t, b)
	ctx := context.Background()
	if err := s.Upsert(ctx, profile("p1", "One")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	before, _ := s.ExportJSON(ctx)
	puts := b.puts.Load()

	found, err := s.Delete(ctx, "no-such-id")
	if err != nil || found {
		t.Fatalf("Delete: found=%v err=%v", found, err)
	}
	if b.puts.Load() != puts {
		t.Fatal("Delete of a missing id wrote to the backend")
	}
	after, _ := s.ExportJSON(ctx)
	if before != after {
		t.Fatalf("collection changed:\n%s\n%s", before, after)
	}
}

func TestDelete_Found(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		_ = s.Upsert(ctx, profile("id-"+n, n))
	}
	found, err := s.Delete(ctx, "id-b")
	if err != nil || !found {
		t.Fatalf("Delete: found=%v err=%v", found, err)
	}
	all, _ := s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "a,c" {
		t.Fatalf("unexpected collection %v", names(all))
	}
}

func TestDeleteAll(t *testing.T) {
	b := kv.NewMemory()
	s := newTestStore(t, b)
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "One"))
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	raw, ok, _ := b.Get(ctx, DefaultKey)
	if !ok || string(raw) != "[]" {
		t.Fatalf("expected [] persisted, got %q", raw)
	}
}

func TestExportJSON_PrettyPrinted(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "One"))
	out, err := s.ExportJSON(ctx)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if !strings.HasPrefix(out, "[\n  {\n    \"id\": \"p1\"") {
		t.Fatalf("export is not pretty-printed:\n%s", out)
	}
	var decoded []model.RuleProfile
	if err := json.Unmarshal([]byte(out), &decoded); err != nil || len(decoded) != 1 {
		t.Fatalf("export does not decode: %v", err)
	}
}

// One invalid and one valid entry: only the valid one is counted and stored.
func TestImportJSON_DropsInvalidEntries(t *testing.T) {
	b := newCountingBackend()
	s := newTestStore(t, b)
	ctx := context.Background()
	text := `[
	  {"id":"bad","name":"Bad","minLength":0,"maxLength":10},
	  {"id":"x","name":"X","minLength":8,"maxLength":20,
	   "characterRules":{"UPPERCASE":"REQUIRED","LOWERCASE":"OPTIONAL","DIGITS":"OPTIONAL","SYMBOLS":"FORBIDDEN"},
	   "minimumCounts":{"UPPERCASE":2},"forbiddenCharacters":["l"],"createdAt":10,"updatedAt":10}
	]`
	n, err := s.ImportJSON(ctx, text)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 imported, got %d", n)
	}
	if b.puts.Load() != 1 {
		t.Fatalf("import took %d writes", b.puts.Load())
	}
	all, _ := s.LoadAll(ctx)
	if len(all) != 1 || all[0].ID != "x" || all[0].MinimumCounts.Uppercase != 2 {
		t.Fatalf("unexpected collection %+v", all)
	}
	if !all[0].ForbiddenCharacters.Contains('l') {
		t.Fatal("forbidden characters lost on import")
	}
}

func TestImportJSON_MalformedHasNoEffect(t *testing.T) {
	b := newCountingBackend()
	rec := newRecorder()
	s := newTestStore(t, b, WithMetrics(rec))
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "One"))
	puts := b.puts.Load()

	for _, text := range []string{"{not valid json", `{"id":"x"}`, `[1,2]`} {
		n, err := s.ImportJSON(ctx, text)
		if !errors.Is(err, ErrImportDecode) || n != 0 {
			t.Fatalf("ImportJSON(%q): n=%d err=%v", text, n, err)
		}
	}
	if b.puts.Load() != puts {
		t.Fatal("malformed import wrote to the backend")
	}
	if rec.count("import/"+metrics.ResultInvalid) != 3 {
		t.Fatalf("decode failures not recorded: %v", rec.ops)
	}
}

func TestImportJSON_NullIsRejected(t *testing.T) {
	b := newCountingBackend()
	s := newTestStore(t, b)
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "One"))
	puts := b.puts.Load()

	for _, text := range []string{"null", " null ", "[null]", `[{"id":"p2","name":"Two"},null]`} {
		n, err := s.ImportJSON(ctx, text)
		if !errors.Is(err, ErrImportDecode) || n != 0 {
			t.Fatalf("ImportJSON(%q): n=%d err=%v", text, n, err)
		}
	}
	if b.puts.Load() != puts {
		t.Fatal("rejected import wrote to the backend")
	}
	all, err := s.LoadAll(ctx)
	if err != nil || len(all) != 1 || all[0].ID != "p1" {
		t.Fatalf("collection changed: %+v err=%v", all, err)
	}

	// An empty list is still a valid, empty import.
	if n, err := s.ImportJSON(ctx, "[]"); err != nil || n != 0 {
		t.Fatalf("ImportJSON([]): n=%d err=%v", n, err)
	}
}

func TestImportJSON_BlankIDsGetFreshIDs(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	n, err := s.ImportJSON(ctx, `[{"name":"A"},{"id":"","name":"B"}]`)
	if err != nil || n != 2 {
		t.Fatalf("ImportJSON: n=%d err=%v", n, err)
	}
	all, _ := s.LoadAll(ctx)
	if len(all) != 2 || all[0].ID == "" || all[1].ID == "" || all[0].ID == all[1].ID {
		t.Fatalf("expected two distinct fresh ids, got %+v", all)
	}
}

// Importing an export keeps ids, names and createdAt and only moves updatedAt.
func TestImportJSON_ExportRoundTrip(t *testing.T) {
	clock := atomic.Int64{}
	clock.Store(2_000)
	s := newTestStore(t, kv.NewMemory(), WithClock(func() time.Time { return time.UnixMilli(clock.Load()) }))
	ctx := context.Background()
	if _, err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	before, _ := s.LoadAll(ctx)
	text, _ := s.ExportJSON(ctx)

	clock.Store(9_000)
	n, err := s.ImportJSON(ctx, text)
	if err != nil || n != len(before) {
		t.Fatalf("ImportJSON: n=%d err=%v", n, err)
	}
	after, _ := s.LoadAll(ctx)
	if len(after) != len(before) {
		t.Fatalf("size changed %d -> %d", len(before), len(after))
	}
	for i := range before {
		b, a := before[i], after[i]
		if a.ID != b.ID || a.Name != b.Name || a.CreatedAt != b.CreatedAt {
			t.Fatalf("entry %d changed identity: %+v -> %+v", i, b, a)
		}
		if a.UpdatedAt <= b.UpdatedAt {
			t.Fatalf("entry %d updatedAt did not advance", i)
		}
		a.UpdatedAt = b.UpdatedAt
		if !jsonEqual(t, a, b) {
			t.Fatalf("entry %d content changed", i)
		}
	}
}

func jsonEqual(t *testing.T, a, b model.RuleProfile) bool {
	t.Helper()
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

func TestReplaceAll(t *testing.T) {
	b := newCountingBackend()
	s := newTestStore(t, b)
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("old", "Old"))

	bad := profile("b", "")
	if err := s.ReplaceAll(ctx, []model.RuleProfile{profile("a", "A"), bad}); !errors.Is(err, model.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	all, _ := s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "Old" {
		t.Fatalf("rejected replace changed the collection: %v", names(all))
	}

	a := profile("a", "A")
	a.CreatedAt, a.UpdatedAt = 7, 8
	dup := profile("a", "A2")
	if err := s.ReplaceAll(ctx, []model.RuleProfile{a, profile("c", "C"), dup}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	all, _ = s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "A2,C" {
		t.Fatalf("unexpected collection %v", names(all))
	}
	if err := s.ReplaceAll(ctx, []model.RuleProfile{a}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, _, _ := s.GetByID(ctx, "a")
	if got.CreatedAt != 7 || got.UpdatedAt != 8 {
		t.Fatalf("timestamps not kept: %+v", got)
	}
}

func TestSeedDefaults(t *testing.T) {
	s := newTestStore(t, kv.NewMemory(), WithClock(fixedClock(3_000)))
	ctx := context.Background()

	seeded, err := s.SeedDefaults(ctx)
	if err != nil || !seeded {
		t.Fatalf("SeedDefaults: seeded=%v err=%v", seeded, err)
	}
	all, _ := s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "General,Gmail,Banking,Gaming" {
		t.Fatalf("unexpected defaults %v", names(all))
	}
	for _, p := range all {
		if p.CreatedAt != 3_000 || p.UpdatedAt != 3_000 || !p.IsValid() {
			t.Fatalf("bad seeded profile %+v", p)
		}
	}

	seeded, err = s.SeedDefaults(ctx)
	if err != nil || seeded {
		t.Fatalf("second SeedDefaults: seeded=%v err=%v", seeded, err)
	}
	again, _ := s.LoadAll(ctx)
	if len(again) != 4 || again[0].ID != all[0].ID {
		t.Fatal("second seed changed the collection")
	}
}

func TestSeedDefaults_NonEmptyIsNoop(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "Mine"))
	seeded, err := s.SeedDefaults(ctx)
	if err != nil || seeded {
		t.Fatalf("SeedDefaults: seeded=%v err=%v", seeded, err)
	}
	all, _ := s.LoadAll(ctx)
	if strings.Join(names(all), ",") != "Mine" {
		t.Fatalf("unexpected collection %v", names(all))
	}
}

func TestSeedDefaults_ConcurrentCallsSeedOnce(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx := context.Background()
	var wg sync.WaitGroup
	var seededCount atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.SeedDefaults(ctx); err == nil && ok {
				seededCount.Add(1)
			}
		}()
	}
	wg.Wait()
	all, _ := s.LoadAll(ctx)
	if len(all) != 4 || seededCount.Load() != 1 {
		t.Fatalf("expected one seed of 4 profiles, got %d profiles and %d seeds", len(all), seededCount.Load())
	}
}

// Seeding, then saving over a seeded id, replaces that entry in place.
func TestSeedThenUpsertSeededID(t *testing.T) {
	clock := atomic.Int64{}
	clock.Store(1_000)
	s := newTestStore(t, kv.NewMemory(), WithClock(func() time.Time { return time.UnixMilli(clock.Load()) }))
	ctx := context.Background()
	if _, err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	all, _ := s.LoadAll(ctx)
	target := all[2]
	target.Name = "My Bank"
	target.MaxLength = 20

	clock.Store(2_000)
	if err := s.Upsert(ctx, target); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	after, _ := s.LoadAll(ctx)
	if len(after) != 4 {
		t.Fatalf("expected 4 profiles, got %d", len(after))
	}
	got := after[2]
	if got.ID != target.ID || got.Name != "My Bank" || got.MaxLength != 20 {
		t.Fatalf("entry not replaced: %+v", got)
	}
	if got.UpdatedAt <= all[2].UpdatedAt || got.CreatedAt != all[2].CreatedAt {
		t.Fatalf("timestamps wrong: before %+v after %+v", all[2], got)
	}
}

func TestWatch_InitialThenUpdates(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(t, kv.NewMemory(), WithMetrics(rec))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Watch(ctx)
	if first := nextSnapshot(t, ch); len(first) != 0 {
		t.Fatalf("expected an empty initial snapshot, got %v", names(first))
	}
	if err := s.Upsert(ctx, profile("p1", "One")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := nextSnapshot(t, ch); strings.Join(names(got), ",") != "One" {
		t.Fatalf("unexpected snapshot %v", names(got))
	}

	// A rejected mutation and a no-op delete publish nothing.
	_ = s.Upsert(ctx, profile("p2", ""))
	_, _ = s.Delete(ctx, "missing")
	expectNoSnapshot(t, ch)

	cancel()
	waitWatchClosed(t, ch)
	if n := rec.liveSubscribers(); n != 0 {
		t.Fatalf("subscriber gauge not restored: %d", n)
	}
}

// A slow reader only ever sees the latest committed snapshot.
func TestWatch_LatestSnapshotWins(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Watch(ctx)
	for _, n := range []string{"a", "b", "c"} {
		if err := s.Upsert(ctx, profile("id-"+n, n)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	if got := nextSnapshot(t, ch); strings.Join(names(got), ",") != "a,b,c" {
		t.Fatalf("expected the latest snapshot, got %v", names(got))
	}
	expectNoSnapshot(t, ch)
}

func TestWatch_SubscribersGetIndependentCopies(t *testing.T) {
	s := newTestStore(t, kv.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Upsert(ctx, profile("p1", "One"))

	a, b := s.Watch(ctx), s.Watch(ctx)
	first := nextSnapshot(t, a)
	first[0].Name = "mutated"
	if got := nextSnapshot(t, b); got[0].Name != "One" {
		t.Fatalf("subscribers share snapshot memory: %v", names(got))
	}
}

func TestWatch_ClosedByStoreClose(t *testing.T) {
	s := New(kv.NewMemory())
	ch := s.Watch(context.Background())
	nextSnapshot(t, ch)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitWatchClosed(t, ch)

	late := s.Watch(context.Background())
	waitWatchClosed(t, late)

	if _, err := s.LoadAll(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Upsert(context.Background(), profile("p", "P")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWatch_InitialReadFailureYieldsEmpty(t *testing.T) {
	b := newCountingBackend()
	s := newTestStore(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.failGet.Store(true)
	ch := s.Watch(ctx)
	if got := nextSnapshot(t, ch); len(got) != 0 {
		t.Fatalf("expected an empty snapshot, got %v", names(got))
	}
}

func TestWatch_FollowsExternalChanges(t *testing.T) {
	b := &notifyingBackend{Memory: kv.NewMemory(), changes: make(chan struct{}, 1)}
	s := newTestStore(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Watch(ctx)
	nextSnapshot(t, ch)

	// Another process writes the key directly.
	other := New(b.Memory)
	defer func() { _ = other.Close() }()
	if err := other.Upsert(ctx, profile("ext", "External")); err != nil {
		t.Fatalf("external Upsert: %v", err)
	}
	b.changes <- struct{}{}
	if got := nextSnapshot(t, ch); strings.Join(names(got), ",") != "External" {
		t.Fatalf("external change not published: %v", names(got))
	}

	// A signal without a content change publishes nothing.
	b.changes <- struct{}{}
	expectNoSnapshot(t, ch)
}

func TestWatch_FileBackendExternalEdit(t *testing.T) {
	dir := t.TempDir()
	fb := kv.NewFile(dir)
	defer func() { _ = fb.Close() }()
	s := New(fb)
	defer func() { _ = s.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Upsert(ctx, profile("p1", "One")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ch := s.Watch(ctx)
	nextSnapshot(t, ch)

	edited := profile("p2", "Edited")
	data, _ := json.MarshalIndent([]model.RuleProfile{edited}, "", "  ")
	path, _ := fb.Path(DefaultKey)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if strings.Join(names(got), ",") == "Edited" {
				return
			}
		case <-deadline:
			t.Fatal("external file edit was not published")
		}
	}
}

func TestWithKey(t *testing.T) {
	b := kv.NewMemory()
	s := newTestStore(t, b, WithKey("other_key"))
	ctx := context.Background()
	_ = s.Upsert(ctx, profile("p1", "One"))
	if _, ok, _ := b.Get(ctx, DefaultKey); ok {
		t.Fatal("default key written despite WithKey")
	}
	if _, ok, _ := b.Get(ctx, "other_key"); !ok {
		t.Fatal("custom key not written")
	}
}
