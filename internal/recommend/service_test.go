// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/logging"
)

type staticProvider struct {
	mu    sync.Mutex
	rows  []RawRow
	err   error
	calls int
}

func (p *staticProvider) Rows(context.Context) ([]RawRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.rows, p.err
}

type memoryRepo struct {
	mu        sync.Mutex
	artifacts map[string]*Artifact
	saveErr   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{artifacts: make(map[string]*Artifact)}
}

func (r *memoryRepo) SaveArtifact(_ context.Context, name string, a *Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.artifacts[name] = a
	return nil
}

func (r *memoryRepo) LoadArtifact(_ context.Context, name string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func newTestService(t *testing.T, provider CatalogProvider, repo ArtifactRepository) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Build.Mode = ModeGenreOverlap
	svc, err := NewService(cfg, provider, repo, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestService_NotReady(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{}, nil)
	ctx := context.Background()

	if _, err := svc.Recommend(ctx, "A", 3); !errors.Is(err, ErrNotReady) {
		t.Errorf("Recommend() error = %v, want ErrNotReady", err)
	}
	if _, err := svc.RecommendForMany(ctx, []string{"A"}, 3, 10); !errors.Is(err, ErrNotReady) {
		t.Errorf("RecommendForMany() error = %v, want ErrNotReady", err)
	}
	if svc.Status().Ready {
		t.Error("Status().Ready = true before any build")
	}
}

func TestService_RebuildAndQuery(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	svc := newTestService(t, &staticProvider{rows: abcRows()}, repo)
	ctx := context.Background()

	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	recs, err := svc.Recommend(ctx, "A", 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if recs[0].Title != "B" || recs[0].Score != 1 {
		t.Errorf("Recommend(A)[0] = %+v, want B with score 1", recs[0])
	}

	many, err := svc.RecommendForMany(ctx, []string{"A", "missing"}, 3, 10)
	if err != nil {
		t.Fatalf("RecommendForMany() error = %v", err)
	}
	if want := []string{"B", "C"}; !reflect.DeepEqual(many, want) {
		t.Errorf("RecommendForMany() = %v, want %v", many, want)
	}

	st := svc.Status()
	if !st.Ready || st.Items != 3 || st.Version != 1 || st.Mode != "genre_overlap" || st.Building {
		t.Errorf("Status() = %+v", st)
	}
	if _, ok := repo.artifacts["default"]; !ok {
		t.Error("Rebuild() did not persist the artifact")
	}
}

func TestService_CachedResultsAreCopies(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{rows: abcRows()}, nil)
	ctx := context.Background()
	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	first, _ := svc.Recommend(ctx, "A", 2)
	first[0].Title = "mutated"

	second, _ := svc.Recommend(ctx, "A", 2)
	if second[0].Title != "B" {
		t.Errorf("cached result was mutated: %+v", second[0])
	}
	if hits, _, _ := svc.results.Stats(); hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
}

func TestService_SwapInvalidatesCache(t *testing.T) {
	t.Parallel()

	provider := &staticProvider{rows: abcRows()}
	svc := newTestService(t, provider, nil)
	ctx := context.Background()
	_ = svc.Rebuild(ctx)
	before, _ := svc.Recommend(ctx, "A", 1)

	provider.mu.Lock()
	provider.rows = append(abcRows(), RawRow{ID: 4, Title: "D", Genres: "Action|Adventure"})
	provider.mu.Unlock()
	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}

	after, _ := svc.Recommend(ctx, "A", 1)
	if before[0].Title != "B" || after[0].Title != "D" {
		t.Errorf("before = %v, after = %v, want B then D", before, after)
	}
	if svc.Status().Version != 2 {
		t.Errorf("Version = %d, want 2", svc.Status().Version)
	}
}

func TestService_SwapNil(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{rows: abcRows()}, nil)
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	active := svc.Current()

	if err := svc.Swap(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Swap(nil) error = %v, want ErrInvalidInput", err)
	}
	if svc.Current() != active {
		t.Error("Swap(nil) replaced the active snapshot")
	}
	if svc.Status().Version != 1 {
		t.Errorf("Version = %d, want 1", svc.Status().Version)
	}
}

func TestService_CanceledContext(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{rows: abcRows()}, nil)
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Recommend(ctx, "A", 2); !errors.Is(err, context.Canceled) {
		t.Errorf("Recommend() error = %v, want context.Canceled", err)
	}
	if _, err := svc.RecommendForMany(ctx, []string{"A"}, 3, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("RecommendForMany() error = %v, want context.Canceled", err)
	}
}

// TestService_SkippedTitlesLogRequestID changes the global zerolog level and
// does not run in parallel.
func TestService_SkippedTitlesLogRequestID(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Build.Mode = ModeGenreOverlap
	svc, err := NewService(cfg, &staticProvider{rows: abcRows()}, nil, zerolog.New(&buf).Level(zerolog.DebugLevel))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	if _, err := svc.RecommendForMany(ctx, []string{"A", "missing"}, 3, 10); err != nil {
		t.Fatalf("RecommendForMany() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-7"`) || !strings.Contains(out, `"missing"`) {
		t.Errorf("debug log missing request id or skipped title: %s", out)
	}
}

func TestService_RebuildInProgress(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{rows: abcRows()}, nil)
	svc.buildMu.Lock()
	defer svc.buildMu.Unlock()

	if err := svc.Rebuild(context.Background()); !errors.Is(err, ErrBuildInProgress) {
		t.Errorf("Rebuild() error = %v, want ErrBuildInProgress", err)
	}
}

func TestService_RebuildFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	provider := &staticProvider{rows: abcRows()}
	svc := newTestService(t, provider, nil)
	ctx := context.Background()
	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	active := svc.Current()

	provider.mu.Lock()
	provider.err = ErrBuildFailure
	provider.mu.Unlock()

	if err := svc.Rebuild(ctx); !errors.Is(err, ErrBuildFailure) {
		t.Errorf("Rebuild() error = %v, want ErrBuildFailure", err)
	}
	if svc.Current() != active {
		t.Error("failed rebuild replaced the active snapshot")
	}
	if svc.Status().LastError == "" {
		t.Error("Status().LastError empty after failed rebuild")
	}
}

func TestService_PersistFailure(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	repo.saveErr = errors.New("disk full")
	svc := newTestService(t, &staticProvider{rows: abcRows()}, repo)

	if err := svc.Rebuild(context.Background()); err == nil {
		t.Fatal("Rebuild() error = nil, want persist failure")
	}
	if svc.Current() != nil {
		t.Error("snapshot activated despite persist failure")
	}
}

func TestService_LoadPersisted(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	builder := newTestService(t, &staticProvider{rows: abcRows()}, repo)
	if err := builder.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	reader := newTestService(t, nil, repo)
	if err := reader.LoadPersisted(context.Background()); err != nil {
		t.Fatalf("LoadPersisted() error = %v", err)
	}
	if reader.Current().BuildID() != builder.Current().BuildID() {
		t.Errorf("BuildID = %s, want %s", reader.Current().BuildID(), builder.Current().BuildID())
	}

	empty := newTestService(t, nil, newMemoryRepo())
	if err := empty.LoadPersisted(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadPersisted(empty) error = %v, want ErrNotFound", err)
	}
}

func TestService_ConcurrentReadersDuringRebuild(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &staticProvider{rows: sampleRows()}, nil)
	ctx := context.Background()
	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				recs, err := svc.Recommend(ctx, "Heat", 3)
				if err != nil || len(recs) != 3 {
					t.Errorf("Recommend() = %v, %v", recs, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if err := svc.Rebuild(ctx); err != nil && !errors.Is(err, ErrBuildInProgress) {
			t.Errorf("Rebuild() error = %v", err)
		}
	}
	wg.Wait()
}

func TestNewService_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Build.MaxFeatures = 0
	if _, err := NewService(cfg, nil, nil, zerolog.Nop()); err == nil {
		t.Error("NewService() error = nil, want invalid config error")
	}
}
