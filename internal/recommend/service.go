// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// CatalogProvider supplies the raw rows for a build.
type CatalogProvider interface {
	Rows(ctx context.Context) ([]RawRow, error)
}

// ArtifactRepository persists artifacts under a name.
type ArtifactRepository interface {
	SaveArtifact(ctx context.Context, name string, a *Artifact) error
	LoadArtifact(ctx context.Context, name string) (*Artifact, error)
}

type queryKey struct {
	buildID string
	title   string
	k       int
}

// Service serves queries from the active snapshot and replaces it on rebuild.
// Readers never block: the active snapshot is swapped through an atomic pointer.
type Service struct {
	cfg      *Config
	provider CatalogProvider
	repo     ArtifactRepository
	logger   zerolog.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Int64

	// buildMu is held for the duration of a rebuild.
	buildMu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	results *cache.LRU[queryKey, []Recommendation]
}

// NewService creates a service with no active snapshot. repo may be nil, in
// which case snapshots are not persisted.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(cfg *Config, provider CatalogProvider, repo ArtifactRepository, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Service{
		cfg:      cfg.Clone(),
		provider: provider,
		repo:     repo,
		logger:   logger.With().Str("component", "recommender").Logger(),
	}
	if cfg.Cache.Enabled {
		s.results = cache.NewLRU[queryKey, []Recommendation](cfg.Cache.Size, cfg.Cache.TTL)
	}
	return s, nil
}

// Config returns a copy of the service configuration.
func (s *Service) Config() *Config {
	return s.cfg.Clone()
}

// Current returns the active snapshot, or nil before the first swap.
func (s *Service) Current() *Snapshot {
	return s.current.Load()
}

// Swap activates snap. Cached results of the previous snapshot stop matching
// because cache keys carry the build ID. A nil snapshot is rejected and the
// active one stays in place.
func (s *Service) Swap(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidInput)
	}
	s.current.Store(snap)
	version := s.version.Add(1)

	s.statusMu.Lock()
	s.status.Ready = true
	s.status.BuildID = snap.BuildID()
	s.status.Version = version
	s.status.Mode = snap.Mode().String()
	s.status.Items = snap.Len()
	s.status.VocabularySize = snap.Vocabulary().Len()
	s.status.BuiltAt = snap.BuiltAt()
	s.statusMu.Unlock()

	if s.results != nil {
		s.results.Clear()
	}
	metrics.UpdateSnapshot(version, snap.Len(), snap.Vocabulary().Len())

	s.logger.Info().
		Str("build_id", snap.BuildID()).
		Int64("version", version).
		Int("items", snap.Len()).
		Str("mode", snap.Mode().String()).
		Msg("snapshot activated")
	return nil
}

// Recommend answers a single-title query against the active snapshot.
// A canceled ctx fails the query before any work is done.
func (s *Service) Recommend(ctx context.Context, title string, k int) ([]Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	snap := s.current.Load()
	if snap == nil {
		metrics.RecordQuery("single", "not_ready", time.Since(start))
		return nil, ErrNotReady
	}

	key := queryKey{buildID: snap.BuildID(), title: title, k: k}
	if s.results != nil {
		if recs, ok := s.results.Get(key); ok {
			metrics.QueryCacheHits.Inc()
			metrics.RecordQuery("single", "ok", time.Since(start))
			return slices.Clone(recs), nil
		}
		metrics.QueryCacheMisses.Inc()
	}

	recs, err := snap.Recommend(title, k)
	metrics.RecordQuery("single", outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.results != nil {
		s.results.Add(key, slices.Clone(recs))
	}
	return recs, nil
}

// RecommendForMany answers a batch query against the active snapshot.
// Unknown input titles are skipped and logged at debug level with the
// request ID carried by ctx.
func (s *Service) RecommendForMany(ctx context.Context, titles []string, kPerTitle, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	snap := s.current.Load()
	if snap == nil {
		metrics.RecordQuery("many", "not_ready", time.Since(start))
		return nil, ErrNotReady
	}

	results, skipped, err := snap.RecommendForMany(titles, kPerTitle, limit)
	metrics.RecordQuery("many", outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		metrics.SkippedTitles.Add(float64(len(skipped)))
		event := s.logger.Debug().Strs("titles", skipped)
		if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
			event = event.Str("request_id", requestID)
		}
		event.Msg("batch query skipped unknown titles")
	}
	return results, nil
}

// Rebuild reads the catalog, builds a new snapshot, persists it when a
// repository is configured and activates it. A rebuild that starts while
// another is running fails with ErrBuildInProgress.
func (s *Service) Rebuild(ctx context.Context) error {
	if !s.buildMu.TryLock() {
		metrics.RecordBuildRejected()
		return ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	if s.provider == nil {
		return fmt.Errorf("%w: catalog provider not set", ErrBuildFailure)
	}

	start := time.Now()
	s.setBuilding(true)
	s.logger.Info().Str("mode", s.cfg.Build.Mode.String()).Msg("starting snapshot build")

	snap, err := s.build(ctx)
	duration := time.Since(start)
	metrics.RecordBuild(duration, err)
	s.finishBuild(duration, err)
	if err != nil {
		s.logger.Error().Err(err).Dur("duration", duration).Msg("snapshot build failed")
		return err
	}

	if err := s.Swap(snap); err != nil {
		return err
	}
	s.logger.Info().
		Int64("duration_ms", duration.Milliseconds()).
		Int("vocabulary", snap.Vocabulary().Len()).
		Msg("snapshot build complete")
	return nil
}

func (s *Service) build(ctx context.Context) (*Snapshot, error) {
	rows, err := s.provider.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	s.logger.Debug().Int("rows", len(rows)).Msg("catalog rows loaded")

	snap, err := Build(ctx, rows, s.cfg.Build)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		art, err := Save(snap)
		if err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
		if err := s.repo.SaveArtifact(ctx, s.cfg.Rebuild.ArtifactName, art); err != nil {
			return nil, fmt.Errorf("persist artifact: %w", err)
		}
		metrics.ArtifactBytes.Set(float64(art.Size()))
	}
	return snap, nil
}

// LoadPersisted activates the snapshot stored in the repository.
func (s *Service) LoadPersisted(ctx context.Context) error {
	if s.repo == nil {
		return fmt.Errorf("%w: no artifact repository", ErrNotFound)
	}
	art, err := s.repo.LoadArtifact(ctx, s.cfg.Rebuild.ArtifactName)
	if err != nil {
		return fmt.Errorf("load artifact %q: %w", s.cfg.Rebuild.ArtifactName, err)
	}
	snap, err := Load(art)
	if err != nil {
		return err
	}
	metrics.ArtifactBytes.Set(float64(art.Size()))
	return s.Swap(snap)
}

// Status returns the current service status.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Service) setBuilding(building bool) {
	s.statusMu.Lock()
	s.status.Building = building
	s.statusMu.Unlock()
}

func (s *Service) finishBuild(duration time.Duration, err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Building = false
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	s.status.LastBuildDurationMS = duration.Milliseconds()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
