// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Rebuilder is implemented by *recommend.Service.
type Rebuilder interface {
	// LoadPersisted activates the last persisted snapshot.
	LoadPersisted(ctx context.Context) error

	// Rebuild builds, persists and activates a new snapshot.
	Rebuild(ctx context.Context) error
}

// RebuildServiceConfig configures startup loading and the rebuild schedule.
type RebuildServiceConfig struct {
	// BuildOnStartup builds from the catalog when no persisted snapshot loads.
	BuildOnStartup bool

	// Interval between scheduled rebuilds. Zero disables the schedule.
	Interval time.Duration

	// RetryInterval is the delay before retrying a failed startup build.
	// Default: 30s
	RetryInterval time.Duration
}

// RebuildService brings the recommender to a ready state at startup and
// keeps it fresh on a schedule.
type RebuildService struct {
	engine Rebuilder
	config RebuildServiceConfig
	logger zerolog.Logger
	name   string

	// ready is true once a snapshot has been activated by this service.
	ready bool
}

// NewRebuildService creates the service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRebuildService(engine Rebuilder, cfg RebuildServiceConfig, logger zerolog.Logger) *RebuildService {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &RebuildService{
		engine: engine,
		config: cfg,
		logger: logger.With().Str("service", "rebuild").Logger(),
		name:   "rebuild-service",
	}
}

// Serve implements suture.Service. It first tries the persisted snapshot,
// then a fresh build when BuildOnStartup is set, retrying the build every
// RetryInterval until one succeeds. After that it rebuilds every Interval.
func (s *RebuildService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("build_on_startup", s.config.BuildOnStartup).
		Dur("interval", s.config.Interval).
		Msg("rebuild service starting")

	if !s.ready {
		s.startup(ctx)
	}

	var retry <-chan time.Time
	if !s.ready && s.config.BuildOnStartup {
		retryTicker := time.NewTicker(s.config.RetryInterval)
		defer retryTicker.Stop()
		retry = retryTicker.C
	}

	var scheduled <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		scheduled = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("rebuild service shutting down")
			return ctx.Err()

		case <-retry:
			if s.rebuild(ctx, "retry") {
				retry = nil
			}

		case <-scheduled:
			if s.rebuild(ctx, "scheduled") {
				retry = nil
			}
		}
	}
}

func (s *RebuildService) startup(ctx context.Context) {
	err := s.engine.LoadPersisted(ctx)
	if err == nil {
		s.ready = true
		s.logger.Info().Msg("persisted snapshot loaded")
		return
	}
	s.logger.Info().Err(err).Msg("no usable persisted snapshot")

	if s.config.BuildOnStartup {
		s.rebuild(ctx, "startup")
	}
}

// rebuild runs one build and reports whether a snapshot is now active.
func (s *RebuildService) rebuild(ctx context.Context, trigger string) bool {
	start := time.Now()
	err := s.engine.Rebuild(ctx)
	switch {
	case err == nil:
		s.ready = true
		s.logger.Info().Str("trigger", trigger).Dur("duration", time.Since(start)).Msg("rebuild complete")
		return true
	case errors.Is(err, context.Canceled):
		return s.ready
	default:
		// ErrBuildInProgress lands here too: another rebuild owns the swap.
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("rebuild failed")
		return s.ready
	}
}

// String names the service in supervisor events.
func (s *RebuildService) String() string {
	return s.name
}
