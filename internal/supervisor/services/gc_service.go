// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GarbageCollector is implemented by *store.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// GCService periodically reclaims artifact store space. Each rebuild
// overwrites the previous artifact, leaving stale value log entries.
type GCService struct {
	store    GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewGCService creates the service. A non-positive interval means 10m.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewGCService(store GarbageCollector, interval time.Duration, logger zerolog.Logger) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "store-gc").Logger(),
		name:     "store-gc",
	}
}

// Serve implements suture.Service. GC errors are logged, not returned.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := g.store.RunGC(); err != nil {
				g.logger.Warn().Err(err).Msg("value log GC failed")
				continue
			}
			g.logger.Debug().Dur("duration", time.Since(start)).Msg("value log GC complete")
		}
	}
}

// String names the service in supervisor events.
func (g *GCService) String() string {
	return g.name
}
