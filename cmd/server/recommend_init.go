// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"fmt"

	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/recommend"
	"github.com/tomtom215/marquee/internal/supervisor"
	"github.com/tomtom215/marquee/internal/supervisor/services"
)

// initRecommend creates the recommender service backed by the CSV catalog
// and repo, and adds its rebuild scheduler to the tree.
func initRecommend(cfg *config.Config, repo recommend.ArtifactRepository, tree *supervisor.SupervisorTree) (*recommend.Service, error) {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("recommend config: %w", err)
	}

	logger := logging.WithComponent("recommend")
	provider := &catalog.CSVProvider{
		Path:   cfg.Catalog.Path,
		Comma:  cfg.CSVComma(),
		Logger: logging.WithComponent("catalog"),
	}

	svc, err := recommend.NewService(engineCfg, provider, repo, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("mode", engineCfg.Build.Mode.String()).
		Int("max_features", engineCfg.Build.MaxFeatures).
		Int("workers", engineCfg.Build.Workers).
		Dur("rebuild_interval", engineCfg.Rebuild.Interval).
		Bool("cache", engineCfg.Cache.Enabled).
		Msg("Recommender initialized")

	tree.AddRecommendService(services.NewRebuildService(svc, services.RebuildServiceConfig{
		BuildOnStartup: engineCfg.Rebuild.OnStartup,
		Interval:       engineCfg.Rebuild.Interval,
	}, logger))

	return svc, nil
}
