// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package main is the entry point for the Marquee server.
//
// Marquee serves "more like this" recommendations for a movie catalog. It
// builds a similarity snapshot from a CSV catalog, persists it to BadgerDB
// and answers queries over a JSON HTTP API.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml, environment (koanf)
//  2. Logging: zerolog, bridged to slog for the supervisor
//  3. Artifact store: BadgerDB
//  4. Recommender: catalog provider, service, rebuild scheduler
//  5. HTTP server: chi router with /api/v1 and /metrics
//
// All long-running components run under a suture supervisor tree.
//
// # Example
//
//	export CATALOG_PATH=/data/movies.csv
//	export STORE_PATH=/data/artifacts
//	./marquee
//
//	curl 'localhost:8088/api/v1/recommendations/similar?title=Heat&k=5'
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests and the artifact store is closed last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/marquee/internal/api"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/store"
	"github.com/tomtom215/marquee/internal/supervisor"
	"github.com/tomtom215/marquee/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggerConfig())
	logging.Info().
		Str("catalog", cfg.Catalog.Path).
		Str("mode", cfg.Recommend.Mode).
		Bool("store_in_memory", cfg.Store.InMemory).
		Msg("Starting Marquee")

	watchConfig()

	artifacts, err := store.Open(cfg.BadgerConfig(), logging.WithComponent("store"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open artifact store")
	}
	defer func() {
		if err := artifacts.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artifact store")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	svc, err := initRecommend(cfg, artifacts, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize recommender")
	}

	tree.AddStorageService(services.NewGCService(artifacts, cfg.Store.GCInterval, logging.WithComponent("store")))

	router := api.NewRouter(api.NewHandler(svc), &api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logging.WithComponent("http")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Marquee stopped")
}

// watchConfig applies log level changes from the config file without a
// restart. Other settings take effect on the next start.
func watchConfig() {
	path := config.ConfigFilePath()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		newCfg, err := config.LoadWithKoanf()
		if err != nil {
			logging.Warn().Err(err).Msg("Config reload failed, keeping current settings")
			return
		}
		applyLogLevel(newCfg.Logging.Level)
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
	}
}

// applyLogLevel switches the global log level to name and reports whether it
// changed. Unknown names are ignored.
func applyLogLevel(name string) bool {
	if !logging.ValidLevel(name) {
		logging.Warn().Str("level", name).Msg("Ignoring unknown log level")
		return false
	}
	level := logging.ParseLevel(name)
	if level == logging.GetLevel() {
		return false
	}
	logging.SetLevel(level)
	logging.Info().Str("level", level.String()).Msg("Log level updated")
	return true
}
