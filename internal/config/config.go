// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package config loads the server configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/recommend"
	"github.com/tomtom215/marquee/internal/store"
	"github.com/tomtom215/marquee/internal/validation"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Store     StoreConfig     `koanf:"store"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig locates the catalog source.
type CatalogConfig struct {
	Path           string `koanf:"path" validate:"required"`
	CSVDelimiter   string `koanf:"csv_delimiter" validate:"len=1"`
	GenreDelimiter string `koanf:"genre_delimiter" validate:"required"`
}

// RecommendConfig configures snapshot builds, queries, and the result cache.
type RecommendConfig struct {
	Mode            string        `koanf:"mode" validate:"oneof=cosine genre_overlap"`
	MaxFeatures     int           `koanf:"max_features" validate:"min=1,max=1000000"`
	Workers         int           `koanf:"workers" validate:"min=0,max=1024"`
	BuildTimeout    time.Duration `koanf:"build_timeout" validate:"gt=0"`
	BuildOnStartup  bool          `koanf:"build_on_startup"`
	RebuildInterval time.Duration `koanf:"rebuild_interval" validate:"gte=0"`
	DefaultK        int           `koanf:"default_k" validate:"min=1"`
	MaxK            int           `koanf:"max_k" validate:"min=1,max=10000"`
	PerTitleK       int           `koanf:"per_title_k" validate:"min=1"`
	ManyLimit       int           `koanf:"many_limit" validate:"min=1"`
	MaxTitles       int           `koanf:"max_titles" validate:"min=1,max=1000"`
	CacheEnabled    bool          `koanf:"cache_enabled"`
	CacheSize       int           `koanf:"cache_size" validate:"min=0"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

// StoreConfig configures artifact persistence.
type StoreConfig struct {
	Path         string        `koanf:"path"`
	InMemory     bool          `koanf:"in_memory"`
	SyncWrites   bool          `koanf:"sync_writes"`
	Compression  bool          `koanf:"compression"`
	GCRatio      float64       `koanf:"gc_ratio" validate:"gt=0,lt=1"`
	GCInterval   time.Duration `koanf:"gc_interval" validate:"gte=0"`
	ArtifactName string        `koanf:"artifact_name" validate:"required"`
}

// SecurityConfig configures CORS and rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Validate applies struct tag rules and then cross-field checks.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if c.Recommend.MaxK < c.Recommend.DefaultK {
		return fmt.Errorf("recommend.max_k (%d) must be >= recommend.default_k (%d)",
			c.Recommend.MaxK, c.Recommend.DefaultK)
	}
	if c.Recommend.CacheEnabled && (c.Recommend.CacheSize < 1 || c.Recommend.CacheTTL <= 0) {
		return errors.New("recommend.cache_size and recommend.cache_ttl must be positive when caching is enabled")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("store.path is required unless store.in_memory is set")
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0) {
		return errors.New("security.rate_limit_reqs and security.rate_limit_window must be positive unless rate limiting is disabled")
	}
	return nil
}

// EngineConfig converts the flat recommend section into the engine's
// nested configuration.
func (c *Config) EngineConfig() (*recommend.Config, error) {
	mode, err := recommend.ParseMode(c.Recommend.Mode)
	if err != nil {
		return nil, err
	}

	rc := recommend.DefaultConfig()
	rc.Build.Mode = mode
	rc.Build.MaxFeatures = c.Recommend.MaxFeatures
	rc.Build.GenreDelimiter = c.Catalog.GenreDelimiter
	if c.Recommend.Workers > 0 {
		rc.Build.Workers = c.Recommend.Workers
	}
	rc.Build.Timeout = c.Recommend.BuildTimeout

	rc.Query.DefaultK = c.Recommend.DefaultK
	rc.Query.MaxK = c.Recommend.MaxK
	rc.Query.PerTitleK = c.Recommend.PerTitleK
	rc.Query.ManyLimit = c.Recommend.ManyLimit
	rc.Query.MaxTitles = c.Recommend.MaxTitles

	rc.Cache.Enabled = c.Recommend.CacheEnabled
	rc.Cache.Size = c.Recommend.CacheSize
	rc.Cache.TTL = c.Recommend.CacheTTL

	rc.Rebuild.OnStartup = c.Recommend.BuildOnStartup
	rc.Rebuild.Interval = c.Recommend.RebuildInterval
	rc.Rebuild.ArtifactName = c.Store.ArtifactName

	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// BadgerConfig returns the BadgerDB settings.
func (c *Config) BadgerConfig() store.Config {
	return store.Config{
		Path:        c.Store.Path,
		InMemory:    c.Store.InMemory,
		SyncWrites:  c.Store.SyncWrites,
		Compression: c.Store.Compression,
		GCRatio:     c.Store.GCRatio,
	}
}

// CSVComma returns the catalog field separator as a rune.
func (c *Config) CSVComma() rune {
	for _, r := range c.Catalog.CSVDelimiter {
		return r
	}
	return ','
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
