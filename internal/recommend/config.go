// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"fmt"
	"runtime"
	"time"
)

// Config controls snapshot builds and query defaults.
type Config struct {
	// Build contains parameters applied when a snapshot is built.
	Build BuildConfig `json:"build"`

	// Query contains defaults and limits for queries.
	Query QueryConfig `json:"query"`

	// Cache contains query result caching parameters.
	Cache CacheConfig `json:"cache"`

	// Rebuild contains the periodic rebuild schedule.
	Rebuild RebuildConfig `json:"rebuild"`
}

// BuildConfig contains parameters for a single build.
type BuildConfig struct {
	// Mode selects the similarity scoring strategy.
	Mode Mode `json:"mode"`

	// MaxFeatures caps the vocabulary size.
	MaxFeatures int `json:"max_features"`

	// GenreDelimiter separates genres within a raw genre field.
	GenreDelimiter string `json:"genre_delimiter"`

	// Workers bounds the goroutines used to fill the similarity matrix.
	Workers int `json:"workers"`

	// Timeout bounds one full build.
	Timeout time.Duration `json:"timeout"`
}

// QueryConfig contains defaults applied by callers that omit parameters.
type QueryConfig struct {
	// DefaultK is the result count for single-title queries.
	DefaultK int `json:"default_k"`

	// MaxK is the largest k a caller may request.
	MaxK int `json:"max_k"`

	// PerTitleK is how many neighbors each input contributes to a batch query.
	PerTitleK int `json:"per_title_k"`

	// ManyLimit caps the merged batch result.
	ManyLimit int `json:"many_limit"`

	// MaxTitles bounds the number of input titles in a batch query.
	MaxTitles int `json:"max_titles"`
}

// CacheConfig contains query result caching parameters.
type CacheConfig struct {
	// Enabled turns result caching on.
	Enabled bool `json:"enabled"`

	// Size is the maximum number of cached results.
	Size int `json:"size"`

	// TTL is how long a cached result stays valid.
	TTL time.Duration `json:"ttl"`
}

// RebuildConfig contains rebuild scheduling.
type RebuildConfig struct {
	// OnStartup builds from the catalog when no persisted artifact is available.
	OnStartup bool `json:"on_startup"`

	// Interval between periodic rebuilds. Zero disables periodic rebuilds.
	Interval time.Duration `json:"interval"`

	// ArtifactName is the key under which snapshots are persisted.
	ArtifactName string `json:"artifact_name"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			Mode:           ModeCosine,
			MaxFeatures:    5000,
			GenreDelimiter: "|",
			Workers:        runtime.GOMAXPROCS(0),
			Timeout:        10 * time.Minute,
		},
		Query: QueryConfig{
			DefaultK:  10,
			MaxK:      100,
			PerTitleK: 3,
			ManyLimit: 10,
			MaxTitles: 50,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    4096,
			TTL:     10 * time.Minute,
		},
		Rebuild: RebuildConfig{
			OnStartup:    true,
			Interval:     0,
			ArtifactName: "default",
		},
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Build.Mode != ModeCosine && c.Build.Mode != ModeGenreOverlap {
		return fmt.Errorf("build.mode is unknown: %d", c.Build.Mode)
	}
	if c.Build.MaxFeatures < 1 {
		return fmt.Errorf("build.max_features must be positive, got %d", c.Build.MaxFeatures)
	}
	if c.Build.GenreDelimiter == "" {
		return fmt.Errorf("build.genre_delimiter must not be empty")
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers)
	}
	if c.Build.Timeout <= 0 {
		return fmt.Errorf("build.timeout must be positive, got %v", c.Build.Timeout)
	}

	if c.Query.DefaultK < 1 {
		return fmt.Errorf("query.default_k must be positive, got %d", c.Query.DefaultK)
	}
	if c.Query.MaxK < c.Query.DefaultK {
		return fmt.Errorf("query.max_k (%d) must be >= query.default_k (%d)", c.Query.MaxK, c.Query.DefaultK)
	}
	if c.Query.PerTitleK < 1 {
		return fmt.Errorf("query.per_title_k must be positive, got %d", c.Query.PerTitleK)
	}
	if c.Query.ManyLimit < 1 {
		return fmt.Errorf("query.many_limit must be positive, got %d", c.Query.ManyLimit)
	}
	if c.Query.MaxTitles < 1 {
		return fmt.Errorf("query.max_titles must be positive, got %d", c.Query.MaxTitles)
	}

	if c.Cache.Enabled {
		if c.Cache.Size < 1 {
			return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
		}
	}

	if c.Rebuild.Interval < 0 {
		return fmt.Errorf("rebuild.interval must be non-negative, got %v", c.Rebuild.Interval)
	}
	if c.Rebuild.ArtifactName == "" {
		return fmt.Errorf("rebuild.artifact_name must not be empty")
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
