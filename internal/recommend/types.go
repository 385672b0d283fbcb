// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how pairwise similarity between catalog items is scored.
type Mode int

const (
	// ModeCosine scores items by cosine similarity of their tag count vectors.
	ModeCosine Mode = iota
	// ModeGenreOverlap scores items by the number of genres they share.
	ModeGenreOverlap
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeCosine:
		return "cosine"
	case ModeGenreOverlap:
		return "genre_overlap"
	default:
		return "unknown"
	}
}

// ParseMode converts a configuration name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine", "text", "tags":
		return ModeCosine, nil
	case "genre_overlap", "genre-overlap", "overlap", "genres":
		return ModeGenreOverlap, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
	}
}

// RawRow is one catalog row as supplied by a catalog provider.
// Every field may be empty; Runtime is nil when unknown.
type RawRow struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Genres   string `json:"genres"`
	Overview string `json:"overview"`
	Runtime  *int   `json:"runtime,omitempty"`
}

// CatalogItem is a cleaned catalog entry. Items are never modified after
// Prepare returns them.
type CatalogItem struct {
	// ID is the provider's stable identifier.
	ID int `json:"id"`

	// Title is the exact lookup key used by Recommend.
	Title string `json:"title"`

	// Genres holds whitespace-stripped genre tokens, deduplicated, in source order.
	Genres []string `json:"genres"`

	// OverviewTokens is the whitespace-split overview text.
	OverviewTokens []string `json:"overview_tokens"`

	// Runtime in minutes, nil when the source row had none.
	Runtime *int `json:"runtime,omitempty"`

	// Tags is the normalized, stemmed, space-joined tag string.
	Tags string `json:"tags"`
}

// Corpus is the ordered item list of one build. An item's position is its
// row and column index in every matrix derived from the corpus.
type Corpus []CatalogItem

// Recommendation is one ranked result of a single-title query.
type Recommendation struct {
	// ID of the recommended item.
	ID int `json:"id"`

	// Title of the recommended item.
	Title string `json:"title"`

	// Score is similarity*100 rounded to two decimals in cosine mode and the
	// shared genre count in genre overlap mode.
	Score float64 `json:"score"`
}

// Status reports the state of the active snapshot and the last build attempt.
type Status struct {
	// Ready is true once a snapshot is serving queries.
	Ready bool `json:"ready"`

	// Building is true while a rebuild is in progress.
	Building bool `json:"building"`

	// BuildID identifies the active snapshot.
	BuildID string `json:"build_id,omitempty"`

	// Version increments on every snapshot swap.
	Version int64 `json:"version"`

	// Mode of the active snapshot.
	Mode string `json:"mode,omitempty"`

	// Items is the corpus size of the active snapshot.
	Items int `json:"items"`

	// VocabularySize is the number of vocabulary terms (zero in genre overlap mode).
	VocabularySize int `json:"vocabulary_size"`

	// BuiltAt is when the active snapshot was built.
	BuiltAt time.Time `json:"built_at"`

	// LastBuildDurationMS is how long the last successful build took.
	LastBuildDurationMS int64 `json:"last_build_duration_ms"`

	// LastError contains the last build error, if any.
	LastError string `json:"last_error,omitempty"`
}
