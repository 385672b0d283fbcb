// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one built model: corpus, vocabulary and similarity matrix.
// A snapshot is never modified after Build or Load returns it and is safe
// for any number of concurrent readers.
type Snapshot struct {
	buildID string
	mode    Mode
	builtAt time.Time

	corpus Corpus
	vocab  *Vocabulary
	sim    *SimilarityMatrix

	// titles maps a title to its first corpus index.
	titles map[string]int
}

func newSnapshot(buildID string, mode Mode, builtAt time.Time, corpus Corpus, vocab *Vocabulary, sim *SimilarityMatrix) *Snapshot {
	titles := make(map[string]int, len(corpus))
	for i, item := range corpus {
		if item.Title == "" {
			continue
		}
		if _, ok := titles[item.Title]; !ok {
			titles[item.Title] = i
		}
	}
	return &Snapshot{
		buildID: buildID,
		mode:    mode,
		builtAt: builtAt,
		corpus:  corpus,
		vocab:   vocab,
		sim:     sim,
		titles:  titles,
	}
}

// Build runs the full pipeline over raw rows: prepare, vectorize (cosine
// mode only) and fill the similarity matrix.
func Build(ctx context.Context, rows []RawRow, cfg BuildConfig) (*Snapshot, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	corpus := Prepare(rows, cfg.GenreDelimiter)

	var (
		vocab    *Vocabulary
		features FeatureMatrix
	)
	if cfg.Mode == ModeCosine {
		vec := NewVectorizer(cfg.MaxFeatures)
		var err error
		vocab, err = vec.Fit(corpus)
		if err != nil {
			return nil, fmt.Errorf("fit vocabulary: %w", err)
		}
		features = vec.Transform(corpus, vocab)
	}

	sim, err := BuildSimilarity(ctx, corpus, features, cfg.Mode, cfg.Workers)
	if err != nil {
		return nil, err
	}

	return newSnapshot(uuid.NewString(), cfg.Mode, time.Now().UTC(), corpus, vocab, sim), nil
}

// BuildID identifies the snapshot across save and load.
func (s *Snapshot) BuildID() string { return s.buildID }

// Mode returns the scoring mode the snapshot was built with.
func (s *Snapshot) Mode() Mode { return s.mode }

// BuiltAt returns the build time.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len returns the corpus size.
func (s *Snapshot) Len() int { return len(s.corpus) }

// Vocabulary returns the vocabulary; nil in genre overlap mode.
func (s *Snapshot) Vocabulary() *Vocabulary { return s.vocab }

// Similarity returns the similarity matrix.
func (s *Snapshot) Similarity() *SimilarityMatrix { return s.sim }

// Item returns the item at corpus index i.
func (s *Snapshot) Item(i int) CatalogItem { return s.corpus[i] }

// Lookup resolves an exact, case-sensitive title to its corpus index.
func (s *Snapshot) Lookup(title string) (int, bool) {
	i, ok := s.titles[title]
	return i, ok
}
