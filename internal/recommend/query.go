// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Recommend returns up to k items most similar to title, best first.
// Ties are ordered by corpus index. The queried item itself is never returned.
func (s *Snapshot) Recommend(title string, k int) ([]Recommendation, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	if len(s.corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus", ErrInvalidInput)
	}
	q, ok := s.titles[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}

	type candidate struct {
		index int
		score float64
	}
	candidates := make([]candidate, 0, len(s.corpus)-1)
	for j := range s.corpus {
		if j == q {
			continue
		}
		candidates = append(candidates, candidate{index: j, score: s.sim.At(q, j)})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	recs := make([]Recommendation, k)
	for i, c := range candidates[:k] {
		item := s.corpus[c.index]
		recs[i] = Recommendation{ID: item.ID, Title: item.Title, Score: s.reportScore(c.score)}
	}
	return recs, nil
}

// reportScore converts a raw similarity into the score callers see.
func (s *Snapshot) reportScore(raw float64) float64 {
	if s.mode == ModeCosine {
		return math.Round(raw*100*100) / 100
	}
	return raw
}

// RecommendForMany merges the top kPerTitle results of each input title.
// Titles missing from the corpus are skipped and reported in skipped.
// Results are deduplicated, never include an input title, keep the order in
// which they were first encountered and are capped at limit.
func (s *Snapshot) RecommendForMany(titles []string, kPerTitle, limit int) (results, skipped []string, err error) {
	if kPerTitle <= 0 {
		return nil, nil, fmt.Errorf("%w: k per title must be positive, got %d", ErrInvalidInput, kPerTitle)
	}
	if limit <= 0 {
		return nil, nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidInput, limit)
	}
	if len(s.corpus) == 0 {
		return nil, nil, fmt.Errorf("%w: empty corpus", ErrInvalidInput)
	}

	exclude := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		exclude[t] = struct{}{}
	}

	results = make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, t := range titles {
		recs, err := s.Recommend(t, kPerTitle)
		if errors.Is(err, ErrNotFound) {
			skipped = append(skipped, t)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		for _, r := range recs {
			if _, in := exclude[r.Title]; in {
				continue
			}
			if _, dup := seen[r.Title]; dup {
				continue
			}
			seen[r.Title] = struct{}{}
			results = append(results, r.Title)
			if len(results) == limit {
				return results, skipped, nil
			}
		}
	}
	return results, skipped, nil
}
