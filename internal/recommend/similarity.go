// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// SimilarityMatrix is the dense pairwise score table of one corpus.
// Only the upper triangle is stored, so At(i, j) == At(j, i) exactly.
type SimilarityMatrix struct {
	n   int
	sym *mat.SymDense
}

// Size returns the number of rows (and columns).
func (s *SimilarityMatrix) Size() int {
	if s == nil {
		return 0
	}
	return s.n
}

// At returns the score between items i and j.
func (s *SimilarityMatrix) At(i, j int) float64 {
	return s.sym.At(i, j)
}

// Row returns a copy of row i.
func (s *SimilarityMatrix) Row(i int) []float64 {
	row := make([]float64, s.n)
	for j := range row {
		row[j] = s.sym.At(i, j)
	}
	return row
}

func newSimilarityMatrix(n int) *SimilarityMatrix {
	if n == 0 {
		return &SimilarityMatrix{}
	}
	return &SimilarityMatrix{n: n, sym: mat.NewSymDense(n, nil)}
}

// scorer computes the score of one pair.
type scorer func(i, j int) float64

// BuildSimilarity fills the full matrix for the given mode. Rows are shared
// out across workers goroutines; every cell is written exactly once.
func BuildSimilarity(ctx context.Context, corpus Corpus, features FeatureMatrix, mode Mode, workers int) (*SimilarityMatrix, error) {
	var score scorer
	switch mode {
	case ModeCosine:
		if len(features.Rows) != len(corpus) {
			return nil, fmt.Errorf("%w: %d feature rows for %d items", ErrInvalidInput, len(features.Rows), len(corpus))
		}
		score = cosineScorer(features)
	case ModeGenreOverlap:
		score = overlapScorer(corpus)
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidInput, mode)
	}

	n := len(corpus)
	sim := newSimilarityMatrix(n)
	if n == 0 {
		return sim, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w // per-iteration copy (module targets go 1.21 loop semantics)
		g.Go(func() error {
			// Strided rows keep the triangular workload balanced.
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				for j := i; j < n; j++ {
					sim.sym.SetSym(i, j, score(i, j))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build similarity: %w", err)
	}
	return sim, nil
}

// cosineScorer scores dot(a,b)/(|a||b|), and 0 when either norm is zero.
func cosineScorer(fm FeatureMatrix) scorer {
	norms := make([]float64, len(fm.Rows))
	for i, row := range fm.Rows {
		norms[i] = row.Norm()
	}
	return func(i, j int) float64 {
		if norms[i] == 0 || norms[j] == 0 {
			return 0
		}
		return fm.Rows[i].Dot(fm.Rows[j]) / (norms[i] * norms[j])
	}
}

// overlapScorer scores the number of shared genres.
func overlapScorer(corpus Corpus) scorer {
	sorted := make([][]string, len(corpus))
	for i, item := range corpus {
		g := append([]string(nil), item.Genres...)
		sort.Strings(g)
		sorted[i] = g
	}
	return func(i, j int) float64 {
		a, b := sorted[i], sorted[j]
		shared := 0
		x, y := 0, 0
		for x < len(a) && y < len(b) {
			switch {
			case a[x] == b[y]:
				shared++
				x++
				y++
			case a[x] < b[y]:
				x++
			default:
				y++
			}
		}
		return float64(shared)
	}
}
