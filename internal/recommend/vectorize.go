// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"fmt"
	"math"
	"sort"
)

// Vocabulary maps terms to feature columns. It is immutable once built.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// NewVocabulary builds a vocabulary whose column i is terms[i].
func NewVocabulary(terms []string) (*Vocabulary, error) {
	v := &Vocabulary{
		terms: append([]string(nil), terms...),
		index: make(map[string]int, len(terms)),
	}
	for i, t := range v.terms {
		if _, dup := v.index[t]; dup {
			return nil, fmt.Errorf("%w: duplicate vocabulary term %q", ErrInvalidInput, t)
		}
		v.index[t] = i
	}
	return v, nil
}

// Len returns the number of columns.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Terms returns a copy of the terms in column order.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.terms...)
}

// Column returns the column of term.
func (v *Vocabulary) Column(term string) (int, bool) {
	if v == nil {
		return 0, false
	}
	col, ok := v.index[term]
	return col, ok
}

// FeatureRow is the sparse count vector of one item. Cols is strictly increasing.
type FeatureRow struct {
	Cols   []int
	Counts []float64
}

// Norm returns the Euclidean norm of the row.
func (r FeatureRow) Norm() float64 {
	var sum float64
	for _, c := range r.Counts {
		sum += c * c
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of two rows.
func (r FeatureRow) Dot(o FeatureRow) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(r.Cols) && j < len(o.Cols) {
		switch {
		case r.Cols[i] == o.Cols[j]:
			sum += r.Counts[i] * o.Counts[j]
			i++
			j++
		case r.Cols[i] < o.Cols[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// FeatureMatrix holds one sparse row per corpus item.
type FeatureMatrix struct {
	Rows []FeatureRow
	Cols int
}

// Vectorizer turns tag strings into term count vectors.
type Vectorizer struct {
	// MaxFeatures caps the vocabulary size.
	MaxFeatures int

	// Stopwords are removed before counting.
	Stopwords map[string]struct{}
}

// NewVectorizer returns a vectorizer using the English stopword set.
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures, Stopwords: EnglishStopwords()}
}

// Fit selects the MaxFeatures most frequent terms across the corpus.
// Equal counts are ordered by first appearance, and columns are assigned in
// selection order. An empty corpus yields an empty vocabulary; a non-empty
// corpus without a single usable term is rejected with ErrInvalidInput.
func (v *Vectorizer) Fit(corpus Corpus) (*Vocabulary, error) {
	if v.MaxFeatures < 1 {
		return nil, fmt.Errorf("%w: max features must be positive, got %d", ErrInvalidInput, v.MaxFeatures)
	}

	type termStat struct {
		term  string
		count int
		first int
	}
	stats := make(map[string]*termStat)
	order := make([]*termStat, 0)
	for _, item := range corpus {
		for _, term := range analyze(item.Tags, v.Stopwords) {
			st, ok := stats[term]
			if !ok {
				st = &termStat{term: term, first: len(order)}
				stats[term] = st
				order = append(order, st)
			}
			st.count++
		}
	}

	if len(corpus) > 0 && len(order) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrInvalidInput)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})
	if len(order) > v.MaxFeatures {
		order = order[:v.MaxFeatures]
	}

	terms := make([]string, len(order))
	for i, st := range order {
		terms[i] = st.term
	}
	return NewVocabulary(terms)
}

// Transform counts vocabulary terms per item. Terms outside the vocabulary
// are ignored.
func (v *Vectorizer) Transform(corpus Corpus, vocab *Vocabulary) FeatureMatrix {
	fm := FeatureMatrix{Rows: make([]FeatureRow, len(corpus)), Cols: vocab.Len()}
	for i, item := range corpus {
		counts := make(map[int]float64)
		for _, term := range analyze(item.Tags, v.Stopwords) {
			if col, ok := vocab.Column(term); ok {
				counts[col]++
			}
		}

		row := FeatureRow{Cols: make([]int, 0, len(counts)), Counts: make([]float64, 0, len(counts))}
		for col := range counts {
			row.Cols = append(row.Cols, col)
		}
		sort.Ints(row.Cols)
		for _, col := range row.Cols {
			row.Counts = append(row.Counts, counts[col])
		}
		fm.Rows[i] = row
	}
	return fm
}
