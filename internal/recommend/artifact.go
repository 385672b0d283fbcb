// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// artifactFormat is bumped whenever the corpus blob layout changes.
const artifactFormat = 1

// Artifact is the persisted form of a snapshot: a JSON corpus blob and a
// binary similarity matrix blob.
type Artifact struct {
	Corpus []byte
	Matrix []byte
}

// Size returns the combined blob size in bytes.
func (a *Artifact) Size() int {
	return len(a.Corpus) + len(a.Matrix)
}

type corpusBlob struct {
	Format     int           `json:"format"`
	BuildID    string        `json:"build_id"`
	Mode       string        `json:"mode"`
	BuiltAt    time.Time     `json:"built_at"`
	Items      []CatalogItem `json:"items"`
	Vocabulary []string      `json:"vocabulary,omitempty"`
}

// Save serializes a snapshot. The matrix is written bit for bit, so a loaded
// snapshot answers every query exactly as the original did.
func Save(s *Snapshot) (*Artifact, error) {
	items := s.corpus
	if items == nil {
		items = Corpus{}
	}
	corpus, err := json.Marshal(corpusBlob{
		Format:     artifactFormat,
		BuildID:    s.buildID,
		Mode:       s.mode.String(),
		BuiltAt:    s.builtAt,
		Items:      items,
		Vocabulary: s.vocab.Terms(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal corpus: %w", err)
	}

	var matrix []byte
	if s.sim.Size() > 0 {
		matrix, err = mat.DenseCopyOf(s.sim.sym).MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal similarity matrix: %w", err)
		}
	}

	return &Artifact{Corpus: corpus, Matrix: matrix}, nil
}

// Load reconstructs a snapshot from an artifact without recomputing anything.
// Artifacts whose matrix does not match the corpus are rejected with
// ErrCorruptArtifact.
func Load(a *Artifact) (*Snapshot, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil artifact", ErrCorruptArtifact)
	}

	var blob corpusBlob
	if err := json.Unmarshal(a.Corpus, &blob); err != nil {
		return nil, fmt.Errorf("%w: corpus: %v", ErrCorruptArtifact, err)
	}
	if blob.Format != artifactFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorruptArtifact, blob.Format)
	}
	mode, err := ParseMode(blob.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}

	var vocab *Vocabulary
	if mode == ModeCosine {
		vocab, err = NewVocabulary(blob.Vocabulary)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
	}

	corpus := Corpus(blob.Items)
	sim, err := decodeMatrix(a.Matrix, len(corpus))
	if err != nil {
		return nil, err
	}

	return newSnapshot(blob.BuildID, mode, blob.BuiltAt, corpus, vocab, sim), nil
}

func decodeMatrix(data []byte, n int) (*SimilarityMatrix, error) {
	if n == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("%w: matrix present for empty corpus", ErrCorruptArtifact)
		}
		return newSimilarityMatrix(0), nil
	}

	var dense mat.Dense
	if err := dense.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: matrix: %v", ErrCorruptArtifact, err)
	}
	r, c := dense.Dims()
	if r != n || c != n {
		return nil, fmt.Errorf("%w: matrix is %dx%d for %d items", ErrCorruptArtifact, r, c, n)
	}

	sim := newSimilarityMatrix(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := dense.At(i, j)
			if v != dense.At(j, i) {
				return nil, fmt.Errorf("%w: matrix not symmetric at (%d,%d)", ErrCorruptArtifact, i, j)
			}
			sim.sym.SetSym(i, j, v)
		}
	}
	return sim, nil
}
