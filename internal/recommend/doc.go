// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package recommend finds catalog items similar to a given title.
//
// # Pipeline
//
// A build turns raw catalog rows into an immutable Snapshot:
//
//   - Prepare drops duplicate rows and derives each item's tag string from
//     its stemmed overview words and genres.
//   - Vectorizer.Fit picks the most frequent non-stopword terms and
//     Vectorizer.Transform counts them per item.
//   - BuildSimilarity fills a symmetric item-by-item matrix, either cosine
//     similarity of the count vectors or the number of shared genres.
//
// Queries (Snapshot.Recommend, Snapshot.RecommendForMany) only read the
// matrix. Ranking is by descending score with ties broken by corpus order,
// so identical inputs always produce identical answers.
//
// # Usage
//
//	snap, err := recommend.Build(ctx, rows, recommend.DefaultConfig().Build)
//	recs, err := snap.Recommend("Toy Story (1995)", 5)
//
// Save and Load convert a snapshot to and from an Artifact without
// recomputing anything.
//
// # Thread Safety
//
// Snapshots are read-only and need no locking. Service holds the active
// snapshot behind an atomic pointer; a rebuild constructs a complete new
// snapshot before swapping it in, so no query ever sees a partial build.
package recommend
