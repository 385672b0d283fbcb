// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import "errors"

var (
	// ErrNotFound is returned when a query title is not in the corpus.
	ErrNotFound = errors.New("title not found")

	// ErrInvalidInput is returned for a non-positive k, an empty corpus or
	// an empty vocabulary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBuildFailure is returned when catalog input cannot be read at all.
	ErrBuildFailure = errors.New("build failure")

	// ErrNotReady is returned by Service queries before any snapshot is loaded.
	ErrNotReady = errors.New("recommender not ready")

	// ErrBuildInProgress is returned when a rebuild is requested while one is running.
	ErrBuildInProgress = errors.New("build already in progress")

	// ErrCorruptArtifact is returned when a persisted artifact fails validation.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)
