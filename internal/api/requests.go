// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SimilarRequest holds the query parameters of a single-title request.
type SimilarRequest struct {
	Title string `validate:"required,max=1000"`
	K     int    `validate:"min=1"`
}

// PredictRequest is the body of a batch request.
type PredictRequest struct {
	Movies    []string `json:"movies" validate:"required,min=1,max=1000,dive,required,max=1000"`
	KPerTitle int      `json:"k_per_title" validate:"min=0"`
	Limit     int      `json:"limit" validate:"min=0"`
}

// parseSimilarRequest reads title and k from the query string. k defaults
// to defaultK when absent.
func parseSimilarRequest(r *http.Request, defaultK int) (SimilarRequest, error) {
	q := r.URL.Query()
	req := SimilarRequest{
		Title: q.Get("title"),
		K:     defaultK,
	}
	if raw := q.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("k must be an integer, got %q", raw)
		}
		req.K = k
	}
	return req, nil
}

// decodePredictRequest decodes a batch request body. Unknown fields are
// rejected.
func decodePredictRequest(w http.ResponseWriter, r *http.Request) (PredictRequest, error) {
	var req PredictRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is empty")
		}
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}
	return req, nil
}
