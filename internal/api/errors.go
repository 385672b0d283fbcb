// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/recommend"
)

// errorStatus maps a recommender error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, recommend.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, recommend.ErrNotReady):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, recommend.ErrBuildInProgress):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, recommend.ErrBuildFailure), errors.Is(err, recommend.ErrCorruptArtifact):
		return http.StatusInternalServerError, ErrCodeBuildFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeServiceError writes err using the recommender error mapping. Server
// side failures are logged and their message is not exposed.
func (rw *ResponseWriter) writeServiceError(err error) {
	status, code := errorStatus(err)
	switch code {
	case ErrCodeInternalError:
		rw.InternalError(err)
	case ErrCodeBuildFailed:
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Snapshot build failed")
		rw.Error(status, code, "Snapshot build failed")
	default:
		rw.Error(status, code, err.Error())
	}
}
