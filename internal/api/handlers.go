// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/recommend"
	"github.com/tomtom215/marquee/internal/validation"
)

// Recommender is the query and rebuild surface the handlers depend on.
// *recommend.Service implements it.
type Recommender interface {
	Config() *recommend.Config
	Recommend(ctx context.Context, title string, k int) ([]recommend.Recommendation, error)
	RecommendForMany(ctx context.Context, titles []string, kPerTitle, limit int) ([]string, error)
	Rebuild(ctx context.Context) error
	Status() recommend.Status
}

// Handler serves the recommendation and health endpoints.
type Handler struct {
	svc       Recommender
	startTime time.Time

	// rebuilds tracks background rebuilds started by TriggerRebuild.
	rebuilds chan struct{}
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc Recommender) *Handler {
	return &Handler{
		svc:       svc,
		startTime: time.Now(),
		rebuilds:  make(chan struct{}, 1),
	}
}

// SimilarResponse is the data payload of GET /recommendations/similar.
type SimilarResponse struct {
	Title           string                     `json:"title"`
	K               int                        `json:"k"`
	Count           int                        `json:"count"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// PredictResponse is the data payload of POST /recommendations/predict.
type PredictResponse struct {
	Count           int      `json:"count"`
	Recommendations []string `json:"recommendations"`
}

// Similar handles GET /api/v1/recommendations/similar?title=&k=
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cfg := h.svc.Config()

	req, err := parseSimilarRequest(r, cfg.Query.DefaultK)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields)
		return
	}
	if req.K > cfg.Query.MaxK {
		rw.ValidationError(fmt.Sprintf("k must be at most %d", cfg.Query.MaxK), nil)
		return
	}

	recs, err := h.svc.Recommend(r.Context(), req.Title, req.K)
	if err != nil {
		rw.writeServiceError(err)
		return
	}

	rw.SuccessWithMeta(http.StatusOK, SimilarResponse{
		Title:           req.Title,
		K:               req.K,
		Count:           len(recs),
		Recommendations: recs,
	}, &APIMeta{BuildID: h.svc.Status().BuildID})
}

// Predict handles POST /api/v1/recommendations/predict
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cfg := h.svc.Config()

	req, err := decodePredictRequest(w, r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields)
		return
	}
	if len(req.Movies) > cfg.Query.MaxTitles {
		rw.ValidationError(fmt.Sprintf("movies must contain at most %d titles", cfg.Query.MaxTitles), nil)
		return
	}
	if req.KPerTitle == 0 {
		req.KPerTitle = cfg.Query.PerTitleK
	}
	if req.Limit == 0 {
		req.Limit = cfg.Query.ManyLimit
	}
	if req.KPerTitle > cfg.Query.MaxK || req.Limit > cfg.Query.MaxK {
		rw.ValidationError(fmt.Sprintf("k_per_title and limit must be at most %d", cfg.Query.MaxK), nil)
		return
	}

	titles, err := h.svc.RecommendForMany(r.Context(), req.Movies, req.KPerTitle, req.Limit)
	if err != nil {
		rw.writeServiceError(err)
		return
	}

	rw.SuccessWithMeta(http.StatusOK, PredictResponse{
		Count:           len(titles),
		Recommendations: titles,
	}, &APIMeta{BuildID: h.svc.Status().BuildID})
}

// Status handles GET /api/v1/recommendations/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.svc.Status())
}

// TriggerRebuild handles POST /api/v1/recommendations/rebuild. By default
// the rebuild runs in the background and the handler answers 202; with
// ?wait=true it answers after the new snapshot is active.
func (h *Handler) TriggerRebuild(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			rw.BadRequest(fmt.Sprintf("wait must be a boolean, got %q", raw))
			return
		}
		wait = parsed
	}

	if wait {
		if err := h.svc.Rebuild(r.Context()); err != nil {
			rw.writeServiceError(err)
			return
		}
		rw.Success(h.svc.Status())
		return
	}

	select {
	case h.rebuilds <- struct{}{}:
	default:
		rw.writeServiceError(recommend.ErrBuildInProgress)
		return
	}
	if h.svc.Status().Building {
		<-h.rebuilds
		rw.writeServiceError(recommend.ErrBuildInProgress)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer func() { <-h.rebuilds }()
		if err := h.svc.Rebuild(ctx); err != nil && !errors.Is(err, recommend.ErrBuildInProgress) {
			logging.Ctx(ctx).Error().Err(err).Msg("Background rebuild failed")
		}
	}()

	rw.Accepted(map[string]string{"message": "Rebuild started"})
}

// HealthLive handles GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It answers 503 until a
// snapshot is serving queries.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := h.svc.Status()

	data := map[string]interface{}{
		"ready":    status.Ready,
		"building": status.Building,
		"version":  status.Version,
		"uptime":   time.Since(h.startTime).Seconds(),
	}
	if !status.Ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "No snapshot loaded", data)
		return
	}
	rw.Success(data)
}
