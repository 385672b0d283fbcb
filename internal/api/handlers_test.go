// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/recommend"
)

func intPtr(v int) *int { return &v }

var testRows = []recommend.RawRow{
	{ID: 1, Title: "Heat", Genres: "Action|Crime|Drama", Overview: "A detective hunts a crew of bank robbers in Los Angeles.", Runtime: intPtr(170)},
	{ID: 2, Title: "Ronin", Genres: "Action|Crime|Thriller", Overview: "Mercenaries plan a heist in France and a robbery goes wrong.", Runtime: intPtr(122)},
	{ID: 3, Title: "The Town", Genres: "Crime|Drama|Thriller", Overview: "A bank robber falls for a witness while a detective closes in.", Runtime: intPtr(125)},
	{ID: 4, Title: "Paddington", Genres: "Comedy|Family", Overview: "A polite bear from Peru finds a family in London.", Runtime: intPtr(95)},
	{ID: 5, Title: "Up", Genres: "Animation|Comedy|Family", Overview: "An old man ties balloons to his house and flies to South America.", Runtime: intPtr(96)},
}

type rowsProvider struct {
	rows    []recommend.RawRow
	release chan struct{}
}

func (p *rowsProvider) Rows(ctx context.Context) ([]recommend.RawRow, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.rows, nil
}

func newTestService(t *testing.T, provider recommend.CatalogProvider) *recommend.Service {
	t.Helper()
	cfg := recommend.DefaultConfig()
	cfg.Query.MaxK = 20
	cfg.Query.MaxTitles = 3
	svc, err := recommend.NewService(cfg, provider, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func newReadyServer(t *testing.T) (http.Handler, *recommend.Service) {
	t.Helper()
	svc := newTestService(t, &rowsProvider{rows: testRows})
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	return NewRouter(NewHandler(svc), nil).Setup(), svc
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestSimilar(t *testing.T) {
	h, svc := newReadyServer(t)

	t.Run("returns neighbors without the query title", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/v1/recommendations/similar?title=Heat&k=2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var data SimilarResponse
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Count != 2 || len(data.Recommendations) != 2 {
			t.Fatalf("count = %d (%d recs), want 2", data.Count, len(data.Recommendations))
		}
		for _, r := range data.Recommendations {
			if r.Title == "Heat" {
				t.Error("recommendations contain the query title")
			}
		}
		if env.Meta == nil || env.Meta.BuildID != svc.Status().BuildID {
			t.Errorf("meta.build_id = %+v, want %q", env.Meta, svc.Status().BuildID)
		}
		if env.Meta.RequestID == "" || rec.Header().Get("X-Request-ID") != env.Meta.RequestID {
			t.Errorf("meta.request_id = %q, header = %q", env.Meta.RequestID, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("default k caps at catalog size minus one", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/v1/recommendations/similar?title=Up", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var data SimilarResponse
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.K != 10 {
			t.Errorf("k = %d, want default 10", data.K)
		}
		if data.Count != len(testRows)-1 {
			t.Errorf("count = %d, want %d", data.Count, len(testRows)-1)
		}
	})

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantErr  string
	}{
		{"unknown title", "/api/v1/recommendations/similar?title=Nope", http.StatusNotFound, ErrCodeNotFound},
		{"missing title", "/api/v1/recommendations/similar", http.StatusBadRequest, ErrCodeValidationFailed},
		{"non-integer k", "/api/v1/recommendations/similar?title=Heat&k=two", http.StatusBadRequest, ErrCodeBadRequest},
		{"zero k", "/api/v1/recommendations/similar?title=Heat&k=0", http.StatusBadRequest, ErrCodeValidationFailed},
		{"k above max", "/api/v1/recommendations/similar?title=Heat&k=21", http.StatusBadRequest, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		tt := tt // per-iteration copy (module targets go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if env.Success {
				t.Error("success = true, want false")
			}
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	h, _ := newReadyServer(t)

	t.Run("merges neighbors and excludes inputs", func(t *testing.T) {
		rec, env := do(t, h, http.MethodPost, "/api/v1/recommendations/predict",
			`{"movies":["Heat","Paddington","Missing"],"k_per_title":2,"limit":3}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var data PredictResponse
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Count != len(data.Recommendations) || data.Count == 0 || data.Count > 3 {
			t.Fatalf("count = %d, recommendations = %v", data.Count, data.Recommendations)
		}
		seen := map[string]bool{}
		for _, title := range data.Recommendations {
			if title == "Heat" || title == "Paddington" {
				t.Errorf("result contains input title %q", title)
			}
			if seen[title] {
				t.Errorf("duplicate title %q", title)
			}
			seen[title] = true
		}
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"empty body", "", http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed json", `{"movies":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown field", `{"movies":["Heat"],"extra":1}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"no movies", `{"movies":[]}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"blank movie", `{"movies":["Heat",""]}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"too many movies", `{"movies":["a","b","c","d"]}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"negative limit", `{"movies":["Heat"],"limit":-1}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"limit above max", `{"movies":["Heat"],"limit":50}`, http.StatusBadRequest, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		tt := tt // per-iteration copy (module targets go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/recommendations/predict", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
			}
		})
	}
}

func TestNotReady(t *testing.T) {
	svc := newTestService(t, &rowsProvider{rows: testRows})
	h := NewRouter(NewHandler(svc), nil).Setup()

	for _, target := range []string{
		"/api/v1/recommendations/similar?title=Heat",
		"/api/v1/health/ready",
	} {
		rec, env := do(t, h, http.MethodGet, target, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want %d", target, rec.Code, http.StatusServiceUnavailable)
		}
		if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
			t.Errorf("GET %s error = %+v, want code %s", target, env.Error, ErrCodeServiceUnavailable)
		}
	}

	rec, _ := do(t, h, http.MethodPost, "/api/v1/recommendations/predict", `{"movies":["Heat"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("predict status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRebuild(t *testing.T) {
	t.Run("wait returns the new status", func(t *testing.T) {
		svc := newTestService(t, &rowsProvider{rows: testRows})
		h := NewRouter(NewHandler(svc), nil).Setup()

		rec, env := do(t, h, http.MethodPost, "/api/v1/recommendations/rebuild?wait=true", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var status recommend.Status
		if err := json.Unmarshal(env.Data, &status); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if !status.Ready || status.Items != len(testRows) {
			t.Errorf("status = %+v, want ready with %d items", status, len(testRows))
		}

		rec, _ = do(t, h, http.MethodGet, "/api/v1/health/ready", "")
		if rec.Code != http.StatusOK {
			t.Errorf("ready status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("invalid wait flag", func(t *testing.T) {
		svc := newTestService(t, &rowsProvider{rows: testRows})
		h := NewRouter(NewHandler(svc), nil).Setup()

		rec, _ := do(t, h, http.MethodPost, "/api/v1/recommendations/rebuild?wait=maybe", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("background rebuild rejects a second request", func(t *testing.T) {
		provider := &rowsProvider{rows: testRows, release: make(chan struct{})}
		svc := newTestService(t, provider)
		h := NewRouter(NewHandler(svc), nil).Setup()

		rec, _ := do(t, h, http.MethodPost, "/api/v1/recommendations/rebuild", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("first status = %d, want %d", rec.Code, http.StatusAccepted)
		}

		rec, env := do(t, h, http.MethodPost, "/api/v1/recommendations/rebuild", "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("second status = %d, want %d", rec.Code, http.StatusConflict)
		}
		if env.Error == nil || env.Error.Code != ErrCodeConflict {
			t.Errorf("error = %+v, want code %s", env.Error, ErrCodeConflict)
		}

		close(provider.release)
		deadline := time.Now().Add(5 * time.Second)
		for !svc.Status().Ready {
			if time.Now().After(deadline) {
				t.Fatal("background rebuild did not finish")
			}
			time.Sleep(10 * time.Millisecond)
		}
	})
}

func TestStatusAndHealth(t *testing.T) {
	h, svc := newReadyServer(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/recommendations/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	var status recommend.Status
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if status.BuildID != svc.Status().BuildID || status.Version != 1 {
		t.Errorf("status = %+v, want build %q version 1", status, svc.Status().BuildID)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want %d", rec.Code, http.StatusOK)
	}
}
