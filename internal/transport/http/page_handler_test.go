package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gadevtools/internal/shared/testutil"
)

func newPageRouter(t *testing.T, renderer PageRenderer, configure func(*PageHandler)) (chi.Router, *testutil.BufferedSlogHandler) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewPageHandler(renderer, logger, newErrorHandler(t))
	if configure != nil {
		configure(h)
	}

	r := chi.NewRouter()
	r.Mount("/", h.Routes())
	return r, logs
}

func TestPageHandler_Routes(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		project     string
		page        string
		found       bool
		wantStatus  int
		wantContent string
	}{
		{name: "index", path: "/", project: "", page: "", found: true, wantStatus: http.StatusOK, wantContent: "index"},
		{name: "project", path: "/query-explorer/", project: "query-explorer", found: true, wantStatus: http.StatusOK, wantContent: "explorer"},
		{name: "page", path: "/dimensions-metrics-explorer/groups/", project: "dimensions-metrics-explorer", page: "groups", found: true, wantStatus: http.StatusOK, wantContent: "groups"},
		{name: "unknown", path: "/nope/", project: "nope", found: false, wantStatus: http.StatusNotFound, wantContent: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := new(MockPageRenderer)
			renderer.On("RenderPage", tt.project, tt.page, mock.Anything).Return(tt.wantContent, tt.found, nil)

			r, _ := newPageRouter(t, renderer, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantContent, w.Body.String())
			renderer.AssertExpectations(t)
		})
	}
}

func TestPageHandler_AddsTrailingSlash(t *testing.T) {
	tests := []struct {
		path     string
		location string
	}{
		{path: "/query-explorer", location: "/query-explorer/"},
		{path: "/dimensions-metrics-explorer/groups?x=1", location: "/dimensions-metrics-explorer/groups/?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, _ := newPageRouter(t, new(MockPageRenderer), nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusMovedPermanently, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestPageHandler_DataProvider(t *testing.T) {
	data := map[string]interface{}{"groups": []string{"User"}}
	renderer := new(MockPageRenderer)
	renderer.On("RenderPage", "dimensions-metrics-explorer", "groups", data).Return("ok", true, nil)

	r, _ := newPageRouter(t, renderer, func(h *PageHandler) {
		h.WithData("dimensions-metrics-explorer", "groups", func(context.Context) (map[string]interface{}, error) {
			return data, nil
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dimensions-metrics-explorer/groups/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	renderer.AssertExpectations(t)
}

func TestPageHandler_DataProviderFailureStillRenders(t *testing.T) {
	renderer := new(MockPageRenderer)
	renderer.On("RenderPage", "dimensions-metrics-explorer", "groups", map[string]interface{}(nil)).Return("ok", true, nil)

	r, logs := newPageRouter(t, renderer, func(h *PageHandler) {
		h.WithData("dimensions-metrics-explorer", "groups", func(context.Context) (map[string]interface{}, error) {
			return nil, errors.New("metadata api down")
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dimensions-metrics-explorer/groups/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, logs.ContainsMessage("page data unavailable"))
	renderer.AssertExpectations(t)
}

func TestPageHandler_RenderError(t *testing.T) {
	renderer := new(MockPageRenderer)
	renderer.On("RenderPage", "", "", mock.Anything).Return("", false, errors.New("template: 404.html missing"))

	r, _ := newPageRouter(t, renderer, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}
