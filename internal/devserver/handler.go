// Package devserver is a small HTTP backend implementing the engagement and
// feed endpoints, with failure injection to exercise client rollback.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmcdole/kudos/internal/adapter/api"
	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/store"
)

const maxBatchIDs = 500

// Options tune failure injection
type Options struct {
	FailRate float64       // probability in [0,1] that a commit answers 503
	Latency  time.Duration // added before every API response
	Rand     func() float64
}

// Handler serves the API
type Handler struct {
	store   *store.Store
	opts    Options
	logger  *slog.Logger
	metrics *metrics
	gather  prometheus.Gatherer
}

// NewHandler creates the API handler. Metrics are registered on registry.
func NewHandler(s *store.Store, opts Options, registry *prometheus.Registry, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:   s,
		opts:    opts,
		logger:  logger,
		metrics: m,
		gather:  registry,
	}, nil
}

// Routes returns the request multiplexer
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(route string, handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.instrument(route, handler))
	}

	mux.HandleFunc("GET /posts", wrap("list_posts", h.listPosts))
	mux.HandleFunc("GET /posts/{id}", wrap("get_post", h.getPost))
	mux.HandleFunc("GET /{collection}/{id}/engagement", wrap("get_engagement", h.getEngagement))
	mux.HandleFunc("POST /{collection}/engagement", wrap("batch_engagement", h.batchEngagement))
	mux.HandleFunc("POST /{collection}/{id}/share", wrap("share", h.share))
	mux.HandleFunc("POST /{collection}/{id}/{action}", wrap("commit", h.commit))

	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gather, promhttp.HandlerOpts{}))

	return mux
}

func entityType(collection string) (domain.EntityType, bool) {
	for _, t := range []domain.EntityType{domain.EntityPost, domain.EntityComment} {
		if t.Collection() == collection {
			return t, true
		}
	}
	return "", false
}

// delay applies the configured latency unless the client gives up first
func (h *Handler) delay(ctx context.Context) error {
	if h.opts.Latency <= 0 {
		return nil
	}
	t := time.NewTimer(h.opts.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	if h.delay(r.Context()) != nil {
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		h.errorResponse(w, "invalid page", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		h.errorResponse(w, "invalid limit", http.StatusBadRequest)
		return
	}

	posts, more := h.store.ListPosts(page, limit)
	resp := api.PageResponse{Posts: make([]api.PostDTO, 0, len(posts)), Page: page, HasMore: more}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, api.FromPost(p))
	}
	h.jsonResponse(w, resp, http.StatusOK)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	if h.delay(r.Context()) != nil {
		return
	}
	p, ok := h.store.GetPost(r.PathValue("id"))
	if !ok {
		h.errorResponse(w, "post not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, api.FromPost(p), http.StatusOK)
}

func (h *Handler) getEngagement(w http.ResponseWriter, r *http.Request) {
	t, ok := entityType(r.PathValue("collection"))
	if !ok {
		h.errorResponse(w, "unknown collection", http.StatusNotFound)
		return
	}
	if h.delay(r.Context()) != nil {
		return
	}

	st, ok := h.store.Engagement(domain.EntityKey{Type: t, ID: r.PathValue("id")})
	if !ok {
		h.errorResponse(w, "entity not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, st, http.StatusOK)
}

func (h *Handler) batchEngagement(w http.ResponseWriter, r *http.Request) {
	t, ok := entityType(r.PathValue("collection"))
	if !ok {
		h.errorResponse(w, "unknown collection", http.StatusNotFound)
		return
	}

	var req api.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) > maxBatchIDs {
		h.errorResponse(w, "too many ids", http.StatusBadRequest)
		return
	}
	if h.delay(r.Context()) != nil {
		return
	}

	h.jsonResponse(w, api.BatchResponse{States: h.store.Engagements(t, req.IDs)}, http.StatusOK)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	t, ok := entityType(r.PathValue("collection"))
	if !ok {
		h.errorResponse(w, "unknown collection", http.StatusNotFound)
		return
	}
	action, err := domain.ParseAction(r.PathValue("action"))
	if err != nil {
		h.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	var req api.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if h.delay(r.Context()) != nil {
		return
	}

	key := domain.EntityKey{Type: t, ID: r.PathValue("id")}
	if h.opts.FailRate > 0 && h.opts.Rand() < h.opts.FailRate {
		h.metrics.injectedFailures.Inc()
		h.logger.Info("injected commit failure", "entity", key.String(), "action", action)
		h.errorResponse(w, "injected failure", http.StatusServiceUnavailable)
		return
	}

	st, err := h.store.ApplyAction(key, action, req.DesiredState)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.logger.Debug("applied action", "entity", key.String(), "action", action, "desired", req.DesiredState)
	h.jsonResponse(w, st, http.StatusOK)
}

func (h *Handler) share(w http.ResponseWriter, r *http.Request) {
	t, ok := entityType(r.PathValue("collection"))
	if !ok {
		h.errorResponse(w, "unknown collection", http.StatusNotFound)
		return
	}
	st, err := h.store.Share(domain.EntityKey{Type: t, ID: r.PathValue("id")})
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.jsonResponse(w, st, http.StatusOK)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "ok",
		"posts":  h.store.CountPosts(),
	}, http.StatusOK)
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownAction):
		h.errorResponse(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("store operation failed", "error", err)
		h.errorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, api.ErrorResponse{Error: message}, status)
}

// instrument logs and counts each request
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(ww, r)

		elapsed := time.Since(start)
		h.metrics.observe(route, ww.statusCode, elapsed)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", elapsed)
	}
}

func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("panic while handling request",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)
				h.errorResponse(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// responseWriter records the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
