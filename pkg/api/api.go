// Package api exposes the clip store and edit pipeline over HTTP. Routes
// are JSON in and out except for rendered artifacts, which return DOT text
// or SVG directly.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/cache"
	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/graphio"
	"github.com/boneforge/boneforge/pkg/observability"
	"github.com/boneforge/boneforge/pkg/plan"
	"github.com/boneforge/boneforge/pkg/render"
	"github.com/boneforge/boneforge/pkg/skeleton"
	"github.com/boneforge/boneforge/pkg/store"
)

// maxBodySize bounds uploaded BVH and plan payloads.
const maxBodySize = 32 << 20

// Server serves the clip API.
type Server struct {
	store  store.Store
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables render caching.
func WithCache(c cache.Cache, k cache.Keyer) Option {
	return func(s *Server) {
		s.cache = c
		s.keyer = k
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server backed by the given clip store.
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		cache:  cache.NewNullCache(),
		keyer:  cache.NewDefaultKeyer(),
		logger: log.New(io.Discard),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/pipeline", s.handlePipeline)
		r.Route("/clips", func(r chi.Router) {
			r.Get("/", s.handleListClips)
			r.Post("/", s.handlePutClip)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetClip)
				r.Delete("/", s.handleDeleteClip)
				r.Get("/render", s.handleRenderClip)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// pipelineRequest carries a BVH document and an optional edit plan inline.
type pipelineRequest struct {
	BVH    string `json:"bvh"`
	Plan   string `json:"plan,omitempty"`
	SaveAs string `json:"saveAs,omitempty"`
}

type pipelineResponse struct {
	RunID  string `json:"runId"`
	Joints int    `json:"joints"`
	Frames int    `json:"frames"`
	BVH    string `json:"bvh"`
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.BVH == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "missing bvh"))
		return
	}

	skel, err := bvh.Parse(strings.NewReader(req.BVH))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Plan != "" {
		edits, err := plan.Parse([]byte(req.Plan))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		observability.Pipeline().OnEditStart(r.Context(), len(edits.Ops), skel.FrameCount())
		start := time.Now()
		err = edits.Apply(skel)
		observability.Pipeline().OnEditComplete(r.Context(), len(edits.Ops), time.Since(start), err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if req.SaveAs != "" {
		clip, err := store.NewClip(req.SaveAs, graphio.FromSkeleton(skel))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.store.Put(r.Context(), clip); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	out, err := bvh.Marshal(skel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelineResponse{
		RunID:  middleware.GetReqID(r.Context()),
		Joints: skel.JointCount(),
		Frames: skel.FrameCount(),
		BVH:    string(out),
	})
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": infos})
}

// putClipRequest stores a clip from a skeleton document.
type putClipRequest struct {
	Name     string            `json:"name"`
	Document *graphio.Document `json:"document"`
}

func (s *Server) handlePutClip(w http.ResponseWriter, r *http.Request) {
	var req putClipRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Round-trip through the skeleton to reject malformed documents early.
	if req.Document != nil {
		if _, err := req.Document.ToSkeleton(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	clip, err := store.NewClip(req.Name, req.Document)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Put(r.Context(), clip); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": clip.Name})
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	clip, err := s.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clip)
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenderClip(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "dot"
	}
	maxDepth, _ := strconv.Atoi(r.URL.Query().Get("maxDepth"))

	clip, err := s.store.Get(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := json.Marshal(clip.Document)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "encode document"))
		return
	}
	key := s.keyer.RenderKey(cache.Hash(doc), cache.RenderKeyOpts{Format: format, MaxDepth: maxDepth})
	if data, ok, err := s.cache.Get(r.Context(), key); err == nil && ok {
		observability.Cache().OnCacheHit(r.Context(), "render")
		writeArtifact(w, format, data)
		return
	}
	observability.Cache().OnCacheMiss(r.Context(), "render")

	skel, err := clip.Document.ToSkeleton()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var opts []render.Option
	if maxDepth > 0 {
		opts = append(opts, render.WithMaxDepth(maxDepth))
	}

	var data []byte
	start := time.Now()
	observability.Pipeline().OnRenderStart(r.Context(), format)
	switch format {
	case "dot":
		data = []byte(render.ToDOT(skel, opts...))
	case "svg":
		data, err = render.RenderSVG(r.Context(), skel, opts...)
	default:
		err = errors.New(errors.ErrCodeInvalidInput, "unknown format %q", format)
	}
	observability.Pipeline().OnRenderComplete(r.Context(), format, time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.cache.Set(r.Context(), key, data, 0); err == nil {
		observability.Cache().OnCacheSet(r.Context(), "render", len(data))
	}
	writeArtifact(w, format, data)
}

// =============================================================================
// Helpers
// =============================================================================

// requestID assigns a UUID to each request, honoring an inbound header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeArtifact(w http.ResponseWriter, format string, data []byte) {
	switch format {
	case "svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	default:
		w.Header().Set("Content-Type", "text/vnd.graphviz")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeError maps coded errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": errors.UserMessage(err)})
}

func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidJoint, errors.ErrCodeInvalidOrder,
		errors.ErrCodeInvalidPlan, errors.ErrCodeInvalidClip, errors.ErrCodeInvalidPath,
		errors.ErrCodeInvalidTopology, errors.ErrCodeDimensionMismatch,
		errors.ErrCodeDegenerateRotation, errors.ErrCodeParse:
		return http.StatusBadRequest
	case errors.ErrCodeClipExists:
		return http.StatusConflict
	case errors.ErrCodeStorage:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	}

	// Editor errors surface as plain sentinels.
	switch {
	case stderrors.Is(err, skeleton.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, skeleton.ErrInvalidName),
		stderrors.Is(err, skeleton.ErrDuplicateName),
		stderrors.Is(err, skeleton.ErrInvalidTopology),
		stderrors.Is(err, skeleton.ErrDimensionMismatch),
		stderrors.Is(err, skeleton.ErrFrameRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
