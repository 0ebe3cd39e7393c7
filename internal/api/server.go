// Package api exposes search and streamed answers over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"faqrag/internal/completion"
	"faqrag/internal/domain"
	"faqrag/internal/metrics"
	"faqrag/internal/service"
)

// MaxLimit caps the number of documents a single request may ask for.
const MaxLimit = 50

// Service is the subset of the RAG service the API serves.
type Service interface {
	Load(ctx context.Context) (string, error)
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error)
	Ask(ctx context.Context, query string, opts domain.SearchOptions) (*domain.Answer, error)
}

// Pinger is implemented by search providers with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type server struct {
	svc     Service
	pinger  Pinger
	metrics *metrics.Metrics
	log     *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	Query   string            `json:"query"`
	Results []domain.Document `json:"results"`
}

type askRequest struct {
	Question string  `json:"question"`
	Course   *string `json:"course,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Stream   *bool   `json:"stream,omitempty"`
}

type askResponse struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []domain.Document `json:"sources"`
}

// NewRouter builds the HTTP handler. pinger and m may be nil.
func NewRouter(svc Service, pinger Pinger, m *metrics.Metrics, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{svc: svc, pinger: pinger, metrics: m, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe(m, log))

	r.Get("/health", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Post("/ask", s.handleAsk)
	r.Post("/reload", s.handleReload)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	}
	opts := domain.SearchOptions{Limit: clampInt(params.Get("limit"), 0, MaxLimit)}
	if params.Has("course") {
		opts.Filter = courseFilter(params.Get("course"))
	}

	docs, err := s.svc.Search(ctx, query, opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: docs})
}

// handleAsk streams the answer as plain text, flushing after every chunk. Errors
// after the first byte can only be reported inline. With "stream": false the
// whole answer is collected and returned as JSON instead.
func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}
	opts := domain.SearchOptions{Limit: min(max(req.Limit, 0), MaxLimit)}
	if req.Course != nil {
		opts.Filter = courseFilter(*req.Course)
	}

	ans, err := s.svc.Ask(r.Context(), req.Question, opts)
	switch {
	case errors.Is(err, service.ErrNoResults):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	if req.Stream != nil && !*req.Stream {
		text, err := completion.Collect(ans.Chunks)
		if err != nil {
			s.log.Warn("answer stream aborted", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, askResponse{Question: req.Question, Answer: text, Sources: ans.Documents})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Sources", strconv.Itoa(len(ans.Documents)))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for chunk, err := range ans.Chunks {
		if err != nil {
			s.log.Warn("answer stream aborted", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
			_, _ = w.Write([]byte("\n[error: " + err.Error() + "]\n"))
			return
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			// client went away
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleReload refetches the FAQ documents and rebuilds the index.
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "summary": summary})
}

// courseFilter maps an empty course to "all courses".
func courseFilter(course string) map[string]string {
	course = strings.TrimSpace(course)
	if course == "" {
		return map[string]string{}
	}
	return map[string]string{"course": course}
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
