package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"vidnag-tracker/internal/domain"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the registry and the submit/cancel operations to a renderer.
type Server struct {
	registry repository.JobRegistry
	submit   usecase.SubmissionUseCase
	cancel   usecase.CancelUseCase
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewServer constructs the HTTP layer. timeout bounds each request, including
// the server round trips a batch submission makes.
func NewServer(registry repository.JobRegistry, submit usecase.SubmissionUseCase, cancel usecase.CancelUseCase, timeout time.Duration, logger *zerolog.Logger) *Server {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{registry: registry, submit: submit, cancel: cancel, timeout: timeout, log: logger}
}

// Routes builds the chi router with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Post("/", s.submitJobs)
		r.Get("/{key}", s.getJob)
		r.Delete("/{key}", s.cancelJob)
	})

	return Chain(r, Recover(s.log), TraceID(), RequestLog(s.log), Timeout(s.timeout))
}

type jobsResponse struct {
	Jobs []model.Job `json:"jobs"`
}

// submitRequest accepts either an explicit list or newline-delimited text.
type submitRequest struct {
	SourceRefs []string `json:"source_refs"`
	URLs       []string `json:"urls"`
	Text       string   `json:"text"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jobsResponse{Jobs: s.registry.Snapshot()})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.registry.Get(chi.URLParam(r, "key"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) submitJobs(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	refs := append(append([]string{}, req.SourceRefs...), req.URLs...)
	if strings.TrimSpace(req.Text) != "" {
		refs = append(refs, usecase.ParseSourceRefs(req.Text)...)
	}

	res, err := s.submit.Submit(r.Context(), refs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := s.cancel.Cancel(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotCancellable):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.As(err, &gwErr):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	default:
		l := s.log.With().Str("path", r.URL.Path).Logger()
		l.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
