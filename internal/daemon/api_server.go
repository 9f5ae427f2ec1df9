package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"trendclip/internal/api"
	"trendclip/internal/clips"
	"trendclip/internal/config"
	"trendclip/internal/joblog"
	"trendclip/internal/logging"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/sources"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs", srv.handleListJobs)
	mux.HandleFunc("POST /api/jobs", srv.handleSubmitJob)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", srv.handleCancelJob)
	mux.HandleFunc("POST /api/jobs/{id}/retry", srv.handleRetryJob)
	mux.HandleFunc("GET /api/clips", srv.handleListClips)
	mux.HandleFunc("POST /api/clips/{id}/uploaded", srv.handleClipUploaded)
	mux.HandleFunc("GET /api/settings", srv.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", srv.handleUpdateSettings)
	mux.HandleFunc("GET /api/logs", srv.handleListLogs)
	mux.HandleFunc("GET /api/stats", srv.handleStats)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/metadata", srv.handleMetadata)
	mux.Handle("GET /api/events", d.hub)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.daemon.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewJobs(jobs))
}

func (s *apiServer) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var request api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.daemon.workflow.Submit(r.Context(), request.SourceURL, request.SourceType)
	if err != nil {
		var invalid *sources.InvalidSourceError
		if errors.As(err, &invalid) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.NewJob(job))
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewJob(job))
}

func (s *apiServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.daemon.workflow.Cancel(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusNoContent, nil)
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, queue.ErrNotCancellable):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.workflow.Retry(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, api.NewJob(job))
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, queue.ErrNotRetryable):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) handleListClips(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.clipStore.List(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewClips(list))
}

func (s *apiServer) handleClipUploaded(w http.ResponseWriter, r *http.Request) {
	var request api.UploadedRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	platform, ok := clips.ParsePlatform(request.Platform)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform %q", request.Platform))
		return
	}

	clip, err := s.daemon.clipStore.MarkUploaded(r.Context(), r.PathValue("id"), platform)
	if err != nil {
		if errors.Is(err, clips.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "clip not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewClip(clip))
}

func (s *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	record, err := s.daemon.settingsStore.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, record.Masked())
}

func (s *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var incoming settings.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.daemon.settingsStore.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	merged := settings.PreserveMasked(incoming, current)
	if err := merged.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.daemon.settingsStore.Save(r.Context(), merged)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.daemon.publishSettingsUpdated(saved)
	s.writeJSON(w, http.StatusOK, saved.Masked())
}

func (s *apiServer) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := joblog.Filter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, ok := joblog.ParseLevel(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown level %q", raw))
			return
		}
		filter.Level = level
	}

	entries, err := s.daemon.logStore.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewLogEntries(entries))
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.workflow.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.Stats{
		TotalProcessed:        stats.TotalProcessed,
		TotalFailed:           stats.TotalFailed,
		ActiveJobs:            stats.ActiveJobs,
		QueuedJobs:            stats.QueuedJobs,
		TotalClips:            stats.TotalClips,
		AverageProcessingTime: stats.AverageProcessingTime,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.store.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusReport{
		Version: Version,
		Started: s.daemon.started,
		Queue:   api.NewQueueCounts(health),
		Stages:  api.NewStageHealth(s.daemon.workflow.StageHealth(r.Context())),
	})
}

func (s *apiServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	sourceURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if sourceURL == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	probeCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	meta, err := s.daemon.prober.Probe(probeCtx, sourceURL)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
