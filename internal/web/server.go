// Package web serves the HTTP monitor: capture control, a live MJPEG
// overlay, an SSE detection feed, the session store and Prometheus
// metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
)

// Server serves the monitor endpoints.
type Server struct {
	cfg  Config
	repo *store.Repository
	ctrl *capture.Controller
}

// NewServer returns a configured monitor server.
func NewServer(cfg Config, repo *store.Repository, ctrl *capture.Controller) *Server {
	def := DefaultConfig()
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = def.FrameTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Server{cfg: cfg, repo: repo, ctrl: ctrl}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.Handle("GET /metrics", s.ctrl.Metrics().Handler())

	mux.HandleFunc("POST /api/capture/start", s.handleCaptureStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleCaptureStop)
	mux.HandleFunc("GET /api/capture/status", s.handleCaptureStatus)
	mux.HandleFunc("GET /api/detections/stream", s.handleDetectionsStream)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)

	mux.HandleFunc("GET /api/sessions", s.handleSessionsList)
	mux.HandleFunc("DELETE /api/sessions", s.handleSessionsClear)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/storage", s.handleStorage)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down and stops
// any running capture so its session is saved.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP", "listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if res, err := s.ctrl.Stop(shutdownCtx); err == nil && res.Saved {
		logger.Info("HTTP", "saved session %s on shutdown", res.Session.ID)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, updates := s.ctrl.Hub().Subscribe()
	defer s.ctrl.Hub().Unsubscribe(id)
	streamMJPEG(r.Context(), w, updates, s.cfg)
}

func (s *Server) handleDetectionsStream(w http.ResponseWriter, r *http.Request) {
	id, updates := s.ctrl.Hub().Subscribe()
	defer s.ctrl.Hub().Unsubscribe(id)
	streamDetections(r.Context(), w, updates, s.cfg.KeepAlive)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	f, err := session.ParseFeature(r.URL.Query().Get("feature"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	camera := s.cfg.Camera
	if v := r.URL.Query().Get("camera"); v != "" {
		camera, err = strconv.Atoi(v)
		if err != nil || camera < 0 {
			writeError(w, fmt.Errorf("invalid camera %q", v), http.StatusBadRequest)
			return
		}
	}

	if err := s.ctrl.Start(r.Context(), f, camera); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, s.ctrl.Status())
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Stop(r.Context())
	if err != nil && res == nil {
		writeError(w, err, statusFor(err))
		return
	}
	payload := map[string]any{"saved": res.Saved}
	if res.Session != nil {
		payload["session"] = dashboard.Summarize(res.Session)
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	writeJSON(w, payload)
}

func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.Status())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	f, err := session.ParseFeature(r.URL.Query().Get("feature"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	img, err := readUpload(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	res, err := s.ctrl.Analyze(r.Context(), f, img)
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, map[string]any{
		"sessionId":      res.Session.ID,
		"detectionCount": res.Session.DetectionCount,
		"detection":      dashboard.WithoutImages(&session.Session{Detections: []session.Detection{res.Detection}}).Detections[0],
		"results":        res.Results,
	})
}

// readUpload decodes the image from a multipart "image" field or, for any
// other content type, the raw request body.
func readUpload(r *http.Request) (image.Image, error) {
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse upload: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("image field: %w", err)
		}
		defer file.Close()
		body = file
	}
	img, _, err := imaging.Decode(io.LimitReader(body, imaging.MaxUploadBytes))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := optionalFeature(q.Get("feature"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
	}

	all, err := s.repo.List(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, dashboard.List(all, f, q.Get("q"), limit))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	d := dashboard.Describe(sess)
	if include, _ := strconv.ParseBool(r.URL.Query().Get("images")); !include {
		d.Session = dashboard.WithoutImages(sess)
	}
	writeJSON(w, d)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, errNotConfirmed, http.StatusPreconditionRequired)
		return
	}
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	logger.Info("HTTP", "deleted session %s", id)
	writeJSON(w, map[string]any{"deleted": id})
}

func (s *Server) handleSessionsClear(w http.ResponseWriter, r *http.Request) {
	f, err := optionalFeature(r.URL.Query().Get("feature"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if !confirmed(r) {
		writeError(w, errNotConfirmed, http.StatusPreconditionRequired)
		return
	}

	ctx := r.Context()
	var removed int
	if f == "" {
		all, err := s.repo.List(ctx)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if err := s.repo.Clear(ctx); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		removed = len(all)
	} else if removed, err = s.repo.DeleteFeature(ctx, f); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	logger.Info("HTTP", "cleared %d session(s) feature=%q", removed, f)
	writeJSON(w, map[string]any{"removed": removed, "feature": string(f)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	f, err := optionalFeature(r.URL.Query().Get("feature"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	all, err := s.repo.List(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, dashboard.Build(all, f))
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	u, err := s.repo.Usage(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"used":    u.Used,
		"total":   u.Total,
		"percent": u.Percent,
		"warning": u.Percent > dashboard.UsageWarnPercent,
	})
}

var errNotConfirmed = errors.New("deletion is permanent: repeat the request with confirm=true")

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func optionalFeature(v string) (session.Feature, error) {
	if v == "" {
		return "", nil
	}
	return session.ParseFeature(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrBusy), errors.Is(err, capture.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, capture.ErrNotUploadFeature):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrNothingFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, capture.ErrModelLoad), errors.Is(err, capture.ErrCamera):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
