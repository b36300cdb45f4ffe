package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Tutortoise/weapon-detection-service/config"
	"github.com/Tutortoise/weapon-detection-service/detections"
	"github.com/Tutortoise/weapon-detection-service/health"
	"github.com/Tutortoise/weapon-detection-service/logger"
	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	indexTemplate  = "index.html"
	resultTemplate = "result.html"

	requestIDHeader = "X-Request-ID"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	requestLoggerKey
)

// AppState holds everything the handlers share. pipeline is nil when the
// model failed to load; detection routes then answer 503.
type AppState struct {
	cfg       *config.Config
	logger    *logger.Logger
	pipeline  *detections.Pipeline
	health    *health.Manager
	metrics   *Metrics
	templates *template.Template
}

// NewAppState wires handlers around m, which may be nil.
func NewAppState(cfg *config.Config, log *logger.Logger, m detections.Model, runtimeDetails map[string]interface{}) (*AppState, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	state := &AppState{
		cfg:       cfg,
		logger:    log,
		health:    health.NewManager(log),
		templates: tmpl,
	}

	var poolStatus health.PoolStatus
	var stats poolStatsSource
	if m != nil {
		state.pipeline = detections.NewPipeline(m, pipelineConfig(cfg), log)
		poolStatus, _ = m.(health.PoolStatus)
		stats, _ = m.(poolStatsSource)
	}
	state.metrics = NewMetrics(stats)

	state.health.RegisterChecker(health.NewModelChecker(poolStatus, runtimeDetails))
	state.health.RegisterChecker(health.NewUploadDirChecker(cfg.Upload.Dir))

	return state, nil
}

func pipelineConfig(cfg *config.Config) detections.PipelineConfig {
	return detections.PipelineConfig{
		ConfThreshold: float32(cfg.Detection.ConfidenceThreshold),
		MaxBoxes:      cfg.Detection.MaxBoxes,
		LineThickness: cfg.Detection.LineThickness,
		JPEGQuality:   cfg.Detection.JPEGQuality,
		MaxPixels:     cfg.Upload.MaxPixels,
	}
}

func (s *AppState) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleFormDetect).Methods(http.MethodPost)
	r.HandleFunc("/api/detect", s.handleAPIDetect).Methods(http.MethodPost)
	s.addMonitoringRoutes(r)

	return r
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.Handle("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// Close releases the model. Safe when no model was loaded.
func (s *AppState) Close() error {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Close()
}

type DetectionsPayload struct {
	Count   int          `json:"count"`
	Boxes   [][4]float32 `json:"boxes"`
	Scores  []float32    `json:"scores"`
	Classes []string     `json:"classes"`
}

type DetectResponse struct {
	Detections     DetectionsPayload `json:"detections"`
	AnnotatedImage string            `json:"annotated_image"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newDetectionsPayload(batch models.DetectionBatch) DetectionsPayload {
	payload := DetectionsPayload{
		Count:   len(batch),
		Boxes:   make([][4]float32, 0, len(batch)),
		Scores:  make([]float32, 0, len(batch)),
		Classes: make([]string, 0, len(batch)),
	}
	for _, det := range batch {
		payload.Boxes = append(payload.Boxes, det.Box)
		payload.Scores = append(payload.Scores, det.Score)
		payload.Classes = append(payload.Classes, det.ClassName)
	}
	return payload
}

func (s *AppState) handleAPIDetect(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		sendErrorResponse(w, MsgModelNotLoaded, http.StatusServiceUnavailable)
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		sendErrorResponse(w, errorMessage(err), statusForError(err))
		return
	}

	out, err := s.detect(r.Context(), up.Data)
	if err != nil {
		s.requestLogger(r.Context()).Error("Detection failed", "error", err)
		sendErrorResponse(w, err.Error(), statusForError(err))
		return
	}

	sendJSON(w, http.StatusOK, DetectResponse{
		Detections:     newDetectionsPayload(out.Batch),
		AnnotatedImage: base64.StdEncoding.EncodeToString(out.AnnotatedJPEG),
	})
}

type indexView struct {
	Error string
}

type resultView struct {
	ImageURL   template.URL
	Detections models.DetectionBatch
}

func (s *AppState) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, indexTemplate, indexView{})
}

// handleFormDetect persists the upload, runs the pipeline and renders the
// result page. The saved file is removed on every path.
func (s *AppState) handleFormDetect(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.render(w, http.StatusServiceUnavailable, indexTemplate, indexView{Error: MsgModelNotLoaded})
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.render(w, http.StatusOK, indexTemplate, indexView{Error: errorMessage(err)})
		return
	}

	path, err := up.persist(s.cfg.Upload.Dir)
	if err != nil {
		s.requestLogger(r.Context()).Error("Failed to save upload", "error", err)
		s.render(w, http.StatusOK, indexTemplate, indexView{Error: MsgProcessingFailed + ": " + err.Error()})
		return
	}
	defer s.removeUpload(r.Context(), path)

	out, err := s.detectFile(r.Context(), path)
	if err != nil {
		s.requestLogger(r.Context()).Error("Detection failed", "error", err)
		s.render(w, http.StatusOK, indexTemplate, indexView{Error: MsgProcessingFailed + ": " + err.Error()})
		return
	}

	s.render(w, http.StatusOK, resultTemplate, resultView{
		ImageURL:   template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out.AnnotatedJPEG)),
		Detections: out.Batch,
	})
}

func (s *AppState) detectFile(ctx context.Context, path string) (*detections.Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read saved upload: %w", err)
	}
	return s.detect(ctx, data)
}

func (s *AppState) detect(ctx context.Context, data []byte) (*detections.Output, error) {
	timings := &models.ProcessingTimings{RequestID: requestID(ctx)}
	out, err := s.pipeline.Process(ctx, data, timings)
	if err != nil {
		return nil, err
	}
	s.metrics.ObservePipeline(timings, out.Batch)
	return out, nil
}

func (s *AppState) removeUpload(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.requestLogger(ctx).Warn("Failed to remove upload", "path", path, "error", err)
	}
}

func (s *AppState) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template", "template", name, "error", err)
	}
}

// statusForError maps core errors onto HTTP codes.
func statusForError(err error) int {
	switch {
	case detections.IsKind(err, detections.KindValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the bare user-facing message for validation errors.
func errorMessage(err error) string {
	var perr *detections.ProcessingError
	if errors.As(err, &perr) && perr.Kind == detections.KindValidation {
		return perr.Message
	}
	return err.Error()
}

// sendJSON marshals before writing the header so an unencodable value turns
// into a 500 instead of an empty body.
func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: "failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func sendErrorResponse(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, ErrorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware tags each request with an id and logs and counts it.
func (s *AppState) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		reqLog := s.logger.With("request_id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		r = r.WithContext(context.WithValue(ctx, requestLoggerKey, reqLog))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(rec.status), elapsed.Seconds())
		reqLog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"latency", elapsed,
		)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLogger returns the logger tagged with the request id, or the base
// logger outside a request.
func (s *AppState) requestLogger(ctx context.Context) *logger.Logger {
	if l, ok := ctx.Value(requestLoggerKey).(*logger.Logger); ok {
		return l
	}
	return s.logger
}
