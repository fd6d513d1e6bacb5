// Package server exposes the tracker over HTTP: the latest result, a
// WebSocket result feed, engine controls and recorded sessions.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/app"
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/server/api"
	"github.com/ayusman/eyetrack/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tracker is the part of the application the server drives. *app.App
// implements it.
type Tracker interface {
	Latest() (engine.TrackingResult, time.Time, bool)
	Subscribe() (<-chan engine.TrackingResult, func())
	Snapshot() (gocv.Mat, bool)

	SetDetectorBackend(b detector.Backend) error
	DetectorBackend() detector.Backend
	ActiveBackend() (detector.Backend, bool)
	RetryDetectorLoad(b detector.Backend) error
	BackendStatus() []detector.Status
	SetModelVariant(name string) error
	ModelVariant() string
	SetCameraParameters(focal float64, principal geom.Point2D) error
	CameraParameters() (float64, geom.Point2D)

	StartCalibration()
	AddCalibrationPoint(p geom.Point2D)
	FinishCalibration() (bool, *store.Calibration, error)
	Calibration() app.CalibrationStatus

	SetTarget(p geom.Point2D)
	ClearTarget()
	Target() (geom.Point2D, bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Tracker   Tracker
	Store     *store.Store
	Logger    logrus.FieldLogger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	log    logrus.FieldLogger
	mux    *http.ServeMux
	start  time.Time

	http *http.Server
	// ctx is the base of every request context and ends at Shutdown, so
	// streaming handlers return.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		config: config,
		log:    log.WithField("component", "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if t := s.config.Tracker; t != nil {
		c := &controlHandler{tracker: t}
		s.mux.HandleFunc("/api/result", c.result)
		s.mux.HandleFunc("/api/backend", c.backend)
		s.mux.HandleFunc("/api/backends", c.backends)
		s.mux.HandleFunc("/api/backends/retry", c.retry)
		s.mux.HandleFunc("/api/variant", c.variant)
		s.mux.HandleFunc("/api/camera", c.camera)
		s.mux.HandleFunc("/api/calibration", c.calibration)
		s.mux.HandleFunc("/api/calibration/start", c.calibrationStart)
		s.mux.HandleFunc("/api/calibration/point", c.calibrationPoint)
		s.mux.HandleFunc("/api/calibration/finish", c.calibrationFinish)
		s.mux.HandleFunc("/api/target", c.target)

		s.mux.Handle("/api/results", NewResultsHandler(t, s.log))
		s.mux.Handle("/api/stream", NewStreamHandler(t))
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		s.mux.Handle("/api/calibrations/latest", api.NewCalibrationHandler(s.config.Store))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if t := s.config.Tracker; t != nil {
		response["backend"] = t.DetectorBackend().String()
		response["variant"] = t.ModelVariant()
	}

	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe listens on addr and serves until Shutdown. It returns nil
// after a Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("http server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends streaming requests, stops accepting connections and waits
// for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.http.Shutdown(ctx)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
