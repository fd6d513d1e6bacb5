package detector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ErrModelNotFound is returned when no candidate location holds the model file.
var ErrModelNotFound = errors.New("model file not found")

// ErrModelLoad is returned when a model file exists but cannot be loaded.
var ErrModelLoad = errors.New("model failed to load")

// Resolver returns the path of the model file a handle should load.
type Resolver func() (string, error)

// LoadFunc constructs a backend from a resolved model path.
type LoadFunc func(path string) (FaceDetector, error)

// Handle lazily constructs one backend and memoises the outcome. A failed load
// is never retried implicitly; Reset must be called to try again.
type Handle struct {
	backend Backend
	resolve Resolver
	load    LoadFunc
	log     logrus.FieldLogger

	detector      FaceDetector
	path          string
	loadAttempted bool
	loaded        bool
	err           error
}

// Status is a snapshot of a handle's load state.
type Status struct {
	Backend   string `json:"backend"`
	Attempted bool   `json:"attempted"`
	Loaded    bool   `json:"loaded"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewHandle creates a handle for backend. Nothing is loaded until EnsureLoaded.
func NewHandle(backend Backend, resolve Resolver, load LoadFunc, log logrus.FieldLogger) *Handle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handle{
		backend: backend,
		resolve: resolve,
		load:    load,
		log:     log.WithField("backend", backend.String()),
	}
}

// Backend returns the backend this handle wraps.
func (h *Handle) Backend() Backend {
	return h.backend
}

// EnsureLoaded loads the backend on first use and reports whether it is available.
func (h *Handle) EnsureLoaded() bool {
	if h.loadAttempted {
		return h.loaded
	}
	h.loadAttempted = true

	path, err := h.resolve()
	if err != nil {
		h.fail(err)
		return false
	}

	det, err := h.safeLoad(path)
	if err != nil {
		h.path = path
		h.fail(err)
		return false
	}

	h.detector = det
	h.path = path
	h.loaded = true
	h.log.WithField("path", path).Info("face detector loaded")
	return true
}

// safeLoad converts a panic inside a backend constructor into an error.
func (h *Handle) safeLoad(path string) (det FaceDetector, err error) {
	defer func() {
		if r := recover(); r != nil {
			det = nil
			err = fmt.Errorf("%w: %s: %v", ErrModelLoad, path, r)
		}
	}()
	return h.load(path)
}

func (h *Handle) fail(err error) {
	h.loaded = false
	h.err = err
	h.log.WithError(err).Warn("face detector unavailable, not retrying")
}

// Detect runs the loaded backend. It must only be called after EnsureLoaded returned true.
func (h *Handle) Detect(frame Frame) ([]Detection, error) {
	if !h.loaded || h.detector == nil {
		return nil, fmt.Errorf("%s: %w", h.backend, ErrModelLoad)
	}
	return h.detector.Detect(frame)
}

// Err returns the recorded load error, if any.
func (h *Handle) Err() error {
	return h.err
}

// Status reports the current load state.
func (h *Handle) Status() Status {
	s := Status{
		Backend:   h.backend.String(),
		Attempted: h.loadAttempted,
		Loaded:    h.loaded,
		Path:      h.path,
	}
	if h.err != nil {
		s.Error = h.err.Error()
	}
	return s
}

// Reset releases the backend and forgets the memoised outcome so the next
// EnsureLoaded probes the model locations again.
func (h *Handle) Reset() error {
	err := h.Close()
	h.loadAttempted = false
	h.loaded = false
	h.path = ""
	h.err = nil
	return err
}

// Close releases the backend. The handle reports unavailable until Reset.
func (h *Handle) Close() error {
	if h.detector == nil {
		return nil
	}
	err := h.detector.Close()
	h.detector = nil
	h.loaded = false
	return err
}

// ModelResolver probes dirs in order for the first of files that exists.
// files is evaluated at resolve time so a changed model variant is picked up
// by the next load.
func ModelResolver(dirs []string, files func() []string) Resolver {
	return func() (string, error) {
		return FindModel(dirs, files())
	}
}

// FindModel returns the first existing dir/file combination.
func FindModel(dirs, files []string) (string, error) {
	for _, dir := range dirs {
		for _, name := range files {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				if abs, err := filepath.Abs(path); err == nil {
					return abs, nil
				}
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrModelNotFound, files)
}

// DefaultModelDirs lists the candidate model locations: the bundled resource
// directory next to the executable, the install directories, then the
// working directory.
func DefaultModelDirs() []string {
	var dirs []string

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		dirs = append(dirs,
			filepath.Join(execDir, "models"),
			filepath.Join(execDir, "..", "Resources", "models"),
		)
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".eyetrack", "models"))
	}

	dirs = append(dirs,
		"/usr/local/share/eyetrack/models",
		"/usr/share/eyetrack/models",
		"/usr/local/share/opencv4/haarcascades",
		"/usr/share/opencv4/haarcascades",
		"/opt/homebrew/share/opencv4/haarcascades",
		"models",
		filepath.Join("assets", "models"),
	)
	return dirs
}
