// Package engine turns camera frames into per-frame tracking results: face
// location, distance, landmarks, gaze, head pose and shoulder movement.
//
// An Engine is not safe for concurrent use. Callers serialise every call,
// including configuration changes, onto one goroutine or behind one mutex.
package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/calibration"
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/gaze"
	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/headpose"
	"github.com/ayusman/eyetrack/internal/landmark"
	"github.com/ayusman/eyetrack/internal/shoulder"
)

var (
	// ErrUnknownVariant is returned for a model variant that is not recognised.
	ErrUnknownVariant = errors.New("unknown model variant")
	// ErrInvalidBackend is returned for a backend value outside the known set.
	ErrInvalidBackend = errors.New("invalid detector backend")
	// ErrInvalidCamera is returned for a non-positive focal length.
	ErrInvalidCamera = errors.New("invalid camera parameters")
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithLocator replaces the production face locator.
func WithLocator(loc *detector.Locator) Option {
	return func(e *Engine) {
		e.locator = loc
	}
}

// WithEstimator replaces the production landmark estimator.
func WithEstimator(est *landmark.Estimator) Option {
	return func(e *Engine) {
		e.landmarks = est
	}
}

// Engine holds the long-lived tracking state.
type Engine struct {
	log       logrus.FieldLogger
	locator   *detector.Locator
	landmarks *landmark.Estimator

	focalLength       float64
	principalPoint    geom.Point2D
	defaultConfidence float64
	backend           detector.Backend
	variant           string

	pose        headpose.Tracker
	shoulders   shoulder.Tracker
	calibration calibration.Session

	initialized bool
	warnedInit  bool
}

// New creates an engine. No detector is loaded until the first frame needs one.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		focalLength:       cfg.FocalLength,
		principalPoint:    cfg.PrincipalPoint,
		defaultConfidence: cfg.DefaultConfidence,
		backend:           cfg.Backend,
		variant:           cfg.ModelVariant,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	e.log = e.log.WithField("component", "engine")

	if !e.backend.Valid() {
		e.backend = detector.Auto
	}
	if !detector.ValidVariant(e.variant) {
		e.log.WithField("variant", e.variant).Warn("unknown model variant, using default")
		e.variant = ""
	}
	if e.defaultConfidence <= 0 {
		e.defaultConfidence = DefaultConfidence
	}
	if e.locator == nil {
		e.locator = detector.NewDefaultLocator(cfg.Detector, e.ModelVariant, e.log)
	}
	if e.landmarks == nil {
		e.landmarks = landmark.NewEstimator(e.log,
			landmark.NewHaarEyeLocator(cfg.Detector.ModelDirs),
			landmark.NewPupilLocator(cfg.Detector.ModelDirs),
		)
	}
	return e
}

// Initialize prepares the engine for frames. Detector backends stay unloaded.
func (e *Engine) Initialize() bool {
	e.initialized = true
	e.log.WithFields(logrus.Fields{
		"backend": e.backend.String(),
		"variant": e.ModelVariant(),
	}).Info("tracking engine initialized")
	return true
}

// ProcessFrame tracks one frame with the configured detector backend.
func (e *Engine) ProcessFrame(f Frame) TrackingResult {
	return e.process(f, nil)
}

// ProcessFrameWithOverride tracks one frame using face as the face rectangle
// instead of running a detector. A face that clamps to nothing means no face.
func (e *Engine) ProcessFrameWithOverride(f Frame, face geom.Rect) TrackingResult {
	return e.process(f, &face)
}

// ProcessFrameNormalized is ProcessFrameWithOverride with the rectangle given
// as fractions of the frame size. Without an override it is ProcessFrame.
func (e *Engine) ProcessFrameNormalized(f Frame, hasOverride bool, nx, ny, nw, nh float64) TrackingResult {
	if !hasOverride {
		return e.process(f, nil)
	}
	face := geom.R(
		int(nx*float64(f.Width)),
		int(ny*float64(f.Height)),
		int(nw*float64(f.Width)),
		int(nh*float64(f.Height)),
	)
	return e.process(f, &face)
}

func (e *Engine) process(f Frame, override *geom.Rect) TrackingResult {
	if !e.initialized {
		if !e.warnedInit {
			e.warnedInit = true
			e.log.Warn("frame received before Initialize, returning empty result")
		}
		return TrackingResult{}
	}
	if !f.Valid() {
		return TrackingResult{}
	}

	m, err := convert(f)
	if err != nil {
		e.log.WithError(err).Debug("frame conversion failed")
		return TrackingResult{}
	}
	defer m.Close()

	var found detector.Located
	if override != nil {
		found = detector.Located{Rect: override.Clamp(f.Width, f.Height)}
	} else {
		found = e.locator.Locate(m.detectorFrame(f.Width, f.Height), e.backend)
	}
	if !found.Found() {
		return TrackingResult{}
	}

	return e.analyze(m.gray, found)
}

// analyze derives every per-face measurement and advances the movement history.
func (e *Engine) analyze(gray gocv.Mat, found detector.Located) TrackingResult {
	face := found.Rect

	res := TrackingResult{
		FaceDetected: true,
		FaceRect:     face,
		FaceDistance: FaceDistance(face.Width, e.focalLength),
		Confidence:   e.defaultConfidence,
	}
	if found.Scored {
		res.Confidence = found.Confidence
	}
	if found.Backend.Concrete() {
		res.Backend = found.Backend.String()
	}

	marks := e.landmarks.Estimate(gray, face)
	res.Landmarks = marks.Points

	// Eye corners are estimated from the eye width on the centre line, so
	// only the centres carry information for gaze.
	eyes := landmark.EyePoints(marks.Points)
	if len(eyes) >= 2 {
		g := gaze.FromEyes(eyes[:2])
		res.GazeAngleX = g.X
		res.GazeAngleY = g.Y
		res.EyesFocused = g.Focused
		res.GazeVector = g.Vector()
	}

	res.HeadPose = headpose.Estimate(marks.Points)
	res.HeadMoving = e.pose.Update(res.HeadPose)

	res.Shoulders = shoulder.Detect(gray)
	res.ShouldersMoving = e.shoulders.Update(res.Shoulders)

	e.log.WithFields(logrus.Fields{
		"face":     face,
		"distance": res.FaceDistance,
		"eyes":     marks.EyeSource,
	}).Debug("frame tracked")

	return res
}

// SetCameraParameters sets the focal length and principal point in pixels.
func (e *Engine) SetCameraParameters(focalLength float64, principal geom.Point2D) error {
	if focalLength <= 0 {
		return fmt.Errorf("%w: focal length %v", ErrInvalidCamera, focalLength)
	}
	e.focalLength = focalLength
	e.principalPoint = principal
	return nil
}

// CameraParameters returns the focal length and principal point.
func (e *Engine) CameraParameters() (float64, geom.Point2D) {
	return e.focalLength, e.principalPoint
}

// SetDetectorBackend sets the backend preference for subsequent frames.
func (e *Engine) SetDetectorBackend(b detector.Backend) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidBackend, int(b))
	}
	if b != e.backend {
		e.log.WithFields(logrus.Fields{
			"from": e.backend.String(),
			"to":   b.String(),
		}).Info("detector backend changed")
	}
	e.backend = b
	return nil
}

// DetectorBackend returns the backend preference, which may be Auto.
func (e *Engine) DetectorBackend() detector.Backend {
	return e.backend
}

// ActiveBackend returns the concrete backend the next frame would use. It
// may load backends to find out. The bool is false when none is available.
func (e *Engine) ActiveBackend() (detector.Backend, bool) {
	return e.locator.Resolve(e.backend)
}

// SetModelVariant selects the YOLO weights. It applies to the next load and
// does not replace an already loaded network.
func (e *Engine) SetModelVariant(name string) error {
	if !detector.ValidVariant(name) {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	e.variant = name
	return nil
}

// ModelVariant returns the selected variant, resolving the default.
func (e *Engine) ModelVariant() string {
	if e.variant == "" {
		return detector.DefaultModelVariant
	}
	return e.variant
}

// RetryDetectorLoad forgets a memoised load failure so the backend is probed
// again on the next frame. Auto resets every backend.
func (e *Engine) RetryDetectorLoad(b detector.Backend) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidBackend, int(b))
	}
	e.log.WithField("backend", b.String()).Info("retrying detector load")
	return e.locator.Reset(b)
}

// BackendStatus reports the load state of every backend.
func (e *Engine) BackendStatus() []detector.Status {
	return e.locator.Statuses()
}

// StartCalibration clears any collected calibration points.
func (e *Engine) StartCalibration() {
	e.calibration.Start()
}

// AddCalibrationPoint records a screen point.
func (e *Engine) AddCalibrationPoint(p geom.Point2D) {
	e.calibration.Add(p)
}

// FinishCalibration completes the session and reports whether it is valid.
func (e *Engine) FinishCalibration() bool {
	ok := e.calibration.Finish()
	e.log.WithFields(logrus.Fields{
		"points": e.calibration.Len(),
		"valid":  ok,
	}).Info("calibration finished")
	return ok
}

// IsCalibrated reports whether the last calibration was valid.
func (e *Engine) IsCalibrated() bool {
	return e.calibration.IsCalibrated()
}

// CalibrationPoints returns the collected points.
func (e *Engine) CalibrationPoints() []geom.Point2D {
	return e.calibration.Points()
}

// CalibrationState returns the calibration lifecycle stage.
func (e *Engine) CalibrationState() calibration.State {
	return e.calibration.State()
}

// Close releases every loaded model.
func (e *Engine) Close() error {
	return errors.Join(e.locator.Close(), e.landmarks.Close())
}
