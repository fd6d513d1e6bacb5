// Package app hosts the tracking engine: it owns the camera loop, serialises
// every engine call, fans results out to subscribers and records them.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/calibration"
	"github.com/ayusman/eyetrack/internal/capture"
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the scene is moving.
	ActiveFPS = 15
	// IdleTimeoutMs is the time in milliseconds to wait before switching back to idle mode.
	IdleTimeoutMs = 2000
	// SubscriberBuffer is the per-subscriber result queue length. Slow
	// subscribers miss results rather than stall the pipeline.
	SubscriberBuffer = 8
)

// ErrNoStore is returned by operations that need a store when none is configured.
var ErrNoStore = errors.New("no store configured")

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store
	// Camera overrides the device camera built from CameraConfig.
	Camera       capture.Camera
	CameraConfig capture.CameraConfig
	MotionThresh float64
	// Record stores every tracked frame while the pipeline runs.
	Record bool
	Logger logrus.FieldLogger
}

// CalibrationStatus is a snapshot of the engine's calibration session.
type CalibrationStatus struct {
	State      string         `json:"state"`
	Calibrated bool           `json:"calibrated"`
	Points     []geom.Point2D `json:"points"`
}

// App is the main application that drives the engine from the camera.
type App struct {
	config Config
	log    logrus.FieldLogger
	camera capture.Camera
	motion *capture.MotionGate

	// engineMu serialises every engine call; the engine itself is single-threaded.
	engineMu sync.Mutex
	engine   *engine.Engine

	mu       sync.RWMutex
	enabled  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	session  *store.Session
	frameIdx int
	latest   engine.TrackingResult
	latestAt time.Time
	snapshot gocv.Mat
	target   *geom.Point2D
	subs     map[int]chan engine.TrackingResult
	nextSub  int
}

// New creates an App around an initialised or uninitialised engine. The app
// initialises the engine if needed.
func New(config Config, eng *engine.Engine) *App {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	cam := config.Camera
	if cam == nil {
		cam = capture.NewCamera(config.CameraConfig)
	}

	eng.Initialize()

	return &App{
		config:   config,
		log:      log.WithField("component", "app"),
		camera:   cam,
		motion:   capture.NewMotionGate(config.MotionThresh),
		engine:   eng,
		enabled:  true,
		snapshot: gocv.NewMat(),
		subs:     make(map[int]chan engine.TrackingResult),
	}
}

// SetEnabled enables or disables tracking in the capture loop.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether tracking is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Start opens the camera and begins the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(IdleFPS)

	if a.config.Record {
		if err := a.beginSessionLocked(); err != nil {
			a.camera.Close()
			return err
		}
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info("capture pipeline started")
	return nil
}

// Stop halts the capture loop, closes the camera and ends any recording.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("error closing camera")
	}
	a.motion.Close()

	a.mu.Lock()
	a.endSessionLocked()
	a.mu.Unlock()

	a.log.Info("capture pipeline stopped")
}

// Close stops the pipeline, closes subscriber channels and releases the engine.
func (a *App) Close() error {
	a.Stop()

	a.mu.Lock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.snapshot.Close()
	a.snapshot = gocv.NewMat()
	a.mu.Unlock()

	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.Close()
}

func (a *App) beginSessionLocked() error {
	if a.config.Store == nil {
		return ErrNoStore
	}

	a.engineMu.Lock()
	backend := a.engine.DetectorBackend().String()
	variant := a.engine.ModelVariant()
	a.engineMu.Unlock()

	w, h := a.camera.Resolution()
	sess := &store.Session{Backend: backend, Variant: variant, Width: w, Height: h}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("begin recording: %w", err)
	}
	a.session = sess
	a.frameIdx = 0
	a.log.WithField("session", sess.ID).Info("recording started")
	return nil
}

func (a *App) endSessionLocked() {
	if a.session == nil {
		return
	}
	if err := a.config.Store.Sessions().End(a.session.ID, time.Now()); err != nil {
		a.log.WithError(err).Warn("failed to end recording session")
	}
	a.log.WithFields(logrus.Fields{
		"session": a.session.ID,
		"frames":  a.frameIdx,
	}).Info("recording stopped")
	a.session = nil
}

// Session returns the active recording session, if any.
func (a *App) Session() (store.Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return store.Session{}, false
	}
	return *a.session, true
}

// ProcessFrame tracks f with the configured detector and publishes the result.
func (a *App) ProcessFrame(f engine.Frame) engine.TrackingResult {
	a.engineMu.Lock()
	res := a.engine.ProcessFrame(f)
	a.engineMu.Unlock()

	a.publish(res)
	return res
}

// ProcessFrameWithOverride tracks f with a caller-supplied face rectangle.
func (a *App) ProcessFrameWithOverride(f engine.Frame, face geom.Rect) engine.TrackingResult {
	a.engineMu.Lock()
	res := a.engine.ProcessFrameWithOverride(f, face)
	a.engineMu.Unlock()

	a.publish(res)
	return res
}

func (a *App) publish(res engine.TrackingResult) {
	now := time.Now()

	a.mu.Lock()
	a.latest = res
	a.latestAt = now
	for _, ch := range a.subs {
		select {
		case ch <- res:
		default:
		}
	}
	sess := a.session
	idx := a.frameIdx
	target := a.target
	if sess != nil {
		a.frameIdx++
	}
	a.mu.Unlock()

	if sess != nil {
		sample := toSample(sess.ID, idx, now, res)
		sample.Target = target
		if err := a.config.Store.Samples().Append(sample); err != nil {
			a.log.WithError(err).Warn("failed to record sample")
		}
	}
}

func toSample(sessionID string, idx int, at time.Time, res engine.TrackingResult) store.Sample {
	return store.Sample{
		SessionID:       sessionID,
		FrameIndex:      idx,
		CapturedAt:      at,
		FaceDetected:    res.FaceDetected,
		Face:            res.FaceRect,
		Confidence:      res.Confidence,
		Distance:        res.FaceDistance,
		GazeX:           res.GazeAngleX,
		GazeY:           res.GazeAngleY,
		EyesFocused:     res.EyesFocused,
		Pitch:           res.HeadPose.Pitch,
		Yaw:             res.HeadPose.Yaw,
		Roll:            res.HeadPose.Roll,
		HeadMoving:      res.HeadMoving,
		ShouldersMoving: res.ShouldersMoving,
		Backend:         res.Backend,
		Landmarks:       res.Landmarks,
	}
}

// SetTarget sets the on-screen point the user is looking at. Recorded
// samples carry it until ClearTarget.
func (a *App) SetTarget(p geom.Point2D) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = &p
}

// ClearTarget stops attaching a target to recorded samples.
func (a *App) ClearTarget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = nil
}

// Target returns the current target point. The bool is false when none is set.
func (a *App) Target() (geom.Point2D, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.target == nil {
		return geom.Point2D{}, false
	}
	return *a.target, true
}

// Latest returns the most recent result and when it was produced. The bool
// is false before the first frame.
func (a *App) Latest() (engine.TrackingResult, time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.latestAt, !a.latestAt.IsZero()
}

// Snapshot returns a copy of the last captured camera frame. The caller
// closes it. The bool is false before the first frame.
func (a *App) Snapshot() (gocv.Mat, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snapshot.Empty() {
		return gocv.NewMat(), false
	}
	return a.snapshot.Clone(), true
}

func (a *App) setSnapshot(frame gocv.Mat) {
	a.mu.Lock()
	defer a.mu.Unlock()
	frame.CopyTo(&a.snapshot)
}

// Subscribe returns a channel receiving every subsequent result and a
// function that unsubscribes and closes the channel.
func (a *App) Subscribe() (<-chan engine.TrackingResult, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan engine.TrackingResult, SubscriberBuffer)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[id]; ok {
				close(c)
				delete(a.subs, id)
			}
		})
	}
}

// StartCalibration clears the engine's calibration points.
func (a *App) StartCalibration() {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	a.engine.StartCalibration()
}

// AddCalibrationPoint records a screen point.
func (a *App) AddCalibrationPoint(p geom.Point2D) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	a.engine.AddCalibrationPoint(p)
}

// FinishCalibration completes the session and persists it when a store is
// configured. The returned record is nil without a store.
func (a *App) FinishCalibration() (bool, *store.Calibration, error) {
	a.engineMu.Lock()
	ok := a.engine.FinishCalibration()
	points := a.engine.CalibrationPoints()
	a.engineMu.Unlock()

	if a.config.Store == nil {
		return ok, nil, nil
	}

	rec := &store.Calibration{Valid: ok, Points: points}
	if err := a.config.Store.Calibrations().Create(rec); err != nil {
		return ok, nil, fmt.Errorf("save calibration: %w", err)
	}
	return ok, rec, nil
}

// Calibration returns the calibration session snapshot.
func (a *App) Calibration() CalibrationStatus {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	points := a.engine.CalibrationPoints()
	if points == nil {
		points = []geom.Point2D{}
	}
	return CalibrationStatus{
		State:      a.engine.CalibrationState().String(),
		Calibrated: a.engine.IsCalibrated(),
		Points:     points,
	}
}

// CalibrationState returns the calibration lifecycle stage.
func (a *App) CalibrationState() calibration.State {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.CalibrationState()
}

// SetDetectorBackend sets the backend preference.
func (a *App) SetDetectorBackend(b detector.Backend) error {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.SetDetectorBackend(b)
}

// DetectorBackend returns the backend preference.
func (a *App) DetectorBackend() detector.Backend {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.DetectorBackend()
}

// ActiveBackend returns the backend the next frame would use.
func (a *App) ActiveBackend() (detector.Backend, bool) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.ActiveBackend()
}

// RetryDetectorLoad clears a memoised load failure.
func (a *App) RetryDetectorLoad(b detector.Backend) error {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.RetryDetectorLoad(b)
}

// BackendStatus reports the load state of every backend.
func (a *App) BackendStatus() []detector.Status {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.BackendStatus()
}

// SetModelVariant selects the YOLO weights for the next load.
func (a *App) SetModelVariant(name string) error {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.SetModelVariant(name)
}

// ModelVariant returns the selected YOLO variant.
func (a *App) ModelVariant() string {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.ModelVariant()
}

// SetCameraParameters sets the focal length and principal point.
func (a *App) SetCameraParameters(focal float64, principal geom.Point2D) error {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.SetCameraParameters(focal, principal)
}

// CameraParameters returns the focal length and principal point.
func (a *App) CameraParameters() (float64, geom.Point2D) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.engine.CameraParameters()
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// MotionGate returns the motion gate instance.
func (a *App) MotionGate() *capture.MotionGate {
	return a.motion
}
