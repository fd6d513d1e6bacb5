// Package calibration collects the screen points of a gaze calibration run.
package calibration

import "github.com/ayusman/eyetrack/internal/geom"

// MinPoints is the fewest points a completed session needs to be valid.
const MinPoints = 4

// State is the lifecycle stage of a session.
type State int

const (
	// Idle means no point has been collected since the last start.
	Idle State = iota
	// Collecting means at least one point has been added.
	Collecting
	// Completed means Finish was called.
	Completed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Session accumulates points. The zero value is an idle, uncalibrated session.
type Session struct {
	points     []geom.Point2D
	state      State
	calibrated bool
}

// Start clears the collected points and marks the session uncalibrated.
func (s *Session) Start() {
	s.points = s.points[:0]
	s.state = Idle
	s.calibrated = false
}

// Add appends p. Values are not validated and duplicates are kept.
func (s *Session) Add(p geom.Point2D) {
	s.points = append(s.points, p)
	s.state = Collecting
}

// Finish completes the session and reports whether it is valid.
func (s *Session) Finish() bool {
	s.state = Completed
	s.calibrated = len(s.points) >= MinPoints
	return s.calibrated
}

// IsCalibrated reports whether the last Finish produced a valid session.
func (s *Session) IsCalibrated() bool {
	return s.calibrated
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// Len returns the number of collected points.
func (s *Session) Len() int {
	return len(s.points)
}

// Points returns a copy of the collected points in insertion order.
func (s *Session) Points() []geom.Point2D {
	return append([]geom.Point2D(nil), s.points...)
}
