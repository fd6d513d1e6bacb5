// Package detector provides the interchangeable face detection backends, the
// lazily loaded handles that wrap them, and the locator that chooses between them.
package detector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// Backend identifies a face detection strategy.
type Backend int

const (
	// Auto tries the concrete backends in priority order. It is a policy,
	// never the backend that actually ran.
	Auto Backend = iota
	// NeuralPrimary is the YOLO face network (fast and accurate).
	NeuralPrimary
	// NeuralLight is the YuNet face network (lightweight).
	NeuralLight
	// Cascade is the Haar cascade classifier.
	Cascade
)

// AutoOrder is the fixed priority used by the Auto policy.
var AutoOrder = []Backend{NeuralPrimary, NeuralLight, Cascade}

// ErrUnknownBackend is returned by ParseBackend for unrecognised names.
var ErrUnknownBackend = errors.New("unknown detector backend")

// String returns the configuration name of the backend.
func (b Backend) String() string {
	switch b {
	case Auto:
		return "auto"
	case NeuralPrimary:
		return "yolo"
	case NeuralLight:
		return "yunet"
	case Cascade:
		return "haar"
	default:
		return "backend(" + strconv.Itoa(int(b)) + ")"
	}
}

// Concrete reports whether b names an actual backend rather than the Auto policy.
func (b Backend) Concrete() bool {
	return b == NeuralPrimary || b == NeuralLight || b == Cascade
}

// Valid reports whether b is one of the four known values.
func (b Backend) Valid() bool {
	return b == Auto || b.Concrete()
}

// ParseBackend accepts a backend name ("auto", "yolo", "yunet", "haar") or
// the integer code used at the host boundary (0..3).
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "0":
		return Auto, nil
	case "yolo", "neural-primary", "1":
		return NeuralPrimary, nil
	case "yunet", "neural-light", "2":
		return NeuralLight, nil
	case "haar", "cascade", "haarcascade", "3":
		return Cascade, nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Frame is the pair of representations a backend may consume. Both Mats are
// owned by the caller and only valid for the duration of one Detect call.
type Frame struct {
	// Color is the 3-channel BGR frame.
	Color gocv.Mat
	// Gray is the single-channel frame.
	Gray gocv.Mat

	Width  int
	Height int
}

// Valid reports whether the frame has a usable size.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0
}

// Detection is one face candidate in frame pixel coordinates.
type Detection struct {
	Rect       geom.Rect
	Confidence float64
	// Scored is false when the backend does not produce a confidence.
	Scored bool
}

// FaceDetector is implemented by every concrete backend.
type FaceDetector interface {
	// Detect returns all face candidates in the frame. An empty slice means no face.
	Detect(frame Frame) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// SelectBest picks the candidate with the highest confidence, breaking ties by
// the larger area. It returns false when dets is empty.
func SelectBest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}

	best := dets[0]
	for _, d := range dets[1:] {
		switch {
		case d.Confidence > best.Confidence:
			best = d
		case d.Confidence == best.Confidence && d.Rect.Area() > best.Rect.Area():
			best = d
		}
	}
	return best, true
}

// Config holds detector configuration shared by the backends.
type Config struct {
	// ModelDirs are probed in order when resolving model files.
	ModelDirs []string

	// ScoreThreshold is the YuNet minimum face score.
	ScoreThreshold float32
	// YuNetInputSize is the initial YuNet input edge; it is reset per frame.
	YuNetInputSize int

	// YOLOConfThreshold is the minimum YOLO face confidence.
	YOLOConfThreshold float32
	// YOLONMSThreshold is the IoU threshold for non-maximum suppression.
	YOLONMSThreshold float32
	// YOLOInputSize is the square network input edge.
	YOLOInputSize int

	CascadeScaleFactor  float64
	CascadeMinNeighbors int
	CascadeMinSize      int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ModelDirs:           DefaultModelDirs(),
		ScoreThreshold:      0.6,
		YuNetInputSize:      320,
		YOLOConfThreshold:   0.45,
		YOLONMSThreshold:    0.35,
		YOLOInputSize:       640,
		CascadeScaleFactor:  1.1,
		CascadeMinNeighbors: 3,
		CascadeMinSize:      30,
	}
}
