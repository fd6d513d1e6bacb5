// Package landmark estimates a fixed-shape set of facial landmarks from a face
// rectangle, refining the eye positions when an eye locator is available.
package landmark

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// Landmark indices. Every estimate has exactly Count points in this order.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
	LeftEye
	RightEye
	LeftEyeOuter
	LeftEyeInner
	RightEyeInner
	RightEyeOuter
	NoseTip
	MouthLeft
	MouthRight

	Count
)

// MaxPoints is the most landmarks a result may carry.
const MaxPoints = 68

// Face proportions used when the eyes cannot be located.
const (
	fallbackEyeY       = 0.30
	fallbackEyeSpacing = 0.25
	fallbackEyeWidth   = 0.20
	noseY              = 0.50
	mouthY             = 0.75
	mouthWidth         = 0.40
	eyeCornerFraction  = 1.0 / 3.0
)

// ErrUnavailable is returned by an eye locator whose model could not be loaded.
var ErrUnavailable = errors.New("eye locator unavailable")

// Eye is one located eye in frame coordinates.
type Eye struct {
	Center geom.Point2D
	Width  float64
}

// EyeLocator finds eyes inside a face rectangle of a grey frame.
type EyeLocator interface {
	// Name identifies the locator in logs and results.
	Name() string

	// LocateEyes returns the eyes found, in any order.
	LocateEyes(gray gocv.Mat, face geom.Rect) ([]Eye, error)

	// Close releases any loaded model.
	Close() error
}

// Set is the landmark estimate for one face.
type Set struct {
	Points []geom.Point2D
	// EyeSource names the locator that found the eyes, or "proportional"
	// when the eyes were synthesised from the face rectangle.
	EyeSource string
}

// EyesDetected reports whether the eye positions came from a locator.
func (s Set) EyesDetected() bool {
	return s.EyeSource != "" && s.EyeSource != proportionalSource
}

const proportionalSource = "proportional"

// Estimator produces landmark sets. Eye locators are tried in order; the
// first one that returns two eyes wins.
type Estimator struct {
	locators []EyeLocator
	log      logrus.FieldLogger
}

// NewEstimator creates an estimator over the given eye locators.
func NewEstimator(log logrus.FieldLogger, locators ...EyeLocator) *Estimator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Estimator{
		locators: locators,
		log:      log.WithField("component", "landmark"),
	}
}

// Estimate returns the landmark set for face. An empty face yields an empty set.
func (e *Estimator) Estimate(gray gocv.Mat, face geom.Rect) Set {
	if face.Empty() {
		return Set{}
	}

	for _, loc := range e.locators {
		eyes, err := loc.LocateEyes(gray, face)
		if err != nil {
			if !errors.Is(err, ErrUnavailable) {
				e.log.WithError(err).WithField("locator", loc.Name()).Debug("eye search failed")
			}
			continue
		}
		if len(eyes) < 2 {
			continue
		}
		return Set{Points: FromEyes(face, eyes), EyeSource: loc.Name()}
	}

	return Set{Points: FromEyes(face, nil), EyeSource: proportionalSource}
}

// Close releases every locator.
func (e *Estimator) Close() error {
	var errs []error
	for _, loc := range e.locators {
		if err := loc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromEyes lays out the landmark sequence for face. With at least two eyes
// the two leftmost are used; otherwise the eyes are placed proportionally.
func FromEyes(face geom.Rect, eyes []Eye) []geom.Point2D {
	x := float64(face.X)
	y := float64(face.Y)
	w := float64(face.Width)
	h := float64(face.Height)
	cx := x + w/2

	left, right := proportionalEyes(face)
	if len(eyes) >= 2 {
		sorted := append([]Eye(nil), eyes...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Center.X < sorted[j].Center.X
		})
		left, right = sorted[0], sorted[1]
	}

	pts := make([]geom.Point2D, Count)
	pts[TopLeft] = geom.Pt(x, y)
	pts[TopRight] = geom.Pt(x+w, y)
	pts[BottomLeft] = geom.Pt(x, y+h)
	pts[BottomRight] = geom.Pt(x+w, y+h)

	pts[LeftEye] = left.Center
	pts[RightEye] = right.Center

	lc := left.Width * eyeCornerFraction
	rc := right.Width * eyeCornerFraction
	pts[LeftEyeOuter] = geom.Pt(left.Center.X-lc, left.Center.Y)
	pts[LeftEyeInner] = geom.Pt(left.Center.X+lc, left.Center.Y)
	pts[RightEyeInner] = geom.Pt(right.Center.X-rc, right.Center.Y)
	pts[RightEyeOuter] = geom.Pt(right.Center.X+rc, right.Center.Y)

	pts[NoseTip] = geom.Pt(cx, y+h*noseY)

	my := y + h*mouthY
	mw := w * mouthWidth
	pts[MouthLeft] = geom.Pt(cx-mw/2, my)
	pts[MouthRight] = geom.Pt(cx+mw/2, my)

	return pts
}

func proportionalEyes(face geom.Rect) (Eye, Eye) {
	x := float64(face.X)
	w := float64(face.Width)
	eyeY := float64(face.Y) + float64(face.Height)*fallbackEyeY
	spacing := w * fallbackEyeSpacing
	width := w * fallbackEyeWidth

	return Eye{Center: geom.Pt(x+w/2-spacing, eyeY), Width: width},
		Eye{Center: geom.Pt(x+w/2+spacing, eyeY), Width: width}
}

// EyePoints returns the eye slice of a landmark sequence in the order the
// gaze estimator expects: both centres, then left corners, then right corners.
func EyePoints(pts []geom.Point2D) []geom.Point2D {
	if len(pts) < Count {
		return nil
	}
	return []geom.Point2D{
		pts[LeftEye], pts[RightEye],
		pts[LeftEyeOuter], pts[LeftEyeInner],
		pts[RightEyeInner], pts[RightEyeOuter],
	}
}
