// Package gaze derives a coarse gaze direction from eye landmarks.
package gaze

import (
	"math"

	"github.com/ayusman/eyetrack/internal/geom"
)

const (
	// FocusThreshold bounds both gaze axes for the eyes to count as focused.
	FocusThreshold = 0.1

	neutralAspect = 0.3
	aspectScale   = 0.2
)

// Estimate is the gaze result for one face.
type Estimate struct {
	X, Y    float64
	Focused bool
}

// Vector returns the unit direction toward the screen plane.
func (e Estimate) Vector() geom.Vector3 {
	return geom.Vector3{X: e.X, Y: e.Y, Z: -1}.Normalize()
}

// FromEyes estimates gaze from eye points ordered as: left centre, right
// centre, then optionally two left corners and two right corners. Fewer than
// two points, or coincident centres, give the zero estimate.
//
// The horizontal term is the signed offset between the eye centres over the
// inter-eye distance, so it tracks head asymmetry rather than pupil motion.
func FromEyes(pts []geom.Point2D) Estimate {
	if len(pts) < 2 {
		return Estimate{}
	}

	left, right := pts[0], pts[1]
	dist := geom.Distance(left, right)
	if dist < geom.Epsilon {
		return Estimate{}
	}

	e := Estimate{X: (left.X - right.X) / dist}

	// The engine passes centres only; corners come from direct callers.
	if len(pts) >= 6 {
		la := aspect(pts[2], pts[3])
		ra := aspect(pts[4], pts[5])
		e.Y = geom.Clamp(((la+ra)/2-neutralAspect)/aspectScale, -1, 1)
	}

	e.Focused = math.Abs(e.X) < FocusThreshold && math.Abs(e.Y) < FocusThreshold
	return e
}

// aspect is the opening ratio of one eye from its two corner points: the
// vertical extent over the horizontal extent.
func aspect(a, b geom.Point2D) float64 {
	width := math.Abs(b.X - a.X)
	if width < geom.Epsilon {
		return 0
	}
	return math.Abs(b.Y-a.Y) / width
}
