// Package shoulder finds approximate shoulder positions in the lower part of
// a frame from edge contours.
package shoulder

import (
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// Contour filter and movement constants.
const (
	regionTop    = 0.6
	regionHeight = 0.4

	minArea   = 500.0
	maxArea   = 10000.0
	minAspect = 0.5
	maxAspect = 3.0

	fallbackLeftX  = 0.25
	fallbackRightX = 0.75
	fallbackY      = 0.8

	// MovementThreshold is the pixel distance either point must move.
	MovementThreshold = 10.0
)

// Candidate is one contour that may be a shoulder, in region coordinates.
type Candidate struct {
	Rect image.Rectangle
	Area float64
}

// Region returns the band of a width x height frame that is searched.
func Region(width, height int) image.Rectangle {
	y := int(float64(height) * regionTop)
	h := int(float64(height) * regionHeight)
	return image.Rect(0, y, width, y+h)
}

// Detect returns exactly two points, left then right, for a grey frame.
func Detect(gray gocv.Mat) []geom.Point2D {
	width, height := gray.Cols(), gray.Rows()
	if width <= 0 || height <= 0 {
		return nil
	}

	roi := Region(width, height)
	if roi.Empty() {
		return Select(nil, roi.Min.Y, width, height)
	}

	region := gray.Region(roi)
	defer region.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(region, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	cands := make([]Candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		cands = append(cands, Candidate{
			Rect: gocv.BoundingRect(c),
			Area: gocv.ContourArea(c),
		})
	}

	return Select(cands, roi.Min.Y, width, height)
}

// Select filters candidates by area and aspect, then takes the leftmost and
// rightmost survivors. With fewer than two survivors the fixed proportional
// points are returned.
func Select(cands []Candidate, regionY, width, height int) []geom.Point2D {
	var kept []image.Rectangle
	for _, c := range cands {
		if c.Area <= minArea || c.Area >= maxArea {
			continue
		}
		if c.Rect.Dy() == 0 {
			continue
		}
		aspect := float64(c.Rect.Dx()) / float64(c.Rect.Dy())
		if aspect <= minAspect || aspect >= maxAspect {
			continue
		}
		kept = append(kept, c.Rect)
	}

	if len(kept) < 2 {
		return Fallback(width, height)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Min.X < kept[j].Min.X
	})

	return []geom.Point2D{
		center(kept[0], regionY),
		center(kept[len(kept)-1], regionY),
	}
}

// Fallback returns the proportional shoulder points for a frame size.
func Fallback(width, height int) []geom.Point2D {
	w, h := float64(width), float64(height)
	return []geom.Point2D{
		geom.Pt(w*fallbackLeftX, h*fallbackY),
		geom.Pt(w*fallbackRightX, h*fallbackY),
	}
}

func center(r image.Rectangle, regionY int) geom.Point2D {
	return geom.Pt(
		float64(r.Min.X)+float64(r.Dx())/2,
		float64(regionY+r.Min.Y)+float64(r.Dy())/2,
	)
}

// Moved reports whether either point moved more than MovementThreshold. Both
// sets must hold exactly two points; anything else is reported as still.
func Moved(current, previous []geom.Point2D) bool {
	if len(current) != 2 || len(previous) != 2 {
		return false
	}
	return geom.Distance(current[0], previous[0]) > MovementThreshold ||
		geom.Distance(current[1], previous[1]) > MovementThreshold
}

// Tracker keeps the previous frame's shoulder points.
type Tracker struct {
	previous []geom.Point2D
}

// Update compares pts with the stored points, stores a copy and reports movement.
func (t *Tracker) Update(pts []geom.Point2D) bool {
	moved := Moved(pts, t.previous)
	t.previous = append(t.previous[:0], pts...)
	return moved
}

// Previous returns a copy of the stored points.
func (t *Tracker) Previous() []geom.Point2D {
	return append([]geom.Point2D(nil), t.previous...)
}

// Reset forgets the stored points.
func (t *Tracker) Reset() {
	t.previous = nil
}
