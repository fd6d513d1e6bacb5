// Package geom provides the small geometric value types shared by the tracking engine.
package geom

import (
	"image"
	"math"
)

// Epsilon is the tolerance below which a length is treated as zero.
const Epsilon = 1e-6

// Point2D is a point in frame pixel coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Image rounds p to an image.Point.
func (p Point2D) Image() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Pt is shorthand for Point2D{X: x, Y: y}.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Add returns p+q.
func (p Point2D) Add(q Point2D) Point2D {
	return Point2D{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p*s.
func (p Point2D) Scale(s float64) Point2D {
	return Point2D{X: p.X * s, Y: p.Y * s}
}

// Norm returns the Euclidean length of p treated as a vector.
func (p Point2D) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point2D) float64 {
	return a.Sub(b).Norm()
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point2D) Point2D {
	return a.Add(b).Scale(0.5)
}

// Vector3 is a three component vector. It carries head pose as
// (pitch, yaw, roll) and gaze direction as a unit (x, y, z).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of v.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns v scaled to unit length, or the zero vector if v is degenerate.
func (v Vector3) Normalize() Vector3 {
	n := v.Norm()
	if n < Epsilon {
		return Vector3{}
	}
	return Vector3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Rect is an axis-aligned region in frame pixel coordinates.
// A zero width or height means "not found".
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// R is shorthand for Rect{X: x, Y: y, Width: w, Height: h}.
func R(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// FromImage converts an image.Rectangle.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the area of r, zero when empty.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the centre of r.
func (r Rect) Center() Point2D {
	return Point2D{
		X: float64(r.X) + float64(r.Width)/2,
		Y: float64(r.Y) + float64(r.Height)/2,
	}
}

// Clamp intersects r with the frame [0,width)x[0,height).
// The result is the zero Rect if nothing remains.
func (r Rect) Clamp(width, height int) Rect {
	x0 := clampInt(r.X, 0, width)
	y0 := clampInt(r.Y, 0, height)
	x1 := clampInt(r.X+r.Width, 0, width)
	y1 := clampInt(r.Y+r.Height, 0, height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Expand grows r by frac of its width on the left and right and by frac of
// its height on the top and bottom, then clamps it to the frame.
func (r Rect) Expand(frac float64, width, height int) Rect {
	if r.Empty() {
		return Rect{}
	}
	dx := int(math.Round(float64(r.Width) * frac))
	dy := int(math.Round(float64(r.Height) * frac))
	grown := Rect{
		X:      r.X - dx,
		Y:      r.Y - dy,
		Width:  r.Width + 2*dx,
		Height: r.Height + 2*dy,
	}
	return grown.Clamp(width, height)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
