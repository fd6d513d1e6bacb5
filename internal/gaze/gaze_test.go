package gaze

import (
	"math"
	"testing"

	"github.com/ayusman/eyetrack/internal/geom"
)

const epsilon = 1e-9

func TestFromEyes(t *testing.T) {
	tests := []struct {
		name        string
		pts         []geom.Point2D
		wantX       float64
		wantY       float64
		wantFocused bool
	}{
		{
			name: "too few points",
			pts:  []geom.Point2D{geom.Pt(1, 1)},
		},
		{
			name: "coincident centres",
			pts:  []geom.Point2D{geom.Pt(5, 5), geom.Pt(5, 5)},
		},
		{
			name:  "centres only, left of right",
			pts:   []geom.Point2D{geom.Pt(100, 100), geom.Pt(200, 100)},
			wantX: -1,
		},
		{
			name:  "centres only, mirrored",
			pts:   []geom.Point2D{geom.Pt(200, 100), geom.Pt(100, 100)},
			wantX: 1,
		},
		{
			name: "level corners clamp vertical gaze low",
			pts: []geom.Point2D{
				geom.Pt(100, 100), geom.Pt(200, 100),
				geom.Pt(90, 100), geom.Pt(110, 100),
				geom.Pt(190, 100), geom.Pt(210, 100),
			},
			wantX: -1,
			wantY: -1,
		},
		{
			name: "diagonal corners clamp vertical gaze high",
			pts: []geom.Point2D{
				geom.Pt(100, 100), geom.Pt(200, 100),
				geom.Pt(90, 90), geom.Pt(110, 110),
				geom.Pt(190, 90), geom.Pt(210, 110),
			},
			wantX: -1,
			wantY: 1,
		},
		{
			name: "aspect above neutral",
			pts: []geom.Point2D{
				geom.Pt(100, 100), geom.Pt(200, 100),
				geom.Pt(90, 96), geom.Pt(110, 104),
				geom.Pt(190, 96), geom.Pt(210, 104),
			},
			wantX: -1,
			wantY: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromEyes(tt.pts)
			if math.Abs(got.X-tt.wantX) > epsilon {
				t.Errorf("X = %f, want %f", got.X, tt.wantX)
			}
			if math.Abs(got.Y-tt.wantY) > epsilon {
				t.Errorf("Y = %f, want %f", got.Y, tt.wantY)
			}
			if got.Focused != tt.wantFocused {
				t.Errorf("Focused = %v, want %v", got.Focused, tt.wantFocused)
			}
		})
	}
}

func TestFromEyes_Focused(t *testing.T) {
	// Nearly vertical eye line gives a small horizontal term.
	got := FromEyes([]geom.Point2D{geom.Pt(100.5, 100), geom.Pt(100, 200)})
	if !got.Focused {
		t.Errorf("FromEyes() = %+v, want focused", got)
	}
}

func TestEstimate_Vector(t *testing.T) {
	v := Estimate{}.Vector()
	if v != (geom.Vector3{Z: -1}) {
		t.Errorf("Vector() of zero gaze = %+v, want (0, 0, -1)", v)
	}

	v = Estimate{X: 1, Y: 1}.Vector()
	if math.Abs(v.Norm()-1) > epsilon {
		t.Errorf("Vector() not normalised: %f", v.Norm())
	}
}
