package landmark

import (
	"errors"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

const epsilon = 1e-9

type fakeLocator struct {
	name  string
	eyes  []Eye
	err   error
	calls int
}

func (f *fakeLocator) Name() string { return f.name }

func (f *fakeLocator) LocateEyes(gocv.Mat, geom.Rect) ([]Eye, error) {
	f.calls++
	return f.eyes, f.err
}

func (f *fakeLocator) Close() error { return nil }

func near(a, b geom.Point2D) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}

func TestFromEyes_Proportional(t *testing.T) {
	face := geom.R(200, 150, 200, 200)
	pts := FromEyes(face, nil)

	if len(pts) != Count {
		t.Fatalf("len = %d, want %d", len(pts), Count)
	}

	tests := []struct {
		name string
		idx  int
		want geom.Point2D
	}{
		{"top left", TopLeft, geom.Pt(200, 150)},
		{"bottom right", BottomRight, geom.Pt(400, 350)},
		{"left eye", LeftEye, geom.Pt(250, 210)},
		{"right eye", RightEye, geom.Pt(350, 210)},
		{"nose", NoseTip, geom.Pt(300, 250)},
		{"mouth left", MouthLeft, geom.Pt(260, 300)},
		{"mouth right", MouthRight, geom.Pt(340, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !near(pts[tt.idx], tt.want) {
				t.Errorf("point %d = %+v, want %+v", tt.idx, pts[tt.idx], tt.want)
			}
		})
	}

	if pts[LeftEyeOuter].X >= pts[LeftEye].X || pts[LeftEyeInner].X <= pts[LeftEye].X {
		t.Error("left eye corners not either side of the centre")
	}
}

func TestFromEyes_SortsLeftToRight(t *testing.T) {
	face := geom.R(0, 0, 300, 300)
	eyes := []Eye{
		{Center: geom.Pt(200, 100), Width: 30},
		{Center: geom.Pt(100, 110), Width: 60},
	}

	pts := FromEyes(face, eyes)
	if !near(pts[LeftEye], geom.Pt(100, 110)) || !near(pts[RightEye], geom.Pt(200, 100)) {
		t.Errorf("eyes = %+v %+v, want sorted by x", pts[LeftEye], pts[RightEye])
	}
	if !near(pts[LeftEyeOuter], geom.Pt(80, 110)) || !near(pts[RightEyeOuter], geom.Pt(210, 100)) {
		t.Errorf("corners = %+v %+v", pts[LeftEyeOuter], pts[RightEyeOuter])
	}
	if eyes[0].Center.X != 200 {
		t.Error("FromEyes must not reorder the caller's slice")
	}
}

func TestEstimator_LocatorChain(t *testing.T) {
	face := geom.R(200, 150, 200, 200)
	var gray gocv.Mat

	t.Run("unavailable locator is skipped", func(t *testing.T) {
		haar := &fakeLocator{name: "haar-eye", err: ErrUnavailable}
		pup := &fakeLocator{name: "puploc", eyes: []Eye{
			{Center: geom.Pt(260, 220), Width: 30},
			{Center: geom.Pt(340, 220), Width: 30},
		}}

		set := NewEstimator(nil, haar, pup).Estimate(gray, face)
		if set.EyeSource != "puploc" || !set.EyesDetected() {
			t.Errorf("EyeSource = %q, want puploc", set.EyeSource)
		}
		if !near(set.Points[LeftEye], geom.Pt(260, 220)) {
			t.Errorf("left eye = %+v", set.Points[LeftEye])
		}
	})

	t.Run("one eye falls through to proportions", func(t *testing.T) {
		haar := &fakeLocator{name: "haar-eye", eyes: []Eye{{Center: geom.Pt(260, 220), Width: 30}}}
		pup := &fakeLocator{name: "puploc", err: errors.New("boom")}

		set := NewEstimator(nil, haar, pup).Estimate(gray, face)
		if set.EyesDetected() {
			t.Error("expected synthesised eyes")
		}
		if len(set.Points) != Count {
			t.Errorf("len = %d, want %d", len(set.Points), Count)
		}
		if haar.calls != 1 || pup.calls != 1 {
			t.Errorf("calls = %d/%d, want 1/1", haar.calls, pup.calls)
		}
	})

	t.Run("first successful locator stops the chain", func(t *testing.T) {
		two := []Eye{{Center: geom.Pt(250, 200)}, {Center: geom.Pt(350, 200)}}
		haar := &fakeLocator{name: "haar-eye", eyes: two}
		pup := &fakeLocator{name: "puploc", eyes: two}

		NewEstimator(nil, haar, pup).Estimate(gray, face)
		if pup.calls != 0 {
			t.Error("second locator should not run")
		}
	})

	t.Run("empty face", func(t *testing.T) {
		haar := &fakeLocator{name: "haar-eye"}
		set := NewEstimator(nil, haar).Estimate(gray, geom.Rect{})
		if len(set.Points) != 0 || haar.calls != 0 {
			t.Errorf("empty face produced %d points after %d calls", len(set.Points), haar.calls)
		}
	})
}

func TestEyePoints(t *testing.T) {
	pts := FromEyes(geom.R(0, 0, 100, 100), nil)
	eye := EyePoints(pts)
	if len(eye) != 6 {
		t.Fatalf("len = %d, want 6", len(eye))
	}
	if eye[0] != pts[LeftEye] || eye[5] != pts[RightEyeOuter] {
		t.Error("eye points out of order")
	}
	if EyePoints(pts[:5]) != nil {
		t.Error("short input should yield nil")
	}
}

func TestLocators_MissingModels(t *testing.T) {
	dirs := []string{t.TempDir()}
	var gray gocv.Mat

	for _, loc := range []EyeLocator{NewHaarEyeLocator(dirs), NewPupilLocator(dirs)} {
		if _, err := loc.LocateEyes(gray, geom.R(0, 0, 10, 10)); !errors.Is(err, ErrUnavailable) {
			t.Errorf("%s: error = %v, want ErrUnavailable", loc.Name(), err)
		}
		if err := loc.Close(); err != nil {
			t.Errorf("%s: Close() error: %v", loc.Name(), err)
		}
	}
}
