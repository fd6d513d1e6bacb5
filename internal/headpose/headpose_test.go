package headpose

import (
	"math"
	"testing"

	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/landmark"
)

const epsilon = 1e-9

func TestEstimate_FrontalFace(t *testing.T) {
	// Proportional landmarks for a 200x200 face: eyes 100 apart at 30%,
	// nose at 50%, so the nose sits 40 below the eye line against an
	// expected 80.
	pts := landmark.FromEyes(geom.R(200, 150, 200, 200), nil)
	pose := Estimate(pts)

	if math.Abs(pose.Pitch-(-0.5)) > epsilon {
		t.Errorf("Pitch = %f, want -0.5", pose.Pitch)
	}
	if math.Abs(pose.Yaw) > epsilon {
		t.Errorf("Yaw = %f, want 0", pose.Yaw)
	}
	if math.Abs(pose.Roll) > epsilon {
		t.Errorf("Roll = %f, want 0", pose.Roll)
	}
}

func TestEstimate_Clamps(t *testing.T) {
	pts := landmark.FromEyes(geom.R(0, 0, 200, 200), nil)
	// Tilt the eye line steeply and push the mouth far right.
	pts[landmark.RightEye] = geom.Pt(pts[landmark.LeftEye].X+1, pts[landmark.LeftEye].Y-100)
	pts[landmark.MouthLeft] = geom.Pt(1000, 150)
	pts[landmark.MouthRight] = geom.Pt(1000, 150)
	pts[landmark.NoseTip] = geom.Pt(100, 1000)

	pose := Estimate(pts)
	if pose.Yaw > 1 || pose.Yaw < 0.99 {
		t.Errorf("Yaw = %f, want close to 1", pose.Yaw)
	}
	if pose.Pitch != 1 {
		t.Errorf("Pitch = %f, want clamped to 1", pose.Pitch)
	}
	if pose.Roll != 0.5 {
		t.Errorf("Roll = %f, want clamped to 0.5", pose.Roll)
	}
}

func TestEstimate_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		pts  []geom.Point2D
	}{
		{name: "nil", pts: nil},
		{name: "nine points", pts: make([]geom.Point2D, 9)},
		{name: "eleven points", pts: make([]geom.Point2D, 11)},
		{name: "coincident eyes", pts: make([]geom.Point2D, landmark.Count)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.pts); got != (Pose{}) {
				t.Errorf("Estimate() = %+v, want zero pose", got)
			}
		})
	}
}

func TestMoved(t *testing.T) {
	tests := []struct {
		name string
		cur  Pose
		prev Pose
		want bool
	}{
		{name: "still", cur: Pose{Pitch: 0.2}, prev: Pose{Pitch: 0.2}, want: false},
		{name: "exactly at threshold", cur: Pose{Yaw: 0.1}, prev: Pose{}, want: false},
		{name: "just over threshold", cur: Pose{Yaw: 0.1001}, prev: Pose{}, want: true},
		{name: "roll only", cur: Pose{Roll: -0.3}, prev: Pose{Roll: -0.1}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Moved(tt.cur, tt.prev); got != tt.want {
				t.Errorf("Moved() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker(t *testing.T) {
	var tr Tracker
	if tr.Update(Pose{Pitch: -0.05}) {
		t.Error("small first pose should not count as movement")
	}
	if !tr.Update(Pose{Pitch: 0.5}) {
		t.Error("large change should count as movement")
	}
	if tr.Previous().Pitch != 0.5 {
		t.Errorf("Previous() = %+v", tr.Previous())
	}
	tr.Reset()
	if tr.Previous() != (Pose{}) {
		t.Error("Reset() did not clear the pose")
	}
}
