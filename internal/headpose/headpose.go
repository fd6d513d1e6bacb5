// Package headpose estimates a coarse 2D head orientation from landmarks and
// tracks whether it changed between frames.
package headpose

import (
	"math"

	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/landmark"
)

const (
	// MovementThreshold is the per-axis change that counts as movement.
	MovementThreshold = 0.1

	// minPoints is the fewest landmarks a pose can be estimated from.
	minPoints = 10

	noseToEyeRatio = 0.8
	maxPitchYaw    = 1.0
	maxRoll        = 0.5
)

// Pose holds pitch, yaw and roll in normalised units.
type Pose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Vector returns the pose as (pitch, yaw, roll).
func (p Pose) Vector() geom.Vector3 {
	return geom.Vector3{X: p.Pitch, Y: p.Yaw, Z: p.Roll}
}

// Estimate computes the pose from a landmark sequence laid out as in package
// landmark. Too few points or coincident eyes give the zero pose.
func Estimate(pts []geom.Point2D) Pose {
	if len(pts) < minPoints || len(pts) <= landmark.MouthRight {
		return Pose{}
	}

	left := pts[landmark.LeftEye]
	right := pts[landmark.RightEye]
	nose := pts[landmark.NoseTip]

	eyeVec := right.Sub(left)
	eyeDist := eyeVec.Norm()
	if eyeDist < geom.Epsilon {
		return Pose{}
	}
	eyeVec = eyeVec.Scale(1 / eyeDist)
	eyeCenter := geom.Midpoint(left, right)

	expected := eyeDist * noseToEyeRatio
	pitch := (nose.Y - eyeCenter.Y - expected) / expected

	yaw := -eyeVec.Y

	mouthX := (pts[landmark.MouthLeft].X + pts[landmark.MouthRight].X) / 2
	faceX := (pts[landmark.TopLeft].X + pts[landmark.TopRight].X) / 2
	roll := (mouthX - faceX) / eyeDist

	return Pose{
		Pitch: geom.Clamp(pitch, -maxPitchYaw, maxPitchYaw),
		Yaw:   geom.Clamp(yaw, -maxPitchYaw, maxPitchYaw),
		Roll:  geom.Clamp(roll, -maxRoll, maxRoll),
	}
}

// Moved reports whether any axis changed by more than MovementThreshold.
func Moved(current, previous Pose) bool {
	return math.Abs(current.Pitch-previous.Pitch) > MovementThreshold ||
		math.Abs(current.Yaw-previous.Yaw) > MovementThreshold ||
		math.Abs(current.Roll-previous.Roll) > MovementThreshold
}

// Tracker keeps the previous pose. The zero value starts from the zero pose.
type Tracker struct {
	previous Pose
}

// Update compares pose with the previous one, stores it and reports movement.
// Call it only for frames in which a face was found.
func (t *Tracker) Update(pose Pose) bool {
	moved := Moved(pose, t.previous)
	t.previous = pose
	return moved
}

// Previous returns the last stored pose.
func (t *Tracker) Previous() Pose {
	return t.previous
}

// Reset forgets the stored pose.
func (t *Tracker) Reset() {
	t.previous = Pose{}
}
