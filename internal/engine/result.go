package engine

import (
	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/headpose"
	"github.com/ayusman/eyetrack/internal/landmark"
)

// TrackingResult is the output for one frame. When FaceDetected is false
// every other field is at its zero value.
type TrackingResult struct {
	FaceDetected bool      `json:"face_detected"`
	FaceRect     geom.Rect `json:"face_rect"`
	Confidence   float64   `json:"confidence"`
	// FaceDistance is the estimated camera distance in centimetres.
	FaceDistance float64 `json:"face_distance"`

	GazeAngleX  float64      `json:"gaze_angle_x"`
	GazeAngleY  float64      `json:"gaze_angle_y"`
	GazeVector  geom.Vector3 `json:"gaze_vector"`
	EyesFocused bool         `json:"eyes_focused"`

	HeadPose   headpose.Pose `json:"head_pose"`
	HeadMoving bool          `json:"head_moving"`

	Shoulders       []geom.Point2D `json:"shoulders,omitempty"`
	ShouldersMoving bool           `json:"shoulders_moving"`

	Landmarks []geom.Point2D `json:"landmarks,omitempty"`

	// Backend names the detector that found the face. It is empty when the
	// face came from an override.
	Backend string `json:"backend,omitempty"`
}

// FlatResult is TrackingResult with fixed-size storage, for hosts that copy
// results across a language boundary.
type FlatResult struct {
	FaceDistance    float64
	GazeAngleX      float64
	GazeAngleY      float64
	EyesFocused     bool
	HeadMoving      bool
	ShouldersMoving bool
	FaceDetected    bool

	FaceRectX      float64
	FaceRectY      float64
	FaceRectWidth  float64
	FaceRectHeight float64

	// Landmarks holds x,y pairs; only the first LandmarkCount pairs are set.
	Landmarks     [landmark.MaxPoints * 2]float32
	LandmarkCount int

	HeadPosePitch float64
	HeadPoseYaw   float64
	HeadPoseRoll  float64

	GazeVectorX float64
	GazeVectorY float64
	GazeVectorZ float64

	Confidence float64
}

// Flatten converts the result. Landmarks beyond the fixed capacity are dropped.
func (r TrackingResult) Flatten() FlatResult {
	f := FlatResult{
		FaceDistance:    r.FaceDistance,
		GazeAngleX:      r.GazeAngleX,
		GazeAngleY:      r.GazeAngleY,
		EyesFocused:     r.EyesFocused,
		HeadMoving:      r.HeadMoving,
		ShouldersMoving: r.ShouldersMoving,
		FaceDetected:    r.FaceDetected,
		FaceRectX:       float64(r.FaceRect.X),
		FaceRectY:       float64(r.FaceRect.Y),
		FaceRectWidth:   float64(r.FaceRect.Width),
		FaceRectHeight:  float64(r.FaceRect.Height),
		HeadPosePitch:   r.HeadPose.Pitch,
		HeadPoseYaw:     r.HeadPose.Yaw,
		HeadPoseRoll:    r.HeadPose.Roll,
		GazeVectorX:     r.GazeVector.X,
		GazeVectorY:     r.GazeVector.Y,
		GazeVectorZ:     r.GazeVector.Z,
		Confidence:      r.Confidence,
	}

	n := len(r.Landmarks)
	if n > landmark.MaxPoints {
		n = landmark.MaxPoints
	}
	for i := 0; i < n; i++ {
		f.Landmarks[2*i] = float32(r.Landmarks[i].X)
		f.Landmarks[2*i+1] = float32(r.Landmarks[i].Y)
	}
	f.LandmarkCount = n
	return f
}

// FaceDistance estimates the camera distance in centimetres with the pinhole
// model. It returns 0 when either the width or the focal length is not positive.
func FaceDistance(faceWidth int, focalLength float64) float64 {
	if faceWidth <= 0 || focalLength <= 0 {
		return 0
	}
	return KnownFaceWidthCM * focalLength / float64(faceWidth)
}
