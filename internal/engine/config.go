package engine

import (
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/geom"
)

const (
	// KnownFaceWidthCM is the assumed real width of an adult face.
	KnownFaceWidthCM = 14.0

	// DefaultConfidence is reported when the backend that found the face
	// does not produce a score, or when the face came from an override.
	DefaultConfidence = 0.8

	// DefaultFocalLength is the focal length in pixels used until the camera
	// parameters are set.
	DefaultFocalLength = 1000.0
)

// Config holds engine configuration.
type Config struct {
	// FocalLength in pixels.
	FocalLength float64
	// PrincipalPoint in pixels. It is stored for callers; the distance model
	// does not use it.
	PrincipalPoint geom.Point2D

	// Backend is the initial detector preference.
	Backend detector.Backend
	// ModelVariant selects the YOLO weights ("" means the default).
	ModelVariant string

	// DefaultConfidence is used for unscored detections.
	DefaultConfidence float64

	// Detector configures the detector backends.
	Detector detector.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FocalLength:       DefaultFocalLength,
		Backend:           detector.Auto,
		DefaultConfidence: DefaultConfidence,
		Detector:          detector.DefaultConfig(),
	}
}
