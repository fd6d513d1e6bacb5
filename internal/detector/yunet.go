package detector

import (
	"fmt"
	"image"
	"math"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// YuNet model file names, newest first.
var YuNetModelFiles = []string{
	"face_detection_yunet_2023mar.onnx",
	"face_detection_yunet_2022mar.onnx",
	"face_detection_yunet.onnx",
}

// YuNetDetector uses OpenCV's FaceDetectorYN.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
}

// NewYuNet creates a YuNet detector from an ONNX model file.
func NewYuNet(modelPath string, cfg Config) (*YuNetDetector, error) {
	// FaceDetectorYN aborts inside OpenCV on a missing file, so check first.
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	size := cfg.YuNetInputSize
	if size <= 0 {
		size = 320
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		modelPath,
		"",
		image.Pt(size, size),
		cfg.ScoreThreshold,
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// YuNetLoader adapts NewYuNet to a LoadFunc.
func YuNetLoader(cfg Config) LoadFunc {
	return func(path string) (FaceDetector, error) {
		d, err := NewYuNet(path, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Detect finds faces in the colour frame.
func (d *YuNetDetector) Detect(frame Frame) ([]Detection, error) {
	if !frame.Valid() || frame.Color.Empty() {
		return nil, nil
	}

	d.detector.SetInputSize(image.Pt(frame.Width, frame.Height))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(frame.Color, &faces)

	// Each row: x, y, w, h, five landmark pairs, score.
	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		rect := geom.R(
			int(math.Round(x)),
			int(math.Round(y)),
			int(math.Round(w)),
			int(math.Round(h)),
		).Clamp(frame.Width, frame.Height)
		if rect.Empty() {
			continue
		}

		detections = append(detections, Detection{
			Rect:       rect,
			Confidence: score,
			Scored:     true,
		})
	}

	return detections, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.detector.Close()
	return nil
}
