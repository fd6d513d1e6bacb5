package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// CascadeModelFiles are the Haar face cascade file names.
var CascadeModelFiles = []string{
	"haarcascade_frontalface_default.xml",
	"haarcascade_frontalface_alt2.xml",
}

// CascadeDetector runs a Haar cascade over the grey frame.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	config     Config
}

// NewCascade loads a Haar cascade from an XML file.
func NewCascade(path string, cfg Config) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, path)
	}
	return &CascadeDetector{classifier: classifier, config: cfg}, nil
}

// CascadeLoader adapts NewCascade to a LoadFunc.
func CascadeLoader(cfg Config) LoadFunc {
	return func(path string) (FaceDetector, error) {
		d, err := NewCascade(path, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Detect finds faces in the grey frame. Cascade hits carry no score.
func (d *CascadeDetector) Detect(frame Frame) ([]Detection, error) {
	if !frame.Valid() || frame.Gray.Empty() {
		return nil, nil
	}

	scale := d.config.CascadeScaleFactor
	if scale <= 1 {
		scale = 1.1
	}
	minSize := d.config.CascadeMinSize
	if minSize <= 0 {
		minSize = 30
	}

	rects := d.classifier.DetectMultiScaleWithParams(
		frame.Gray,
		scale,
		d.config.CascadeMinNeighbors,
		0,
		image.Pt(minSize, minSize),
		image.Pt(0, 0),
	)

	detections := make([]Detection, 0, len(rects))
	for _, r := range rects {
		rect := geom.FromImage(r).Clamp(frame.Width, frame.Height)
		if rect.Empty() {
			continue
		}
		detections = append(detections, Detection{Rect: rect})
	}
	return detections, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
