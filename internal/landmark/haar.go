package landmark

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/geom"
)

// EyeCascadeFiles are the Haar eye cascade file names.
var EyeCascadeFiles = []string{
	"haarcascade_eye.xml",
	"haarcascade_eye_tree_eyeglasses.xml",
}

// HaarEyeLocator searches the face region with a Haar eye cascade. The
// cascade is loaded on first use; a failed load is not retried.
type HaarEyeLocator struct {
	dirs       []string
	classifier gocv.CascadeClassifier

	loadAttempted bool
	loaded        bool
}

// NewHaarEyeLocator creates a locator that resolves its cascade from dirs.
func NewHaarEyeLocator(dirs []string) *HaarEyeLocator {
	return &HaarEyeLocator{dirs: dirs}
}

// Name implements EyeLocator.
func (l *HaarEyeLocator) Name() string { return "haar-eye" }

func (l *HaarEyeLocator) ensureLoaded() bool {
	if l.loadAttempted {
		return l.loaded
	}
	l.loadAttempted = true

	path, err := detector.FindModel(l.dirs, EyeCascadeFiles)
	if err != nil {
		return false
	}

	l.classifier = gocv.NewCascadeClassifier()
	if !l.classifier.Load(path) {
		l.classifier.Close()
		return false
	}
	l.loaded = true
	return true
}

// LocateEyes implements EyeLocator.
func (l *HaarEyeLocator) LocateEyes(gray gocv.Mat, face geom.Rect) ([]Eye, error) {
	if !l.ensureLoaded() {
		return nil, ErrUnavailable
	}
	if gray.Empty() {
		return nil, fmt.Errorf("haar eye search: empty frame")
	}

	face = face.Clamp(gray.Cols(), gray.Rows())
	if face.Empty() {
		return nil, nil
	}

	roi := gray.Region(face.Image())
	defer roi.Close()

	rects := l.classifier.DetectMultiScaleWithParams(roi, 1.1, 2, 0, image.Pt(20, 20), image.Pt(0, 0))

	eyes := make([]Eye, 0, len(rects))
	for _, r := range rects {
		eyes = append(eyes, Eye{
			Center: geom.Pt(
				float64(face.X)+float64(r.Min.X)+float64(r.Dx())/2,
				float64(face.Y)+float64(r.Min.Y)+float64(r.Dy())/2,
			),
			Width: float64(r.Dx()),
		})
	}
	return eyes, nil
}

// Close releases the cascade.
func (l *HaarEyeLocator) Close() error {
	if !l.loaded {
		return nil
	}
	l.loaded = false
	return l.classifier.Close()
}
