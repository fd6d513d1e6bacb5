package landmark

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/geom"
)

// PuplocFiles are the pigo pupil localisation cascade file names.
var PuplocFiles = []string{"puploc", "puploc.bin"}

// PupilLocator finds pupils with pigo's puploc cascade, seeded from the face
// rectangle. The cascade is loaded on first use; a failed load is not retried.
type PupilLocator struct {
	dirs    []string
	cascade *pigo.PuplocCascade

	loadAttempted bool
	loaded        bool
}

// NewPupilLocator creates a locator that resolves its cascade from dirs.
func NewPupilLocator(dirs []string) *PupilLocator {
	return &PupilLocator{dirs: dirs}
}

// Name implements EyeLocator.
func (l *PupilLocator) Name() string { return "puploc" }

func (l *PupilLocator) ensureLoaded() bool {
	if l.loadAttempted {
		return l.loaded
	}
	l.loadAttempted = true

	path, err := detector.FindModel(l.dirs, PuplocFiles)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	plc := &pigo.PuplocCascade{}
	cascade, err := plc.UnpackCascade(data)
	if err != nil {
		return false
	}
	l.cascade = cascade
	l.loaded = true
	return true
}

// LocateEyes implements EyeLocator.
func (l *PupilLocator) LocateEyes(gray gocv.Mat, face geom.Rect) ([]Eye, error) {
	if !l.ensureLoaded() {
		return nil, ErrUnavailable
	}
	if gray.Empty() || gray.Channels() != 1 {
		return nil, fmt.Errorf("pupil search: need a single-channel frame")
	}

	rows, cols := gray.Rows(), gray.Cols()
	params := pigo.ImageParams{
		Pixels: gray.ToBytes(),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	c := face.Center()
	row, col := int(c.Y), int(c.X)
	scale := float32(face.Width)

	var eyes []Eye
	for _, side := range []int{-1, 1} {
		seed := pigo.Puploc{
			Row:      row - int(0.085*scale),
			Col:      col + side*int(0.185*scale),
			Scale:    scale * 0.4,
			Perturbs: 63,
		}
		p := l.cascade.RunDetector(seed, params)
		if p == nil || p.Row <= 0 || p.Col <= 0 {
			continue
		}
		eyes = append(eyes, Eye{
			Center: geom.Pt(float64(p.Col), float64(p.Row)),
			Width:  float64(face.Width) * fallbackEyeWidth,
		})
	}
	return eyes, nil
}

// Close implements EyeLocator. The pigo cascade holds no native resources.
func (l *PupilLocator) Close() error {
	return nil
}
