// Package testdata builds synthetic camera frames for tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame geometry of FaceFrame.
const (
	FrameWidth  = 640
	FrameHeight = 480
	EyeRadius   = 15
)

var (
	// FaceRect is where FaceFrame paints the face.
	FaceRect = image.Rect(200, 150, 400, 350)
	// LeftEye and RightEye are the painted eye centres.
	LeftEye  = image.Pt(280, 220)
	RightEye = image.Pt(360, 220)

	background = color.RGBA{R: 50, G: 50, B: 50}
	skin       = color.RGBA{R: 220, G: 190, B: 170}
	pupil      = color.RGBA{R: 20, G: 20, B: 20}
)

// BlankFrame returns a uniform BGR frame. The caller closes it.
func BlankFrame(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(background.B), float64(background.G), float64(background.R), 0),
		height, width, gocv.MatTypeCV8UC3)
}

// FaceFrame returns a 640x480 BGR frame with a face-like blob and two dark
// eyes, shifted right by dx pixels. The caller closes it.
func FaceFrame(dx int) gocv.Mat {
	img := BlankFrame(FrameWidth, FrameHeight)
	shift := image.Pt(dx, 0)

	gocv.Rectangle(&img, FaceRect.Add(shift), skin, -1)
	gocv.Circle(&img, LeftEye.Add(shift), EyeRadius, pupil, -1)
	gocv.Circle(&img, RightEye.Add(shift), EyeRadius, pupil, -1)

	return img
}

// FaceSequence returns n face frames, each shifted step pixels further than
// the last. The caller closes every frame.
func FaceSequence(n, step int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		m := FaceFrame(i * step)
		frames = append(frames, &m)
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
