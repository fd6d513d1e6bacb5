package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// GateWidth is the width frames are shrunk to before differencing.
	GateWidth = 160
	// DefaultMotionThreshold is the changed-pixel percentage that counts as motion.
	DefaultMotionThreshold = 1.0
)

// MotionGate decides whether the scene changed enough since the previous
// frame to warrant the active frame rate. Frames are shrunk to GateWidth so
// the check stays cheap next to full tracking.
type MotionGate struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a gate that fires when more than threshold percent of
// pixels change. A non-positive threshold uses DefaultMotionThreshold.
func NewMotionGate(threshold float64) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionGate{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one. It returns whether motion was
// seen and the percentage of changed pixels. The first frame after a reset
// only sets the baseline.
func (m *MotionGate) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	switch frame.Channels() {
	case 4:
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRAToGray)
	case 3:
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	default:
		frame.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	if gray.Cols() > GateWidth {
		h := gray.Rows() * GateWidth / gray.Cols()
		if h < 1 {
			h = 1
		}
		gocv.Resize(gray, &small, image.Pt(GateWidth, h), 0, 0, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(small, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	// A resolution change restarts the baseline.
	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(total) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

// Reset drops the baseline so the next frame starts over.
func (m *MotionGate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the gate. The gate stays usable.
func (m *MotionGate) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionGate) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the changed-pixel percentage. Values <= 0 are ignored.
func (m *MotionGate) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Threshold returns the changed-pixel percentage.
func (m *MotionGate) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}
