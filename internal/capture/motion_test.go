package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionGate(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{name: "explicit threshold", threshold: 5.0, want: 5.0},
		{name: "low threshold", threshold: 0.5, want: 0.5},
		{name: "zero uses default", threshold: 0, want: DefaultMotionThreshold},
		{name: "negative uses default", threshold: -2, want: DefaultMotionThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mg := NewMotionGate(tt.threshold)
			defer mg.Close()

			if got := mg.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %f, want %f", got, tt.want)
			}
			if mg.initialized {
				t.Error("gate should not be initialized initially")
			}
		})
	}
}

func TestMotionGate_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mg := NewMotionGate(1.0)
	defer mg.Close()

	frame1 := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	detected, changePercent := mg.Detect(&frame1)
	if detected || changePercent != 0 {
		t.Errorf("first frame = (%v, %f), want (false, 0)", detected, changePercent)
	}

	detected, changePercent = mg.Detect(&frame2)
	if detected {
		t.Errorf("identical frames should not detect motion, changePercent = %f", changePercent)
	}
}

func TestMotionGate_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name string
		mt   gocv.MatType
	}{
		{name: "bgr", mt: gocv.MatTypeCV8UC3},
		{name: "bgra", mt: gocv.MatTypeCV8UC4},
		{name: "gray", mt: gocv.MatTypeCV8UC1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mg := NewMotionGate(1.0)
			defer mg.Close()

			black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, tt.mt)
			defer black.Close()
			white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 255), 480, 640, tt.mt)
			defer white.Close()

			mg.Detect(&black)
			detected, changePercent := mg.Detect(&white)
			if !detected {
				t.Errorf("black to white should detect motion, changePercent = %f", changePercent)
			}
			if changePercent < 50.0 {
				t.Errorf("changePercent = %f, expected > 50%%", changePercent)
			}
		})
	}
}

func TestMotionGate_ResolutionChangeResetsBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mg := NewMotionGate(1.0)
	defer mg.Close()

	big := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer big.Close()
	small := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 240, 640, gocv.MatTypeCV8UC3)
	defer small.Close()

	mg.Detect(&big)
	if detected, _ := mg.Detect(&small); detected {
		t.Error("a new aspect ratio should only reset the baseline")
	}
}

func TestMotionGate_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mg := NewMotionGate(1.0)
	defer mg.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	mg.Detect(&frame)
	if !mg.initialized {
		t.Error("gate should be initialized after first Detect")
	}

	mg.Reset()

	if mg.initialized {
		t.Error("gate should not be initialized after Reset")
	}
	if !mg.prevGray.Empty() {
		t.Error("prevGray should be empty after Reset")
	}
}

func TestMotionGate_SetThreshold(t *testing.T) {
	mg := NewMotionGate(1.0)
	defer mg.Close()

	tests := []struct {
		name string
		set  float64
		want float64
	}{
		{name: "raise", set: 5.0, want: 5.0},
		{name: "lower", set: 0.5, want: 0.5},
		{name: "zero ignored", set: 0, want: 0.5},
		{name: "negative ignored", set: -1, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mg.SetThreshold(tt.set)
			if got := mg.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMotionGate_NilAndEmpty(t *testing.T) {
	mg := NewMotionGate(1.0)
	defer mg.Close()

	if detected, pct := mg.Detect(nil); detected || pct != 0 {
		t.Errorf("Detect(nil) = (%v, %f), want (false, 0)", detected, pct)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if detected, pct := mg.Detect(&empty); detected || pct != 0 {
		t.Errorf("Detect(empty) = (%v, %f), want (false, 0)", detected, pct)
	}
}

func TestMotionGate_Close_Multiple(t *testing.T) {
	mg := NewMotionGate(1.0)

	// Close multiple times should not panic
	mg.Close()
	mg.Close()
}
