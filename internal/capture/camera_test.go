package capture

import (
	"errors"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CameraConfig
		wantFPS    int
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "defaults",
			cfg:        DefaultCameraConfig(),
			wantFPS:    DefaultFPS,
			wantWidth:  640,
			wantHeight: 480,
		},
		{
			name:       "custom resolution",
			cfg:        CameraConfig{DeviceID: 1, Width: 1280, Height: 720, FPS: 30},
			wantFPS:    30,
			wantWidth:  1280,
			wantHeight: 720,
		},
		{
			name:       "zero values fall back",
			cfg:        CameraConfig{DeviceID: 2},
			wantFPS:    DefaultFPS,
			wantWidth:  DefaultWidth,
			wantHeight: DefaultHeight,
		},
		{
			name:       "half a resolution falls back",
			cfg:        CameraConfig{Width: 800},
			wantFPS:    DefaultFPS,
			wantWidth:  DefaultWidth,
			wantHeight: DefaultHeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.cfg)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			w, h := cam.Resolution()
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Resolution() = %dx%d, want %dx%d", w, h, tt.wantWidth, tt.wantHeight)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 30", fps: 30, wantFPS: 30},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 1},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultCameraConfig())

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Cols() != 640 || mat.Rows() != 480 {
			t.Logf("Frame dimensions: %dx%d (camera may not support 640x480)", mat.Cols(), mat.Rows())
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}
