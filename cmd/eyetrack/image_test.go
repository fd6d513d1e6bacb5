package main

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
)

func TestBGRFrame(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	f := bgrFrame(img)
	if f.Width != 2 || f.Height != 2 || f.Channels != 3 {
		t.Fatalf("frame = %dx%dx%d, want 2x2x3", f.Width, f.Height, f.Channels)
	}
	if !f.Valid() {
		t.Fatal("frame should be valid")
	}
	want := []byte{
		30, 20, 10, 0, 0, 0,
		0, 0, 0, 50, 100, 200,
	}
	if !bytes.Equal(f.Data, want) {
		t.Errorf("Data = %v, want %v", f.Data, want)
	}
}

func TestBGRFrame_SubImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.NRGBA)

	f := bgrFrame(sub)
	if f.Width != 2 || f.Height != 2 {
		t.Fatalf("frame = %dx%d, want 2x2", f.Width, f.Height)
	}
	if f.Data[0] != 3 || f.Data[1] != 2 || f.Data[2] != 1 {
		t.Errorf("first pixel = %v, want [3 2 1]", f.Data[:3])
	}
}

func TestWriteResult(t *testing.T) {
	res := engine.TrackingResult{FaceDetected: true, FaceRect: geom.R(1, 2, 3, 4)}

	tests := []struct {
		name   string
		in     imageResult
		pretty bool
		want   []string
	}{
		{
			name: "compact",
			in:   imageResult{Path: "a.jpg", TrackingResult: &res},
			want: []string{`"path":"a.jpg"`, `"face_detected":true`},
		},
		{
			name:   "pretty",
			in:     imageResult{Path: "a.jpg", TrackingResult: &res},
			pretty: true,
			want:   []string{"\n  \"path\": \"a.jpg\"", `"face_detected": true`},
		},
		{
			name: "error only",
			in:   imageResult{Path: "b.png", Error: "decode failed"},
			want: []string{`"error":"decode failed"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeResult(&buf, tt.in, tt.pretty); err != nil {
				t.Fatalf("writeResult() error = %v", err)
			}
			out := buf.String()
			if !strings.HasSuffix(out, "\n") {
				t.Error("output should end with a newline")
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
		})
	}
}
