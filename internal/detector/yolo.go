package detector

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/geom"
)

// DefaultModelVariant is used when no variant has been selected.
const DefaultModelVariant = "n"

// ModelVariants are the accepted YOLO weight variants, smallest first.
var ModelVariants = []string{"n", "s", "m", "l", "x"}

// ErrBadOutput is returned when the network output has an unexpected shape.
var ErrBadOutput = errors.New("unexpected network output shape")

// ValidVariant reports whether v names a known variant. Empty means the default.
func ValidVariant(v string) bool {
	if v == "" {
		return true
	}
	for _, known := range ModelVariants {
		if v == known {
			return true
		}
	}
	return false
}

// YOLOModelFiles returns the candidate file names for a variant.
func YOLOModelFiles(variant string) []string {
	if variant == "" {
		variant = DefaultModelVariant
	}
	return []string{
		fmt.Sprintf("yolov5%s-face.onnx", variant),
		fmt.Sprintf("yolov8%s-face.onnx", variant),
		fmt.Sprintf("yolov8%s_face.onnx", variant),
	}
}

// YOLODetector runs a YOLO face network through OpenCV's dnn module.
type YOLODetector struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
}

// NewYOLO loads a YOLO face model from an ONNX file.
func NewYOLO(modelPath string, cfg Config) (*YOLODetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, modelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	size := cfg.YOLOInputSize
	if size <= 0 {
		size = 640
	}

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(size, size),
	}, nil
}

// YOLOLoader adapts NewYOLO to a LoadFunc.
func YOLOLoader(cfg Config) LoadFunc {
	return func(path string) (FaceDetector, error) {
		d, err := NewYOLO(path, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Detect finds faces in the colour frame.
func (d *YOLODetector) Detect(frame Frame) ([]Detection, error) {
	if !frame.Valid() || frame.Color.Empty() {
		return nil, nil
	}

	blob := gocv.BlobFromImage(frame.Color, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	candidates, err := decodeYOLO(data, output.Size(), d.config.YOLOConfThreshold)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sx := float32(frame.Width) / float32(d.inputSize.X)
	sy := float32(frame.Height) / float32(d.inputSize.Y)

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = image.Rect(
			int((c.cx-c.w/2)*sx),
			int((c.cy-c.h/2)*sy),
			int((c.cx+c.w/2)*sx),
			int((c.cy+c.h/2)*sy),
		)
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.YOLOConfThreshold, d.config.YOLONMSThreshold)

	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		rect := geom.FromImage(boxes[idx]).Clamp(frame.Width, frame.Height)
		if rect.Empty() {
			continue
		}
		detections = append(detections, Detection{
			Rect:       rect,
			Confidence: float64(scores[idx]),
			Scored:     true,
		})
	}
	return detections, nil
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	return d.net.Close()
}

// yoloCandidate is a box in network input coordinates.
type yoloCandidate struct {
	cx, cy, w, h float32
	score        float32
}

// decodeYOLO reads the raw output tensor. Two layouts are accepted:
// row-major [1, N, K] as produced by yolov5-face (cx, cy, w, h, obj,
// 10 landmark values, cls) and channel-major [1, C, N] as produced by
// yolov8-face (cx, cy, w, h, score, landmarks...).
func decodeYOLO(data []float32, dims []int, threshold float32) ([]yoloCandidate, error) {
	if len(dims) != 3 || dims[0] != 1 || dims[1] < 5 && dims[2] < 5 {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, dims)
	}
	if len(data) < dims[1]*dims[2] {
		return nil, fmt.Errorf("%w: %d values for %v", ErrBadOutput, len(data), dims)
	}

	var out []yoloCandidate

	if dims[1] > dims[2] {
		n, k := dims[1], dims[2]
		for i := 0; i < n; i++ {
			row := data[i*k : (i+1)*k]
			score := row[4]
			if k > 15 {
				score *= row[15]
			}
			if score < threshold {
				continue
			}
			out = append(out, yoloCandidate{cx: row[0], cy: row[1], w: row[2], h: row[3], score: score})
		}
		return out, nil
	}

	c, n := dims[1], dims[2]
	if c < 5 {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, dims)
	}
	for i := 0; i < n; i++ {
		score := data[4*n+i]
		if score < threshold {
			continue
		}
		out = append(out, yoloCandidate{
			cx:    data[0*n+i],
			cy:    data[1*n+i],
			w:     data[2*n+i],
			h:     data[3*n+i],
			score: score,
		})
	}
	return out, nil
}
