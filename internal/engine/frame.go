package engine

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/eyetrack/internal/detector"
)

// Frame is a raw pixel buffer owned by the caller. Pixels are 8-bit and
// interleaved: grey for one channel, BGR for three, BGRA for four. The engine
// does not keep Data after the call returns.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Channels int
}

// MaxFrameSide bounds each frame dimension so the buffer size cannot overflow.
const MaxFrameSide = 1 << 15

// Valid reports whether the frame has a positive size no larger than
// MaxFrameSide, a supported channel count and enough data.
func (f Frame) Valid() bool {
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxFrameSide || f.Height > MaxFrameSide {
		return false
	}
	switch f.Channels {
	case 1, 3, 4:
	default:
		return false
	}
	return len(f.Data) >= f.Width*f.Height*f.Channels
}

// FrameFromMat copies an 8-bit Mat into a Frame.
func FrameFromMat(m gocv.Mat) Frame {
	if m.Empty() {
		return Frame{}
	}
	return Frame{
		Data:     m.ToBytes(),
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
	}
}

// mats holds the colour and grey representations of one frame.
type mats struct {
	src   gocv.Mat
	color gocv.Mat
	gray  gocv.Mat
}

func (m *mats) detectorFrame(width, height int) detector.Frame {
	return detector.Frame{Color: m.color, Gray: m.gray, Width: width, Height: height}
}

func (m *mats) Close() {
	m.gray.Close()
	m.color.Close()
	m.src.Close()
}

// convert builds the BGR and grey Mats the detectors expect.
func convert(f Frame) (*mats, error) {
	var mt gocv.MatType
	switch f.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		return nil, fmt.Errorf("unsupported channel count %d", f.Channels)
	}

	n := f.Width * f.Height * f.Channels
	src, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Data[:n])
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}

	m := &mats{src: src, color: gocv.NewMat(), gray: gocv.NewMat()}
	switch f.Channels {
	case 1:
		src.CopyTo(&m.gray)
		gocv.CvtColor(src, &m.color, gocv.ColorGrayToBGR)
	case 3:
		src.CopyTo(&m.color)
		gocv.CvtColor(src, &m.gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &m.color, gocv.ColorBGRAToBGR)
		gocv.CvtColor(src, &m.gray, gocv.ColorBGRAToGray)
	}
	return m, nil
}
