package detector

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/eyetrack/internal/geom"
)

// DefaultFaceMargin is the fraction added to each side of a located face.
const DefaultFaceMargin = 0.15

// Located is the face chosen for one frame.
type Located struct {
	Rect       geom.Rect
	Confidence float64
	// Scored is false when the backend that ran does not produce a score.
	Scored bool
	// Backend is the concrete backend that produced the result. It is Auto
	// when nothing ran.
	Backend Backend
}

// Found reports whether a face was located.
func (l Located) Found() bool {
	return !l.Rect.Empty()
}

// Locator chooses a backend for each frame and reduces its output to one face.
type Locator struct {
	handles map[Backend]*Handle
	margin  float64
	log     logrus.FieldLogger
}

// NewLocator builds a locator over the given handles. Handles for the same
// backend replace earlier ones.
func NewLocator(handles []*Handle, margin float64, log logrus.FieldLogger) *Locator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Locator{
		handles: make(map[Backend]*Handle, len(handles)),
		margin:  margin,
		log:     log,
	}
	for _, h := range handles {
		l.handles[h.Backend()] = h
	}
	return l
}

// NewDefaultLocator wires the three production backends. variant is consulted
// each time the YOLO model is resolved.
func NewDefaultLocator(cfg Config, variant func() string, log logrus.FieldLogger) *Locator {
	yoloFiles := func() []string { return YOLOModelFiles(variant()) }
	static := func(files []string) func() []string {
		return func() []string { return files }
	}

	handles := []*Handle{
		NewHandle(NeuralPrimary, ModelResolver(cfg.ModelDirs, yoloFiles), YOLOLoader(cfg), log),
		NewHandle(NeuralLight, ModelResolver(cfg.ModelDirs, static(YuNetModelFiles)), YuNetLoader(cfg), log),
		NewHandle(Cascade, ModelResolver(cfg.ModelDirs, static(CascadeModelFiles)), CascadeLoader(cfg), log),
	}
	return NewLocator(handles, DefaultFaceMargin, log)
}

// Handle returns the handle for a concrete backend, or nil.
func (l *Locator) Handle(b Backend) *Handle {
	return l.handles[b]
}

// Resolve returns the backend that would run for preferred. An explicit
// backend is binding: if it cannot load, nothing runs. Auto walks AutoOrder
// and stops at the first handle that loads.
func (l *Locator) Resolve(preferred Backend) (Backend, bool) {
	if preferred.Concrete() {
		h := l.handles[preferred]
		if h == nil || !h.EnsureLoaded() {
			return Auto, false
		}
		return preferred, true
	}

	for _, b := range AutoOrder {
		h := l.handles[b]
		if h != nil && h.EnsureLoaded() {
			return b, true
		}
	}
	return Auto, false
}

// Locate finds at most one face in the frame. A miss from the backend that
// ran is final for this frame; Auto only moves on when a backend fails to load.
func (l *Locator) Locate(frame Frame, preferred Backend) Located {
	if !frame.Valid() {
		return Located{}
	}

	b, ok := l.Resolve(preferred)
	if !ok {
		return Located{}
	}

	dets, err := l.handles[b].Detect(frame)
	if err != nil {
		l.log.WithError(err).WithField("backend", b.String()).Debug("face detection failed")
		return Located{Backend: b}
	}

	best, ok := SelectBest(dets)
	if !ok {
		return Located{Backend: b}
	}

	rect := best.Rect
	if l.margin > 0 {
		rect = rect.Expand(l.margin, frame.Width, frame.Height)
	} else {
		rect = rect.Clamp(frame.Width, frame.Height)
	}

	return Located{
		Rect:       rect,
		Confidence: best.Confidence,
		Scored:     best.Scored,
		Backend:    b,
	}
}

// Statuses reports every handle in AutoOrder.
func (l *Locator) Statuses() []Status {
	out := make([]Status, 0, len(AutoOrder))
	for _, b := range AutoOrder {
		if h := l.handles[b]; h != nil {
			out = append(out, h.Status())
		}
	}
	return out
}

// Reset forgets the memoised load outcome of one backend, or of all of them
// when b is Auto.
func (l *Locator) Reset(b Backend) error {
	if b.Concrete() {
		if h := l.handles[b]; h != nil {
			return h.Reset()
		}
		return nil
	}
	var errs []error
	for _, h := range l.handles {
		if err := h.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every loaded backend.
func (l *Locator) Close() error {
	var errs []error
	for _, h := range l.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
