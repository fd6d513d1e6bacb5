package detector

// MockDetector is a test implementation of the FaceDetector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	err        error
	calls      int
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the faces that will be returned by Detect.
func (m *MockDetector) SetDetections(dets ...Detection) {
	m.detections = dets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	return m.closed
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame Frame) ([]Detection, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.closed = true
	return nil
}

// MockHandle wraps d in a handle that loads successfully. A nil d yields a
// handle whose load always fails with ErrModelNotFound.
func MockHandle(b Backend, d *MockDetector) *Handle {
	if d == nil {
		return NewHandle(b, func() (string, error) {
			return "", ErrModelNotFound
		}, nil, nil)
	}
	return NewHandle(b,
		func() (string, error) { return "mock://" + b.String(), nil },
		func(string) (FaceDetector, error) { return d, nil },
		nil,
	)
}
