package camera

import (
	"context"
	"image"
	"sync"
)

// MockDevice implements Device for testing.
type MockDevice struct {
	// Missing makes Available report false.
	Missing bool

	// SourcesFunc is called when Sources is invoked.
	SourcesFunc func(ctx context.Context) ([]Source, error)

	// OpenFunc is called when Open is invoked.
	OpenFunc func(ctx context.Context, c Constraints) (Stream, error)

	mu          sync.Mutex
	constraints []Constraints
}

// NewMockDevice returns a device whose streams show img with settled dimensions.
func NewMockDevice(img image.Image) *MockDevice {
	return &MockDevice{
		OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
			return NewMockStream(img), nil
		},
	}
}

func (m *MockDevice) Available() bool {
	return !m.Missing
}

func (m *MockDevice) Sources(ctx context.Context) ([]Source, error) {
	if m.SourcesFunc == nil {
		return nil, ErrSourcesUnsupported
	}
	return m.SourcesFunc(ctx)
}

func (m *MockDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	m.constraints = append(m.constraints, c)
	m.mu.Unlock()
	if m.OpenFunc == nil {
		return nil, ErrNoDevice
	}
	return m.OpenFunc(ctx, c)
}

// Constraints returns the constraints passed to each Open call.
func (m *MockDevice) Constraints() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Constraints(nil), m.constraints...)
}

// MockStream implements Stream for testing.
type MockStream struct {
	// DimensionsFunc overrides the reported dimensions.
	DimensionsFunc func() (int, int)

	mu        sync.Mutex
	img       image.Image
	paused    bool
	closed    bool
	pauses    int
	resumes   int
	snapshots int
}

// NewMockStream creates a stream that reports the bounds of img.
func NewMockStream(img image.Image) *MockStream {
	return &MockStream{img: img}
}

func (s *MockStream) Dimensions() (int, int) {
	if s.DimensionsFunc != nil {
		return s.DimensionsFunc()
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *MockStream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.snapshots++
	return s.img, nil
}

func (s *MockStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.pauses++
	s.mu.Unlock()
}

func (s *MockStream) Resume() {
	s.mu.Lock()
	s.paused = false
	s.resumes++
	s.mu.Unlock()
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Paused reports whether the feed is paused.
func (s *MockStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Closed reports whether Close was called.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Counts returns how often Pause, Resume and Snapshot were called.
func (s *MockStream) Counts() (pauses, resumes, snapshots int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses, s.resumes, s.snapshots
}
