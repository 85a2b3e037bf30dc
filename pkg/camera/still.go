package camera

import (
	"context"
	"image"
	"sync"
)

// StillDevice is a camera that always shows the same image.
// It is used for headless runs on image files.
type StillDevice struct {
	Image image.Image
}

// NewStillDevice creates a device streaming img
func NewStillDevice(img image.Image) *StillDevice {
	return &StillDevice{Image: img}
}

func (d *StillDevice) Available() bool {
	return d.Image != nil
}

func (d *StillDevice) Sources(ctx context.Context) ([]Source, error) {
	return nil, ErrSourcesUnsupported
}

func (d *StillDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.Image == nil {
		return nil, ErrNoDevice
	}
	return &stillStream{img: d.Image}, nil
}

type stillStream struct {
	mu     sync.Mutex
	img    image.Image
	paused bool
	closed bool
}

func (s *stillStream) Dimensions() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *stillStream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.img, nil
}

func (s *stillStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *stillStream) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
