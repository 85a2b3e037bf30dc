// Package gocvcam implements camera.Device on top of OpenCV video capture.
package gocvcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/camera"
)

// Device opens OpenCV capture devices. OpenCV exposes no facing metadata,
// so sources and their facing come from configuration.
type Device struct {
	// DefaultID is the capture device used when no source is requested
	// (a numeric index such as "0", or a device path or stream URL).
	DefaultID string
	// Known lists configured sources with their facing.
	Known []camera.Source
	// FrameInterval is the delay between frame grabs of the live feed.
	FrameInterval time.Duration
}

// NewDevice creates a device that opens defaultID unless a source is requested.
func NewDevice(defaultID string, known []camera.Source) *Device {
	if defaultID == "" {
		defaultID = "0"
	}
	return &Device{DefaultID: defaultID, Known: known, FrameInterval: 33 * time.Millisecond}
}

// Available reports whether the default capture device can be opened.
func (d *Device) Available() bool {
	vc, err := gocv.OpenVideoCapture(deviceArg(d.DefaultID))
	if err != nil {
		return false
	}
	defer vc.Close()
	return vc.IsOpened()
}

func (d *Device) Sources(ctx context.Context) ([]camera.Source, error) {
	if len(d.Known) == 0 {
		return nil, camera.ErrSourcesUnsupported
	}
	return append([]camera.Source(nil), d.Known...), nil
}

// Open starts capturing. Width and height hints are applied as capture properties.
func (d *Device) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	id := d.DefaultID
	if c.SourceID != "" {
		id = c.SourceID
	}

	vc, err := gocv.OpenVideoCapture(deviceArg(id))
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", id, errors.Join(camera.ErrNoDevice, err))
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open capture %s: %w", id, camera.ErrPermissionDenied)
	}

	if c.MinWidth > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.MinWidth))
	}
	if c.MinHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.MinHeight))
	}

	s := &stream{
		vc:       vc,
		frame:    gocv.NewMat(),
		interval: d.FrameInterval,
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.grab()
	return s, nil
}

// deviceArg turns numeric ids into indexes, anything else stays a path or URL
func deviceArg(id string) interface{} {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}

// stream keeps the latest frame of the live feed while not paused
type stream struct {
	vc       *gocv.VideoCapture
	interval time.Duration

	mu     sync.Mutex
	frame  gocv.Mat
	width  int
	height int
	paused bool
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func (s *stream) grab() {
	defer s.wg.Done()

	buf := gocv.NewMat()
	defer buf.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			continue
		}

		if ok := s.vc.Read(&buf); !ok || buf.Empty() {
			continue
		}

		s.mu.Lock()
		buf.CopyTo(&s.frame)
		s.width, s.height = buf.Cols(), buf.Rows()
		s.mu.Unlock()
	}
}

// Dimensions reports the size of the last grabbed frame, (0,0) until one arrives
func (s *stream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *stream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, camera.ErrClosed
	}
	if s.frame.Empty() {
		return nil, errors.New("gocvcam: no frame captured yet")
	}
	return s.frame.ToImage()
}

func (s *stream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *stream) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	s.frame.Close()
	if err := s.vc.Close(); err != nil {
		log.Warn("close capture", "error", err)
		return err
	}
	return nil
}
