package camera

import (
	"context"
	"errors"
	"time"

	"github.com/menta2k/photo-translator/internal/log"
)

// Default session options.
const (
	DefaultSettleInterval = 100 * time.Millisecond
	DefaultMinWidth       = 640
	DefaultMinHeight      = 360
)

// Options configure a Session
type Options struct {
	// SettleInterval is the polling interval while waiting for frame dimensions.
	SettleInterval time.Duration
	// SettleTimeout bounds the wait; zero waits until ctx is done.
	SettleTimeout time.Duration
	MinWidth      int
	MinHeight     int
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		SettleInterval: DefaultSettleInterval,
		MinWidth:       DefaultMinWidth,
		MinHeight:      DefaultMinHeight,
	}
}

// Handle is an open stream with settled dimensions
type Handle struct {
	Stream   Stream
	Width    int
	Height   int
	SourceID string
}

// Session opens streams on a device
type Session struct {
	device  Device
	options Options
}

// NewSession creates a session for the given device
func NewSession(device Device, opts Options) *Session {
	if opts.SettleInterval <= 0 {
		opts.SettleInterval = DefaultSettleInterval
	}
	return &Session{device: device, options: opts}
}

// Open starts a stream, preferring a rear-facing source when asked, and
// blocks until the stream reports non-zero dimensions.
// Denied access is not retried.
func (s *Session) Open(ctx context.Context, preferRearFacing bool) (*Handle, error) {
	if s.device == nil || !s.device.Available() {
		return nil, &AccessError{Reason: "There is no camera on this system.", Err: ErrNoDevice}
	}

	c := Constraints{
		MinWidth:  s.options.MinWidth,
		MinHeight: s.options.MinHeight,
	}
	if preferRearFacing {
		c.FacingMode = FacingEnvironment
		c.SourceID = s.findRearSource(ctx)
	}

	stream, err := s.device.Open(ctx, c)
	if err != nil {
		return nil, &AccessError{Reason: "There is no access to your camera, have you denied it?", Err: err}
	}

	width, height, err := s.settle(ctx, stream)
	if err != nil {
		stream.Close()
		return nil, err
	}

	log.Debug("camera stream ready", "width", width, "height", height, "source", c.SourceID)
	return &Handle{Stream: stream, Width: width, Height: height, SourceID: c.SourceID}, nil
}

// findRearSource returns the first environment-facing video source, or "".
// Missing metadata is not an error.
func (s *Session) findRearSource(ctx context.Context) string {
	sources, err := s.device.Sources(ctx)
	if err != nil {
		if !errors.Is(err, ErrSourcesUnsupported) {
			log.Warn("camera source enumeration failed", "error", err)
		}
		return ""
	}
	for _, src := range sources {
		if src.Kind == "video" && src.Facing == FacingEnvironment {
			return src.ID
		}
	}
	return ""
}

// settle polls the stream until both dimensions are non-zero
func (s *Session) settle(ctx context.Context, stream Stream) (int, int, error) {
	if w, h := stream.Dimensions(); w > 0 && h > 0 {
		return w, h, nil
	}

	var deadline <-chan time.Time
	if s.options.SettleTimeout > 0 {
		timer := time.NewTimer(s.options.SettleTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(s.options.SettleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-deadline:
			return 0, 0, ErrSettleTimeout
		case <-ticker.C:
			if w, h := stream.Dimensions(); w > 0 && h > 0 {
				return w, h, nil
			}
			log.Debug("camera dimensions not reported yet")
		}
	}
}
