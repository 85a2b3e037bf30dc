package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photo-translator/pkg/types"
)

// ErrNoSelection is returned when no region has been selected yet
var ErrNoSelection = errors.New("no crop selection")

// Selector tracks a rectangular selection made on a displayed image and
// maps it to source image pixels.
type Selector struct {
	mu            sync.RWMutex
	sourceWidth   int
	sourceHeight  int
	displayWidth  float64
	displayHeight float64
	selection     *types.Rect
}

// New creates a selector for a sourceWidth x sourceHeight image shown at
// its natural size
func New(sourceWidth, sourceHeight int) *Selector {
	return &Selector{
		sourceWidth:   sourceWidth,
		sourceHeight:  sourceHeight,
		displayWidth:  float64(sourceWidth),
		displayHeight: float64(sourceHeight),
	}
}

// SetDisplaySize records the size the image is displayed at
func (s *Selector) SetDisplaySize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid display size %.1fx%.1f", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayWidth = width
	s.displayHeight = height
	return nil
}

// SetSource replaces the source dimensions; the selection is kept so a
// re-rendered image of the same frame keeps its crop.
func (s *Selector) SetSource(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.sourceWidth && height == s.sourceHeight {
		return
	}
	s.sourceWidth = width
	s.sourceHeight = height
	s.selection = nil
}

// Select stores a selection in display coordinates
func (s *Selector) Select(r types.Rect) error {
	if r.Empty() {
		return fmt.Errorf("selection must have a positive width and height")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := r
	s.selection = &sel
	return nil
}

// Clear drops the selection
func (s *Selector) Clear() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

// CurrentSelection returns the selection in display coordinates
func (s *Selector) CurrentSelection() (types.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return types.Rect{}, false
	}
	return *s.selection, true
}

// ScaleFactor is sourceWidth / displayedWidth
func (s *Selector) ScaleFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.sourceWidth) / s.displayWidth
}

// Region maps the selection to source pixels, clamped to the image bounds
func (s *Selector) Region() (types.CropRegion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return types.CropRegion{}, ErrNoSelection
	}
	scale := float64(s.sourceWidth) / s.displayWidth
	return ToRegion(*s.selection, scale, s.sourceWidth, s.sourceHeight)
}

// ToRegion scales a display rectangle by scale and clamps it inside a
// sourceWidth x sourceHeight image
func ToRegion(r types.Rect, scale float64, sourceWidth, sourceHeight int) (types.CropRegion, error) {
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return types.CropRegion{}, fmt.Errorf("invalid scale factor %f", scale)
	}

	x0 := clampInt(int(math.Floor(r.X*scale)), 0, sourceWidth)
	y0 := clampInt(int(math.Floor(r.Y*scale)), 0, sourceHeight)
	x1 := clampInt(int(math.Round((r.X+r.W)*scale)), 0, sourceWidth)
	y1 := clampInt(int(math.Round((r.Y+r.H)*scale)), 0, sourceHeight)

	if x1 <= x0 || y1 <= y0 {
		return types.CropRegion{}, fmt.Errorf("selection lies outside the image")
	}

	return types.CropRegion{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

// Crop cuts the current selection out of img
func (s *Selector) Crop(img image.Image) (image.Image, types.CropRegion, error) {
	region, err := s.Region()
	if err != nil {
		return nil, types.CropRegion{}, err
	}
	rect := region.Rectangle().Add(img.Bounds().Min).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, region, fmt.Errorf("crop region %v outside image", region)
	}
	return imaging.Crop(img, rect), region, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
