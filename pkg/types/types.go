package types

import (
	"fmt"
	"image"
	"unicode/utf8"
)

// Rect is a rectangle in display (UI) coordinates
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// CropRegion is a crop rectangle in source image pixel coordinates
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rectangle converts the region to an image.Rectangle
func (c CropRegion) Rectangle() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Within reports whether the region lies inside a sourceW x sourceH image
func (c CropRegion) Within(sourceW, sourceH int) bool {
	return c.X >= 0 && c.Y >= 0 && c.X+c.Width <= sourceW && c.Y+c.Height <= sourceH
}

// CaptureFrame is an immutable snapshot taken from the camera.
// A new frame supersedes the old one; frames are never edited.
type CaptureFrame struct {
	ID     string
	Width  int
	Height int
	image  image.Image
}

// NewCaptureFrame wraps a captured image. The image must not be modified afterwards.
func NewCaptureFrame(id string, img image.Image) CaptureFrame {
	b := img.Bounds()
	return CaptureFrame{ID: id, Width: b.Dx(), Height: b.Dy(), image: img}
}

// Source returns the pixel source of the frame
func (f CaptureFrame) Source() image.Image {
	return f.image
}

// IsZero reports whether the frame holds no image
func (f CaptureFrame) IsZero() bool {
	return f.image == nil
}

// AdjustmentParameters holds the visual adjustments applied in the Adjust stage.
// Hue, Saturation, Brightness and Contrast are in [-1,1].
type AdjustmentParameters struct {
	Hue           float64 `json:"hue"`
	Saturation    float64 `json:"saturation"`
	SharpenAmount float64 `json:"sharpen_amount"`
	SharpenRadius float64 `json:"sharpen_radius"`
	Brightness    float64 `json:"brightness"`
	Contrast      float64 `json:"contrast"`
}

// DefaultAdjustments returns the grayscale, sharpened, brightened preset
// used for text photos.
func DefaultAdjustments() AdjustmentParameters {
	return AdjustmentParameters{
		Hue:           -1,
		Saturation:    -1,
		SharpenAmount: 2,
		SharpenRadius: 20,
		Brightness:    0.2,
		Contrast:      0.9,
	}
}

// FromSliders returns a copy with brightness and contrast taken from 0..100 slider values
func (p AdjustmentParameters) FromSliders(brightness, contrast int) AdjustmentParameters {
	p.Brightness = float64(brightness) / 100
	p.Contrast = float64(contrast) / 100
	return p
}

// Validate checks parameter ranges
func (p AdjustmentParameters) Validate() error {
	for name, v := range map[string]float64{
		"hue":        p.Hue,
		"saturation": p.Saturation,
		"brightness": p.Brightness,
		"contrast":   p.Contrast,
	} {
		if v < -1 || v > 1 {
			return fmt.Errorf("%s must be between -1 and 1, got %.2f", name, v)
		}
	}
	if p.SharpenAmount < 0 {
		return fmt.Errorf("sharpen_amount must not be negative")
	}
	if p.SharpenRadius < 0 {
		return fmt.Errorf("sharpen_radius must not be negative")
	}
	return nil
}

// RecognitionResult is the text extracted from an image. It may be empty.
type RecognitionResult struct {
	Text string `json:"text"`
}

// Length returns the number of characters in the text
func (r RecognitionResult) Length() int {
	return utf8.RuneCountInString(r.Text)
}

// Empty reports whether no text was recognized
func (r RecognitionResult) Empty() bool {
	return r.Text == ""
}

// Display formats the result the way the result panel shows it
func (r RecognitionResult) Display() string {
	return fmt.Sprintf("„%s“ (%d characters)", r.Text, r.Length())
}
