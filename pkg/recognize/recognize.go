// Package recognize extracts text from cropped photos.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/client"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/types"
)

// ErrMalformedRaster is returned when the input cannot be processed at all.
// Finding no text is not an error.
var ErrMalformedRaster = errors.New("malformed raster")

// Recognizer extracts text from pixel data
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (types.RecognitionResult, error)
}

// CheckRaster rejects images a recognizer cannot read
func CheckRaster(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image", ErrMalformedRaster)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrMalformedRaster, b)
	}
	return nil
}

// Normalize trims the recognized text into a result
func Normalize(text string) types.RecognitionResult {
	return types.RecognitionResult{Text: strings.TrimSpace(text)}
}

const DefaultPrompt = `Transcribe all text visible in this image exactly as written.
Keep the original language and line breaks. Do not translate, explain or describe the image.
If there is no readable text, answer with NO_TEXT.`

// VisionRecognizer runs OCR through a vision language model
type VisionRecognizer struct {
	client    client.TextClient
	processor *processing.Processor
	model     string
	prompt    string
	sendSize  int
	quality   int
}

// VisionOptions configures a VisionRecognizer
type VisionOptions struct {
	Model    string
	Prompt   string
	SendSize int
	Quality  int
}

// NewVisionRecognizer creates a recognizer backed by a vision model client
func NewVisionRecognizer(c client.TextClient, opts VisionOptions) *VisionRecognizer {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.SendSize <= 0 {
		opts.SendSize = 1024
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	return &VisionRecognizer{
		client:    c,
		processor: processing.NewProcessor(),
		model:     opts.Model,
		prompt:    opts.Prompt,
		sendSize:  opts.SendSize,
		quality:   opts.Quality,
	}
}

// Recognize sends the image to the model and returns the transcribed text
func (r *VisionRecognizer) Recognize(ctx context.Context, img image.Image) (types.RecognitionResult, error) {
	if err := CheckRaster(img); err != nil {
		return types.RecognitionResult{}, err
	}

	imgB64, err := r.processor.PrepareImageForModel(img, "jpg", r.sendSize, r.quality)
	if err != nil {
		return types.RecognitionResult{}, fmt.Errorf("%w: %v", ErrMalformedRaster, err)
	}

	raw, err := r.client.ExtractText(ctx, r.model, r.prompt, imgB64)
	if err != nil {
		return types.RecognitionResult{}, fmt.Errorf("text extraction failed: %w", err)
	}

	result := Normalize(cleanModelText(raw))
	log.Debug("vision recognition finished", "model", r.model, "chars", result.Length())
	return result, nil
}

var noTextMarker = regexp.MustCompile(`(?i)^\W*no[_ ]text\W*$`)

// cleanModelText strips code fences and the no-text marker from a model reply
func cleanModelText(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		} else {
			raw = strings.TrimPrefix(raw, "```")
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)

	if noTextMarker.MatchString(raw) {
		return ""
	}
	return raw
}
