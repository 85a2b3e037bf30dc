// Package tesseract recognizes text with the Tesseract engine.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/menta2k/photo-translator/pkg/recognize"
	"github.com/menta2k/photo-translator/pkg/types"
)

// Recognizer implements recognize.Recognizer using a gosseract client
type Recognizer struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// New constructs a Tesseract recognizer for the given language codes
// (for example "eus", "spa").
func New(languages ...string) *Recognizer {
	return &Recognizer{clientFactory: gosseract.NewClient, languages: languages}
}

func (r *Recognizer) Name() string { return "tesseract" }

// Recognize runs OCR on img. A page without text yields an empty result.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (types.RecognitionResult, error) {
	if err := recognize.CheckRaster(img); err != nil {
		return types.RecognitionResult{}, err
	}
	select {
	case <-ctx.Done():
		return types.RecognitionResult{}, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return types.RecognitionResult{}, fmt.Errorf("%w: %v", recognize.ErrMalformedRaster, err)
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return types.RecognitionResult{}, fmt.Errorf("set image: %w", err)
	}
	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return types.RecognitionResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return types.RecognitionResult{}, fmt.Errorf("recognize text: %w", err)
	}
	return recognize.Normalize(text), nil
}
