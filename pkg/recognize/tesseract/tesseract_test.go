package tesseract

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/menta2k/photo-translator/pkg/recognize"
)

func TestRecognizeRejectsEmptyImage(t *testing.T) {
	r := New("eus")
	if r.Name() != "tesseract" {
		t.Errorf("Name = %q", r.Name())
	}
	_, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, recognize.ErrMalformedRaster) {
		t.Fatalf("expected ErrMalformedRaster, got %v", err)
	}
}

func TestRecognizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Recognize(ctx, image.NewGray(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
