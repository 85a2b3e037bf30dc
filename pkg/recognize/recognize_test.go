package recognize

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

type fakeClient struct {
	reply  string
	err    error
	calls  int
	model  string
	imgB64 string
}

func (f *fakeClient) ExtractText(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.calls++
	f.model = model
	f.imgB64 = imgB64
	return f.reply, f.err
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	return img
}

func TestVisionRecognizer(t *testing.T) {
	fc := &fakeClient{reply: "  kaixo\n"}
	r := NewVisionRecognizer(fc, VisionOptions{Model: "minicpm-v"})

	res, err := r.Recognize(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "kaixo" || res.Length() != 5 {
		t.Errorf("unexpected result %+v", res)
	}
	if fc.model != "minicpm-v" || fc.imgB64 == "" {
		t.Errorf("client called with model %q, payload %d bytes", fc.model, len(fc.imgB64))
	}
}

func TestVisionRecognizerNoText(t *testing.T) {
	for _, reply := range []string{"", "NO_TEXT", "no text.", "```\nNO_TEXT\n```"} {
		r := NewVisionRecognizer(&fakeClient{reply: reply}, VisionOptions{})
		res, err := r.Recognize(context.Background(), testImage())
		if err != nil {
			t.Fatalf("reply %q: no text must not be an error, got %v", reply, err)
		}
		if !res.Empty() {
			t.Errorf("reply %q: expected empty result, got %q", reply, res.Text)
		}
	}
}

func TestVisionRecognizerStripsFences(t *testing.T) {
	r := NewVisionRecognizer(&fakeClient{reply: "```text\nIRTEERA\n```"}, VisionOptions{})
	res, err := r.Recognize(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "IRTEERA" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestVisionRecognizerMalformed(t *testing.T) {
	fc := &fakeClient{}
	r := NewVisionRecognizer(fc, VisionOptions{})

	if _, err := r.Recognize(context.Background(), nil); !errors.Is(err, ErrMalformedRaster) {
		t.Errorf("expected ErrMalformedRaster for nil image, got %v", err)
	}
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := r.Recognize(context.Background(), empty); !errors.Is(err, ErrMalformedRaster) {
		t.Errorf("expected ErrMalformedRaster for empty image, got %v", err)
	}
	if fc.calls != 0 {
		t.Errorf("client should not be called for malformed input, got %d calls", fc.calls)
	}
}

func TestVisionRecognizerClientError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewVisionRecognizer(&fakeClient{err: boom}, VisionOptions{})
	if _, err := r.Recognize(context.Background(), testImage()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped client error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	res := Normalize("\t„Ñandú“ \n")
	if res.Text != "„Ñandú“" || res.Length() != 7 {
		t.Errorf("unexpected %+v length %d", res, res.Length())
	}
	if res.Display() != "„„Ñandú““ (7 characters)" {
		t.Errorf("Display = %q", res.Display())
	}
}
