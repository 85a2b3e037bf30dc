package processing

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/photo-translator/pkg/types"
)

// createTestImage creates a colored image with dark "text" strokes
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if y%10 < 3 && x > width/4 && x < 3*width/4 {
				img.Set(x, y, color.RGBA{20, 20, 60, 255})
			} else {
				img.Set(x, y, color.RGBA{uint8(x * 255 / width), 180, 120, 255})
			}
		}
	}

	return img
}

func testFrame(width, height int) types.CaptureFrame {
	return types.NewCaptureFrame("frame-1", createTestImage(width, height))
}

func TestRender(t *testing.T) {
	p := NewProcessor()
	frame := testFrame(120, 80)

	out, err := p.Render(frame, types.DefaultAdjustments())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if out.Image.Bounds().Dx() != 120 || out.Image.Bounds().Dy() != 80 {
		t.Errorf("unexpected bounds: %v", out.Image.Bounds())
	}
	if out.FrameID != "frame-1" {
		t.Errorf("FrameID = %q, want frame-1", out.FrameID)
	}

	// saturation -1 yields grayscale
	c := out.Image.NRGBAAt(5, 5)
	if c.R != c.G || c.G != c.B {
		t.Errorf("expected gray pixel, got %+v", c)
	}
}

func TestRenderDoesNotAccumulate(t *testing.T) {
	p := NewProcessor()
	frame := testFrame(64, 48)

	p1 := types.DefaultAdjustments()
	p2 := p1.FromSliders(50, 30)

	if _, err := p.Render(frame, p1); err != nil {
		t.Fatalf("Render P1 failed: %v", err)
	}
	again, err := p.Render(frame, p2)
	if err != nil {
		t.Fatalf("Render P2 failed: %v", err)
	}
	direct, err := NewProcessor().Render(frame, p2)
	if err != nil {
		t.Fatalf("direct Render failed: %v", err)
	}

	if !bytes.Equal(again.Image.Pix, direct.Image.Pix) {
		t.Error("rendering P1 then P2 differs from rendering P2 directly")
	}
}

func TestRenderLeavesFrameUntouched(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(32, 32).(*image.RGBA)
	before := append([]byte(nil), src.Pix...)

	if _, err := p.Render(types.NewCaptureFrame("f", src), types.DefaultAdjustments()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(before, src.Pix) {
		t.Error("Render modified the original frame")
	}
}

func TestRenderRejectsInvalidParams(t *testing.T) {
	p := NewProcessor()
	params := types.DefaultAdjustments()
	params.Contrast = 3

	if _, err := p.Render(testFrame(10, 10), params); err == nil {
		t.Error("expected error for out-of-range contrast")
	}
	if _, err := p.Render(types.CaptureFrame{}, params); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestSelfTest(t *testing.T) {
	if err := NewProcessor().SelfTest(); err != nil {
		t.Fatalf("SelfTest failed: %v", err)
	}
}

func TestCrop(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(100, 80)

	out, err := p.Crop(img, types.CropRegion{X: 10, Y: 20, Width: 30, Height: 40})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Bounds().Dx() != 30 || out.Bounds().Dy() != 40 {
		t.Errorf("crop size = %dx%d, want 30x40", out.Bounds().Dx(), out.Bounds().Dy())
	}

	r1, g1, b1, _ := out.At(0, 0).RGBA()
	r2, g2, b2, _ := img.At(10, 20).RGBA()
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Error("cropped pixel should match source pixel")
	}

	if _, err := p.Crop(img, types.CropRegion{X: 200, Y: 200, Width: 5, Height: 5}); err == nil {
		t.Error("expected error for region outside image")
	}
}

func TestEncodeDecode(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(40, 30)

	for _, format := range []string{"png", "jpg", "webp"} {
		data, err := p.Encode(img, format, 80)
		if err != nil {
			t.Fatalf("Encode %s failed: %v", format, err)
		}
		decoded, err := p.DecodeImage(data)
		if err != nil {
			t.Fatalf("DecodeImage %s failed: %v", format, err)
		}
		if decoded.Bounds().Dx() != 40 || decoded.Bounds().Dy() != 30 {
			t.Errorf("%s: decoded size %v", format, decoded.Bounds())
		}
	}

	if _, err := p.Encode(img, "gif", 80); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(50, 20)

	for _, format := range []string{"png", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(img, path, format, 90, false); err != nil {
			t.Fatalf("SaveImage %s failed: %v", format, err)
		}
		loaded, err := p.LoadImageSmart(path)
		if err != nil {
			t.Fatalf("LoadImage %s failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 50 {
			t.Errorf("%s: loaded width %d", format, loaded.Bounds().Dx())
		}
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadImage(garbage); err == nil {
		t.Error("expected error for garbage file")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(400, 100), "jpg", 200, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if b64 == "" {
		t.Error("expected base64 payload")
	}
}

func TestCreateSelectionOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(100, 100)

	overlay := p.CreateSelectionOverlay(img, types.CropRegion{X: 10, Y: 10, Width: 50, Height: 50})
	r, g, b, _ := overlay.At(10, 30).RGBA()
	if r>>8 != 255 || g>>8 != 204 || b>>8 != 0 {
		t.Errorf("expected selection stroke at border, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func BenchmarkRender(b *testing.B) {
	p := NewProcessor()
	frame := testFrame(640, 360)
	params := types.DefaultAdjustments()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Render(frame, params)
	}
}
