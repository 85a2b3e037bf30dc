package cropper

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/menta2k/photo-translator/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 64, 255})
		}
	}

	return img
}

func TestNew(t *testing.T) {
	s := New(640, 360)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.ScaleFactor() != 1 {
		t.Errorf("Expected scale 1 at natural size, got %f", s.ScaleFactor())
	}
	if _, ok := s.CurrentSelection(); ok {
		t.Error("Expected no selection initially")
	}
	if _, err := s.Region(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("Expected ErrNoSelection, got %v", err)
	}
}

func TestRegionScaled(t *testing.T) {
	s := New(640, 360)
	if err := s.SetDisplaySize(320, 180); err != nil {
		t.Fatalf("SetDisplaySize failed: %v", err)
	}
	if s.ScaleFactor() != 2 {
		t.Fatalf("Expected scale 2, got %f", s.ScaleFactor())
	}

	if err := s.Select(types.Rect{X: 10, Y: 20, W: 100, H: 50}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	region, err := s.Region()
	if err != nil {
		t.Fatalf("Region failed: %v", err)
	}
	want := types.CropRegion{X: 20, Y: 40, Width: 200, Height: 100}
	if region != want {
		t.Errorf("Expected %+v, got %+v", want, region)
	}

	sel, ok := s.CurrentSelection()
	if !ok || sel.X != 10 || sel.W != 100 {
		t.Errorf("CurrentSelection should stay in display coordinates, got %+v", sel)
	}
}

func TestRegionClamped(t *testing.T) {
	s := New(640, 360)
	s.SetDisplaySize(320, 180)
	s.Select(types.Rect{X: -10, Y: 150, W: 400, H: 100})

	region, err := s.Region()
	if err != nil {
		t.Fatalf("Region failed: %v", err)
	}
	if !region.Within(640, 360) {
		t.Errorf("Region %+v not within 640x360", region)
	}
	if region.X != 0 || region.Y != 300 || region.Width != 640 || region.Height != 60 {
		t.Errorf("Unexpected clamped region %+v", region)
	}
}

func TestRegionAlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const sourceW, sourceH = 1280, 720

	for i := 0; i < 500; i++ {
		scale := 0.25 + rng.Float64()*4
		r := types.Rect{
			X: rng.Float64()*2000 - 500,
			Y: rng.Float64()*2000 - 500,
			W: rng.Float64()*1500 + 1,
			H: rng.Float64()*1500 + 1,
		}
		region, err := ToRegion(r, scale, sourceW, sourceH)
		if err != nil {
			continue
		}
		if !region.Within(sourceW, sourceH) {
			t.Fatalf("rect %+v scale %f gave %+v outside bounds", r, scale, region)
		}
		if float64(region.X) > r.X*scale+1 && r.X >= 0 {
			t.Fatalf("region.x %d exceeds scaled x %f", region.X, r.X*scale)
		}
	}
}

func TestSelectRejectsEmpty(t *testing.T) {
	s := New(100, 100)
	if err := s.Select(types.Rect{X: 1, Y: 1, W: 0, H: 10}); err == nil {
		t.Error("Expected error for zero-width selection")
	}
	if err := s.SetDisplaySize(0, 10); err == nil {
		t.Error("Expected error for zero display width")
	}
}

func TestSelectionOutsideImage(t *testing.T) {
	s := New(100, 100)
	s.Select(types.Rect{X: 200, Y: 200, W: 10, H: 10})
	if _, err := s.Region(); err == nil {
		t.Error("Expected error for selection outside the image")
	}
}

func TestSetSourceKeepsSelectionForSameSize(t *testing.T) {
	s := New(100, 80)
	s.Select(types.Rect{X: 1, Y: 1, W: 10, H: 10})

	s.SetSource(100, 80)
	if _, ok := s.CurrentSelection(); !ok {
		t.Error("Expected selection to survive re-render of the same frame")
	}

	s.SetSource(200, 80)
	if _, ok := s.CurrentSelection(); ok {
		t.Error("Expected selection to be dropped for a different source")
	}
}

func TestCrop(t *testing.T) {
	img := createTestImage(200, 100)
	s := New(200, 100)
	s.SetDisplaySize(100, 50)
	s.Select(types.Rect{X: 5, Y: 5, W: 20, H: 10})

	out, region, err := s.Crop(img)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
		t.Errorf("Expected 40x20, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}

	r1, g1, _, _ := out.At(0, 0).RGBA()
	r2, g2, _, _ := img.At(region.X, region.Y).RGBA()
	if r1 != r2 || g1 != g2 {
		t.Error("Cropped pixel should match original image pixel")
	}
}

func BenchmarkCrop(b *testing.B) {
	img := createTestImage(1920, 1080)
	s := New(1920, 1080)
	s.SetDisplaySize(960, 540)
	s.Select(types.Rect{X: 100, Y: 100, W: 400, H: 200})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Crop(img)
	}
}
