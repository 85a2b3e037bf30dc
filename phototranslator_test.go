package phototranslator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/photo-translator/internal/config"
	"github.com/menta2k/photo-translator/pkg/recognize/tesseract"
	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/types"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	return img
}

type stubRecognizer struct {
	text   string
	bounds image.Rectangle
}

func (s *stubRecognizer) Recognize(ctx context.Context, img image.Image) (types.RecognitionResult, error) {
	s.bounds = img.Bounds()
	return types.RecognitionResult{Text: s.text}, nil
}

type stubService struct {
	fetch translation.FetchReply
	text  string
}

func (s *stubService) GetKey(ctx context.Context, pair translation.LanguagePair) (string, error) {
	return "fD6JZAFQvU", nil
}

func (s *stubService) AddJob(ctx context.Context, pair translation.LanguagePair, key, text string) (translation.Code, error) {
	s.text = text
	return "ok", nil
}

func (s *stubService) Status(ctx context.Context, pair translation.LanguagePair, key string) (translation.StatusReply, error) {
	return translation.StatusReply{Status: "ok", Message: translation.StatusProcessed}, nil
}

func (s *stubService) Fetch(ctx context.Context, pair translation.LanguagePair, key string) (translation.FetchReply, error) {
	return s.fetch, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Camera.MinWidth = 0
	cfg.Camera.MinHeight = 0
	return cfg
}

func translatingConfig() *config.Config {
	cfg := testConfig()
	cfg.Translation.Pair = "eu2es"
	cfg.Translation.PollIntervalMs = 1
	cfg.Translation.Pairs["eu2es"] = config.PairConfig{Model: "generic_eu2es", Endpoint: "eues.example.org", MasterKey: "k"}
	return cfg
}

func TestRunWholeFrame(t *testing.T) {
	rec := &stubRecognizer{text: "kaixo mundua"}
	app, err := New(testConfig(), WithImage(createTestImage(80, 60)), WithRecognizer(rec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	if app.Translator != nil {
		t.Error("translator must be nil without a selected pair")
	}

	out, err := app.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Region != (types.CropRegion{X: 0, Y: 0, Width: 80, Height: 60}) {
		t.Errorf("region = %+v", out.Region)
	}
	if out.Result.Text != "kaixo mundua" || out.Translation != nil {
		t.Errorf("outcome = %+v", out)
	}
	if rec.bounds.Dx() != 80 || rec.bounds.Dy() != 60 {
		t.Errorf("recognizer saw %v", rec.bounds)
	}
}

func TestRunSelectionAndTranslate(t *testing.T) {
	rec := &stubRecognizer{text: "kaixo"}
	svc := &stubService{fetch: translation.FetchReply{Status: translation.FetchSuccess, Message: "hola"}}
	app, err := New(translatingConfig(),
		WithImage(createTestImage(80, 60)),
		WithRecognizer(rec),
		WithTranslationService(svc))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	out, err := app.Run(context.Background(), &RunOptions{
		Selection: &types.Rect{X: 10, Y: 5, W: 20, H: 30},
		Translate: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Region != (types.CropRegion{X: 10, Y: 5, Width: 20, Height: 30}) {
		t.Errorf("region = %+v", out.Region)
	}
	if out.Translation == nil || out.Translation.Result != "hola" || out.Translation.State != translation.StateDone {
		t.Fatalf("translation = %+v", out.Translation)
	}
	if svc.text != "kaixo" {
		t.Errorf("submitted text = %q", svc.text)
	}
}

func TestRunTranslationFailure(t *testing.T) {
	svc := &stubService{fetch: translation.FetchReply{Status: translation.FetchError, Message: "boom"}}
	app, err := New(translatingConfig(),
		WithImage(createTestImage(40, 40)),
		WithRecognizer(&stubRecognizer{text: "kaixo"}),
		WithTranslationService(svc))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	out, err := app.Run(context.Background(), &RunOptions{Translate: true})
	if !errors.Is(err, translation.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if out.Translation == nil || out.Translation.State != translation.StateFailed {
		t.Errorf("translation = %+v", out.Translation)
	}
}

func TestRunTranslateWithoutPair(t *testing.T) {
	app, err := New(testConfig(), WithImage(createTestImage(40, 40)), WithRecognizer(&stubRecognizer{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	if _, err := app.Run(context.Background(), &RunOptions{Translate: true}); !errors.Is(err, ErrNoTranslator) {
		t.Errorf("expected ErrNoTranslator, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Recognizer.Backend = "magic"
	if _, err := New(cfg, WithImage(createTestImage(4, 4))); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg = testConfig()
	cfg.Translation.Pair = "es2eu"
	if _, err := New(cfg, WithImage(createTestImage(4, 4)), WithRecognizer(&stubRecognizer{})); err == nil {
		t.Error("expected error for pair without endpoint")
	}
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(config.RecognizerConfig{Backend: "tesseract", Languages: []string{"eus"}})
	if err != nil {
		t.Fatalf("NewRecognizer failed: %v", err)
	}
	if _, ok := r.(*tesseract.Recognizer); !ok {
		t.Errorf("got %T, want *tesseract.Recognizer", r)
	}
	if _, err := NewRecognizer(config.RecognizerConfig{Backend: "llamacpp", Model: "m", URL: "http://localhost:8080"}); err != nil {
		t.Errorf("llamacpp recognizer: %v", err)
	}
	if _, err := NewRecognizer(config.RecognizerConfig{Backend: "nope"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %q", GetVersion())
	}
}
