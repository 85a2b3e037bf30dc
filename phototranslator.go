// Package phototranslator wires the capture pipeline together: a camera
// device, the adjust/crop processor, a text recognizer and the optional
// remote translation client, all driven by a workflow coordinator.
//
// Basic usage:
//
//	cfg := config.Default()
//	app, err := phototranslator.New(cfg, phototranslator.WithImage(img))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//
//	out, err := app.Run(ctx, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(out.Result.Display())
//
// The web interface (pkg/web) drives the same coordinator step by step.
package phototranslator

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/photo-translator/internal/config"
	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/camera"
	"github.com/menta2k/photo-translator/pkg/camera/gocvcam"
	"github.com/menta2k/photo-translator/pkg/events"
	"github.com/menta2k/photo-translator/pkg/llamacpp"
	"github.com/menta2k/photo-translator/pkg/ollama"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/recognize"
	"github.com/menta2k/photo-translator/pkg/recognize/tesseract"
	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/types"
	"github.com/menta2k/photo-translator/pkg/workflow"
)

// Version of the photo translator
const Version = "1.0.0"

// ErrNoTranslator is returned by Run when translation is requested but no
// language pair is configured
var ErrNoTranslator = errors.New("translation is not configured")

// App holds one wired workflow
type App struct {
	Config      *config.Config
	Processor   *processing.Processor
	Bus         *events.Bus
	Translator  *translation.Client
	Coordinator *workflow.Coordinator
}

type options struct {
	device     camera.Device
	recognizer recognize.Recognizer
	service    translation.Service
}

// Option overrides a collaborator built from the configuration
type Option func(*options)

// WithDevice uses device instead of the configured OpenCV camera
func WithDevice(device camera.Device) Option {
	return func(o *options) { o.device = device }
}

// WithImage feeds a still image through the pipeline instead of a camera
func WithImage(img image.Image) Option {
	return WithDevice(camera.NewStillDevice(img))
}

// WithRecognizer uses r instead of the configured backend
func WithRecognizer(r recognize.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithTranslationService replaces the HTTP translation service
func WithTranslationService(s translation.Service) Option {
	return func(o *options) { o.service = s }
}

// New validates cfg and builds the workflow
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	processor := processing.NewProcessor()
	bus := events.NewBus(0)

	if o.device == nil {
		o.device = gocvcam.NewDevice(cfg.Camera.Device, cfg.Camera.Sources)
	}
	if o.recognizer == nil {
		r, err := NewRecognizer(cfg.Recognizer)
		if err != nil {
			return nil, err
		}
		o.recognizer = r
	}

	var translator *translation.Client
	pair, ok, err := cfg.SelectedPair()
	if err != nil {
		return nil, fmt.Errorf("translation: %w", err)
	}
	if ok {
		if o.service == nil {
			o.service = translation.NewHTTPService(nil)
		}
		topts := cfg.TranslationOptions()
		topts.Bus = bus
		translator = translation.NewClient(o.service, pair, topts)
		log.Debug("translation enabled", "pair", pair.Name, "model", pair.Model)
	}

	coord, err := workflow.New(workflow.Config{
		Device:           o.device,
		Camera:           cfg.CameraOptions(),
		PreferRearFacing: cfg.Camera.PreferRearFacing,
		Processor:        processor,
		Recognizer:       o.recognizer,
		Translator:       translator,
		Bus:              bus,
		Adjustments:      cfg.Adjust,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Processor:   processor,
		Bus:         bus,
		Translator:  translator,
		Coordinator: coord,
	}, nil
}

// NewRecognizer builds the configured OCR backend
func NewRecognizer(cfg config.RecognizerConfig) (recognize.Recognizer, error) {
	vision := recognize.VisionOptions{
		Model:    cfg.Model,
		SendSize: cfg.SendSize,
		Quality:  cfg.SendQuality,
	}

	switch cfg.Backend {
	case "", "tesseract":
		return tesseract.New(cfg.Languages...), nil
	case "ollama":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return recognize.NewVisionRecognizer(c, vision), nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return recognize.NewVisionRecognizer(c, vision), nil
	default:
		return nil, fmt.Errorf("unknown recognizer backend: %s", cfg.Backend)
	}
}

// Outcome is what a headless run produced
type Outcome struct {
	Region types.CropRegion
	Result types.RecognitionResult
	// Translation is set when a job was submitted
	Translation *translation.Job
}

// RunOptions controls a headless run
type RunOptions struct {
	// Selection in source pixels; nil selects the whole frame
	Selection *types.Rect
	// Params overrides the configured adjustments
	Params    *types.AdjustmentParameters
	Translate bool
}

// Run drives the workflow from Setup to Recognize and optionally waits
// for the translation job.
func (a *App) Run(ctx context.Context, ro *RunOptions) (Outcome, error) {
	if ro == nil {
		ro = &RunOptions{}
	}
	if ro.Translate && a.Translator == nil {
		return Outcome{}, ErrNoTranslator
	}

	c := a.Coordinator
	if err := c.Start(ctx); err != nil {
		return Outcome{}, err
	}
	if err := c.Advance(ctx, workflow.StageCapture); err != nil {
		return Outcome{}, err
	}
	if err := c.Advance(ctx, workflow.StageAdjust); err != nil {
		return Outcome{}, err
	}
	if ro.Params != nil {
		if err := c.Adjust(*ro.Params); err != nil {
			return Outcome{}, err
		}
	}
	if err := c.Advance(ctx, workflow.StageCrop); err != nil {
		return Outcome{}, err
	}

	st := c.Snapshot()
	sel := types.Rect{W: float64(st.Width), H: float64(st.Height)}
	if ro.Selection != nil {
		sel = *ro.Selection
	}
	// display coordinates equal source pixels
	region, err := c.Select(sel, float64(st.Width), float64(st.Height))
	if err != nil {
		return Outcome{}, err
	}
	if err := c.Advance(ctx, workflow.StageRecognize); err != nil {
		return Outcome{}, err
	}

	result, _ := c.Result()
	out := Outcome{Region: region, Result: result}
	log.Info("text recognized", "characters", result.Length(), "region", fmt.Sprintf("%+v", region))

	if !ro.Translate {
		return out, nil
	}
	if err := c.Translate(); err != nil {
		return out, err
	}
	job, err := a.Translator.Wait(ctx)
	if err != nil {
		return out, err
	}
	out.Translation = &job
	if job.Err != nil {
		return out, job.Err
	}
	return out, nil
}

// Close releases the camera and cancels a running translation job
func (a *App) Close() error {
	if a.Translator != nil {
		a.Translator.Reset()
	}
	return a.Coordinator.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
