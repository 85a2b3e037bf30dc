// Package workflow sequences the capture pipeline: camera setup, capture,
// adjust, crop and recognize, plus translation of the recognized text.
package workflow

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/camera"
	"github.com/menta2k/photo-translator/pkg/capability"
	"github.com/menta2k/photo-translator/pkg/cropper"
	"github.com/menta2k/photo-translator/pkg/events"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/recognize"
	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/types"
)

// Config wires the coordinator's collaborators
type Config struct {
	Device           camera.Device
	Camera           camera.Options
	PreferRearFacing bool
	Processor        *processing.Processor
	Recognizer       recognize.Recognizer
	// Translator is optional; without it Translate is rejected
	Translator  *translation.Client
	Bus         *events.Bus
	Adjustments types.AdjustmentParameters
}

// Coordinator owns the pipeline stage and the data each stage produced.
// State is guarded by mu, which is never held while waiting on the camera,
// the recognizer or the network; work started under one session token is
// dropped if the token changed by the time it completes.
type Coordinator struct {
	device     camera.Device
	session    *camera.Session
	preferRear bool
	processor  *processing.Processor
	recognizer recognize.Recognizer
	translator *translation.Client
	bus        *events.Bus
	defaults   types.AdjustmentParameters

	mu          sync.Mutex
	token       string
	stage       Stage
	reached     Stage
	blocked     *StageError
	opening     bool
	openCancel  context.CancelFunc
	jobSession  string
	handle      *camera.Handle
	frame       types.CaptureFrame
	params      types.AdjustmentParameters
	rendered    *processing.Rendered
	selector    *cropper.Selector
	cropped     image.Image
	region      types.CropRegion
	recognition string
	result      *types.RecognitionResult
	lastErr     *StageError
	closed      bool
	pending     []events.Event
}

// New creates a coordinator in the Setup stage. Call Start to open the camera.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("workflow: camera device is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("workflow: recognizer is required")
	}
	if cfg.Processor == nil {
		cfg.Processor = processing.NewProcessor()
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus(0)
	}
	if cfg.Adjustments == (types.AdjustmentParameters{}) {
		cfg.Adjustments = types.DefaultAdjustments()
	}
	if err := cfg.Adjustments.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}

	c := &Coordinator{
		device:     cfg.Device,
		session:    camera.NewSession(cfg.Device, cfg.Camera),
		preferRear: cfg.PreferRearFacing,
		processor:  cfg.Processor,
		recognizer: cfg.Recognizer,
		translator: cfg.Translator,
		bus:        cfg.Bus,
		defaults:   cfg.Adjustments,
		token:      uuid.NewString(),
		params:     cfg.Adjustments,
	}
	if c.translator != nil {
		c.translator.OnOutcome(c.onTranslation)
	}
	return c, nil
}

// Bus returns the event bus state changes are published on
func (c *Coordinator) Bus() *events.Bus {
	return c.bus
}

// Start checks capabilities and opens the camera. A missing capability or a
// refused camera blocks the workflow for good.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	if c.handle != nil {
		c.unlock()
		return nil
	}
	if c.opening {
		c.unlock()
		return c.fail(stageErrorf(StageSetup, KindInvalidRequest, ErrInvalidTransition, "the camera is already being opened"))
	}
	ctx, cancel := context.WithCancel(ctx)
	c.opening = true
	c.openCancel = cancel
	token := c.token
	c.unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.token == token {
			c.opening = false
			c.openCancel = nil
		}
		c.unlock()
	}()

	if _, err := capability.Detect(c.device, c.processor); err != nil {
		if c.superseded(token) {
			return ErrSuperseded
		}
		return c.block(StageSetup, err)
	}

	handle, err := c.session.Open(ctx, c.preferRear)
	if err != nil {
		if c.superseded(token) {
			return ErrSuperseded
		}
		if Classify(err).Fatal() {
			return c.block(StageSetup, err)
		}
		return c.fail(newStageError(StageSetup, err))
	}

	c.mu.Lock()
	if c.token != token || c.closed || c.blocked != nil {
		c.unlock()
		handle.Stream.Close()
		return ErrSuperseded
	}
	c.handle = handle
	session := c.token
	c.unlock()

	log.Info("camera ready", "width", handle.Width, "height", handle.Height)
	c.bus.Publish(events.Event{
		Type:    events.TypeCamera,
		Session: session,
		State:   "ready",
		Message: fmt.Sprintf("%dx%d", handle.Width, handle.Height),
	})
	return nil
}

// Advance moves to the next stage once the current stage's output exists.
// Entering Recognize runs text recognition and returns when it finished.
func (c *Coordinator) Advance(ctx context.Context, to Stage) error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	next, ok := c.stage.Next()
	if !ok || to != next {
		from := c.stage
		c.unlock()
		return c.fail(stageErrorf(from, KindInvalidRequest, ErrInvalidTransition,
			"cannot advance from %s to %s", from, to))
	}
	if err := c.precondition(c.stage); err != nil {
		c.unlock()
		return c.fail(err)
	}

	var err error
	switch to {
	case StageCapture:
		err = c.enterCapture()
	case StageAdjust:
		err = c.enterAdjust()
	case StageCrop:
		c.setStage(StageCrop)
	case StageRecognize:
		return c.enterRecognize(ctx)
	}
	c.unlock()

	if err != nil {
		return c.fail(err)
	}
	return nil
}

// Retreat returns to an earlier stage keeping the data produced so far.
// Retreating to Setup is a Restart.
func (c *Coordinator) Retreat(to Stage) error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	if !to.Valid() || to >= c.stage {
		from := c.stage
		c.unlock()
		return c.fail(stageErrorf(from, KindInvalidRequest, ErrInvalidTransition,
			"cannot go back from %s to %s", from, to))
	}
	if to == StageSetup {
		c.unlock()
		return c.Restart()
	}

	if c.stage == StageRecognize {
		// drop any recognition still running
		c.recognition = ""
	}
	c.setStage(to)
	c.unlock()
	return nil
}

// Restart discards the captured frame and everything derived from it,
// abandons the translation job and resumes the camera feed. A camera open
// still in progress is cancelled; call Start again to reopen.
func (c *Coordinator) Restart() error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	c.token = uuid.NewString()
	c.cancelOpen()
	c.jobSession = ""
	c.frame = types.CaptureFrame{}
	c.rendered = nil
	c.selector = nil
	c.cropped = nil
	c.region = types.CropRegion{}
	c.recognition = ""
	c.result = nil
	c.lastErr = nil
	c.params = c.defaults
	c.reached = StageSetup
	if c.handle != nil {
		c.handle.Stream.Resume()
	}
	c.setStage(StageSetup)
	c.unlock()

	if c.translator != nil {
		c.translator.Reset()
	}
	log.Info("workflow restarted")
	return nil
}

// Adjust re-renders the original frame with params. Only valid in the Adjust stage.
func (c *Coordinator) Adjust(params types.AdjustmentParameters) error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	if c.stage != StageAdjust {
		stage := c.stage
		c.unlock()
		return c.fail(stageErrorf(stage, KindInvalidRequest, ErrPrecondition,
			"adjustments can only be changed in the adjust stage"))
	}
	if err := params.Validate(); err != nil {
		c.unlock()
		return c.fail(&StageError{Stage: StageAdjust, Kind: KindInvalidRequest, Message: err.Error(), Err: err})
	}
	c.params = params
	err := c.render()
	c.unlock()

	if err != nil {
		return c.fail(err)
	}
	return nil
}

// Select stores the crop selection made on the adjusted image shown at
// displayWidth x displayHeight. A zero display size means natural size.
func (c *Coordinator) Select(r types.Rect, displayWidth, displayHeight float64) (types.CropRegion, error) {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return types.CropRegion{}, err
	}
	if c.stage != StageCrop || c.selector == nil {
		stage := c.stage
		c.unlock()
		return types.CropRegion{}, c.fail(stageErrorf(stage, KindInvalidRequest, ErrPrecondition,
			"a selection can only be made in the crop stage"))
	}

	sel := c.selector
	if displayWidth > 0 && displayHeight > 0 {
		if err := sel.SetDisplaySize(displayWidth, displayHeight); err != nil {
			c.unlock()
			return types.CropRegion{}, c.fail(&StageError{Stage: StageCrop, Kind: KindInvalidRequest, Message: err.Error(), Err: err})
		}
	}
	var region types.CropRegion
	err := sel.Select(r)
	if err == nil {
		region, err = sel.Region()
	}
	if err != nil {
		sel.Clear()
		c.unlock()
		return types.CropRegion{}, c.fail(&StageError{Stage: StageCrop, Kind: KindInvalidRequest, Message: err.Error(), Err: err})
	}
	c.region = region
	session := c.token
	c.unlock()

	c.bus.Publish(events.Event{
		Type:    events.TypeSelection,
		Session: session,
		Stage:   StageCrop.String(),
		Message: fmt.Sprintf("%d,%d %dx%d", region.X, region.Y, region.Width, region.Height),
	})
	return region, nil
}

// Translate submits the recognized text. The outcome arrives as a result or
// error event.
func (c *Coordinator) Translate() error {
	c.mu.Lock()
	if err := c.checkUsable(); err != nil {
		c.unlock()
		return err
	}
	if c.translator == nil {
		c.unlock()
		return c.fail(stageErrorf(StageRecognize, KindInvalidRequest, ErrPrecondition, "translation is not configured"))
	}
	if c.stage != StageRecognize || c.result == nil {
		c.unlock()
		return c.fail(stageErrorf(StageRecognize, KindInvalidRequest, ErrPrecondition, "there is no recognized text yet"))
	}
	if c.result.Empty() {
		c.unlock()
		return c.fail(stageErrorf(StageRecognize, KindInvalidRequest, ErrPrecondition, "no text was recognized"))
	}
	text := c.result.Text
	c.jobSession = c.token
	c.unlock()

	if err := c.translator.Submit(text); err != nil {
		return c.fail(&StageError{Stage: StageRecognize, Kind: KindInvalidRequest, Message: err.Error(), Err: err})
	}
	return nil
}

// Close releases the camera and abandons the translation job
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.token = uuid.NewString()
	c.cancelOpen()
	c.jobSession = ""
	handle := c.handle
	c.handle = nil
	c.unlock()

	if c.translator != nil {
		c.translator.Reset()
	}
	if handle != nil {
		return handle.Stream.Close()
	}
	return nil
}

// cancelOpen abandons a camera open in progress. Called with mu held.
func (c *Coordinator) cancelOpen() {
	if c.openCancel != nil {
		c.openCancel()
		c.openCancel = nil
	}
	c.opening = false
}

// superseded reports whether token no longer names the current session
func (c *Coordinator) superseded(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != token || c.closed
}

func (c *Coordinator) enterCapture() error {
	img, err := c.handle.Stream.Snapshot()
	if err != nil {
		return stageErrorf(StageSetup, KindCapabilityMissing, err, "could not take a picture: %v", err)
	}
	if err := recognize.CheckRaster(img); err != nil {
		return stageErrorf(StageSetup, KindCapabilityMissing, err, "the camera returned an empty picture")
	}
	c.handle.Stream.Pause()

	c.frame = types.NewCaptureFrame(uuid.NewString(), img)
	c.rendered = nil
	c.selector = nil
	c.cropped = nil
	c.result = nil
	c.setStage(StageCapture)
	return nil
}

func (c *Coordinator) enterAdjust() error {
	if err := c.render(); err != nil {
		return err
	}
	c.setStage(StageAdjust)
	return nil
}

// render rebuilds the adjusted image from the original frame. Caller holds mu.
func (c *Coordinator) render() error {
	out, err := c.processor.Render(c.frame, c.params)
	if err != nil {
		return &StageError{Stage: StageAdjust, Kind: KindInvalidRequest, Message: "could not apply the adjustments", Err: err}
	}
	c.rendered = &out

	b := out.Image.Bounds()
	if c.selector == nil {
		c.selector = cropper.New(b.Dx(), b.Dy())
	} else {
		c.selector.SetSource(b.Dx(), b.Dy())
	}

	c.pending = append(c.pending, events.Event{
		Type:    events.TypeRender,
		Session: c.token,
		Stage:   StageAdjust.String(),
		Message: fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
	})
	return nil
}

// enterRecognize crops the adjusted image, switches to Recognize and runs
// the recognizer without holding mu. Called with mu held; returns with it released.
func (c *Coordinator) enterRecognize(ctx context.Context) error {
	cropped, region, err := c.selector.Crop(c.rendered.Image)
	if err != nil {
		c.unlock()
		return c.fail(&StageError{Stage: StageCrop, Kind: KindInvalidRequest, Message: err.Error(), Err: ErrPrecondition})
	}
	c.cropped = cropped
	c.region = region
	c.result = nil
	c.recognition = uuid.NewString()
	run := c.recognition
	c.setStage(StageRecognize)
	recognizer := c.recognizer
	c.unlock()

	result, err := recognizer.Recognize(ctx, cropped)

	c.mu.Lock()
	if c.recognition != run || c.stage != StageRecognize {
		c.unlock()
		log.Debug("discarding stale recognition result")
		return ErrSuperseded
	}
	c.recognition = ""
	if err != nil {
		c.unlock()
		if ctx.Err() != nil {
			return c.fail(&StageError{Stage: StageRecognize, Kind: KindRecognitionFailed, Message: "text recognition was cancelled", Err: err})
		}
		return c.fail(&StageError{Stage: StageRecognize, Kind: KindRecognitionFailed, Message: "text recognition failed", Err: err})
	}
	c.result = &result
	session := c.token
	c.unlock()

	log.Info("text recognized", "chars", result.Length())
	c.bus.Publish(events.Event{
		Type:    events.TypeRecognition,
		Session: session,
		Stage:   StageRecognize.String(),
		Text:    result.Text,
		Message: result.Display(),
	})
	return nil
}

// precondition checks the output of stage s exists. Caller holds mu.
func (c *Coordinator) precondition(s Stage) *StageError {
	switch s {
	case StageSetup:
		if c.handle == nil {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "the camera is not ready yet")
		}
	case StageCapture:
		if c.frame.IsZero() {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "no picture has been taken")
		}
	case StageAdjust:
		if c.rendered == nil {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "the picture has not been adjusted")
		}
	case StageCrop:
		if c.selector == nil {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "select the text to recognize first")
		}
		if _, ok := c.selector.CurrentSelection(); !ok {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "select the text to recognize first")
		}
	case StageRecognize:
		if c.recognition != "" {
			return stageErrorf(s, KindInvalidRequest, ErrPrecondition, "recognition is still running")
		}
	}
	return nil
}

// checkUsable rejects requests on a blocked or closed coordinator. Caller holds mu.
func (c *Coordinator) checkUsable() error {
	if c.blocked != nil {
		return fmt.Errorf("%w: %s", ErrBlocked, c.blocked.Message)
	}
	if c.closed {
		return fmt.Errorf("%w: coordinator closed", ErrBlocked)
	}
	return nil
}

// setStage records the transition and publishes it. Caller holds mu.
func (c *Coordinator) setStage(s Stage) {
	from := c.stage
	c.stage = s
	c.lastErr = nil
	if s > c.reached {
		c.reached = s
	}
	log.Debug("stage transition", "from", from, "to", s)
	c.pending = append(c.pending, events.Event{
		Type:    events.TypeStage,
		Session: c.token,
		Stage:   s.String(),
	})
}

// unlock releases mu and publishes the events queued while it was held
func (c *Coordinator) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, e := range pending {
		c.bus.Publish(e)
	}
}

// block enters the irrecoverable Blocked substate
func (c *Coordinator) block(stage Stage, err error) error {
	stageErr := newStageError(stage, err)
	c.mu.Lock()
	if c.blocked == nil {
		c.blocked = stageErr
	}
	c.lastErr = stageErr
	session := c.token
	c.unlock()

	log.Error("workflow blocked", "kind", stageErr.Kind, "reason", stageErr.Message, "error", err)
	c.bus.Publish(events.Event{
		Type:    events.TypeBlocked,
		Session: session,
		Stage:   stage.String(),
		Kind:    string(stageErr.Kind),
		Message: stageErr.Message,
	})
	return stageErr
}

// fail records err and publishes it on the error surface
func (c *Coordinator) fail(err *StageError) error {
	c.mu.Lock()
	c.lastErr = err
	session := c.token
	c.unlock()

	log.Warn("workflow request failed", "stage", err.Stage, "kind", err.Kind, "error", err)
	c.bus.Publish(events.Event{
		Type:    events.TypeError,
		Session: session,
		Stage:   err.Stage.String(),
		Kind:    string(err.Kind),
		Message: err.Message,
	})
	return err
}

func (c *Coordinator) onTranslation(job translation.Job) {
	current := c.translator.Current()

	c.mu.Lock()
	if job.ID != current.ID || c.jobSession == "" || c.jobSession != c.token || c.closed {
		c.unlock()
		log.Debug("discarding translation outcome from an earlier session", "job", job.ID)
		return
	}
	session := c.token

	if job.State == translation.StateDone {
		c.unlock()
		c.bus.Publish(events.Event{
			Type:    events.TypeResult,
			Session: session,
			JobID:   job.ID,
			State:   job.State.String(),
			Text:    job.Result,
		})
		return
	}

	kind := Classify(job.Err)
	message := "the translation failed"
	switch kind {
	case KindTimedOut:
		message = "the translation took too long"
	case KindTransportFailure:
		message = "the translation service could not be reached"
	}
	stageErr := &StageError{Stage: StageRecognize, Kind: kind, Message: message, Err: job.Err}
	c.lastErr = stageErr
	c.unlock()

	c.bus.Publish(events.Event{
		Type:    events.TypeError,
		Session: session,
		JobID:   job.ID,
		State:   job.State.String(),
		Stage:   StageRecognize.String(),
		Kind:    string(stageErr.Kind),
		Message: message,
	})
}
