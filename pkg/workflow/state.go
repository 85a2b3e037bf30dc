package workflow

import (
	"image"

	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/types"
)

// State is a read-only view of the coordinator for presentation adapters
type State struct {
	Session     string                     `json:"session"`
	Stage       string                     `json:"stage"`
	Blocked     bool                       `json:"blocked"`
	BlockReason string                     `json:"block_reason,omitempty"`
	CameraReady bool                       `json:"camera_ready"`
	Width       int                        `json:"width,omitempty"`
	Height      int                        `json:"height,omitempty"`
	Steps       []Step                     `json:"steps"`
	Params      types.AdjustmentParameters `json:"params"`
	Selection   *types.Rect                `json:"selection,omitempty"`
	Region      *types.CropRegion          `json:"region,omitempty"`
	Result      *types.RecognitionResult   `json:"result,omitempty"`
	Recognizing bool                       `json:"recognizing"`
	Job         *JobState                  `json:"job,omitempty"`
	Error       *StageError                `json:"error,omitempty"`
}

// JobState summarizes the translation job
type JobState struct {
	ID     string `json:"id"`
	Pair   string `json:"pair,omitempty"`
	State  string `json:"state"`
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CurrentStage returns the active stage
func (c *Coordinator) CurrentStage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Blocked reports whether the workflow is blocked and why
func (c *Coordinator) Blocked() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked == nil {
		return false, ""
	}
	return true, c.blocked.Message
}

// Result returns the recognized text, if recognition finished
func (c *Coordinator) Result() (types.RecognitionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return types.RecognitionResult{}, false
	}
	return *c.result, true
}

// Steps returns the step bar. A step is enabled once reached in this
// session, and the next step is enabled when its precondition holds.
func (c *Coordinator) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps()
}

func (c *Coordinator) steps() []Step {
	steps := make([]Step, 0, len(stageNames))
	next, hasNext := c.stage.Next()
	for _, s := range Stages() {
		enabled := c.blocked == nil && !c.closed && s <= c.reached
		if c.blocked == nil && !c.closed && hasNext && s == next && c.precondition(c.stage) == nil {
			enabled = true
		}
		steps = append(steps, Step{
			Stage:   s,
			Name:    s.String(),
			Number:  int(s) + 1,
			Active:  s == c.stage,
			Enabled: enabled,
		})
	}
	return steps
}

// Snapshot returns the current state
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	st := State{
		Session:     c.token,
		Stage:       c.stage.String(),
		Blocked:     c.blocked != nil,
		CameraReady: c.handle != nil,
		Steps:       c.steps(),
		Params:      c.params,
		Recognizing: c.recognition != "",
		Error:       c.lastErr,
	}
	if c.blocked != nil {
		st.BlockReason = c.blocked.Message
	}
	if !c.frame.IsZero() {
		st.Width, st.Height = c.frame.Width, c.frame.Height
	}
	if c.selector != nil {
		if sel, ok := c.selector.CurrentSelection(); ok {
			st.Selection = &sel
			region := c.region
			st.Region = &region
		}
	}
	if c.result != nil {
		result := *c.result
		st.Result = &result
	}
	translator := c.translator
	c.mu.Unlock()

	if translator != nil {
		if job := translator.Current(); job.State != translation.StateIdle {
			js := &JobState{
				ID:     job.ID,
				Pair:   job.Pair,
				State:  job.State.String(),
				Status: job.ServiceStatus,
				Result: job.Result,
			}
			if job.Err != nil {
				js.Error = job.Err.Error()
			}
			st.Job = js
		}
	}
	return st
}

// Params returns the current adjustment parameters
func (c *Coordinator) Params() types.AdjustmentParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// AdjustedImage returns the latest rendered image
func (c *Coordinator) AdjustedImage() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rendered == nil {
		return nil, false
	}
	return c.rendered.Image, true
}

// CroppedImage returns the image sent to recognition, or the current
// selection cut from the adjusted image while still cropping.
func (c *Coordinator) CroppedImage() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage == StageRecognize && c.cropped != nil {
		return c.cropped, true
	}
	if c.rendered == nil || c.selector == nil {
		return nil, false
	}
	img, _, err := c.selector.Crop(c.rendered.Image)
	if err != nil {
		return nil, false
	}
	return img, true
}

// CapturedImage returns the original captured frame
func (c *Coordinator) CapturedImage() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame.IsZero() {
		return nil, false
	}
	return c.frame.Source(), true
}
