package workflow

import (
	"fmt"
	"strings"
)

// Stage is one phase of the capture pipeline
type Stage int

const (
	StageSetup Stage = iota
	StageCapture
	StageAdjust
	StageCrop
	StageRecognize
)

var stageNames = [...]string{"setup", "capture", "adjust", "crop", "recognize"}

// Stages lists all stages in pipeline order
func Stages() []Stage {
	return []Stage{StageSetup, StageCapture, StageAdjust, StageCrop, StageRecognize}
}

func (s Stage) String() string {
	if s.Valid() {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	return s >= StageSetup && s <= StageRecognize
}

// Next returns the stage after s; the last stage has none
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == StageRecognize {
		return s, false
	}
	return s + 1, true
}

// ParseStage accepts a stage name or its 1-based step number
func ParseStage(v string) (Stage, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, name := range stageNames {
		if v == name || v == fmt.Sprint(i+1) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, v)
}

// Step is one navigable entry of the step bar
type Step struct {
	Stage   Stage  `json:"-"`
	Name    string `json:"name"`
	Number  int    `json:"number"`
	Active  bool   `json:"active"`
	Enabled bool   `json:"enabled"`
}
