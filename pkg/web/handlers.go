package web

import (
	"context"
	"encoding/json"
	"image"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/menta2k/photo-translator/pkg/events"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/types"
	"github.com/menta2k/photo-translator/pkg/workflow"
)

// StageRequest names the target of an advance or retreat
type StageRequest struct {
	Stage string `json:"stage"`
}

// SelectionRequest is a crop rectangle in display coordinates
type SelectionRequest struct {
	types.Rect
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// AdjustRequest updates adjustment parameters. Fields left out keep their
// current value; slider values (0..100) override brightness and contrast.
type AdjustRequest struct {
	types.AdjustmentParameters
	BrightnessSlider *int `json:"brightness_slider,omitempty"`
	ContrastSlider   *int `json:"contrast_slider,omitempty"`
}

// handleState returns the coordinator state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.coord.Snapshot())
}

// handleStart opens the camera
func (s *Server) handleStart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RecognizeTimeout)
	defer cancel()
	if err := s.coord.Start(ctx); err != nil {
		return err
	}
	return c.JSON(s.coord.Snapshot())
}

// handleAdvance moves one stage forward
func (s *Server) handleAdvance(c *fiber.Ctx) error {
	stage, err := parseStageRequest(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RecognizeTimeout)
	defer cancel()
	if err := s.coord.Advance(ctx, stage); err != nil {
		return err
	}
	return c.JSON(s.coord.Snapshot())
}

// handleRetreat goes back to an earlier stage
func (s *Server) handleRetreat(c *fiber.Ctx) error {
	stage, err := parseStageRequest(c)
	if err != nil {
		return err
	}
	if err := s.coord.Retreat(stage); err != nil {
		return err
	}
	return c.JSON(s.coord.Snapshot())
}

// handleRestart starts over from setup
func (s *Server) handleRestart(c *fiber.Ctx) error {
	if err := s.coord.Restart(); err != nil {
		return err
	}
	return c.JSON(s.coord.Snapshot())
}

// handleAdjust re-renders with new parameters
func (s *Server) handleAdjust(c *fiber.Ctx) error {
	req := AdjustRequest{AdjustmentParameters: s.coord.Params()}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid adjustment body: "+err.Error())
	}
	params := req.AdjustmentParameters
	if req.BrightnessSlider != nil {
		params.Brightness = float64(*req.BrightnessSlider) / 100
	}
	if req.ContrastSlider != nil {
		params.Contrast = float64(*req.ContrastSlider) / 100
	}
	if err := s.coord.Adjust(params); err != nil {
		return err
	}
	return c.JSON(s.coord.Snapshot())
}

// handleSelection stores the crop selection
func (s *Server) handleSelection(c *fiber.Ctx) error {
	var req SelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid selection body: "+err.Error())
	}
	region, err := s.coord.Select(req.Rect, req.DisplayWidth, req.DisplayHeight)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"region": region})
}

// handleTranslate submits the recognized text
func (s *Server) handleTranslate(c *fiber.Ctx) error {
	if err := s.coord.Translate(); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(s.coord.Snapshot())
}

// handleImage serves the captured, adjusted or cropped image
func (s *Server) handleImage(c *fiber.Ctx) error {
	format := strings.ToLower(c.Query("format", "png"))
	kind := c.Params("kind")

	source, ok := s.imageFor(kind)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no "+kind+" image available")
	}
	if kind == "adjusted" && c.QueryBool("overlay") {
		if st := s.coord.Snapshot(); st.Region != nil {
			source = s.processor.CreateSelectionOverlay(source, *st.Region)
		}
	}

	data, err := s.processor.Encode(source, format, c.QueryInt("quality", 90))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	c.Set(fiber.HeaderContentType, processing.ContentType(format))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleEvents returns events newer than ?since
func (s *Server) handleEvents(c *fiber.Ctx) error {
	since, err := strconv.ParseInt(c.Query("since", "0"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "since must be an integer")
	}
	list := s.coord.Bus().Since(since)
	if list == nil {
		list = []events.Event{}
	}
	return c.JSON(list)
}

// handleEventsWS streams events, starting with the buffered backlog
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	var backlog [][]byte
	list := s.coord.Bus().Since(0)
	if len(list) > 128 {
		list = list[len(list)-128:]
	}
	for _, e := range list {
		if data, err := json.Marshal(e); err == nil {
			backlog = append(backlog, data)
		}
	}
	s.hub.serve(conn, backlog)
}

func (s *Server) imageFor(kind string) (image.Image, bool) {
	switch kind {
	case "captured":
		return s.coord.CapturedImage()
	case "adjusted":
		return s.coord.AdjustedImage()
	case "cropped":
		return s.coord.CroppedImage()
	}
	return nil, false
}

func parseStageRequest(c *fiber.Ctx) (workflow.Stage, error) {
	var req StageRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid stage body: "+err.Error())
	}
	return workflow.ParseStage(req.Stage)
}
