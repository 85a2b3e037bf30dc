// Package web exposes the workflow over HTTP and streams its events to
// browsers over a websocket.
package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/events"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/translation"
	"github.com/menta2k/photo-translator/pkg/workflow"
)

// DefaultRecognizeTimeout bounds a request that runs text recognition
const DefaultRecognizeTimeout = 5 * time.Minute

// Options configures the server
type Options struct {
	Port string
	// StaticDir is served at / when set
	StaticDir        string
	RecognizeTimeout time.Duration
}

// Server is the presentation adapter for one coordinator
type Server struct {
	app         *fiber.App
	opts        Options
	coord       *workflow.Coordinator
	processor   *processing.Processor
	hub         *hub
	unsubscribe func()
}

// NewServer creates the HTTP API for coord
func NewServer(coord *workflow.Coordinator, opts Options) *Server {
	if opts.Port == "" {
		opts.Port = "8090"
	}
	if opts.RecognizeTimeout <= 0 {
		opts.RecognizeTimeout = DefaultRecognizeTimeout
	}

	s := &Server{
		opts:      opts,
		coord:     coord,
		processor: processing.NewProcessor(),
		hub:       newHub(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Photo Translator",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/start", s.handleStart)
	api.Post("/advance", s.handleAdvance)
	api.Post("/retreat", s.handleRetreat)
	api.Post("/restart", s.handleRestart)
	api.Put("/adjust", s.handleAdjust)
	api.Put("/selection", s.handleSelection)
	api.Post("/translate", s.handleTranslate)
	api.Get("/image/:kind", s.handleImage)
	api.Get("/events", s.handleEvents)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	s.unsubscribe = coord.Bus().Subscribe(func(e events.Event) {
		s.hub.broadcastJSON(e)
	})
	return s
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	go s.hub.run()
	log.Info("web interface listening", "url", "http://localhost:"+s.opts.Port)
	return s.app.Listen(":" + s.opts.Port)
}

// Shutdown stops the server and the event stream
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.close()
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders errors as JSON with a status derived from the error kind
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, workflow.ErrBlocked):
		status = fiber.StatusLocked
	case errors.Is(err, workflow.ErrSuperseded),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrPrecondition),
		errors.Is(err, translation.ErrJobInFlight):
		status = fiber.StatusConflict
	default:
		switch workflow.Classify(err) {
		case workflow.KindCapabilityMissing, workflow.KindPermissionDenied:
			status = fiber.StatusLocked
		case workflow.KindTransportFailure, workflow.KindRecognitionFailed:
			status = fiber.StatusBadGateway
		case workflow.KindTimedOut:
			status = fiber.StatusGatewayTimeout
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error": workflow.Message(err),
		"kind":  workflow.Classify(err),
	})
}
