// Package web serves the hometour dashboard: run status, the home memory,
// manual tool calls and live transcript and frame feeds.
package web

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/hub"
	"github.com/teslashibe/go-hometour/pkg/loop"
	"github.com/teslashibe/go-hometour/pkg/preference"
)

//go:embed static
var static embed.FS

const maxEvents = 500

// Event types recorded in the transcript.
const (
	EventText  = "text"
	EventTool  = "tool"
	EventState = "state"
)

// Event is one transcript entry.
type Event struct {
	Time   time.Time      `json:"time"`
	Type   string         `json:"type"`
	Text   string         `json:"text,omitempty"`
	Tool   string         `json:"tool,omitempty"`
	Manual bool           `json:"manual,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	State  string         `json:"state,omitempty"`
}

// Home is the memory the dashboard shows and edits.
// *preference.Service satisfies it.
type Home interface {
	Execute(name string, args map[string]any) map[string]any
	Graphs() []preference.GraphSnapshot
	Locations() map[string]any
	Tools() []preference.Tool
}

// Run is the session being observed. *loop.Loop satisfies it.
type Run interface {
	ID() string
	State() loop.State
	Stats() *loop.Stats
}

// Options configures a Server.
type Options struct {
	// Mode is the video mode shown in the status.
	Mode camera.Mode

	// Home is required.
	Home Home

	// Camera enables GET/POST /api/camera when set.
	Camera *camera.Manager

	Logger *slog.Logger
}

// Server is the dashboard. It implements loop.Observer.
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	run   Run
	runMu sync.RWMutex

	events   []Event
	eventsMu sync.RWMutex

	transcriptHub *hub.Hub
	frameHub      *hub.Hub

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer builds the dashboard routes. Call Start to serve them.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		opts:          opts,
		logger:        logger,
		events:        make([]Event, 0, maxEvents),
		transcriptHub: hub.New("transcript", logger),
		frameHub:      hub.New("frames", logger),
		done:          make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "hometour",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/graphs", s.handleGraphs)
	api.Get("/objects", s.handleObjects)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleRunTool)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// Attach sets the run shown by /api/status.
func (s *Server) Attach(run Run) {
	s.runMu.Lock()
	s.run = run
	s.runMu.Unlock()
}

// Start runs the hubs and serves addr until Shutdown or ctx ends.
func (s *Server) Start(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.transcriptHub.Run(ctx)
	go s.frameHub.Run(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			cancel()
		}
		_ = s.app.ShutdownWithTimeout(time.Second)
	}()

	s.logger.Info("dashboard listening", "addr", addr)
	err := s.app.Listen(addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the hubs and the HTTP server started by Start.
func (s *Server) Shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.eventsMu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	if err := s.transcriptHub.BroadcastJSON(e); err != nil {
		s.logger.Debug("encode event", "error", err)
	}
}

// Events returns a copy of the transcript.
func (s *Server) Events() []Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return append([]Event(nil), s.events...)
}

// OnState records a lifecycle change.
func (s *Server) OnState(state loop.State) {
	s.record(Event{Type: EventState, State: state.String()})
}

// OnText records model text.
func (s *Server) OnText(text string) {
	s.record(Event{Type: EventText, Text: text})
}

// OnFrame forwards a sent frame to /ws/frames.
func (s *Server) OnFrame(jpeg []byte) {
	s.frameHub.BroadcastBinary(jpeg)
}

// OnToolCall records a tool call made by the model.
func (s *Server) OnToolCall(call loop.ToolCall, result map[string]any) {
	s.record(Event{Type: EventTool, Tool: call.Name, Args: call.Args, Result: result})
}

var _ loop.Observer = (*Server)(nil)
