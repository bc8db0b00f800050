package web

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/hub"
	"github.com/teslashibe/go-hometour/pkg/loop"
	"github.com/teslashibe/go-hometour/pkg/preference"
)

// Status is the body of GET /api/status.
type Status struct {
	RunID   string              `json:"run_id,omitempty"`
	State   loop.State          `json:"state"`
	Mode    camera.Mode         `json:"mode"`
	Stats   *loop.StatsSnapshot `json:"stats,omitempty"`
	Clients int                 `json:"clients"`
	Dropped int64               `json:"dropped_clients"`
}

// ToolInfo describes a tool for GET /api/tools.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RunToolRequest is the body of POST /api/tools/:name.
type RunToolRequest struct {
	Args map[string]any `json:"args"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		State:   loop.StateIdle,
		Mode:    s.opts.Mode,
		Clients: s.transcriptHub.ClientCount() + s.frameHub.ClientCount(),
		Dropped: s.transcriptHub.Dropped() + s.frameHub.Dropped(),
	}

	s.runMu.RLock()
	run := s.run
	s.runMu.RUnlock()
	if run != nil {
		snap := run.Stats().Snapshot()
		st.RunID = run.ID()
		st.State = run.State()
		st.Stats = &snap
	}
	return c.JSON(st)
}

func (s *Server) handleGraphs(c *fiber.Ctx) error {
	return c.JSON(s.opts.Home.Graphs())
}

func (s *Server) handleObjects(c *fiber.Ctx) error {
	return c.JSON(s.opts.Home.Locations())
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	tools := s.opts.Home.Tools()
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description})
	}
	return c.JSON(out)
}

// handleRunTool runs a preference tool by hand, as if the model had called it.
func (s *Server) handleRunTool(c *fiber.Ctx) error {
	name := utils.CopyString(c.Params("name"))
	if !s.hasTool(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  preference.StatusError,
			"message": "unknown tool: " + name,
		})
	}

	var req RunToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  preference.StatusError,
				"message": "invalid request body: " + err.Error(),
			})
		}
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}

	result := s.opts.Home.Execute(name, req.Args)
	s.record(Event{Type: EventTool, Tool: name, Manual: true, Args: req.Args, Result: result})

	status := fiber.StatusOK
	if preference.Result(result).Status() != preference.StatusSuccess {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

func (s *Server) hasTool(name string) bool {
	for _, t := range s.opts.Home.Tools() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.Events())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.opts.Camera == nil {
		return fiber.NewError(fiber.StatusNotFound, "video is disabled")
	}
	return c.JSON(s.opts.Camera.GetConfig())
}

// handleSetCamera applies a partial update such as {"quality": 60}.
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.opts.Camera == nil {
		return fiber.NewError(fiber.StatusNotFound, "video is disabled")
	}

	var updates map[string]any
	if err := json.Unmarshal(c.Body(), &updates); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.opts.Camera.UpdateConfig(updates); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.opts.Camera.GetConfig())
}

// handleTranscriptWS replays the transcript, then streams new events.
func (s *Server) handleTranscriptWS(conn *websocket.Conn) {
	events := s.Events()
	backlog := make([]hub.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		backlog = append(backlog, hub.NewJSONMessage(data))
	}

	client := hub.NewClient(s.transcriptHub, conn, backlog...)
	if client == nil {
		return
	}
	client.Run()
}

func (s *Server) handleFramesWS(conn *websocket.Conn) {
	client := hub.NewClient(s.frameHub, conn)
	if client == nil {
		return
	}
	client.Run()
}
