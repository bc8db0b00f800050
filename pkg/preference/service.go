// Package preference exposes the assistant's home memory as Gemini tools.
//
// A Service owns two stores: named process graphs describing how the
// household does things, and the location tree describing where things are.
// Every tool returns a result map with "status" set to "success" or "error";
// failures never escape as Go errors so the model always gets an answer.
package preference

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"google.golang.org/genai"

	"github.com/teslashibe/go-hometour/pkg/locations"
	"github.com/teslashibe/go-hometour/pkg/procgraph"
)

// Status values carried in every Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrUnknownTool is reported when a call names a tool the service does not have.
var ErrUnknownTool = errors.New("preference: unknown tool")

// ProcessGraph is the graph type stored by the service. Steps carry no payload.
type ProcessGraph = procgraph.Graph[string, struct{}]

// Result is the payload returned to the model for one tool call.
type Result map[string]any

// Status returns the result status.
func (r Result) Status() string {
	s, _ := r["status"].(string)
	return s
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Status() == StatusSuccess
}

func success(kv ...any) Result {
	r := Result{"status": StatusSuccess}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func failure(format string, args ...any) Result {
	return Result{"status": StatusError, "message": fmt.Sprintf(format, args...)}
}

// GraphSnapshot is the serialized form of a process graph.
type GraphSnapshot struct {
	Name        string                   `json:"name"`
	Steps       []string                 `json:"steps"`
	Transitions []procgraph.Edge[string] `json:"transitions"`
}

// Service manages process graphs and object locations behind one lock.
type Service struct {
	mu      sync.Mutex
	graphs  map[string]*ProcessGraph
	objects *locations.Tree

	tools  []Tool
	byName map[string]Tool
	logger *slog.Logger
}

// NewService creates a service seeded with the given object layout and graphs.
// A nil layout starts empty.
func NewService(objects *locations.Tree, logger *slog.Logger, graphs ...*ProcessGraph) *Service {
	if objects == nil {
		objects = locations.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		graphs:  make(map[string]*ProcessGraph, len(graphs)),
		objects: objects,
		logger:  logger,
	}
	for _, g := range graphs {
		s.graphs[g.Name()] = g
	}

	s.tools = s.buildTools()
	s.byName = make(map[string]Tool, len(s.tools))
	for _, t := range s.tools {
		s.byName[t.Name] = t
	}
	return s
}

// Tools returns every tool in declaration order.
func (s *Service) Tools() []Tool {
	return slices.Clone(s.tools)
}

// Tool resolves a tool by name.
func (s *Service) Tool(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// FunctionDeclarations returns the Gemini declarations for every tool.
func (s *Service) FunctionDeclarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(s.tools))
	for i, t := range s.tools {
		decls[i] = t.Declaration()
	}
	return decls
}

// GenaiTools wraps the declarations for a Live session setup.
func (s *Service) GenaiTools() []*genai.Tool {
	return []*genai.Tool{{FunctionDeclarations: s.FunctionDeclarations()}}
}

// Execute runs the named tool with the model-supplied arguments.
// Calls are serialized; the returned map is safe to hand to the transport.
func (s *Service) Execute(name string, args map[string]any) map[string]any {
	t, ok := s.byName[name]
	if !ok {
		return failure("%v: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := t.Handler(args)
	if res.OK() {
		s.logger.Debug("tool succeeded", "tool", name)
	} else {
		s.logger.Warn("tool failed", "tool", name, "message", res["message"])
	}
	return res
}

// Graphs returns snapshots of every process graph ordered by name.
func (s *Service) Graphs() []GraphSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphSnapshots()
}

func (s *Service) graphSnapshots() []GraphSnapshot {
	names := slices.Sorted(maps.Keys(s.graphs))
	out := make([]GraphSnapshot, 0, len(names))
	for _, name := range names {
		out = append(out, snapshotGraph(s.graphs[name]))
	}
	return out
}

// Graph returns a printable copy of one graph listing.
func (s *Service) Graph(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[name]
	if !ok {
		return "", false
	}
	return g.String(), true
}

// Locations returns a deep copy of the object location tree.
func (s *Service) Locations() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects.Snapshot()
}

func snapshotGraph(g *ProcessGraph) GraphSnapshot {
	snap := GraphSnapshot{
		Name:        g.Name(),
		Steps:       g.Nodes(),
		Transitions: g.Edges(),
	}
	if snap.Steps == nil {
		snap.Steps = []string{}
	}
	if snap.Transitions == nil {
		snap.Transitions = []procgraph.Edge[string]{}
	}
	return snap
}
