package preference

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/teslashibe/go-hometour/pkg/locations"
	"github.com/teslashibe/go-hometour/pkg/procgraph"
)

// Tool is a function the model can invoke during a session.
type Tool struct {
	// Name is the identifier the model calls (e.g. "add_object").
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the argument schema. Nil means no arguments.
	Parameters *genai.Schema

	// Handler runs with the service lock held.
	Handler func(args map[string]any) Result
}

// Declaration converts the tool into a Gemini function declaration.
func (t Tool) Declaration() *genai.FunctionDeclaration {
	params := t.Parameters
	if params == nil {
		params = object(nil)
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
	}
}

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	if props == nil {
		props = map[string]*genai.Schema{}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func boolean(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean, Description: desc}
}

func pathSchema(desc string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeString},
		Description: desc,
	}
}

func (s *Service) buildTools() []Tool {
	graphName := str("Name of the process graph.")

	return []Tool{
		// Process graphs
		{
			Name:        "list_process_graphs",
			Description: "Enumerates every known process graph with their steps and transitions.",
			Handler: func(map[string]any) Result {
				return success("graphs", s.graphSnapshots())
			},
		},
		{
			Name:        "create_process_graph",
			Description: "Creates a fresh process graph that the assistant can populate with steps.",
			Parameters:  object(map[string]*genai.Schema{"name": str("Unique name for the new process graph.")}, "name"),
			Handler:     s.createGraph,
		},
		{
			Name:        "delete_process_graph",
			Description: "Deletes a process graph that is no longer needed.",
			Parameters:  object(map[string]*genai.Schema{"name": str("Name of the process graph to delete.")}, "name"),
			Handler:     s.deleteGraph,
		},
		{
			Name:        "add_process_step",
			Description: "Adds a labeled step to an existing process graph.",
			Parameters: object(map[string]*genai.Schema{
				"graph_name": graphName,
				"step":       str("Unique identifier for the step."),
			}, "graph_name", "step"),
			Handler: s.addStep,
		},
		{
			Name:        "update_process_step",
			Description: "Renames an existing step within a process graph without affecting its edges.",
			Parameters: object(map[string]*genai.Schema{
				"graph_name": graphName,
				"old_step":   str("Current name of the step."),
				"new_step":   str("Replacement step name."),
			}, "graph_name", "old_step", "new_step"),
			Handler: s.renameStep,
		},
		{
			Name:        "add_process_transition",
			Description: "Creates a directional edge from one step to another, adding either step if it is new.",
			Parameters: object(map[string]*genai.Schema{
				"graph_name": graphName,
				"start":      str("Origin step name."),
				"end":        str("Destination step name."),
			}, "graph_name", "start", "end"),
			Handler: s.addTransition,
		},
		{
			Name:        "remove_process_transition",
			Description: "Deletes a directional edge between two process steps.",
			Parameters: object(map[string]*genai.Schema{
				"graph_name": graphName,
				"start":      str("Origin step name."),
				"end":        str("Destination step name."),
			}, "graph_name", "start", "end"),
			Handler: s.removeTransition,
		},

		// Object locations
		{
			Name:        "list_object_locations",
			Description: "Returns every known object location or narrows to a specific item.",
			Parameters:  object(map[string]*genai.Schema{"object_name": str("Optional object identifier to filter results.")}),
			Handler:     s.listLocations,
		},
		{
			Name:        "add_object",
			Description: "Stores an object at a precise location path.",
			Parameters: object(map[string]*genai.Schema{
				"path":             pathSchema("Hierarchical path (e.g. ['Kitchen','Drawers','Top'])."),
				"object_name":      str("Identifier for the stored object."),
				"allow_duplicates": boolean("Set true to keep duplicates within the same bucket."),
			}, "path", "object_name"),
			Handler: s.addObject,
		},
		{
			Name:        "move_object",
			Description: "Moves an object to a different location path.",
			Parameters: object(map[string]*genai.Schema{
				"object_name":      str("Identifier of the object to move."),
				"new_path":         pathSchema("Destination path for the object."),
				"old_path":         pathSchema("Optional source path when multiple copies exist."),
				"allow_duplicates": boolean("Set true to retain the object at both paths."),
			}, "object_name", "new_path"),
			Handler: s.moveObject,
		},
		{
			Name:        "delete_path",
			Description: "Removes a location bucket entirely and prunes empty parents.",
			Parameters:  object(map[string]*genai.Schema{"path": pathSchema("Hierarchical path to delete.")}, "path"),
			Handler:     s.deletePath,
		},
	}
}

func (s *Service) createGraph(args map[string]any) Result {
	name, err := stringArg(args, "name")
	if err != nil {
		return failure("%v", err)
	}
	if _, ok := s.graphs[name]; ok {
		return failure("graph %q already exists", name)
	}
	g := procgraph.New[string, struct{}](name)
	s.graphs[name] = g
	return success("graph", snapshotGraph(g))
}

func (s *Service) deleteGraph(args map[string]any) Result {
	name, err := stringArg(args, "name")
	if err != nil {
		return failure("%v", err)
	}
	if _, ok := s.graphs[name]; !ok {
		return failure("graph %q was not found", name)
	}
	delete(s.graphs, name)
	return success("message", fmt.Sprintf("graph %s deleted", name))
}

// lookupGraph resolves the graph_name argument.
func (s *Service) lookupGraph(args map[string]any) (*ProcessGraph, Result) {
	name, err := stringArg(args, "graph_name")
	if err != nil {
		return nil, failure("%v", err)
	}
	g, ok := s.graphs[name]
	if !ok {
		return nil, failure("graph %q was not found", name)
	}
	return g, nil
}

func (s *Service) addStep(args map[string]any) Result {
	g, res := s.lookupGraph(args)
	if res != nil {
		return res
	}
	step, err := stringArg(args, "step")
	if err != nil {
		return failure("%v", err)
	}
	ensureStep(g, step)
	return success("graph", snapshotGraph(g))
}

func (s *Service) renameStep(args map[string]any) Result {
	g, res := s.lookupGraph(args)
	if res != nil {
		return res
	}
	oldStep, err := stringArg(args, "old_step")
	if err != nil {
		return failure("%v", err)
	}
	newStep, err := stringArg(args, "new_step")
	if err != nil {
		return failure("%v", err)
	}
	if err := g.RenameNode(oldStep, newStep); err != nil {
		return failure("step %q was not found in graph %q", oldStep, g.Name())
	}
	return success("graph", snapshotGraph(g))
}

func (s *Service) addTransition(args map[string]any) Result {
	g, res := s.lookupGraph(args)
	if res != nil {
		return res
	}
	start, err := stringArg(args, "start")
	if err != nil {
		return failure("%v", err)
	}
	end, err := stringArg(args, "end")
	if err != nil {
		return failure("%v", err)
	}
	ensureStep(g, start)
	ensureStep(g, end)
	if err := g.AddEdge(start, end); err != nil {
		return failure("%v", err)
	}
	return success("graph", snapshotGraph(g))
}

func (s *Service) removeTransition(args map[string]any) Result {
	g, res := s.lookupGraph(args)
	if res != nil {
		return res
	}
	start, err := stringArg(args, "start")
	if err != nil {
		return failure("%v", err)
	}
	end, err := stringArg(args, "end")
	if err != nil {
		return failure("%v", err)
	}
	g.RemoveEdge(start, end)
	return success("graph", snapshotGraph(g))
}

func ensureStep(g *ProcessGraph, step string) {
	if !g.HasNode(step) {
		_ = g.AddNode(step, struct{}{})
	}
}

func (s *Service) listLocations(args map[string]any) Result {
	name, _ := optionalString(args, "object_name")
	if name != "" {
		p, ok := s.objects.FindObject(name)
		if !ok {
			return failure("%q was not found", name)
		}
		return success("locations", [][]string{p})
	}

	all := s.objects.ListObjects()
	mapping := make(map[string][][]string, len(all))
	for obj, paths := range all {
		for _, p := range paths {
			mapping[obj] = append(mapping[obj], p)
		}
	}
	return success("locations", mapping)
}

func (s *Service) addObject(args map[string]any) Result {
	p, err := pathArg(args, "path")
	if err != nil {
		return failure("%v", err)
	}
	name, err := stringArg(args, "object_name")
	if err != nil {
		return failure("%v", err)
	}
	added, err := s.objects.AddObject(p, name, boolArg(args, "allow_duplicates"))
	if err != nil {
		return failure("%v", err)
	}
	if !added {
		return failure("%q already exists at %s", name, p)
	}
	return success("object", name, "path", []string(p))
}

func (s *Service) moveObject(args map[string]any) Result {
	name, err := stringArg(args, "object_name")
	if err != nil {
		return failure("%v", err)
	}
	newPath, err := pathArg(args, "new_path")
	if err != nil {
		return failure("%v", err)
	}
	var oldPath locations.Path
	if _, ok := args["old_path"]; ok {
		if oldPath, err = pathArg(args, "old_path"); err != nil {
			return failure("%v", err)
		}
	}

	moved, err := s.objects.MoveObject(name, newPath, oldPath, boolArg(args, "allow_duplicates"))
	if err != nil {
		return failure("unable to move %q: %v", name, err)
	}
	if !moved {
		return failure("unable to move %q", name)
	}
	return success("object", name, "new_path", []string(newPath))
}

func (s *Service) deletePath(args map[string]any) Result {
	p, err := pathArg(args, "path")
	if err != nil {
		return failure("%v", err)
	}
	if !s.objects.DeletePath(p) {
		return failure("path %s does not exist", p)
	}
	return success("message", fmt.Sprintf("removed path %s", p))
}

// Argument helpers. Arguments arrive decoded from JSON, so arrays are []any.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := optionalString(args, key)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if v == "" {
		return "", fmt.Errorf("argument %q is required", key)
	}
	return v, nil
}

func optionalString(args map[string]any, key string) (string, bool) {
	v, present := args[key]
	if !present || v == nil {
		return "", true
	}
	s, ok := v.(string)
	return strings.TrimSpace(s), ok
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

func pathArg(args map[string]any, key string) (locations.Path, error) {
	var p locations.Path
	switch v := args[key].(type) {
	case []any:
		for _, seg := range v {
			s, ok := seg.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a list of strings", key)
			}
			if s = strings.TrimSpace(s); s != "" {
				p = append(p, s)
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				p = append(p, s)
			}
		}
	case string:
		p = locations.ParsePath(v)
	case nil:
	default:
		return nil, fmt.Errorf("argument %q must be a list of strings", key)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("argument %q: %w", key, locations.ErrEmptyPath)
	}
	return p, nil
}
