package preference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/teslashibe/go-hometour/internal/log"
	"github.com/teslashibe/go-hometour/pkg/locations"
	"github.com/teslashibe/go-hometour/pkg/procgraph"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(locations.DefaultLayout(), log.Discard())
}

func TestDeclarationsMatchTools(t *testing.T) {
	s := newService(t)
	decls := s.FunctionDeclarations()
	require.Len(t, decls, len(s.Tools()))

	names := make(map[string]bool)
	for _, d := range decls {
		names[d.Name] = true
		require.NotNil(t, d.Parameters)
		assert.Equal(t, genai.TypeObject, d.Parameters.Type)
	}
	for _, want := range []string{
		"list_process_graphs", "create_process_graph", "delete_process_graph",
		"add_process_step", "update_process_step", "add_process_transition",
		"remove_process_transition", "list_object_locations", "add_object",
		"move_object", "delete_path",
	} {
		assert.True(t, names[want], "missing declaration %s", want)
	}

	tool, ok := s.Tool(decls[0].Name)
	require.True(t, ok)
	assert.Equal(t, s.Tools()[0].Name, tool.Name)

	gt := s.GenaiTools()
	require.Len(t, gt, 1)
	assert.Len(t, gt[0].FunctionDeclarations, len(decls))
}

func TestProcessGraphCRUD(t *testing.T) {
	s := newService(t)

	res := Result(s.Execute("create_process_graph", map[string]any{"name": "kitchen-reset"}))
	require.True(t, res.OK(), res)

	res = Result(s.Execute("add_process_step", map[string]any{"graph_name": "kitchen-reset", "step": "Clear benches"}))
	require.True(t, res.OK(), res)

	res = Result(s.Execute("add_process_transition", map[string]any{
		"graph_name": "kitchen-reset", "start": "Clear benches", "end": "Wipe benches",
	}))
	require.True(t, res.OK(), res)

	listing := Result(s.Execute("list_process_graphs", nil))
	require.True(t, listing.OK())
	graphs := listing["graphs"].([]GraphSnapshot)
	require.Len(t, graphs, 1)
	assert.Equal(t, []string{"Clear benches", "Wipe benches"}, graphs[0].Steps)
	assert.Contains(t, graphs[0].Transitions, procgraph.Edge[string]{From: "Clear benches", To: "Wipe benches"})

	assert.True(t, Result(s.Execute("delete_process_graph", map[string]any{"name": "kitchen-reset"})).OK())
	missing := Result(s.Execute("delete_process_graph", map[string]any{"name": "kitchen-reset"}))
	assert.Equal(t, StatusError, missing.Status())
	assert.Contains(t, missing["message"], "kitchen-reset")
}

func TestCreateGraph_Duplicate(t *testing.T) {
	s := newService(t)
	require.True(t, Result(s.Execute("create_process_graph", map[string]any{"name": "laundry"})).OK())
	assert.False(t, Result(s.Execute("create_process_graph", map[string]any{"name": "laundry"})).OK())
}

func TestUpdateAndRemoveTransition(t *testing.T) {
	s := newService(t)
	s.Execute("create_process_graph", map[string]any{"name": "laundry"})
	s.Execute("add_process_transition", map[string]any{"graph_name": "laundry", "start": "wash", "end": "dry"})

	res := Result(s.Execute("update_process_step", map[string]any{
		"graph_name": "laundry", "old_step": "dry", "new_step": "tumble dry",
	}))
	require.True(t, res.OK(), res)
	snap := res["graph"].(GraphSnapshot)
	assert.Equal(t, []procgraph.Edge[string]{{From: "wash", To: "tumble dry"}}, snap.Transitions)

	res = Result(s.Execute("remove_process_transition", map[string]any{
		"graph_name": "laundry", "start": "wash", "end": "tumble dry",
	}))
	require.True(t, res.OK(), res)
	snap = res["graph"].(GraphSnapshot)
	assert.Empty(t, snap.Transitions)
	assert.Equal(t, []string{"tumble dry", "wash"}, snap.Steps)

	listing, ok := s.Graph("laundry")
	require.True(t, ok)
	assert.Contains(t, listing, "wash -> -")
}

func TestGraphTools_UnknownGraph(t *testing.T) {
	s := newService(t)
	for _, name := range []string{"add_process_step", "update_process_step", "add_process_transition", "remove_process_transition"} {
		res := Result(s.Execute(name, map[string]any{
			"graph_name": "nope", "step": "a", "old_step": "a", "new_step": "b", "start": "a", "end": "b",
		}))
		assert.Equal(t, StatusError, res.Status(), name)
	}
}

func TestObjectTools(t *testing.T) {
	s := newService(t)

	add := Result(s.Execute("add_object", map[string]any{
		"path": []any{"Kitchen", "Fridge", "Door"}, "object_name": "butter", "allow_duplicates": false,
	}))
	require.True(t, add.OK(), add)

	dup := Result(s.Execute("add_object", map[string]any{
		"path": []any{"Kitchen", "Fridge", "Door"}, "object_name": "butter",
	}))
	assert.False(t, dup.OK())

	rightOfSink := []any{"Kitchen", "Benches", "Wall", "Zones", "Right_of_Sink"}
	move := Result(s.Execute("move_object", map[string]any{"object_name": "dish_soap", "new_path": rightOfSink}))
	require.True(t, move.OK(), move)

	lookup := Result(s.Execute("list_object_locations", map[string]any{"object_name": "dish_soap"}))
	require.True(t, lookup.OK())
	assert.Equal(t, [][]string{{"Kitchen", "Benches", "Wall", "Zones", "Right_of_Sink"}}, lookup["locations"])

	all := Result(s.Execute("list_object_locations", map[string]any{}))
	require.True(t, all.OK())
	mapping := all["locations"].(map[string][][]string)
	assert.Equal(t, [][]string{{"Kitchen", "Fridge", "Door"}}, mapping["butter"])
}

func TestMoveObject_WithOldPath(t *testing.T) {
	s := newService(t)
	res := Result(s.Execute("move_object", map[string]any{
		"object_name": "milk",
		"old_path":    []any{"Kitchen", "Drawers", "Top"},
		"new_path":    []any{"Kitchen", "Fridge", "Crisper"},
	}))
	assert.False(t, res.OK(), "milk is not in the top drawer")

	res = Result(s.Execute("move_object", map[string]any{
		"object_name": "milk",
		"old_path":    "Kitchen/Fridge/Door",
		"new_path":    "Kitchen/Fridge/Crisper",
	}))
	assert.True(t, res.OK(), res)
}

func TestDeletePath(t *testing.T) {
	s := newService(t)
	p := []any{"Kitchen", "Benches", "Wall", "Zones", "Right_of_Sink"}

	assert.True(t, Result(s.Execute("delete_path", map[string]any{"path": p})).OK())
	assert.False(t, Result(s.Execute("delete_path", map[string]any{"path": p})).OK())
}

func TestExecute_BadArguments(t *testing.T) {
	s := newService(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"unknown tool", "fly", nil},
		{"missing name", "create_process_graph", nil},
		{"wrong type", "create_process_graph", map[string]any{"name": 42}},
		{"empty path", "add_object", map[string]any{"path": []any{}, "object_name": "x"}},
		{"non-string segment", "add_object", map[string]any{"path": []any{"Kitchen", 3}, "object_name": "x"}},
		{"branch as bucket", "add_object", map[string]any{"path": []any{"Kitchen"}, "object_name": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Result(s.Execute(tt.tool, tt.args))
			assert.Equal(t, StatusError, res.Status())
			assert.NotEmpty(t, res["message"])
		})
	}
}

func TestResultsAreJSONSerializable(t *testing.T) {
	s := newService(t)
	s.Execute("create_process_graph", map[string]any{"name": "empty"})

	data, err := json.Marshal(s.Execute("list_process_graphs", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","graphs":[{"name":"empty","steps":[],"transitions":[]}]}`, string(data))
}

func TestLocationsSnapshot(t *testing.T) {
	s := newService(t)
	snap := s.Locations()
	assert.Contains(t, snap, "Kitchen")
	assert.Contains(t, snap, "Office")
}
