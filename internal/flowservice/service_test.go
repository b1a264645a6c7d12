package flowservice

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/checksum"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/sse"
	tu "github.com/Leonado-NIKITA/DAGflowtoCode/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
	flows  []string
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) PublishFlowEvent(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows = append(r.flows, kind+":"+path)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type env struct {
	svc   *Service
	dir   string
	lib   *catalog.Library
	pub   *recorder
	stats *metrics.Collector
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir, store := tu.TestWorkspace(t)
	e := &env{dir: dir, lib: catalog.NewLibrary(), pub: &recorder{}, stats: metrics.NewCollector("test")}
	e.svc = New(store, tu.TestDB(t), e.lib, WithPublisher(e.pub), WithMetrics(e.stats))
	t.Cleanup(e.svc.Close)
	return e
}

func (e *env) seed(t *testing.T, path string) {
	t.Helper()
	_, err := e.svc.Create(context.Background(), path, tu.ChainDocument(t, "Chain"))
	require.NoError(t, err)
}

func apply(t *testing.T, svc *Service, path string, op Op) *OpResult {
	t.Helper()
	res, err := svc.Apply(context.Background(), path, op)
	require.NoError(t, err)
	return res
}

func TestCreateGetList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.svc.Create(ctx, "rx/chain.flow.json", tu.ChainDocument(t, "Chain"))
	require.NoError(t, err)
	assert.Equal(t, "Chain", d.Title)
	assert.Equal(t, 3, d.Stats.Nodes)
	assert.Equal(t, []string{"filter", "signal_source", "sink"}, d.UsedBy)

	empty, err := e.svc.Create(ctx, "blank.flow.json", nil)
	require.NoError(t, err)
	assert.Equal(t, "blank", empty.Title)
	assert.Zero(t, empty.Stats.Nodes)

	_, err = e.svc.Create(ctx, "blank.flow.json", nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	_, err = e.svc.Create(ctx, "notes.md", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = e.svc.Create(ctx, "bad.flow.json", []byte(`{"connections":[]}`))
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	got, err := e.svc.Get(ctx, "/rx/../rx/chain.flow.json")
	require.NoError(t, err)
	assert.Equal(t, d.Checksum, got.Checksum)

	items, total, err := e.svc.List(ctx, 10, 0, "title")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "blank.flow.json", items[0].Path)

	_, err = e.svc.Get(ctx, "missing.flow.json")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{"created:rx/chain.flow.json", "created:blank.flow.json"}, e.pub.flows)
}

func TestSave_IfMatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")
	d, _ := e.svc.Get(ctx, "a.flow.json")

	next := tu.ChainDocument(t, "Renamed chain")
	_, err := e.svc.Save(ctx, "a.flow.json", next, "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	saved, err := e.svc.Save(ctx, "a.flow.json", next, d.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "Renamed chain", saved.Title)
	assert.Equal(t, checksum.Sum(next), saved.Checksum)

	_, err = e.svc.Save(ctx, "nope.flow.json", next, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteAndRename(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")
	e.seed(t, "b.flow.json")
	_, err := e.svc.Open(ctx, "a.flow.json")
	require.NoError(t, err)

	_, err = e.svc.Rename(ctx, "a.flow.json", "b.flow.json")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	moved, err := e.svc.Rename(ctx, "a.flow.json", "archive/a.flow.json")
	require.NoError(t, err)
	assert.Equal(t, "archive/a.flow.json", moved.Path)
	st, err := e.svc.State(ctx, "archive/a.flow.json")
	require.NoError(t, err)
	assert.Equal(t, "archive/a.flow.json", st.Path)
	assert.ErrorIs(t, e.svc.CloseSession(ctx, "a.flow.json"), apperr.ErrNotFound)

	require.NoError(t, e.svc.Delete(ctx, "b.flow.json"))
	assert.ErrorIs(t, e.svc.Delete(ctx, "b.flow.json"), apperr.ErrNotFound)
	_, total, _ := e.svc.List(ctx, 10, 0, "")
	assert.Equal(t, 1, total)
}

func TestApply_EditAndCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")

	res := apply(t, e.svc, "a.flow.json", Op{Op: "add_node", Type: "fft", Position: &Point{X: 600}})
	require.True(t, res.Applied)
	require.Len(t, res.Created, 1)
	fft := res.Created[0]
	assert.Equal(t, "Node 4", res.State.Nodes[3].Name)
	assert.Equal(t, "FFT", res.State.Nodes[3].DisplayType)
	assert.True(t, res.State.Dirty)

	res = apply(t, e.svc, "a.flow.json", Op{Op: "connect", From: "flt", To: fft})
	require.True(t, res.Applied)
	res = apply(t, e.svc, "a.flow.json", Op{Op: "connect", From: "flt", To: fft})
	assert.False(t, res.Applied, "duplicate connection")

	res = apply(t, e.svc, "a.flow.json", Op{Op: "move", Node: fft, Position: &Point{X: 650}})
	res = apply(t, e.svc, "a.flow.json", Op{Op: "move", Node: fft, Position: &Point{X: 700}})
	assert.Equal(t, []string{"Add fft node", "Connect Filter -> Node 4", "Move Node 4"}, res.State.History)

	_, err := e.svc.Apply(ctx, "a.flow.json", Op{Op: "add_node", Type: "warp_drive"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.svc.Apply(ctx, "a.flow.json", Op{Op: "teleport"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	d, err := e.svc.Commit(ctx, "a.flow.json")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Stats.Nodes)
	assert.Equal(t, 3, d.Stats.Connections)
	st, _ := e.svc.State(ctx, "a.flow.json")
	assert.False(t, st.Dirty)

	assert.Equal(t, 3.0, testutil.ToFloat64(e.stats.Commands.WithLabelValues("add_node", "push"))+
		testutil.ToFloat64(e.stats.Commands.WithLabelValues("add_connection", "push"))+
		testutil.ToFloat64(e.stats.Commands.WithLabelValues("move_node", "push")))
	assert.Contains(t, e.pub.types(), sse.TypeSceneChanged)
}

func TestApply_UndoRedo(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "a.flow.json")

	res := apply(t, e.svc, "a.flow.json", Op{Op: "undo"})
	assert.False(t, res.Applied)

	apply(t, e.svc, "a.flow.json", Op{Op: "delete", Nodes: []string{"flt"}})
	res = apply(t, e.svc, "a.flow.json", Op{Op: "undo"})
	require.True(t, res.Applied)
	assert.Len(t, res.State.Nodes, 3)
	assert.Len(t, res.State.Connections, 2)
	assert.True(t, res.State.CanRedo)

	res = apply(t, e.svc, "a.flow.json", Op{Op: "redo"})
	assert.Len(t, res.State.Nodes, 2)
	assert.Empty(t, res.State.Connections)
}

func TestApply_GroupUngroupRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "a.flow.json")

	res := apply(t, e.svc, "a.flow.json", Op{Op: "group", Nodes: []string{"flt", "snk"}, Name: "Back end"})
	require.True(t, res.Applied)
	g := res.Created[0]
	require.Len(t, res.State.Nodes, 2)
	gv := res.State.Nodes[1]
	require.NotNil(t, gv.Group)
	assert.Equal(t, []string{"flt", "snk"}, gv.Group.Members)
	assert.Equal(t, 1, gv.Inputs)
	require.Len(t, res.State.Connections, 1)
	assert.Equal(t, g, res.State.Connections[0].To)
	assert.True(t, res.State.Valid)

	res = apply(t, e.svc, "a.flow.json", Op{Op: "ungroup", Node: g})
	require.True(t, res.Applied)
	assert.ElementsMatch(t, []string{"flt", "snk"}, res.Created)
	assert.Len(t, res.State.Connections, 2)
	assert.Equal(t, []string{"flt", "snk"}, res.State.SelectedNodes)
}

func TestApply_CopyPasteDefaultsToOffset(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "a.flow.json")

	apply(t, e.svc, "a.flow.json", Op{Op: "select", Nodes: []string{"src", "flt"}})
	res := apply(t, e.svc, "a.flow.json", Op{Op: "copy"})
	require.True(t, res.Applied)
	res = apply(t, e.svc, "a.flow.json", Op{Op: "paste"})
	require.True(t, res.Applied)
	require.Len(t, res.Created, 2)

	var pasted []NodeView
	for _, n := range res.State.Nodes {
		if n.ID == res.Created[0] || n.ID == res.Created[1] {
			pasted = append(pasted, n)
		}
	}
	require.Len(t, pasted, 2)
	assert.Equal(t, "Source (copy 1)", pasted[0].Name)
	assert.Equal(t, 20.0, pasted[0].X)
	assert.Equal(t, 20.0, pasted[0].Y)
	assert.Equal(t, 220.0, pasted[1].X)
	assert.Len(t, res.State.Connections, 3)
}

func TestApply_SetLineTypeAndLevel(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "a.flow.json")
	st, err := e.svc.Open(context.Background(), "a.flow.json")
	require.NoError(t, err)
	cid := st.Connections[0].ID

	res := apply(t, e.svc, "a.flow.json", Op{Op: "set_line_type", Connection: cid, LineType: "Orthogonal"})
	require.True(t, res.Applied)
	assert.Equal(t, "orthogonal", res.State.Connections[0].LineType)
	assert.True(t, res.State.Dirty)
	assert.Empty(t, res.State.History)

	_, err = e.svc.Apply(context.Background(), "a.flow.json", Op{Op: "set_line_type", Connection: cid, LineType: "zigzag"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = e.svc.Apply(context.Background(), "a.flow.json", Op{Op: "set_group_level", Node: "flt", Level: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCommit_ConflictWhenFileChanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")
	apply(t, e.svc, "a.flow.json", Op{Op: "add_node", Type: "sink"})

	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "a.flow.json"), tu.ChainDocument(t, "Elsewhere"), 0o644))
	_, err := e.svc.Commit(ctx, "a.flow.json")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.svc.Commit(ctx, "never-opened.flow.json")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExternalChange_ReloadsCleanSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")
	e.seed(t, "b.flow.json")
	_, _ = e.svc.Open(ctx, "a.flow.json")
	apply(t, e.svc, "b.flow.json", Op{Op: "add_node", Type: "sink"})

	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "a.flow.json"), tu.ChainDocument(t, "Outside"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "b.flow.json"), tu.ChainDocument(t, "Outside"), 0o644))
	e.svc.ExternalChange(index.FlowUpdated, "a.flow.json")
	e.svc.ExternalChange(index.FlowUpdated, "b.flow.json")

	a, _ := e.svc.State(ctx, "a.flow.json")
	assert.Equal(t, "Outside", a.Title)
	b, _ := e.svc.State(ctx, "b.flow.json")
	assert.Equal(t, "Chain", b.Title, "dirty session keeps its edits")
	assert.Len(t, b.Nodes, 4)
}

func TestCatalogUpdateRestylesOpenSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")
	_, _ = e.svc.Open(ctx, "a.flow.json")

	tmpl, _ := e.lib.Get("filter")
	tmpl.OutputPortCount = 3
	tmpl.Color = "#010203"
	require.True(t, e.lib.Update(tmpl))

	st, _ := e.svc.State(ctx, "a.flow.json")
	var flt NodeView
	for _, n := range st.Nodes {
		if n.ID == "flt" {
			flt = n
		}
	}
	assert.Equal(t, 3, flt.Outputs)
	assert.Equal(t, "#010203", flt.Color)
	assert.Contains(t, e.pub.types(), sse.TypeCatalogChanged)
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "a.flow.json")

	ok, err := e.svc.Validate(ctx, "a.flow.json")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ValidateDocument([]byte("nope"))
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(tu.ChainDocument(t, "x"), &doc))
	assert.Len(t, doc["nodes"], 3)
}

func TestOpNames(t *testing.T) {
	names := OpNames()
	assert.Contains(t, names, "add_node")
	assert.Contains(t, names, "ungroup")
	assert.IsIncreasing(t, names)
}
