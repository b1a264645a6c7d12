package command

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// memStore is the smallest Store that keeps live collections.
type memStore struct {
	nodes []*graph.Node
	conns []*graph.Connection
}

func (m *memStore) CreateNode(typeID string, pos geometry.Point) *graph.Node {
	if typeID == "" {
		return nil
	}
	n := graph.NewNode(typeID, typeID, pos)
	m.nodes = append(m.nodes, n)
	return n
}

func (m *memStore) RemoveNode(n *graph.Node) {
	m.nodes = slices.DeleteFunc(m.nodes, func(x *graph.Node) bool { return x == n })
}

func (m *memStore) RestoreNode(n *graph.Node) {
	if !slices.Contains(m.nodes, n) {
		m.nodes = append(m.nodes, n)
	}
}

func (m *memStore) CreateConnection(from *graph.Node, fromPort int, to *graph.Node, toPort int, lt geometry.LineType) *graph.Connection {
	c := graph.Connect(from, fromPort, to, toPort, lt)
	if c != nil {
		m.conns = append(m.conns, c)
	}
	return c
}

func (m *memStore) RemoveConnection(c *graph.Connection) {
	c.Detach()
	m.conns = slices.DeleteFunc(m.conns, func(x *graph.Connection) bool { return x == c })
}

func (m *memStore) RestoreConnection(c *graph.Connection) {
	c.Attach()
	if !slices.Contains(m.conns, c) {
		m.conns = append(m.conns, c)
	}
}

func (m *memStore) HasNode(n *graph.Node) bool { return slices.Contains(m.nodes, n) }

func (m *memStore) add(t *testing.T, name string, in, out int, x float64) *graph.Node {
	t.Helper()
	n := graph.NewNode("t", name, geometry.Point{X: x})
	n.SetInputPortCount(in)
	n.SetOutputPortCount(out)
	m.nodes = append(m.nodes, n)
	return n
}

type snapshot struct {
	nodes []*graph.Node
	pos   []geometry.Point
	conns []*graph.Connection
}

func snap(m *memStore) snapshot {
	s := snapshot{nodes: slices.Clone(m.nodes), conns: slices.Clone(m.conns)}
	for _, n := range m.nodes {
		s.pos = append(s.pos, n.Pos())
	}
	return s
}

func TestStack_UndoRedoBoundsAreNoOps(t *testing.T) {
	s := NewStack(&memStore{}, 0)
	s.Undo()
	s.Redo()
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
	assert.Equal(t, 0, s.Len())
}

func TestStack_AddNodeUndoRedoKeepsIdentity(t *testing.T) {
	m := &memStore{}
	s := NewStack(m, 0)
	cmd := NewAddNode("filter", geometry.Point{X: 10, Y: 20})
	s.Push(cmd)
	require.Len(t, m.nodes, 1)
	n := cmd.Node()

	s.Undo()
	assert.Empty(t, m.nodes)
	s.Redo()
	require.Len(t, m.nodes, 1)
	assert.Same(t, n, m.nodes[0])
}

func TestStack_PushTruncatesRedoTail(t *testing.T) {
	m := &memStore{}
	s := NewStack(m, 0)
	s.Push(NewAddNode("a", geometry.Point{}))
	s.Push(NewAddNode("b", geometry.Point{}))
	s.Undo()
	s.Push(NewAddNode("c", geometry.Point{}))

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.CanRedo())
	assert.Equal(t, []string{"Add a node", "Add c node"}, s.Texts())
}

func TestStack_Limit(t *testing.T) {
	s := NewStack(&memStore{}, 2)
	for _, id := range []string{"a", "b", "c"} {
		s.Push(NewAddNode(id, geometry.Point{}))
	}
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Index())
}

func TestStack_MovesOfSameNodeMerge(t *testing.T) {
	m := &memStore{}
	n := m.add(t, "A", 1, 1, 0)
	s := NewStack(m, 0)

	var events []Event
	s.SetObserver(func(e Event) { events = append(events, e) })

	prev := n.Pos()
	for i := 1; i <= 5; i++ {
		next := geometry.Point{X: float64(i * 10)}
		s.Push(NewMoveNode(n, prev, next))
		prev = next
	}
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, geometry.Point{X: 50}, n.Pos())
	assert.Equal(t, ActionPush, events[0].Action)
	assert.Equal(t, ActionMerge, events[4].Action)

	s.Undo()
	assert.Equal(t, geometry.Point{}, n.Pos())
	s.Redo()
	assert.Equal(t, geometry.Point{X: 50}, n.Pos())
}

func TestStack_MovesOfDifferentNodesDoNotMerge(t *testing.T) {
	m := &memStore{}
	a := m.add(t, "A", 1, 1, 0)
	b := m.add(t, "B", 1, 1, 100)
	s := NewStack(m, 0)

	s.Push(NewMoveNode(a, a.Pos(), geometry.Point{X: 5}))
	s.Push(NewMoveNode(b, b.Pos(), geometry.Point{X: 105}))
	s.Push(NewMoveNode(a, geometry.Point{X: 5}, geometry.Point{X: 10}))
	assert.Equal(t, 3, s.Len())
}

func TestStack_ClearNotifies(t *testing.T) {
	s := NewStack(&memStore{}, 0)
	s.Push(NewAddNode("a", geometry.Point{}))
	var got []Action
	s.SetObserver(func(e Event) { got = append(got, e.Action) })
	s.Clear()
	assert.Equal(t, []Action{ActionClear}, got)
	assert.Equal(t, 0, s.Len())
}

func TestDelete_RestoresConnections(t *testing.T) {
	m := &memStore{}
	a := m.add(t, "A", 0, 1, 0)
	b := m.add(t, "B", 1, 0, 200)
	c := m.CreateConnection(a, 0, b, 0, geometry.Straight)
	s := NewStack(m, 0)
	before := snap(m)

	s.Push(NewDelete([]*graph.Node{a}, []*graph.Connection{c}))
	assert.Equal(t, []*graph.Node{b}, m.nodes)
	assert.Empty(t, m.conns)
	assert.Empty(t, b.Connections())

	s.Undo()
	assert.ElementsMatch(t, before.nodes, m.nodes)
	assert.Equal(t, before.conns, m.conns)
	assert.Equal(t, []*graph.Connection{c}, b.Connections())
}

func TestMoveNodes_OneEntry(t *testing.T) {
	m := &memStore{}
	a := m.add(t, "A", 1, 1, 0)
	b := m.add(t, "B", 1, 1, 100)
	s := NewStack(m, 0)

	s.Push(NewMoveNodes([]Move{
		{Node: a, From: a.Pos(), To: geometry.Point{X: 10, Y: 10}},
		{Node: b, From: b.Pos(), To: geometry.Point{X: 110, Y: 10}},
	}))
	assert.Equal(t, 1, s.Len())
	s.Undo()
	assert.Equal(t, geometry.Point{}, a.Pos())
	assert.Equal(t, geometry.Point{X: 100}, b.Pos())
}

func TestAddConnection_UndoDetaches(t *testing.T) {
	m := &memStore{}
	a := m.add(t, "A", 0, 1, 0)
	b := m.add(t, "B", 1, 0, 200)
	s := NewStack(m, 0)

	cmd := NewAddConnection(a, 0, b, 0, geometry.Orthogonal)
	s.Push(cmd)
	conn := cmd.Connection()
	require.NotNil(t, conn)

	s.Undo()
	assert.Empty(t, m.conns)
	assert.Empty(t, a.Connections())
	s.Redo()
	assert.Equal(t, []*graph.Connection{conn}, m.conns)
	assert.Equal(t, geometry.Orthogonal, conn.LineType())
}

func TestPaste_FreshNodesAndLinks(t *testing.T) {
	m := &memStore{}
	a := m.add(t, "A", 0, 1, 0)
	b := m.add(t, "B", 1, 0, 200)
	c := m.CreateConnection(a, 0, b, 0, geometry.Bezier)
	clip := flowdoc.NewClipboard([]*graph.Node{a, b}, []*graph.Connection{c})

	s := NewStack(m, 0)
	cmd := NewPaste(clip, geometry.Point{X: 150, Y: 50}, " (copy 1)")
	s.Push(cmd)

	require.Len(t, cmd.Nodes(), 2)
	pa, pb := cmd.Nodes()[0], cmd.Nodes()[1]
	assert.NotEqual(t, a.ID, pa.ID)
	assert.Equal(t, "A (copy 1)", pa.Name)
	assert.Equal(t, geometry.Point{X: 50, Y: 50}, pa.Pos())
	assert.Equal(t, geometry.Point{X: 250, Y: 50}, pb.Pos())
	assert.Len(t, m.nodes, 4)
	assert.Len(t, m.conns, 2)

	s.Undo()
	assert.Len(t, m.nodes, 2)
	assert.Len(t, m.conns, 1)
	s.Redo()
	assert.Contains(t, m.nodes, pa)
	assert.Len(t, m.conns, 2)
}

func chain(t *testing.T) (*memStore, *graph.Node, *graph.Node, *graph.Node, *graph.Connection, *graph.Connection) {
	t.Helper()
	m := &memStore{}
	a := m.add(t, "A", 0, 1, 0)
	b := m.add(t, "B", 1, 1, 200)
	c := m.add(t, "C", 1, 0, 400)
	ab := m.CreateConnection(a, 0, b, 0, geometry.Bezier)
	bc := m.CreateConnection(b, 0, c, 0, geometry.Straight)
	return m, a, b, c, ab, bc
}

func TestGroupNodes_ChainScenario(t *testing.T) {
	m, a, b, c, ab, bc := chain(t)
	s := NewStack(m, 0)

	cmd := NewGroupNodes("", []*graph.Node{a, b}, m.conns)
	s.Push(cmd)
	g := cmd.Group()
	require.NotNil(t, g)

	assert.ElementsMatch(t, []*graph.Node{c, g}, m.nodes)
	require.Len(t, m.conns, 1)
	bridge := m.conns[0]
	assert.Same(t, g, bridge.From)
	assert.Same(t, c, bridge.To)
	assert.Equal(t, geometry.Straight, bridge.LineType())

	gd := g.Group()
	out := gd.OutputMappings()
	require.Len(t, out, 1)
	assert.Same(t, b, out[0].InternalNode)
	assert.Empty(t, gd.InputMappings())
	assert.Equal(t, 1, g.InputPortCount())
	assert.Equal(t, 1, g.OutputPortCount())
	assert.Equal(t, geometry.Point{X: 100}, g.Pos())

	s.Undo()
	assert.ElementsMatch(t, []*graph.Node{a, b, c}, m.nodes)
	assert.ElementsMatch(t, []*graph.Connection{ab, bc}, m.conns)
	assert.False(t, bridge.Attached())
	assert.True(t, bc.Attached())

	s.Redo()
	assert.ElementsMatch(t, []*graph.Node{c, g}, m.nodes)
	assert.Equal(t, []*graph.Connection{bridge}, m.conns)
}

func TestUngroupNodes_RestoresOriginalsWithOffset(t *testing.T) {
	m, a, b, c, ab, bc := chain(t)
	s := NewStack(m, 0)

	gc := NewGroupNodes("G", []*graph.Node{a, b}, m.conns)
	s.Push(gc)
	g := gc.Group()
	g.SetPos(g.Pos().Add(geometry.Point{X: 10, Y: 30}))

	uc := NewUngroupNodes(g)
	s.Push(uc)
	assert.ElementsMatch(t, []*graph.Node{a, b, c}, m.nodes)
	assert.ElementsMatch(t, []*graph.Connection{ab, bc}, m.conns)
	assert.Equal(t, geometry.Point{X: 10, Y: 30}, a.Pos())
	assert.Equal(t, geometry.Point{X: 210, Y: 30}, b.Pos())
	assert.Equal(t, 0, bc.FromPort)
	assert.Equal(t, []*graph.Node{a, b}, uc.Nodes())

	s.Undo()
	assert.ElementsMatch(t, []*graph.Node{c, g}, m.nodes)
	require.Len(t, m.conns, 1)
	assert.Same(t, g, m.conns[0].From)

	s.Redo()
	assert.ElementsMatch(t, []*graph.Connection{ab, bc}, m.conns)
}

func TestUngroupNodes_SkipsDeletedExternalPeer(t *testing.T) {
	m, a, b, c, ab, _ := chain(t)
	s := NewStack(m, 0)

	gc := NewGroupNodes("", []*graph.Node{a, b}, m.conns)
	s.Push(gc)
	g := gc.Group()
	s.Push(NewDelete([]*graph.Node{c}, g.Connections()))

	s.Push(NewUngroupNodes(g))
	assert.ElementsMatch(t, []*graph.Node{a, b}, m.nodes)
	assert.Equal(t, []*graph.Connection{ab}, m.conns)
}

func TestGroupNodes_Nested(t *testing.T) {
	m, a, b, c, _, _ := chain(t)
	s := NewStack(m, 0)

	inner := NewGroupNodes("inner", []*graph.Node{a, b}, m.conns)
	s.Push(inner)
	outer := NewGroupNodes("outer", []*graph.Node{inner.Group(), c}, m.conns)
	s.Push(outer)

	assert.Equal(t, []*graph.Node{outer.Group()}, m.nodes)
	assert.Empty(t, m.conns)

	s.Undo()
	s.Undo()
	assert.ElementsMatch(t, []*graph.Node{a, b, c}, m.nodes)
	assert.Len(t, m.conns, 2)
}

func TestStack_SealEndsMergeRun(t *testing.T) {
	m := &memStore{}
	n := m.add(t, "A", 1, 1, 0)
	s := NewStack(m, 0)

	s.Push(NewMoveNode(n, geometry.Point{}, geometry.Point{X: 10}))
	s.Push(NewMoveNode(n, geometry.Point{X: 10}, geometry.Point{X: 20}))
	s.Seal()
	s.Push(NewMoveNode(n, geometry.Point{X: 20}, geometry.Point{X: 30}))
	assert.Equal(t, 2, s.Len())

	s.Undo()
	assert.Equal(t, geometry.Point{X: 20}, n.Pos())
	s.Undo()
	assert.Equal(t, geometry.Point{}, n.Pos())
}
