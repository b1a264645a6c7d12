// Package scene is the graph store: it owns the live nodes and connections,
// the selection, the clipboard and the undo history, and turns user intents
// into commands.
//
// A Scene is not safe for concurrent use; callers serialise access.
package scene

import (
	"fmt"
	"slices"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/command"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Scene implements command.Store.
type Scene struct {
	nodes []*graph.Node
	conns []*graph.Connection

	selNodes []*graph.Node
	selConns []*graph.Connection

	stack     *command.Stack
	undoLimit int
	catalog   Catalog
	lineType  geometry.LineType

	clipboard  *flowdoc.Clipboard
	clipOrigin geometry.Point

	nodeCounter  int
	pasteCounter int

	drag drag
	subs []func(Event)
}

var _ command.Store = (*Scene)(nil)

// New returns an empty scene.
func New(opts ...Option) *Scene {
	s := &Scene{}
	for _, opt := range opts {
		opt(s)
	}
	s.stack = command.NewStack(s, s.undoLimit)
	s.stack.SetObserver(func(e command.Event) {
		s.emit(Event{Kind: EventHistoryChanged, History: e})
	})
	return s
}

// Nodes returns the live nodes in insertion order.
func (s *Scene) Nodes() []*graph.Node { return slices.Clone(s.nodes) }

// Connections returns the live connections in insertion order.
func (s *Scene) Connections() []*graph.Connection { return slices.Clone(s.conns) }

// NodeByID finds a live node.
func (s *Scene) NodeByID(id string) *graph.Node {
	for _, n := range s.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// ConnectionByID finds a live connection.
func (s *Scene) ConnectionByID(id string) *graph.Connection {
	for _, c := range s.conns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// LineType is the line type given to new user connections.
func (s *Scene) LineType() geometry.LineType { return s.lineType }

// CreateNode builds a node named "Node N" and inserts it. With a catalog the
// node takes its ports, color, display name and parameters from the
// template; unknown types yield nil.
func (s *Scene) CreateNode(typeID string, pos geometry.Point) *graph.Node {
	if typeID == "" {
		return nil
	}
	var tmpl catalog.Template
	if s.catalog != nil {
		t, ok := s.catalog.Get(typeID)
		if !ok {
			return nil
		}
		tmpl = t
	}
	s.nodeCounter++
	n := graph.NewNode(typeID, fmt.Sprintf("Node %d", s.nodeCounter), pos)
	if s.catalog != nil {
		styleNode(n, tmpl)
		n.Parameters = slices.Clone(tmpl.DefaultParameters)
	}
	s.nodes = append(s.nodes, n)
	s.emit(Event{Kind: EventNodeAdded, Node: n})
	return n
}

func styleNode(n *graph.Node, t catalog.Template) {
	n.SetInputPortCount(t.InputPortCount)
	n.SetOutputPortCount(t.OutputPortCount)
	n.SetColor(t.RGB())
	n.DisplayTypeName = t.DisplayName
}

// RemoveNode takes n out of the live collection. Incident connections are
// left alone; commands remove them first.
func (s *Scene) RemoveNode(n *graph.Node) {
	i := slices.Index(s.nodes, n)
	if i < 0 {
		return
	}
	s.nodes = slices.Delete(s.nodes, i, i+1)
	s.emit(Event{Kind: EventNodeRemoved, Node: n})
	s.deselectNode(n)
}

// RestoreNode appends n to the live collection.
func (s *Scene) RestoreNode(n *graph.Node) {
	if n == nil || slices.Contains(s.nodes, n) {
		return
	}
	s.nodes = append(s.nodes, n)
	s.emit(Event{Kind: EventNodeAdded, Node: n})
}

// CreateConnection wires two nodes and inserts the connection.
func (s *Scene) CreateConnection(from *graph.Node, fromPort int, to *graph.Node, toPort int, lt geometry.LineType) *graph.Connection {
	c := graph.Connect(from, fromPort, to, toPort, lt)
	if c == nil {
		return nil
	}
	s.conns = append(s.conns, c)
	s.emit(Event{Kind: EventConnectionAdded, Connection: c})
	return c
}

// RemoveConnection deregisters c from its endpoints and drops it.
func (s *Scene) RemoveConnection(c *graph.Connection) {
	if c == nil {
		return
	}
	c.Detach()
	i := slices.Index(s.conns, c)
	if i < 0 {
		return
	}
	s.conns = slices.Delete(s.conns, i, i+1)
	s.emit(Event{Kind: EventConnectionRemoved, Connection: c})
	s.deselectConnection(c)
}

// RestoreConnection re-registers c and appends it.
func (s *Scene) RestoreConnection(c *graph.Connection) {
	if c == nil {
		return
	}
	c.Attach()
	if slices.Contains(s.conns, c) {
		return
	}
	s.conns = append(s.conns, c)
	s.emit(Event{Kind: EventConnectionAdded, Connection: c})
}

func (s *Scene) HasNode(n *graph.Node) bool { return slices.Contains(s.nodes, n) }

// HasConnection reports whether c is live.
func (s *Scene) HasConnection(c *graph.Connection) bool { return slices.Contains(s.conns, c) }

// ValidateFlow reports whether every live connection joins two live nodes.
func (s *Scene) ValidateFlow() bool {
	for _, c := range s.conns {
		if !s.HasNode(c.From) || !s.HasNode(c.To) {
			return false
		}
	}
	return true
}

// Clear empties the scene and forgets the history.
func (s *Scene) Clear() {
	s.Cancel()
	for _, c := range s.conns {
		c.Detach()
	}
	s.nodes = nil
	s.conns = nil
	s.selNodes = nil
	s.selConns = nil
	s.stack.Clear()
	s.emit(Event{Kind: EventCleared})
}
