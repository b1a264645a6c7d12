package command

import (
	"fmt"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// AddNode creates a node on first execution and re-inserts the same node on
// every later redo.
type AddNode struct {
	typeID string
	pos    geometry.Point
	node   *graph.Node
}

func NewAddNode(typeID string, pos geometry.Point) *AddNode {
	return &AddNode{typeID: typeID, pos: pos}
}

// Node is the created node, nil until the command has run.
func (c *AddNode) Node() *graph.Node { return c.node }

func (c *AddNode) Kind() Kind   { return KindAddNode }
func (c *AddNode) Text() string { return fmt.Sprintf("Add %s node", c.typeID) }

func (c *AddNode) redo(s Store) {
	if c.node == nil {
		c.node = s.CreateNode(c.typeID, c.pos)
		return
	}
	s.RestoreNode(c.node)
}

func (c *AddNode) undo(s Store) {
	if c.node != nil {
		s.RemoveNode(c.node)
	}
}

// Delete removes nodes and connections as one entry. Connections go first on
// redo and come back last on undo.
type Delete struct {
	nodes []*graph.Node
	conns []*graph.Connection
}

func NewDelete(nodes []*graph.Node, conns []*graph.Connection) *Delete {
	return &Delete{nodes: nodes, conns: conns}
}

func (c *Delete) Kind() Kind { return KindDelete }
func (c *Delete) Text() string {
	return fmt.Sprintf("Delete %d nodes, %d connections", len(c.nodes), len(c.conns))
}

func (c *Delete) redo(s Store) {
	for _, conn := range c.conns {
		s.RemoveConnection(conn)
	}
	for _, n := range c.nodes {
		s.RemoveNode(n)
	}
}

func (c *Delete) undo(s Store) {
	for _, n := range c.nodes {
		s.RestoreNode(n)
	}
	for _, conn := range c.conns {
		s.RestoreConnection(conn)
	}
}

// MoveNode moves a single node. Consecutive moves of the same node merge.
type MoveNode struct {
	node     *graph.Node
	from, to geometry.Point
}

func NewMoveNode(n *graph.Node, from, to geometry.Point) *MoveNode {
	return &MoveNode{node: n, from: from, to: to}
}

func (c *MoveNode) Kind() Kind   { return KindMoveNode }
func (c *MoveNode) Text() string { return fmt.Sprintf("Move %s", c.node.Name) }

func (c *MoveNode) redo(Store) { c.node.SetPos(c.to) }
func (c *MoveNode) undo(Store) { c.node.SetPos(c.from) }

// Move is one node's displacement inside a MoveNodes command.
type Move struct {
	Node     *graph.Node
	From, To geometry.Point
}

// MoveNodes moves a whole selection as one entry.
type MoveNodes struct {
	moves []Move
}

func NewMoveNodes(moves []Move) *MoveNodes {
	return &MoveNodes{moves: moves}
}

func (c *MoveNodes) Kind() Kind   { return KindMoveNodes }
func (c *MoveNodes) Text() string { return fmt.Sprintf("Move %d nodes", len(c.moves)) }

func (c *MoveNodes) redo(Store) {
	for _, m := range c.moves {
		m.Node.SetPos(m.To)
	}
}

func (c *MoveNodes) undo(Store) {
	for _, m := range c.moves {
		m.Node.SetPos(m.From)
	}
}

// AddConnection wires two ports.
type AddConnection struct {
	from     *graph.Node
	fromPort int
	to       *graph.Node
	toPort   int
	lineType geometry.LineType
	conn     *graph.Connection
}

func NewAddConnection(from *graph.Node, fromPort int, to *graph.Node, toPort int, lt geometry.LineType) *AddConnection {
	return &AddConnection{from: from, fromPort: fromPort, to: to, toPort: toPort, lineType: lt}
}

// Connection is the created connection, nil until the command has run.
func (c *AddConnection) Connection() *graph.Connection { return c.conn }

func (c *AddConnection) Kind() Kind { return KindAddConnection }
func (c *AddConnection) Text() string {
	return fmt.Sprintf("Connect %s -> %s", c.from.Name, c.to.Name)
}

func (c *AddConnection) redo(s Store) {
	if c.conn == nil {
		c.conn = s.CreateConnection(c.from, c.fromPort, c.to, c.toPort, c.lineType)
		return
	}
	s.RestoreConnection(c.conn)
}

func (c *AddConnection) undo(s Store) {
	if c.conn != nil {
		s.RemoveConnection(c.conn)
	}
}

// Paste materialises a clipboard snapshot. The first redo builds fresh
// nodes; later redos restore those same objects.
type Paste struct {
	clip   *flowdoc.Clipboard
	offset geometry.Point
	suffix string
	nodes  []*graph.Node
	conns  []*graph.Connection
	built  bool
}

// NewPaste pastes clip with every node placed at offset plus its relative
// position and suffix appended to its name.
func NewPaste(clip *flowdoc.Clipboard, offset geometry.Point, suffix string) *Paste {
	return &Paste{clip: clip, offset: offset, suffix: suffix}
}

// Nodes returns the pasted nodes.
func (c *Paste) Nodes() []*graph.Node { return c.nodes }

func (c *Paste) Kind() Kind   { return KindPaste }
func (c *Paste) Text() string { return fmt.Sprintf("Paste %d nodes", len(c.clip.Nodes)) }

func (c *Paste) redo(s Store) {
	if !c.built {
		c.built = true
		nodes, links := c.clip.Instantiate(c.offset, c.suffix)
		for _, n := range nodes {
			s.RestoreNode(n)
		}
		c.nodes = nodes
		for _, l := range links {
			if conn := s.CreateConnection(l.From, l.FromPort, l.To, l.ToPort, l.LineType); conn != nil {
				c.conns = append(c.conns, conn)
			}
		}
		return
	}
	for _, n := range c.nodes {
		s.RestoreNode(n)
	}
	for _, conn := range c.conns {
		s.RestoreConnection(conn)
	}
}

func (c *Paste) undo(s Store) {
	for _, conn := range c.conns {
		s.RemoveConnection(conn)
	}
	for _, n := range c.nodes {
		s.RemoveNode(n)
	}
}
