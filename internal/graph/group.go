package graph

import (
	"fmt"
	"slices"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
)

// Group defaults.
const (
	GroupTypeID      = "group"
	DefaultGroupName = "Group"
	MinGroupLevel    = 1
	MaxGroupLevel    = 99

	groupMinWidth   = 150.0
	groupBaseHeight = 50.0
	groupPortPitch  = 20.0
)

// GroupColor is the fill every new group starts with.
var GroupColor = Color{R: 100, G: 149, B: 237}

// ExternalConnection describes a connection that crossed the group boundary
// when the group was formed. Original is the connection that was replaced by
// a connection to the group's own port.
type ExternalConnection struct {
	ExternalNode *Node
	ExternalPort int
	InternalNode *Node
	InternalPort int
	IsInput      bool
	Original     *Connection
}

// PortMapping binds one visible group port to a port of an internal node.
type PortMapping struct {
	InternalNode *Node
	InternalPort int
	Label        string
}

// NodePosition records where an internal node sat before grouping.
type NodePosition struct {
	Node *Node
	Pos  geometry.Point
}

// GroupData is the payload of a group node.
type GroupData struct {
	level     int
	nodes     []*Node
	conns     []*Connection
	external  []ExternalConnection
	originals []NodePosition
	inputs    []PortMapping
	outputs   []PortMapping
	minHeight float64
}

// NewGroup returns an empty group node at pos.
func NewGroup(name string, pos geometry.Point) *Node {
	if name == "" {
		name = DefaultGroupName
	}
	n := NewNode(GroupTypeID, name, pos)
	n.group = &GroupData{level: MinGroupLevel}
	n.DisplayTypeName = DefaultGroupName
	n.SetColor(GroupColor)
	return n
}

func (g *GroupData) Level() int { return g.level }

// Nodes returns the internal nodes in grouping order.
func (g *GroupData) Nodes() []*Node { return slices.Clone(g.nodes) }

// Connections returns the connections that run between internal nodes.
func (g *GroupData) Connections() []*Connection { return slices.Clone(g.conns) }

// External returns the boundary descriptors captured at grouping time.
func (g *GroupData) External() []ExternalConnection { return slices.Clone(g.external) }

// OriginalPositions returns the pre-grouping positions in grouping order.
func (g *GroupData) OriginalPositions() []NodePosition { return slices.Clone(g.originals) }

// OriginalPos returns the pre-grouping position of n.
func (g *GroupData) OriginalPos(n *Node) (geometry.Point, bool) {
	for _, p := range g.originals {
		if p.Node == n {
			return p.Pos, true
		}
	}
	return geometry.Point{}, false
}

func (g *GroupData) InputMappings() []PortMapping { return slices.Clone(g.inputs) }

func (g *GroupData) OutputMappings() []PortMapping { return slices.Clone(g.outputs) }

// SetGroupLevel clamps level into [1,99]. It is a no-op on plain nodes.
func (n *Node) SetGroupLevel(level int) {
	if n.group == nil {
		return
	}
	n.group.level = min(max(level, MinGroupLevel), MaxGroupLevel)
}

// SetGroupContents replaces the internal structure of a group and recomputes
// its visible ports. It is a no-op on plain nodes.
func (n *Node) SetGroupContents(nodes []*Node, conns []*Connection, external []ExternalConnection, originals []NodePosition) {
	if n.group == nil {
		return
	}
	n.group.nodes = slices.Clone(nodes)
	n.group.conns = slices.Clone(conns)
	n.group.external = slices.Clone(external)
	n.group.originals = slices.Clone(originals)
	n.CalculatePortMappings()
}

type portKey struct {
	node  *Node
	port  int
	input bool
}

// CalculatePortMappings rebuilds the group's visible ports.
//
// Every distinct internal endpoint of an external connection is exposed first,
// in descriptor order. Then every internal node, in order, exposes its input
// ports and then its output ports that are neither wired internally nor
// already exposed. Each side keeps at least one port.
func (n *Node) CalculatePortMappings() {
	g := n.group
	if g == nil {
		return
	}
	g.inputs = g.inputs[:0]
	g.outputs = g.outputs[:0]

	used := make(map[portKey]bool)
	for _, c := range g.conns {
		used[portKey{c.From, c.FromPort, false}] = true
		used[portKey{c.To, c.ToPort, true}] = true
	}

	exposed := make(map[portKey]bool)
	for _, ext := range g.external {
		k := portKey{ext.InternalNode, ext.InternalPort, ext.IsInput}
		if exposed[k] {
			continue
		}
		exposed[k] = true
		m := PortMapping{InternalNode: ext.InternalNode, InternalPort: ext.InternalPort, Label: portLabel(ext.InternalNode, ext.InternalPort)}
		if ext.IsInput {
			g.inputs = append(g.inputs, m)
		} else {
			g.outputs = append(g.outputs, m)
		}
	}

	for _, in := range g.nodes {
		for i := 0; i < in.inputs; i++ {
			k := portKey{in, i, true}
			if !used[k] && !exposed[k] {
				g.inputs = append(g.inputs, PortMapping{InternalNode: in, InternalPort: i, Label: portLabel(in, i)})
			}
		}
		for i := 0; i < in.outputs; i++ {
			k := portKey{in, i, false}
			if !used[k] && !exposed[k] {
				g.outputs = append(g.outputs, PortMapping{InternalNode: in, InternalPort: i, Label: portLabel(in, i)})
			}
		}
	}

	n.inputs = max(1, len(g.inputs))
	n.outputs = max(1, len(g.outputs))

	g.minHeight = groupBaseHeight + float64(max(n.inputs, n.outputs))*groupPortPitch
	n.resize(max(n.size.W, groupMinWidth), max(n.size.H, g.minHeight))
	n.refresh()
}

// InputPortFor returns the group input port bound to (node, port), or 0 when
// no mapping matches.
func (n *Node) InputPortFor(node *Node, port int) int {
	if n.group == nil {
		return 0
	}
	return findMapping(n.group.inputs, node, port)
}

// OutputPortFor is InputPortFor for the output side.
func (n *Node) OutputPortFor(node *Node, port int) int {
	if n.group == nil {
		return 0
	}
	return findMapping(n.group.outputs, node, port)
}

func findMapping(ms []PortMapping, node *Node, port int) int {
	for i, m := range ms {
		if m.InternalNode == node && m.InternalPort == port {
			return i
		}
	}
	return 0
}

func portLabel(n *Node, port int) string {
	return fmt.Sprintf("%s[%d]", n.Name, port)
}
