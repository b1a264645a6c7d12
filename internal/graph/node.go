// Package graph defines the editor's data model: nodes with ordered ports,
// the connections between them, and group nodes that fold a subgraph into a
// single node.
package graph

import (
	"slices"

	"github.com/google/uuid"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
)

// Node size bounds.
const (
	DefaultWidth  = 120.0
	DefaultHeight = 70.0
	MinWidth      = 80.0
	MaxWidth      = 300.0
	MinHeight     = 50.0
	MaxHeight     = 200.0
)

// Kind tells plain nodes from groups.
type Kind int

const (
	KindPlain Kind = iota
	KindGroup
)

// Node is a typed box on the canvas. Position is the node's center.
//
// The connection list is a back-reference owned by Connection: Connect,
// Attach and Detach keep it in sync, Node never edits it on its own.
type Node struct {
	ID              string
	TypeID          string
	Name            string
	Parameters      []string
	DisplayTypeName string

	color   *Color
	pos     geometry.Point
	size    geometry.Size
	inputs  int
	outputs int
	group   *GroupData
	conns   []*Connection
}

// NewNode returns a plain node with one input, one output and the default size.
func NewNode(typeID, name string, pos geometry.Point) *Node {
	return &Node{
		ID:      uuid.NewString(),
		TypeID:  typeID,
		Name:    name,
		pos:     pos,
		size:    geometry.Size{W: DefaultWidth, H: DefaultHeight},
		inputs:  1,
		outputs: 1,
	}
}

// Kind reports whether n is a plain node or a group.
func (n *Node) Kind() Kind {
	if n.group != nil {
		return KindGroup
	}
	return KindPlain
}

// IsGroup is shorthand for Kind() == KindGroup.
func (n *Node) IsGroup() bool { return n.group != nil }

// Group returns the group payload, or nil for plain nodes.
func (n *Node) Group() *GroupData { return n.group }

func (n *Node) Pos() geometry.Point { return n.pos }

func (n *Node) Size() geometry.Size { return n.size }

func (n *Node) InputPortCount() int { return n.inputs }

func (n *Node) OutputPortCount() int { return n.outputs }

// SetPos moves the node and reroutes its connections.
func (n *Node) SetPos(p geometry.Point) {
	if n.pos == p {
		return
	}
	n.pos = p
	n.refresh()
}

// SetSize clamps w and h to the node bounds. Groups never shrink below the
// height their visible ports need.
func (n *Node) SetSize(w, h float64) {
	w, h = clamp(w, MinWidth, MaxWidth), clamp(h, MinHeight, MaxHeight)
	if n.group != nil {
		w = max(w, groupMinWidth)
		h = max(h, n.group.minHeight)
	}
	n.resize(w, h)
}

func (n *Node) resize(w, h float64) {
	s := geometry.Size{W: w, H: h}
	if n.size == s {
		return
	}
	n.size = s
	n.refresh()
}

// SetInputPortCount sets the number of input ports; negative counts become 0.
func (n *Node) SetInputPortCount(c int) {
	n.inputs = max(0, c)
	n.refresh()
}

// SetOutputPortCount sets the number of output ports; negative counts become 0.
func (n *Node) SetOutputPortCount(c int) {
	n.outputs = max(0, c)
	n.refresh()
}

// Color returns the override color, if any.
func (n *Node) Color() (Color, bool) {
	if n.color == nil {
		return Color{}, false
	}
	return *n.color, true
}

func (n *Node) SetColor(c Color) { n.color = &c }

func (n *Node) ClearColor() { n.color = nil }

// InputPortPos returns the scene position of input port i.
func (n *Node) InputPortPos(i int) geometry.Point {
	return geometry.InputPortPosition(n.pos, n.size, i, n.inputs)
}

// OutputPortPos returns the scene position of output port i.
func (n *Node) OutputPortPos(i int) geometry.Point {
	return geometry.OutputPortPosition(n.pos, n.size, i, n.outputs)
}

// HitInputPort returns the input port under p, if any.
func (n *Node) HitInputPort(p geometry.Point) (int, bool) {
	return geometry.HitTestPort(n.pos, n.size, geometry.In, n.inputs, p)
}

// HitOutputPort returns the output port under p, if any.
func (n *Node) HitOutputPort(p geometry.Point) (int, bool) {
	return geometry.HitTestPort(n.pos, n.size, geometry.Out, n.outputs, p)
}

// Contains reports whether p falls inside the node body.
func (n *Node) Contains(p geometry.Point) bool {
	return p.X >= n.pos.X-n.size.W/2 && p.X <= n.pos.X+n.size.W/2 &&
		p.Y >= n.pos.Y-n.size.H/2 && p.Y <= n.pos.Y+n.size.H/2
}

// Connections returns a copy of the incident connection list.
func (n *Node) Connections() []*Connection {
	return slices.Clone(n.conns)
}

func (n *Node) addConnection(c *Connection) {
	if !slices.Contains(n.conns, c) {
		n.conns = append(n.conns, c)
	}
}

func (n *Node) removeConnection(c *Connection) {
	n.conns = slices.DeleteFunc(n.conns, func(x *Connection) bool { return x == c })
}

func (n *Node) refresh() {
	for _, c := range n.conns {
		c.UpdatePath()
	}
}

// Centroid returns the mean center of nodes.
func Centroid(nodes []*Node) geometry.Point {
	pts := make([]geometry.Point, len(nodes))
	for i, n := range nodes {
		pts[i] = n.pos
	}
	return geometry.Centroid(pts)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
