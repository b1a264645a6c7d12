package scene

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// DragState is the state of the connection-drag machine.
type DragState int

const (
	DragNone DragState = iota
	DragFromPortClicked
)

func (d DragState) String() string {
	if d == DragFromPortClicked {
		return "from_port_clicked"
	}
	return "none"
}

// Button identifies a pointer button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

// RubberBand is the ephemeral line shown while dragging a new connection.
type RubberBand struct {
	From        geometry.Point
	To          geometry.Point
	Connectable bool
}

// Highlight marks one port under the pointer.
type Highlight struct {
	Node      *graph.Node
	Port      int
	Direction geometry.Direction
}

type drag struct {
	state      DragState
	from       *graph.Node
	fromPort   int
	band       RubberBand
	highlights []Highlight
}

// DragState returns the current state of the connection-drag machine.
func (s *Scene) DragState() DragState { return s.drag.state }

// RubberBand returns the ephemeral line. ok is false outside a drag.
func (s *Scene) RubberBand() (RubberBand, bool) {
	if s.drag.state != DragFromPortClicked {
		return RubberBand{}, false
	}
	return s.drag.band, true
}

// Connectable reports whether the rubber band is snapped to an input port.
func (s *Scene) Connectable() bool {
	return s.drag.state == DragFromPortClicked && s.drag.band.Connectable
}

// Highlights returns the ports currently highlighted.
func (s *Scene) Highlights() []Highlight {
	out := make([]Highlight, len(s.drag.highlights))
	copy(out, s.drag.highlights)
	return out
}

// PointerPress starts a connection drag when the left button goes down on an
// output port. A right press cancels any drag in progress. It reports
// whether the press was consumed.
func (s *Scene) PointerPress(p geometry.Point, b Button) bool {
	if b == ButtonRight {
		if s.drag.state == DragNone {
			return false
		}
		s.Cancel()
		return true
	}
	n, port, ok := s.outputPortAt(p)
	if !ok {
		return false
	}
	start := n.OutputPortPos(port)
	s.drag = drag{
		state:    DragFromPortClicked,
		from:     n,
		fromPort: port,
		band:     RubberBand{From: start, To: p},
	}
	return true
}

// PointerMove tracks the rubber band and refreshes the port highlights.
func (s *Scene) PointerMove(p geometry.Point) {
	if s.drag.state == DragFromPortClicked {
		s.drag.band.From = s.drag.from.OutputPortPos(s.drag.fromPort)
		if n, port, ok := s.inputPortAt(p, s.drag.from); ok {
			s.drag.band.To = n.InputPortPos(port)
			s.drag.band.Connectable = true
		} else {
			s.drag.band.To = p
			s.drag.band.Connectable = false
		}
	}
	s.updateHighlights(p)
}

// PointerRelease ends a left-button gesture. During a connection drag a
// release over another node's input port commits a connection; anywhere
// else the drag is cancelled. Any run of merged node moves is closed.
func (s *Scene) PointerRelease(p geometry.Point, b Button) (*graph.Connection, bool) {
	s.EndMove()
	if b != ButtonLeft || s.drag.state != DragFromPortClicked {
		return nil, false
	}
	from, fromPort := s.drag.from, s.drag.fromPort
	to, toPort, ok := s.inputPortAt(p, from)
	s.Cancel()
	if !ok {
		return nil, false
	}
	return s.AddConnection(from, fromPort, to, toPort)
}

// Cancel drops the rubber band and every highlight without touching the
// graph.
func (s *Scene) Cancel() {
	s.drag = drag{}
}

func (s *Scene) updateHighlights(p geometry.Point) {
	s.drag.highlights = s.drag.highlights[:0]
	if s.drag.state == DragFromPortClicked {
		for _, n := range s.nodes {
			if n == s.drag.from {
				continue
			}
			if port, ok := n.HitInputPort(p); ok {
				s.drag.highlights = append(s.drag.highlights, Highlight{Node: n, Port: port, Direction: geometry.In})
			}
		}
		return
	}
	if n, port, ok := s.outputPortAt(p); ok {
		s.drag.highlights = append(s.drag.highlights, Highlight{Node: n, Port: port, Direction: geometry.Out})
	}
}

// outputPortAt finds the topmost node with an output port under p.
func (s *Scene) outputPortAt(p geometry.Point) (*graph.Node, int, bool) {
	for i := len(s.nodes) - 1; i >= 0; i-- {
		if port, ok := s.nodes[i].HitOutputPort(p); ok {
			return s.nodes[i], port, true
		}
	}
	return nil, 0, false
}

// inputPortAt finds the topmost node other than exclude with an input port
// under p.
func (s *Scene) inputPortAt(p geometry.Point, exclude *graph.Node) (*graph.Node, int, bool) {
	for i := len(s.nodes) - 1; i >= 0; i-- {
		n := s.nodes[i]
		if n == exclude {
			continue
		}
		if port, ok := n.HitInputPort(p); ok {
			return n, port, true
		}
	}
	return nil, 0, false
}
