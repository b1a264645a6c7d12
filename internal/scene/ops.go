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

// AddNode creates a node through the history. It reports false for an empty
// type, or a type unknown to the catalog.
func (s *Scene) AddNode(typeID string, pos geometry.Point) (*graph.Node, bool) {
	if typeID == "" {
		return nil, false
	}
	if s.catalog != nil {
		if _, ok := s.catalog.Get(typeID); !ok {
			return nil, false
		}
	}
	cmd := command.NewAddNode(typeID, pos)
	s.stack.Push(cmd)
	return cmd.Node(), cmd.Node() != nil
}

// AddConnection wires an output port to an input port of another live node
// with the scene's line type. Out-of-range ports, self loops and exact
// duplicates are refused.
func (s *Scene) AddConnection(from *graph.Node, fromPort int, to *graph.Node, toPort int) (*graph.Connection, bool) {
	if !s.CanConnect(from, fromPort, to, toPort) {
		return nil, false
	}
	cmd := command.NewAddConnection(from, fromPort, to, toPort, s.lineType)
	s.stack.Push(cmd)
	return cmd.Connection(), cmd.Connection() != nil
}

// CanConnect reports whether AddConnection would accept the endpoints.
func (s *Scene) CanConnect(from *graph.Node, fromPort int, to *graph.Node, toPort int) bool {
	if from == nil || to == nil || from == to || !s.HasNode(from) || !s.HasNode(to) {
		return false
	}
	if fromPort < 0 || fromPort >= from.OutputPortCount() || toPort < 0 || toPort >= to.InputPortCount() {
		return false
	}
	for _, c := range from.Connections() {
		if c.From == from && c.FromPort == fromPort && c.To == to && c.ToPort == toPort {
			return false
		}
	}
	return true
}

// MoveNode records a move of n to pos. Successive moves of the same node
// collapse into one history entry until EndMove.
func (s *Scene) MoveNode(n *graph.Node, pos geometry.Point) bool {
	if !s.HasNode(n) || n.Pos() == pos {
		return false
	}
	s.stack.Push(command.NewMoveNode(n, n.Pos(), pos))
	return true
}

// MoveSelection translates every selected node by delta as one entry.
func (s *Scene) MoveSelection(delta geometry.Point) bool {
	if len(s.selNodes) == 0 || delta == (geometry.Point{}) {
		return false
	}
	moves := make([]command.Move, 0, len(s.selNodes))
	for _, n := range s.selNodes {
		moves = append(moves, command.Move{Node: n, From: n.Pos(), To: n.Pos().Add(delta)})
	}
	s.stack.Push(command.NewMoveNodes(moves))
	return true
}

// EndMove closes the current run of merged single-node moves.
func (s *Scene) EndMove() { s.stack.Seal() }

// DeleteSelected removes the selected connections, the selected nodes and
// every connection touching them as one entry.
func (s *Scene) DeleteSelected() bool {
	nodes := slices.Clone(s.selNodes)
	conns := slices.Clone(s.selConns)
	for _, n := range nodes {
		for _, c := range n.Connections() {
			if !slices.Contains(conns, c) {
				conns = append(conns, c)
			}
		}
	}
	if len(nodes) == 0 && len(conns) == 0 {
		return false
	}
	s.stack.Push(command.NewDelete(nodes, conns))
	return true
}

// CopySelected snapshots the selected nodes and the connections between
// them into the clipboard.
func (s *Scene) CopySelected() bool {
	if len(s.selNodes) == 0 {
		return false
	}
	s.clipboard = flowdoc.NewClipboard(s.selNodes, s.conns)
	s.clipOrigin = graph.Centroid(s.selNodes)
	return true
}

// CutSelected is CopySelected followed by DeleteSelected.
func (s *Scene) CutSelected() bool {
	if !s.CopySelected() {
		return false
	}
	return s.DeleteSelected()
}

func (s *Scene) CanPaste() bool { return !s.clipboard.Empty() }

// Clipboard returns the current clipboard snapshot, nil when nothing has
// been copied.
func (s *Scene) Clipboard() *flowdoc.Clipboard { return s.clipboard }

// SetClipboard installs an external snapshot, e.g. one received from
// another session. origin is where the copied selection was centred.
func (s *Scene) SetClipboard(cb *flowdoc.Clipboard, origin geometry.Point) {
	s.clipboard = cb
	s.clipOrigin = origin
}

// ClipboardOrigin is the centroid of the selection last copied.
func (s *Scene) ClipboardOrigin() geometry.Point { return s.clipOrigin }

// Paste instantiates the clipboard centred on at and selects the clones.
// Clone names carry a " (copy N)" suffix counted per scene.
func (s *Scene) Paste(at geometry.Point) []*graph.Node {
	if !s.CanPaste() {
		return nil
	}
	s.ClearSelection()
	s.pasteCounter++
	cmd := command.NewPaste(s.clipboard, at, fmt.Sprintf(" (copy %d)", s.pasteCounter))
	s.stack.Push(cmd)
	s.SelectNodes(cmd.Nodes()...)
	return cmd.Nodes()
}

// CanGroup reports whether at least two nodes are selected.
func (s *Scene) CanGroup() bool { return len(s.selNodes) >= 2 }

// CanUngroup reports whether a group is selected.
func (s *Scene) CanUngroup() bool { return s.selectedGroup() != nil }

// GroupSelected folds the selected nodes into a new group and selects it.
func (s *Scene) GroupSelected(name string) (*graph.Node, bool) {
	if !s.CanGroup() {
		return nil, false
	}
	cmd := command.NewGroupNodes(name, slices.Clone(s.selNodes), s.Connections())
	s.stack.Push(cmd)
	s.SelectNodes(cmd.Group())
	return cmd.Group(), true
}

// UngroupSelected expands the first selected group and selects its former
// members.
func (s *Scene) UngroupSelected() ([]*graph.Node, bool) {
	g := s.selectedGroup()
	if g == nil {
		return nil, false
	}
	cmd := command.NewUngroupNodes(g)
	s.stack.Push(cmd)
	nodes := cmd.Nodes()
	s.SelectNodes(nodes...)
	return nodes, true
}

func (s *Scene) selectedGroup() *graph.Node {
	for _, n := range s.selNodes {
		if n.IsGroup() {
			return n
		}
	}
	return nil
}

func (s *Scene) Undo() { s.stack.Undo() }

func (s *Scene) Redo() { s.stack.Redo() }

func (s *Scene) CanUndo() bool { return s.stack.CanUndo() }

func (s *Scene) CanRedo() bool { return s.stack.CanRedo() }

// History returns the undo entry descriptions, oldest first, and the number
// currently applied.
func (s *Scene) History() ([]string, int) { return s.stack.Texts(), s.stack.Index() }

// SetLineType restyles a live connection. It is not recorded in the history.
func (s *Scene) SetLineType(c *graph.Connection, lt geometry.LineType) bool {
	if !s.HasConnection(c) {
		return false
	}
	c.SetLineType(lt)
	return true
}

// SetGroupLevel changes the cosmetic level of a live group.
func (s *Scene) SetGroupLevel(g *graph.Node, level int) bool {
	if !s.HasNode(g) || !g.IsGroup() {
		return false
	}
	g.SetGroupLevel(level)
	return true
}

// ApplyTemplate restyles every live node of t's type. It returns the number
// of nodes touched.
func (s *Scene) ApplyTemplate(t catalog.Template) int {
	if !t.Valid() {
		return 0
	}
	count := 0
	for _, n := range s.nodes {
		if n.TypeID == t.TypeID && !n.IsGroup() {
			styleNode(n, t)
			count++
		}
	}
	return count
}
