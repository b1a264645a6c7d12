package scene

import (
	"slices"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Select replaces the selection with the given live items.
func (s *Scene) Select(nodes []*graph.Node, conns []*graph.Connection) {
	s.selNodes = nil
	s.selConns = nil
	for _, n := range nodes {
		if s.HasNode(n) && !slices.Contains(s.selNodes, n) {
			s.selNodes = append(s.selNodes, n)
		}
	}
	for _, c := range conns {
		if s.HasConnection(c) && !slices.Contains(s.selConns, c) {
			s.selConns = append(s.selConns, c)
		}
	}
	s.emit(Event{Kind: EventSelectionChanged})
}

// SelectNodes is Select without connections.
func (s *Scene) SelectNodes(nodes ...*graph.Node) { s.Select(nodes, nil) }

// SelectAll selects every live node and connection.
func (s *Scene) SelectAll() { s.Select(s.nodes, s.conns) }

func (s *Scene) ClearSelection() {
	if len(s.selNodes) == 0 && len(s.selConns) == 0 {
		return
	}
	s.Select(nil, nil)
}

// SelectedNodes returns the selected nodes in selection order.
func (s *Scene) SelectedNodes() []*graph.Node { return slices.Clone(s.selNodes) }

func (s *Scene) SelectedConnections() []*graph.Connection { return slices.Clone(s.selConns) }

func (s *Scene) IsSelected(n *graph.Node) bool { return slices.Contains(s.selNodes, n) }

func (s *Scene) deselectNode(n *graph.Node) {
	if i := slices.Index(s.selNodes, n); i >= 0 {
		s.selNodes = slices.Delete(s.selNodes, i, i+1)
		s.emit(Event{Kind: EventSelectionChanged})
	}
}

func (s *Scene) deselectConnection(c *graph.Connection) {
	if i := slices.Index(s.selConns, c); i >= 0 {
		s.selConns = slices.Delete(s.selConns, i, i+1)
		s.emit(Event{Kind: EventSelectionChanged})
	}
}
