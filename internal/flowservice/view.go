package flowservice

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// NodeView is the wire form of a live node.
type NodeView struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	DisplayType string     `json:"display_type,omitempty"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Inputs      int        `json:"inputs"`
	Outputs     int        `json:"outputs"`
	Color       string     `json:"color,omitempty"`
	Parameters  []string   `json:"parameters"`
	Group       *GroupView `json:"group,omitempty"`
}

// GroupView describes the contents of a group node.
type GroupView struct {
	Level   int      `json:"level"`
	Members []string `json:"members"`
}

// ConnectionView is the wire form of a live connection.
type ConnectionView struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromPort int    `json:"from_port"`
	To       string `json:"to"`
	ToPort   int    `json:"to_port"`
	LineType string `json:"line_type"`
}

// SessionState is a snapshot of an editing session.
type SessionState struct {
	Path                string           `json:"path"`
	Title               string           `json:"title"`
	Nodes               []NodeView       `json:"nodes"`
	Connections         []ConnectionView `json:"connections"`
	SelectedNodes       []string         `json:"selected_nodes"`
	SelectedConnections []string         `json:"selected_connections"`
	History             []string         `json:"history"`
	HistoryIndex        int              `json:"history_index"`
	CanUndo             bool             `json:"can_undo"`
	CanRedo             bool             `json:"can_redo"`
	CanPaste            bool             `json:"can_paste"`
	Valid               bool             `json:"valid"`
	Dirty               bool             `json:"dirty"`
}

func nodeView(n *graph.Node) NodeView {
	pos, size := n.Pos(), n.Size()
	v := NodeView{
		ID:          n.ID,
		Type:        n.TypeID,
		Name:        n.Name,
		DisplayType: n.DisplayTypeName,
		X:           pos.X,
		Y:           pos.Y,
		Width:       size.W,
		Height:      size.H,
		Inputs:      n.InputPortCount(),
		Outputs:     n.OutputPortCount(),
		Parameters:  nonNil(n.Parameters),
	}
	if c, ok := n.Color(); ok {
		v.Color = c.Hex()
	}
	if g := n.Group(); g != nil {
		v.Group = &GroupView{Level: g.Level(), Members: ids(g.Nodes())}
	}
	return v
}

func connectionView(c *graph.Connection) ConnectionView {
	return ConnectionView{
		ID:       c.ID,
		From:     c.From.ID,
		FromPort: c.FromPort,
		To:       c.To.ID,
		ToPort:   c.ToPort,
		LineType: c.LineType().String(),
	}
}

// state must be called with sess.mu held.
func (sess *session) state() *SessionState {
	sc := sess.scene
	st := &SessionState{
		Path:                sess.path,
		Title:               sess.title,
		Nodes:               []NodeView{},
		Connections:         []ConnectionView{},
		SelectedNodes:       ids(sc.SelectedNodes()),
		SelectedConnections: []string{},
		CanUndo:             sc.CanUndo(),
		CanRedo:             sc.CanRedo(),
		CanPaste:            sc.CanPaste(),
		Valid:               sc.ValidateFlow(),
		Dirty:               sess.dirty,
	}
	for _, n := range sc.Nodes() {
		st.Nodes = append(st.Nodes, nodeView(n))
	}
	for _, c := range sc.Connections() {
		st.Connections = append(st.Connections, connectionView(c))
	}
	for _, c := range sc.SelectedConnections() {
		st.SelectedConnections = append(st.SelectedConnections, c.ID)
	}
	texts, idx := sc.History()
	st.History = nonNil(texts)
	st.HistoryIndex = idx
	return st
}

func ids(nodes []*graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
