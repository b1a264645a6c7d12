// Package command implements the undo history of the editor. Every
// structural edit is a Command; the set of command kinds is closed.
package command

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Store is the raw, non-recording mutation surface commands drive.
type Store interface {
	// CreateNode builds a node of typeID at pos and inserts it. It returns
	// nil when the type cannot be instantiated.
	CreateNode(typeID string, pos geometry.Point) *graph.Node
	// RemoveNode takes n out of the live collection without destroying it.
	RemoveNode(n *graph.Node)
	// RestoreNode appends n to the live collection.
	RestoreNode(n *graph.Node)
	// CreateConnection builds, registers and inserts a connection.
	CreateConnection(from *graph.Node, fromPort int, to *graph.Node, toPort int, lt geometry.LineType) *graph.Connection
	// RemoveConnection deregisters c from its endpoints and drops it from
	// the live collection.
	RemoveConnection(c *graph.Connection)
	// RestoreConnection re-registers c and appends it.
	RestoreConnection(c *graph.Connection)
	// HasNode reports whether n is live.
	HasNode(n *graph.Node) bool
}

// Kind identifies a command type.
type Kind int

const (
	KindAddNode Kind = iota
	KindDelete
	KindMoveNode
	KindMoveNodes
	KindAddConnection
	KindPaste
	KindGroupNodes
	KindUngroupNodes
)

var kindNames = [...]string{
	KindAddNode:       "add_node",
	KindDelete:        "delete",
	KindMoveNode:      "move_node",
	KindMoveNodes:     "move_nodes",
	KindAddConnection: "add_connection",
	KindPaste:         "paste",
	KindGroupNodes:    "group_nodes",
	KindUngroupNodes:  "ungroup_nodes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Command is a reversible edit. Only this package implements it.
type Command interface {
	Kind() Kind
	Text() string
	redo(s Store)
	undo(s Store)
}
