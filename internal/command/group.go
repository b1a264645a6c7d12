package command

import (
	"fmt"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/grouping"
)

// GroupNodes collapses a member set into one group node. The group and its
// boundary connections are built on first redo and reused afterwards.
type GroupNodes struct {
	name      string
	members   []*graph.Node
	split     grouping.Split
	originals []graph.NodePosition
	group     *graph.Node
	bridges   []*graph.Connection
}

// NewGroupNodes captures the partition of conns against members. conns are
// the live connections at the time the command is built.
func NewGroupNodes(name string, members []*graph.Node, conns []*graph.Connection) *GroupNodes {
	return &GroupNodes{
		name:      name,
		members:   members,
		split:     grouping.Partition(members, conns),
		originals: grouping.Positions(members),
	}
}

// Group is the created group node, nil until the command has run.
func (c *GroupNodes) Group() *graph.Node { return c.group }

func (c *GroupNodes) Kind() Kind   { return KindGroupNodes }
func (c *GroupNodes) Text() string { return fmt.Sprintf("Group %d nodes", len(c.members)) }

func (c *GroupNodes) redo(s Store) {
	first := c.group == nil
	if first {
		c.group = grouping.Stage(c.name, c.members, c.split, c.originals)
	}

	for _, ext := range c.split.External {
		s.RemoveConnection(ext.Original)
	}
	for _, conn := range c.split.Internal {
		s.RemoveConnection(conn)
	}
	for _, n := range c.members {
		s.RemoveNode(n)
	}
	s.RestoreNode(c.group)

	if !first {
		for _, conn := range c.bridges {
			s.RestoreConnection(conn)
		}
		return
	}
	for _, ext := range c.split.External {
		var conn *graph.Connection
		lt := ext.Original.LineType()
		if ext.IsInput {
			port := c.group.InputPortFor(ext.InternalNode, ext.InternalPort)
			conn = s.CreateConnection(ext.ExternalNode, ext.ExternalPort, c.group, port, lt)
		} else {
			port := c.group.OutputPortFor(ext.InternalNode, ext.InternalPort)
			conn = s.CreateConnection(c.group, port, ext.ExternalNode, ext.ExternalPort, lt)
		}
		if conn != nil {
			c.bridges = append(c.bridges, conn)
		}
	}
}

func (c *GroupNodes) undo(s Store) {
	for _, conn := range c.bridges {
		s.RemoveConnection(conn)
	}
	s.RemoveNode(c.group)
	for _, p := range c.originals {
		p.Node.SetPos(p.Pos)
		s.RestoreNode(p.Node)
	}
	for _, conn := range c.split.Internal {
		s.RestoreConnection(conn)
	}
	for _, ext := range c.split.External {
		s.RestoreConnection(ext.Original)
	}
}

// UngroupNodes expands a group back into its internal nodes, following any
// translation the group received since it was formed.
type UngroupNodes struct {
	group    *graph.Node
	current  []*graph.Connection
	restored []*graph.Connection
}

func NewUngroupNodes(group *graph.Node) *UngroupNodes {
	return &UngroupNodes{group: group}
}

// Nodes returns the internal nodes that ungrouping puts back.
func (c *UngroupNodes) Nodes() []*graph.Node { return c.group.Group().Nodes() }

func (c *UngroupNodes) Kind() Kind   { return KindUngroupNodes }
func (c *UngroupNodes) Text() string { return fmt.Sprintf("Ungroup %s", c.group.Name) }

func (c *UngroupNodes) redo(s Store) {
	gd := c.group.Group()
	if gd == nil {
		return
	}
	c.current = c.group.Connections()
	for _, conn := range c.current {
		s.RemoveConnection(conn)
	}
	offset := grouping.RestoreOffset(c.group)
	s.RemoveNode(c.group)

	for _, n := range gd.Nodes() {
		if p, ok := gd.OriginalPos(n); ok {
			n.SetPos(p.Add(offset))
		}
		s.RestoreNode(n)
	}
	for _, conn := range gd.Connections() {
		s.RestoreConnection(conn)
	}

	// An external peer may have been deleted while grouped.
	c.restored = c.restored[:0]
	for _, ext := range gd.External() {
		if ext.Original == nil || !s.HasNode(ext.ExternalNode) {
			continue
		}
		s.RestoreConnection(ext.Original)
		c.restored = append(c.restored, ext.Original)
	}
}

func (c *UngroupNodes) undo(s Store) {
	gd := c.group.Group()
	if gd == nil {
		return
	}
	for _, conn := range c.restored {
		s.RemoveConnection(conn)
	}
	for _, conn := range gd.Connections() {
		s.RemoveConnection(conn)
	}
	for _, n := range gd.Nodes() {
		s.RemoveNode(n)
	}
	s.RestoreNode(c.group)
	for _, conn := range c.current {
		s.RestoreConnection(conn)
	}
}
