// Package grouping holds the pure half of group/ungroup: splitting the live
// connections against a member set and staging the detached group node.
// The undoable half lives in the command package.
package grouping

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Split is the result of partitioning connections against a member set.
// Connections with neither endpoint inside are not listed.
type Split struct {
	Internal []*graph.Connection
	External []graph.ExternalConnection
}

// Partition classifies conns by how many endpoints lie in members.
// An external connection is an input of the future group when its source
// lies outside.
func Partition(members []*graph.Node, conns []*graph.Connection) Split {
	in := make(map[*graph.Node]bool, len(members))
	for _, n := range members {
		in[n] = true
	}
	var s Split
	for _, c := range conns {
		fromIn, toIn := in[c.From], in[c.To]
		switch {
		case fromIn && toIn:
			s.Internal = append(s.Internal, c)
		case fromIn:
			s.External = append(s.External, graph.ExternalConnection{
				ExternalNode: c.To,
				ExternalPort: c.ToPort,
				InternalNode: c.From,
				InternalPort: c.FromPort,
				IsInput:      false,
				Original:     c,
			})
		case toIn:
			s.External = append(s.External, graph.ExternalConnection{
				ExternalNode: c.From,
				ExternalPort: c.FromPort,
				InternalNode: c.To,
				InternalPort: c.ToPort,
				IsInput:      true,
				Original:     c,
			})
		}
	}
	return s
}

// Positions snapshots the current position of every member.
func Positions(members []*graph.Node) []graph.NodePosition {
	out := make([]graph.NodePosition, len(members))
	for i, n := range members {
		out[i] = graph.NodePosition{Node: n, Pos: n.Pos()}
	}
	return out
}

// Stage builds a detached group centred on the members' centroid. The group
// is not part of any store yet.
func Stage(name string, members []*graph.Node, split Split, originals []graph.NodePosition) *graph.Node {
	center := centroid(originals)
	g := graph.NewGroup(name, center)
	g.SetGroupContents(members, split.Internal, split.External, originals)
	return g
}

// RestoreOffset is the translation applied to internal nodes on ungroup:
// the group's displacement since it was formed.
func RestoreOffset(group *graph.Node) geometry.Point {
	gd := group.Group()
	if gd == nil {
		return geometry.Point{}
	}
	return group.Pos().Sub(centroid(gd.OriginalPositions()))
}

func centroid(ps []graph.NodePosition) geometry.Point {
	pts := make([]geometry.Point, len(ps))
	for i, p := range ps {
		pts[i] = p.Pos
	}
	return geometry.Centroid(pts)
}
