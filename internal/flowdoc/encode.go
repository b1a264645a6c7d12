package flowdoc

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Encode builds the document for a live graph. conns whose endpoints are
// not among nodes are skipped.
func Encode(title string, nodes []*graph.Node, conns []*graph.Connection, now time.Time) *Document {
	doc := &Document{
		Metadata: Metadata{
			Title:   title,
			Created: now.UTC().Format(time.RFC3339),
			Version: Version,
		},
		Nodes:       make([]Node, 0, len(nodes)),
		Connections: make([]Connection, 0, len(conns)),
	}
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, encodeNode(n, true))
	}
	for _, c := range conns {
		if !slices.Contains(nodes, c.From) || !slices.Contains(nodes, c.To) {
			continue
		}
		doc.Connections = append(doc.Connections, Connection{
			From:     c.From.ID,
			FromPort: c.FromPort,
			To:       c.To.ID,
			ToPort:   c.ToPort,
			LineType: intPtr(int(c.LineType())),
		})
	}
	return doc
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func encodeNode(n *graph.Node, withPlacement bool) Node {
	out := Node{
		Type:            n.TypeID,
		Name:            n.Name,
		Width:           n.Size().W,
		Height:          n.Size().H,
		InputPortCount:  intPtr(n.InputPortCount()),
		OutputPortCount: intPtr(n.OutputPortCount()),
		DisplayTypeName: n.DisplayTypeName,
		Parameters:      Parameters(slices.Clone(n.Parameters)),
	}
	if withPlacement {
		out.ID = n.ID
		out.Position = &Position{X: n.Pos().X, Y: n.Pos().Y}
	}
	if c, ok := n.Color(); ok {
		out.CustomColor = c.Hex()
	}

	g := n.Group()
	if g == nil {
		return out
	}
	out.IsGroup = true
	out.GroupLevel = g.Level()
	for _, in := range g.Nodes() {
		out.InternalNodes = append(out.InternalNodes, encodeNode(in, true))
	}
	for _, c := range g.Connections() {
		out.InternalConnections = append(out.InternalConnections, LegacyConnection{
			FromNode: c.From.Name,
			FromID:   c.From.ID,
			FromPort: c.FromPort,
			ToNode:   c.To.Name,
			ToID:     c.To.ID,
			ToPort:   c.ToPort,
			LineType: intPtr(int(c.LineType())),
		})
	}
	for _, ext := range g.External() {
		e := ExternalConnection{
			ExternalNode: ext.ExternalNode.ID,
			ExternalPort: ext.ExternalPort,
			InternalNode: ext.InternalNode.ID,
			InternalPort: ext.InternalPort,
			IsInput:      ext.IsInput,
		}
		if ext.Original != nil {
			e.LineType = intPtr(int(ext.Original.LineType()))
		}
		out.ExternalConnections = append(out.ExternalConnections, e)
	}
	for _, p := range g.OriginalPositions() {
		out.OriginalPositions = append(out.OriginalPositions, OriginalPosition{
			NodeName: p.Node.Name,
			NodeID:   p.Node.ID,
			X:        p.Pos.X,
			Y:        p.Pos.Y,
		})
	}
	return out
}
