package flowdoc

import (
	"fmt"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Clipboard is a detached copy of a selection. Node positions are stored
// relative to the selection centroid.
type Clipboard struct {
	Nodes       []ClipNode       `json:"nodes"`
	Connections []ClipConnection `json:"connections"`
}

// ClipNode is a node record keyed by a clipboard-local handle.
type ClipNode struct {
	Node
	CopyID string  `json:"copyId"`
	RelX   float64 `json:"relX"`
	RelY   float64 `json:"relY"`
}

// ClipConnection joins two clipboard nodes.
type ClipConnection struct {
	FromCopyID string `json:"fromCopyId"`
	FromPort   int    `json:"fromPort"`
	ToCopyID   string `json:"toCopyId"`
	ToPort     int    `json:"toPort"`
	LineType   int    `json:"lineType"`
}

// Link is a connection to be created between freshly pasted nodes.
type Link struct {
	From     *graph.Node
	FromPort int
	To       *graph.Node
	ToPort   int
	LineType geometry.LineType
}

// NewClipboard copies nodes and every connection in conns whose endpoints
// are both among nodes.
func NewClipboard(nodes []*graph.Node, conns []*graph.Connection) *Clipboard {
	cb := &Clipboard{Nodes: []ClipNode{}, Connections: []ClipConnection{}}
	if len(nodes) == 0 {
		return cb
	}
	center := graph.Centroid(nodes)
	ids := make(map[*graph.Node]string, len(nodes))
	for i, n := range nodes {
		id := fmt.Sprintf("copy_node_%d", i)
		ids[n] = id
		cb.Nodes = append(cb.Nodes, ClipNode{
			Node:   encodeNode(n, false),
			CopyID: id,
			RelX:   n.Pos().X - center.X,
			RelY:   n.Pos().Y - center.Y,
		})
	}
	for _, c := range conns {
		from, okFrom := ids[c.From]
		to, okTo := ids[c.To]
		if !okFrom || !okTo {
			continue
		}
		cb.Connections = append(cb.Connections, ClipConnection{
			FromCopyID: from,
			FromPort:   c.FromPort,
			ToCopyID:   to,
			ToPort:     c.ToPort,
			LineType:   int(c.LineType()),
		})
	}
	return cb
}

// Empty reports whether the clipboard holds no nodes.
func (cb *Clipboard) Empty() bool {
	return cb == nil || len(cb.Nodes) == 0
}

// Instantiate builds fresh nodes placed at offset plus their relative
// position, with suffix appended to every top-level name. The returned links
// describe the copied connections; creating them is left to the caller.
func (cb *Clipboard) Instantiate(offset geometry.Point, suffix string) ([]*graph.Node, []Link) {
	if cb.Empty() {
		return nil, nil
	}
	d := newDecoder(true)
	byCopy := make(map[string]*graph.Node, len(cb.Nodes))
	nodes := make([]*graph.Node, 0, len(cb.Nodes))
	for i := range cb.Nodes {
		cn := &cb.Nodes[i]
		n := d.node(&cn.Node)
		n.SetPos(geometry.Point{X: cn.RelX + offset.X, Y: cn.RelY + offset.Y})
		n.Name += suffix
		byCopy[cn.CopyID] = n
		nodes = append(nodes, n)
	}
	d.finishGroups()

	var links []Link
	for _, c := range cb.Connections {
		from, to := byCopy[c.FromCopyID], byCopy[c.ToCopyID]
		if from == nil || to == nil {
			continue
		}
		links = append(links, Link{
			From:     from,
			FromPort: c.FromPort,
			To:       to,
			ToPort:   c.ToPort,
			LineType: geometry.ParseLineType(c.LineType),
		})
	}
	return nodes, links
}
