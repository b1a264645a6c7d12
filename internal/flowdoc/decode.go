package flowdoc

import (
	"encoding/json"
	"fmt"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Graph is a decoded document: top-level nodes and live connections between
// them. Group internals hang off their group nodes.
type Graph struct {
	Metadata    Metadata
	Nodes       []*graph.Node
	Connections []*graph.Connection
}

// Decode parses a saved document. Any error leaves nothing half-built; the
// caller keeps its current graph.
func Decode(data []byte) (*Graph, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := top["nodes"]; !ok {
		return nil, fmt.Errorf("%w: missing nodes", ErrMalformed)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeDocument(&doc), nil
}

// DecodeDocument builds a graph from an already parsed document. Node ids
// are kept. Unresolvable connection endpoints are dropped.
func DecodeDocument(doc *Document) *Graph {
	d := newDecoder(false)
	out := &Graph{Metadata: doc.Metadata}
	byRef := newRefTable()
	for i := range doc.Nodes {
		n := d.node(&doc.Nodes[i])
		out.Nodes = append(out.Nodes, n)
		byRef.add(doc.Nodes[i].ID, n)
	}
	d.finishGroups()

	for _, c := range doc.Connections {
		from, to := byRef.get(c.fromRef()), byRef.get(c.toRef())
		if from == nil || to == nil {
			continue
		}
		out.Connections = append(out.Connections, graph.Connect(from, c.FromPort, to, c.ToPort, lineType(c.LineType)))
	}
	return out
}

type pendingGroup struct {
	group     *graph.Node
	doc       *Node
	members   []*graph.Node
	conns     []*graph.Connection
	originals []graph.NodePosition
}

type decoder struct {
	fresh   bool
	byID    map[string]*graph.Node
	pending []pendingGroup
}

// newDecoder returns a decoder. fresh decoders mint new node ids and drop
// external-connection records, which only make sense in the source graph.
func newDecoder(fresh bool) *decoder {
	return &decoder{fresh: fresh, byID: make(map[string]*graph.Node)}
}

func (d *decoder) node(doc *Node) *graph.Node {
	var pos geometry.Point
	switch {
	case doc.Position != nil:
		pos = geometry.Point{X: doc.Position.X, Y: doc.Position.Y}
	case doc.X != nil && doc.Y != nil:
		pos = geometry.Point{X: *doc.X, Y: *doc.Y}
	}

	var n *graph.Node
	if doc.IsGroup {
		n = graph.NewGroup(doc.Name, pos)
	} else {
		n = graph.NewNode(doc.Type, doc.Name, pos)
	}
	if doc.ID != "" {
		if !d.fresh {
			n.ID = doc.ID
		}
		d.byID[doc.ID] = n
	}
	if doc.InputPortCount != nil {
		n.SetInputPortCount(*doc.InputPortCount)
	}
	if doc.OutputPortCount != nil {
		n.SetOutputPortCount(*doc.OutputPortCount)
	}
	if doc.Width > 0 && doc.Height > 0 {
		n.SetSize(doc.Width, doc.Height)
	}
	if c, ok := graph.ParseColor(doc.CustomColor); ok {
		n.SetColor(c)
	}
	if doc.DisplayTypeName != "" {
		n.DisplayTypeName = doc.DisplayTypeName
	}
	n.Parameters = []string(doc.Parameters)

	if doc.IsGroup {
		d.group(n, doc)
	}
	return n
}

// group decodes the internals of a group. Inner groups are queued before
// their parent so that port mappings are computed bottom-up.
func (d *decoder) group(n *graph.Node, doc *Node) {
	p := pendingGroup{group: n, doc: doc}
	local := newRefTable()
	for i := range doc.InternalNodes {
		in := d.node(&doc.InternalNodes[i])
		p.members = append(p.members, in)
		local.add(doc.InternalNodes[i].ID, in)
	}
	for _, lc := range doc.InternalConnections {
		from := local.resolve(lc.FromID, lc.FromNode)
		to := local.resolve(lc.ToID, lc.ToNode)
		if from == nil || to == nil {
			continue
		}
		c := graph.Connect(from, lc.FromPort, to, lc.ToPort, lineType(lc.LineType))
		c.Detach()
		p.conns = append(p.conns, c)
	}
	for _, op := range doc.OriginalPositions {
		in := local.resolve(op.NodeID, op.NodeName)
		if in == nil {
			continue
		}
		p.originals = append(p.originals, graph.NodePosition{Node: in, Pos: geometry.Point{X: op.X, Y: op.Y}})
	}
	d.pending = append(d.pending, p)
}

func (d *decoder) finishGroups() {
	for _, p := range d.pending {
		var ext []graph.ExternalConnection
		if !d.fresh {
			ext = d.external(p.doc.ExternalConnections)
		}
		p.group.SetGroupContents(p.members, p.conns, ext, p.originals)
		p.group.SetGroupLevel(p.doc.GroupLevel)
	}
	d.pending = nil
}

func (d *decoder) external(records []ExternalConnection) []graph.ExternalConnection {
	var out []graph.ExternalConnection
	for _, r := range records {
		ext, in := d.byID[r.ExternalNode], d.byID[r.InternalNode]
		if ext == nil || in == nil {
			continue
		}
		var orig *graph.Connection
		if r.IsInput {
			orig = graph.Connect(ext, r.ExternalPort, in, r.InternalPort, lineType(r.LineType))
		} else {
			orig = graph.Connect(in, r.InternalPort, ext, r.ExternalPort, lineType(r.LineType))
		}
		orig.Detach()
		out = append(out, graph.ExternalConnection{
			ExternalNode: ext,
			ExternalPort: r.ExternalPort,
			InternalNode: in,
			InternalPort: r.InternalPort,
			IsInput:      r.IsInput,
			Original:     orig,
		})
	}
	return out
}

func lineType(v *int) geometry.LineType {
	if v == nil {
		return geometry.Bezier
	}
	return geometry.ParseLineType(*v)
}

// refTable resolves node references by id first and by name second. The
// first node registered under a name wins.
type refTable struct {
	ids   map[string]*graph.Node
	names map[string]*graph.Node
}

func newRefTable() *refTable {
	return &refTable{ids: make(map[string]*graph.Node), names: make(map[string]*graph.Node)}
}

func (t *refTable) add(id string, n *graph.Node) {
	if id != "" {
		t.ids[id] = n
	}
	t.addName(n.Name, n)
}

func (t *refTable) addName(name string, n *graph.Node) {
	if _, ok := t.names[name]; !ok {
		t.names[name] = n
	}
}

func (t *refTable) get(ref string) *graph.Node {
	return t.resolve(ref, ref)
}

func (t *refTable) resolve(id, name string) *graph.Node {
	if n, ok := t.ids[id]; ok && id != "" {
		return n
	}
	if name == "" {
		return nil
	}
	return t.names[name]
}
