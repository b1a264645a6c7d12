package flowservice

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/scene"
)

// Point is a canvas position in an op.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p *Point) geometry() geometry.Point {
	if p == nil {
		return geometry.Point{}
	}
	return geometry.Point{X: p.X, Y: p.Y}
}

// Op is one editor operation. Which fields apply depends on Op.
type Op struct {
	Op          string   `json:"op"`
	Type        string   `json:"type,omitempty"`
	Position    *Point   `json:"position,omitempty"`
	Delta       *Point   `json:"delta,omitempty"`
	Node        string   `json:"node,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	Connection  string   `json:"connection,omitempty"`
	Connections []string `json:"connections,omitempty"`
	From        string   `json:"from,omitempty"`
	FromPort    int      `json:"from_port,omitempty"`
	To          string   `json:"to,omitempty"`
	ToPort      int      `json:"to_port,omitempty"`
	Name        string   `json:"name,omitempty"`
	LineType    string   `json:"line_type,omitempty"`
	Level       int      `json:"level,omitempty"`
}

// OpResult reports what an op did. Applied is false when the scene refused
// the op, e.g. a duplicate connection or undo with empty history.
type OpResult struct {
	Applied bool          `json:"applied"`
	Created []string      `json:"created"`
	State   *SessionState `json:"state"`
}

type opFunc func(s *Service, sess *session, op Op) (bool, []string, error)

var ops = map[string]opFunc{
	"add_node":        opAddNode,
	"connect":         opConnect,
	"move":            opMove,
	"move_selection":  opMoveSelection,
	"end_move":        opEndMove,
	"select":          opSelect,
	"select_all":      opSelectAll,
	"clear_selection": opClearSelection,
	"delete_selected": opDeleteSelected,
	"delete":          opDelete,
	"copy":            opCopy,
	"cut":             opCut,
	"paste":           opPaste,
	"group":           opGroup,
	"ungroup":         opUngroup,
	"undo":            opUndo,
	"redo":            opRedo,
	"set_line_type":   opSetLineType,
	"set_group_level": opSetGroupLevel,
}

// OpNames lists the supported operations.
func OpNames() []string {
	out := make([]string, 0, len(ops))
	for name := range ops {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply runs one op against the session for p, opening it if needed, and
// publishes a scene.changed event when the op applied.
func (s *Service) Apply(ctx context.Context, p string, op Op) (*OpResult, error) {
	fn, ok := ops[op.Op]
	if !ok {
		return nil, fmt.Errorf("flowservice: unknown op %q: %w", op.Op, apperr.ErrInvalid)
	}
	sess, err := s.open(ctx, p)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	applied, created, err := fn(s, sess, op)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	res := &OpResult{Applied: applied, Created: nonNil(created), State: sess.state()}
	sess.mu.Unlock()

	if applied {
		s.publishScene(sess, op.Op)
	}
	return res, nil
}

func lookupNode(sc *scene.Scene, id string) (*graph.Node, error) {
	if n := sc.NodeByID(id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("flowservice: node %q: %w", id, apperr.ErrNotFound)
}

func lookupNodes(sc *scene.Scene, idList []string) ([]*graph.Node, error) {
	out := make([]*graph.Node, 0, len(idList))
	for _, id := range idList {
		n, err := lookupNode(sc, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func lookupConnections(sc *scene.Scene, idList []string) ([]*graph.Connection, error) {
	out := make([]*graph.Connection, 0, len(idList))
	for _, id := range idList {
		c := sc.ConnectionByID(id)
		if c == nil {
			return nil, fmt.Errorf("flowservice: connection %q: %w", id, apperr.ErrNotFound)
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseLineType accepts a line type name.
func ParseLineType(name string) (geometry.LineType, error) {
	for _, lt := range []geometry.LineType{geometry.Bezier, geometry.Straight, geometry.Orthogonal} {
		if strings.EqualFold(name, lt.String()) {
			return lt, nil
		}
	}
	return 0, fmt.Errorf("flowservice: line type %q: %w", name, apperr.ErrInvalid)
}

func opAddNode(_ *Service, sess *session, op Op) (bool, []string, error) {
	if op.Type == "" {
		return false, nil, fmt.Errorf("flowservice: add_node needs a type: %w", apperr.ErrInvalid)
	}
	n, ok := sess.scene.AddNode(op.Type, op.Position.geometry())
	if !ok {
		return false, nil, fmt.Errorf("flowservice: node type %q: %w", op.Type, apperr.ErrNotFound)
	}
	return true, []string{n.ID}, nil
}

func opConnect(_ *Service, sess *session, op Op) (bool, []string, error) {
	from, err := lookupNode(sess.scene, op.From)
	if err != nil {
		return false, nil, err
	}
	to, err := lookupNode(sess.scene, op.To)
	if err != nil {
		return false, nil, err
	}
	c, ok := sess.scene.AddConnection(from, op.FromPort, to, op.ToPort)
	if !ok {
		return false, nil, nil
	}
	return true, []string{c.ID}, nil
}

func opMove(_ *Service, sess *session, op Op) (bool, []string, error) {
	n, err := lookupNode(sess.scene, op.Node)
	if err != nil {
		return false, nil, err
	}
	if op.Position == nil {
		return false, nil, fmt.Errorf("flowservice: move needs a position: %w", apperr.ErrInvalid)
	}
	return sess.scene.MoveNode(n, op.Position.geometry()), nil, nil
}

func opMoveSelection(_ *Service, sess *session, op Op) (bool, []string, error) {
	return sess.scene.MoveSelection(op.Delta.geometry()), nil, nil
}

func opEndMove(_ *Service, sess *session, _ Op) (bool, []string, error) {
	sess.scene.EndMove()
	return true, nil, nil
}

func opSelect(_ *Service, sess *session, op Op) (bool, []string, error) {
	nodes, err := lookupNodes(sess.scene, op.Nodes)
	if err != nil {
		return false, nil, err
	}
	conns, err := lookupConnections(sess.scene, op.Connections)
	if err != nil {
		return false, nil, err
	}
	sess.scene.Select(nodes, conns)
	return true, nil, nil
}

func opSelectAll(_ *Service, sess *session, _ Op) (bool, []string, error) {
	sess.scene.SelectAll()
	return true, nil, nil
}

func opClearSelection(_ *Service, sess *session, _ Op) (bool, []string, error) {
	sess.scene.ClearSelection()
	return true, nil, nil
}

func opDeleteSelected(_ *Service, sess *session, _ Op) (bool, []string, error) {
	return sess.scene.DeleteSelected(), nil, nil
}

// opDelete selects the named items and deletes them.
func opDelete(s *Service, sess *session, op Op) (bool, []string, error) {
	if _, _, err := opSelect(s, sess, op); err != nil {
		return false, nil, err
	}
	return sess.scene.DeleteSelected(), nil, nil
}

func opCopy(_ *Service, sess *session, _ Op) (bool, []string, error) {
	return sess.scene.CopySelected(), nil, nil
}

func opCut(_ *Service, sess *session, _ Op) (bool, []string, error) {
	return sess.scene.CutSelected(), nil, nil
}

// opPaste centres the clones on the given position, or offsets them from
// the copied selection when none is given.
func opPaste(s *Service, sess *session, op Op) (bool, []string, error) {
	at := sess.scene.ClipboardOrigin().Add(geometry.Point{X: s.editor.PasteOffset, Y: s.editor.PasteOffset})
	if op.Position != nil {
		at = op.Position.geometry()
	}
	nodes := sess.scene.Paste(at)
	if len(nodes) == 0 {
		return false, nil, nil
	}
	return true, ids(nodes), nil
}

func opGroup(s *Service, sess *session, op Op) (bool, []string, error) {
	if len(op.Nodes) > 0 {
		if _, _, err := opSelect(s, sess, Op{Nodes: op.Nodes}); err != nil {
			return false, nil, err
		}
	}
	name := op.Name
	if name == "" {
		name = "Group"
	}
	g, ok := sess.scene.GroupSelected(name)
	if !ok {
		return false, nil, nil
	}
	return true, []string{g.ID}, nil
}

func opUngroup(s *Service, sess *session, op Op) (bool, []string, error) {
	if op.Node != "" {
		if _, _, err := opSelect(s, sess, Op{Nodes: []string{op.Node}}); err != nil {
			return false, nil, err
		}
	}
	nodes, ok := sess.scene.UngroupSelected()
	if !ok {
		return false, nil, nil
	}
	return true, ids(nodes), nil
}

func opUndo(_ *Service, sess *session, _ Op) (bool, []string, error) {
	if !sess.scene.CanUndo() {
		return false, nil, nil
	}
	sess.scene.Undo()
	return true, nil, nil
}

func opRedo(_ *Service, sess *session, _ Op) (bool, []string, error) {
	if !sess.scene.CanRedo() {
		return false, nil, nil
	}
	sess.scene.Redo()
	return true, nil, nil
}

func opSetLineType(_ *Service, sess *session, op Op) (bool, []string, error) {
	conns, err := lookupConnections(sess.scene, []string{op.Connection})
	if err != nil {
		return false, nil, err
	}
	lt, err := ParseLineType(op.LineType)
	if err != nil {
		return false, nil, err
	}
	ok := sess.scene.SetLineType(conns[0], lt)
	if ok {
		sess.dirty = true
	}
	return ok, nil, nil
}

func opSetGroupLevel(_ *Service, sess *session, op Op) (bool, []string, error) {
	g, err := lookupNode(sess.scene, op.Node)
	if err != nil {
		return false, nil, err
	}
	if !g.IsGroup() {
		return false, nil, fmt.Errorf("flowservice: node %q is not a group: %w", op.Node, apperr.ErrInvalid)
	}
	ok := sess.scene.SetGroupLevel(g, op.Level)
	if ok {
		sess.dirty = true
	}
	return ok, nil, nil
}
