package graph

import (
	"github.com/google/uuid"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
)

// Connection wires an output port of From to an input port of To. It does not
// own its endpoints.
type Connection struct {
	ID       string
	From     *Node
	FromPort int
	To       *Node
	ToPort   int

	lineType geometry.LineType
	path     geometry.Path
	attached bool
}

// Connect creates a connection and registers it with both endpoints.
// It returns nil when either endpoint is nil.
func Connect(from *Node, fromPort int, to *Node, toPort int, lt geometry.LineType) *Connection {
	if from == nil || to == nil {
		return nil
	}
	c := &Connection{
		ID:       uuid.NewString(),
		From:     from,
		FromPort: fromPort,
		To:       to,
		ToPort:   toPort,
		lineType: lt,
	}
	c.Attach()
	return c
}

// Attach registers c with both endpoints and refreshes its path. Calling it
// on an attached connection is a no-op.
func (c *Connection) Attach() {
	if c.attached {
		return
	}
	c.From.addConnection(c)
	c.To.addConnection(c)
	c.attached = true
	c.UpdatePath()
}

// Detach deregisters c from both endpoints.
func (c *Connection) Detach() {
	if !c.attached {
		return
	}
	c.From.removeConnection(c)
	c.To.removeConnection(c)
	c.attached = false
}

// Attached reports whether c is registered with its endpoints.
func (c *Connection) Attached() bool { return c.attached }

// Other returns the endpoint opposite n, or nil when n is not an endpoint.
func (c *Connection) Other(n *Node) *Node {
	switch n {
	case c.From:
		return c.To
	case c.To:
		return c.From
	}
	return nil
}

// Touches reports whether n is one of c's endpoints.
func (c *Connection) Touches(n *Node) bool {
	return c.From == n || c.To == n
}

func (c *Connection) LineType() geometry.LineType { return c.lineType }

func (c *Connection) SetLineType(lt geometry.LineType) {
	c.lineType = lt
	c.UpdatePath()
}

// FromPos is the anchor of the source port. Stale indices clamp to port 0.
func (c *Connection) FromPos() geometry.Point { return c.From.OutputPortPos(c.FromPort) }

// ToPos is the anchor of the target port.
func (c *Connection) ToPos() geometry.Point { return c.To.InputPortPos(c.ToPort) }

// UpdatePath reroutes c from the current endpoint positions.
func (c *Connection) UpdatePath() {
	c.path = geometry.ComputePath(c.FromPos(), c.ToPos(), c.lineType)
}

// Path returns the last routed path.
func (c *Connection) Path() geometry.Path { return c.path }
