package scene

import (
	"fmt"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
)

// Document encodes the live graph.
func (s *Scene) Document(title string, now time.Time) *flowdoc.Document {
	return flowdoc.Encode(title, s.nodes, s.conns, now)
}

// Save encodes the live graph as indented JSON.
func (s *Scene) Save(title string) ([]byte, error) {
	data, err := flowdoc.Marshal(s.Document(title, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("scene: save: %w", err)
	}
	return data, nil
}

// Load replaces the scene contents with a saved document. On error the
// scene and its history are left untouched.
func (s *Scene) Load(data []byte) (flowdoc.Metadata, error) {
	g, err := flowdoc.Decode(data)
	if err != nil {
		return flowdoc.Metadata{}, fmt.Errorf("scene: load: %w", err)
	}
	s.install(g)
	return g.Metadata, nil
}

// LoadDocument is Load for an already parsed document.
func (s *Scene) LoadDocument(doc *flowdoc.Document) {
	s.install(flowdoc.DecodeDocument(doc))
}

func (s *Scene) install(g *flowdoc.Graph) {
	s.Clear()
	s.nodes = append(s.nodes, g.Nodes...)
	s.conns = append(s.conns, g.Connections...)
	s.nodeCounter = max(s.nodeCounter, len(s.nodes))
	s.emit(Event{Kind: EventLoaded})
}
