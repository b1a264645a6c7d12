package scene

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/command"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// EventKind names a scene notification.
type EventKind string

const (
	EventNodeAdded         EventKind = "node.added"
	EventNodeRemoved       EventKind = "node.removed"
	EventConnectionAdded   EventKind = "connection.added"
	EventConnectionRemoved EventKind = "connection.removed"
	EventSelectionChanged  EventKind = "selection.changed"
	EventHistoryChanged    EventKind = "history.changed"
	EventLoaded            EventKind = "scene.loaded"
	EventCleared           EventKind = "scene.cleared"
)

// Event is delivered synchronously to every subscriber. Node, Connection and
// History are set according to Kind.
type Event struct {
	Kind       EventKind
	Node       *graph.Node
	Connection *graph.Connection
	History    command.Event
}

// Subscribe registers fn for all later events.
func (s *Scene) Subscribe(fn func(Event)) {
	s.subs = append(s.subs, fn)
}

func (s *Scene) emit(e Event) {
	for _, fn := range s.subs {
		fn(e)
	}
}
