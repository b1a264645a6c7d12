package command

// Action is what happened to the history.
type Action string

const (
	ActionPush  Action = "push"
	ActionMerge Action = "merge"
	ActionUndo  Action = "undo"
	ActionRedo  Action = "redo"
	ActionClear Action = "clear"
)

// Event reports a history change to the stack observer.
type Event struct {
	Action Action
	Kind   Kind
	Text   string
}

// Stack is a linear undo history. Pushing after an undo discards the redo
// tail.
type Stack struct {
	store    Store
	history  []Command
	index    int
	limit    int
	sealed   bool
	observer func(Event)
}

// NewStack returns an empty history bound to store. limit caps the number of
// entries kept; zero means unbounded.
func NewStack(store Store, limit int) *Stack {
	return &Stack{store: store, limit: max(0, limit)}
}

// SetObserver installs fn to be called after every history change.
func (s *Stack) SetObserver(fn func(Event)) { s.observer = fn }

// Push executes cmd and records it. A move of the same node as the move on
// top of the history is folded into that entry.
func (s *Stack) Push(cmd Command) {
	if cmd == nil {
		return
	}
	s.history = s.history[:s.index]
	cmd.redo(s.store)

	if top := s.top(); top != nil && !s.sealed && mergeInto(top, cmd) {
		s.notify(ActionMerge, top)
		return
	}
	s.sealed = false

	s.history = append(s.history, cmd)
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	s.index = len(s.history)
	s.notify(ActionPush, cmd)
}

// Seal ends the current merge run: the next move starts a new entry even
// when it targets the same node.
func (s *Stack) Seal() { s.sealed = true }

// Undo reverts the entry below the cursor. It is a no-op on an empty history.
func (s *Stack) Undo() {
	if !s.CanUndo() {
		return
	}
	s.index--
	s.sealed = true
	cmd := s.history[s.index]
	cmd.undo(s.store)
	s.notify(ActionUndo, cmd)
}

// Redo re-applies the entry at the cursor. It is a no-op at the head.
func (s *Stack) Redo() {
	if !s.CanRedo() {
		return
	}
	cmd := s.history[s.index]
	cmd.redo(s.store)
	s.index++
	s.notify(ActionRedo, cmd)
}

func (s *Stack) CanUndo() bool { return s.index > 0 }

func (s *Stack) CanRedo() bool { return s.index < len(s.history) }

// Len is the number of recorded entries, including undone ones.
func (s *Stack) Len() int { return len(s.history) }

// Index is the cursor: the number of entries currently applied.
func (s *Stack) Index() int { return s.index }

// Clear forgets the whole history without touching the store.
func (s *Stack) Clear() {
	s.history = nil
	s.index = 0
	s.sealed = false
	if s.observer != nil {
		s.observer(Event{Action: ActionClear})
	}
}

// Texts returns the entry descriptions, oldest first.
func (s *Stack) Texts() []string {
	out := make([]string, len(s.history))
	for i, c := range s.history {
		out[i] = c.Text()
	}
	return out
}

func (s *Stack) top() Command {
	if s.index == 0 {
		return nil
	}
	return s.history[s.index-1]
}

func (s *Stack) notify(a Action, cmd Command) {
	if s.observer != nil {
		s.observer(Event{Action: a, Kind: cmd.Kind(), Text: cmd.Text()})
	}
}

// mergeInto folds next into top when both move the same node.
func mergeInto(top, next Command) bool {
	if top.Kind() != KindMoveNode || next.Kind() != KindMoveNode {
		return false
	}
	a, b := top.(*MoveNode), next.(*MoveNode)
	if a.node != b.node {
		return false
	}
	a.to = b.to
	return true
}
