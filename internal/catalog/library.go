package catalog

import (
	"slices"
	"sort"
	"sync"
)

// ChangeKind names a library mutation.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
	ChangeReset    ChangeKind = "reset"
	ChangeReloaded ChangeKind = "reloaded"
)

// Change is delivered to subscribers after a mutation. TypeID is empty for
// whole-library changes.
type Change struct {
	Kind   ChangeKind
	TypeID string
}

// Library is a concurrency-safe set of templates keyed by type id.
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// NewLibrary returns a library holding the built-in templates.
func NewLibrary() *Library {
	l := &Library{subs: make(map[int]func(Change))}
	l.templates = builtInMap()
	return l
}

func builtInMap() map[string]Template {
	m := make(map[string]Template)
	for _, t := range BuiltIns() {
		m[t.TypeID] = t
	}
	return m
}

// Subscribe registers fn for every later change and returns a function that
// removes it. fn runs on the mutating goroutine, after the lock is released.
func (l *Library) Subscribe(fn func(Change)) (unsubscribe func()) {
	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.subMu.Unlock()
	return func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
}

func (l *Library) notify(c Change) {
	l.subMu.Lock()
	fns := make([]func(Change), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Add stores a new template. It fails when t is invalid or its type id is
// taken.
func (l *Library) Add(t Template) bool {
	if !t.Valid() {
		return false
	}
	l.mu.Lock()
	if _, ok := l.templates[t.TypeID]; ok {
		l.mu.Unlock()
		return false
	}
	l.templates[t.TypeID] = t.normalize()
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeAdded, TypeID: t.TypeID})
	return true
}

// Update replaces an existing template.
func (l *Library) Update(t Template) bool {
	if !t.Valid() {
		return false
	}
	l.mu.Lock()
	if _, ok := l.templates[t.TypeID]; !ok {
		l.mu.Unlock()
		return false
	}
	l.templates[t.TypeID] = t.normalize()
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeUpdated, TypeID: t.TypeID})
	return true
}

// Remove deletes the template with typeID.
func (l *Library) Remove(typeID string) bool {
	l.mu.Lock()
	if _, ok := l.templates[typeID]; !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.templates, typeID)
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeRemoved, TypeID: typeID})
	return true
}

func (l *Library) Get(typeID string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[typeID]
	return t, ok
}

func (l *Library) Has(typeID string) bool {
	_, ok := l.Get(typeID)
	return ok
}

// All returns every template sorted by type id.
func (l *Library) All() []Template {
	l.mu.RLock()
	out := make([]Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Categories returns the distinct categories, sorted.
func (l *Library) Categories() []string {
	var out []string
	for _, t := range l.All() {
		if !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the templates of one category sorted by type id.
func (l *Library) ByCategory(category string) []Template {
	var out []Template
	for _, t := range l.All() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ResetToDefaults drops every template and restores the built-ins.
func (l *Library) ResetToDefaults() {
	l.mu.Lock()
	l.templates = builtInMap()
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeReset})
}

// replace swaps the whole template set. Invalid entries are skipped.
func (l *Library) replace(ts []Template) {
	m := make(map[string]Template, len(ts))
	for _, t := range ts {
		if t.Valid() {
			m[t.TypeID] = t.normalize()
		}
	}
	l.mu.Lock()
	l.templates = m
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeReloaded})
}

// merge adds or updates every valid non-built-in template in ts.
func (l *Library) merge(ts []Template) int {
	n := 0
	l.mu.Lock()
	for _, t := range ts {
		if !t.Valid() || t.BuiltIn {
			continue
		}
		l.templates[t.TypeID] = t.normalize()
		n++
	}
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeReloaded})
	return n
}
