// Package flowservice coordinates flow documents on disk, the flow index,
// the template catalog and in-memory editing sessions.
package flowservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/checksum"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/sse"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/storage"
)

// Catalog is the template source. *catalog.Library implements it.
type Catalog interface {
	Get(typeID string) (catalog.Template, bool)
	All() []catalog.Template
	Subscribe(fn func(catalog.Change)) (unsubscribe func())
}

// FlowDetail is the full representation of a saved flow.
type FlowDetail struct {
	Path      string           `json:"path"`
	Title     string           `json:"title"`
	Checksum  string           `json:"checksum"`
	Stats     models.FlowStats `json:"stats"`
	Document  json.RawMessage  `json:"document"`
	UsedBy    []string         `json:"node_types"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// FlowListItem is a lightweight item in a list response.
type FlowListItem struct {
	Path      string           `json:"path"`
	Title     string           `json:"title"`
	Checksum  string           `json:"checksum"`
	Stats     models.FlowStats `json:"stats"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Service coordinates storage, index, catalog and sessions.
type Service struct {
	store   storage.Provider
	db      index.FlowIndex
	lib     Catalog
	pub     Publisher
	metrics *metrics.Collector
	logger  *slog.Logger
	editor  EditorConfig

	mu       sync.Mutex
	sessions map[string]*session
	unsub    func()
}

// New creates a flow service and subscribes it to catalog changes.
func New(store storage.Provider, db index.FlowIndex, lib Catalog, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		lib:      lib,
		logger:   slog.Default(),
		editor:   DefaultEditorConfig(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if lib != nil {
		s.unsub = lib.Subscribe(s.catalogChanged)
	}
	return s
}

// Close detaches the service from the catalog.
func (s *Service) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// CleanPath validates a workspace-relative flow path and returns its
// canonical slash form.
func CleanPath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if !storage.IsFlow(p) {
		return "", fmt.Errorf("flowservice: path %q must end in %s: %w", p, models.FlowExt, apperr.ErrInvalid)
	}
	return p, nil
}

// Get reads a flow from storage and summarises it.
func (s *Service) Get(_ context.Context, p string) (*FlowDetail, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.detail(p, data)
}

// List returns a page of indexed flows.
func (s *Service) List(_ context.Context, limit, offset int, sort string) ([]FlowListItem, int, error) {
	rows, total, err := s.db.ListFlows(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]FlowListItem, len(rows))
	for i, r := range rows {
		items[i] = FlowListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Stats:     r.Stats,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Create writes a new flow and indexes it. Empty content creates an empty
// flow titled after the file name.
func (s *Service) Create(_ context.Context, p string, content []byte) (*FlowDetail, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if len(content) == 0 {
		content, err = emptyDocument(titleFromPath(p))
		if err != nil {
			return nil, err
		}
	}
	if err := s.write(p, content); err != nil {
		return nil, err
	}
	s.flowEvent(index.FlowCreated, p)
	return s.detail(p, content)
}

// Save replaces a flow's content with optimistic concurrency. An open
// session is reloaded from the new content.
func (s *Service) Save(_ context.Context, p string, content []byte, ifMatch string) (*FlowDetail, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if !checksum.Match(ifMatch, existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.write(p, content); err != nil {
		return nil, err
	}
	if sess := s.session(p); sess != nil {
		sess.mu.Lock()
		_ = sess.reload(content)
		sess.mu.Unlock()
		s.publishScene(sess, "reload")
	}
	s.flowEvent(index.FlowUpdated, p)
	return s.detail(p, content)
}

// Delete removes a flow from storage, index and the session table.
func (s *Service) Delete(_ context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.dropSession(p)
	if err := s.db.DeleteFlow(p); err != nil {
		return err
	}
	s.flowEvent(index.FlowDeleted, p)
	return nil
}

// Rename moves a flow to a new path. An open session follows it.
func (s *Service) Rename(_ context.Context, from, to string) (*FlowDetail, error) {
	from, err := CleanPath(from)
	if err != nil {
		return nil, err
	}
	if to, err = CleanPath(to); err != nil {
		return nil, err
	}
	if err := s.store.Move(from, to); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, apperr.ErrNotFound
		case errors.Is(err, fs.ErrExist):
			return nil, apperr.ErrAlreadyExists
		}
		return nil, err
	}
	data, err := s.read(to)
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteFlow(from); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, to, data, time.Now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[from]; ok {
		delete(s.sessions, from)
		sess.mu.Lock()
		sess.path = to
		sess.mu.Unlock()
		s.sessions[to] = sess
	}
	s.mu.Unlock()

	s.flowEvent(index.FlowDeleted, from)
	s.flowEvent(index.FlowCreated, to)
	return s.detail(to, data)
}

// Search finds flows by title or node type.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// FlowsUsingType lists the flows that contain a node of typeID.
func (s *Service) FlowsUsingType(_ context.Context, typeID string) ([]string, error) {
	return s.db.FlowsUsingType(typeID)
}

// TypeUsage totals node type usage across the workspace.
func (s *Service) TypeUsage(_ context.Context) ([]models.NodeUsage, error) {
	return s.db.TypeUsage()
}

// Templates returns the catalog sorted by type id.
func (s *Service) Templates() []catalog.Template {
	if s.lib == nil {
		return nil
	}
	return s.lib.All()
}

// Template looks up one catalog entry.
func (s *Service) Template(typeID string) (catalog.Template, error) {
	if s.lib != nil {
		if t, ok := s.lib.Get(typeID); ok {
			return t, nil
		}
	}
	return catalog.Template{}, fmt.Errorf("flowservice: template %q: %w", typeID, apperr.ErrNotFound)
}

// ExternalChange reacts to a flow file changed outside the service. Clean
// sessions follow the file; sessions with unsaved edits are left alone.
func (s *Service) ExternalChange(kind, p string) {
	s.flowEvent(kind, p)
	sess := s.session(p)
	if sess == nil {
		return
	}
	switch kind {
	case index.FlowDeleted:
		sess.mu.Lock()
		dirty := sess.dirty
		sess.mu.Unlock()
		if !dirty {
			s.dropSession(p)
		}
	case index.FlowCreated, index.FlowUpdated:
		data, err := s.store.Read(p)
		if err != nil {
			return
		}
		sess.mu.Lock()
		reloaded := false
		if !sess.dirty && sess.base != checksum.Sum(data) {
			reloaded = sess.reload(data) == nil
		}
		sess.mu.Unlock()
		if reloaded {
			s.logger.Info("flowservice: session reloaded", slog.String("path", p))
			s.publishScene(sess, "reload")
		}
	}
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// write validates, stores and indexes a document.
func (s *Service) write(p string, content []byte) error {
	if _, err := index.Summarize(content); err != nil {
		return fmt.Errorf("flowservice: %w: %v", apperr.ErrInvalid, err)
	}
	if err := s.store.Write(p, content); err != nil {
		return err
	}
	return index.IndexFile(s.db, p, content, time.Now())
}

func (s *Service) detail(p string, data []byte) (*FlowDetail, error) {
	sum, err := index.Summarize(data)
	if err != nil {
		return nil, fmt.Errorf("flowservice: %s: %w: %v", p, apperr.ErrInvalid, err)
	}
	types := make([]string, len(sum.Usage))
	for i, u := range sum.Usage {
		types[i] = u.TypeID
	}
	d := &FlowDetail{
		Path:      p,
		Title:     sum.Title,
		Checksum:  checksum.Sum(data),
		Stats:     sum.Stats,
		Document:  json.RawMessage(data),
		UsedBy:    types,
		UpdatedAt: time.Now(),
	}
	if row, err := s.db.GetFlow(p); err == nil {
		d.UpdatedAt = row.UpdatedAt
	}
	return d, nil
}

func (s *Service) flowEvent(kind, p string) {
	if s.metrics != nil {
		s.metrics.FlowEvent(kind)
	}
	if s.pub != nil {
		s.pub.PublishFlowEvent(kind, p)
	}
}

func (s *Service) catalogChanged(c catalog.Change) {
	var templates []catalog.Template
	switch c.Kind {
	case catalog.ChangeAdded, catalog.ChangeUpdated:
		if t, ok := s.lib.Get(c.TypeID); ok {
			templates = []catalog.Template{t}
		}
	case catalog.ChangeReset, catalog.ChangeReloaded:
		templates = s.lib.All()
	}

	for _, sess := range s.openSessions() {
		touched := 0
		sess.mu.Lock()
		for _, t := range templates {
			touched += sess.scene.ApplyTemplate(t)
		}
		sess.mu.Unlock()
		if touched > 0 {
			s.publishScene(sess, "apply_template")
		}
	}
	if s.pub != nil {
		s.pub.Publish(sse.Event{Type: sse.TypeCatalogChanged, Data: map[string]string{
			"kind":    string(c.Kind),
			"type_id": c.TypeID,
		}})
	}
}

func titleFromPath(p string) string {
	return strings.TrimSuffix(path.Base(p), models.FlowExt)
}

func emptyDocument(title string) ([]byte, error) {
	return flowdoc.Marshal(flowdoc.Encode(title, nil, nil, time.Now()))
}
