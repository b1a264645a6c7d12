package flowservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/checksum"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/command"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/scene"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/sse"
)

// session is one flow loaded into a scene. mu guards every field.
type session struct {
	mu    sync.Mutex
	path  string
	title string
	scene *scene.Scene
	base  string // checksum of the document the scene was loaded from
	dirty bool
}

func (sess *session) reload(data []byte) error {
	meta, err := sess.scene.Load(data)
	if err != nil {
		return err
	}
	sess.title = meta.Title
	if sess.title == "" {
		sess.title = titleFromPath(sess.path)
	}
	sess.base = checksum.Sum(data)
	sess.dirty = false
	return nil
}

func (s *Service) newScene() *scene.Scene {
	opts := []scene.Option{
		scene.WithUndoLimit(s.editor.UndoLimit),
		scene.WithLineType(s.editor.LineType),
	}
	if s.lib != nil {
		opts = append(opts, scene.WithCatalog(s.lib))
	}
	return scene.New(opts...)
}

// Open loads p into an editing session, or returns the existing one.
func (s *Service) Open(ctx context.Context, p string) (*SessionState, error) {
	sess, err := s.open(ctx, p)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

func (s *Service) open(_ context.Context, p string) (*session, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if sess := s.session(p); sess != nil {
		return sess, nil
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}

	sess := &session{path: p, scene: s.newScene()}
	if err := sess.reload(data); err != nil {
		return nil, fmt.Errorf("flowservice: open %s: %w: %v", p, apperr.ErrInvalid, err)
	}
	sess.scene.Subscribe(func(e scene.Event) {
		if e.Kind != scene.EventHistoryChanged {
			return
		}
		if e.History.Action != command.ActionClear {
			sess.dirty = true
		}
		if s.metrics != nil {
			kind := ""
			if e.History.Action != command.ActionClear {
				kind = e.History.Kind.String()
			}
			s.metrics.CommandApplied(kind, string(e.History.Action))
		}
	})

	s.mu.Lock()
	if existing, ok := s.sessions[p]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[p] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.OpenSessions.Set(float64(n))
	}
	s.logger.Debug("flowservice: session opened", slog.String("path", p))
	return sess, nil
}

// CloseSession discards the session for p and any unsaved edits.
func (s *Service) CloseSession(_ context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	if !s.dropSession(p) {
		return apperr.ErrNotFound
	}
	return nil
}

// State snapshots the open session for p, opening it if needed.
func (s *Service) State(ctx context.Context, p string) (*SessionState, error) {
	return s.Open(ctx, p)
}

// Commit writes the session's scene back to its file. The write is refused
// with ErrConflict when the file changed on disk since the session loaded.
func (s *Service) Commit(_ context.Context, p string) (*FlowDetail, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	sess := s.session(p)
	if sess == nil {
		return nil, apperr.ErrNotFound
	}

	sess.mu.Lock()
	current, err := s.read(p)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if checksum.Sum(current) != sess.base {
		sess.mu.Unlock()
		return nil, apperr.ErrConflict
	}
	data, err := sess.scene.Save(sess.title)
	if err == nil {
		err = s.write(p, data)
	}
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.base = checksum.Sum(data)
	sess.dirty = false
	sess.mu.Unlock()

	s.flowEvent(index.FlowUpdated, p)
	s.publishScene(sess, "commit")
	return s.detail(p, data)
}

// Validate reports whether every connection of p joins two live nodes. An
// open session is checked as edited; otherwise the file on disk is.
func (s *Service) Validate(ctx context.Context, p string) (bool, error) {
	p, err := CleanPath(p)
	if err != nil {
		return false, err
	}
	if sess := s.session(p); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.scene.ValidateFlow(), nil
	}
	data, err := s.read(p)
	if err != nil {
		return false, err
	}
	return ValidateDocument(data)
}

// ValidateDocument loads data into a scratch scene and validates it.
func ValidateDocument(data []byte) (bool, error) {
	sc := scene.New()
	if _, err := sc.Load(data); err != nil {
		return false, fmt.Errorf("flowservice: validate: %w: %v", apperr.ErrInvalid, err)
	}
	return sc.ValidateFlow(), nil
}

func (s *Service) session(p string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[p]
}

func (s *Service) dropSession(p string) bool {
	s.mu.Lock()
	_, ok := s.sessions[p]
	delete(s.sessions, p)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok && s.metrics != nil {
		s.metrics.OpenSessions.Set(float64(n))
	}
	return ok
}

func (s *Service) openSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// publishScene announces a session change. It takes sess.mu itself.
func (s *Service) publishScene(sess *session, op string) {
	if s.pub == nil {
		return
	}
	sess.mu.Lock()
	p := sess.path
	texts, idx := sess.scene.History()
	data := map[string]any{
		"path":          p,
		"op":            op,
		"nodes":         len(sess.scene.Nodes()),
		"connections":   len(sess.scene.Connections()),
		"history_index": idx,
		"history_size":  len(texts),
		"dirty":         sess.dirty,
	}
	sess.mu.Unlock()
	s.pub.Publish(sse.Event{Type: sse.TypeSceneChanged, Path: p, Data: data})
}
