package flowservice

import (
	"log/slog"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/sse"
)

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishFlowEvent(kind, path string)
}

// EditorConfig holds per-session editor defaults.
type EditorConfig struct {
	PasteOffset float64
	UndoLimit   int
	LineType    geometry.LineType
}

// DefaultEditorConfig matches the desktop editor.
func DefaultEditorConfig() EditorConfig {
	return EditorConfig{PasteOffset: 20, UndoLimit: 0, LineType: geometry.Bezier}
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends flow and scene events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithMetrics records command and session metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEditor overrides the editor defaults.
func WithEditor(cfg EditorConfig) Option {
	return func(s *Service) { s.editor = cfg }
}
