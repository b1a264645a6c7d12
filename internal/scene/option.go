package scene

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
)

// Catalog resolves node types. *catalog.Library satisfies it.
type Catalog interface {
	Get(typeID string) (catalog.Template, bool)
}

// Option configures a Scene.
type Option func(*Scene)

// WithCatalog makes AddNode accept only known types and style new nodes
// from their template.
func WithCatalog(c Catalog) Option {
	return func(s *Scene) {
		s.catalog = c
	}
}

// WithUndoLimit caps the undo history. Zero keeps everything.
func WithUndoLimit(n int) Option {
	return func(s *Scene) {
		s.undoLimit = n
	}
}

// WithLineType sets the line type of connections made by the user.
func WithLineType(lt geometry.LineType) Option {
	return func(s *Scene) {
		s.lineType = lt
	}
}
