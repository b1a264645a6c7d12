package index

import "github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"

// FlowIndex defines the interface for flow indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type FlowIndex interface {
	UpsertFlow(f FlowRow, usage []models.NodeUsage) error
	DeleteFlow(path string) error
	GetChecksum(path string) (string, error)
	GetFlow(path string) (*FlowRow, error)
	ListFlows(limit, offset int, sort string) ([]FlowRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	FlowsUsingType(typeID string) ([]string, error)
	TypeUsage() ([]models.NodeUsage, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies FlowIndex at compile time.
var _ FlowIndex = (*DB)(nil)
