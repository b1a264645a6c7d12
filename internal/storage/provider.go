// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns metadata for every flow document under dir (relative to the workspace root).
	List(dir string) ([]models.FlowMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
