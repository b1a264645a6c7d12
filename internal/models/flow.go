// Package models defines the workspace-level types shared by storage, the
// index and the flow service.
package models

import "time"

// FlowExt is the file suffix of saved flow documents.
const FlowExt = ".flow.json"

// FlowMetadata is a lightweight representation returned by list operations.
type FlowMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlowStats summarises a document's top level.
type FlowStats struct {
	Nodes       int `json:"nodes"`
	Connections int `json:"connections"`
	Groups      int `json:"groups"`
}

// NodeUsage counts how often a node type occurs in a flow, group internals
// included.
type NodeUsage struct {
	TypeID string `json:"type_id"`
	Count  int    `json:"count"`
}
