// Package flowdoc maps editor graphs to and from the JSON interchange
// document used for saved flows and for the clipboard.
package flowdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Version is written into every saved document.
const Version = "1.2"

// ErrMalformed rejects a document whose top level cannot be used at all.
var ErrMalformed = errors.New("flowdoc: malformed document")

// Document is the saved form of a graph.
type Document struct {
	Metadata    Metadata     `json:"metadata"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// Metadata describes a saved document.
type Metadata struct {
	Title   string `json:"title"`
	Created string `json:"created"`
	Version string `json:"version"`
}

// Position is a node center.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one serialized node. Group-only fields are omitted for plain nodes.
type Node struct {
	ID              string     `json:"id,omitempty"`
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Position        *Position  `json:"position,omitempty"`
	X               *float64   `json:"x,omitempty"`
	Y               *float64   `json:"y,omitempty"`
	Width           float64    `json:"width,omitempty"`
	Height          float64    `json:"height,omitempty"`
	InputPortCount  *int       `json:"inputPortCount,omitempty"`
	OutputPortCount *int       `json:"outputPortCount,omitempty"`
	CustomColor     string     `json:"customColor,omitempty"`
	DisplayTypeName string     `json:"displayTypeName,omitempty"`
	Parameters      Parameters `json:"parameters"`

	IsGroup             bool                 `json:"isGroup,omitempty"`
	InternalNodes       []Node               `json:"internalNodes,omitempty"`
	InternalConnections []LegacyConnection   `json:"internalConnections,omitempty"`
	ExternalConnections []ExternalConnection `json:"externalConnections,omitempty"`
	OriginalPositions   []OriginalPosition   `json:"originalPositions,omitempty"`
	GroupLevel          int                  `json:"groupLevel,omitempty"`
}

// Connection is a top-level connection. Older documents spell the endpoint
// keys fromNode/toNode.
type Connection struct {
	From     string `json:"from"`
	FromNode string `json:"fromNode,omitempty"`
	FromPort int    `json:"fromPort"`
	To       string `json:"to"`
	ToNode   string `json:"toNode,omitempty"`
	ToPort   int    `json:"toPort"`
	LineType *int   `json:"lineType,omitempty"`
}

func (c Connection) fromRef() string {
	if c.From != "" {
		return c.From
	}
	return c.FromNode
}

func (c Connection) toRef() string {
	if c.To != "" {
		return c.To
	}
	return c.ToNode
}

// LegacyConnection is a connection between internal nodes of a group. The
// node fields carry names; the id fields are written alongside so that
// duplicate names still resolve.
type LegacyConnection struct {
	FromNode string `json:"fromNode"`
	FromID   string `json:"fromId,omitempty"`
	FromPort int    `json:"fromPort"`
	ToNode   string `json:"toNode"`
	ToID     string `json:"toId,omitempty"`
	ToPort   int    `json:"toPort"`
	LineType *int   `json:"lineType,omitempty"`
}

// ExternalConnection records a boundary crossing captured when a group was
// formed. Node references are document ids.
type ExternalConnection struct {
	ExternalNode string `json:"externalNode"`
	ExternalPort int    `json:"externalPort"`
	InternalNode string `json:"internalNode"`
	InternalPort int    `json:"internalPort"`
	IsInput      bool   `json:"isInput"`
	LineType     *int   `json:"lineType,omitempty"`
}

// OriginalPosition is an internal node's position before grouping.
type OriginalPosition struct {
	NodeName string  `json:"nodeName"`
	NodeID   string  `json:"nodeId,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Parameters is the ordered parameter list of a node. It is written as a
// JSON array; objects are accepted on input and flattened to "key=value"
// entries in key order.
type Parameters []string

func (p Parameters) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(p))
}

func (p *Parameters) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = list
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("flowdoc: parameters: %w", err)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%v", k, obj[k]))
	}
	*p = out
	return nil
}

func intPtr(v int) *int { return &v }
