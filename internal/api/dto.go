package api

import (
	"encoding/json"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
)

// CreateFlowRequest is the request body for creating a flow. Document is
// optional; an empty flow is created without it.
type CreateFlowRequest struct {
	Path     string          `json:"path" example:"radio/rx.flow.json"`
	Document json.RawMessage `json:"document,omitempty"`
}

// MoveFlowRequest is the request body for renaming a flow.
type MoveFlowRequest struct {
	To string `json:"to" example:"archive/rx.flow.json"`
}

// FlowDetail is the full flow response type.
type FlowDetail = flowservice.FlowDetail

// FlowListItem is a lightweight item in a list response.
type FlowListItem = flowservice.FlowListItem

// FlowListResponse wraps paginated flow listings.
type FlowListResponse struct {
	Flows []FlowListItem `json:"flows"`
	Total int            `json:"total" example:"42"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path  string `json:"path" example:"radio/rx.flow.json"`
	Title string `json:"title" example:"Receiver"`
	Match string `json:"match" example:"filter"`
}

func searchResults(in []index.SearchResult) []SearchResult {
	out := make([]SearchResult, len(in))
	for i, r := range in {
		out[i] = SearchResult(r)
	}
	return out
}

// ValidateResponse reports flow validity.
type ValidateResponse struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
}
