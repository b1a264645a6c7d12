// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes flow editing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
)

const formatURI = "dagflow://flow-format"

// Server wraps the MCP server with flow tools.
type Server struct {
	mcp *server.MCPServer
	svc *flowservice.Service
}

// New creates a new MCP server with all flow tools registered.
func New(svc *flowservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"DAGflow",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_flows",
		mcp.WithDescription("Search flows by title or by the node types they contain."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchFlows)

	s.mcp.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows in the workspace, one path per line."),
	), s.listFlows)

	s.mcp.AddTool(mcp.NewTool("read_flow",
		mcp.WithDescription("Read the JSON document of a flow."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the flow (e.g. radio/rx.flow.json)")),
	), s.readFlow)

	s.mcp.AddTool(mcp.NewTool("create_flow",
		mcp.WithDescription("Create a flow at the specified path. The document MUST follow "+
			"the flow format; read it first via get_flow_format or the "+formatURI+" resource. "+
			"Omit the document to create an empty flow."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new flow (must end with .flow.json)")),
		mcp.WithString("document", mcp.Description("Flow document JSON")),
	), s.createFlow)

	s.mcp.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node of a catalog type to a flow's editing session. Returns the new node id."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type id from list_templates")),
		mcp.WithNumber("x", mcp.Description("Scene x coordinate of the node center")),
		mcp.WithNumber("y", mcp.Description("Scene y coordinate of the node center")),
	), s.addNode)

	s.mcp.AddTool(mcp.NewTool("connect_nodes",
		mcp.WithDescription("Connect an output port of one node to an input port of another."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithNumber("from_port", mcp.Description("Source output port index")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithNumber("to_port", mcp.Description("Target input port index")),
	), s.connectNodes)

	s.mcp.AddTool(mcp.NewTool("group_nodes",
		mcp.WithDescription("Collapse two or more nodes into a group node. Returns the group id."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
		mcp.WithArray("nodes", mcp.Required(), mcp.WithStringItems(), mcp.Description("Ids of the nodes to group")),
		mcp.WithString("name", mcp.Description("Group name")),
	), s.groupNodes)

	s.mcp.AddTool(mcp.NewTool("ungroup_node",
		mcp.WithDescription("Expand a group node back into its members."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Group node id")),
	), s.ungroupNode)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last edit in a flow's editing session."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("commit_flow",
		mcp.WithDescription("Write a flow's editing session back to the workspace."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
	), s.commitFlow)

	s.mcp.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Check that every connection in a flow joins two live nodes."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Flow path")),
	), s.validateFlow)

	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the node types available in the catalog."),
	), s.listTemplates)

	s.mcp.AddTool(mcp.NewTool("get_flow_format",
		mcp.WithDescription("Returns the flow document format. "+
			"Call this before creating flows to ensure correct structure."),
	), s.getFlowFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Flow Format",
			mcp.WithResourceDescription("JSON format that all flow documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFlowFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// apply runs one editing op and reports the ids it created.
func (s *Server) apply(ctx context.Context, path string, op flowservice.Op) *mcp.CallToolResult {
	res, err := s.svc.Apply(ctx, path, op)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if !res.Applied {
		return mcp.NewToolResultError(fmt.Sprintf("%s had no effect", op.Op))
	}
	if len(res.Created) == 0 {
		return mcp.NewToolResultText("ok")
	}
	return mcp.NewToolResultText(strings.Join(res.Created, "\n"))
}

func (s *Server) searchFlows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listFlows(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.List(ctx, 1000, 0, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flow, err := s.svc.Get(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(flow.Document)), nil
}

func (s *Server) createFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc := req.GetString("document", "")
	flow, err := s.svc.Create(ctx, path, []byte(doc))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", flow.Path)), nil
}

func (s *Server) addNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typeID, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos := &flowservice.Point{X: req.GetFloat("x", 0), Y: req.GetFloat("y", 0)}
	return s.apply(ctx, path, flowservice.Op{Op: "add_node", Type: typeID, Position: pos}), nil
}

func (s *Server) connectNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.apply(ctx, path, flowservice.Op{
		Op:       "connect",
		From:     from,
		FromPort: req.GetInt("from_port", 0),
		To:       to,
		ToPort:   req.GetInt("to_port", 0),
	}), nil
}

func (s *Server) groupNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := req.RequireStringSlice("nodes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.apply(ctx, path, flowservice.Op{Op: "group", Nodes: nodes, Name: req.GetString("name", "")}), nil
}

func (s *Server) ungroupNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.apply(ctx, path, flowservice.Op{Op: "ungroup", Node: node}), nil
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.apply(ctx, path, flowservice.Op{Op: "undo"}), nil
}

func (s *Server) commitFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flow, err := s.svc.Commit(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (%d nodes, %d connections)",
		flow.Path, flow.Stats.Nodes, flow.Stats.Connections)), nil
}

func (s *Server) validateFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	valid, err := s.svc.Validate(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !valid {
		return mcp.NewToolResultText("invalid: a connection references a node that is not in the flow"), nil
	}
	return mcp.NewToolResultText("valid"), nil
}

func (s *Server) listTemplates(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Templates()), nil
}

func (s *Server) getFlowFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FlowFormatContract), nil
}

func (s *Server) readFlowFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FlowFormatContract,
		},
	}, nil
}
