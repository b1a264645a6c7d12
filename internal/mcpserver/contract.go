package mcpserver

// FlowFormatContract describes the JSON flow document that LLM consumers
// should produce when creating or replacing flows.
const FlowFormatContract = `# DAGflow Flow Format

Every flow stored in the workspace is a UTF-8 JSON file whose name ends
with ` + "`" + `.flow.json` + "`" + `.

## Structure

` + "```" + `json
{
  "metadata": {"title": "Receiver", "created": "2026-01-20T10:00:00Z", "version": "1.2"},
  "nodes": [
    {"id": "src", "type": "signal_source", "name": "Source",
     "position": {"x": 0, "y": 0}, "inputPortCount": 0, "outputPortCount": 1,
     "parameters": ["rate=48000"]},
    {"id": "flt", "type": "filter", "name": "Low pass",
     "position": {"x": 200, "y": 0}, "inputPortCount": 1, "outputPortCount": 1,
     "parameters": []}
  ],
  "connections": [
    {"from": "src", "fromPort": 0, "to": "flt", "toPort": 0, "lineType": 0}
  ]
}
` + "```" + `

## Rules

1. **` + "`" + `nodes` + "`" + ` is required** and must be an array. ` + "`" + `connections` + "`" + ` may be omitted.
2. **Node ids** are unique strings. Connections reference nodes by id; a name
   is accepted when no id matches.
3. **Positions** are node centers in scene coordinates.
4. **Ports** are zero-based. ` + "`" + `fromPort` + "`" + ` indexes the source's outputs and
   ` + "`" + `toPort` + "`" + ` the target's inputs. Connections to unknown nodes or
   out-of-range ports are dropped on load.
5. **lineType** is 0 (bezier), 1 (straight) or 2 (orthogonal). Default 0.
6. **parameters** is an array of ` + "`" + `key=value` + "`" + ` strings. An object of
   key/value pairs is accepted and converted.
7. **Types** should come from ` + "`" + `list_templates` + "`" + `. Unknown types keep the
   port counts given in the document.

## Groups

A group node has ` + "`" + `"isGroup": true` + "`" + ` and carries its members:

- ` + "`" + `internalNodes` + "`" + `: member nodes in the same node format.
- ` + "`" + `internalConnections` + "`" + `: ` + "`" + `{"fromNode", "fromId", "fromPort", "toNode", "toId", "toPort"}` + "`" + `
  between members.
- ` + "`" + `externalConnections` + "`" + `: ` + "`" + `{"externalNode", "externalPort", "internalNode", "internalPort", "isInput"}` + "`" + `
  linking members to nodes outside the group.
- ` + "`" + `originalPositions` + "`" + `: ` + "`" + `{"nodeId", "x", "y"}` + "`" + ` used when the group is expanded.
- ` + "`" + `groupLevel` + "`" + `: 1 to 100.

Prefer the ` + "`" + `group_nodes` + "`" + ` and ` + "`" + `ungroup_node` + "`" + ` tools over writing groups by hand.

## Editing

Edits made through ` + "`" + `add_node` + "`" + `, ` + "`" + `connect_nodes` + "`" + `, ` + "`" + `group_nodes` + "`" + ` and
` + "`" + `ungroup_node` + "`" + ` stay in an editing session until ` + "`" + `commit_flow` + "`" + ` writes
them back. A commit fails if the file changed on disk in the meantime.
`
