// ABOUTME: MCP tool definitions and registration for the sekha server (spec.md section 6)
// ABOUTME: Registration style kept from the teacher's tools.go; tool set replaced wholesale
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/sekha/internal/assembler"
	"github.com/harper/sekha/internal/labelprune"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/retrieval"
	"github.com/harper/sekha/internal/rollup"
)

// RegisterTools registers sekha's 7 named MCP tools (spec.md section 6).
func RegisterTools(server *mcpserver.MCPServer, repo *repository.Repository, ret *retrieval.Retrieval, asm *assembler.Assembler, roll *rollup.Engine, lp *labelprune.Intelligence) *Handlers {
	h := &Handlers{repo: repo, retrieval: ret, assembler: asm, rollup: roll, labelprune: lp}

	server.AddTool(mcp.Tool{
		Name:        "memory_store",
		Description: "Store a conversation (label, folder, and an ordered list of role/content messages) in sekha's persistent memory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"label":  map[string]interface{}{"type": "string", "description": "Human-readable topic label"},
				"folder": map[string]interface{}{"type": "string", "description": "Hierarchical folder path, e.g. /work/project-x"},
				"messages": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"role":    map[string]interface{}{"type": "string", "enum": []string{"user", "assistant", "system"}},
							"content": map[string]interface{}{"type": "string"},
						},
						"required": []string{"role", "content"},
					},
				},
			},
			Required: []string{"messages"},
		},
	}, h.MemoryStore)

	server.AddTool(mcp.Tool{
		Name:        "memory_query",
		Description: "Search stored memory hybrid (semantic + full-text) for messages relevant to a query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "number", "default": 20},
			},
			Required: []string{"query"},
		},
	}, h.MemoryQuery)

	server.AddTool(mcp.Tool{
		Name:        "memory_get_context",
		Description: "Assemble a token-budgeted context window of the most relevant prior messages for a query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":        map[string]interface{}{"type": "string"},
				"token_budget": map[string]interface{}{"type": "number", "default": 2000},
			},
			Required: []string{"query", "token_budget"},
		},
	}, h.MemoryGetContext)

	server.AddTool(mcp.Tool{
		Name:        "memory_create_label",
		Description: "Suggest topic labels for a transcript, snapped onto the existing label vocabulary where close enough.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"transcript": map[string]interface{}{"type": "string"},
			},
			Required: []string{"transcript"},
		},
	}, h.MemoryCreateLabel)

	server.AddTool(mcp.Tool{
		Name:        "memory_prune_suggest",
		Description: "List conversations eligible for archival: importance 3 or lower, active (not pinned or archived), not updated within threshold_days.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"threshold_days": map[string]interface{}{"type": "number", "default": 90},
			},
		},
	}, h.MemoryPruneSuggest)

	server.AddTool(mcp.Tool{
		Name:        "memory_export",
		Description: "Export a conversation's full message history as YAML.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"conversation_id"},
		},
	}, h.MemoryExport)

	server.AddTool(mcp.Tool{
		Name:        "memory_stats",
		Description: "Report conversation/message counts and embedding queue health, optionally scoped to a folder.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"folder": map[string]interface{}{"type": "string"},
			},
		},
	}, h.MemoryStats)

	return h
}
