// ABOUTME: MCP tool handler implementations; every tool returns {success, data|null, error|null}
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/harper/sekha/internal/assembler"
	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/labelprune"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/retrieval"
	"github.com/harper/sekha/internal/rollup"
)

type Handlers struct {
	repo       *repository.Repository
	retrieval  *retrieval.Retrieval
	assembler  *assembler.Assembler
	rollup     *rollup.Engine
	labelprune *labelprune.Intelligence
}

type toolEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Error   any  `json:"error"`
}

func resultOK(data any) (*mcp.CallToolResult, error) {
	buf, err := json.Marshal(toolEnvelope{Success: true, Data: data})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(buf)), nil
}

func resultErr(err error) (*mcp.CallToolResult, error) {
	buf, marshalErr := json.Marshal(toolEnvelope{Success: false, Error: err.Error()})
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(buf)), nil
}

type messageArg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handlers) MemoryStore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label := request.GetString("label", "")
	folder := request.GetString("folder", "/")
	if folder == "" {
		folder = "/"
	}

	var messages []messageArg
	args := request.GetArguments()
	if raw, ok := args["messages"]; ok {
		buf, _ := json.Marshal(raw)
		if err := json.Unmarshal(buf, &messages); err != nil {
			return resultErr(fmt.Errorf("messages must be an array of {role, content} objects: %w", err))
		}
	}
	if len(messages) == 0 {
		return resultErr(fmt.Errorf("messages argument is required and must be non-empty"))
	}

	inputs := make([]repository.MessageInput, 0, len(messages))
	for _, m := range messages {
		inputs = append(inputs, repository.MessageInput{Role: domain.Role(m.Role), Content: m.Content})
	}

	conv, err := h.repo.StoreConversation(ctx, label, folder, inputs)
	if err != nil {
		return resultErr(err)
	}
	return resultOK(conv)
}

func (h *Handlers) MemoryQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return resultErr(fmt.Errorf("query argument is required"))
	}
	limit := request.GetInt("limit", 20)

	resp, err := h.retrieval.Hybrid(ctx, query, limit, 0, retrieval.Filter{}, 0.7)
	if err != nil {
		return resultErr(err)
	}
	return resultOK(resp)
}

func (h *Handlers) MemoryGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return resultErr(fmt.Errorf("query argument is required"))
	}
	budget := request.GetInt("token_budget", 2000)

	resp, err := h.assembler.Assemble(ctx, assembler.Request{Query: query, TokenBudget: budget, ExcludeIDs: map[string]bool{}})
	if err != nil {
		return resultErr(err)
	}
	return resultOK(resp)
}

func (h *Handlers) MemoryCreateLabel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := request.RequireString("transcript")
	if err != nil {
		return resultErr(fmt.Errorf("transcript argument is required"))
	}

	suggestions, err := h.labelprune.SuggestLabels(ctx, transcript)
	if err != nil {
		return resultErr(err)
	}
	return resultOK(suggestions)
}

func (h *Handlers) MemoryPruneSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	thresholdDays := request.GetInt("threshold_days", 90)

	candidates, err := h.labelprune.PruneCandidates(thresholdDays)
	if err != nil {
		return resultErr(err)
	}
	return resultOK(candidates)
}

type exportedMessage struct {
	Role      string `yaml:"role"`
	Content   string `yaml:"content"`
	Timestamp string `yaml:"timestamp"`
}

type exportedConversation struct {
	Label    string            `yaml:"label"`
	Folder   string            `yaml:"folder"`
	Messages []exportedMessage `yaml:"messages"`
}

func (h *Handlers) MemoryExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return resultErr(fmt.Errorf("conversation_id argument is required"))
	}

	conv, err := h.repo.GetConversation(conversationID)
	if err != nil {
		return resultErr(err)
	}
	messages, err := h.repo.GetMessageList(conversationID)
	if err != nil {
		return resultErr(err)
	}

	export := exportedConversation{Label: conv.Label, Folder: conv.Folder}
	for _, m := range messages {
		export.Messages = append(export.Messages, exportedMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	buf, err := yaml.Marshal(export)
	if err != nil {
		return resultErr(fmt.Errorf("marshal export: %w", err))
	}
	return resultOK(map[string]any{"yaml": string(buf)})
}

func (h *Handlers) MemoryStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := request.GetString("folder", "")

	conversations, messages, err := h.repo.GetStats(folder)
	if err != nil {
		return resultErr(err)
	}
	return resultOK(map[string]any{
		"conversations":  conversations,
		"messages":       messages,
		"queue_depth":    h.repo.Queue().Depth(),
		"queue_degraded": h.repo.Queue().Degraded(),
	})
}
