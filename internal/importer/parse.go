// ABOUTME: Format-specific parsers for ChatGPT, Claude and sekha's own export JSON
package importer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/repository"
)

type parsedConversation struct {
	Label    string
	Messages []repository.MessageInput
}

func parse(format domain.ImportSourceFormat, raw []byte) ([]parsedConversation, error) {
	switch format {
	case domain.ImportChatGPT:
		return parseChatGPT(raw)
	case domain.ImportClaude:
		return parseClaude(raw)
	case domain.ImportSekhaExport:
		return parseSekhaExport(raw)
	default:
		return nil, fmt.Errorf("unrecognized export format")
	}
}

// chatgptConversation mirrors the subset of OpenAI's conversations.json
// export this importer cares about: a DAG of mapping nodes, each carrying
// an optional message, walked in create_time order.
type chatgptConversation struct {
	Title   string `json:"title"`
	Mapping map[string]struct {
		Message *struct {
			Author struct {
				Role string `json:"role"`
			} `json:"author"`
			Content struct {
				Parts []string `json:"parts"`
			} `json:"content"`
			CreateTime float64 `json:"create_time"`
		} `json:"message"`
	} `json:"mapping"`
}

func parseChatGPT(raw []byte) ([]parsedConversation, error) {
	var single chatgptConversation
	var list []chatgptConversation

	if err := json.Unmarshal(raw, &list); err != nil {
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("parse chatgpt export: %w", err)
		}
		list = []chatgptConversation{single}
	}

	out := make([]parsedConversation, 0, len(list))
	for _, conv := range list {
		type ordered struct {
			t   float64
			msg repository.MessageInput
		}
		var msgs []ordered
		for _, node := range conv.Mapping {
			if node.Message == nil || len(node.Message.Content.Parts) == 0 {
				continue
			}
			role := mapRole(node.Message.Author.Role)
			if role == "" {
				continue
			}
			content := joinParts(node.Message.Content.Parts)
			if content == "" {
				continue
			}
			msgs = append(msgs, ordered{t: node.Message.CreateTime, msg: repository.MessageInput{Role: role, Content: content}})
		}
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].t < msgs[j].t })

		mi := make([]repository.MessageInput, 0, len(msgs))
		for _, m := range msgs {
			mi = append(mi, m.msg)
		}
		if len(mi) == 0 {
			continue
		}
		out = append(out, parsedConversation{Label: conv.Title, Messages: mi})
	}
	return out, nil
}

// claudeConversation mirrors Anthropic's export shape: a flat,
// already-ordered chat_messages array.
type claudeConversation struct {
	Name         string `json:"name"`
	ChatMessages []struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
	} `json:"chat_messages"`
}

func parseClaude(raw []byte) ([]parsedConversation, error) {
	var single claudeConversation
	var list []claudeConversation

	if err := json.Unmarshal(raw, &list); err != nil {
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("parse claude export: %w", err)
		}
		list = []claudeConversation{single}
	}

	out := make([]parsedConversation, 0, len(list))
	for _, conv := range list {
		mi := make([]repository.MessageInput, 0, len(conv.ChatMessages))
		for _, m := range conv.ChatMessages {
			role := mapRole(m.Sender)
			if role == "" || m.Text == "" {
				continue
			}
			mi = append(mi, repository.MessageInput{Role: role, Content: m.Text})
		}
		if len(mi) == 0 {
			continue
		}
		out = append(out, parsedConversation{Label: conv.Name, Messages: mi})
	}
	return out, nil
}

// sekhaExport is the JSON shape detected as a sekha export: a top-level
// sekha_export_version key and a conversations array. The memory_export
// tool emits YAML for one conversation, which this importer does not read.
type sekhaExport struct {
	Conversations []struct {
		Label    string `json:"label"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	} `json:"conversations"`
}

func parseSekhaExport(raw []byte) ([]parsedConversation, error) {
	var export sekhaExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("parse sekha export: %w", err)
	}

	out := make([]parsedConversation, 0, len(export.Conversations))
	for _, conv := range export.Conversations {
		mi := make([]repository.MessageInput, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			role := mapRole(m.Role)
			if role == "" || m.Content == "" {
				continue
			}
			mi = append(mi, repository.MessageInput{Role: role, Content: m.Content})
		}
		if len(mi) == 0 {
			continue
		}
		out = append(out, parsedConversation{Label: conv.Label, Messages: mi})
	}
	return out, nil
}

func mapRole(raw string) domain.Role {
	switch raw {
	case "user", "human":
		return domain.RoleUser
	case "assistant":
		return domain.RoleAssistant
	case "system":
		return domain.RoleSystem
	default:
		return ""
	}
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
