package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/careline-ai/careline/internal/tools"
)

// GeminiLLMClient implements LLMClient against Google's Gemini API. It is
// used as the fallback provider when Bedrock is unavailable.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

// Close releases the underlying API connection.
func (c *GeminiLLMClient) Close() error {
	return c.client.Close()
}

func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.TrimSpace(strings.Join(req.System, "\n\n"))
		if systemText != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini requires at least one message")
	}

	cs := model.StartChat()
	history, last, err := geminiHistory(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}
	cs.History = history

	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiExtract(resp)
}

func geminiDeclarations(defs []tools.Definition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		props := make(map[string]*genai.Schema, len(def.Fields))
		var required []string
		for _, f := range def.Fields {
			props[f.Name] = &genai.Schema{
				Type:        geminiType(f.Type),
				Description: f.Description,
				Enum:        f.Enum,
			}
			if f.Required {
				required = append(required, f.Name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// geminiHistory converts the transcript; the final message is returned
// separately as the parts to send.
func geminiHistory(messages []ChatMessage) ([]*genai.Content, []genai.Part, error) {
	var contents []*genai.Content
	for _, msg := range messages {
		content, err := geminiContent(msg)
		if err != nil {
			return nil, nil, err
		}
		if content != nil {
			contents = append(contents, content)
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("conversation: gemini has nothing to send")
	}
	last := contents[len(contents)-1]
	return contents[:len(contents)-1], last.Parts, nil
}

func geminiContent(msg ChatMessage) (*genai.Content, error) {
	switch msg.Role {
	case ChatRoleSystem:
		return nil, nil
	case ChatRoleUser:
		if strings.TrimSpace(msg.Content) == "" {
			return nil, nil
		}
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}}, nil
	case ChatRoleAssistant:
		var parts []genai.Part
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
		if msg.ToolUse != nil {
			var args map[string]any
			if len(msg.ToolUse.Input) > 0 {
				if err := json.Unmarshal(msg.ToolUse.Input, &args); err != nil {
					return nil, fmt.Errorf("conversation: replay tool input: %w", err)
				}
			}
			parts = append(parts, genai.FunctionCall{Name: msg.ToolUse.Name, Args: args})
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return &genai.Content{Role: "model", Parts: parts}, nil
	case ChatRoleTool:
		if msg.ToolResult == nil {
			return nil, nil
		}
		return &genai.Content{
			Role: "function",
			Parts: []genai.Part{genai.FunctionResponse{
				Name: msg.ToolResult.Name,
				Response: map[string]any{
					"content":  msg.ToolResult.Content,
					"is_error": msg.ToolResult.IsError,
				},
			}},
		}, nil
	default:
		return nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
	}
}

func geminiExtract(resp *genai.GenerateContentResponse) (LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}

	var out LLMResponse
	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			texts = append(texts, string(p))
		case genai.FunctionCall:
			if out.ToolUse != nil {
				continue
			}
			raw, err := json.Marshal(p.Args)
			if err != nil {
				return LLMResponse{}, fmt.Errorf("conversation: encode tool input: %w", err)
			}
			out.ToolUse = &ToolUse{
				ID:    "call_" + p.Name,
				Name:  p.Name,
				Input: raw,
			}
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	out.StopReason = resp.Candidates[0].FinishReason.String()

	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = TokenUsage{
			InputTokens:  usage.PromptTokenCount,
			OutputTokens: usage.CandidatesTokenCount,
			TotalTokens:  usage.TotalTokenCount,
		}
	}
	return out, nil
}

var _ LLMClient = (*GeminiLLMClient)(nil)
