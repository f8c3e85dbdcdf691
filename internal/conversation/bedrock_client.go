package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/careline-ai/careline/internal/tools"
	"github.com/careline-ai/careline/pkg/logging"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient using the Bedrock Converse API with
// native tool calling.
type BedrockLLMClient struct {
	api    bedrockConverseAPI
	logger *logging.Logger
}

// NewBedrockLLMClient wraps a Bedrock runtime client.
func NewBedrockLLMClient(api bedrockConverseAPI, logger *logging.Logger) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BedrockLLMClient{api: api, logger: logger}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages, err := bedrockMessages(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = bedrockToolConfig(req.Tools)
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}

	resp, err := c.extractResponse(out)
	if err != nil {
		return LLMResponse{}, err
	}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockMessages(history []ChatMessage) ([]brtypes.Message, error) {
	messages := make([]brtypes.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case ChatRoleSystem:
			// System prompts travel in the System field; skip here.
			continue
		case ChatRoleUser:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: msg.Content},
				},
			})
		case ChatRoleAssistant:
			var blocks []brtypes.ContentBlock
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: msg.Content})
			}
			if msg.ToolUse != nil {
				var args map[string]any
				if len(msg.ToolUse.Input) > 0 {
					if err := json.Unmarshal(msg.ToolUse.Input, &args); err != nil {
						return nil, fmt.Errorf("conversation: replay tool input: %w", err)
					}
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(msg.ToolUse.ID),
						Name:      aws.String(msg.ToolUse.Name),
						Input:     document.NewLazyDocument(args),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: blocks,
			})
		case ChatRoleTool:
			if msg.ToolResult == nil {
				continue
			}
			status := brtypes.ToolResultStatusSuccess
			if msg.ToolResult.IsError {
				status = brtypes.ToolResultStatusError
			}
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{
						Value: brtypes.ToolResultBlock{
							ToolUseId: aws.String(msg.ToolResult.ToolUseID),
							Status:    status,
							Content: []brtypes.ToolResultContentBlock{
								&brtypes.ToolResultContentBlockMemberText{Value: msg.ToolResult.Content},
							},
						},
					},
				},
			})
		default:
			return nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}
	return messages, nil
}

func bedrockToolConfig(defs []tools.Definition) *brtypes.ToolConfiguration {
	list := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		list = append(list, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(def.Name),
				Description: aws.String(def.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(def.InputSchema()),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: list}
}

// extractResponse pulls the text and at most one tool request out of the
// model output. Extra tool requests in the same step are dropped with a
// warning; the model re-plans them after seeing the first result.
func (c *BedrockLLMClient) extractResponse(out *bedrockruntime.ConverseOutput) (LLMResponse, error) {
	if out == nil || out.Output == nil {
		return LLMResponse{}, errors.New("conversation: bedrock returned empty output")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return LLMResponse{}, fmt.Errorf("conversation: unexpected bedrock output %T", out.Output)
	}

	var resp LLMResponse
	var texts []string
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			texts = append(texts, b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			if resp.ToolUse != nil {
				c.logger.Warn("dropping extra tool request in one step",
					"tool", aws.ToString(b.Value.Name))
				continue
			}
			raw := json.RawMessage("{}")
			if b.Value.Input != nil {
				data, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return LLMResponse{}, fmt.Errorf("conversation: decode tool input: %w", err)
				}
				raw = data
			}
			resp.ToolUse = &ToolUse{
				ID:    aws.ToString(b.Value.ToolUseId),
				Name:  aws.ToString(b.Value.Name),
				Input: raw,
			}
		}
	}
	resp.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

var _ LLMClient = (*BedrockLLMClient)(nil)
