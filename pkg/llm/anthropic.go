package llm

import (
	"context"
	"encoding/json"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

const anthropicMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API with native tool use.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewAnthropicClient builds a client from oracle configuration.
func NewAnthropicClient(cfg *config.OracleConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, apperrors.NewConfigurationError("model", "oracle model is required")
	}
	if cfg.APIKey == "" {
		return nil, apperrors.NewConfigurationError("api_key", "oracle api key is required")
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger.Named("oracle.anthropic"),
	}, nil
}

var _ Oracle = (*AnthropicClient)(nil)

// Decide implements Oracle.
func (c *AnthropicClient) Decide(ctx context.Context, messages []Message, tools []ToolDefinition) (*OracleResponse, error) {
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
	}
	if c.temperature > 0 {
		temp := c.temperature
		req.Temperature = &temp
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, anthropic.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	// The Messages API takes the system prompt out of band and has no
	// tool role; tool results travel as user-role tool_result blocks.
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			req.System = m.Content
		case RoleUser:
			req.Messages = append(req.Messages, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		case RoleAssistant:
			var content []anthropic.MessageContent
			if m.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content = append(content, anthropic.MessageContent{
					Type: anthropic.MessagesContentTypeToolUse,
					MessageContentToolUse: &anthropic.MessageContentToolUse{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(tc.Arguments),
					},
				})
			}
			req.Messages = append(req.Messages, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})
		case RoleTool:
			req.Messages = append(req.Messages, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewToolResultMessageContent(m.ToolCallID, m.Content, false),
				},
			})
		}
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, ClassifyError(err)
	}

	out := &OracleResponse{
		Meta: Meta{
			Model:            string(resp.Model),
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch {
		case block.Type == anthropic.MessagesContentTypeText && block.Text != nil:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += *block.Text
		case block.Type == anthropic.MessagesContentTypeToolUse && block.MessageContentToolUse != nil:
			if out.ToolCall != nil {
				c.logger.Warn("oracle returned multiple tool calls, using the first")
				continue
			}
			out.ToolCall = &ToolCall{
				ID:        block.MessageContentToolUse.ID,
				Name:      block.MessageContentToolUse.Name,
				Arguments: string(block.MessageContentToolUse.Input),
			}
		}
	}
	return out, nil
}
