package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewOpenAIClient builds a client from oracle configuration.
func NewOpenAIClient(cfg *config.OracleConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, apperrors.NewConfigurationError("model", "oracle model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger.Named("oracle.openai"),
	}, nil
}

var _ Oracle = (*OpenAIClient)(nil)

// Decide implements Oracle.
func (c *OpenAIClient) Decide(ctx context.Context, messages []Message, tools []ToolDefinition) (*OracleResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &apperrors.OracleError{Message: "empty completion response"}
	}

	choice := resp.Choices[0].Message
	out := &OracleResponse{
		Text: choice.Content,
		Meta: Meta{
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		out.ToolCall = &ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		if len(choice.ToolCalls) > 1 {
			c.logger.Warn("oracle returned multiple tool calls, using the first",
				zap.Int("count", len(choice.ToolCalls)))
		}
		return out, nil
	}

	// Models without native tool calling emit fenced tool calls in text.
	if tc, cleaned, ok := parseTextToolCall(choice.Content); ok {
		out.Text = cleaned
		out.ToolCall = tc
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// XML fence format: <tool_call>{"name": "...", "arguments": {...}}</tool_call>
var textToolCallRe = regexp.MustCompile(`<tool_call>\s*(\{[\s\S]*?\})\s*</tool_call>`)

// parseTextToolCall extracts the first fenced tool call from model text and
// returns the text with the fence removed.
func parseTextToolCall(content string) (*ToolCall, string, bool) {
	match := textToolCallRe.FindStringSubmatch(content)
	if len(match) < 2 {
		return nil, content, false
	}

	var payload struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil || payload.Name == "" {
		return nil, content, false
	}

	args, err := json.Marshal(payload.Arguments)
	if err != nil {
		return nil, content, false
	}

	cleaned := strings.TrimSpace(textToolCallRe.ReplaceAllString(content, ""))
	return &ToolCall{
		ID:        fmt.Sprintf("text_tool_%s", payload.Name),
		Name:      payload.Name,
		Arguments: string(args),
	}, cleaned, true
}
