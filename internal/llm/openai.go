package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client on top of the OpenAI chat completions API.
type OpenAIClient struct {
	api        *openai.Client
	model      string
	smallModel string
	retry      RetryConfig
	logger     *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithSmallModel sets a cheaper model used for structured extraction calls.
func WithSmallModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.smallModel = model }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) OpenAIOption {
	return func(c *OpenAIClient) { c.retry = cfg }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(apiKey, baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		c.api = openai.NewClientWithConfig(cfg)
	}
}

// NewOpenAIClient creates a client for the given API key and primary model.
func NewOpenAIClient(apiKey, model string, logger *slog.Logger, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		api:        openai.NewClient(apiKey),
		model:      model,
		smallModel: model,
		retry:      DefaultRetryConfig(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatWithTools implements Client.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return classify(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewFatalError(errors.New("empty completion response"))
	}

	msg := resp.Choices[0].Message
	out := &Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	c.logger.Debug("chat completion",
		"model", c.model,
		"tool_calls", len(out.ToolCalls),
		"tokens", resp.Usage.TotalTokens)
	return out, nil
}

// StructuredCompletion implements Client. It uses the cheaper model since
// extraction calls run on every user message.
func (c *OpenAIClient) StructuredCompletion(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage, out any) error {
	req := openai.ChatCompletionRequest{
		Model:    c.smallModel,
		Messages: toOpenAIMessages(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return classify(callErr)
	})
	if err != nil {
		return fmt.Errorf("structured completion %q: %w", schemaName, err)
	}
	if len(resp.Choices) == 0 {
		return NewFatalError(errors.New("empty completion response"))
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		c.logger.Warn("model refused structured output", "schema", schemaName, "refusal", msg.Refusal)
		return fmt.Errorf("%w: %s", ErrRefusal, msg.Refusal)
	}
	if err := json.Unmarshal([]byte(msg.Content), out); err != nil {
		return NewFatalError(fmt.Errorf("decode structured output %q: %w", schemaName, err))
	}
	return nil
}

// TextCompletion implements Client.
func (c *OpenAIClient) TextCompletion(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return classify(callErr)
	})
	if err != nil {
		return "", fmt.Errorf("text completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", NewFatalError(errors.New("empty completion response"))
	}
	return resp.Choices[0].Message.Content, nil
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
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Strict:      t.Strict,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// classify maps provider errors onto the transient/fatal taxonomy.
// Rate limits, server errors and connection failures are retryable;
// auth and validation errors are not.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return NewTransientError(err)
		}
		return NewFatalError(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return NewTransientError(err)
		}
		return NewFatalError(err)
	}

	// Anything else is assumed to be a network-level failure.
	return NewTransientError(err)
}
