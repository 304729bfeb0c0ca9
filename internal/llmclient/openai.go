package llmclient

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// OpenAIClient implements Client against an OpenAI-compatible chat
// completion endpoint (also used to talk to Azure OpenAI deployments
// when configured with an Azure base URL), grounded on the teacher's
// single-purpose ollama.Client wrapper.
type OpenAIClient struct {
	inner      *openai.Client
	deployment string
}

// NewOpenAIClient builds a client pointed at endpoint using apiKey,
// sending requests to the named deployment/model.
func NewOpenAIClient(endpoint, apiKey, deployment string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &OpenAIClient{inner: openai.NewClientWithConfig(cfg), deployment: deployment}
}

func toOpenAIMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return out
}

// Complete sends systemPrompt + messages to the configured deployment
// and returns the first choice's content, classified per domain.ErrorKind.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, messages []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.deployment,
		Messages:    toOpenAIMessages(systemPrompt, messages),
		Temperature: float32(opts.Temperature),
	}

	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewError(domain.KindTransient, "llmclient.Complete", errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.NewError(domain.KindTransient, "llmclient.Complete", err)
		}
		return domain.NewError(domain.KindCancelled, "llmclient.Complete", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewError(classifyHTTPStatus(apiErr.HTTPStatusCode), "llmclient.Complete", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewError(classifyHTTPStatus(reqErr.HTTPStatusCode), "llmclient.Complete", err)
	}

	return domain.NewError(domain.KindTransient, "llmclient.Complete", err)
}
