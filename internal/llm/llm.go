// Package llm wraps the OpenAI chat completion API behind a small interface
// so execution paths can be exercised with scripted streams in tests.
package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Stream yields incremental chunks of a streaming chat completion.
type Stream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Client is the subset of the completion API the service depends on.
type Client interface {
	StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error)
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey)}
}

func (o *OpenAI) StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error) {
	req.Stream = true
	return o.client.CreateChatCompletionStream(ctx, req)
}

func (o *OpenAI) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return o.client.CreateChatCompletion(ctx, req)
}
