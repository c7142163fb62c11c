package agent

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// streamOnce performs a single streaming completion, forwarding content
// deltas as token events and accumulating any tool calls the model produces.
// Tool call fragments arrive indexed across chunks and are reassembled here.
func (a *Agent) streamOnce(ctx context.Context, em *emitter, messages []openai.ChatCompletionMessage, toolChoice any) (string, []openai.ToolCall, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.config.Model,
		Messages:    messages,
		Temperature: a.config.Temperature,
	}
	if defs := a.tools.Definitions(); len(defs) > 0 {
		req.Tools = defs
	}
	if toolChoice != nil {
		req.ToolChoice = toolChoice
	}

	stream, err := a.llm.StreamChat(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var calls []openai.ToolCall

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if !em.token(delta.Content) {
				return "", nil, ctx.Err()
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Function.Name = tc.Function.Name
			}
			calls[idx].Function.Arguments += tc.Function.Arguments
		}
	}

	return content.String(), calls, nil
}
