// Package agent routes a classified request onto one of two execution
// strategies: a single LLM call with bound tools, or a multi-step state
// machine that loops through tool invocations. Both emit the same event
// vocabulary.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/tools"
)

// userSafeError is the sanitized message surfaced on terminal error events.
// The original error is only logged.
const userSafeError = "The assistant ran into a problem while processing this request. Please try again."

type Config struct {
	Model string
	// EnableMultiStep gates the graph path. When false every request takes
	// the single-call path regardless of classification (conservative bias).
	EnableMultiStep bool
	// MaxRounds caps tool-use iterations on the multi-step path.
	MaxRounds   int
	Temperature float32
}

func DefaultConfig(model string) Config {
	return Config{Model: model, EnableMultiStep: true, MaxRounds: 6, Temperature: 0.7}
}

type Agent struct {
	systemPrompt string
	config       Config
	llm          llm.Client
	tools        *tools.Registry
	logger       *zap.Logger
}

func New(systemPrompt string, config Config, llmClient llm.Client, registry *tools.Registry, logger *zap.Logger) *Agent {
	if config.MaxRounds <= 0 {
		config.MaxRounds = 6
	}
	return &Agent{
		systemPrompt: systemPrompt,
		config:       config,
		llm:          llmClient,
		tools:        registry,
		logger:       logger,
	}
}

// Execute runs the request and returns a stream of normalized events. The
// channel is closed after the terminal event, or early when ctx is cancelled
// (client disconnect); in-flight tool results are then discarded.
func (a *Agent) Execute(ctx context.Context, input string, classification models.ClassificationResult, window *models.ContextWindow) <-chan Event {
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)
		em := &emitter{ctx: ctx, ch: ch}

		multiStep := a.config.EnableMultiStep && classification.ShouldUseMultiStep
		a.logger.Info("executing request",
			zap.Bool("multi_step", multiStep),
			zap.Float64("confidence", classification.Confidence),
			zap.String("force_tool", classification.ForceToolCall))

		if multiStep {
			a.runMultiStep(ctx, em, input, classification, window)
		} else {
			a.runSimple(ctx, em, input, classification, window)
		}
	}()

	return ch
}

// runSimple performs one streaming completion with tools bound. If the model
// requests tool calls they are executed sequentially, followed by a single
// follow-up streaming call for the final answer.
func (a *Agent) runSimple(ctx context.Context, em *emitter, input string, classification models.ClassificationResult, window *models.ContextWindow) {
	messages := a.buildMessages(input, window)

	content, calls, err := a.streamOnce(ctx, em, messages, a.toolChoice(classification))
	if err != nil {
		a.logger.Error("simple path completion failed", zap.Error(err))
		em.fail(userSafeError)
		return
	}

	if len(calls) == 0 {
		em.finish(content)
		return
	}

	messages = append(messages, assistantToolCallMessage(content, calls))
	for _, call := range calls {
		result, err := a.invokeTool(ctx, em, call)
		if err != nil {
			a.logger.Error("tool call failed",
				zap.String("tool", call.Function.Name), zap.Error(err))
			em.fail(userSafeError)
			return
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    result,
		})
	}

	answer, _, err := a.streamOnce(ctx, em, messages, nil)
	if err != nil {
		a.logger.Error("simple path follow-up failed", zap.Error(err))
		em.fail(userSafeError)
		return
	}
	em.finish(answer)
}

// invokeTool dispatches one tool call, emitting the start and result events.
// The call is synchronous: execution blocks here until the tool returns.
func (a *Agent) invokeTool(ctx context.Context, em *emitter, call openai.ToolCall) (string, error) {
	em.emit(Event{
		Type:       EventToolCallStart,
		ToolName:   call.Function.Name,
		ToolCallID: call.ID,
		ToolInput:  json.RawMessage(call.Function.Arguments),
	})

	tool, ok := a.tools.Get(call.Function.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}

	result, err := tool.Call(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		return "", err
	}

	em.emit(Event{
		Type:       EventToolCallResult,
		ToolName:   call.Function.Name,
		ToolCallID: call.ID,
		ToolResult: result,
	})
	return result, nil
}

// toolChoice maps a forced classification onto the completion API directive.
func (a *Agent) toolChoice(classification models.ClassificationResult) any {
	if classification.ForceToolCall == "" {
		return nil
	}
	if _, ok := a.tools.Get(classification.ForceToolCall); !ok {
		return nil
	}
	return openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: classification.ForceToolCall},
	}
}

// buildMessages assembles the prompt: system prompt plus context block,
// recent history (user/assistant turns only), then the new input.
func (a *Agent) buildMessages(input string, window *models.ContextWindow) []openai.ChatCompletionMessage {
	system := a.systemPrompt
	if block := contextBlock(window); block != "" {
		system += "\n\n" + block
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	if window != nil {
		for _, msg := range window.RecentHistory {
			switch msg.Role {
			case models.RoleUser:
				messages = append(messages, openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleUser, Content: msg.Content,
				})
			case models.RoleAssistant:
				messages = append(messages, openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant, Content: msg.Content,
				})
			}
		}
	}
	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: input,
	})
}

func contextBlock(window *models.ContextWindow) string {
	if window == nil {
		return ""
	}
	var b strings.Builder
	if window.Summary != nil && window.Summary.Content != "" {
		b.WriteString("Conversation summary: " + window.Summary.Content + "\n")
	}
	if len(window.KeyEntities) > 0 {
		b.WriteString("Known details from this conversation:\n")
		for _, entity := range window.KeyEntities {
			fmt.Fprintf(&b, "- %s: %s\n", entity.Type, entity.Value)
		}
	}
	if len(window.FileReferences) > 0 {
		b.WriteString("Files referenced in this conversation:\n")
		for _, ref := range window.FileReferences {
			fmt.Fprintf(&b, "- %s (%s)\n", ref.FileName, ref.FileType)
		}
	}
	return strings.TrimSpace(b.String())
}

func assistantToolCallMessage(content string, calls []openai.ToolCall) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}
}
