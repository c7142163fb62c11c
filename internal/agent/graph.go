package agent

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/models"
)

// graphState enumerates the multi-step execution states:
// start -> process_request -> (tool_call)* -> completed | error.
type graphState int

const (
	stateStart graphState = iota
	stateProcessRequest
	stateToolCall
	stateCompleted
	stateErrored
)

// runMultiStep drives the explicit state machine. Each tool invocation is
// synchronous from the graph's perspective: the node blocks until the call
// returns before any further output is produced. Rounds are bounded by
// Config.MaxRounds; the forced tool directive applies to the first round only.
func (a *Agent) runMultiStep(ctx context.Context, em *emitter, input string, classification models.ClassificationResult, window *models.ContextWindow) {
	messages := a.buildMessages(input, window)
	toolChoice := a.toolChoice(classification)

	state := stateStart
	var pending []openai.ToolCall
	var answer string
	round := 0

	for state != stateCompleted && state != stateErrored {
		switch state {
		case stateStart:
			state = stateProcessRequest

		case stateProcessRequest:
			if round >= a.config.MaxRounds {
				a.logger.Warn("multi-step round budget exhausted", zap.Int("rounds", round))
				state = stateCompleted
				break
			}
			round++

			content, calls, err := a.streamOnce(ctx, em, messages, toolChoice)
			toolChoice = nil
			if err != nil {
				a.logger.Error("multi-step completion failed", zap.Int("round", round), zap.Error(err))
				state = stateErrored
				break
			}
			if content != "" {
				answer = content
			}

			if len(calls) == 0 {
				state = stateCompleted
				break
			}

			messages = append(messages, assistantToolCallMessage(content, calls))
			pending = calls
			state = stateToolCall

		case stateToolCall:
			failed := false
			for _, call := range pending {
				result, err := a.invokeTool(ctx, em, call)
				if err != nil {
					a.logger.Error("tool call failed",
						zap.String("tool", call.Function.Name), zap.Error(err))
					failed = true
					break
				}
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    result,
				})
			}
			pending = nil
			if failed {
				state = stateErrored
				break
			}
			state = stateProcessRequest
		}
	}

	if state == stateErrored {
		em.fail(userSafeError)
		return
	}
	em.finish(answer)
}
