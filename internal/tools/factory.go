package tools

import (
	"github.com/quibitai/quibit-rag/internal/knowledge"
	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/storage"
)

// Factory assembles a per-request tool registry. Request scope (chat, user,
// client) is injected into the tools that need it at construction time, so no
// tool reads ambient state during a call.
type Factory struct {
	tasks     *TasksClient
	calendar  *CalendarClient
	webSearch *WebSearchTool
	knowledge *knowledge.Store
	storage   storage.Storage
	llm       llm.Client
	model     string
	topK      int
}

func NewFactory(
	tasks *TasksClient,
	calendar *CalendarClient,
	webSearch *WebSearchTool,
	knowledgeStore *knowledge.Store,
	store storage.Storage,
	llmClient llm.Client,
	model string,
	topK int,
) *Factory {
	return &Factory{
		tasks:     tasks,
		calendar:  calendar,
		webSearch: webSearch,
		knowledge: knowledgeStore,
		storage:   store,
		llm:       llmClient,
		model:     model,
		topK:      topK,
	}
}

// ForRequest builds the registry for one request. Clients that are not
// configured are simply absent from the registry.
func (f *Factory) ForRequest(chatID, userID, clientID string) *Registry {
	var ts []Tool
	if f.tasks != nil {
		ts = append(ts,
			NewListTasksTool(f.tasks),
			NewCreateTaskTool(f.tasks),
			NewCompleteTaskTool(f.tasks),
		)
	}
	if f.calendar != nil {
		ts = append(ts,
			NewListEventsTool(f.calendar),
			NewCreateEventTool(f.calendar),
		)
	}
	if f.webSearch != nil {
		ts = append(ts, f.webSearch)
	}
	if f.knowledge != nil {
		ts = append(ts, NewSearchKnowledgeTool(f.knowledge, clientID, f.topK))
	}
	if f.storage != nil && f.llm != nil {
		ts = append(ts, NewCreateDocumentTool(f.storage, f.llm, f.model, chatID, userID))
	}
	return NewRegistry(ts...)
}
