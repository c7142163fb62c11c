package classifier

// operation pairs a verb set with an object set and names the tool an
// unambiguous match should force. A verb+object hit is the strongest signal
// the classifier produces.
type operation struct {
	tool    string
	verbs   []string
	objects []string
}

// toolCategory groups the operations for one external tool surface, plus
// multi-word phrases that cue the category without a full verb+object pair.
type toolCategory struct {
	name       string
	operations []operation
	phrases    []string
}

var toolCategories = []toolCategory{
	{
		name: "tasks",
		operations: []operation{
			{
				tool:    "list_tasks",
				verbs:   []string{"list", "show", "view", "get", "find", "check"},
				objects: []string{"task", "tasks", "todo", "todos", "assignments"},
			},
			{
				tool:    "create_task",
				verbs:   []string{"create", "add", "make", "open"},
				objects: []string{"task", "tasks", "todo", "ticket"},
			},
			{
				tool:    "complete_task",
				verbs:   []string{"complete", "finish", "close", "resolve"},
				objects: []string{"task", "tasks", "todo", "ticket"},
			},
		},
		phrases: []string{"in asana", "my task list", "incomplete tasks", "overdue tasks"},
	},
	{
		name: "calendar",
		operations: []operation{
			{
				tool:    "list_events",
				verbs:   []string{"list", "show", "view", "check", "get"},
				objects: []string{"calendar", "schedule", "meeting", "meetings", "event", "events", "availability"},
			},
			{
				tool:    "create_event",
				verbs:   []string{"schedule", "book", "create", "add", "plan"},
				objects: []string{"meeting", "meetings", "event", "events", "call", "appointment"},
			},
		},
		phrases: []string{"on my calendar", "google calendar", "free time", "this week's schedule"},
	},
	{
		name: "web_search",
		operations: []operation{
			{
				tool:    "web_search",
				verbs:   []string{"search", "find", "look", "google", "research"},
				objects: []string{"web", "internet", "online", "news", "article", "articles"},
			},
		},
		phrases: []string{"search the web", "look up", "latest news", "current events", "recent developments"},
	},
	{
		name: "knowledge",
		operations: []operation{
			{
				tool:    "search_knowledge",
				verbs:   []string{"search", "find", "look", "retrieve", "check"},
				objects: []string{"knowledge", "docs", "documents", "notes", "wiki", "files"},
			},
		},
		phrases: []string{"knowledge base", "in our docs", "internal documentation", "what do we know about", "company policy"},
	},
	{
		name: "documents",
		operations: []operation{
			{
				tool:    "create_document",
				verbs:   []string{"write", "draft", "create", "generate", "prepare"},
				objects: []string{"document", "report", "outline", "proposal", "brief", "memo"},
			},
		},
		phrases: []string{"write up", "put together a document", "draft a report"},
	},
}

// sequencingCues suggest a multi-step plan even when no single tool category
// dominates ("first do X, then Y").
var sequencingCues = []string{
	"and then",
	"after that",
	"first",
	"secondly",
	"finally",
	"step by step",
	"for each",
	"one by one",
}

// analysisCues mark comparison/analysis requests that usually need more than
// a single completion to answer well.
var analysisCues = []string{
	"compare",
	"analyze",
	"analyse",
	"break down",
	"pros and cons",
	"versus",
	"difference between",
	"cross-reference",
}
