package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TasksClient talks to an Asana-shaped task management REST API using a
// personal access token.
type TasksClient struct {
	baseURL    string
	token      string
	workspace  string
	httpClient *http.Client
}

func NewTasksClient(baseURL, token, workspace string) *TasksClient {
	return &TasksClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		workspace:  workspace,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type taskRecord struct {
	GID       string `json:"gid"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	DueOn     string `json:"due_on,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func (c *TasksClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("task API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("task API returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListTasksTool returns the user's tasks, incomplete by default.
type ListTasksTool struct {
	client *TasksClient
}

func NewListTasksTool(client *TasksClient) *ListTasksTool { return &ListTasksTool{client: client} }

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List the user's tasks from the task management system. Returns incomplete tasks unless include_completed is set."
}

func (t *ListTasksTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"project":           map[string]any{"type": "string", "description": "Optional project name to filter by"},
		"include_completed": map[string]any{"type": "boolean", "description": "Include completed tasks"},
	}, nil)
}

func (t *ListTasksTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Project          string `json:"project"`
		IncludeCompleted bool   `json:"include_completed"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("workspace", t.client.workspace)
	if !in.IncludeCompleted {
		params.Set("completed_since", "now")
	}
	if in.Project != "" {
		params.Set("project", in.Project)
	}

	var resp struct {
		Data []taskRecord `json:"data"`
	}
	if err := t.client.do(ctx, http.MethodGet, "/tasks?"+params.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "No tasks found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tasks:\n", len(resp.Data))
	for _, task := range resp.Data {
		status := "incomplete"
		if task.Completed {
			status = "completed"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)", status, task.Name, task.GID)
		if task.DueOn != "" {
			fmt.Fprintf(&b, " due %s", task.DueOn)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// CreateTaskTool creates a new task.
type CreateTaskTool struct {
	client *TasksClient
}

func NewCreateTaskTool(client *TasksClient) *CreateTaskTool { return &CreateTaskTool{client: client} }

func (t *CreateTaskTool) Name() string { return "create_task" }

func (t *CreateTaskTool) Description() string {
	return "Create a new task in the task management system."
}

func (t *CreateTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"name":   map[string]any{"type": "string", "description": "Task name"},
		"notes":  map[string]any{"type": "string", "description": "Optional task description"},
		"due_on": map[string]any{"type": "string", "description": "Optional due date, YYYY-MM-DD"},
	}, []string{"name"})
}

func (t *CreateTaskTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Name  string `json:"name"`
		Notes string `json:"notes"`
		DueOn string `json:"due_on"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", fmt.Errorf("invalid tool arguments: name is required")
	}

	body := map[string]any{"name": in.Name, "workspace": t.client.workspace}
	if in.Notes != "" {
		body["notes"] = in.Notes
	}
	if in.DueOn != "" {
		body["due_on"] = in.DueOn
	}

	var resp struct {
		Data taskRecord `json:"data"`
	}
	if err := t.client.do(ctx, http.MethodPost, "/tasks", body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created task %q (%s).", resp.Data.Name, resp.Data.GID), nil
}

// CompleteTaskTool marks an existing task complete.
type CompleteTaskTool struct {
	client *TasksClient
}

func NewCompleteTaskTool(client *TasksClient) *CompleteTaskTool {
	return &CompleteTaskTool{client: client}
}

func (t *CompleteTaskTool) Name() string { return "complete_task" }

func (t *CompleteTaskTool) Description() string {
	return "Mark an existing task as completed. Requires the task id from list_tasks."
}

func (t *CompleteTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"task_id": map[string]any{"type": "string", "description": "The task id (gid)"},
	}, []string{"task_id"})
}

func (t *CompleteTaskTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"task_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.TaskID) == "" {
		return "", fmt.Errorf("invalid tool arguments: task_id is required")
	}

	var resp struct {
		Data taskRecord `json:"data"`
	}
	body := map[string]any{"completed": true}
	if err := t.client.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(in.TaskID), body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Marked task %q complete.", resp.Data.Name), nil
}
