package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CalendarClient talks to a calendar REST API (Google-Calendar-shaped events).
type CalendarClient struct {
	baseURL    string
	token      string
	calendarID string
	httpClient *http.Client
}

func NewCalendarClient(baseURL, token, calendarID string) *CalendarClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		calendarID: calendarID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type eventRecord struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees,omitempty"`
}

func (c *CalendarClient) do(ctx context.Context, method, path string, body, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		encoded, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("encode request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar API returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListEventsTool returns upcoming events in a date range.
type ListEventsTool struct {
	client *CalendarClient
}

func NewListEventsTool(client *CalendarClient) *ListEventsTool {
	return &ListEventsTool{client: client}
}

func (t *ListEventsTool) Name() string { return "list_events" }

func (t *ListEventsTool) Description() string {
	return "List calendar events. Defaults to the next seven days when no range is given."
}

func (t *ListEventsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"start_date": map[string]any{"type": "string", "description": "Range start, YYYY-MM-DD"},
		"end_date":   map[string]any{"type": "string", "description": "Range end, YYYY-MM-DD"},
	}, nil)
}

func (t *ListEventsTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.StartDate == "" {
		in.StartDate = time.Now().Format("2006-01-02")
	}
	if in.EndDate == "" {
		in.EndDate = time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	}

	params := url.Values{}
	params.Set("timeMin", in.StartDate)
	params.Set("timeMax", in.EndDate)

	var resp struct {
		Items []eventRecord `json:"items"`
	}
	path := fmt.Sprintf("/calendars/%s/events?%s", url.PathEscape(t.client.calendarID), params.Encode())
	if err := t.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return fmt.Sprintf("No events between %s and %s.", in.StartDate, in.EndDate), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d events:\n", len(resp.Items))
	for _, event := range resp.Items {
		fmt.Fprintf(&b, "- %s: %s to %s\n", event.Summary, event.Start, event.End)
	}
	return b.String(), nil
}

// CreateEventTool schedules a new calendar event.
type CreateEventTool struct {
	client *CalendarClient
}

func NewCreateEventTool(client *CalendarClient) *CreateEventTool {
	return &CreateEventTool{client: client}
}

func (t *CreateEventTool) Name() string { return "create_event" }

func (t *CreateEventTool) Description() string {
	return "Create a calendar event with a title and start time."
}

func (t *CreateEventTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"title":      map[string]any{"type": "string", "description": "Event title"},
		"start_time": map[string]any{"type": "string", "description": "Start, RFC3339 or YYYY-MM-DDTHH:MM"},
		"end_time":   map[string]any{"type": "string", "description": "End; defaults to one hour after start"},
		"attendees":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Attendee email addresses"},
	}, []string{"title", "start_time"})
}

func (t *CreateEventTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Title     string   `json:"title"`
		StartTime string   `json:"start_time"`
		EndTime   string   `json:"end_time"`
		Attendees []string `json:"attendees"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.StartTime) == "" {
		return "", fmt.Errorf("invalid tool arguments: title and start_time are required")
	}

	body := map[string]any{
		"summary": in.Title,
		"start":   in.StartTime,
		"end":     in.EndTime,
	}
	if len(in.Attendees) > 0 {
		body["attendees"] = in.Attendees
	}

	var resp eventRecord
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(t.client.calendarID))
	if err := t.client.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created event %q starting %s.", in.Title, in.StartTime), nil
}
