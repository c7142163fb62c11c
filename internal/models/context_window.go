package models

// ClassificationResult is the structural classification of a user query.
// It is produced fresh per request and never persisted. ForceToolCall is
// empty unless exactly one tool category matched unambiguously above the
// configured confidence threshold.
type ClassificationResult struct {
	ShouldUseMultiStep bool     `json:"should_use_multi_step"`
	ForceToolCall      string   `json:"force_tool_call,omitempty"`
	Confidence         float64  `json:"confidence"`
	MatchedPatterns    []string `json:"matched_patterns,omitempty"`
	Reasoning          string   `json:"reasoning"`
}

// ContextWindow is a read-only snapshot of bounded conversational context,
// rebuilt per request from persisted rows.
type ContextWindow struct {
	RecentHistory  []*Message            `json:"recent_history"`
	KeyEntities    []*ConversationEntity `json:"key_entities"`
	Summary        *ConversationSummary  `json:"summary,omitempty"`
	FileReferences []*FileReference      `json:"file_references"`

	// TokenCount is an approximate size estimate computed with a fixed
	// characters-per-token heuristic. It is a soft budget signal, not an
	// exact tokenizer count.
	TokenCount int `json:"token_count"`
}
