package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quibitai/quibit-rag/internal/models"
)

// Classifier decides whether a query needs multi-step tool orchestration or a
// single-turn response. Implementations never return an error: classification
// is a heuristic and falls back to a conservative default on no match.
type Classifier interface {
	Classify(query string) models.ClassificationResult
}

// Match weights. A combined verb+object hit outranks a multi-word phrase,
// which outranks an isolated keyword. The exact values are hand-tuned
// placeholders, not load-bearing contracts.
const (
	pairWeight    = 0.60
	phraseWeight  = 0.30
	keywordWeight = 0.15

	// noMatchConfidence is the confidence reported for the conservative default.
	noMatchConfidence = 0.1

	// ambiguityMargin: a second category scoring within this margin of the
	// best one makes the classification ambiguous, so no tool is forced.
	ambiguityMargin = 0.15
)

// PatternClassifier matches queries against categorized keyword/regex-free
// pattern sets. It is a pure function of its input and safe for concurrent use.
type PatternClassifier struct {
	forceThreshold     float64
	multiStepThreshold float64
}

func NewPatternClassifier(forceThreshold, multiStepThreshold float64) *PatternClassifier {
	return &PatternClassifier{
		forceThreshold:     forceThreshold,
		multiStepThreshold: multiStepThreshold,
	}
}

type categoryScore struct {
	name  string
	tool  string // tool from the best matched operation, empty if only phrases hit
	score float64
}

func (c *PatternClassifier) Classify(query string) models.ClassificationResult {
	q := strings.ToLower(query)
	words := tokenize(q)

	var matched []string
	var scores []categoryScore

	for _, cat := range toolCategories {
		cs := categoryScore{name: cat.name}
		pairObjects := make(map[string]bool)
		for _, op := range cat.operations {
			verb := firstMatch(words, op.verbs)
			object := firstMatch(words, op.objects)
			if verb != "" && object != "" {
				cs.score += pairWeight
				pairObjects[object] = true
				matched = append(matched, fmt.Sprintf("%s:%s+%s", cat.name, verb, object))
				if cs.tool == "" {
					cs.tool = op.tool
				}
			}
		}
		// Isolated object nouns count once per category, and not at all when
		// already consumed by a verb+object pair.
		seen := make(map[string]bool)
		for _, op := range cat.operations {
			for _, object := range op.objects {
				if words[object] && !pairObjects[object] && !seen[object] {
					seen[object] = true
					cs.score += keywordWeight
					matched = append(matched, fmt.Sprintf("%s:%s", cat.name, object))
				}
			}
		}
		for _, phrase := range cat.phrases {
			if strings.Contains(q, phrase) {
				cs.score += phraseWeight
				matched = append(matched, fmt.Sprintf("%s:%q", cat.name, phrase))
			}
		}
		if cs.score > 0 {
			scores = append(scores, cs)
		}
	}

	sequencing := false
	for _, cue := range sequencingCues {
		if strings.Contains(q, cue) {
			sequencing = true
			matched = append(matched, fmt.Sprintf("sequencing:%q", cue))
		}
	}
	analysis := false
	for _, cue := range analysisCues {
		if strings.Contains(q, cue) {
			analysis = true
			matched = append(matched, fmt.Sprintf("analysis:%q", cue))
		}
	}

	// Conservative default: no patterns matched, single-turn path.
	if len(scores) == 0 && !sequencing && !analysis {
		return models.ClassificationResult{
			ShouldUseMultiStep: false,
			Confidence:         noMatchConfidence,
			Reasoning:          "no patterns matched; defaulting to single-turn response",
		}
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	confidence := 0.0
	if len(scores) > 0 {
		confidence = scores[0].score
	}
	if sequencing {
		confidence += keywordWeight
	}
	if analysis {
		confidence += keywordWeight
	}
	if confidence > 1 {
		confidence = 1
	}

	// A tool is forced only when exactly one category matched with a concrete
	// verb+object operation and the score clears the threshold. Comparable
	// scores across categories count as ambiguity.
	forceTool := ""
	unambiguous := len(scores) == 1 ||
		(len(scores) > 1 && scores[0].score-scores[1].score > ambiguityMargin)
	if len(scores) > 0 && unambiguous && scores[0].tool != "" && confidence >= c.forceThreshold {
		forceTool = scores[0].tool
	}

	multiStep := sequencing || analysis ||
		(len(scores) > 0 && confidence >= c.multiStepThreshold)

	return models.ClassificationResult{
		ShouldUseMultiStep: multiStep,
		ForceToolCall:      forceTool,
		Confidence:         confidence,
		MatchedPatterns:    matched,
		Reasoning:          buildReasoning(scores, sequencing, analysis, forceTool),
	}
}

func buildReasoning(scores []categoryScore, sequencing, analysis bool, forceTool string) string {
	var parts []string
	for _, s := range scores {
		parts = append(parts, fmt.Sprintf("%s(%.2f)", s.name, s.score))
	}
	reason := "matched categories: " + strings.Join(parts, ", ")
	if len(scores) == 0 {
		reason = "no tool category matched"
	}
	if sequencing {
		reason += "; sequencing cues present"
	}
	if analysis {
		reason += "; analysis cues present"
	}
	if forceTool != "" {
		reason += "; forcing " + forceTool
	} else if len(scores) > 1 {
		reason += "; multiple categories, no tool forced"
	}
	return reason
}

// tokenize splits a lowercased query into punctuation-trimmed words.
func tokenize(q string) map[string]bool {
	words := make(map[string]bool)
	for _, f := range strings.Fields(q) {
		w := strings.Trim(f, ".,!?;:'\"()[]")
		if w != "" {
			words[w] = true
		}
	}
	return words
}

func firstMatch(words map[string]bool, candidates []string) string {
	for _, c := range candidates {
		if words[c] {
			return c
		}
	}
	return ""
}
