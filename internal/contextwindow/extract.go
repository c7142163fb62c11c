package contextwindow

import (
	"regexp"
	"strings"

	"github.com/quibitai/quibit-rag/internal/models"
)

// Entity extraction is keyword/regex based and deliberately loose. It feeds
// the context window with best-effort annotations; precision is not a goal.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`),
	}
	addressPattern  = regexp.MustCompile(`\b\d+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`)
	namePattern     = regexp.MustCompile(`(?i)\b(?:my name is|i am called|call me)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

// ExtractEntities scans text for addresses, emails, phones, dates and
// self-introduced names. Pure function; deduplicates within one call.
func ExtractEntities(text string) []*models.ConversationEntity {
	var entities []*models.ConversationEntity
	seen := make(map[string]bool)

	add := func(entityType models.EntityType, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		key := string(entityType) + ":" + strings.ToLower(value)
		if seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, &models.ConversationEntity{Type: entityType, Value: value})
	}

	for _, match := range emailPattern.FindAllString(text, -1) {
		add(models.EntityEmail, match)
	}
	// Addresses before phones: street numbers otherwise look like phone prefixes.
	for _, match := range addressPattern.FindAllString(text, -1) {
		add(models.EntityAddress, match)
	}
	for _, match := range phonePattern.FindAllString(text, -1) {
		digits := nonDigitPattern.ReplaceAllString(match, "")
		if len(digits) >= 7 && len(digits) <= 15 {
			add(models.EntityPhone, match)
		}
	}
	for _, pattern := range datePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			add(models.EntityDate, match)
		}
	}
	for _, match := range namePattern.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 {
			add(models.EntityName, match[1])
		}
	}

	return entities
}
