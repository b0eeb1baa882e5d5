package knowledge

import (
	"strings"
	"time"
)

// InfoStatus tracks how well-established a related info item is.
type InfoStatus string

const (
	StatusSuspected InfoStatus = "suspected"
	StatusConfirmed InfoStatus = "confirmed"
)

// Entity is a named subject of knowledge. Unique by normalised name;
// the UUID is the stable identity all references use.
type Entity struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Definition is the authoritative "is/means" statement for an entity.
// At most one per entity. When IsBaseKnowledge is set the content mirrors
// the matching base fact and normal writes are refused.
type Definition struct {
	EntityUUID      string    `json:"entity_uuid"`
	Content         string    `json:"content"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Confidence      float64   `json:"confidence"`
	Priority        int       `json:"priority"`
	IsBaseKnowledge bool      `json:"is_base_knowledge"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RelatedInfo is any non-definition statement about an entity.
// Duplicate-by-content writes increment MentionCount instead of inserting.
type RelatedInfo struct {
	UUID         string     `json:"uuid"`
	EntityUUID   string     `json:"entity_uuid"`
	Content      string     `json:"content"`
	Type         string     `json:"type"`
	Source       string     `json:"source"`
	Confidence   float64    `json:"confidence"`
	Status       InfoStatus `json:"status"`
	MentionCount int        `json:"mention_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BaseFact is a top-priority, immutable entity statement.
type BaseFact struct {
	EntityName  string    `json:"entity_name"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemKind discriminates retrieval results, replacing the source's
// class polymorphism with a tagged item.
type ItemKind string

const (
	ItemBase       ItemKind = "base"
	ItemDefinition ItemKind = "definition"
	ItemInfo       ItemKind = "info"
)

// Item is one ranked knowledge statement returned by Retrieve.
type Item struct {
	Kind       ItemKind `json:"kind"`
	EntityName string   `json:"entity_name"`
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	// Priority orders item kinds: base=0, definition=1, info=2.
	Priority int        `json:"priority"`
	Status   InfoStatus `json:"status,omitempty"`
}

// RetrieveResult is the outcome of a knowledge query.
type RetrieveResult struct {
	Entities []string `json:"entities"`
	Items    []Item   `json:"items"`
}

// ConfidenceBand maps a confidence value to its display band.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

// NormalizeName folds an entity name for uniqueness comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeContent folds statement content for duplicate detection.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.Join(strings.Fields(content), " "))
}
