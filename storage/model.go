package storage

import "time"

// Key layout of the capability stores.
const (
	KeyConfidence       = "confidenceLevels"
	KeySettings         = "settings"
	PrefixNote          = "notes:"
	PrefixFlashcardDeck = "flashcards:"
	PrefixMindmap       = "mindmaps:"
	PrefixAnalytics     = "analytics_history:"

	// LegacyAnalyticsKey holds the whole event list in the legacy source.
	// Init splits it into one record per event under PrefixAnalytics.
	LegacyAnalyticsKey = "analytics_history"
)

type Note struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topicId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Flashcard struct {
	ID     string    `json:"id"`
	Front  string    `json:"front"`
	Back   string    `json:"back"`
	Box    int       `json:"box"`
	DueAt  time.Time `json:"dueAt,omitempty"`
	Lapses int       `json:"lapses,omitempty"`
}

type FlashcardDeck struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	TopicID   string      `json:"topicId,omitempty"`
	Cards     []Flashcard `json:"cards"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type MindmapNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

type MindmapEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Mindmap struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	TopicID   string        `json:"topicId,omitempty"`
	Nodes     []MindmapNode `json:"nodes"`
	Edges     []MindmapEdge `json:"edges"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type AnalyticsEvent struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	TopicID string            `json:"topicId,omitempty"`
	Value   float64           `json:"value,omitempty"`
	At      time.Time         `json:"at"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Settings are free-form user preferences.
type Settings map[string]any
