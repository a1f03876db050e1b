package models

import (
	"time"

	dbtypes "newsreader/internal/db"
)

// Story is a normalized news item. Identity (ID) is the feed guid when
// present, otherwise the canonical URL; it is the deduplication key and
// never changes after ingest.
type Story struct {
	ID          string              `db:"id" json:"id"`
	Title       string              `db:"title" json:"title"`
	URL         string              `db:"url" json:"url"`
	Source      string              `db:"source" json:"source"`
	PublishedAt time.Time           `db:"published_at" json:"published_at"`
	Excerpt     string              `db:"excerpt" json:"excerpt,omitempty"`
	ImageURL    string              `db:"image_url" json:"image_url,omitempty"`
	Topics      dbtypes.StringSlice `db:"topics" json:"topics"`

	// Score is set at ranking time for the personalized view (not persisted).
	Score float64 `db:"-" json:"score,omitempty"`
}

// Action tags a history event. The set is closed.
type Action string

const (
	ActionOpen    Action = "open"
	ActionSave    Action = "save"
	ActionDismiss Action = "dismiss"
)

// Valid reports whether a is one of the known action tags.
func (a Action) Valid() bool {
	switch a {
	case ActionOpen, ActionSave, ActionDismiss:
		return true
	}
	return false
}

// HistoryEvent records one user interaction. Story fields are
// denormalized at write time so later pool changes never rewrite
// history. Append-only.
type HistoryEvent struct {
	ID        string              `db:"id" json:"id"`
	StoryID   string              `db:"story_id" json:"story_id"`
	URL       string              `db:"url" json:"url"`
	Title     string              `db:"title" json:"title"`
	Source    string              `db:"source" json:"source"`
	Topics    dbtypes.StringSlice `db:"topics" json:"topics"`
	Action    Action              `db:"action" json:"action"`
	Timestamp time.Time           `db:"ts" json:"ts"`
}

// View selects which feed the reader is looking at.
type View string

const (
	ViewPersonalized View = "personalized"
	ViewLatest       View = "latest"
	ViewSaved        View = "saved"
)

// Valid reports whether v is a known view selector.
func (v View) Valid() bool {
	switch v {
	case ViewPersonalized, ViewLatest, ViewSaved:
		return true
	}
	return false
}

// Preferences is the user's reading configuration.
type Preferences struct {
	// EnabledSources maps source key -> enabled. A key absent from the
	// map means the source's configured default applies.
	EnabledSources map[string]bool `json:"enabled_sources"`
	// MutedTopics holds normalized topic keys excluded from every pool.
	MutedTopics []string `json:"muted_topics"`
	ActiveView  View     `json:"active_view"`
}

// DefaultPreferences returns the state of a fresh user.
func DefaultPreferences() Preferences {
	return Preferences{
		EnabledSources: map[string]bool{},
		MutedTopics:    []string{},
		ActiveView:     ViewLatest,
	}
}

// UserProfile holds decayed affinity scores derived from history.
// It is recomputed on demand, never stored.
type UserProfile struct {
	SourceScores map[string]float64 `json:"source_scores"`
	TopicScores  map[string]float64 `json:"topic_scores"`
}

// Source describes one configured feed endpoint.
type Source struct {
	Key     string `yaml:"key" json:"key"`
	Label   string `yaml:"label" json:"label"`
	URL     string `yaml:"url" json:"url"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}
