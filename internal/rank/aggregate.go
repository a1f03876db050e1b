package rank

import (
	"strings"
	"time"

	"newsreader/pkg/models"
)

// Filter carries everything the aggregator needs besides the stories
// themselves.
type Filter struct {
	Preferences models.Preferences
	Search      string
	Dismissed   map[string]bool
	View        models.View
}

// Aggregate flattens per-source batches into one deduplicated,
// filtered pool. A failed fetch simply contributes no batch; if the
// whole flattened input is empty the fixed fallback set stands in so
// the reader never faces an empty screen, except in the saved view,
// which shows only what the user actually saved. Deduplication is
// last-record-wins and deterministic for a given input order.
func Aggregate(batches [][]models.Story, f Filter, now time.Time) []models.Story {
	var flat []models.Story
	for _, batch := range batches {
		flat = append(flat, batch...)
	}
	// The fallback covers fetched-source batches only. The saved view
	// reads the user's own snapshot set; when that set is empty the
	// view is legitimately empty.
	if len(flat) == 0 && f.View != models.ViewSaved {
		flat = FallbackStories(now)
	}

	// Dedupe by identity, last record wins, first-seen position kept.
	seen := map[string]int{}
	pool := make([]models.Story, 0, len(flat))
	for _, story := range flat {
		if idx, ok := seen[story.ID]; ok {
			pool[idx] = story
			continue
		}
		seen[story.ID] = len(pool)
		pool = append(pool, story)
	}

	muted := map[string]bool{}
	for _, topic := range f.Preferences.MutedTopics {
		if key := NormalizeTopic(topic); key != "" {
			muted[key] = true
		}
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := pool[:0]
	for _, story := range pool {
		// The saved view reads its own snapshot set and ignores
		// dismissals entirely.
		if f.View != models.ViewSaved && f.Dismissed[story.ID] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(story.Title), search) &&
			!strings.Contains(strings.ToLower(story.Source), search) {
			continue
		}
		if hasMutedTopic(story, muted) {
			continue
		}
		out = append(out, story)
	}
	return out
}

func hasMutedTopic(story models.Story, muted map[string]bool) bool {
	if len(muted) == 0 {
		return false
	}
	for _, topic := range story.Topics {
		if muted[NormalizeTopic(topic)] {
			return true
		}
	}
	return false
}

// FallbackStories is the small demonstration pool shown when every
// source came back empty or failed. Part of the contract, not an error
// path.
func FallbackStories(now time.Time) []models.Story {
	return []models.Story{
		{
			ID:          "fallback-welcome",
			Title:       "Welcome to your reader",
			URL:         "https://example.org/welcome",
			Source:      "Reader",
			PublishedAt: now.Add(-30 * time.Minute),
			Excerpt:     "Enable a few sources in preferences to start pulling live headlines.",
			Topics:      []string{"getting started"},
		},
		{
			ID:          "fallback-personalize",
			Title:       "Your feed learns as you read",
			URL:         "https://example.org/personalize",
			Source:      "Reader",
			PublishedAt: now.Add(-2 * time.Hour),
			Excerpt:     "Opening and saving stories teaches the personalized view what to surface first.",
			Topics:      []string{"personalization"},
		},
		{
			ID:          "fallback-offline",
			Title:       "No sources reachable right now",
			URL:         "https://example.org/offline",
			Source:      "Reader",
			PublishedAt: now.Add(-4 * time.Hour),
			Excerpt:     "Every configured source failed or returned nothing. This placeholder set keeps the views usable.",
			Topics:      []string{"status"},
		},
	}
}
