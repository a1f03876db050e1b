package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreader/pkg/models"
)

func event(source string, topics []string, action models.Action, ts time.Time) models.HistoryEvent {
	return models.HistoryEvent{
		StoryID:   "s-" + source,
		Source:    source,
		Topics:    topics,
		Action:    action,
		Timestamp: ts,
	}
}

func TestBuildProfileDecayMonotonic(t *testing.T) {
	now := time.Now()
	recent := BuildProfile([]models.HistoryEvent{
		event("BBC", nil, models.ActionOpen, now.Add(-24*time.Hour)),
	}, now)
	old := BuildProfile([]models.HistoryEvent{
		event("BBC", nil, models.ActionOpen, now.Add(-10*24*time.Hour)),
	}, now)

	assert.Greater(t, recent.SourceScores["BBC"], old.SourceScores["BBC"])
	assert.Greater(t, old.SourceScores["BBC"], 0.0)
}

func TestBuildProfileActionWeights(t *testing.T) {
	now := time.Now()
	ts := now.Add(-time.Hour)
	saved := BuildProfile([]models.HistoryEvent{event("BBC", nil, models.ActionSave, ts)}, now)
	opened := BuildProfile([]models.HistoryEvent{event("BBC", nil, models.ActionOpen, ts)}, now)
	dismissed := BuildProfile([]models.HistoryEvent{event("BBC", nil, models.ActionDismiss, ts)}, now)

	assert.Greater(t, saved.SourceScores["BBC"], opened.SourceScores["BBC"])
	assert.Greater(t, opened.SourceScores["BBC"], dismissed.SourceScores["BBC"])
	assert.Greater(t, dismissed.SourceScores["BBC"], 0.0)
}

func TestBuildProfileNonNegative(t *testing.T) {
	now := time.Now()
	events := []models.HistoryEvent{
		event("BBC", []string{"Space"}, models.ActionDismiss, now.Add(-400*24*time.Hour)),
		event("CNN", []string{"Weather!"}, models.ActionOpen, now.Add(-1000*24*time.Hour)),
		event("BBC", []string{"space"}, models.ActionSave, now),
	}
	profile := BuildProfile(events, now)
	for source, score := range profile.SourceScores {
		assert.GreaterOrEqual(t, score, 0.0, "source %s", source)
	}
	for topic, score := range profile.TopicScores {
		assert.GreaterOrEqual(t, score, 0.0, "topic %s", topic)
	}
}

func TestBuildProfileOrderIndependent(t *testing.T) {
	now := time.Now()
	a := event("BBC", []string{"space"}, models.ActionOpen, now.Add(-48*time.Hour))
	b := event("CNN", []string{"weather"}, models.ActionSave, now.Add(-12*time.Hour))
	c := event("BBC", []string{"space", "science"}, models.ActionDismiss, now.Add(-6*time.Hour))

	forward := BuildProfile([]models.HistoryEvent{a, b, c}, now)
	backward := BuildProfile([]models.HistoryEvent{c, b, a}, now)

	assert.Equal(t, forward.SourceScores, backward.SourceScores)
	assert.Equal(t, forward.TopicScores, backward.TopicScores)
}

func TestBuildProfileTopicNormalization(t *testing.T) {
	now := time.Now()
	profile := BuildProfile([]models.HistoryEvent{
		event("BBC", []string{"  Space Flight! ", "!!!", ""}, models.ActionOpen, now),
	}, now)

	require.Contains(t, profile.TopicScores, "spaceflight")
	// Labels that normalize to nothing contribute nothing.
	assert.Len(t, profile.TopicScores, 1)
}

func TestBuildProfileUnknownActionIgnored(t *testing.T) {
	now := time.Now()
	profile := BuildProfile([]models.HistoryEvent{
		event("BBC", []string{"space"}, models.Action("share"), now),
	}, now)
	assert.Empty(t, profile.SourceScores)
	assert.Empty(t, profile.TopicScores)
}

func TestNormalizeTopic(t *testing.T) {
	cases := map[string]string{
		"  Space ":    "space",
		"U.S. News":   "usnews",
		"CLIMATE":     "climate",
		"a b c 123":   "abc123",
		"  !!  ":      "",
		"":            "",
		"Sci-Fi/Tech": "scifitech",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTopic(in), "input %q", in)
	}
}
