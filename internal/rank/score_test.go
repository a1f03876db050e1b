package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsreader/pkg/models"
)

func story(id, source string, topics []string, publishedAt time.Time) models.Story {
	return models.Story{
		ID:          id,
		Title:       "story " + id,
		URL:         "https://example.org/" + id,
		Source:      source,
		Topics:      topics,
		PublishedAt: publishedAt,
	}
}

func TestScoreStoryIdempotent(t *testing.T) {
	now := time.Now()
	profile := models.UserProfile{
		SourceScores: map[string]float64{"BBC": 1.4},
		TopicScores:  map[string]float64{"space": 2.0},
	}
	s := story("a", "BBC", []string{"Space"}, now.Add(-3*time.Hour))

	first := ScoreStory(s, profile, now, DefaultBoosts())
	second := ScoreStory(s, profile, now, DefaultBoosts())
	assert.Equal(t, first, second)
}

func TestScoreStoryRecencyWindow(t *testing.T) {
	now := time.Now()
	empty := models.UserProfile{SourceScores: map[string]float64{}, TopicScores: map[string]float64{}}
	boosts := DefaultBoosts()

	fresh := ScoreStory(story("a", "BBC", nil, now), empty, now, boosts)
	dayOld := ScoreStory(story("b", "BBC", nil, now.Add(-24*time.Hour)), empty, now, boosts)
	stale := ScoreStory(story("c", "BBC", nil, now.Add(-72*time.Hour)), empty, now, boosts)

	assert.InDelta(t, boosts.Recency, fresh, 1e-6)
	assert.InDelta(t, boosts.Recency/2, dayOld, 1e-6)
	assert.Zero(t, stale, "older than two days earns no recency credit")
}

// The saturating transform is asserted by its properties, not its exact
// curve: zero at zero, strictly increasing, bounded by the boost weight.
func TestScoreStorySaturationProperties(t *testing.T) {
	now := time.Now()
	boosts := DefaultBoosts()
	aged := story("a", "BBC", nil, now.Add(-100*24*time.Hour)) // recency term zero

	prev := ScoreStory(aged, models.UserProfile{SourceScores: map[string]float64{}}, now, boosts)
	assert.Zero(t, prev)

	for _, affinity := range []float64{0.1, 0.5, 1, 3, 6, 10, 15} {
		profile := models.UserProfile{SourceScores: map[string]float64{"BBC": affinity}}
		score := ScoreStory(aged, profile, now, boosts)
		assert.Greater(t, score, prev, "affinity %v", affinity)
		assert.Less(t, score, boosts.Source, "affinity %v", affinity)
		prev = score
	}
}

func TestScoreStoryTopicsSumBeforeSaturation(t *testing.T) {
	now := time.Now()
	boosts := DefaultBoosts()
	aged := story("a", "CNN", []string{"space", "science"}, now.Add(-100*24*time.Hour))

	oneTopic := models.UserProfile{TopicScores: map[string]float64{"space": 0.4}}
	bothTopics := models.UserProfile{TopicScores: map[string]float64{"space": 0.4, "science": 0.4}}

	assert.Greater(t,
		ScoreStory(aged, bothTopics, now, boosts),
		ScoreStory(aged, oneTopic, now, boosts))
}

func TestScoreStoryUnknownSourceAndTopics(t *testing.T) {
	now := time.Now()
	profile := models.UserProfile{
		SourceScores: map[string]float64{"BBC": 5},
		TopicScores:  map[string]float64{"space": 5},
	}
	s := story("a", "Reuters", []string{"markets"}, now.Add(-100*24*time.Hour))
	assert.Zero(t, ScoreStory(s, profile, now, DefaultBoosts()))
}
