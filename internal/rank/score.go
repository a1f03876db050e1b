package rank

import (
	"math"
	"time"

	"newsreader/pkg/models"
)

// Boosts are the non-negative weights applied to the three scoring
// terms.
type Boosts struct {
	Source  float64
	Topic   float64
	Recency float64
}

// DefaultBoosts mirrors the product defaults: topics matter most,
// recency next, source loyalty least.
func DefaultBoosts() Boosts {
	return Boosts{Source: 0.35, Topic: 0.7, Recency: 0.5}
}

// recencyWindowDays is how long a story keeps any freshness credit.
const recencyWindowDays = 2.0

// ScoreStory computes the relevance of one story against a profile at
// time now. Pure function: identical inputs always produce identical
// output.
//
// Source and topic affinities pass through tanh so that one very strong
// history signal saturates near 1 instead of drowning the other terms.
func ScoreStory(story models.Story, profile models.UserProfile, now time.Time, boosts Boosts) float64 {
	daysOld := now.Sub(story.PublishedAt).Hours() / hoursPerDay
	recency := 1 - daysOld/recencyWindowDays
	if recency < 0 {
		recency = 0
	}

	sourceAffinity := profile.SourceScores[story.Source]

	topicAffinity := 0.0
	for _, topic := range story.Topics {
		key := NormalizeTopic(topic)
		if key == "" {
			continue
		}
		topicAffinity += profile.TopicScores[key]
	}

	return math.Tanh(sourceAffinity)*boosts.Source +
		math.Tanh(topicAffinity)*boosts.Topic +
		recency*boosts.Recency
}
