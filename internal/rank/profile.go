package rank

import (
	"math"
	"strings"
	"time"

	"newsreader/pkg/models"
)

// DefaultHalfLifeDays controls how fast old interactions stop mattering:
// an event this many days old contributes half the weight of one made now.
const DefaultHalfLifeDays = 14.0

const hoursPerDay = 24.0

// actionWeights grades how strong a signal each interaction is. A
// dismiss still says the user looked at the source/topic, so it carries
// a small positive weight rather than a penalty.
var actionWeights = map[models.Action]float64{
	models.ActionOpen:    1.0,
	models.ActionSave:    2.0,
	models.ActionDismiss: 0.2,
}

// BuildProfile folds a history log into per-source and per-topic
// affinity scores using DefaultHalfLifeDays.
func BuildProfile(events []models.HistoryEvent, now time.Time) models.UserProfile {
	return BuildProfileWithHalfLife(events, now, DefaultHalfLifeDays)
}

// BuildProfileWithHalfLife is BuildProfile with an explicit half-life.
// The reduction is a sum over independent decayed contributions, so the
// result does not depend on event order. Scores are always >= 0.
func BuildProfileWithHalfLife(events []models.HistoryEvent, now time.Time, halfLifeDays float64) models.UserProfile {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	profile := models.UserProfile{
		SourceScores: map[string]float64{},
		TopicScores:  map[string]float64{},
	}
	for _, ev := range events {
		weight, ok := actionWeights[ev.Action]
		if !ok {
			continue
		}
		ageDays := now.Sub(ev.Timestamp).Hours() / hoursPerDay
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Pow(0.5, ageDays/halfLifeDays)
		contribution := decay * weight

		if ev.Source != "" {
			profile.SourceScores[ev.Source] += contribution
		}
		for _, topic := range ev.Topics {
			key := NormalizeTopic(topic)
			if key == "" {
				continue
			}
			profile.TopicScores[key] += contribution
		}
	}
	return profile
}

// NormalizeTopic canonicalizes a topic label: trim, lowercase, strip
// everything that is not a letter or digit. An empty result means the
// label carries no usable signal and should be discarded.
func NormalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	var b strings.Builder
	for _, r := range topic {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
