package rank

import (
	"sort"
	"time"

	"newsreader/pkg/models"
)

// Options tunes a ranking pass. The zero value is not useful; use
// DefaultOptions.
type Options struct {
	HalfLifeDays float64
	Boosts       Boosts
}

// DefaultOptions returns the product-default ranking constants.
func DefaultOptions() Options {
	return Options{HalfLifeDays: DefaultHalfLifeDays, Boosts: DefaultBoosts()}
}

// Rank is the end-to-end pipeline: raw stories + history + preferences
// in, ordered deduplicated filtered stories out. Total and pure — it
// never fails for well-typed input and touches no shared state, so
// concurrent calls need no coordination.
func Rank(stories []models.Story, history []models.HistoryEvent, prefs models.Preferences, search string, dismissed map[string]bool, now time.Time, opts Options) []models.Story {
	view := prefs.ActiveView
	if !view.Valid() {
		view = models.ViewLatest
	}

	pool := Aggregate([][]models.Story{stories}, Filter{
		Preferences: prefs,
		Search:      search,
		Dismissed:   dismissed,
		View:        view,
	}, now)

	if view == models.ViewPersonalized {
		profile := BuildProfileWithHalfLife(history, now, opts.HalfLifeDays)
		for i := range pool {
			pool[i].Score = ScoreStory(pool[i], profile, now, opts.Boosts)
		}
		sort.SliceStable(pool, func(i, j int) bool {
			if pool[i].Score != pool[j].Score {
				return pool[i].Score > pool[j].Score
			}
			// Tie: newer publication first; equal timestamps keep
			// insertion order via the stable sort.
			return pool[i].PublishedAt.After(pool[j].PublishedAt)
		})
		return pool
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].PublishedAt.After(pool[j].PublishedAt)
	})
	return pool
}
