package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreader/pkg/models"
)

func TestRankPersonalizedPrefersHistoryMatch(t *testing.T) {
	now := time.Now()
	history := []models.HistoryEvent{
		{StoryID: "seed", Source: "BBC", Topics: []string{"space"}, Action: models.ActionSave, Timestamp: now.Add(-24 * time.Hour)},
	}
	pool := []models.Story{
		story("b", "CNN", []string{"weather"}, now),
		story("a", "BBC", []string{"space"}, now),
	}
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewPersonalized

	ranked := Rank(pool, history, prefs, "", nil, now, DefaultOptions())

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID, "story matching saved source+topic ranks first")
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankPersonalizedTieBreaksByRecency(t *testing.T) {
	now := time.Now()
	older := story("older", "BBC", nil, now.Add(-30*24*time.Hour))
	newer := story("newer", "CNN", nil, now.Add(-20*24*time.Hour))
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewPersonalized

	// No history: both stories are past the recency window, so their
	// scores tie at zero and publication time decides.
	ranked := Rank([]models.Story{older, newer}, nil, prefs, "", nil, now, DefaultOptions())

	require.Len(t, ranked, 2)
	assert.Equal(t, "newer", ranked[0].ID)
}

func TestRankLatestSortsByPublishedAt(t *testing.T) {
	now := time.Now()
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewLatest

	ranked := Rank([]models.Story{
		story("old", "BBC", nil, now.Add(-48*time.Hour)),
		story("new", "CNN", nil, now.Add(-1*time.Hour)),
		story("mid", "NPR", nil, now.Add(-12*time.Hour)),
	}, nil, prefs, "", nil, now, DefaultOptions())

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestRankSavedAndDismissedCoexist(t *testing.T) {
	now := time.Now()
	saved := story("both", "BBC", nil, now)
	dismissed := map[string]bool{"both": true}

	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewSaved
	inSaved := Rank([]models.Story{saved}, nil, prefs, "", dismissed, now, DefaultOptions())
	require.Len(t, inSaved, 1, "saved view bypasses dismissal")

	prefs.ActiveView = models.ViewLatest
	inLatest := Rank([]models.Story{saved}, nil, prefs, "", dismissed, now, DefaultOptions())
	for _, s := range inLatest {
		assert.NotEqual(t, "both", s.ID, "dismissed story must not appear in latest")
	}
}

func TestRankMutedTopicBeatsScore(t *testing.T) {
	now := time.Now()
	history := []models.HistoryEvent{
		{StoryID: "seed", Source: "BBC", Topics: []string{"space"}, Action: models.ActionSave, Timestamp: now.Add(-24 * time.Hour)},
	}
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewPersonalized
	prefs.MutedTopics = []string{"space"}

	ranked := Rank([]models.Story{
		story("a", "BBC", []string{"space"}, now),
		story("b", "CNN", []string{"weather"}, now),
	}, history, prefs, "", nil, now, DefaultOptions())

	require.Len(t, ranked, 1)
	assert.Equal(t, "b", ranked[0].ID)
}

func TestRankIsTotalOnEmptyInput(t *testing.T) {
	now := time.Now()
	ranked := Rank(nil, nil, models.DefaultPreferences(), "", nil, now, DefaultOptions())
	assert.NotEmpty(t, ranked, "empty input yields the fallback set, never nil")
}

func TestRankEmptySavedViewStaysEmpty(t *testing.T) {
	now := time.Now()
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewSaved

	ranked := Rank(nil, nil, prefs, "", nil, now, DefaultOptions())
	assert.Empty(t, ranked, "nothing saved means nothing shown, not the fallback set")
}

func TestRankDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	input := []models.Story{story("a", "BBC", []string{"space"}, now)}
	prefs := models.DefaultPreferences()
	prefs.ActiveView = models.ViewPersonalized

	_ = Rank(input, nil, prefs, "", nil, now, DefaultOptions())
	assert.Zero(t, input[0].Score, "caller's slice stays untouched")
}
