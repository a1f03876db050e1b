package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"newsreader/internal/llm"
	"newsreader/internal/rank"
	"newsreader/internal/store"
	"newsreader/pkg/models"
)

// Repository is the persistence surface the service needs. PgStore
// implements it; tests substitute fakes.
type Repository interface {
	SaveStories([]*models.Story) error
	RecentStories(limit int) ([]models.Story, error)
	StoriesByIDs(ids []string) ([]models.Story, error)
	AppendEvent(*models.HistoryEvent) error
	ListEvents(limit int) ([]models.HistoryEvent, error)
	LoadState(key string, dest interface{}) error
	SaveState(key string, v interface{}) error
}

// Fetcher pulls one source's batch.
type Fetcher interface {
	Fetch(ctx context.Context, src models.Source) ([]models.Story, error)
}

// Options carries the tunables wired in from config.
type Options struct {
	Sources  []models.Source
	Ranking  rank.Options
	BatchTTL time.Duration
	PoolSize int
}

type Service struct {
	repo    Repository
	rdb     *redis.Client
	fetcher Fetcher
	llm     *llm.Client
	opts    Options
}

func NewService(repo Repository, rdb *redis.Client, fetcher Fetcher, llmClient *llm.Client, opts Options) *Service {
	if opts.Ranking.HalfLifeDays <= 0 {
		opts.Ranking = rank.DefaultOptions()
	}
	if opts.BatchTTL <= 0 {
		opts.BatchTTL = 5 * time.Minute
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 500
	}
	return &Service{repo: repo, rdb: rdb, fetcher: fetcher, llm: llmClient, opts: opts}
}

// Sources returns the configured source list with the user's
// enable/disable overrides applied.
func (s *Service) Sources(ctx context.Context) []models.Source {
	prefs := s.loadPreferences()
	out := make([]models.Source, len(s.opts.Sources))
	copy(out, s.opts.Sources)
	for i := range out {
		if enabled, ok := prefs.EnabledSources[out[i].Key]; ok {
			out[i].Enabled = enabled
		}
	}
	return out
}

// Refresh fetches every enabled source and persists the normalized
// stories. One failing source contributes an empty batch and an entry
// in the returned failure map; it never aborts the pass.
func (s *Service) Refresh(ctx context.Context) (int, map[string]string) {
	failures := map[string]string{}
	var all []*models.Story

	for _, src := range s.Sources(ctx) {
		if !src.Enabled {
			continue
		}
		batch, err := s.fetchBatch(ctx, src)
		if err != nil {
			log.Printf("refresh: source %s failed: %v", src.Key, err)
			failures[src.Key] = err.Error()
			continue
		}
		for i := range batch {
			all = append(all, &batch[i])
		}
	}

	if len(all) > 0 {
		if err := s.repo.SaveStories(all); err != nil {
			log.Printf("refresh: persist failed: %v", err)
			failures["_store"] = err.Error()
			return 0, failures
		}
	}
	return len(all), failures
}

// fetchBatch consults the redis batch cache before hitting origin.
// Redis being down only disables the cache.
func (s *Service) fetchBatch(ctx context.Context, src models.Source) ([]models.Story, error) {
	key := "feed:batch:" + src.Key
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var cached []models.Story
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	batch, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(batch); err == nil {
			if err := s.rdb.Set(ctx, key, raw, s.opts.BatchTTL).Err(); err != nil {
				log.Printf("refresh: cache write for %s failed: %v", src.Key, err)
			}
		}
	}
	return batch, nil
}

// Feed assembles one view. view overrides the stored active view when
// valid; search filters by title/source substring. Always returns a
// list, possibly the fallback set.
func (s *Service) Feed(ctx context.Context, view models.View, search string, limit int) ([]models.Story, error) {
	prefs := s.loadPreferences()
	if view.Valid() {
		prefs.ActiveView = view
	}

	var pool []models.Story
	if prefs.ActiveView == models.ViewSaved {
		// Saved view reads the snapshots, not the live pool.
		for _, snap := range s.loadSaved() {
			pool = append(pool, snap)
		}
	} else {
		stored, err := s.repo.RecentStories(s.opts.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("load pool: %w", err)
		}
		pool = stored
	}

	events, err := s.repo.ListEvents(0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	ranked := rank.Rank(pool, events, prefs, search, s.loadDismissed(), time.Now(), s.opts.Ranking)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RecordEvent appends one interaction to history, denormalizing the
// story's fields at write time. Save and dismiss actions also update
// their respective sets.
func (s *Service) RecordEvent(ctx context.Context, storyID string, action models.Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	stories, err := s.repo.StoriesByIDs([]string{storyID})
	if err != nil {
		return fmt.Errorf("fetch story: %w", err)
	}
	if len(stories) == 0 {
		return ErrStoryNotFound
	}
	story := stories[0]

	ev := &models.HistoryEvent{
		StoryID:   story.ID,
		URL:       story.URL,
		Title:     story.Title,
		Source:    story.Source,
		Topics:    story.Topics,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.AppendEvent(ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	switch action {
	case models.ActionSave:
		return s.SaveStory(ctx, storyID)
	case models.ActionDismiss:
		return s.DismissStory(ctx, storyID)
	}
	return nil
}

// ErrStoryNotFound reports an unknown story id.
var ErrStoryNotFound = errors.New("story not found")

// SaveStory snapshots the story as it looks right now; the snapshot is
// independent of later pool changes.
func (s *Service) SaveStory(ctx context.Context, storyID string) error {
	stories, err := s.repo.StoriesByIDs([]string{storyID})
	if err != nil {
		return fmt.Errorf("fetch story: %w", err)
	}
	if len(stories) == 0 {
		return ErrStoryNotFound
	}
	saved := s.loadSaved()
	saved[storyID] = stories[0]
	return s.repo.SaveState(store.StateSaved, saved)
}

func (s *Service) UnsaveStory(ctx context.Context, storyID string) error {
	saved := s.loadSaved()
	delete(saved, storyID)
	return s.repo.SaveState(store.StateSaved, saved)
}

// DismissStory hides the story from latest/personalized views. A story
// can be both saved and dismissed; the saved view ignores dismissals.
func (s *Service) DismissStory(ctx context.Context, storyID string) error {
	dismissed := s.loadDismissed()
	dismissed[storyID] = true
	return s.repo.SaveState(store.StateDismissed, dismissed)
}

func (s *Service) ClearDismissals(ctx context.Context) error {
	return s.repo.SaveState(store.StateDismissed, map[string]bool{})
}

func (s *Service) Preferences(ctx context.Context) models.Preferences {
	return s.loadPreferences()
}

func (s *Service) UpdatePreferences(ctx context.Context, prefs models.Preferences) error {
	if !prefs.ActiveView.Valid() {
		prefs.ActiveView = models.ViewLatest
	}
	if prefs.EnabledSources == nil {
		prefs.EnabledSources = map[string]bool{}
	}
	if prefs.MutedTopics == nil {
		prefs.MutedTopics = []string{}
	}
	return s.repo.SaveState(store.StatePreferences, prefs)
}

// Assist forwards one prompt to the generative-AI service. Single
// attempt, no retry.
func (s *Service) Assist(ctx context.Context, prompt string) (json.RawMessage, error) {
	return s.llm.Generate(ctx, prompt)
}

// AssistantConfigured reports whether the upstream credential exists.
func (s *Service) AssistantConfigured() bool {
	return s.llm.Configured()
}

// State loaders degrade to empty defaults when nothing was ever saved
// or the store read fails; the pipeline is total either way.

func (s *Service) loadPreferences() models.Preferences {
	prefs := models.DefaultPreferences()
	if err := s.repo.LoadState(store.StatePreferences, &prefs); err != nil && !errors.Is(err, store.ErrStateNotFound) {
		log.Printf("state: load preferences: %v", err)
	}
	return prefs
}

func (s *Service) loadSaved() map[string]models.Story {
	saved := map[string]models.Story{}
	if err := s.repo.LoadState(store.StateSaved, &saved); err != nil && !errors.Is(err, store.ErrStateNotFound) {
		log.Printf("state: load saved: %v", err)
	}
	return saved
}

func (s *Service) loadDismissed() map[string]bool {
	dismissed := map[string]bool{}
	if err := s.repo.LoadState(store.StateDismissed, &dismissed); err != nil && !errors.Is(err, store.ErrStateNotFound) {
		log.Printf("state: load dismissed: %v", err)
	}
	return dismissed
}
