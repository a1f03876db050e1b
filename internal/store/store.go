package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	dbtypes "newsreader/internal/db"
	"newsreader/pkg/models"
)

// historyCap bounds the interaction log; the oldest events beyond it
// are deleted on append.
const historyCap = 500

// State keys for the user_state document table.
const (
	StatePreferences = "preferences"
	StateSaved       = "saved"
	StateDismissed   = "dismissed"
)

type PgStore struct {
	db *sqlx.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS stories(
  id TEXT PRIMARY KEY,
  title TEXT,
  url TEXT,
  source TEXT,
  published_at TIMESTAMP,
  excerpt TEXT,
  image_url TEXT,
  topics JSONB
);

CREATE INDEX IF NOT EXISTS idx_stories_published ON stories(published_at);
CREATE INDEX IF NOT EXISTS idx_stories_source ON stories(source);
CREATE INDEX IF NOT EXISTS idx_stories_topics ON stories USING GIN (topics);

CREATE TABLE IF NOT EXISTS history_events(
  id UUID PRIMARY KEY,
  story_id TEXT,
  url TEXT,
  title TEXT,
  source TEXT,
  topics JSONB,
  action TEXT,
  ts TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_ts ON history_events(ts);

CREATE TABLE IF NOT EXISTS user_state(
  key TEXT PRIMARY KEY,
  doc JSONB NOT NULL
);
`
	_, err := db.Exec(initSQL)
	return err
}

// SaveStories upserts a batch keyed by story identity. A story with an
// empty id gets a generated one; it will never deduplicate against a
// guid/url identity, which is the best we can do for records missing
// both.
func (p *PgStore) SaveStories(stories []*models.Story) error {
	tx, err := p.db.Beginx()
	if err != nil {
		return err
	}

	stmt := `
INSERT INTO stories (id, title, url, source, published_at, excerpt, image_url, topics)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb)
ON CONFLICT (id) DO UPDATE SET
 title=EXCLUDED.title,
 url=EXCLUDED.url,
 source=EXCLUDED.source,
 published_at=EXCLUDED.published_at,
 excerpt=EXCLUDED.excerpt,
 image_url=EXCLUDED.image_url,
 topics=EXCLUDED.topics;
`

	for _, s := range stories {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if s.Topics == nil {
			s.Topics = dbtypes.StringSlice{}
		}
		if s.PublishedAt.IsZero() {
			s.PublishedAt = time.Now().UTC()
		}

		if _, err := tx.Exec(stmt,
			s.ID, s.Title, s.URL, s.Source, s.PublishedAt,
			s.Excerpt, s.ImageURL, s.Topics,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert story id=%s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// RecentStories returns the newest stories, the candidate pool for a
// ranking pass.
func (p *PgStore) RecentStories(limit int) ([]models.Story, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	rows := []models.Story{}
	query := `
SELECT id,title,url,source,published_at,excerpt,image_url,topics
FROM stories
ORDER BY published_at DESC
LIMIT $1
`
	err := p.db.Select(&rows, query, limit)
	return rows, err
}

func (p *PgStore) StoriesByIDs(ids []string) ([]models.Story, error) {
	rows := []models.Story{}
	if len(ids) == 0 {
		return rows, nil
	}
	query := `
SELECT id,title,url,source,published_at,excerpt,image_url,topics
FROM stories
WHERE id = ANY($1)
`
	err := p.db.Select(&rows, query, pq.Array(ids))
	return rows, err
}

// AppendEvent writes one history event and trims the log to the cap,
// oldest rows first. The log is append-only: events are never updated.
func (p *PgStore) AppendEvent(ev *models.HistoryEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Topics == nil {
		ev.Topics = dbtypes.StringSlice{}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	tx, err := p.db.Beginx()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
INSERT INTO history_events (id, story_id, url, title, source, topics, action, ts)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8)
`, ev.ID, ev.StoryID, ev.URL, ev.Title, ev.Source, ev.Topics, ev.Action, ev.Timestamp); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert event story_id=%s: %w", ev.StoryID, err)
	}
	if _, err := tx.Exec(`
DELETE FROM history_events
WHERE id IN (
  SELECT id FROM history_events ORDER BY ts DESC OFFSET $1
)
`, historyCap); err != nil {
		tx.Rollback()
		return fmt.Errorf("trim history: %w", err)
	}
	return tx.Commit()
}

// ListEvents returns up to limit most recent history events.
func (p *PgStore) ListEvents(limit int) ([]models.HistoryEvent, error) {
	if limit <= 0 || limit > historyCap {
		limit = historyCap
	}
	rows := []models.HistoryEvent{}
	query := `
SELECT id,story_id,url,title,source,topics,action,ts
FROM history_events
ORDER BY ts DESC
LIMIT $1
`
	err := p.db.Select(&rows, query, limit)
	return rows, err
}

// ErrStateNotFound reports a missing user_state document.
var ErrStateNotFound = sql.ErrNoRows

// LoadState unmarshals the document stored under key into dest.
// Returns ErrStateNotFound when the key has never been saved.
func (p *PgStore) LoadState(key string, dest interface{}) error {
	var raw []byte
	err := p.db.Get(&raw, `SELECT doc FROM user_state WHERE key = $1`, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SaveState replaces the document stored under key. Load/replace only,
// no partial updates.
func (p *PgStore) SaveState(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", key, err)
	}
	_, err = p.db.Exec(`
INSERT INTO user_state (key, doc) VALUES ($1, $2::jsonb)
ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc
`, key, raw)
	return err
}
