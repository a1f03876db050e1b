package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsreader/pkg/models"
)

const defaultUserAgent = "newsreader/1.0 (+https://example.org)"

// Fetcher pulls one remote feed and normalizes its items into Story
// records. A Fetcher is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher builds a Fetcher; a nil client gets a default with
// timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, userAgent: defaultUserAgent}
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title      string   `xml:"title"`
	Link       string   `xml:"link"`
	GUID       string   `xml:"guid"`
	Desc       string   `xml:"description"`
	PubDate    string   `xml:"pubDate"`
	Categories []string `xml:"category"`
	Enclosure  struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
	Summary string `xml:"summary"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// Fetch retrieves and parses one source. Malformed items (no title and
// no link) are dropped; a transport or parse failure is returned as an
// error so the caller can treat the source as an empty batch.
func (f *Fetcher) Fetch(ctx context.Context, src models.Source) ([]models.Story, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feeds: build request for %s: %w", src.Key, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feeds: fetch %s: %w", src.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feeds: fetch %s: status %d", src.Key, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("feeds: read %s: %w", src.Key, err)
	}
	return Parse(body, src)
}

// Parse turns a raw RSS 2.0 or Atom document into normalized stories
// attributed to src.
func Parse(raw []byte, src models.Source) ([]models.Story, error) {
	label := src.Label
	if label == "" {
		label = src.Key
	}

	var rss rssFeed
	if err := xml.Unmarshal(raw, &rss); err == nil && len(rss.Channel.Items) > 0 {
		stories := make([]models.Story, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			title := strings.TrimSpace(item.Title)
			link := strings.TrimSpace(item.Link)
			if title == "" && link == "" {
				continue
			}
			id := strings.TrimSpace(item.GUID)
			if id == "" {
				id = link
			}
			if id == "" {
				continue
			}
			story := models.Story{
				ID:          id,
				Title:       title,
				URL:         link,
				Source:      label,
				PublishedAt: parseFeedTime(item.PubDate),
				Excerpt:     strings.TrimSpace(item.Desc),
				Topics:      trimAll(item.Categories),
			}
			if strings.HasPrefix(item.Enclosure.Type, "image/") {
				story.ImageURL = item.Enclosure.URL
			}
			stories = append(stories, story)
		}
		return stories, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(raw, &atom); err != nil {
		return nil, fmt.Errorf("feeds: parse %s: %w", src.Key, err)
	}
	if len(atom.Entries) == 0 {
		return nil, fmt.Errorf("feeds: parse %s: no recognizable items", src.Key)
	}
	stories := make([]models.Story, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		title := strings.TrimSpace(entry.Title)
		link := ""
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		if title == "" && link == "" {
			continue
		}
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = link
		}
		if id == "" {
			continue
		}
		topics := make([]string, 0, len(entry.Categories))
		for _, c := range entry.Categories {
			topics = append(topics, c.Term)
		}
		stories = append(stories, models.Story{
			ID:          id,
			Title:       title,
			URL:         link,
			Source:      label,
			PublishedAt: parseFeedTime(entry.Updated),
			Excerpt:     strings.TrimSpace(entry.Summary),
			Topics:      trimAll(topics),
		})
	}
	return stories, nil
}

// feedTimeLayouts covers the date formats seen in the wild across RSS
// and Atom feeds.
var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	// Unparseable dates degrade to "just fetched" rather than dropping
	// the story.
	return time.Now().UTC()
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
