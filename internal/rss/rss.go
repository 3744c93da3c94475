// Package rss renders a change history as an RSS 2.0 document.
package rss

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/capcom6/difffeed/internal/feed"
	"github.com/gorilla/feeds"
	"github.com/samber/lo"
)

// RFC 1123 with a literal GMT zone, as RSS readers expect.
const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

const lineBreak = "<br/>\n"

type Config struct {
	Title       string
	Link        string
	Description string
	Language    string
	Generator   string
}

// Source is what a Renderer needs from a history.
type Source interface {
	Events() []feed.Event
	LastUpdate() time.Time
}

type Renderer struct {
	cfg Config
}

func New(cfg Config) *Renderer {
	if cfg.Description == "" {
		cfg.Description = cfg.Title
	}

	return &Renderer{
		cfg: cfg,
	}
}

// Render writes the document with the newest event first.
func (r *Renderer) Render(w io.Writer, source Source) error {
	events := source.Events()
	slices.Reverse(events)

	channel := &feeds.RssFeed{
		Title:       r.cfg.Title,
		Link:        r.cfg.Link,
		Description: r.cfg.Description,
		Language:    r.cfg.Language,
		PubDate:     formatDate(source.LastUpdate()),
		Generator:   r.cfg.Generator,
		Items:       lo.Map(events, func(event feed.Event, _ int) *feeds.RssItem { return r.item(event) }),
	}

	doc, err := feeds.ToXML(channel)
	if err != nil {
		return fmt.Errorf("can't encode feed: %w", err)
	}

	if _, err := io.WriteString(w, doc+"\n"); err != nil {
		return fmt.Errorf("can't write feed: %w", err)
	}

	return nil
}

func (r *Renderer) item(event feed.Event) *feeds.RssItem {
	return &feeds.RssItem{
		Title:       event.Summary(),
		Link:        r.cfg.Link,
		Description: strings.Join(event.Lines(), lineBreak),
		PubDate:     formatDate(event.Time()),
		Guid: &feeds.RssGuid{
			Id:          fmt.Sprintf("%s#%d", r.cfg.Link, event.ID()),
			IsPermaLink: "false",
		},
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateFormat)
}
