package rss

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/capcom6/difffeed/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	events     []feed.Event
	lastUpdate time.Time
}

func (s stubSource) Events() []feed.Event {
	return append([]feed.Event{}, s.events...)
}

func (s stubSource) LastUpdate() time.Time {
	return s.lastUpdate
}

type parsedFeed struct {
	Version string `xml:"version,attr"`
	Channel struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		Description string `xml:"description"`
		PubDate     string `xml:"pubDate"`
		Generator   string `xml:"generator"`
		Language    string `xml:"language"`
		Items       []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
			GUID    struct {
				IsPermaLink string `xml:"isPermaLink,attr"`
				Value       string `xml:",chardata"`
			} `xml:"guid"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

func mustEvent(t *testing.T, ts time.Time, added, removed []string) feed.Event {
	t.Helper()

	event, err := feed.NewEvent(ts, added, removed)
	require.NoError(t, err)

	return event
}

func render(t *testing.T, r *Renderer, source Source) (string, parsedFeed) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, source))

	var parsed parsedFeed
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed), buf.String())

	return buf.String(), parsed
}

func TestRender(t *testing.T) {
	first := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	second := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)

	r := New(Config{
		Title:     "Directory changes",
		Link:      "http://difffeed.example.com/",
		Language:  "en",
		Generator: "DiffFeed/dev",
	})

	raw, parsed := render(t, r, stubSource{
		events: []feed.Event{
			mustEvent(t, first, []string{"b.txt", "a.txt"}, nil),
			mustEvent(t, second, []string{"c.txt"}, []string{"a.txt"}),
		},
		lastUpdate: second,
	})

	assert.True(t, strings.HasPrefix(raw, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.True(t, strings.HasSuffix(raw, "</rss>\n"))
	assert.Equal(t, "2.0", parsed.Version)
	assert.Equal(t, "Directory changes", parsed.Channel.Title)
	assert.Equal(t, "Directory changes", parsed.Channel.Description)
	assert.Equal(t, "http://difffeed.example.com/", parsed.Channel.Link)
	assert.Equal(t, "Sat, 02 Mar 2024 09:30:00 GMT", parsed.Channel.PubDate)
	assert.Equal(t, "DiffFeed/dev", parsed.Channel.Generator)
	assert.Equal(t, "en", parsed.Channel.Language)

	require.Len(t, parsed.Channel.Items, 2)

	newest := parsed.Channel.Items[0]
	assert.Equal(t, "+ c.txt - a.txt", newest.Title)
	assert.Equal(t, "http://difffeed.example.com/", newest.Link)
	assert.Equal(t, "Sat, 02 Mar 2024 09:30:00 GMT", newest.PubDate)
	assert.Equal(t, "false", newest.GUID.IsPermaLink)
	assert.Equal(t, "http://difffeed.example.com/#1709371800", newest.GUID.Value)
	assert.Equal(t, "+ c.txt<br/>\n- a.txt", newest.Description)
	assert.Contains(t, raw, "<description>+ c.txt&lt;br/&gt;")

	oldest := parsed.Channel.Items[1]
	assert.Equal(t, "+ a.txt + b.txt", oldest.Title)
	assert.Equal(t, "Fri, 01 Mar 2024 08:00:00 GMT", oldest.PubDate)
	assert.Equal(t, "+ a.txt<br/>\n+ b.txt", oldest.Description)
}

func TestRender_Empty(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	_, parsed := render(t, New(Config{Title: "t", Link: "http://x/"}), stubSource{lastUpdate: now})

	assert.Empty(t, parsed.Channel.Items)
	assert.Equal(t, "Fri, 01 Mar 2024 07:00:00 GMT", parsed.Channel.PubDate)
}

func TestRender_EscapesPaths(t *testing.T) {
	path := `a<b>&"c"]]>d.txt`
	r := New(Config{Title: "Files & <stuff>", Link: "http://x/?a=1&b=2"})

	raw, parsed := render(t, r, stubSource{
		events:     []feed.Event{mustEvent(t, time.Unix(1, 0), []string{path}, nil)},
		lastUpdate: time.Unix(1, 0),
	})

	assert.NotContains(t, raw, "Files & <stuff>")
	assert.Equal(t, "Files & <stuff>", parsed.Channel.Title)
	assert.Equal(t, "http://x/?a=1&b=2#1", parsed.Channel.Items[0].GUID.Value)
	assert.Equal(t, "+ "+path, parsed.Channel.Items[0].Title)
	assert.Equal(t, "+ "+path, parsed.Channel.Items[0].Description)
}

func TestRender_ManyFilesNotTruncated(t *testing.T) {
	files := []string{"one-long-file-name.txt", "two-long-file-name.txt", "three-long-file-name.txt"}

	_, parsed := render(t, New(Config{Title: "t", Link: "http://x/"}), stubSource{
		events:     []feed.Event{mustEvent(t, time.Unix(1, 0), files, nil)},
		lastUpdate: time.Unix(1, 0),
	})

	item := parsed.Channel.Items[0]
	assert.Equal(t, "+ one-long-file-name.txt + three-long...", item.Title)
	assert.Equal(t, "+ one-long-file-name.txt<br/>\n+ three-long-file-name.txt<br/>\n+ two-long-file-name.txt", item.Description)
}
