package feed

import (
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
)

const (
	summaryLimit = 40
	ellipsis     = "..."
)

// Event is one scan's worth of added and removed paths. It is immutable.
type Event struct {
	time    time.Time
	added   []string
	removed []string
}

// NewEvent copies and sorts the given paths. At least one of them must be non-empty.
func NewEvent(t time.Time, added, removed []string) (Event, error) {
	if len(added) == 0 && len(removed) == 0 {
		return Event{}, ErrEmptyEvent
	}

	return Event{
		time:    t,
		added:   sorted(added),
		removed: sorted(removed),
	}, nil
}

func (e Event) Time() time.Time {
	return e.time
}

func (e Event) Added() []string {
	return slices.Clone(e.added)
}

func (e Event) Removed() []string {
	return slices.Clone(e.removed)
}

// ID is the event time in seconds since the epoch.
func (e Event) ID() int64 {
	return e.time.Unix()
}

// Lines lists added paths prefixed with "+ " followed by removed paths
// prefixed with "- ", each group sorted.
func (e Event) Lines() []string {
	lines := make([]string, 0, len(e.added)+len(e.removed))
	lines = append(lines, lo.Map(e.added, prefixed("+ "))...)
	lines = append(lines, lo.Map(e.removed, prefixed("- "))...)
	return lines
}

// Summary is a short description of the event, at most 40 characters.
func (e Event) Summary() string {
	summary := strings.Join(e.Lines(), " ")

	runes := []rune(summary)
	if len(runes) <= summaryLimit {
		return summary
	}

	cut := string(runes[:summaryLimit-len(ellipsis)])
	return strings.TrimRightFunc(cut, unicode.IsSpace) + ellipsis
}

func prefixed(prefix string) func(string, int) string {
	return func(item string, _ int) string {
		return prefix + item
	}
}

func sorted(items []string) []string {
	items = slices.Clone(items)
	slices.Sort(items)
	return items
}
