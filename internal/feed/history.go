package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/capcom6/difffeed/internal/snapshot"
)

const DefaultMaxItems = 30

// Differ compares the tree under rootPath with a previous snapshot.
type Differ interface {
	Diff(rootPath string, previous snapshot.FileSet) (snapshot.Result, error)
}

type Option func(*History)

// WithClock replaces time.Now as the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

// History keeps the most recent change events, oldest first, together with
// the file list of the last scan.
type History struct {
	// ring buffer of at most len(events) items starting at head
	events []Event
	head   int
	size   int

	files snapshot.FileSet
	now   func() time.Time
}

// New returns an empty history holding at most maxItems events. Non-positive
// values fall back to DefaultMaxItems.
func New(maxItems int, opts ...Option) *History {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}

	h := &History{
		events: make([]Event, maxItems),
		files:  snapshot.FileSet{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *History) MaxItems() int {
	return len(h.events)
}

func (h *History) Len() int {
	return h.size
}

// Push appends an event, dropping the oldest one when the history is full.
func (h *History) Push(e Event) {
	if h.size < len(h.events) {
		h.events[(h.head+h.size)%len(h.events)] = e
		h.size++
		return
	}

	h.events[h.head] = e
	h.head = (h.head + 1) % len(h.events)
}

// Events returns the retained events, oldest first.
func (h *History) Events() []Event {
	events := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		events = append(events, h.events[(h.head+i)%len(h.events)])
	}
	return events
}

// Files returns the file list of the most recent scan.
func (h *History) Files() snapshot.FileSet {
	return slices.Clone(h.files)
}

// LastUpdate returns the time of the newest event or the current time when
// there is none.
func (h *History) LastUpdate() time.Time {
	if h.size == 0 {
		return h.now()
	}
	return h.events[(h.head+h.size-1)%len(h.events)].Time()
}

// Update scans rootPath and records a new event if any file was added or
// removed since the previous scan. Nothing is modified when it returns false.
func (h *History) Update(differ Differ, rootPath string) (bool, error) {
	result, err := differ.Diff(rootPath, h.files)
	if err != nil {
		return false, fmt.Errorf("can't diff %s: %w", rootPath, err)
	}

	if !result.Changed() {
		return false, nil
	}

	event, err := NewEvent(h.now(), result.Added, result.Removed)
	if err != nil {
		return false, err
	}

	h.Push(event)
	h.files = result.Files

	return true, nil
}
