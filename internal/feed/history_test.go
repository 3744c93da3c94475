package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/capcom6/difffeed/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDiffer struct {
	files snapshot.FileSet
	err   error
}

func (d stubDiffer) Diff(_ string, previous snapshot.FileSet) (snapshot.Result, error) {
	if d.err != nil {
		return snapshot.Result{}, d.err
	}

	result := snapshot.Result{Files: d.files}
	prev := make(map[string]bool, len(previous))
	for _, f := range previous {
		prev[f] = true
	}
	cur := make(map[string]bool, len(d.files))
	for _, f := range d.files {
		cur[f] = true
		if !prev[f] {
			result.Added = append(result.Added, f)
		}
	}
	for _, f := range previous {
		if !cur[f] {
			result.Removed = append(result.Removed, f)
		}
	}

	return result, nil
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time {
		return ts
	}
}

func TestHistory_PushEvicts(t *testing.T) {
	h := New(3)

	events := make([]Event, 0, 7)
	for i := 0; i < 7; i++ {
		event := mustEvent(t, time.Unix(int64(i), 0), []string{"f"}, nil)
		events = append(events, event)
		h.Push(event)

		assert.LessOrEqual(t, h.Len(), 3)
	}

	assert.Equal(t, events[4:], h.Events())
	assert.Equal(t, 3, h.MaxItems())
}

func TestHistory_PushKPlusOne(t *testing.T) {
	const k = DefaultMaxItems
	h := New(k)

	for i := 0; i <= k; i++ {
		h.Push(mustEvent(t, time.Unix(int64(i), 0), []string{"f"}, nil))
	}

	got := h.Events()
	require.Len(t, got, k)
	for i, event := range got {
		assert.Equal(t, int64(i+1), event.ID(), "first pushed event must be evicted and order preserved")
	}
}

func TestHistory_NonPositiveCapacity(t *testing.T) {
	assert.Equal(t, DefaultMaxItems, New(0).MaxItems())
	assert.Equal(t, DefaultMaxItems, New(-5).MaxItems())
}

func TestHistory_LastUpdate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := New(2, WithClock(fixedClock(now)))

	assert.Equal(t, now, h.LastUpdate())

	for i := 1; i <= 3; i++ {
		h.Push(mustEvent(t, time.Unix(int64(i), 0), []string{"f"}, nil))
		assert.Equal(t, time.Unix(int64(i), 0), h.LastUpdate())
	}
}

func TestHistory_Update(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := New(5, WithClock(fixedClock(now)))

	changed, err := h.Update(stubDiffer{files: snapshot.FileSet{"a.txt", "b.txt"}}, "root")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 1, h.Len())

	event := h.Events()[0]
	assert.Equal(t, now, event.Time())
	assert.Equal(t, []string{"a.txt", "b.txt"}, event.Added())
	assert.Empty(t, event.Removed())
	assert.Equal(t, snapshot.FileSet{"a.txt", "b.txt"}, h.Files())

	changed, err = h.Update(stubDiffer{files: snapshot.FileSet{"b.txt", "a.txt"}}, "root")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, snapshot.FileSet{"a.txt", "b.txt"}, h.Files(), "unchanged scan must not replace the file list")

	changed, err = h.Update(stubDiffer{files: snapshot.FileSet{"b.txt", "c.txt"}}, "root")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 2, h.Len())
	assert.Equal(t, "+ c.txt - a.txt", h.Events()[1].Summary())
}

func TestHistory_UpdateError(t *testing.T) {
	h := New(5)

	changed, err := h.Update(stubDiffer{err: snapshot.ErrInvalidPath}, "root")
	assert.False(t, changed)
	assert.ErrorIs(t, err, snapshot.ErrInvalidPath)
	assert.Zero(t, h.Len())
}

func TestHistory_UpdateWithScanner(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
	}

	filter, err := snapshot.NewFilter(nil)
	require.NoError(t, err)
	scanner := snapshot.New(filter)

	h := New(DefaultMaxItems)

	changed, err := h.Update(scanner, root)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.Update(scanner, root)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), nil, 0o644))

	changed, err = h.Update(scanner, root)
	require.NoError(t, err)
	assert.True(t, changed)

	events := h.Events()
	require.Len(t, events, 2)
	assert.Equal(t, []string{"c.txt"}, events[1].Added())
	assert.Equal(t, []string{"a.txt"}, events[1].Removed())
	assert.Equal(t, "+ c.txt - a.txt", events[1].Summary())
}

func TestHistory_UpdateEmptyDirectory(t *testing.T) {
	filter, err := snapshot.NewFilter(nil)
	require.NoError(t, err)

	h := New(DefaultMaxItems)
	changed, err := h.Update(snapshot.New(filter), t.TempDir())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, h.Len())
}
