package watcher

type EventsChannel <-chan Event

// Event reports that the tree settled after one or more changes.
type Event struct {
	// RelPaths lists the touched paths relative to the root, sorted.
	RelPaths []string
}
