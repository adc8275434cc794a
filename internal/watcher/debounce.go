package watcher

import (
	"sort"
	"time"
)

type pendingKey struct {
	watchID string
	path    string
}

// pendingChange is one path awaiting settlement. At most one exists per
// (watch id, path) pair; further notifications refresh lastObserved and the
// latest observed kind wins.
type pendingChange struct {
	watchID      string
	path         string
	kind         ChangeKind
	isDir        bool
	dirKnown     bool
	lastObserved time.Time
}

type debouncer struct {
	window  time.Duration
	entries map[pendingKey]*pendingChange
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		entries: make(map[pendingKey]*pendingChange),
	}
}

func (debouncer *debouncer) observe(watchID string, raw RawEvent, now time.Time) {
	key := pendingKey{watchID: watchID, path: raw.Path}
	entry, ok := debouncer.entries[key]
	if !ok {
		entry = &pendingChange{watchID: watchID, path: raw.Path}
		debouncer.entries[key] = entry
	}
	entry.kind = raw.Kind
	if raw.DirKnown {
		entry.isDir = raw.IsDir
		entry.dirKnown = true
	}
	entry.lastObserved = now
}

// settle removes and returns every entry quiet for at least the window,
// sorted by path so a directory precedes its descendants.
func (debouncer *debouncer) settle(now time.Time) []*pendingChange {
	if len(debouncer.entries) == 0 {
		return nil
	}

	var settled []*pendingChange
	for key, entry := range debouncer.entries {
		if now.Sub(entry.lastObserved) >= debouncer.window {
			settled = append(settled, entry)
			delete(debouncer.entries, key)
		}
	}
	sort.Slice(settled, func(left, right int) bool {
		if settled[left].path != settled[right].path {
			return settled[left].path < settled[right].path
		}
		return settled[left].watchID < settled[right].watchID
	})
	return settled
}

// cancel drops every pending entry for a watch id and reports how many were
// discarded.
func (debouncer *debouncer) cancel(watchID string) int {
	dropped := 0
	for key := range debouncer.entries {
		if key.watchID == watchID {
			delete(debouncer.entries, key)
			dropped++
		}
	}
	return dropped
}

func (debouncer *debouncer) pending() int {
	return len(debouncer.entries)
}
