package watcher

import (
	"context"
	"sort"

	"mediawatch/internal/protocol"
)

// watchEntry owns one live subscription. Entries are only touched from the
// core goroutine, so the table needs no lock.
type watchEntry struct {
	id         string
	root       string
	sub        Subscription
	cancelScan context.CancelFunc
}

func (entry *watchEntry) release() {
	if entry == nil {
		return
	}
	if entry.cancelScan != nil {
		entry.cancelScan()
		entry.cancelScan = nil
	}
	if entry.sub != nil {
		_ = entry.sub.Close()
		entry.sub = nil
	}
}

type registry struct {
	entries map[string]*watchEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*watchEntry)}
}

func (registry *registry) put(entry *watchEntry) {
	registry.entries[entry.id] = entry
}

func (registry *registry) get(id string) *watchEntry {
	return registry.entries[id]
}

// take removes and returns the entry for id, or nil.
func (registry *registry) take(id string) *watchEntry {
	entry, ok := registry.entries[id]
	if !ok {
		return nil
	}
	delete(registry.entries, id)
	return entry
}

func (registry *registry) size() int {
	return len(registry.entries)
}

func (registry *registry) list() []protocol.WatchInfo {
	watches := make([]protocol.WatchInfo, 0, len(registry.entries))
	for _, entry := range registry.entries {
		watches = append(watches, protocol.WatchInfo{ID: entry.id, Path: entry.root})
	}
	sort.Slice(watches, func(left, right int) bool {
		return watches[left].ID < watches[right].ID
	})
	return watches
}

// drain removes and returns every entry.
func (registry *registry) drain() []*watchEntry {
	drained := make([]*watchEntry, 0, len(registry.entries))
	for id, entry := range registry.entries {
		drained = append(drained, entry)
		delete(registry.entries, id)
	}
	return drained
}
