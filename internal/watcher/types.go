package watcher

import (
	"time"

	"mediawatch/internal/event"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/protocol"
)

const (
	defaultDebounce   = 500 * time.Millisecond
	defaultTick       = 100 * time.Millisecond
	defaultMaxWatches = 256
)

// ChangeKind is the direction of a raw filesystem change.
type ChangeKind int

const (
	KindCreated ChangeKind = iota
	KindRemoved
)

func (kind ChangeKind) String() string {
	switch kind {
	case KindCreated:
		return "created"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// RawEvent is one raw notification from a subscription. DirKnown reports
// whether the backend could determine IsDir; removals of unwatched paths
// cannot be classified at notification time.
type RawEvent struct {
	Path     string
	Kind     ChangeKind
	IsDir    bool
	DirKnown bool
}

// Subscription is one live recursive watch rooted at a directory.
type Subscription interface {
	Close() error
}

// Backend starts recursive subscriptions. Implementations must deliver
// events for newly created subdirectories without the caller re-registering:
// a backend without native recursion registers each discovered subdirectory
// before forwarding its creation downstream.
type Backend interface {
	Subscribe(root string, sink func(RawEvent), onError func(error)) (Subscription, error)
}

// Options controls core behavior.
type Options struct {
	Backend         Backend
	Bus             *event.Bus[protocol.Event]
	Logger          *logging.Logger
	Debounce        time.Duration
	Tick            time.Duration
	MaxWatches      int
	Ignore          media.IgnoreSet
	SkipInitialScan bool
}

// Metrics reports current core stats.
type Metrics struct {
	ActiveWatches  int
	EventsEmitted  uint64
	EventsFiltered uint64
	EventsDropped  uint64
}
