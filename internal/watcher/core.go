package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mediawatch/internal/event"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/protocol"
)

// Core owns the watch registry and the pending-change table. A single
// goroutine serializes every mutation: commands, raw notifications, and
// debounce settlement all pass through its run loop, so none of the state
// needs a lock.
type Core struct {
	backend  Backend
	bus      *event.Bus[protocol.Event]
	logger   *logging.Logger
	debounce time.Duration
	tick     time.Duration
	maxCount int
	ignore   media.IgnoreSet
	skipScan bool

	registry *registry
	pending  *debouncer

	commands chan any
	raw      chan rawMessage
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	activeWatches  atomic.Int64
	eventsEmitted  atomic.Uint64
	eventsFiltered atomic.Uint64
	eventsDropped  atomic.Uint64
}

type rawMessage struct {
	watchID string
	event   RawEvent
}

type addRequest struct {
	id    string
	path  string
	reply chan error
}

type removeRequest struct {
	id    string
	reply chan error
}

type listRequest struct {
	reply chan []protocol.WatchInfo
}

type stopRequest struct {
	reply chan struct{}
}

func New(options Options) *Core {
	logger := options.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	tick := options.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	if tick > debounce {
		tick = debounce
	}
	maxCount := options.MaxWatches
	if maxCount <= 0 {
		maxCount = defaultMaxWatches
	}

	core := &Core{
		backend:  options.Backend,
		bus:      options.Bus,
		logger:   logger.With(map[string]string{"component": "watcher"}),
		debounce: debounce,
		tick:     tick,
		maxCount: maxCount,
		ignore:   options.Ignore,
		skipScan: options.SkipInitialScan,
		registry: newRegistry(),
		pending:  newDebouncer(debounce),
		commands: make(chan any),
		raw:      make(chan rawMessage, 256),
		done:     make(chan struct{}),
	}

	core.wg.Add(1)
	go core.run()
	return core
}

// AddWatch validates the root, starts a subscription, and emits READY. An
// existing entry under the same id is released first.
func (core *Core) AddWatch(id, path string) error {
	reply := make(chan error, 1)
	select {
	case core.commands <- addRequest{id: id, path: path, reply: reply}:
	case <-core.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-core.done:
		return ErrClosed
	}
}

// RemoveWatch cancels pending changes for the id and releases the
// subscription. Returns ErrUnknownWatch when the id was never added.
func (core *Core) RemoveWatch(id string) error {
	reply := make(chan error, 1)
	select {
	case core.commands <- removeRequest{id: id, reply: reply}:
	case <-core.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-core.done:
		return ErrClosed
	}
}

// Watches snapshots the registry sorted by id.
func (core *Core) Watches() []protocol.WatchInfo {
	reply := make(chan []protocol.WatchInfo, 1)
	select {
	case core.commands <- listRequest{reply: reply}:
	case <-core.done:
		return nil
	}
	select {
	case watches := <-reply:
		return watches
	case <-core.done:
		return nil
	}
}

// Shutdown releases every subscription and stops the run loop. Idempotent.
func (core *Core) Shutdown() {
	core.stopOnce.Do(func() {
		reply := make(chan struct{})
		core.commands <- stopRequest{reply: reply}
		<-reply
		close(core.done)
		core.wg.Wait()
	})
}

func (core *Core) Metrics() Metrics {
	return Metrics{
		ActiveWatches:  int(core.activeWatches.Load()),
		EventsEmitted:  core.eventsEmitted.Load(),
		EventsFiltered: core.eventsFiltered.Load(),
		EventsDropped:  core.eventsDropped.Load(),
	}
}

func (core *Core) run() {
	defer core.wg.Done()
	ticker := time.NewTicker(core.tick)
	defer ticker.Stop()

	for {
		select {
		case message := <-core.commands:
			switch request := message.(type) {
			case addRequest:
				request.reply <- core.handleAdd(request.id, request.path)
			case removeRequest:
				request.reply <- core.handleRemove(request.id)
			case listRequest:
				request.reply <- core.registry.list()
			case stopRequest:
				core.handleStop()
				close(request.reply)
				return
			}
		case message := <-core.raw:
			core.handleRaw(message)
		case now := <-ticker.C:
			core.handleTick(now)
		}
	}
}

func (core *Core) handleAdd(id, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	previous := core.registry.get(id)
	if previous == nil && core.registry.size() >= core.maxCount {
		return fmt.Errorf("%w: %d active", ErrMaxWatchesExceeded, core.registry.size())
	}

	// Best effort: a full pipeline drops raw notifications instead of
	// stalling the subscription goroutine.
	sink := func(raw RawEvent) {
		select {
		case core.raw <- rawMessage{watchID: id, event: raw}:
		default:
			core.eventsDropped.Add(1)
		}
	}
	onError := func(watchErr error) {
		core.publish(protocol.ErrorEvent("watch error: "+watchErr.Error(), id))
	}

	sub, err := core.backend.Subscribe(root, sink, onError)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchStart, err)
	}

	// The old entry is released only once the replacement subscription is
	// live; a failed replace leaves it untouched.
	if previous != nil {
		core.registry.take(id)
		dropped := core.pending.cancel(id)
		previous.release()
		core.activeWatches.Add(-1)
		core.logger.Info("watch replaced", map[string]string{
			"watch_id":        id,
			"old_root":        previous.root,
			"pending_dropped": strconv.Itoa(dropped),
		})
	}

	entry := &watchEntry{id: id, root: root, sub: sub}
	core.registry.put(entry)
	core.activeWatches.Add(1)
	core.logger.Info("watch added", map[string]string{
		"watch_id": id,
		"root":     root,
	})

	core.publish(protocol.Ready(id))
	if !core.skipScan {
		core.startScan(entry)
	}
	return nil
}

func (core *Core) handleRemove(id string) error {
	entry := core.registry.take(id)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrUnknownWatch, id)
	}
	dropped := core.pending.cancel(id)
	entry.release()
	core.activeWatches.Add(-1)
	core.logger.Info("watch removed", map[string]string{
		"watch_id":        id,
		"pending_dropped": strconv.Itoa(dropped),
	})
	return nil
}

func (core *Core) handleStop() {
	for _, entry := range core.registry.drain() {
		entry.release()
		core.activeWatches.Add(-1)
	}
	core.pending = newDebouncer(core.debounce)
	core.logger.Info("watcher core stopped", nil)
}

func (core *Core) handleRaw(message rawMessage) {
	if core.registry.get(message.watchID) == nil {
		core.eventsDropped.Add(1)
		return
	}
	path := message.event.Path
	if media.IsHidden(path) || core.ignore.Match(path) {
		core.eventsFiltered.Add(1)
		return
	}
	// Directory changes pass unfiltered; a bin may be created for any
	// subfolder regardless of what it will hold.
	if message.event.Kind == KindCreated && message.event.DirKnown && !message.event.IsDir {
		if !media.IsMediaFile(path) {
			core.eventsFiltered.Add(1)
			return
		}
	}
	core.pending.observe(message.watchID, message.event, time.Now())
}

func (core *Core) handleTick(now time.Time) {
	for _, change := range core.pending.settle(now) {
		entry := core.registry.get(change.watchID)
		if entry == nil {
			continue
		}
		relative := protocol.Rel(entry.root, change.path)
		if relative == "" {
			continue
		}

		kind, isDir := change.kind, change.isDir
		if !change.dirKnown {
			kind, isDir = core.classify(change)
		}

		var outbound protocol.Event
		switch {
		case kind == KindCreated && isDir:
			outbound = protocol.DirAdded(change.watchID, change.path, relative)
		case kind == KindCreated:
			if !media.IsMediaFile(change.path) {
				core.eventsFiltered.Add(1)
				continue
			}
			outbound = protocol.FileAdded(change.watchID, change.path, relative)
		case isDir:
			outbound = protocol.DirRemoved(change.watchID, change.path, relative)
		default:
			outbound = protocol.FileRemoved(change.watchID, change.path, relative)
		}

		core.publish(outbound)
		core.eventsEmitted.Add(1)
		core.logger.Debug("event emitted", map[string]string{
			"event":    outbound.Type,
			"watch_id": change.watchID,
			"relative": relative,
		})
	}
}

// classify settles a change whose directory-ness the backend could not
// determine. A path that still exists answers for itself; a vanished one is
// called a file when its extension is a known media suffix and a directory
// otherwise.
func (core *Core) classify(change *pendingChange) (ChangeKind, bool) {
	if info, err := os.Stat(change.path); err == nil {
		return change.kind, info.IsDir()
	}
	return KindRemoved, !media.IsMediaFile(change.path)
}

func (core *Core) publish(outbound protocol.Event) {
	if core.bus == nil {
		return
	}
	core.bus.Publish(outbound)
}

// startScan walks an added root in the background and reports pre-existing
// content through the same raw pipeline live events use, so scan results
// debounce, dedupe, and order exactly like everything else. Hidden
// directories are pruned from the walk.
func (core *Core) startScan(entry *watchEntry) {
	ctx, cancel := context.WithCancel(context.Background())
	entry.cancelScan = cancel
	watchID, root := entry.id, entry.root

	core.wg.Add(1)
	go func() {
		defer core.wg.Done()
		_ = filepath.WalkDir(root, func(path string, dirEntry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return fs.SkipAll
			default:
			}
			if path == root {
				return nil
			}
			if media.IsHidden(path) {
				if dirEntry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			raw := RawEvent{Path: path, Kind: KindCreated, IsDir: dirEntry.IsDir(), DirKnown: true}
			select {
			case core.raw <- rawMessage{watchID: watchID, event: raw}:
			case <-ctx.Done():
				return fs.SkipAll
			case <-core.done:
				return fs.SkipAll
			}
			return nil
		})
	}()
}
