package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediawatch/internal/logging"
)

const (
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

// FSBackend implements Backend on top of fsnotify. fsnotify watches are not
// recursive, so the subscription registers every directory under the root
// itself and registers each newly created subdirectory synchronously before
// forwarding its creation, keeping descendant events from outrunning the
// registration.
type FSBackend struct {
	logger *logging.Logger
}

func NewFSBackend(logger *logging.Logger) *FSBackend {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FSBackend{logger: logger}
}

func (backend *FSBackend) Subscribe(root string, sink func(RawEvent), onError func(error)) (Subscription, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sub := &fsSubscription{
		root:    root,
		sink:    sink,
		onError: onError,
		logger:  backend.logger.With(map[string]string{"root": root}),
		watcher: notifier,
		dirs:    make(map[string]struct{}),
		events:  make(chan fsnotify.Event, 64),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
	}

	if err := sub.registerDir(root); err != nil {
		_ = notifier.Close()
		return nil, err
	}
	if err := sub.registerSubdirs(root); err != nil {
		_ = notifier.Close()
		return nil, err
	}

	sub.startForwarder(notifier)
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

type fsSubscription struct {
	root    string
	sink    func(RawEvent)
	onError func(error)
	logger  *logging.Logger

	mutex   sync.Mutex
	watcher *fsnotify.Watcher
	dirs    map[string]struct{}
	closed  bool

	events chan fsnotify.Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	restartMutex    sync.Mutex
	restartAttempts int
	restartTimer    *time.Timer
}

func (sub *fsSubscription) Close() error {
	sub.mutex.Lock()
	if sub.closed {
		sub.mutex.Unlock()
		return nil
	}
	sub.closed = true
	notifier := sub.watcher
	sub.watcher = nil
	sub.mutex.Unlock()

	sub.restartMutex.Lock()
	if sub.restartTimer != nil {
		sub.restartTimer.Stop()
		sub.restartTimer = nil
	}
	sub.restartMutex.Unlock()

	close(sub.done)
	var err error
	if notifier != nil {
		err = notifier.Close()
	}
	sub.wg.Wait()
	return err
}

func (sub *fsSubscription) run() {
	defer sub.wg.Done()
	for {
		select {
		case event := <-sub.events:
			sub.handleEvent(event)
		case err := <-sub.errors:
			sub.handleError(err)
		case <-sub.done:
			return
		}
	}
}

// startForwarder pumps one fsnotify instance into the subscription-owned
// channels so run keeps working across watcher restarts.
func (sub *fsSubscription) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case sub.events <- event:
				case <-sub.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case sub.errors <- err:
				case <-sub.done:
					return
				}
			case <-sub.done:
				return
			}
		}
	}()
}

func (sub *fsSubscription) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone before we could look; the debounce window sorts it out.
			sub.emit(RawEvent{Path: event.Name, Kind: KindCreated})
			return
		}
		if info.IsDir() {
			if err := sub.registerDir(event.Name); err != nil {
				sub.logWarn("watch add failed", event.Name, err)
			}
			sub.emit(RawEvent{Path: event.Name, Kind: KindCreated, IsDir: true, DirKnown: true})
			// A directory moved in may already hold content that will never
			// produce its own notifications.
			sub.announceTree(event.Name)
			return
		}
		sub.emit(RawEvent{Path: event.Name, Kind: KindCreated, DirKnown: true})

	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			sub.emit(RawEvent{Path: event.Name, Kind: KindCreated})
			return
		}
		sub.emit(RawEvent{Path: event.Name, Kind: KindCreated, IsDir: info.IsDir(), DirKnown: true})

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		wasDir := sub.dropDir(event.Name)
		sub.emit(RawEvent{Path: event.Name, Kind: KindRemoved, IsDir: wasDir, DirKnown: wasDir})
	}
}

func (sub *fsSubscription) emit(raw RawEvent) {
	if sub.sink == nil {
		return
	}
	sub.sink(raw)
}

func (sub *fsSubscription) registerDir(path string) error {
	sub.mutex.Lock()
	if sub.closed {
		sub.mutex.Unlock()
		return nil
	}
	if _, ok := sub.dirs[path]; ok {
		sub.mutex.Unlock()
		return nil
	}
	sub.dirs[path] = struct{}{}
	notifier := sub.watcher
	sub.mutex.Unlock()

	if notifier == nil {
		return nil
	}
	if err := notifier.Add(path); err != nil {
		sub.mutex.Lock()
		delete(sub.dirs, path)
		sub.mutex.Unlock()
		return err
	}
	return nil
}

func (sub *fsSubscription) registerSubdirs(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		if registerErr := sub.registerDir(path); registerErr != nil {
			sub.logWarn("watch add failed", path, registerErr)
		}
		return nil
	})
}

// announceTree registers nested directories under a freshly created
// directory and synthesizes create notifications for anything already inside.
func (sub *fsSubscription) announceTree(root string) {
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		if entry.IsDir() {
			if registerErr := sub.registerDir(path); registerErr != nil {
				sub.logWarn("watch add failed", path, registerErr)
			}
			sub.emit(RawEvent{Path: path, Kind: KindCreated, IsDir: true, DirKnown: true})
			return nil
		}
		sub.emit(RawEvent{Path: path, Kind: KindCreated, DirKnown: true})
		return nil
	})
}

// dropDir forgets a removed directory and everything registered under it.
// It reports whether the path itself was a registered directory. fsnotify
// drops watches on deleted paths by itself, so no Remove call is needed.
func (sub *fsSubscription) dropDir(path string) bool {
	sub.mutex.Lock()
	defer sub.mutex.Unlock()

	_, wasDir := sub.dirs[path]
	if !wasDir {
		return false
	}
	delete(sub.dirs, path)
	prefix := path + string(os.PathSeparator)
	for registered := range sub.dirs {
		if strings.HasPrefix(registered, prefix) {
			delete(sub.dirs, registered)
		}
	}
	return true
}

func (sub *fsSubscription) handleError(err error) {
	if err == nil {
		return
	}
	sub.logWarn("watch error", sub.root, err)
	sub.scheduleRestart(err)
}

func restartDelay(attempt int) time.Duration {
	return restartBaseDelay * time.Duration(1<<attempt)
}

func (sub *fsSubscription) scheduleRestart(err error) {
	sub.restartMutex.Lock()
	if sub.restartTimer != nil {
		sub.restartMutex.Unlock()
		return
	}
	if sub.restartAttempts >= maxRestartAttempts {
		sub.restartMutex.Unlock()
		if sub.onError != nil {
			sub.onError(err)
		}
		return
	}
	delay := restartDelay(sub.restartAttempts)
	sub.restartAttempts++
	sub.restartTimer = time.AfterFunc(delay, sub.performRestart)
	sub.restartMutex.Unlock()
}

func (sub *fsSubscription) performRestart() {
	restartErr := sub.restart()

	sub.restartMutex.Lock()
	sub.restartTimer = nil
	if restartErr == nil {
		sub.restartAttempts = 0
		sub.restartMutex.Unlock()
		return
	}
	sub.restartMutex.Unlock()

	sub.logWarn("watch restart failed", sub.root, restartErr)
	sub.scheduleRestart(restartErr)
}

func (sub *fsSubscription) restart() error {
	sub.mutex.Lock()
	if sub.closed {
		sub.mutex.Unlock()
		return nil
	}
	paths := make([]string, 0, len(sub.dirs))
	for path := range sub.dirs {
		paths = append(paths, path)
	}
	sub.mutex.Unlock()

	replacement, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if addErr := replacement.Add(path); addErr != nil {
			sub.logWarn("watch re-add failed", path, addErr)
		}
	}

	sub.mutex.Lock()
	if sub.closed {
		sub.mutex.Unlock()
		_ = replacement.Close()
		return nil
	}
	previous := sub.watcher
	sub.watcher = replacement
	sub.mutex.Unlock()

	sub.startForwarder(replacement)
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

func (sub *fsSubscription) logWarn(message, path string, err error) {
	if sub.logger == nil {
		return
	}
	sub.logger.Warn(message, map[string]string{
		"path":  path,
		"error": err.Error(),
	})
}
