// Package protocol defines the JSON messages exchanged with the panel
// client: inbound commands tagged by "cmd" and outbound events tagged by
// "event", one message per frame.
package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	CmdAddWatch    = "ADD_WATCH"
	CmdRemoveWatch = "REMOVE_WATCH"
	CmdListWatches = "LIST_WATCHES"
	CmdShutdown    = "SHUTDOWN"
)

const (
	EventFileAdded   = "FILE_ADDED"
	EventDirAdded    = "DIR_ADDED"
	EventFileRemoved = "FILE_REMOVED"
	EventDirRemoved  = "DIR_REMOVED"
	EventReady       = "READY"
	EventWatchList   = "WATCH_LIST"
	EventError       = "ERROR"
)

// Command is an inbound control message.
type Command struct {
	Cmd  string `json:"cmd"`
	Path string `json:"path,omitempty"`
	ID   string `json:"id,omitempty"`
}

// ParseCommand decodes and validates one command frame.
func ParseCommand(data []byte) (Command, error) {
	var command Command
	if err := json.Unmarshal(data, &command); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch command.Cmd {
	case CmdAddWatch:
		if command.Path == "" {
			return Command{}, fmt.Errorf("%s requires a path", CmdAddWatch)
		}
		if command.ID == "" {
			return Command{}, fmt.Errorf("%s requires an id", CmdAddWatch)
		}
	case CmdRemoveWatch:
		if command.ID == "" {
			return Command{}, fmt.Errorf("%s requires an id", CmdRemoveWatch)
		}
	case CmdListWatches, CmdShutdown:
	case "":
		return Command{}, fmt.Errorf("missing cmd field")
	default:
		return Command{}, fmt.Errorf("unknown command %q", command.Cmd)
	}
	return command, nil
}

// WatchInfo describes one registered watch in a WATCH_LIST event.
type WatchInfo struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Event is an outbound message. Which fields are meaningful depends on Type;
// MarshalJSON emits only the fields defined for each variant.
type Event struct {
	Type     string
	WatchID  string
	Path     string
	Relative string
	Message  string
	Watches  []WatchInfo
}

func FileAdded(watchID, path, relative string) Event {
	return Event{Type: EventFileAdded, WatchID: watchID, Path: path, Relative: relative}
}

func DirAdded(watchID, path, relative string) Event {
	return Event{Type: EventDirAdded, WatchID: watchID, Path: path, Relative: relative}
}

func FileRemoved(watchID, path, relative string) Event {
	return Event{Type: EventFileRemoved, WatchID: watchID, Path: path, Relative: relative}
}

func DirRemoved(watchID, path, relative string) Event {
	return Event{Type: EventDirRemoved, WatchID: watchID, Path: path, Relative: relative}
}

func Ready(watchID string) Event {
	return Event{Type: EventReady, WatchID: watchID}
}

func WatchList(watches []WatchInfo) Event {
	if watches == nil {
		watches = []WatchInfo{}
	}
	return Event{Type: EventWatchList, Watches: watches}
}

// ErrorEvent builds an ERROR event. An empty watchID marks a global error
// and omits the watch_id field entirely.
func ErrorEvent(message, watchID string) Event {
	return Event{Type: EventError, Message: message, WatchID: watchID}
}

type changeEventJSON struct {
	Event    string `json:"event"`
	WatchID  string `json:"watch_id"`
	Path     string `json:"path"`
	Relative string `json:"relative"`
}

type readyEventJSON struct {
	Event   string `json:"event"`
	WatchID string `json:"watch_id"`
}

type watchListEventJSON struct {
	Event   string      `json:"event"`
	Watches []WatchInfo `json:"watches"`
}

type errorEventJSON struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	WatchID string `json:"watch_id,omitempty"`
}

func (event Event) MarshalJSON() ([]byte, error) {
	switch event.Type {
	case EventFileAdded, EventDirAdded, EventFileRemoved, EventDirRemoved:
		return json.Marshal(changeEventJSON{
			Event:    event.Type,
			WatchID:  event.WatchID,
			Path:     event.Path,
			Relative: event.Relative,
		})
	case EventReady:
		return json.Marshal(readyEventJSON{Event: event.Type, WatchID: event.WatchID})
	case EventWatchList:
		watches := event.Watches
		if watches == nil {
			watches = []WatchInfo{}
		}
		return json.Marshal(watchListEventJSON{Event: event.Type, Watches: watches})
	case EventError:
		return json.Marshal(errorEventJSON{
			Event:   event.Type,
			Message: event.Message,
			WatchID: event.WatchID,
		})
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}

func (event *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Event    string      `json:"event"`
		WatchID  string      `json:"watch_id"`
		Path     string      `json:"path"`
		Relative string      `json:"relative"`
		Message  string      `json:"message"`
		Watches  []WatchInfo `json:"watches"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Event == "" {
		return fmt.Errorf("missing event field")
	}
	*event = Event{
		Type:     raw.Event,
		WatchID:  raw.WatchID,
		Path:     raw.Path,
		Relative: raw.Relative,
		Message:  raw.Message,
		Watches:  raw.Watches,
	}
	return nil
}

// Rel computes the root-relative form of path with forward slashes and no
// leading separator. It returns "" when path is the root itself or escapes
// the root.
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return strings.TrimPrefix(rel, "/")
}
