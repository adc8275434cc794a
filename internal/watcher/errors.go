package watcher

import "errors"

var (
	// ErrInvalidPath marks an add target that is missing or not a directory.
	ErrInvalidPath = errors.New("path does not exist or is not a directory")
	// ErrWatchStart wraps an OS-level watch registration failure.
	ErrWatchStart = errors.New("failed to start watch")
	// ErrUnknownWatch marks a remove for an id that was never added.
	ErrUnknownWatch = errors.New("unknown watch id")

	ErrMaxWatchesExceeded = errors.New("max watches exceeded")
	ErrClosed             = errors.New("watcher is closed")
)
