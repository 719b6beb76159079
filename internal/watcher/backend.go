package watcher

import "context"

// Backend is the platform-specific watching implementation behind Watcher.
type Backend interface {
	// Watch registers a file or directory. Directories are watched
	// recursively.
	Watch(path string) error

	// Start blocks delivering events until the context is cancelled or
	// Stop is called.
	Start(ctx context.Context) error

	// Stop releases all watches and closes the event channels.
	Stop() error

	Events() <-chan Event
	Errors() <-chan error
}
