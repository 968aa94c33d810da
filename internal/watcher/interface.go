package watcher

import "context"

// Watcher monitors an inbox directory and hands new transcripts to a handler.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler processes one file that appeared in the inbox.
type EventHandler func(ctx context.Context, filePath string) error
