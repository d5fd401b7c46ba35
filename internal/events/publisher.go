// Package events publishes settled mutations so other processes can react to
// changes made through this client.
package events

import (
	"context"
	"sync"
)

// Publisher delivers mutation events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev *MutationEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *MutationEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []MutationEvent
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
	_ Publisher = (*Client)(nil)
)

func (r *Recorder) Publish(_ context.Context, ev *MutationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []MutationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MutationEvent(nil), r.events...)
}
