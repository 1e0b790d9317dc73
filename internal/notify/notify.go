// Package notify pushes tracker events to chat platforms. Delivery is
// best-effort: a failed push is logged and never fails the mutation that
// produced the event.
package notify

import (
	"context"
	"log"
)

// Event is a tracker occurrence worth announcing.
type Event struct {
	Kind     string // issue_assigned, sprint_started, sprint_completed, due_digest
	Title    string
	Body     string
	IssueKey string // display key, e.g. "WEBS-17"; empty for sprint events
}

// Adapter is the interface platform-specific senders must satisfy.
type Adapter interface {
	// Name identifies the platform, e.g. "slack".
	Name() string

	// Send delivers one event to the platform.
	Send(ctx context.Context, ev Event) error

	// Close releases the adapter's resources.
	Close() error
}

// Dispatcher fans one event out to every configured adapter.
type Dispatcher struct {
	adapters []Adapter
}

// NewDispatcher creates a Dispatcher over the given adapters. A nil or
// empty adapter list produces a no-op dispatcher.
func NewDispatcher(adapters ...Adapter) *Dispatcher {
	return &Dispatcher{adapters: adapters}
}

// Publish sends the event to all adapters. Failures are logged per
// adapter and do not stop the fan-out.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	for _, a := range d.adapters {
		if err := a.Send(ctx, ev); err != nil {
			log.Printf("notify: %s: send %s: %v", a.Name(), ev.Kind, err)
		}
	}
}

// Close shuts down every adapter, logging failures.
func (d *Dispatcher) Close() {
	for _, a := range d.adapters {
		if err := a.Close(); err != nil {
			log.Printf("notify: %s: close: %v", a.Name(), err)
		}
	}
}
