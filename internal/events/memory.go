package events

import (
	"context"
	"sync"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// InMemoryPublisher appends events to an ordered, queryable buffer. Used by
// tests and by single-process runs that do not need a broker.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []*core.DomainEvent
}

// NewInMemoryPublisher creates an empty in-memory publisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

// Publish implements core.EventPublisher.
func (p *InMemoryPublisher) Publish(_ context.Context, event *core.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns all published events in publication order.
func (p *InMemoryPublisher) Events() []*core.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*core.DomainEvent(nil), p.events...)
}

// EventsOfType returns events with the given type, in publication order.
func (p *InMemoryPublisher) EventsOfType(eventType string) []*core.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*core.DomainEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// EventsOfAggregate returns events for the given pipeline, in publication
// order.
func (p *InMemoryPublisher) EventsOfAggregate(aggregateID string) []*core.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*core.DomainEvent
	for _, e := range p.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all recorded events.
func (p *InMemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
