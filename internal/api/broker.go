package api

import (
	"sync"

	"fleetroute/internal/model"
)

// EventBroker fans run events out to stream subscribers.
type EventBroker interface {
	Subscribe(runID string) chan model.Event
	Unsubscribe(runID string, ch chan model.Event)
	Publish(runID string, evt model.Event)
}

// Broker is the in-process EventBroker. Slow subscribers drop progress
// events instead of blocking the publisher; terminal events always land.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Event]struct{} // runID -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan model.Event {
	ch := make(chan model.Event, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan model.Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Broker) Publish(runID string, evt model.Event) {
	b.mu.Lock()
	for ch := range b.subs[runID] {
		deliver(ch, evt)
	}
	b.mu.Unlock()
}

// deliver sends evt without blocking. A full buffer drops progress events,
// but a run.completed or run.failed evicts the oldest buffered event so the
// stream still sees the run end. Each channel must have a single sender.
func deliver(ch chan model.Event, evt model.Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	if evt.Type != model.EventRunCompleted && evt.Type != model.EventRunFailed {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}
