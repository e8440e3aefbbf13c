package api

import (
	"sync"
)

// Event is one message on a run's progress stream.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const (
	EventProgress = "run.progress"
	EventFinished = "run.finished"
	EventFailed   = "run.failed"
)

func (e Event) terminal() bool { return e.Type == EventFinished || e.Type == EventFailed }

// EventBroker fans run events out to subscribers. Unsubscribe closes the
// channel returned by Subscribe.
type EventBroker interface {
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
	Publish(runID string, evt Event)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	m := b.subs[runID]
	_, ok := m[ch]
	if ok {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, runID)
		}
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish never blocks. A full subscriber misses progress events but
// always receives the terminal one.
func (b *Broker) Publish(runID string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[runID] {
		offer(ch, evt)
	}
	b.mu.Unlock()
}

// offer sends evt without blocking. When ch is full a terminal event
// evicts the oldest queued event. Callers must be the only sender on ch.
func offer(ch chan Event, evt Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	if !evt.terminal() {
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
