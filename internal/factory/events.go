package factory

import "sync"

// EventKind names what changed.
type EventKind string

const (
	EventCandidates EventKind = "candidates"
	EventEligible   EventKind = "eligible"
	EventSelection  EventKind = "selection"
	EventSession    EventKind = "session"
	EventDisplay    EventKind = "display"
	EventEstimate   EventKind = "estimate"
	EventSubmission EventKind = "submission"
)

// Event carries the snapshot taken right after a change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}

// broadcaster fans events out to subscribers. Slow subscribers miss events
// rather than block the driver.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	Subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
			Subscribers.Dec()
		})
	}
}

func (b *broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			DroppedEventsTotal.Inc()
		}
	}
}
