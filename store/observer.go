package store

// EventType identifies a store object lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventFreed
	EventBorrowed
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventFreed:
		return "freed"
	case EventBorrowed:
		return "borrowed"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents an object lifecycle event.
type Event struct {
	Value any
	ID    ID
	Type  EventType
}

// Observer receives notifications about object lifecycle events.
// Notifications are delivered synchronously, outside the store lock.
type Observer interface {
	OnStoreEvent(Event)
}

// Dropper is optionally implemented by stored values that need cleanup
// when they are freed or the store is closed.
type Dropper interface {
	Drop()
}

// Subscribe adds an observer for lifecycle events.
func (s *Store) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Unsubscribe removes an observer.
func (s *Store) Unsubscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, obs := range s.observers {
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) notify(e Event) {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, o := range s.observers {
		o.OnStoreEvent(e)
	}
}
