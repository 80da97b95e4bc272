package library

import (
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
)

// ErrItemNotFound is returned when no item has the requested ID.
var ErrItemNotFound = errors.New("item not found")

// EventType describes a change to the store.
type EventType string

const (
	// EventAppended is sent after an item is appended.
	EventAppended EventType = "appended"
	// EventCleared is sent after DeleteAll.
	EventCleared EventType = "cleared"
)

// Event is delivered to observers after every mutation.
type Event struct {
	Type EventType
	// Item is the appended item. Zero for EventCleared.
	Item Item
	// Len is the number of items after the change.
	Len int
}

// Observer receives store change notifications.
type Observer interface {
	OnStoreChange(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnStoreChange calls f(e).
func (f ObserverFunc) OnStoreChange(e Event) { f(e) }

// Store is an ordered, in-memory collection of items. Insertion order is
// the order used for generation and listing. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     []Item
	observers map[int]Observer
	nextObs   int
	logger    *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		items:     make([]Item, 0),
		observers: make(map[int]Observer),
		logger:    logger,
	}
}

// Append adds item at the end of the sequence.
func (s *Store) Append(item Item) {
	s.mu.Lock()
	s.items = append(s.items, item)
	n := len(s.items)
	obs := s.observerList()
	s.mu.Unlock()

	notify(obs, Event{Type: EventAppended, Item: item, Len: n})
}

// DeleteAll releases every item and empties the store. Backing video files
// are removed best effort: failures are logged and do not stop the sweep.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	items := s.items
	s.items = make([]Item, 0)
	obs := s.observerList()
	s.mu.Unlock()

	for i := range items {
		if items[i].Kind == KindVideo && items[i].VideoPath != "" {
			if err := os.Remove(items[i].VideoPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove video file",
					slog.String("item_id", items[i].ID),
					slog.String("path", items[i].VideoPath),
					slog.String("error", err.Error()),
				)
			}
		}
		items[i].Photo = nil
	}

	s.logger.Info("library cleared", slog.Int("removed", len(items)))
	notify(obs, Event{Type: EventCleared})
}

// Snapshot returns a copy of the items in insertion order.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the item with the given ID.
func (s *Store) Get(id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return Item{}, ErrItemNotFound
}

// Photos returns the photo items in insertion order.
func (s *Store) Photos() []Item {
	return s.filter(KindPhoto)
}

// Videos returns the video items in insertion order.
func (s *Store) Videos() []Item {
	return s.filter(KindVideo)
}

func (s *Store) filter(kind Kind) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, item := range s.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// Subscribe registers o for change notifications. Observers are called
// outside the store lock, in no particular order. The returned function
// removes the registration.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, key)
			s.mu.Unlock()
		})
	}
}

// observerList must be called with s.mu held.
func (s *Store) observerList() []Observer {
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	return obs
}

func notify(obs []Observer, e Event) {
	for _, o := range obs {
		o.OnStoreChange(e)
	}
}
