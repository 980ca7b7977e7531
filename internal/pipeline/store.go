package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jondoveston/vmtop/internal/model"
)

// Result is one completed fetch cycle.
type Result struct {
	Entities  []string       `json:"entities"`
	Snapshot  model.Snapshot `json:"snapshot"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Store holds the latest Result. Results are swapped in whole, so a reader
// sees either the previous cycle or the new one.
type Store struct {
	current atomic.Pointer[Result]

	mu   sync.Mutex
	subs map[int]func(*Result)
	next int
}

func NewStore() *Store {
	s := &Store{subs: make(map[int]func(*Result))}
	s.current.Store(&Result{Entities: []string{}, Snapshot: model.Snapshot{}})
	return s
}

// Load returns the latest result. Callers must not modify it.
func (s *Store) Load() *Result {
	return s.current.Load()
}

// Publish replaces the current result and notifies subscribers.
func (s *Store) Publish(r *Result) {
	s.current.Store(r)

	s.mu.Lock()
	fns := make([]func(*Result), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

// Subscribe calls fn after every Publish until the returned func is called.
func (s *Store) Subscribe(fn func(*Result)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.next
	s.next++
	s.subs[key] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, key)
	}
}

func (s *Store) Entities() []string {
	return s.Load().Entities
}

func (s *Store) NumberOfEntities() int {
	return len(s.Load().Entities)
}

func (s *Store) MaxEntityNameLen() int {
	longest := 0
	for _, id := range s.Load().Entities {
		if len(id) > longest {
			longest = len(id)
		}
	}
	return longest
}
