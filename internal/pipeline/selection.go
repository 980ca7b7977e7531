package pipeline

import (
	"sync"

	"github.com/jondoveston/vmtop/internal/model"
)

// Selection holds the single entity currently chosen for display. It is
// either unselected or holds an id; ids are never cleared or checked against
// the entity list, so a vanished id simply derives an empty bundle.
type Selection struct {
	mu       sync.RWMutex
	id       string
	selected bool

	subMu sync.Mutex
	subs  map[int]func(id string)
	next  int
}

// NewSelection selects the first id, or starts unselected when ids is empty.
func NewSelection(ids []string) *Selection {
	s := &Selection{subs: make(map[int]func(string))}
	if len(ids) > 0 {
		s.id = ids[0]
		s.selected = true
	}
	return s
}

// Select makes id the current selection and notifies subscribers.
func (s *Selection) Select(id string) {
	s.mu.Lock()
	s.id = id
	s.selected = true
	s.mu.Unlock()

	s.notify(id)
}

// SelectDefault selects the first id if nothing is selected yet.
// It reports whether the selection changed.
func (s *Selection) SelectDefault(ids []string) bool {
	if len(ids) == 0 {
		return false
	}

	s.mu.Lock()
	if s.selected {
		s.mu.Unlock()
		return false
	}
	s.id = ids[0]
	s.selected = true
	s.mu.Unlock()

	s.notify(ids[0])
	return true
}

func (s *Selection) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.selected
}

// Subscribe registers fn to be called with the new id after every Select.
// Calls happen on the selecting goroutine. The returned func unsubscribes.
func (s *Selection) Subscribe(fn func(id string)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	key := s.next
	s.next++
	s.subs[key] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, key)
	}
}

// Derive returns the bundle of the selected entity in snap. The second
// result is false when nothing is selected or snap has no such entity; the
// bundle is then empty.
func (s *Selection) Derive(snap model.Snapshot) (model.ChartBundle, bool) {
	id, ok := s.Current()
	if !ok {
		return model.EmptyBundle(), false
	}
	return snap.Get(id)
}

func (s *Selection) notify(id string) {
	s.subMu.Lock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
