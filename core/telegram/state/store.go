package state

import "sync"

type entry struct {
	mu   sync.Mutex
	conv *Conversation
	refs int
}

// Store keeps active conversations in memory.
//
// Do serializes callers per key while allowing dialogs of different users
// to proceed concurrently. The registry lock is never held during callback
// execution, so a slow storage call inside one dialog cannot stall others.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{entries: make(map[Key]*entry)}
}

// Do runs fn with exclusive access to the conversation for k.
// fn receives the current conversation (nil when there is none) and returns
// the conversation to keep; returning nil ends the dialog.
func (s *Store) Do(k Key, fn func(conv *Conversation) *Conversation) {
	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	e.conv = fn(e.conv)
	done := e.conv == nil
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	if done && e.refs == 0 {
		// Re-check under the registry lock: another caller may have
		// started a new conversation for the same key meanwhile.
		e.mu.Lock()
		stillEmpty := e.conv == nil
		e.mu.Unlock()
		if stillEmpty {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// Active reports whether a dialog is currently in progress for k.
func (s *Store) Active(k Key) bool {
	s.mu.Lock()
	e, ok := s.entries[k]
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv != nil
}

// Snapshot returns a copy of the conversation for k, if any.
func (s *Store) Snapshot(k Key) (Conversation, bool) {
	s.mu.Lock()
	e, ok := s.entries[k]
	s.mu.Unlock()
	if !ok {
		return Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv == nil {
		return Conversation{}, false
	}
	cp := *e.conv
	cp.Scratch = make(map[string]string, len(e.conv.Scratch))
	for key, v := range e.conv.Scratch {
		cp.Scratch[key] = v
	}
	return cp, true
}

// End drops the conversation for k, if any.
func (s *Store) End(k Key) {
	s.Do(k, func(*Conversation) *Conversation { return nil })
}

// Len returns the number of keys with active dialogs (for diagnostics).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		e.mu.Lock()
		if e.conv != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
