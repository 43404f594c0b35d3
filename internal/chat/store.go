package chat

import (
	"slices"
	"strings"
	"sync"
)

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventSelected EventKind = "selected"
	EventDeleted  EventKind = "deleted"
	EventRenamed  EventKind = "renamed"
	EventAppended EventKind = "appended"
	EventCleared  EventKind = "cleared"
)

// Event describes one completed mutation of the Store.
type Event struct {
	Kind      EventKind
	SessionID string
	// ActiveID is the active session after the mutation ("" for none).
	ActiveID string
}

// Store owns the ordered chat sessions and the active pointer. The slice
// order is the display order: new sessions go to the front. Every method
// completes its mutation under the lock and notifies subscribers after
// releasing it.
type Store struct {
	mu       sync.Mutex
	sessions []*Session
	activeID string

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for every later mutation. Callbacks run on the
// mutating goroutine and must not block.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) CreateSession() string {
	s.mu.Lock()
	id := s.insertLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventCreated, SessionID: id, ActiveID: id})
	return id
}

func (s *Store) insertLocked() string {
	id := NewSessionID()
	s.sessions = append([]*Session{{ID: id, Title: DefaultTitle, Messages: []Message{}}}, s.sessions...)
	s.activeID = id
	return id
}

// EnsureDefault creates the single default session when the store is
// empty, and repoints a dangling active id at the first session. It
// reports the active id and whether a session was created.
func (s *Store) EnsureDefault() (string, bool) {
	s.mu.Lock()
	if len(s.sessions) == 0 {
		id := s.insertLocked()
		s.mu.Unlock()
		s.notify(Event{Kind: EventCreated, SessionID: id, ActiveID: id})
		return id, true
	}
	repaired := false
	if s.find(s.activeID) == nil {
		s.activeID = s.sessions[0].ID
		repaired = true
	}
	id := s.activeID
	s.mu.Unlock()

	if repaired {
		s.notify(Event{Kind: EventSelected, SessionID: id, ActiveID: id})
	}
	return id, false
}

// SelectSession sets the active pointer without checking existence.
func (s *Store) SelectSession(id string) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()

	s.notify(Event{Kind: EventSelected, SessionID: id, ActiveID: id})
}

// DeleteSession removes id. Deleting the active session promotes the
// first remaining session, or leaves none when the store is empty.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions = slices.Delete(s.sessions, idx, idx+1)
	if s.activeID == id {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	active := s.activeID
	s.mu.Unlock()

	s.notify(Event{Kind: EventDeleted, SessionID: id, ActiveID: active})
	return true
}

func (s *Store) RenameSession(id, title, description string) bool {
	s.mu.Lock()
	sess := s.find(id)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Title = title
	sess.Description = description
	active := s.activeID
	s.mu.Unlock()

	s.notify(Event{Kind: EventRenamed, SessionID: id, ActiveID: active})
	return true
}

// AppendMessage reports false, changing nothing, when the session is gone.
func (s *Store) AppendMessage(sessionID string, msg Message) bool {
	s.mu.Lock()
	sess := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Messages = append(sess.Messages, msg)
	active := s.activeID
	s.mu.Unlock()

	s.notify(Event{Kind: EventAppended, SessionID: sessionID, ActiveID: active})
	return true
}

func (s *Store) ClearMessages(sessionID string) bool {
	s.mu.Lock()
	sess := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Messages = []Message{}
	active := s.activeID
	s.mu.Unlock()

	s.notify(Event{Kind: EventCleared, SessionID: sessionID, ActiveID: active})
	return true
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a copy of the active session; false when the active id
// does not resolve.
func (s *Store) Active() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(s.activeID)
	if sess == nil {
		return Session{}, false
	}
	return sess.clone(), true
}

func (s *Store) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(id)
	if sess == nil {
		return Session{}, false
	}
	return sess.clone(), true
}

// Sessions returns copies in display order.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	return out
}

// Search filters by case-insensitive title substring, keeping display order.
func (s *Store) Search(query string) []Session {
	q := strings.ToLower(query)
	all := s.Sessions()
	out := all[:0]
	for _, sess := range all {
		if strings.Contains(strings.ToLower(sess.Title), q) {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) indexOf(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) find(id string) *Session {
	if i := s.indexOf(id); i >= 0 {
		return s.sessions[i]
	}
	return nil
}
