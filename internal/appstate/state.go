package appstate

import (
	"sync"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
)

// AppState is the single guarded in-memory model. All mutation goes
// through its methods, which take the lock for the minimum critical
// section and then notify subscribers after releasing it.
type AppState struct {
	mu sync.Mutex

	profile     Profile
	topics      map[string]*Topic // keyed by Ticket.String()
	topicsByID  map[identity.TopicID]string
	contacts    map[identity.ID]Profile
	dmThreads   map[identity.ID][]Event

	subMu sync.Mutex
	subs  []func(Snapshot)
}

// New returns an AppState whose self profile starts as NewProfile(self).
func New(self identity.ID) *AppState {
	return &AppState{
		profile:    NewProfile(self),
		topics:     make(map[string]*Topic),
		topicsByID: make(map[identity.TopicID]string),
		contacts:   make(map[identity.ID]Profile),
		dmThreads:  make(map[identity.ID][]Event),
	}
}

// Subscribe registers cb to run after every mutation, with a fresh
// Snapshot. The initial snapshot is not delivered; call Snapshot() once up
// front if the caller needs a baseline view.
func (s *AppState) Subscribe(cb func(Snapshot)) {
	s.subMu.Lock()
	s.subs = append(s.subs, cb)
	s.subMu.Unlock()
}

func (s *AppState) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.subMu.Lock()
	subs := append([]func(Snapshot){}, s.subs...)
	s.subMu.Unlock()
	for _, cb := range subs {
		cb(snap)
	}
}

// Snapshot returns a consistent point-in-time copy of the whole state.
func (s *AppState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *AppState) snapshotLocked() Snapshot {
	topics := make([]Topic, 0, len(s.topics))
	for _, t := range s.topics {
		cp := *t
		cp.Members = make(map[identity.ID]struct{}, len(t.Members))
		for id := range t.Members {
			cp.Members[id] = struct{}{}
		}
		cp.Messages = append([]Event(nil), t.Messages...)
		topics = append(topics, cp)
	}
	contacts := make([]Profile, 0, len(s.contacts))
	for _, p := range s.contacts {
		contacts = append(contacts, p)
	}
	threads := make(map[identity.ID][]Event, len(s.dmThreads))
	for id, evs := range s.dmThreads {
		threads[id] = append([]Event(nil), evs...)
	}
	return Snapshot{Profile: s.profile, Topics: topics, Contacts: contacts, DMThreads: threads}
}

// Profile returns the local user's profile.
func (s *AppState) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// SetProfile replaces the local user's profile.
func (s *AppState) SetProfile(p Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	s.notify()
}

// Contact looks up a known contact by id.
func (s *AppState) Contact(id identity.ID) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.contacts[id]
	return p, ok
}

// UpsertContact inserts or replaces a contact's profile.
func (s *AppState) UpsertContact(p Profile) {
	s.mu.Lock()
	s.contacts[p.ID] = p
	s.mu.Unlock()
	s.notify()
}

// RemoveContact deletes a contact, if present.
func (s *AppState) RemoveContact(id identity.ID) {
	s.mu.Lock()
	delete(s.contacts, id)
	s.mu.Unlock()
	s.notify()
}

// CreateTopic inserts a new topic owned by t.Ticket, with self already a
// member. It is a no-op (returning the existing topic) if the ticket is
// already known — a TopicId is active in at most one subscription.
func (s *AppState) CreateTopic(t ticket.Ticket, self identity.ID) *Topic {
	key := t.String()
	s.mu.Lock()
	top, ok := s.topics[key]
	if !ok {
		top = newTopic(t, self)
		s.topics[key] = top
		s.topicsByID[t.Topic] = key
	}
	s.mu.Unlock()
	s.notify()
	return top
}

// GetTopic looks up a topic by its ticket string.
func (s *AppState) GetTopic(ticketStr string) (*Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[ticketStr]
	return t, ok
}

// GetTopicByID looks up a topic by its bare topic id — the key every
// inbound gossip message carries, as opposed to the full ticket string
// AppState otherwise indexes by.
func (s *AppState) GetTopicByID(id identity.TopicID) (*Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.topicsByID[id]
	if !ok {
		return nil, false
	}
	t, ok := s.topics[key]
	return t, ok
}

// DeleteTopic removes a topic entirely (used by LeaveTopic).
func (s *AppState) DeleteTopic(ticketStr string) {
	s.mu.Lock()
	if t, ok := s.topics[ticketStr]; ok {
		delete(s.topicsByID, t.Ticket.Topic)
	}
	delete(s.topics, ticketStr)
	s.mu.Unlock()
	s.notify()
}

// WithTopic runs fn with the topic named ticketStr locked against
// concurrent mutation, then notifies subscribers. Reports whether the
// topic existed.
func (s *AppState) WithTopic(ticketStr string, fn func(*Topic)) bool {
	s.mu.Lock()
	t, ok := s.topics[ticketStr]
	if ok {
		fn(t)
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return ok
}

// WithTopicByID is WithTopic keyed by the bare topic id instead of the
// full ticket string.
func (s *AppState) WithTopicByID(id identity.TopicID, fn func(*Topic)) bool {
	s.mu.Lock()
	key, ok := s.topicsByID[id]
	var t *Topic
	if ok {
		t, ok = s.topics[key]
	}
	if ok {
		fn(t)
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return ok
}

// DMThread returns the event history with peer id.
func (s *AppState) DMThread(id identity.ID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.dmThreads[id]...)
}

// LoadProfile sets the local user's profile without notifying subscribers
// — for use once at startup, before anything has subscribed.
func (s *AppState) LoadProfile(p Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
}

// LoadContacts adds contacts to the contact set (replacing any entry with
// the same id) without notifying subscribers — for use once at startup.
func (s *AppState) LoadContacts(contacts []Profile) {
	s.mu.Lock()
	for _, p := range contacts {
		s.contacts[p.ID] = p
	}
	s.mu.Unlock()
}

// LoadTopics installs previously persisted topics without notifying
// subscribers — for use once at startup. Each topic must already have
// RebuildIndex called on it.
func (s *AppState) LoadTopics(topics []*Topic) {
	s.mu.Lock()
	for _, t := range topics {
		key := t.Ticket.String()
		s.topics[key] = t
		s.topicsByID[t.Ticket.Topic] = key
	}
	s.mu.Unlock()
}

// AppendDMEvent appends ev to the thread with peer id.
func (s *AppState) AppendDMEvent(id identity.ID, ev Event) {
	s.mu.Lock()
	s.dmThreads[id] = append(s.dmThreads[id], ev)
	s.mu.Unlock()
	s.notify()
}
