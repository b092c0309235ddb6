// Package appstate is the single in-memory model of everything a nexu
// client knows: its own profile, the topics it belongs to, its contacts,
// and its DM threads. It exposes a guarded mutation API and a change
// notification mechanism the UI layer subscribes to; it never calls back
// into the UI directly.
package appstate

import (
	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
	"github.com/nexu-chat/nexu/internal/wire"
)

// Profile is a displayable identity: either the local user's own profile
// or a known contact's.
type Profile struct {
	ID             identity.ID
	Name           string
	Avatar         []byte
	LastConnection uint64
	Online         bool
}

// NewProfile constructs a Profile whose name defaults to the id's printable
// form, for contacts seen before any ProfileMetadata has arrived.
func NewProfile(id identity.ID) Profile {
	return Profile{ID: id, Name: id.String()}
}

// EventKind tags which fields of Event are meaningful.
type EventKind int

const (
	EventChat EventKind = iota
	EventJoin
	EventLeave
	EventDisconnect
	EventBlob
)

// Event is a tagged entry in a topic's or DM thread's timeline. Only the
// fields relevant to Kind are populated; unused fields are zero.
type Event struct {
	Kind      EventKind
	Sender    identity.ID
	Topic     identity.TopicID // populated for topic events; zero for DM events
	Content   string           // EventChat
	Timestamp uint64
	Hash      blob.Hash      // EventBlob
	Name      string         // EventBlob
	Size      uint64         // EventBlob
	BlobKind  wire.BlobKind  // EventBlob
}

// chatKey identifies a ChatEvent by the four fields the reconciliation
// protocol's equality predicate is defined over: sender, topic, content,
// timestamp.
type chatKey struct {
	sender    identity.ID
	topic     identity.TopicID
	content   string
	timestamp uint64
}

func (e Event) chatKey() chatKey {
	return chatKey{sender: e.Sender, topic: e.Topic, content: e.Content, timestamp: e.Timestamp}
}

// Topic is the app-facing view of a joined or created gossip topic.
type Topic struct {
	Ticket             ticket.Ticket
	Name               string
	Avatar             []byte
	LastActivity       uint64
	Members            map[identity.ID]struct{}
	Messages           []Event
	LastMetadataChange uint64

	chatIndex map[chatKey]struct{}
}

func newTopic(t ticket.Ticket, self identity.ID) *Topic {
	top := &Topic{
		Ticket:    t,
		Members:   map[identity.ID]struct{}{self: {}},
		chatIndex: make(map[chatKey]struct{}),
	}
	return top
}

// HasChat reports whether an event equal to e (by the four-field key) is
// already stored.
func (t *Topic) HasChat(e Event) bool {
	_, ok := t.chatIndex[e.chatKey()]
	return ok
}

// AppendChat inserts e in receive order if it is not a duplicate. Reports
// whether it was actually inserted.
func (t *Topic) AppendChat(e Event) bool {
	k := e.chatKey()
	if _, ok := t.chatIndex[k]; ok {
		return false
	}
	t.chatIndex[k] = struct{}{}
	t.Messages = append(t.Messages, e)
	return true
}

// RebuildIndex repopulates chatIndex from Messages. Callers that construct
// a Topic outside of newTopic — persistence loading is the only one — must
// call this once before the topic is used, or AppendChat will write into a
// nil map.
func (t *Topic) RebuildIndex() {
	t.chatIndex = make(map[chatKey]struct{}, len(t.Messages))
	for _, e := range t.Messages {
		if e.Kind == EventChat {
			t.chatIndex[e.chatKey()] = struct{}{}
		}
	}
}

// MemberList returns Members as a slice, for snapshots and wire encoding.
func (t *Topic) MemberList() []identity.ID {
	out := make([]identity.ID, 0, len(t.Members))
	for id := range t.Members {
		out = append(out, id)
	}
	return out
}

// ChatEventsForWire returns every stored EventChat entry as the wire
// variant the gossip anti-entropy batch carries — the local chat set
// reconciliation reconciles against.
func (t *Topic) ChatEventsForWire() []wire.GossipChat {
	out := make([]wire.GossipChat, 0, len(t.Messages))
	for _, e := range t.Messages {
		if e.Kind == EventChat {
			out = append(out, wire.GossipChat{Sender: e.Sender, TopicID: e.Topic, Content: e.Content, Timestamp: e.Timestamp})
		}
	}
	return out
}

// Snapshot is a point-in-time, independently readable copy of the whole
// state, handed to subscribers after every mutation.
type Snapshot struct {
	Profile   Profile
	Topics    []Topic
	Contacts  []Profile
	DMThreads map[identity.ID][]Event
}
