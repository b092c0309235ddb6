package persist

import (
	"testing"
	"time"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestLoadEmptyDataDir(t *testing.T) {
	fs := newTestStore(t)

	topics, err := fs.LoadTopics()
	if err != nil || topics != nil {
		t.Fatalf("LoadTopics on empty dir = %v, %v, want nil, nil", topics, err)
	}
	contacts, err := fs.LoadContacts()
	if err != nil || contacts != nil {
		t.Fatalf("LoadContacts on empty dir = %v, %v, want nil, nil", contacts, err)
	}
	p, err := fs.LoadProfile()
	if err != nil || p.Name != "" || p.ID != (identity.ID{}) {
		t.Fatalf("LoadProfile on empty dir = %+v, %v, want zero, nil", p, err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	var id identity.ID
	id[0] = 7
	want := appstate.Profile{ID: id, Name: "dril", Avatar: []byte{1, 2, 3}, LastConnection: 42}

	if err := fs.SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := fs.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got.ID != want.ID || got.Name != want.Name || got.LastConnection != want.LastConnection || string(got.Avatar) != string(want.Avatar) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestContactsRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	var a, b identity.ID
	a[0], b[0] = 1, 2
	want := []appstate.Profile{
		{ID: a, Name: "alice"},
		{ID: b, Name: "bob", Avatar: []byte{9, 9}},
	}

	if err := fs.SaveContacts(want); err != nil {
		t.Fatalf("SaveContacts: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := fs.LoadContacts()
	if err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || string(got[i].Avatar) != string(want[i].Avatar) {
			t.Fatalf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopicsRoundTripWithChatHistory(t *testing.T) {
	fs := newTestStore(t)
	var self, sender identity.ID
	self[0], sender[0] = 1, 2
	topicID, err := identity.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}

	state := appstate.New(self)
	state.CreateTopic(ticket.Ticket{Topic: topicID}, self)
	state.WithTopicByID(topicID, func(top *appstate.Topic) {
		top.Name = "General"
		top.LastMetadataChange = 5
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: sender, Topic: topicID, Content: "hi", Timestamp: 1})
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: sender, Topic: topicID, Content: "there", Timestamp: 2})
	})

	snap := state.Snapshot()
	var topics []*appstate.Topic
	for i := range snap.Topics {
		topics = append(topics, &snap.Topics[i])
	}

	if err := fs.SaveTopics(topics); err != nil {
		t.Fatalf("SaveTopics: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := fs.LoadTopics()
	if err != nil {
		t.Fatalf("LoadTopics: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len(loaded) = %d, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Name != "General" || got.LastMetadataChange != 5 {
		t.Fatalf("got %+v, want General@5", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
	}
	if got.Ticket.Topic != topicID {
		t.Fatalf("got.Ticket.Topic = %x, want %x", got.Ticket.Topic, topicID)
	}

	if !got.HasChat(appstate.Event{Kind: appstate.EventChat, Sender: sender, Topic: topicID, Content: "hi", Timestamp: 1}) {
		t.Fatal("RebuildIndex should have populated chatIndex from loaded Messages")
	}
}

func TestFlushIsNoOpWhenNothingDirty(t *testing.T) {
	fs := newTestStore(t)
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush on clean store: %v", err)
	}
}
