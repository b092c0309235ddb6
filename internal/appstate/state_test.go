package appstate

import (
	"testing"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
)

func TestCreateTopicIncludesSelf(t *testing.T) {
	var self identity.ID
	self[0] = 1
	s := New(self)

	tk := ticket.Ticket{}
	top := s.CreateTopic(tk, self)
	if _, ok := top.Members[self]; !ok {
		t.Fatal("self not in members after CreateTopic")
	}
}

func TestAppendChatDedup(t *testing.T) {
	var self, sender identity.ID
	self[0], sender[0] = 1, 2
	s := New(self)
	tk := ticket.Ticket{}
	s.CreateTopic(tk, self)

	ev := Event{Kind: EventChat, Sender: sender, Content: "hi", Timestamp: 100}
	key := tk.String()

	s.WithTopic(key, func(top *Topic) {
		if !top.AppendChat(ev) {
			t.Fatal("first insert should succeed")
		}
		if top.AppendChat(ev) {
			t.Fatal("duplicate insert should be rejected")
		}
	})

	top, _ := s.GetTopic(key)
	if len(top.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(top.Messages))
	}
}

func TestSubscribeNotifiedOnMutation(t *testing.T) {
	var self identity.ID
	self[0] = 9
	s := New(self)

	notified := make(chan Snapshot, 1)
	s.Subscribe(func(snap Snapshot) { notified <- snap })

	s.UpsertContact(NewProfile(identity.ID{1}))

	select {
	case snap := <-notified:
		if len(snap.Contacts) != 1 {
			t.Fatalf("len(Contacts) = %d, want 1", len(snap.Contacts))
		}
	default:
		t.Fatal("subscriber was not notified")
	}
}
