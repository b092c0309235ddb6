package reconcile

import (
	"testing"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
	"github.com/nexu-chat/nexu/internal/wire"
)

func newTestTopic(t *testing.T, self identity.ID) (*appstate.AppState, identity.TopicID) {
	t.Helper()
	topicID, err := identity.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}
	state := appstate.New(self)
	state.CreateTopic(ticket.Ticket{Topic: topicID}, self)
	return state, topicID
}

func TestMetadataLWWAndReplyWithNewer(t *testing.T) {
	var a, b identity.ID
	a[0], b[0] = 1, 2

	state, topicID := newTestTopic(t, b)
	state.WithTopicByID(topicID, func(top *appstate.Topic) {
		top.Name = "Lobby"
		top.LastMetadataChange = 200
	})

	r := New(state, b)
	out := r.Handle(wire.GossipTopicMetadata{TopicID: topicID, Name: "Room", Timestamp: 100}, a)

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (reply-with-newer)", len(out))
	}
	reply, ok := out[0].(wire.GossipTopicMetadata)
	if !ok {
		t.Fatalf("out[0] type %T, want GossipTopicMetadata", out[0])
	}
	if reply.Name != "Lobby" || reply.Timestamp != 200 {
		t.Fatalf("got %+v, want Lobby@200", reply)
	}

	top, _ := state.GetTopicByID(topicID)
	if top.Name != "Lobby" || top.LastMetadataChange != 200 {
		t.Fatal("stale metadata should not have overwritten newer local state")
	}
}

func TestMetadataNewerIncomingWins(t *testing.T) {
	var a, b identity.ID
	a[0], b[0] = 1, 2
	state, topicID := newTestTopic(t, b)
	state.WithTopicByID(topicID, func(top *appstate.Topic) {
		top.Name = "Old"
		top.LastMetadataChange = 100
	})

	r := New(state, b)
	out := r.Handle(wire.GossipTopicMetadata{TopicID: topicID, Name: "New", Timestamp: 150}, a)
	if len(out) != 0 {
		t.Fatalf("expected no reply when incoming wins, got %+v", out)
	}
	top, _ := state.GetTopicByID(topicID)
	if top.Name != "New" || top.LastMetadataChange != 150 {
		t.Fatalf("got %+v, want New@150", top)
	}
}

func TestLateJoinerReconciliation(t *testing.T) {
	var a, c identity.ID
	a[0], c[0] = 1, 3

	state, topicID := newTestTopic(t, a)
	state.WithTopicByID(topicID, func(top *appstate.Topic) {
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: a, Topic: topicID, Content: "m1", Timestamp: 1})
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: a, Topic: topicID, Content: "m2", Timestamp: 2})
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: a, Topic: topicID, Content: "m3", Timestamp: 3})
	})

	r := New(state, a)
	out := r.Handle(wire.GossipJoinTopic{TopicID: topicID, Endpoint: c, Timestamp: 10}, c)

	var gotBatch bool
	for _, msg := range out {
		if batch, ok := msg.(wire.GossipTopicMessages); ok {
			gotBatch = true
			if len(batch.Messages) != 3 {
				t.Fatalf("len(batch.Messages) = %d, want 3", len(batch.Messages))
			}
		}
	}
	if !gotBatch {
		t.Fatal("expected a TopicMessages reply for a topic with stored chat history")
	}

	top, _ := state.GetTopicByID(topicID)
	if _, ok := top.Members[c]; !ok {
		t.Fatal("joining endpoint should have been added to members")
	}
}

func TestChatAntiEntropyConverges(t *testing.T) {
	var a identity.ID
	a[0] = 1
	state, topicID := newTestTopic(t, a)
	state.WithTopicByID(topicID, func(top *appstate.Topic) {
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: a, Topic: topicID, Content: "local-only", Timestamp: 5})
	})

	r := New(state, a)
	incoming := wire.GossipTopicMessages{
		TopicID: topicID,
		Messages: []wire.GossipChat{
			{Sender: a, TopicID: topicID, Content: "remote-only", Timestamp: 6},
		},
	}
	out := r.Handle(incoming, a)

	top, _ := state.GetTopicByID(topicID)
	if len(top.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 after merge", len(top.Messages))
	}

	if len(out) != 1 {
		t.Fatalf("expected one reply carrying our unique message, got %d", len(out))
	}
	reply := out[0].(wire.GossipTopicMessages)
	if len(reply.Messages) != 1 || reply.Messages[0].Content != "local-only" {
		t.Fatalf("got %+v, want local-only", reply.Messages)
	}
}
