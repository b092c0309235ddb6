package gossiptopic

import (
	"context"
	"strings"
	"testing"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

func TestSendNotSubscribed(t *testing.T) {
	m := &Manager{topics: make(map[identity.TopicID]*subscription)}
	topic, _ := identity.NewTopicID()
	msg := wire.GossipChat{TopicID: topic, Content: "hi"}
	if err := m.Send(context.Background(), msg); err != ErrNotSubscribed {
		t.Fatalf("got %v, want ErrNotSubscribed", err)
	}
}

func TestSendPayloadTooLarge(t *testing.T) {
	m := &Manager{topics: make(map[identity.TopicID]*subscription)}
	topic, _ := identity.NewTopicID()
	big := strings.Repeat("x", MaxPayload+1)
	msg := wire.GossipChat{TopicID: topic, Content: big}
	if err := m.Send(context.Background(), msg); err != ErrPayloadTooLarge {
		t.Fatalf("got %v, want ErrPayloadTooLarge", err)
	}
}
