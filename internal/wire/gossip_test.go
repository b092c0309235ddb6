package wire

import (
	"bytes"
	"testing"

	"github.com/nexu-chat/nexu/internal/identity"
)

func TestGossipChatRoundTrip(t *testing.T) {
	topic, err := identity.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}
	var sender identity.ID
	sender[0] = 7

	want := GossipChat{Sender: sender, TopicID: topic, Content: "hello", Timestamp: 100}
	encoded := EncodeGossipMessage(want)

	decoded, err := DecodeGossipMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeGossipMessage: %v", err)
	}
	got, ok := decoded.(GossipChat)
	if !ok {
		t.Fatalf("decoded type %T, want GossipChat", decoded)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGossipTopicMetadataRoundTrip(t *testing.T) {
	topic, _ := identity.NewTopicID()
	var m1, m2 identity.ID
	m1[0], m2[0] = 1, 2

	want := GossipTopicMetadata{
		TopicID:   topic,
		Name:      "Room",
		Avatar:    []byte{1, 2, 3},
		Timestamp: 200,
		Members:   []identity.ID{m1, m2},
	}
	decoded, err := DecodeGossipMessage(EncodeGossipMessage(want))
	if err != nil {
		t.Fatalf("DecodeGossipMessage: %v", err)
	}
	got, ok := decoded.(GossipTopicMetadata)
	if !ok {
		t.Fatalf("decoded type %T, want GossipTopicMetadata", decoded)
	}
	if got.Name != want.Name || got.Timestamp != want.Timestamp || !bytes.Equal(got.Avatar, want.Avatar) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(got.Members) != 2 || got.Members[0] != m1 || got.Members[1] != m2 {
		t.Fatalf("members mismatch: got %+v", got.Members)
	}
}

func TestDecodeGossipMessageUnknownTag(t *testing.T) {
	_, err := DecodeGossipMessage([]byte{0xEE})
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
	if _, ok := err.(ErrUnknownGossipTag); !ok {
		t.Fatalf("got %T, want ErrUnknownGossipTag", err)
	}
}

func TestDecodeGossipMessageTrailingBytes(t *testing.T) {
	topic, _ := identity.NewTopicID()
	var sender identity.ID
	encoded := EncodeGossipMessage(GossipChat{Sender: sender, TopicID: topic, Content: "x", Timestamp: 1})
	encoded = append(encoded, 0xFF)
	if _, err := DecodeGossipMessage(encoded); err != ErrTrailingBytes {
		t.Fatalf("got %v, want ErrTrailingBytes", err)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	topic, _ := identity.NewTopicID()
	var sender identity.ID
	msg := GossipChat{Sender: sender, TopicID: topic, Content: "same", Timestamp: 42}
	a := EncodeGossipMessage(msg)
	b := EncodeGossipMessage(msg)
	if !bytes.Equal(a, b) {
		t.Fatal("identical structures produced different bytes")
	}
}
