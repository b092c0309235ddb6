package wire

import (
	"testing"

	"github.com/nexu-chat/nexu/internal/identity"
)

func TestDmChatRoundTrip(t *testing.T) {
	var sender, receiver identity.ID
	sender[0], receiver[0] = 1, 2

	want := DmChat{Sender: sender, Receiver: receiver, Content: "hi", Timestamp: 55}
	decoded, err := DecodeDmMessage(EncodeDmMessage(want))
	if err != nil {
		t.Fatalf("DecodeDmMessage: %v", err)
	}
	got, ok := decoded.(DmChat)
	if !ok {
		t.Fatalf("decoded type %T, want DmChat", decoded)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDmProfileMetadataRoundTrip(t *testing.T) {
	var id identity.ID
	id[0] = 9
	want := DmProfileMetadata{ID: id, Username: "alice", Avatar: []byte{9, 9}, LastConnection: 123}
	decoded, err := DecodeDmMessage(EncodeDmMessage(want))
	if err != nil {
		t.Fatalf("DecodeDmMessage: %v", err)
	}
	got, ok := decoded.(DmProfileMetadata)
	if !ok {
		t.Fatalf("decoded type %T, want DmProfileMetadata", decoded)
	}
	if got.Username != want.Username || got.LastConnection != want.LastConnection {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeDmMessageUnknownTag(t *testing.T) {
	_, err := DecodeDmMessage([]byte{0xEE})
	if _, ok := err.(ErrUnknownDmTag); !ok {
		t.Fatalf("got %v (%T), want ErrUnknownDmTag", err, err)
	}
}
