package ticket

import (
	"testing"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/identity"
)

func TestTicketRoundTripZero(t *testing.T) {
	want := Ticket{}
	s := want.String()
	// 32-byte topic id + 1-byte uvarint zero bootstrap count = 33 raw
	// bytes; unpadded base32 encodes that as 53 characters.
	if len(s) != 53 {
		t.Fatalf("len(s) = %d, want 53", len(s))
	}
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Topic != want.Topic || len(got.Bootstrap) != 0 {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTicketRoundTripWithBootstrap(t *testing.T) {
	topic, err := identity.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}
	addr1, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	if err != nil {
		t.Fatalf("NewMultiaddr: %v", err)
	}
	var id identity.ID
	id[0] = 42

	want := Ticket{
		Topic: topic,
		Bootstrap: []identity.Addr{
			{ID: id, Relay: "relay.example", Direct: []ma.Multiaddr{addr1}},
		},
	}
	got, err := Parse(want.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Topic != want.Topic {
		t.Fatalf("topic mismatch")
	}
	if len(got.Bootstrap) != 1 || got.Bootstrap[0].ID != id || got.Bootstrap[0].Relay != "relay.example" {
		t.Fatalf("got %+v", got.Bootstrap)
	}
	if len(got.Bootstrap[0].Direct) != 1 || !got.Bootstrap[0].Direct[0].Equal(addr1) {
		t.Fatalf("direct addr mismatch: got %+v", got.Bootstrap[0].Direct)
	}
}

func TestParseInvalidTicket(t *testing.T) {
	if _, err := Parse("not-valid-base32!!"); err != ErrInvalidTicket {
		t.Fatalf("got %v, want ErrInvalidTicket", err)
	}
}

func TestBlobTicketRoundTrip(t *testing.T) {
	var providerID identity.ID
	providerID[0] = 5
	h := blob.HashBytes([]byte("content"))

	want := BlobTicket{
		Provider: identity.Addr{ID: providerID},
		Hash:     h,
		Format:   BlobFormatRaw,
	}
	got, err := ParseBlobTicket(want.String())
	if err != nil {
		t.Fatalf("ParseBlobTicket: %v", err)
	}
	if got.Hash != h || got.Provider.ID != providerID || got.Format != BlobFormatRaw {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
