package dm

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/network"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

func TestSendDmWithoutConnectFails(t *testing.T) {
	tr := &Transport{senders: make(map[identity.ID]network.Stream), inbox: make(chan Inbound, 1)}

	var peer identity.ID
	peer[0] = 1
	err := tr.SendDM(peer, wire.DmChat{Sender: identity.ID{}, Receiver: peer, Content: "hi"})
	if err != ErrNoDmSender {
		t.Fatalf("got %v, want ErrNoDmSender", err)
	}
	select {
	case <-tr.inbox:
		t.Fatal("inbox should be empty")
	default:
	}
}
