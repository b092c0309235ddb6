// Package dm implements the direct-message transport: one persistent
// outbound stream per remote peer, an inbound accept handler, and a
// single global inbound queue preserving per-sender FIFO order.
package dm

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/network"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

var log = logging.Logger("nexu/dm")

// Inbound pairs a decoded DmMessage with the endpoint that sent it.
type Inbound struct {
	From identity.ID
	Msg  wire.DmMessage
}

// Transport manages outbound DM streams and the shared inbound queue.
// State per remote id is exactly the NotConnected/Connected pair the wire
// contract describes: no sender entry means NotConnected.
type Transport struct {
	ep *identity.Endpoint

	mu      sync.Mutex
	senders map[identity.ID]network.Stream

	inbox chan Inbound
}

// New wires a Transport to ep and registers its inbound stream handler.
// inboxSize bounds the global inbound queue; a generous size keeps the
// accept handler from blocking on a slow consumer.
func New(ep *identity.Endpoint, inboxSize int) *Transport {
	t := &Transport{
		ep:      ep,
		senders: make(map[identity.ID]network.Stream),
		inbox:   make(chan Inbound, inboxSize),
	}
	ep.Accept(identity.DMProtocol, t.handleInbound)
	return t
}

// Inbox returns the process-global inbound DM queue. Closed by Close.
func (t *Transport) Inbox() <-chan Inbound { return t.inbox }

// ConnectPeer opens (or reopens) the outbound stream to addr's endpoint.
func (t *Transport) ConnectPeer(ctx context.Context, addr identity.Addr) error {
	stream, err := t.ep.Connect(ctx, addr, identity.DMProtocol)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if old, ok := t.senders[addr.ID]; ok {
		_ = old.Close()
	}
	t.senders[addr.ID] = stream
	t.mu.Unlock()
	return nil
}

// SendDM encodes and frames msg onto the open stream to peer. A write
// failure drops the stream and returns ErrNoDmSender to the caller; the
// next ConnectPeer transparently reopens it.
func (t *Transport) SendDM(peer identity.ID, msg wire.DmMessage) error {
	t.mu.Lock()
	stream, ok := t.senders[peer]
	t.mu.Unlock()
	if !ok {
		return ErrNoDmSender
	}

	encoded := wire.EncodeDmMessage(msg)
	if err := wire.WriteFrame(stream, encoded); err != nil {
		t.dropSender(peer, stream)
		return ErrNoDmSender
	}
	return nil
}

func (t *Transport) dropSender(peer identity.ID, stream network.Stream) {
	t.mu.Lock()
	if cur, ok := t.senders[peer]; ok && cur == stream {
		delete(t.senders, peer)
	}
	t.mu.Unlock()
	_ = stream.Close()
}

// handleInbound is the accept handler for identity.DMProtocol: it reads
// C3 frames from one peer in a loop for the lifetime of the stream,
// preserving that peer's send order into the shared inbox. A decode
// failure drops the offending frame and keeps reading.
func (t *Transport) handleInbound(s network.Stream) {
	defer s.Close()

	remote, err := identity.IDFromPeerID(s.Conn().RemotePeer())
	if err != nil {
		log.Warnf("dm accept: cannot resolve remote id: %v", err)
		return
	}

	for {
		frame, err := wire.ReadFrame(s)
		if err != nil {
			return
		}
		msg, err := wire.DecodeDmMessage(frame)
		if err != nil {
			log.Debugf("dm accept: drop undecodable frame from %s: %v", remote, err)
			continue
		}
		t.inbox <- Inbound{From: remote, Msg: msg}
	}
}

// Close closes every open outbound stream and the inbound queue.
func (t *Transport) Close() {
	t.mu.Lock()
	for id, s := range t.senders {
		_ = s.Close()
		delete(t.senders, id)
	}
	t.mu.Unlock()
	close(t.inbox)
}
