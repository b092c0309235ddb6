// Package reconcile implements the topic convergence protocol: metadata
// last-writer-wins, membership tracking, and chat-set anti-entropy, all
// driven by inbound GossipMessages and producing the outbound messages
// needed to converge a peer's view.
package reconcile

import (
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

var log = logging.Logger("nexu/reconcile")

// maxRepliesPerPeer bounds outbound reconciliation replies sent to a
// single peer within replyWindow, defending against two peers' mutual
// TopicMetadata/TopicMessages exchanges amplifying indefinitely.
const (
	maxRepliesPerPeer = 20
	replyWindow       = time.Second
)

// Reconciler applies inbound gossip messages to an AppState and reports
// what (if anything) should be sent back.
type Reconciler struct {
	state   *appstate.AppState
	self    identity.ID
	limiter *replyLimiter
}

// New returns a Reconciler writing into state on behalf of self.
func New(state *appstate.AppState, self identity.ID) *Reconciler {
	return &Reconciler{state: state, self: self, limiter: newReplyLimiter(maxRepliesPerPeer, replyWindow)}
}

// Handle applies one inbound gossip message from peer and returns zero or
// more messages the caller (the bridge) should broadcast in response.
func (r *Reconciler) Handle(msg wire.GossipMessage, from identity.ID) []wire.GossipMessage {
	switch m := msg.(type) {
	case wire.GossipChat:
		r.handleChat(m)
	case wire.GossipJoinTopic:
		return r.handleJoin(m, from)
	case wire.GossipLeaveTopic:
		r.handleLeave(m)
	case wire.GossipDisconnectTopic:
		r.handleDisconnect(m)
	case wire.GossipTopicMetadata:
		return r.handleMetadata(m, from)
	case wire.GossipTopicMessages:
		return r.handleMessages(m, from)
	case wire.GossipBlob:
		r.handleBlob(m)
	default:
		log.Warnf("reconcile: unhandled gossip message type %T", msg)
	}
	return nil
}

func (r *Reconciler) handleChat(m wire.GossipChat) {
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		top.AppendChat(appstate.Event{
			Kind: appstate.EventChat, Sender: m.Sender, Topic: m.TopicID,
			Content: m.Content, Timestamp: m.Timestamp,
		})
		if m.Timestamp > top.LastActivity {
			top.LastActivity = m.Timestamp
		}
	})
}

func (r *Reconciler) handleJoin(m wire.GossipJoinTopic, from identity.ID) []wire.GossipMessage {
	var out []wire.GossipMessage
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		top.Members[m.Endpoint] = struct{}{}
		top.Messages = append(top.Messages, appstate.Event{
			Kind: appstate.EventJoin, Sender: m.Endpoint, Topic: m.TopicID, Timestamp: m.Timestamp,
		})

		if !r.limiter.allow(from) {
			return
		}
		if top.LastMetadataChange > 0 || top.Name != "" {
			out = append(out, wire.GossipTopicMetadata{
				TopicID: m.TopicID, Name: top.Name, Avatar: top.Avatar,
				Timestamp: top.LastMetadataChange, Members: top.MemberList(),
			})
		}
		if chats := top.ChatEventsForWire(); len(chats) > 0 {
			out = append(out, wire.GossipTopicMessages{TopicID: m.TopicID, Messages: chats})
		}
	})
	return out
}

func (r *Reconciler) handleLeave(m wire.GossipLeaveTopic) {
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		delete(top.Members, m.Endpoint)
		top.Messages = append(top.Messages, appstate.Event{
			Kind: appstate.EventLeave, Sender: m.Endpoint, Topic: m.TopicID, Timestamp: m.Timestamp,
		})
	})
}

func (r *Reconciler) handleDisconnect(m wire.GossipDisconnectTopic) {
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		top.Messages = append(top.Messages, appstate.Event{
			Kind: appstate.EventDisconnect, Sender: m.Endpoint, Topic: m.TopicID, Timestamp: m.Timestamp,
		})
	})
}

// handleMetadata applies last-writer-wins: an incoming timestamp at least
// as new as ours wins outright (incoming wins ties, so identical content
// is idempotent); an older incoming timestamp gets our current metadata
// broadcast back so the stale sender converges.
func (r *Reconciler) handleMetadata(m wire.GossipTopicMetadata, from identity.ID) []wire.GossipMessage {
	var out []wire.GossipMessage
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		if m.Timestamp >= top.LastMetadataChange {
			top.Name = m.Name
			top.Avatar = m.Avatar
			top.Members = make(map[identity.ID]struct{}, len(m.Members)+1)
			for _, id := range m.Members {
				top.Members[id] = struct{}{}
			}
			top.Members[r.self] = struct{}{}
			top.LastMetadataChange = m.Timestamp
			return
		}
		if !r.limiter.allow(from) {
			return
		}
		out = append(out, wire.GossipTopicMetadata{
			TopicID: m.TopicID, Name: top.Name, Avatar: top.Avatar,
			Timestamp: top.LastMetadataChange, Members: top.MemberList(),
		})
	})
	return out
}

// handleMessages reconciles the topic's chat set against an incoming
// batch: anything we're missing is inserted in receive order; anything
// the sender is missing is sent back once, rate-limited per peer.
func (r *Reconciler) handleMessages(m wire.GossipTopicMessages, from identity.ID) []wire.GossipMessage {
	var out []wire.GossipMessage
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		remoteKnown := make(map[chatKey]struct{}, len(m.Messages))
		for _, chat := range m.Messages {
			ev := appstate.Event{
				Kind: appstate.EventChat, Sender: chat.Sender, Topic: m.TopicID,
				Content: chat.Content, Timestamp: chat.Timestamp,
			}
			top.AppendChat(ev)
			remoteKnown[chatKey{chat.Sender, chat.Content, chat.Timestamp}] = struct{}{}
		}

		if !r.limiter.allow(from) {
			return
		}
		var missing []wire.GossipChat
		for _, ev := range top.Messages {
			if ev.Kind != appstate.EventChat {
				continue
			}
			if _, known := remoteKnown[chatKey{ev.Sender, ev.Content, ev.Timestamp}]; known {
				continue
			}
			missing = append(missing, wire.GossipChat{Sender: ev.Sender, TopicID: m.TopicID, Content: ev.Content, Timestamp: ev.Timestamp})
		}
		if len(missing) > 0 {
			out = append(out, wire.GossipTopicMessages{TopicID: m.TopicID, Messages: missing})
		}
	})
	return out
}

// chatKey is the (sender, content, timestamp) projection of a ChatEvent
// used to diff a remote batch against the local chat set; topic is
// already fixed by which Topic is being reconciled.
type chatKey struct {
	sender    identity.ID
	content   string
	timestamp uint64
}

func (r *Reconciler) handleBlob(m wire.GossipBlob) {
	r.state.WithTopicByID(m.TopicID, func(top *appstate.Topic) {
		top.Messages = append(top.Messages, appstate.Event{
			Kind: appstate.EventBlob, Sender: m.Sender, Topic: m.TopicID,
			Name: m.Name, Size: m.Size, Timestamp: m.Timestamp, BlobKind: m.Kind,
			Hash: m.Hash,
		})
		if m.Timestamp > top.LastActivity {
			top.LastActivity = m.Timestamp
		}
	})
}
