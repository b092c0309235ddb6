// Package gossiptopic manages GossipSub subscriptions: joining/creating a
// topic, demultiplexing inbound messages into a per-topic queue, and typed
// broadcast.
package gossiptopic

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/p2p/discovery/util"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
	"github.com/nexu-chat/nexu/internal/wire"
)

var log = logging.Logger("nexu/gossiptopic")

// MaxPayload is the largest encoded GossipMessage Send will publish.
const MaxPayload = 1 << 20 // 1 MiB

// discoveryPeriod is how often the background discovery loop re-searches
// the DHT for peers advertising a joined topic.
const discoveryPeriod = 30 * time.Second

// Manager owns every active topic subscription for one endpoint.
type Manager struct {
	ep *identity.Endpoint

	mu     sync.Mutex
	topics map[identity.TopicID]*subscription
}

type subscription struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

// New returns a Manager bound to ep. The endpoint must already have its
// GossipSub instance (ep.PS) initialized.
func New(ep *identity.Endpoint) *Manager {
	return &Manager{ep: ep, topics: make(map[identity.TopicID]*subscription)}
}

func (m *Manager) pubsubName(t identity.TopicID) string { return t.PubSubName() }

// Create generates a fresh random topic, subscribes to it with no
// bootstrap peers, and returns a Ticket advertising this endpoint as the
// sole bootstrap address.
func (m *Manager) Create(ctx context.Context) (ticket.Ticket, error) {
	topicID, err := identity.NewTopicID()
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("gossiptopic: generate topic id: %w", err)
	}
	if err := m.subscribe(ctx, topicID); err != nil {
		return ticket.Ticket{}, err
	}
	return ticket.Ticket{Topic: topicID, Bootstrap: []identity.Addr{m.ep.Addr()}}, nil
}

// Join subscribes to the topic named in t, dialing every bootstrap
// address as a connection hint before joining so the mesh has an
// immediate neighbor to form around.
func (m *Manager) Join(ctx context.Context, t ticket.Ticket) (identity.TopicID, error) {
	for _, addr := range t.Bootstrap {
		if addr.ID == m.ep.ID() {
			continue
		}
		info, err := addr.AddrInfo()
		if err != nil {
			log.Warnf("join: bad bootstrap addr: %v", err)
			continue
		}
		if len(info.Addrs) == 0 {
			continue
		}
		if err := m.ep.Host().Connect(ctx, info); err != nil {
			log.Warnf("join: connect bootstrap %s failed: %v", info.ID, err)
		}
	}
	if err := m.subscribe(ctx, t.Topic); err != nil {
		return identity.TopicID{}, err
	}
	return t.Topic, nil
}

func (m *Manager) subscribe(ctx context.Context, topicID identity.TopicID) error {
	m.mu.Lock()
	if _, exists := m.topics[topicID]; exists {
		m.mu.Unlock()
		return ErrAlreadySubscribed
	}
	m.mu.Unlock()

	topic, err := m.ep.PS.Join(m.pubsubName(topicID))
	if err != nil {
		return fmt.Errorf("gossiptopic: join pubsub topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return fmt.Errorf("gossiptopic: subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.topics[topicID] = &subscription{topic: topic, sub: sub, cancel: cancel}
	m.mu.Unlock()

	go m.discoverLoop(subCtx, topicID)

	// Let pkarr-style address publication settle before the caller starts
	// sending; see identity.GossipWarmUp.
	time.Sleep(identity.GossipWarmUp)
	return nil
}

// Received pairs a decoded gossip message with the application-level id of
// the peer that published it — the libp2p-level sender, not whatever
// Sender/Endpoint field (if any) the message type itself carries, since
// TopicMetadata and TopicMessages carry no such field of their own.
type Received struct {
	Msg  wire.GossipMessage
	From identity.ID
}

// Listen detaches the receive side of topicID's subscription into a
// listener goroutine that decodes frames and pushes them to the returned
// channel. Each topic may have at most one listener at a time; calling
// Listen again for the same topic replaces nothing — callers should keep
// the first returned channel.
func (m *Manager) Listen(ctx context.Context, topicID identity.TopicID) (<-chan Received, error) {
	m.mu.Lock()
	s, ok := m.topics[topicID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotSubscribed
	}

	out := make(chan Received, 256)
	go func() {
		defer close(out)
		self := m.ep.Host().ID()
		for {
			msg, err := s.sub.Next(ctx)
			if err != nil {
				return // ctx cancelled or subscription closed
			}
			if msg.ReceivedFrom == self {
				continue
			}
			decoded, err := wire.DecodeGossipMessage(msg.Data)
			if err != nil {
				log.Debugf("listen: drop undecodable frame: %v", err)
				continue
			}
			from, err := identity.IDFromPeerID(msg.ReceivedFrom)
			if err != nil {
				log.Debugf("listen: drop frame from unresolvable peer: %v", err)
				continue
			}
			select {
			case out <- Received{Msg: decoded, From: from}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Send broadcasts msg on the subscription named by msg.Topic().
func (m *Manager) Send(ctx context.Context, msg wire.GossipMessage) error {
	encoded := wire.EncodeGossipMessage(msg)
	if len(encoded) > MaxPayload {
		return ErrPayloadTooLarge
	}

	m.mu.Lock()
	s, ok := m.topics[msg.Topic()]
	m.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	if err := s.topic.Publish(ctx, encoded); err != nil {
		return fmt.Errorf("gossiptopic: publish: %w", err)
	}
	return nil
}

// Leave cancels the listener and discovery loop for topicID and drops the
// subscription and topic handles.
func (m *Manager) Leave(topicID identity.TopicID) error {
	m.mu.Lock()
	s, ok := m.topics[topicID]
	if ok {
		delete(m.topics, topicID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	s.cancel()
	s.sub.Cancel()
	return s.topic.Close()
}

// discoverLoop periodically advertises and searches the DHT for peers
// interested in topicID, connecting to anything new it finds.
func (m *Manager) discoverLoop(ctx context.Context, topicID identity.TopicID) {
	disc := m.ep.Discovery()
	if disc == nil {
		return
	}
	name := m.pubsubName(topicID)
	util.Advertise(ctx, disc, name)

	ticker := time.NewTicker(discoveryPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			peerCh, err := disc.FindPeers(ctx, name)
			if err != nil {
				log.Debugf("discover %s: %v", name, err)
				continue
			}
			self := m.ep.Host().ID()
			for p := range peerCh {
				if p.ID == self || len(p.Addrs) == 0 {
					continue
				}
				if err := m.ep.Host().Connect(ctx, p); err != nil {
					log.Debugf("discover connect %s: %v", p.ID, err)
				}
			}
		}
	}
}
