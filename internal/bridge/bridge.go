// Package bridge is the command/event bridge: it serializes high-level app
// actions onto the gossip, DM and blob transports, and in the other
// direction drains their inbound queues through reconciliation into
// AppState. It is the only package that wires all the others together.
package bridge

import (
	"context"
	"math"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/dm"
	"github.com/nexu-chat/nexu/internal/gossiptopic"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/persist"
	"github.com/nexu-chat/nexu/internal/reconcile"
	"github.com/nexu-chat/nexu/internal/ticket"
	"github.com/nexu-chat/nexu/internal/wire"
)

var log = logging.Logger("nexu/bridge")

// joinAnnounceWarmUp is the default for how long the bridge waits after
// subscribing to a topic before broadcasting the first JoinTopic, to give
// the GossipSub mesh a moment to form around the new subscription.
// Distinct from identity.GossipWarmUp, which settles discovery before
// Join/Create even return; this one is the bridge's own heuristic on top
// of that. Overridable per-Bridge via SetJoinAnnounceWarmUp, normally from
// config.Config.JoinAnnounce.
const joinAnnounceWarmUp = 300 * time.Millisecond

// commandQueueSize and progressQueueSize bound the otherwise-unbounded
// queues the single-producer/single-consumer model calls for — Go has no
// true unbounded channel, so a large buffer stands in for one.
const (
	commandQueueSize  = 256
	progressQueueSize = 64
)

// Bridge owns the command queue and the tick loop that drains every
// inbound source into AppState.
type Bridge struct {
	self       identity.ID
	state      *appstate.AppState
	gossip     *gossiptopic.Manager
	dmT        *dm.Transport
	store      *blob.Store
	downloader *blob.Downloader
	reconciler *reconcile.Reconciler
	persister  persist.Persister

	commands    chan Command
	topicEvents chan gossiptopic.Received
	progress    chan uint64

	joinAnnounceWarmUp time.Duration
}

// New wires a Bridge over already-constructed C1/C5/C6/C7/C8/C9/C11/C13
// components.
func New(self identity.ID, state *appstate.AppState, gossip *gossiptopic.Manager, dmT *dm.Transport, store *blob.Store, downloader *blob.Downloader, reconciler *reconcile.Reconciler, persister persist.Persister) *Bridge {
	return &Bridge{
		self:        self,
		state:       state,
		gossip:      gossip,
		dmT:         dmT,
		store:       store,
		downloader:  downloader,
		reconciler:  reconciler,
		persister:   persister,
		commands:    make(chan Command, commandQueueSize),
		topicEvents: make(chan gossiptopic.Received, commandQueueSize),
		progress:    make(chan uint64, progressQueueSize),

		joinAnnounceWarmUp: joinAnnounceWarmUp,
	}
}

// SetJoinAnnounceWarmUp overrides the default post-subscribe announce
// delay. Intended to be called once, right after New, from config.
func (b *Bridge) SetJoinAnnounceWarmUp(d time.Duration) {
	b.joinAnnounceWarmUp = d
}

// Submit enqueues a command for the tick loop to process. It blocks only
// if the queue is full, which a well-behaved UI never drives it to.
func (b *Bridge) Submit(cmd Command) {
	b.commands <- cmd
}

// Progress is the single UI-facing progress channel: callers publish a
// monotonically increasing byte count per in-flight add/download, and the
// bridge guarantees a math.MaxUint64 sentinel is eventually written on
// every path, success or failure, so the UI can dismiss a progress bar
// without tracking which operation it belonged to.
func (b *Bridge) Progress() <-chan uint64 {
	return b.progress
}

// Bootstrap restores persisted profile, contacts and topics into state and
// rejoins every persisted topic's gossip subscription. Call once at
// startup before Run.
func (b *Bridge) Bootstrap(ctx context.Context) error {
	profile, err := b.persister.LoadProfile()
	if err != nil {
		return err
	}
	if !profile.ID.IsZero() {
		b.state.LoadProfile(profile)
	}

	contacts, err := b.persister.LoadContacts()
	if err != nil {
		return err
	}
	b.state.LoadContacts(contacts)

	topics, err := b.persister.LoadTopics()
	if err != nil {
		return err
	}
	b.state.LoadTopics(topics)
	for _, top := range topics {
		if _, err := b.gossip.Join(ctx, top.Ticket); err != nil {
			log.Warnf("bootstrap: rejoin topic %s: %v", top.Ticket.Topic, err)
			continue
		}
		b.registerTopic(ctx, top.Ticket.Topic)
	}
	return nil
}

// Run processes commands and inbound transport events until ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.commands:
			b.dispatch(ctx, cmd)
		case ev, ok := <-b.topicEvents:
			if !ok {
				continue
			}
			b.handleGossip(ctx, ev)
		case in, ok := <-b.dmT.Inbox():
			if !ok {
				continue
			}
			b.handleDM(in)
		}
	}
}

func (b *Bridge) registerTopic(ctx context.Context, topicID identity.TopicID) {
	ch, err := b.gossip.Listen(ctx, topicID)
	if err != nil {
		log.Warnf("registerTopic %s: %v", topicID, err)
		return
	}
	go func() {
		for ev := range ch {
			select {
			case b.topicEvents <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (b *Bridge) announceJoin(ctx context.Context, topicID identity.TopicID) {
	select {
	case <-time.After(b.joinAnnounceWarmUp):
	case <-ctx.Done():
		return
	}
	msg := wire.GossipJoinTopic{TopicID: topicID, Endpoint: b.self, Timestamp: nowMillis()}
	if err := b.gossip.Send(ctx, msg); err != nil {
		log.Warnf("announce join %s: %v", topicID, err)
	}
}

func (b *Bridge) handleGossip(ctx context.Context, ev gossiptopic.Received) {
	replies := b.reconciler.Handle(ev.Msg, ev.From)
	for _, reply := range replies {
		if err := b.gossip.Send(ctx, reply); err != nil {
			log.Warnf("reconciliation reply: %v", err)
		}
	}
}

func (b *Bridge) handleDM(in dm.Inbound) {
	switch m := in.Msg.(type) {
	case wire.DmChat:
		b.state.AppendDMEvent(in.From, appstate.Event{
			Kind: appstate.EventChat, Sender: in.From, Content: m.Content, Timestamp: m.Timestamp,
		})
	case wire.DmProfileMetadata:
		b.state.UpsertContact(appstate.Profile{
			ID: m.ID, Name: m.Username, Avatar: m.Avatar, LastConnection: m.LastConnection,
		})
		b.persistContacts()
	case wire.DmJoinPetition:
		b.state.UpsertContact(appstate.Profile{ID: m.Petitioner, Name: m.Petitioner.String()})
		b.persistContacts()
		// Best effort: this only succeeds if we already have an outbound
		// stream to the petitioner (e.g. they also dialed us). There is no
		// address hint on a bare DmJoinPetition to dial them with.
		reply := wire.DmProfileMetadata{ID: b.self, Username: b.state.Profile().Name, Avatar: b.state.Profile().Avatar, LastConnection: nowMillis()}
		if err := b.dmT.SendDM(m.Petitioner, reply); err != nil {
			log.Debugf("reply to join petition from %s: %v", m.Petitioner, err)
		}
	case wire.DmBlob:
		b.state.AppendDMEvent(in.From, appstate.Event{
			Kind: appstate.EventBlob, Sender: in.From, Hash: m.Hash, Name: m.Name,
			Size: m.Size, Timestamp: m.Timestamp, BlobKind: m.Kind,
		})
	default:
		log.Warnf("handleDM: unhandled dm message type %T", in.Msg)
	}
}

func (b *Bridge) dispatch(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case CreateTopic:
		b.doCreateTopic(ctx, c)
	case JoinTopic:
		b.doJoinTopic(ctx, c)
	case LeaveTopic:
		b.doLeaveTopic(ctx, c)
	case SendChat:
		b.doSendChat(ctx, c)
	case SendBlob:
		b.doSendBlob(ctx, c)
	case DownloadBlob:
		b.doDownloadBlob(ctx, c)
	case SendDm:
		b.doSendDm(c)
	case ModifyTopic:
		b.doModifyTopic(ctx, c)
	case ModifyProfile:
		b.doModifyProfile(c)
	case ConnectToUser:
		b.doConnectToUser(ctx, c)
	case RemoveContact:
		b.doRemoveContact(c)
	default:
		log.Warnf("dispatch: unhandled command type %T", cmd)
	}
}

func (b *Bridge) doCreateTopic(ctx context.Context, c CreateTopic) {
	t, err := b.gossip.Create(ctx)
	if err != nil {
		log.Errorf("create topic: %v", err)
		return
	}
	b.state.CreateTopic(t, b.self)
	if c.Name != "" {
		b.state.WithTopicByID(t.Topic, func(top *appstate.Topic) {
			top.Name = c.Name
			top.LastMetadataChange = nowMillis()
		})
	}
	b.registerTopic(ctx, t.Topic)
	go b.announceJoin(ctx, t.Topic)
	b.persistTopics()
}

func (b *Bridge) doJoinTopic(ctx context.Context, c JoinTopic) {
	tk, err := ticket.Parse(c.Ticket)
	if err != nil {
		log.Errorf("join topic: %v", err)
		return
	}
	topicID, err := b.gossip.Join(ctx, tk)
	if err != nil {
		log.Errorf("join topic: %v", err)
		return
	}
	b.state.CreateTopic(tk, b.self)
	b.registerTopic(ctx, topicID)
	go b.announceJoin(ctx, topicID)
	b.persistTopics()
}

func (b *Bridge) doLeaveTopic(ctx context.Context, c LeaveTopic) {
	msg := wire.GossipLeaveTopic{TopicID: c.TopicID, Endpoint: b.self, Timestamp: nowMillis()}
	if err := b.gossip.Send(ctx, msg); err != nil {
		log.Warnf("leave topic announce: %v", err)
	}
	top, ok := b.state.GetTopicByID(c.TopicID)
	if err := b.gossip.Leave(c.TopicID); err != nil {
		log.Warnf("leave topic: %v", err)
	}
	if ok {
		b.state.DeleteTopic(top.Ticket.String())
	}
	b.persistTopics()
}

func (b *Bridge) doSendChat(ctx context.Context, c SendChat) {
	ts := nowMillis()
	b.state.WithTopicByID(c.TopicID, func(top *appstate.Topic) {
		top.AppendChat(appstate.Event{Kind: appstate.EventChat, Sender: b.self, Topic: c.TopicID, Content: c.Text, Timestamp: ts})
		top.LastActivity = ts
	})
	msg := wire.GossipChat{Sender: b.self, TopicID: c.TopicID, Content: c.Text, Timestamp: ts}
	if err := b.gossip.Send(ctx, msg); err != nil {
		log.Warnf("send chat: %v", err)
	}
	b.persistTopics()
}

func (b *Bridge) doSendBlob(ctx context.Context, c SendBlob) {
	progress := b.store.AddPath(c.Path)
	var final blob.Hash
	var size uint64
	ok := b.pumpAdd(progress, &final, &size)
	if !ok {
		return
	}
	ts := nowMillis()
	ev := appstate.Event{
		Kind: appstate.EventBlob, Sender: b.self, Topic: c.TopicID, Hash: final,
		Name: filepath.Base(c.Path), Size: size, Timestamp: ts, BlobKind: c.Kind,
	}
	b.state.WithTopicByID(c.TopicID, func(top *appstate.Topic) {
		top.Messages = append(top.Messages, ev)
		top.LastActivity = ts
	})
	msg := wire.GossipBlob{TopicID: c.TopicID, Sender: b.self, Name: ev.Name, Size: size, Hash: final, Timestamp: ts, Kind: c.Kind}
	if err := b.gossip.Send(ctx, msg); err != nil {
		log.Warnf("send blob announce: %v", err)
	}
	b.persistTopics()
}

// pumpAdd forwards an add-progress stream onto the shared progress
// channel, writing the terminal sentinel exactly once, and reports whether
// the add succeeded.
func (b *Bridge) pumpAdd(ch <-chan blob.Progress, outHash *blob.Hash, outSize *uint64) bool {
	ok := true
	for p := range ch {
		switch p.Kind {
		case blob.ProgressCopy:
			b.publishProgress(p.Bytes)
		case blob.ProgressSize:
			*outSize = p.Bytes
		case blob.ProgressDone:
			*outHash = p.Hash
		case blob.ProgressError:
			log.Errorf("blob add: %v", p.Err)
			ok = false
		}
	}
	b.publishProgress(math.MaxUint64)
	return ok
}

func (b *Bridge) doDownloadBlob(ctx context.Context, c DownloadBlob) {
	ch := b.downloader.Download(ctx, c.Hash, c.Provider)
	for p := range ch {
		switch p.Kind {
		case blob.ProgressCopy:
			b.publishProgress(p.Bytes)
		case blob.ProgressError:
			log.Errorf("download blob %s: %v", c.Hash, p.Err)
		}
	}
	b.publishProgress(math.MaxUint64)
}

func (b *Bridge) publishProgress(n uint64) {
	if n == math.MaxUint64 {
		// The terminal sentinel is never dropped; it waits for the consumer.
		b.progress <- n
		return
	}
	select {
	case b.progress <- n:
	default:
		log.Debugf("progress channel full, dropping update %d", n)
	}
}

func (b *Bridge) doSendDm(c SendDm) {
	ts := nowMillis()
	b.state.AppendDMEvent(c.Peer, appstate.Event{Kind: appstate.EventChat, Sender: b.self, Content: c.Text, Timestamp: ts})
	msg := wire.DmChat{Sender: b.self, Receiver: c.Peer, Content: c.Text, Timestamp: ts}
	if err := b.dmT.SendDM(c.Peer, msg); err != nil {
		log.Warnf("send dm: %v", err)
	}
}

func (b *Bridge) doModifyTopic(ctx context.Context, c ModifyTopic) {
	ts := nowMillis()
	var members []identity.ID
	b.state.WithTopicByID(c.TopicID, func(top *appstate.Topic) {
		top.Name = c.Name
		top.Avatar = c.Avatar
		top.LastMetadataChange = ts
		members = top.MemberList()
	})
	msg := wire.GossipTopicMetadata{TopicID: c.TopicID, Name: c.Name, Avatar: c.Avatar, Timestamp: ts, Members: members}
	if err := b.gossip.Send(ctx, msg); err != nil {
		log.Warnf("modify topic announce: %v", err)
	}
	b.persistTopics()
}

func (b *Bridge) doModifyProfile(c ModifyProfile) {
	p := appstate.Profile{ID: b.self, Name: c.Name, Avatar: c.Avatar, LastConnection: nowMillis(), Online: true}
	b.state.SetProfile(p)
	b.persistProfile()

	snap := b.state.Snapshot()
	msg := wire.DmProfileMetadata{ID: b.self, Username: c.Name, Avatar: c.Avatar, LastConnection: p.LastConnection}
	for _, contact := range snap.Contacts {
		if err := b.dmT.SendDM(contact.ID, msg); err != nil {
			log.Debugf("profile update to %s: %v", contact.ID, err)
		}
	}
}

func (b *Bridge) doConnectToUser(ctx context.Context, c ConnectToUser) {
	if err := b.dmT.ConnectPeer(ctx, c.Addr); err != nil {
		log.Warnf("connect to user %s: %v", c.Addr.ID, err)
	}
}

func (b *Bridge) doRemoveContact(c RemoveContact) {
	b.state.RemoveContact(c.Peer)
	b.persistContacts()
}

func (b *Bridge) persistTopics() {
	snap := b.state.Snapshot()
	topics := make([]*appstate.Topic, 0, len(snap.Topics))
	for i := range snap.Topics {
		topics = append(topics, &snap.Topics[i])
	}
	if err := b.persister.SaveTopics(topics); err != nil {
		log.Errorf("persist topics: %v", err)
	}
}

func (b *Bridge) persistContacts() {
	snap := b.state.Snapshot()
	if err := b.persister.SaveContacts(snap.Contacts); err != nil {
		log.Errorf("persist contacts: %v", err)
	}
}

func (b *Bridge) persistProfile() {
	if err := b.persister.SaveProfile(b.state.Profile()); err != nil {
		log.Errorf("persist profile: %v", err)
	}
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
