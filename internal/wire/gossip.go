package wire

import (
	"fmt"

	"github.com/nexu-chat/nexu/internal/identity"
)

// gossip message tags. Values are part of the wire contract: never reorder
// or reuse one for a different variant.
const (
	gossipTagChat byte = iota + 1
	gossipTagJoinTopic
	gossipTagLeaveTopic
	gossipTagDisconnectTopic
	gossipTagTopicMetadata
	gossipTagTopicMessages
	gossipTagBlob
)

// ErrUnknownGossipTag is returned when a frame's leading tag byte does not
// name any known GossipMessage variant.
type ErrUnknownGossipTag struct{ Tag byte }

func (e ErrUnknownGossipTag) Error() string {
	return fmt.Sprintf("wire: unknown gossip message tag %d", e.Tag)
}

// GossipMessage is the closed set of messages exchanged on a topic. Every
// variant below implements it; a type switch on the concrete type recovers
// which one a decode produced.
type GossipMessage interface {
	Topic() identity.TopicID
	encode(w *Writer)
}

type GossipChat struct {
	Sender    identity.ID
	TopicID   identity.TopicID
	Content   string
	Timestamp uint64
}

func (m GossipChat) Topic() identity.TopicID { return m.TopicID }

func (m GossipChat) encode(w *Writer) {
	w.PutTag(gossipTagChat)
	w.PutFixed(m.Sender[:])
	w.PutFixed(m.TopicID[:])
	w.PutString(m.Content)
	w.PutUint64(m.Timestamp)
}

func decodeGossipChat(r *Reader) (GossipChat, error) {
	var m GossipChat
	sender, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	topic, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	content, err := r.String()
	if err != nil {
		return m, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	copy(m.Sender[:], sender)
	copy(m.TopicID[:], topic)
	m.Content = content
	m.Timestamp = ts
	return m, nil
}

// GossipJoinTopic announces endpoint has joined topic at timestamp.
type GossipJoinTopic struct {
	TopicID   identity.TopicID
	Endpoint  identity.ID
	Timestamp uint64
}

func (m GossipJoinTopic) Topic() identity.TopicID { return m.TopicID }

func (m GossipJoinTopic) encode(w *Writer) {
	w.PutTag(gossipTagJoinTopic)
	w.PutFixed(m.TopicID[:])
	w.PutFixed(m.Endpoint[:])
	w.PutUint64(m.Timestamp)
}

func decodeGossipJoinTopic(r *Reader) (GossipJoinTopic, error) {
	var m GossipJoinTopic
	topic, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	ep, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	copy(m.TopicID[:], topic)
	copy(m.Endpoint[:], ep)
	m.Timestamp = ts
	return m, nil
}

// GossipLeaveTopic announces a hard leave: the endpoint is removed from
// members.
type GossipLeaveTopic struct {
	TopicID   identity.TopicID
	Endpoint  identity.ID
	Timestamp uint64
}

func (m GossipLeaveTopic) Topic() identity.TopicID { return m.TopicID }

func (m GossipLeaveTopic) encode(w *Writer) {
	w.PutTag(gossipTagLeaveTopic)
	w.PutFixed(m.TopicID[:])
	w.PutFixed(m.Endpoint[:])
	w.PutUint64(m.Timestamp)
}

func decodeGossipLeaveTopic(r *Reader) (GossipLeaveTopic, error) {
	m, err := decodeGossipJoinTopic(r)
	return GossipLeaveTopic(m), err
}

// GossipDisconnectTopic announces a soft leave: membership is unchanged,
// only an event is appended.
type GossipDisconnectTopic struct {
	TopicID   identity.TopicID
	Endpoint  identity.ID
	Timestamp uint64
}

func (m GossipDisconnectTopic) Topic() identity.TopicID { return m.TopicID }

func (m GossipDisconnectTopic) encode(w *Writer) {
	w.PutTag(gossipTagDisconnectTopic)
	w.PutFixed(m.TopicID[:])
	w.PutFixed(m.Endpoint[:])
	w.PutUint64(m.Timestamp)
}

func decodeGossipDisconnectTopic(r *Reader) (GossipDisconnectTopic, error) {
	m, err := decodeGossipJoinTopic(r)
	return GossipDisconnectTopic(m), err
}

// GossipTopicMetadata carries a topic's displayable identity: name, avatar
// and membership, tagged with the writer's notion of when it last changed.
type GossipTopicMetadata struct {
	TopicID   identity.TopicID
	Name      string
	Avatar    []byte
	Timestamp uint64
	Members   []identity.ID
}

func (m GossipTopicMetadata) Topic() identity.TopicID { return m.TopicID }

func (m GossipTopicMetadata) encode(w *Writer) {
	w.PutTag(gossipTagTopicMetadata)
	w.PutFixed(m.TopicID[:])
	w.PutString(m.Name)
	w.PutBytes(m.Avatar)
	w.PutUint64(m.Timestamp)
	w.PutCount(len(m.Members))
	for _, id := range m.Members {
		w.PutFixed(id[:])
	}
}

// maxMembers bounds the member count a single TopicMetadata frame may claim,
// guarding against an adversarial peer forcing a huge allocation.
const maxMembers = 1 << 16

func decodeGossipTopicMetadata(r *Reader) (GossipTopicMetadata, error) {
	var m GossipTopicMetadata
	topic, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	name, err := r.String()
	if err != nil {
		return m, err
	}
	avatar, err := r.Bytes()
	if err != nil {
		return m, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	n, err := r.Count(maxMembers)
	if err != nil {
		return m, err
	}
	members := make([]identity.ID, n)
	for i := 0; i < n; i++ {
		b, err := r.Fixed(32)
		if err != nil {
			return m, err
		}
		copy(members[i][:], b)
	}
	copy(m.TopicID[:], topic)
	m.Name = name
	if len(avatar) > 0 {
		m.Avatar = append([]byte(nil), avatar...)
	}
	m.Timestamp = ts
	m.Members = members
	return m, nil
}

// GossipTopicMessages is a reconciliation batch of chat events, used to
// bring a late joiner's (or a divergent peer's) local set up to date.
type GossipTopicMessages struct {
	TopicID  identity.TopicID
	Messages []GossipChat
}

func (m GossipTopicMessages) Topic() identity.TopicID { return m.TopicID }

// maxBatchMessages bounds how many chat events a single TopicMessages
// frame may claim to carry.
const maxBatchMessages = 1 << 20

func (m GossipTopicMessages) encode(w *Writer) {
	w.PutTag(gossipTagTopicMessages)
	w.PutFixed(m.TopicID[:])
	w.PutCount(len(m.Messages))
	for _, chat := range m.Messages {
		w.PutFixed(chat.Sender[:])
		w.PutString(chat.Content)
		w.PutUint64(chat.Timestamp)
	}
}

func decodeGossipTopicMessages(r *Reader) (GossipTopicMessages, error) {
	var m GossipTopicMessages
	topic, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	n, err := r.Count(maxBatchMessages)
	if err != nil {
		return m, err
	}
	msgs := make([]GossipChat, n)
	for i := 0; i < n; i++ {
		sender, err := r.Fixed(32)
		if err != nil {
			return m, err
		}
		content, err := r.String()
		if err != nil {
			return m, err
		}
		ts, err := r.Uint64()
		if err != nil {
			return m, err
		}
		copy(msgs[i].Sender[:], sender)
		msgs[i].TopicID = m.TopicID // filled in below once topic is copied
		msgs[i].Content = content
		msgs[i].Timestamp = ts
	}
	copy(m.TopicID[:], topic)
	for i := range msgs {
		msgs[i].TopicID = m.TopicID
	}
	m.Messages = msgs
	return m, nil
}

// GossipBlob announces a blob posted to a topic: the content itself travels
// over the blob transfer protocol, this only carries enough metadata for
// the UI to offer a download.
type GossipBlob struct {
	TopicID   identity.TopicID
	Sender    identity.ID
	Name      string
	Size      uint64
	Hash      [32]byte
	Timestamp uint64
	Kind      BlobKind
}

func (m GossipBlob) Topic() identity.TopicID { return m.TopicID }

func (m GossipBlob) encode(w *Writer) {
	w.PutTag(gossipTagBlob)
	w.PutFixed(m.TopicID[:])
	w.PutFixed(m.Sender[:])
	w.PutString(m.Name)
	w.PutUint64(m.Size)
	w.PutFixed(m.Hash[:])
	w.PutUint64(m.Timestamp)
	w.PutTag(byte(m.Kind))
}

func decodeGossipBlob(r *Reader) (GossipBlob, error) {
	var m GossipBlob
	topic, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	sender, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	name, err := r.String()
	if err != nil {
		return m, err
	}
	size, err := r.Uint64()
	if err != nil {
		return m, err
	}
	hash, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	kind, err := r.Tag()
	if err != nil {
		return m, err
	}
	copy(m.TopicID[:], topic)
	copy(m.Sender[:], sender)
	m.Name = name
	m.Size = size
	copy(m.Hash[:], hash)
	m.Timestamp = ts
	m.Kind = BlobKind(kind)
	return m, nil
}

// EncodeGossipMessage returns the canonical bytes for msg.
func EncodeGossipMessage(msg GossipMessage) []byte {
	w := NewWriter(128)
	msg.encode(w)
	return w.Bytes()
}

// DecodeGossipMessage decodes one of the GossipMessage variants from buf,
// enforcing that no trailing bytes remain. An unrecognized tag is reported
// as ErrUnknownGossipTag so the caller can drop the frame and continue.
func DecodeGossipMessage(buf []byte) (GossipMessage, error) {
	r := NewReader(buf)
	tag, err := r.Tag()
	if err != nil {
		return nil, err
	}

	var (
		msg GossipMessage
		dec error
	)
	switch tag {
	case gossipTagChat:
		msg, dec = decodeGossipChat(r)
	case gossipTagJoinTopic:
		msg, dec = decodeGossipJoinTopic(r)
	case gossipTagLeaveTopic:
		msg, dec = decodeGossipLeaveTopic(r)
	case gossipTagDisconnectTopic:
		msg, dec = decodeGossipDisconnectTopic(r)
	case gossipTagTopicMetadata:
		msg, dec = decodeGossipTopicMetadata(r)
	case gossipTagTopicMessages:
		msg, dec = decodeGossipTopicMessages(r)
	case gossipTagBlob:
		msg, dec = decodeGossipBlob(r)
	default:
		return nil, ErrUnknownGossipTag{Tag: tag}
	}
	if dec != nil {
		return nil, dec
	}
	if !r.Done() {
		return nil, ErrTrailingBytes
	}
	return msg, nil
}
