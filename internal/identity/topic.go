package identity

import (
	"crypto/rand"
	"strings"
)

// TopicID is a gossip topic's 32-byte random identifier.
type TopicID [32]byte

// NewTopicID generates a fresh, uniformly random topic id.
func NewTopicID() (TopicID, error) {
	var t TopicID
	if _, err := rand.Read(t[:]); err != nil {
		return TopicID{}, err
	}
	return t, nil
}

func (t TopicID) String() string {
	return strings.ToLower(textEncoding.EncodeToString(t[:]))
}

// ParseTopicID decodes the printable form produced by String.
func ParseTopicID(s string) (TopicID, error) {
	raw, err := textEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return TopicID{}, errInvalidID
	}
	if len(raw) != 32 {
		return TopicID{}, errInvalidID
	}
	var t TopicID
	copy(t[:], raw)
	return t, nil
}

// PubSubName returns the GossipSub topic string this TopicID maps to on
// the wire — libp2p-pubsub topics are plain strings, so nexu namespaces
// them under a fixed prefix to avoid collisions with unrelated swarms.
func (t TopicID) PubSubName() string {
	return "/nexu/topic/1/" + t.String()
}
