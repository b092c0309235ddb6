package bridge

import (
	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

// Command is one app-initiated action. The set is closed: every variant is
// declared in this file and the type switch in bridge.go's dispatch
// must stay exhaustive.
type Command interface {
	isCommand()
}

// CreateTopic creates a fresh topic and subscribes to it.
type CreateTopic struct {
	Name string
}

// JoinTopic subscribes to the topic named by a previously shared ticket.
type JoinTopic struct {
	Ticket string
}

// LeaveTopic unsubscribes from a topic, notifying members first.
type LeaveTopic struct {
	TopicID identity.TopicID
}

// SendChat broadcasts one chat message on a joined topic.
type SendChat struct {
	TopicID identity.TopicID
	Text    string
}

// SendBlob adds a local file to the blob store and announces it on a
// topic.
type SendBlob struct {
	TopicID identity.TopicID
	Path    string
	Kind    wire.BlobKind
}

// DownloadBlob fetches a blob by hash from a known provider.
type DownloadBlob struct {
	Hash     blob.Hash
	Provider identity.Addr
}

// SendDm sends a direct chat message to a peer over an already open DM
// stream. It does not connect; without a prior ConnectToUser the send
// fails and only the local DM thread records the message.
type SendDm struct {
	Peer identity.ID
	Text string
}

// ModifyTopic updates a topic's name/avatar and broadcasts the change.
type ModifyTopic struct {
	TopicID identity.TopicID
	Name    string
	Avatar  []byte
}

// ModifyProfile updates the local profile and DMs it to every contact.
type ModifyProfile struct {
	Name   string
	Avatar []byte
}

// ConnectToUser dials a peer directly, outside of any topic.
type ConnectToUser struct {
	Addr identity.Addr
}

// RemoveContact forgets a contact locally. It has no network side effect.
type RemoveContact struct {
	Peer identity.ID
}

func (CreateTopic) isCommand()   {}
func (JoinTopic) isCommand()     {}
func (LeaveTopic) isCommand()    {}
func (SendChat) isCommand()      {}
func (SendBlob) isCommand()      {}
func (DownloadBlob) isCommand()  {}
func (SendDm) isCommand()        {}
func (ModifyTopic) isCommand()   {}
func (ModifyProfile) isCommand() {}
func (ConnectToUser) isCommand() {}
func (RemoveContact) isCommand() {}
