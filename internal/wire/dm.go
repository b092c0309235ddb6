package wire

import (
	"fmt"

	"github.com/nexu-chat/nexu/internal/identity"
)

const (
	dmTagChat byte = iota + 1
	dmTagProfileMetadata
	dmTagJoinPetition
	dmTagBlob
)

// ErrUnknownDmTag is returned when a frame's leading tag byte does not name
// any known DmMessage variant.
type ErrUnknownDmTag struct{ Tag byte }

func (e ErrUnknownDmTag) Error() string {
	return fmt.Sprintf("wire: unknown dm message tag %d", e.Tag)
}

// DmMessage is the closed set of messages exchanged over a DM stream.
type DmMessage interface {
	encode(w *Writer)
}

type DmChat struct {
	Sender    identity.ID
	Receiver  identity.ID
	Content   string
	Timestamp uint64
}

func (m DmChat) encode(w *Writer) {
	w.PutTag(dmTagChat)
	w.PutFixed(m.Sender[:])
	w.PutFixed(m.Receiver[:])
	w.PutString(m.Content)
	w.PutUint64(m.Timestamp)
}

func decodeDmChat(r *Reader) (DmChat, error) {
	var m DmChat
	sender, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	receiver, err := r.Fixed(32)
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
	copy(m.Receiver[:], receiver)
	m.Content = content
	m.Timestamp = ts
	return m, nil
}

// DmProfileMetadata is how an endpoint announces its displayable identity
// to a peer: in reply to a DmJoinPetition, and to every contact after
// ModifyProfile.
type DmProfileMetadata struct {
	ID             identity.ID
	Username       string
	Avatar         []byte
	LastConnection uint64
}

func (m DmProfileMetadata) encode(w *Writer) {
	w.PutTag(dmTagProfileMetadata)
	w.PutFixed(m.ID[:])
	w.PutString(m.Username)
	w.PutBytes(m.Avatar)
	w.PutUint64(m.LastConnection)
}

func decodeDmProfileMetadata(r *Reader) (DmProfileMetadata, error) {
	var m DmProfileMetadata
	id, err := r.Fixed(32)
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
	lc, err := r.Uint64()
	if err != nil {
		return m, err
	}
	copy(m.ID[:], id)
	m.Username = name
	if len(avatar) > 0 {
		m.Avatar = append([]byte(nil), avatar...)
	}
	m.LastConnection = lc
	return m, nil
}

// DmJoinPetition asks target to add petitioner as a contact; the receiving
// side auto-accepts and replies with its own ProfileMetadata.
type DmJoinPetition struct {
	Petitioner identity.ID
	Target     identity.ID
	Timestamp  uint64
}

func (m DmJoinPetition) encode(w *Writer) {
	w.PutTag(dmTagJoinPetition)
	w.PutFixed(m.Petitioner[:])
	w.PutFixed(m.Target[:])
	w.PutUint64(m.Timestamp)
}

func decodeDmJoinPetition(r *Reader) (DmJoinPetition, error) {
	var m DmJoinPetition
	pet, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	target, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	copy(m.Petitioner[:], pet)
	copy(m.Target[:], target)
	m.Timestamp = ts
	return m, nil
}

type DmBlob struct {
	Sender    identity.ID
	Receiver  identity.ID
	Hash      [32]byte
	Name      string
	Size      uint64
	Timestamp uint64
	Kind      BlobKind
}

func (m DmBlob) encode(w *Writer) {
	w.PutTag(dmTagBlob)
	w.PutFixed(m.Sender[:])
	w.PutFixed(m.Receiver[:])
	w.PutFixed(m.Hash[:])
	w.PutString(m.Name)
	w.PutUint64(m.Size)
	w.PutUint64(m.Timestamp)
	w.PutTag(byte(m.Kind))
}

func decodeDmBlob(r *Reader) (DmBlob, error) {
	var m DmBlob
	sender, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	receiver, err := r.Fixed(32)
	if err != nil {
		return m, err
	}
	hash, err := r.Fixed(32)
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
	ts, err := r.Uint64()
	if err != nil {
		return m, err
	}
	kind, err := r.Tag()
	if err != nil {
		return m, err
	}
	copy(m.Sender[:], sender)
	copy(m.Receiver[:], receiver)
	copy(m.Hash[:], hash)
	m.Name = name
	m.Size = size
	m.Timestamp = ts
	m.Kind = BlobKind(kind)
	return m, nil
}

// EncodeDmMessage returns the canonical bytes for msg.
func EncodeDmMessage(msg DmMessage) []byte {
	w := NewWriter(128)
	msg.encode(w)
	return w.Bytes()
}

// DecodeDmMessage decodes one of the DmMessage variants from buf. An
// unrecognized tag is reported as ErrUnknownDmTag so the caller can drop
// the frame and keep reading the stream.
func DecodeDmMessage(buf []byte) (DmMessage, error) {
	r := NewReader(buf)
	tag, err := r.Tag()
	if err != nil {
		return nil, err
	}

	var (
		msg DmMessage
		dec error
	)
	switch tag {
	case dmTagChat:
		msg, dec = decodeDmChat(r)
	case dmTagProfileMetadata:
		msg, dec = decodeDmProfileMetadata(r)
	case dmTagJoinPetition:
		msg, dec = decodeDmJoinPetition(r)
	case dmTagBlob:
		msg, dec = decodeDmBlob(r)
	default:
		return nil, ErrUnknownDmTag{Tag: tag}
	}
	if dec != nil {
		return nil, dec
	}
	if !r.Done() {
		return nil, ErrTrailingBytes
	}
	return msg, nil
}
