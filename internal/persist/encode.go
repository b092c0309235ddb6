package persist

import (
	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/ticket"
	"github.com/nexu-chat/nexu/internal/wire"
)

// Bounds on counts read back from disk, guarding decode against a
// truncated or adversarially edited file forcing a huge allocation.
const (
	maxTopics   = 1 << 16
	maxContacts = 1 << 20
	maxMembers  = 1 << 16
	maxMessages = 1 << 24
)

func encodeProfile(w *wire.Writer, p appstate.Profile) {
	w.PutFixed(p.ID[:])
	w.PutString(p.Name)
	w.PutBytes(p.Avatar)
	w.PutUint64(p.LastConnection)
}

func decodeProfile(r *wire.Reader) (appstate.Profile, error) {
	var p appstate.Profile
	id, err := r.Fixed(32)
	if err != nil {
		return p, err
	}
	copy(p.ID[:], id)
	if p.Name, err = r.String(); err != nil {
		return p, err
	}
	if p.Avatar, err = r.Bytes(); err != nil {
		return p, err
	}
	if p.LastConnection, err = r.Uint64(); err != nil {
		return p, err
	}
	return p, nil
}

func encodeEvent(w *wire.Writer, e appstate.Event) {
	w.PutTag(byte(e.Kind))
	w.PutFixed(e.Sender[:])
	w.PutFixed(e.Topic[:])
	w.PutString(e.Content)
	w.PutUint64(e.Timestamp)
	w.PutFixed(e.Hash[:])
	w.PutString(e.Name)
	w.PutUint64(e.Size)
	w.PutTag(byte(e.BlobKind))
}

func decodeEvent(r *wire.Reader) (appstate.Event, error) {
	var e appstate.Event
	kind, err := r.Tag()
	if err != nil {
		return e, err
	}
	e.Kind = appstate.EventKind(kind)
	sender, err := r.Fixed(32)
	if err != nil {
		return e, err
	}
	copy(e.Sender[:], sender)
	topic, err := r.Fixed(32)
	if err != nil {
		return e, err
	}
	copy(e.Topic[:], topic)
	if e.Content, err = r.String(); err != nil {
		return e, err
	}
	if e.Timestamp, err = r.Uint64(); err != nil {
		return e, err
	}
	hash, err := r.Fixed(32)
	if err != nil {
		return e, err
	}
	copy(e.Hash[:], hash)
	if e.Name, err = r.String(); err != nil {
		return e, err
	}
	if e.Size, err = r.Uint64(); err != nil {
		return e, err
	}
	blobKind, err := r.Tag()
	if err != nil {
		return e, err
	}
	e.BlobKind = wire.BlobKind(blobKind)
	return e, nil
}

func encodeTopic(w *wire.Writer, t *appstate.Topic) {
	w.PutString(t.Ticket.String())
	w.PutString(t.Name)
	w.PutBytes(t.Avatar)
	w.PutUint64(t.LastActivity)
	w.PutUint64(t.LastMetadataChange)
	members := t.MemberList()
	w.PutCount(len(members))
	for _, id := range members {
		w.PutFixed(id[:])
	}
	w.PutCount(len(t.Messages))
	for _, e := range t.Messages {
		encodeEvent(w, e)
	}
}

func decodeTopic(r *wire.Reader) (*appstate.Topic, error) {
	ticketStr, err := r.String()
	if err != nil {
		return nil, err
	}
	tk, err := ticket.Parse(ticketStr)
	if err != nil {
		return nil, ErrCorrupt
	}
	top := &appstate.Topic{Ticket: tk, Members: make(map[identity.ID]struct{})}
	if top.Name, err = r.String(); err != nil {
		return nil, err
	}
	if top.Avatar, err = r.Bytes(); err != nil {
		return nil, err
	}
	if top.LastActivity, err = r.Uint64(); err != nil {
		return nil, err
	}
	if top.LastMetadataChange, err = r.Uint64(); err != nil {
		return nil, err
	}
	nMembers, err := r.Count(maxMembers)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nMembers; i++ {
		raw, err := r.Fixed(32)
		if err != nil {
			return nil, err
		}
		var id identity.ID
		copy(id[:], raw)
		top.Members[id] = struct{}{}
	}
	nMessages, err := r.Count(maxMessages)
	if err != nil {
		return nil, err
	}
	top.Messages = make([]appstate.Event, 0, nMessages)
	for i := 0; i < nMessages; i++ {
		e, err := decodeEvent(r)
		if err != nil {
			return nil, err
		}
		top.Messages = append(top.Messages, e)
	}
	top.RebuildIndex()
	return top, nil
}

func encodeTopics(topics []*appstate.Topic) []byte {
	w := wire.NewWriter(256 * (len(topics) + 1))
	w.PutCount(len(topics))
	for _, t := range topics {
		encodeTopic(w, t)
	}
	return w.Bytes()
}

func decodeTopics(buf []byte) ([]*appstate.Topic, error) {
	r := wire.NewReader(buf)
	n, err := r.Count(maxTopics)
	if err != nil {
		return nil, err
	}
	out := make([]*appstate.Topic, 0, n)
	for i := 0; i < n; i++ {
		t, err := decodeTopic(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if !r.Done() {
		return nil, wire.ErrTrailingBytes
	}
	return out, nil
}

func encodeContacts(contacts []appstate.Profile) []byte {
	w := wire.NewWriter(64 * (len(contacts) + 1))
	w.PutCount(len(contacts))
	for _, p := range contacts {
		encodeProfile(w, p)
	}
	return w.Bytes()
}

func decodeContacts(buf []byte) ([]appstate.Profile, error) {
	r := wire.NewReader(buf)
	n, err := r.Count(maxContacts)
	if err != nil {
		return nil, err
	}
	out := make([]appstate.Profile, 0, n)
	for i := 0; i < n; i++ {
		p, err := decodeProfile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if !r.Done() {
		return nil, wire.ErrTrailingBytes
	}
	return out, nil
}

func encodeProfileFile(p appstate.Profile) []byte {
	w := wire.NewWriter(64)
	encodeProfile(w, p)
	return w.Bytes()
}

func decodeProfileFile(buf []byte) (appstate.Profile, error) {
	r := wire.NewReader(buf)
	p, err := decodeProfile(r)
	if err != nil {
		return appstate.Profile{}, err
	}
	if !r.Done() {
		return appstate.Profile{}, wire.ErrTrailingBytes
	}
	return p, nil
}
