// Package ticket implements the printable tokens that hand a topic or a
// blob from one endpoint to another: a canonical binary encoding (built on
// internal/wire's primitives) plus a base32 text form.
package ticket

import (
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

// maxBootstrap bounds how many endpoint addresses a single ticket may
// claim to carry, guarding decode against adversarial allocation.
const maxBootstrap = 1 << 12

// Ticket identifies a topic and a set of bootstrap endpoints to join it
// from. Printing and parsing round-trip byte-for-byte.
type Ticket struct {
	Topic     identity.TopicID
	Bootstrap []identity.Addr
}

// Encode returns the canonical binary form: topic id, then a count-prefixed
// list of endpoint addresses in order.
func (t Ticket) Encode() []byte {
	w := wire.NewWriter(64 + 64*len(t.Bootstrap))
	w.PutFixed(t.Topic[:])
	w.PutCount(len(t.Bootstrap))
	for _, a := range t.Bootstrap {
		putAddr(w, a)
	}
	return w.Bytes()
}

// String renders the lowercase base32 text form used in UI/CLI contexts.
func (t Ticket) String() string {
	return strings.ToLower(wire.TextEncoding.EncodeToString(t.Encode()))
}

// Parse decodes a ticket previously produced by String. A decode error or
// trailing bytes both report ErrInvalidTicket.
func Parse(s string) (Ticket, error) {
	raw, err := wire.TextEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return Ticket{}, ErrInvalidTicket
	}
	t, err := decodeTicket(raw)
	if err != nil {
		return Ticket{}, ErrInvalidTicket
	}
	return t, nil
}

func decodeTicket(raw []byte) (Ticket, error) {
	r := wire.NewReader(raw)
	topic, err := r.Fixed(32)
	if err != nil {
		return Ticket{}, err
	}
	n, err := r.Count(maxBootstrap)
	if err != nil {
		return Ticket{}, err
	}
	addrs := make([]identity.Addr, n)
	for i := 0; i < n; i++ {
		a, err := getAddr(r)
		if err != nil {
			return Ticket{}, err
		}
		addrs[i] = a
	}
	if !r.Done() {
		return Ticket{}, wire.ErrTrailingBytes
	}
	var t Ticket
	copy(t.Topic[:], topic)
	t.Bootstrap = addrs
	return t, nil
}

// putAddr encodes one identity.Addr: id, relay string, then a count-prefixed
// list of multiaddr strings.
func putAddr(w *wire.Writer, a identity.Addr) {
	w.PutFixed(a.ID[:])
	w.PutString(a.Relay)
	w.PutCount(len(a.Direct))
	for _, m := range a.Direct {
		w.PutString(m.String())
	}
}

// maxDirectAddrs bounds the direct-address count for one endpoint inside a
// ticket, well above any real host's interface count.
const maxDirectAddrs = 1 << 10

func getAddr(r *wire.Reader) (identity.Addr, error) {
	id, err := r.Fixed(32)
	if err != nil {
		return identity.Addr{}, err
	}
	relay, err := r.String()
	if err != nil {
		return identity.Addr{}, err
	}
	n, err := r.Count(maxDirectAddrs)
	if err != nil {
		return identity.Addr{}, err
	}
	direct := make([]ma.Multiaddr, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.String()
		if err != nil {
			return identity.Addr{}, err
		}
		parsed, err := ma.NewMultiaddr(s)
		if err != nil {
			return identity.Addr{}, ErrInvalidTicket
		}
		direct = append(direct, parsed)
	}
	var a identity.Addr
	copy(a.ID[:], id)
	a.Relay = relay
	a.Direct = direct
	return a, nil
}
