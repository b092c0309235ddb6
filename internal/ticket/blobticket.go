package ticket

import (
	"strings"

	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

// BlobFormat names the shape of a blob's content. Raw is the only format
// nexu produces; the field exists so the wire encoding has room to grow
// without breaking older parsers (an unknown value is still printable).
type BlobFormat byte

const BlobFormatRaw BlobFormat = 0

// BlobTicket hands a blob's hash and a provider to fetch it from.
type BlobTicket struct {
	Provider identity.Addr
	Hash     blob.Hash
	Format   BlobFormat
}

// Encode returns the canonical binary form.
func (t BlobTicket) Encode() []byte {
	w := wire.NewWriter(96)
	putAddr(w, t.Provider)
	w.PutFixed(t.Hash[:])
	w.PutTag(byte(t.Format))
	return w.Bytes()
}

// String renders the lowercase base32 text form.
func (t BlobTicket) String() string {
	return strings.ToLower(wire.TextEncoding.EncodeToString(t.Encode()))
}

// ParseBlobTicket decodes a string previously produced by String.
func ParseBlobTicket(s string) (BlobTicket, error) {
	raw, err := wire.TextEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return BlobTicket{}, ErrInvalidTicket
	}
	r := wire.NewReader(raw)
	provider, err := getAddr(r)
	if err != nil {
		return BlobTicket{}, ErrInvalidTicket
	}
	hashBytes, err := r.Fixed(32)
	if err != nil {
		return BlobTicket{}, ErrInvalidTicket
	}
	format, err := r.Tag()
	if err != nil {
		return BlobTicket{}, ErrInvalidTicket
	}
	if !r.Done() {
		return BlobTicket{}, ErrInvalidTicket
	}
	var h blob.Hash
	copy(h[:], hashBytes)
	return BlobTicket{Provider: provider, Hash: h, Format: BlobFormat(format)}, nil
}
