// Package blob implements the content-addressed local store and the
// digest-verified streaming protocol blobs move over.
package blob

import (
	"strings"

	"lukechampine.com/blake3"

	"github.com/nexu-chat/nexu/internal/wire"
)

// Hash is a blob's content digest: the raw BLAKE3-256 output.
type Hash [32]byte

// HashBytes digests data in one shot.
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

func (h Hash) String() string {
	return strings.ToLower(wire.TextEncoding.EncodeToString(h[:]))
}

// ParseHash decodes the printable form produced by String.
func ParseHash(s string) (Hash, error) {
	raw, err := wire.TextEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return Hash{}, ErrInvalidHash
	}
	if len(raw) != 32 {
		return Hash{}, ErrInvalidHash
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Hasher incrementally digests a blob while its bytes are streamed to
// storage, so the store never has to re-read the file to verify it.
type Hasher struct {
	h *blake3.Hasher
}

// NewHasher returns a ready incremental BLAKE3 hasher.
func NewHasher() *Hasher { return &Hasher{h: blake3.New(32, nil)} }

// Write implements io.Writer so a Hasher can sit in an io.MultiWriter
// alongside the destination file.
func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum returns the digest of everything written so far.
func (h *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], h.h.Sum(nil))
	return out
}
